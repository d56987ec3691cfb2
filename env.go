// FILE: env.go
// Package main – Environment helpers for the ledger.
//
// This file provides:
//   1) Small helpers to read environment variables with sane defaults
//      (strings, ints).
//   2) loadLedgerEnv: best-effort .env loading via godotenv. Process env
//      always wins; a missing .env is normal in production.

package main

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// --------- Env helpers (used across files) ---------

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

// --------- .env loader ---------

// loadLedgerEnv reads ./.env if present. godotenv never overrides variables
// already set in the process environment.
func loadLedgerEnv() {
	if err := godotenv.Load(); err != nil {
		log.Printf("env: no .env file, relying on process env")
		return
	}
	log.Printf("env: loaded .env")
}
