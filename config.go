// FILE: config.go
// Package main – Runtime configuration model and loader.
//
// This file defines the Config struct (all the knobs the ledger uses) and a
// helper to populate it from environment variables. The .env file is read
// by loadLedgerEnv() (see env.go), so you can tune behavior without exports.
//
// Typical flow (see main.go):
//   loadLedgerEnv()
//   cfg := loadConfigFromEnv()

package main

// Config holds all runtime knobs for the ledger and its operations.
type Config struct {
	// Persistence
	BackendKind     string // "sheets" (default) or "memory"
	SpreadsheetID   string // GOOGLE_SHEET_ID; required for the sheets backend
	CredentialsPath string // GOOGLE_SA_JSON_PATH; service-account JSON

	// Ops
	Port             int // /metrics + /healthz listen port (watch mode)
	SweepIntervalSec int // watch-mode sweep cadence
}

func loadConfigFromEnv() Config {
	return Config{
		BackendKind:      getEnv("ARC_BACKEND", "sheets"),
		SpreadsheetID:    getEnv("GOOGLE_SHEET_ID", ""),
		CredentialsPath:  getEnv("GOOGLE_SA_JSON_PATH", "./service_account.json"),
		Port:             getEnvInt("PORT", 8780),
		SweepIntervalSec: getEnvInt("SWEEP_INTERVAL_SEC", 300),
	}
}
