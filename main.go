// FILE: main.go
// Package main – Program entrypoint and HTTP/metrics server.
//
// Boot sequence:
//   1) loadLedgerEnv()             – read .env (no shell exports required)
//   2) cfg := loadConfigFromEnv()  – build runtime Config
//   3) wire backend (ARC_BACKEND: sheets|memory) and TradeLedger
//   4) run the selected mode
//
// Flags:
//   -cleanup            One-shot cleanup (cancelled rows included), print counts
//   -watch              Long-running sweep loop + Prometheus /metrics server
//   -interval <sec>     Watch cadence override (default SWEEP_INTERVAL_SEC)
//
// With no flags the binary runs a small end-to-end demo against the
// configured backend: offer → accept → complete → recent.
//
// Notes:
//   - The sheets backend needs GOOGLE_SHEET_ID and a service-account JSON
//     (GOOGLE_SA_JSON_PATH); missing either is fatal at startup.
//   - ARC_BACKEND=memory runs fully offline.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// ---- Flags ----
	var cleanup bool
	var watch bool
	var intervalSec int
	flag.BoolVar(&cleanup, "cleanup", false, "Run one cleanup pass (includes CANCELLED) and exit")
	flag.BoolVar(&watch, "watch", false, "Run the periodic sweep loop with a metrics server")
	flag.IntVar(&intervalSec, "interval", 0, "Watch loop interval in seconds (default SWEEP_INTERVAL_SEC)")
	flag.Parse()

	// ---- Environment & Config ----
	loadLedgerEnv()
	cfg := loadConfigFromEnv()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// ---- Backend wiring ----
	var backend Backend
	switch strings.ToLower(cfg.BackendKind) {
	case "memory":
		backend = NewMemoryBackend()
	case "sheets", "":
		sb, err := NewSheetsBackend(ctx, cfg.SpreadsheetID, cfg.CredentialsPath)
		if err != nil {
			log.Fatalf("backend init: %v", err)
		}
		backend = sb
	default:
		log.Fatalf("backend init: unknown ARC_BACKEND %q (want sheets or memory)", cfg.BackendKind)
	}
	SetBackendMetric(backend.Name())

	ledger, err := NewTradeLedger(ctx, backend)
	if err != nil {
		log.Fatalf("ledger init: %v", err)
	}
	log.Printf("ledger ready — backend=%s", backend.Name())

	// ---- Run selected mode ----
	switch {
	case cleanup:
		stats, err := ledger.Cleanup(ctx, true)
		if err != nil {
			log.Fatalf("cleanup: %v", err)
		}
		fmt.Printf("Cleanup: moved=%d deleted=%d skipped=%d\n", stats.Moved, stats.Deleted, stats.Skipped)
	case watch:
		if intervalSec <= 0 {
			intervalSec = cfg.SweepIntervalSec
		}
		runWatch(ctx, ledger, cfg.Port, intervalSec)
	default:
		runDemo(ctx, ledger)
	}
}

// runWatch sweeps on a fixed cadence until the process is signalled,
// serving /metrics and /healthz the whole time.
func runWatch(ctx context.Context, ledger *TradeLedger, port, intervalSec int) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok\n"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		log.Printf("serving metrics on :%d/metrics", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	log.Printf("watch: sweeping every %ds", intervalSec)
	ticker := time.NewTicker(time.Duration(intervalSec) * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			shutdownCtx, c := context.WithTimeout(context.Background(), 2*time.Second)
			defer c()
			_ = srv.Shutdown(shutdownCtx)
			log.Printf("watch: stopped")
			return
		case <-ticker.C:
			stats, err := ledger.Cleanup(ctx, true)
			if err != nil {
				log.Printf("watch: cleanup error: %v", err)
				continue
			}
			log.Printf("watch: moved=%d deleted=%d skipped=%d", stats.Moved, stats.Deleted, stats.Skipped)
		}
	}
}

// runDemo exercises the full lifecycle once and prints the resulting view.
func runDemo(ctx context.Context, ledger *TradeLedger) {
	offerID, err := ledger.Offer(ctx, OfferInput{
		OffererID:   "123",
		OffererName: "Doug",
		ItemRaw:     "Atlas Chassis",
		Notes:       "any rare part",
	})
	if err != nil {
		log.Fatalf("demo offer: %v", err)
	}
	fmt.Println("Offered:", offerID)

	if ok, err := ledger.Accept(ctx, offerID, "456", "Ava"); err != nil || !ok {
		log.Fatalf("demo accept: ok=%v err=%v", ok, err)
	}
	if ok, err := ledger.Complete(ctx, offerID); err != nil || !ok {
		log.Fatalf("demo complete: ok=%v err=%v", ok, err)
	}

	view, err := ledger.Recent(ctx, 3, 3)
	if err != nil {
		log.Fatalf("demo recent: %v", err)
	}
	fmt.Println("In-Progress:")
	for _, r := range view.InProgress {
		fmt.Println(r.OfferID, r.Status, r.ItemRaw, r.CreatedTS)
	}
	fmt.Println("Completed:")
	for _, r := range view.Completed {
		fmt.Println(r.OfferID, r.Status, r.ItemRaw, completedSortKey(r))
	}
}
