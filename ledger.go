// FILE: ledger.go
// Package main – Trade lifecycle engine.
//
// TradeLedger drives the state machine OPEN → ACCEPTED → COMPLETED over a
// Backend. CANCELLED never originates here; it is injected externally
// (someone editing the sheet) and treated purely as another terminal state
// for sweeping.
//
// Call-boundary discipline: every mutating operation sweeps before doing
// its own read-check-write sequence and sweeps again after; read
// operations sweep once before reading. The sweep is Cleanup with
// cancelled rows included and errors swallowed — tidying must never abort
// the caller's primary operation.
//
// Lost-update caveat: Accept and Complete are read-then-write with no
// compare-and-swap. Two overlapping calls on the same offer can both pass
// the status check before either writes. Contention here is human-paced,
// so the design tolerates this; the row index is still re-resolved by
// offer_id immediately before the writes so a concurrent row shift turns
// into a soft false rather than an update to a neighbor row.

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidQuantity rejects a non-positive offer quantity before any side
// effect happens.
var ErrInvalidQuantity = errors.New("quantity must be positive")

// TradeLedger orchestrates trade state transitions against one backend.
type TradeLedger struct {
	backend Backend
}

// NewTradeLedger wires the engine to a backend and runs the idempotent
// table initialization. A failing initialization is fatal to the caller:
// the engine must not run against tables that may be missing headers.
func NewTradeLedger(ctx context.Context, backend Backend) (*TradeLedger, error) {
	if err := backend.EnsureInitialized(ctx); err != nil {
		return nil, fmt.Errorf("ledger: initialize %s backend: %w", backend.Name(), err)
	}
	return &TradeLedger{backend: backend}, nil
}

// OfferInput carries the caller-supplied fields of a new offer. Qty
// defaults to 1 when zero; it is validated but not persisted (the schema
// has no quantity column).
type OfferInput struct {
	OffererID   string
	OffererName string
	ItemRaw     string
	Qty         int
	Notes       string
	GuildID     string
	ChannelID   string
}

// CleanupStats reports one cleanup pass: rows moved to the completed tab,
// rows deleted from the active tab, and rows left untouched.
type CleanupStats struct {
	Moved   int
	Deleted int
	Skipped int
}

// RecentView is the split listing returned by Recent.
type RecentView struct {
	InProgress []TradeRecord
	Completed  []TradeRecord
}

// Offer creates a new OPEN trade and returns its 8-character id.
func (l *TradeLedger) Offer(ctx context.Context, in OfferInput) (string, error) {
	l.sweep(ctx)
	if in.Qty == 0 {
		in.Qty = 1
	}
	if in.Qty < 0 {
		IncOperation("offer", "rejected")
		return "", fmt.Errorf("offer: %w (got %d)", ErrInvalidQuantity, in.Qty)
	}
	offerID := uuid.NewString()[:8]
	now := utcNow()
	rec := TradeRecord{
		OfferID:     offerID,
		Status:      StatusOpen,
		ItemRaw:     in.ItemRaw,
		ItemNorm:    in.ItemRaw, // identical at creation; normalization may diverge later
		OffererID:   in.OffererID,
		OffererName: in.OffererName,
		CreatedTS:   now,
		Notes:       in.Notes,
		GuildID:     in.GuildID,
		ChannelID:   in.ChannelID,
	}
	if err := l.backend.AppendActive(ctx, rec.Row()); err != nil {
		IncOperation("offer", "error")
		return "", err
	}
	IncOperation("offer", "ok")
	l.sweep(ctx)
	return offerID, nil
}

// Accept transitions an OPEN trade to ACCEPTED. Returns false (not an
// error) when the offer is unknown or not OPEN — expected, frequent
// outcomes, not exceptional conditions.
func (l *TradeLedger) Accept(ctx context.Context, offerID, accepterID, accepterName string) (bool, error) {
	l.sweep(ctx)
	idx, err := l.backend.FindActiveRowIndex(ctx, offerID)
	if err != nil {
		IncOperation("accept", "error")
		return false, err
	}
	if idx == 0 {
		IncOperation("accept", "rejected")
		return false, nil
	}
	rec, err := l.backend.ReadActiveRow(ctx, idx)
	if err != nil {
		IncOperation("accept", "error")
		return false, err
	}
	if rec.Status != StatusOpen {
		IncOperation("accept", "rejected")
		return false, nil
	}
	now := utcNow()
	writes := []struct {
		col   int
		value string
	}{
		{colStatus, StatusAccepted},
		{colAccepterID, accepterID},
		{colAccepterName, accepterName},
		{colAcceptedTS, now},
	}
	for _, w := range writes {
		if err := l.backend.UpdateActiveCell(ctx, idx, w.col, w.value); err != nil {
			IncOperation("accept", "error")
			return false, err
		}
	}
	IncOperation("accept", "ok")
	l.sweep(ctx)
	return true, nil
}

// Complete transitions an OPEN or ACCEPTED trade to COMPLETED, and
// immediately promotes the updated record to the completed tab without
// waiting for the next sweep. That leaves a transient duplicate (the row
// is briefly in both tabs) which the trailing sweep's delete step
// resolves.
func (l *TradeLedger) Complete(ctx context.Context, offerID string) (bool, error) {
	l.sweep(ctx)
	idx, err := l.backend.FindActiveRowIndex(ctx, offerID)
	if err != nil {
		IncOperation("complete", "error")
		return false, err
	}
	if idx == 0 {
		IncOperation("complete", "rejected")
		return false, nil
	}
	rec, err := l.backend.ReadActiveRow(ctx, idx)
	if err != nil {
		IncOperation("complete", "error")
		return false, err
	}
	if rec.Status != StatusOpen && rec.Status != StatusAccepted {
		IncOperation("complete", "rejected")
		return false, nil
	}
	now := utcNow()
	if err := l.backend.UpdateActiveCell(ctx, idx, colStatus, StatusCompleted); err != nil {
		IncOperation("complete", "error")
		return false, err
	}
	if err := l.backend.UpdateActiveCell(ctx, idx, colCompletedTS, now); err != nil {
		IncOperation("complete", "error")
		return false, err
	}
	rec.Status = StatusCompleted
	rec.CompletedTS = now
	if err := l.backend.AppendCompleted(ctx, rec.Row()); err != nil {
		IncOperation("complete", "error")
		return false, err
	}
	IncOperation("complete", "ok")
	l.sweep(ctx)
	return true, nil
}

// Recent returns the split view: in-progress trades from the active tab
// and finished trades from the completed tab. A negative limit means
// unlimited. Sweeps once before reading so the active tab is tidy.
func (l *TradeLedger) Recent(ctx context.Context, nActive, nCompleted int) (RecentView, error) {
	l.sweep(ctx)

	activeRows, err := l.backend.ReadActiveAll(ctx)
	if err != nil {
		return RecentView{}, err
	}
	inProgress := make([]TradeRecord, 0, len(activeRows))
	for _, r := range activeRows {
		if r.Status == StatusOpen || r.Status == StatusAccepted {
			inProgress = append(inProgress, r)
		}
	}
	// Stable sort: ties (same second) keep original insertion order.
	sort.SliceStable(inProgress, func(i, j int) bool {
		return inProgress[i].CreatedTS > inProgress[j].CreatedTS
	})
	if nActive >= 0 && len(inProgress) > nActive {
		inProgress = inProgress[:nActive]
	}

	completed, err := l.backend.ReadCompletedAll(ctx)
	if err != nil {
		return RecentView{}, err
	}
	// Defensive fold-in: anything terminal still lingering in the active
	// tab (rare post-sweep) is listed too rather than dropped.
	for _, r := range activeRows {
		if isTerminalStatus(r.Status) {
			completed = append(completed, r)
		}
	}
	sort.SliceStable(completed, func(i, j int) bool {
		return completedSortKey(completed[i]) > completedSortKey(completed[j])
	})
	if nCompleted >= 0 && len(completed) > nCompleted {
		completed = completed[:nCompleted]
	}

	return RecentView{InProgress: inProgress, Completed: completed}, nil
}

// completedSortKey is the first present value among completed_ts,
// accepted_ts, created_ts. ISO-8601 UTC strings order lexically.
func completedSortKey(r TradeRecord) string {
	if r.CompletedTS != "" {
		return r.CompletedTS
	}
	if r.AcceptedTS != "" {
		return r.AcceptedTS
	}
	return r.CreatedTS
}

// Cleanup migrates terminal rows from the active tab to the completed tab:
// batch-append the targets, then batch-delete them from the active tab by
// descending row index. Idempotent — with nothing to move it returns
// {0, 0, activeRowCount}. This is the sole mechanism that removes rows
// from the active tab.
func (l *TradeLedger) Cleanup(ctx context.Context, includeCancelled bool) (CleanupStats, error) {
	rows, err := l.backend.ReadActiveRowsWithIndices(ctx)
	if err != nil {
		return CleanupStats{}, err
	}

	var toMove [][]string
	var toDelete []int
	skipped := 0
	for _, row := range rows {
		status := strings.ToUpper(row.Cells[colStatus])
		if status == StatusCompleted || (includeCancelled && status == StatusCancelled) {
			toMove = append(toMove, row.Cells)
			toDelete = append(toDelete, row.Index)
		} else {
			skipped++
		}
	}

	if err := l.backend.AppendCompletedRows(ctx, toMove); err != nil {
		return CleanupStats{}, err
	}
	if err := l.backend.DeleteActiveRows(ctx, toDelete); err != nil {
		return CleanupStats{}, err
	}

	stats := CleanupStats{Moved: len(toMove), Deleted: len(toDelete), Skipped: skipped}
	AddSweepMoved(stats.Moved)
	SetActiveRows(stats.Skipped)
	return stats, nil
}

// sweep is Cleanup(includeCancelled=true) with errors swallowed. A failure
// here is logged and counted, never surfaced: tidying must not block the
// caller's primary operation.
func (l *TradeLedger) sweep(ctx context.Context) {
	if _, err := l.Cleanup(ctx, true); err != nil {
		IncSweepError()
		log.Printf("[SWEEP] cleanup error (ignored): %v", err)
	}
}
