// Lifecycle engine tests, run against the memory backend (the backend
// suite in backend_test.go guarantees both backends behave identically, so
// these properties transfer to the Sheets backend).

package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLedger(t *testing.T) (*TradeLedger, *MemoryBackend) {
	t.Helper()
	mem := NewMemoryBackend()
	ledger, err := NewTradeLedger(context.Background(), mem)
	require.NoError(t, err)
	return ledger, mem
}

// seedActive bypasses the engine to plant a row, the way an external tool
// (or a human editing the sheet) would.
func seedActive(t *testing.T, b Backend, rec TradeRecord) {
	t.Helper()
	require.NoError(t, b.AppendActive(context.Background(), rec.Row()))
}

func TestOfferCreatesOpenRecord(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newTestLedger(t)

	id, err := ledger.Offer(ctx, OfferInput{
		OffererID:   "u1",
		OffererName: "Doug",
		ItemRaw:     "Atlas Chassis",
		Notes:       "any rare part",
		GuildID:     "g1",
		ChannelID:   "c1",
	})
	require.NoError(t, err)
	assert.Len(t, id, 8)

	view, err := ledger.Recent(ctx, -1, -1)
	require.NoError(t, err)
	require.Len(t, view.InProgress, 1)
	rec := view.InProgress[0]
	assert.Equal(t, id, rec.OfferID)
	assert.Equal(t, StatusOpen, rec.Status)
	assert.Equal(t, "Atlas Chassis", rec.ItemRaw)
	assert.Equal(t, rec.ItemRaw, rec.ItemNorm)
	assert.Equal(t, "u1", rec.OffererID)
	assert.Equal(t, "Doug", rec.OffererName)
	assert.Empty(t, rec.AccepterID)
	assert.Empty(t, rec.AcceptedTS)
	assert.Empty(t, rec.CompletedTS)

	created, err := time.Parse("2006-01-02T15:04:05Z", rec.CreatedTS)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, created.Location())
}

func TestOfferQuantityValidation(t *testing.T) {
	ctx := context.Background()
	ledger, mem := newTestLedger(t)

	_, err := ledger.Offer(ctx, OfferInput{OffererID: "u1", ItemRaw: "x", Qty: -2})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	all, err := mem.ReadActiveAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all, "a rejected offer must leave no side effects")

	// Zero means unsupplied and defaults to 1.
	_, err = ledger.Offer(ctx, OfferInput{OffererID: "u1", ItemRaw: "x"})
	require.NoError(t, err)
}

func TestAcceptUnknownOfferIsSoftFalse(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newTestLedger(t)

	ok, err := ledger.Accept(ctx, "nonexistent", "u2", "Ava")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAcceptOpenOffer(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newTestLedger(t)

	id, err := ledger.Offer(ctx, OfferInput{OffererID: "u1", OffererName: "Doug", ItemRaw: "Ferro Blade"})
	require.NoError(t, err)

	ok, err := ledger.Accept(ctx, id, "u2", "Ava")
	require.NoError(t, err)
	require.True(t, ok)

	view, err := ledger.Recent(ctx, -1, -1)
	require.NoError(t, err)
	require.Len(t, view.InProgress, 1)
	rec := view.InProgress[0]
	assert.Equal(t, StatusAccepted, rec.Status)
	assert.Equal(t, "u2", rec.AccepterID)
	assert.Equal(t, "Ava", rec.AccepterName)
	assert.GreaterOrEqual(t, rec.AcceptedTS, rec.CreatedTS)
}

func TestAcceptNonOpenOfferIsSoftFalse(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newTestLedger(t)

	id, err := ledger.Offer(ctx, OfferInput{OffererID: "u1", ItemRaw: "x"})
	require.NoError(t, err)
	ok, err := ledger.Accept(ctx, id, "u2", "Ava")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = ledger.Accept(ctx, id, "u3", "Zed")
	require.NoError(t, err)
	assert.False(t, ok)

	view, err := ledger.Recent(ctx, -1, -1)
	require.NoError(t, err)
	require.Len(t, view.InProgress, 1)
	assert.Equal(t, "u2", view.InProgress[0].AccepterID, "losing accept must not overwrite fields")
	assert.Equal(t, "Ava", view.InProgress[0].AccepterName)
}

func TestCompleteFromOpenOrAccepted(t *testing.T) {
	ctx := context.Background()

	t.Run("from OPEN", func(t *testing.T) {
		ledger, mem := newTestLedger(t)
		id, err := ledger.Offer(ctx, OfferInput{OffererID: "u1", ItemRaw: "x"})
		require.NoError(t, err)

		ok, err := ledger.Complete(ctx, id)
		require.NoError(t, err)
		require.True(t, ok)

		completed, err := mem.ReadCompletedAll(ctx)
		require.NoError(t, err)
		require.Len(t, completed, 1)
		assert.Equal(t, id, completed[0].OfferID)
		assert.Equal(t, StatusCompleted, completed[0].Status)
		assert.GreaterOrEqual(t, completed[0].CompletedTS, completed[0].CreatedTS)
	})

	t.Run("from ACCEPTED", func(t *testing.T) {
		ledger, mem := newTestLedger(t)
		id, err := ledger.Offer(ctx, OfferInput{OffererID: "u1", ItemRaw: "x"})
		require.NoError(t, err)
		ok, err := ledger.Accept(ctx, id, "u2", "Ava")
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = ledger.Complete(ctx, id)
		require.NoError(t, err)
		require.True(t, ok)

		completed, err := mem.ReadCompletedAll(ctx)
		require.NoError(t, err)
		require.Len(t, completed, 1)
		assert.GreaterOrEqual(t, completed[0].CompletedTS, completed[0].AcceptedTS)

		// The trailing sweep resolved the transient duplicate.
		active, err := mem.ReadActiveAll(ctx)
		require.NoError(t, err)
		assert.Empty(t, active)
	})
}

func TestCompleteTwiceIsSoftFalse(t *testing.T) {
	ctx := context.Background()
	ledger, mem := newTestLedger(t)

	id, err := ledger.Offer(ctx, OfferInput{OffererID: "u1", ItemRaw: "x"})
	require.NoError(t, err)
	ok, err := ledger.Complete(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = ledger.Complete(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)

	completed, err := mem.ReadCompletedAll(ctx)
	require.NoError(t, err)
	assert.Len(t, completed, 1, "no duplicate archive row from the second call")
}

func TestCleanupMovesTerminalRows(t *testing.T) {
	ctx := context.Background()
	ledger, mem := newTestLedger(t)

	now := utcNow()
	seedActive(t, mem, TradeRecord{OfferID: "open0001", Status: StatusOpen, ItemRaw: "keep", CreatedTS: now})
	seedActive(t, mem, TradeRecord{OfferID: "done0001", Status: StatusCompleted, ItemRaw: "done", CreatedTS: now, CompletedTS: now})
	// Lower-case status hand-edited into the sheet still counts as terminal.
	seedActive(t, mem, TradeRecord{OfferID: "done0002", Status: "completed", ItemRaw: "done-lc", CreatedTS: now})
	seedActive(t, mem, TradeRecord{OfferID: "canc0001", Status: StatusCancelled, ItemRaw: "axed", CreatedTS: now})

	stats, err := ledger.Cleanup(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, CleanupStats{Moved: 2, Deleted: 2, Skipped: 2}, stats)

	active, err := mem.ReadActiveAll(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "open0001", active[0].OfferID)
	assert.Equal(t, "canc0001", active[1].OfferID, "CANCELLED stays without includeCancelled")

	stats, err = ledger.Cleanup(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, CleanupStats{Moved: 1, Deleted: 1, Skipped: 1}, stats)

	completed, err := mem.ReadCompletedAll(ctx)
	require.NoError(t, err)
	require.Len(t, completed, 3)
	// Field values survive the move verbatim.
	assert.Equal(t, "done0001", completed[0].OfferID)
	assert.Equal(t, "done", completed[0].ItemRaw)
	assert.Equal(t, "completed", completed[1].Status, "status moved as-is, not rewritten")
	assert.Equal(t, "canc0001", completed[2].OfferID)
}

func TestCleanupIdempotent(t *testing.T) {
	ctx := context.Background()
	ledger, mem := newTestLedger(t)

	now := utcNow()
	seedActive(t, mem, TradeRecord{OfferID: "open0001", Status: StatusOpen, CreatedTS: now})
	seedActive(t, mem, TradeRecord{OfferID: "done0001", Status: StatusCompleted, CreatedTS: now})

	first, err := ledger.Cleanup(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, CleanupStats{Moved: 1, Deleted: 1, Skipped: 1}, first)

	second, err := ledger.Cleanup(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, CleanupStats{Moved: 0, Deleted: 0, Skipped: 1}, second)
}

func TestRecentSortingAndLimits(t *testing.T) {
	ctx := context.Background()
	ledger, mem := newTestLedger(t)

	// Controlled timestamps; t2a/t2b share a second to pin down tie order.
	seedActive(t, mem, TradeRecord{OfferID: "aaaa0001", Status: StatusOpen, ItemRaw: "first", CreatedTS: "2026-08-25T10:00:01Z"})
	seedActive(t, mem, TradeRecord{OfferID: "aaaa0002", Status: StatusAccepted, ItemRaw: "tie-a", CreatedTS: "2026-08-25T10:00:02Z"})
	seedActive(t, mem, TradeRecord{OfferID: "aaaa0003", Status: StatusOpen, ItemRaw: "tie-b", CreatedTS: "2026-08-25T10:00:02Z"})
	seedActive(t, mem, TradeRecord{OfferID: "aaaa0004", Status: StatusOpen, ItemRaw: "last", CreatedTS: "2026-08-25T10:00:03Z"})

	view, err := ledger.Recent(ctx, 3, -1)
	require.NoError(t, err)
	require.Len(t, view.InProgress, 3)
	assert.Equal(t, "aaaa0004", view.InProgress[0].OfferID)
	assert.Equal(t, "aaaa0002", view.InProgress[1].OfferID, "ties keep insertion order")
	assert.Equal(t, "aaaa0003", view.InProgress[2].OfferID)

	// Completed view: key preference completed_ts > accepted_ts > created_ts.
	require.NoError(t, mem.AppendCompleted(ctx, TradeRecord{
		OfferID: "bbbb0001", Status: StatusCompleted,
		CreatedTS: "2026-08-25T09:00:00Z", CompletedTS: "2026-08-25T11:00:00Z",
	}.Row()))
	require.NoError(t, mem.AppendCompleted(ctx, TradeRecord{
		OfferID: "bbbb0002", Status: StatusCancelled,
		CreatedTS: "2026-08-25T09:00:00Z", AcceptedTS: "2026-08-25T12:00:00Z",
	}.Row()))
	require.NoError(t, mem.AppendCompleted(ctx, TradeRecord{
		OfferID: "bbbb0003", Status: StatusCancelled,
		CreatedTS: "2026-08-25T10:30:00Z",
	}.Row()))

	view, err = ledger.Recent(ctx, -1, 2)
	require.NoError(t, err)
	require.Len(t, view.Completed, 2)
	assert.Equal(t, "bbbb0002", view.Completed[0].OfferID, "accepted_ts 12:00 outranks completed_ts 11:00")
	assert.Equal(t, "bbbb0001", view.Completed[1].OfferID)

	// Unlimited on both sides.
	view, err = ledger.Recent(ctx, -1, -1)
	require.NoError(t, err)
	assert.Len(t, view.InProgress, 4)
	assert.Len(t, view.Completed, 3)
}

func TestRecentFoldsInLingeringTerminalRows(t *testing.T) {
	ctx := context.Background()
	ledger, mem := newTestLedger(t)

	// A CANCELLED row injected externally: Recent's sweep migrates it, and
	// the completed view lists it either way.
	seedActive(t, mem, TradeRecord{OfferID: "canc0001", Status: StatusCancelled, ItemRaw: "axed", CreatedTS: utcNow()})

	view, err := ledger.Recent(ctx, -1, -1)
	require.NoError(t, err)
	assert.Empty(t, view.InProgress)
	require.Len(t, view.Completed, 1)
	assert.Equal(t, "canc0001", view.Completed[0].OfferID)

	active, err := mem.ReadActiveAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, active, "sweep tidied the active tab")
}

func TestMutatingCallsSweepFirst(t *testing.T) {
	ctx := context.Background()
	ledger, mem := newTestLedger(t)

	seedActive(t, mem, TradeRecord{OfferID: "done0001", Status: StatusCompleted, CreatedTS: utcNow()})

	// Offer's leading sweep clears the terminal row before the append.
	_, err := ledger.Offer(ctx, OfferInput{OffererID: "u1", ItemRaw: "x"})
	require.NoError(t, err)

	active, err := mem.ReadActiveAll(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, StatusOpen, active[0].Status)

	completed, err := mem.ReadCompletedAll(ctx)
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, "done0001", completed[0].OfferID)
}

var errBackendDown = errors.New("backend down")

// faultyBackend wraps a MemoryBackend and fails selected methods, to
// exercise the two halves of the error contract: sweep failures are
// swallowed, everything else propagates unmodified.
type faultyBackend struct {
	*MemoryBackend
	appendActiveErr    error
	findErr            error
	updateErr          error
	appendCompletedErr error
	readCompletedErr   error
	indexedReadErr     error
}

func (f *faultyBackend) AppendActive(ctx context.Context, row []string) error {
	if f.appendActiveErr != nil {
		return f.appendActiveErr
	}
	return f.MemoryBackend.AppendActive(ctx, row)
}

func (f *faultyBackend) FindActiveRowIndex(ctx context.Context, offerID string) (int, error) {
	if f.findErr != nil {
		return 0, f.findErr
	}
	return f.MemoryBackend.FindActiveRowIndex(ctx, offerID)
}

func (f *faultyBackend) UpdateActiveCell(ctx context.Context, rowIdx1, colIdx0 int, value string) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	return f.MemoryBackend.UpdateActiveCell(ctx, rowIdx1, colIdx0, value)
}

func (f *faultyBackend) AppendCompleted(ctx context.Context, row []string) error {
	if f.appendCompletedErr != nil {
		return f.appendCompletedErr
	}
	return f.MemoryBackend.AppendCompleted(ctx, row)
}

func (f *faultyBackend) ReadCompletedAll(ctx context.Context) ([]TradeRecord, error) {
	if f.readCompletedErr != nil {
		return nil, f.readCompletedErr
	}
	return f.MemoryBackend.ReadCompletedAll(ctx)
}

func (f *faultyBackend) ReadActiveRowsWithIndices(ctx context.Context) ([]IndexedRow, error) {
	if f.indexedReadErr != nil {
		return nil, f.indexedReadErr
	}
	return f.MemoryBackend.ReadActiveRowsWithIndices(ctx)
}

func newFaultyLedger(t *testing.T) (*TradeLedger, *faultyBackend) {
	t.Helper()
	fb := &faultyBackend{MemoryBackend: NewMemoryBackend()}
	ledger, err := NewTradeLedger(context.Background(), fb)
	require.NoError(t, err)
	return ledger, fb
}

func TestSweepFailuresAreSwallowed(t *testing.T) {
	ctx := context.Background()
	ledger, fb := newFaultyLedger(t)

	// Every sweep's Cleanup now fails at its first read; the primary
	// operation must still go through.
	fb.indexedReadErr = errBackendDown

	before := testutil.ToFloat64(mtxSweepErrors)
	id, err := ledger.Offer(ctx, OfferInput{OffererID: "u1", ItemRaw: "x"})
	require.NoError(t, err, "a failing sweep must not abort the offer")
	assert.Len(t, id, 8)
	assert.Equal(t, before+2, testutil.ToFloat64(mtxSweepErrors),
		"leading and trailing sweep each counted")

	fb.indexedReadErr = nil
	view, err := ledger.Recent(ctx, -1, -1)
	require.NoError(t, err)
	require.Len(t, view.InProgress, 1)
	assert.Equal(t, id, view.InProgress[0].OfferID)
}

func TestBackendFailuresPropagateUnmodified(t *testing.T) {
	ctx := context.Background()

	t.Run("offer append", func(t *testing.T) {
		ledger, fb := newFaultyLedger(t)
		fb.appendActiveErr = errBackendDown
		_, err := ledger.Offer(ctx, OfferInput{OffererID: "u1", ItemRaw: "x"})
		require.ErrorIs(t, err, errBackendDown)
		assert.Equal(t, errBackendDown, err, "propagated without wrapping")
	})

	t.Run("accept find", func(t *testing.T) {
		ledger, fb := newFaultyLedger(t)
		fb.findErr = errBackendDown
		ok, err := ledger.Accept(ctx, "whatever", "u2", "Ava")
		require.ErrorIs(t, err, errBackendDown)
		assert.False(t, ok)
	})

	t.Run("accept update", func(t *testing.T) {
		ledger, fb := newFaultyLedger(t)
		id, err := ledger.Offer(ctx, OfferInput{OffererID: "u1", ItemRaw: "x"})
		require.NoError(t, err)

		fb.updateErr = errBackendDown
		ok, err := ledger.Accept(ctx, id, "u2", "Ava")
		require.ErrorIs(t, err, errBackendDown)
		assert.False(t, ok)
	})

	t.Run("complete archive", func(t *testing.T) {
		ledger, fb := newFaultyLedger(t)
		id, err := ledger.Offer(ctx, OfferInput{OffererID: "u1", ItemRaw: "x"})
		require.NoError(t, err)

		fb.appendCompletedErr = errBackendDown
		ok, err := ledger.Complete(ctx, id)
		require.ErrorIs(t, err, errBackendDown)
		assert.False(t, ok)
	})

	t.Run("recent read", func(t *testing.T) {
		ledger, fb := newFaultyLedger(t)
		fb.readCompletedErr = errBackendDown
		_, err := ledger.Recent(ctx, -1, -1)
		require.ErrorIs(t, err, errBackendDown)
	})

	t.Run("cleanup read", func(t *testing.T) {
		ledger, fb := newFaultyLedger(t)
		fb.indexedReadErr = errBackendDown
		_, err := ledger.Cleanup(ctx, true)
		require.ErrorIs(t, err, errBackendDown)
		assert.Equal(t, errBackendDown, err, "propagated without wrapping")
	})
}

func TestEndToEndLifecycle(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newTestLedger(t)

	id, err := ledger.Offer(ctx, OfferInput{OffererID: "u1", OffererName: "Doug", ItemRaw: "Atlas Chassis"})
	require.NoError(t, err)
	require.Len(t, id, 8)

	ok, err := ledger.Accept(ctx, id, "u2", "Ava")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = ledger.Complete(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)

	view, err := ledger.Recent(ctx, 1, 1)
	require.NoError(t, err)
	assert.Empty(t, view.InProgress)
	require.Len(t, view.Completed, 1)
	rec := view.Completed[0]
	assert.Equal(t, id, rec.OfferID)
	assert.Equal(t, StatusCompleted, rec.Status)
	assert.Equal(t, "Atlas Chassis", rec.ItemRaw)
	assert.Equal(t, "Ava", rec.AccepterName)
	assert.GreaterOrEqual(t, rec.AcceptedTS, rec.CreatedTS)
	assert.GreaterOrEqual(t, rec.CompletedTS, rec.AcceptedTS)
}
