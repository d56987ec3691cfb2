// FILE: backend.go
// Package main – Storage abstractions shared by all persistence backends.
//
// This file defines the minimal interface the ledger needs to talk to a
// row-oriented table store (in-memory or Google Sheets):
//   • Backend interface: append/update/read/find/delete on the active tab,
//     append/read on the completed tab
//   • IndexedRow: a positional row paired with its 1-based sheet row index
//
// Two concrete implementations live in separate files:
//   • backend_memory.go – in-memory backend (no external calls)
//   • backend_sheets.go – Google Sheets API v4 backend
//
// Index convention: row indices are 1-based and include the header row, so
// the first data row is index 2 — exactly the row numbers a human sees in
// the sheet. Indices are positional and shift on deletion; DeleteActiveRows
// therefore processes them in descending order, and callers must not cache
// an index across calls that may mutate the table.

package main

import "context"

// IndexedRow pairs a 1-based row index with its positional values.
type IndexedRow struct {
	Index int
	Cells []string
}

// Backend is the minimal surface the ledger needs to persist trades.
//
// Rows handed to Append* are positional in canonical column order; rows
// handed back from Read* are length-normalized (see normalizeRow) so every
// column is addressable. Uniqueness of offer_id is the caller's job, not
// the backend's. The Sheets backend surfaces any transport/API failure to
// the caller unmodified (no local retry); the memory backend cannot fail
// except via programming error (out-of-range index), which panics.
type Backend interface {
	Name() string

	// EnsureInitialized guarantees both tabs exist with the canonical header
	// row. Idempotent; safe on every process start; never touches data rows.
	EnsureInitialized(ctx context.Context) error

	AppendActive(ctx context.Context, row []string) error
	UpdateActiveCell(ctx context.Context, rowIdx1, colIdx0 int, value string) error
	ReadActiveRow(ctx context.Context, rowIdx1 int) (TradeRecord, error)

	// FindActiveRowIndex scans the active tab in order and returns the
	// 1-based index of the first row whose offer_id matches, or 0 when the
	// offer is not present.
	FindActiveRowIndex(ctx context.Context, offerID string) (int, error)

	// ReadActiveAll returns all data rows (header excluded) in table order.
	ReadActiveAll(ctx context.Context) ([]TradeRecord, error)

	// ReadActiveRowsWithIndices returns all data rows paired with their
	// current 1-based indices, for the cleanup move-then-delete pass.
	ReadActiveRowsWithIndices(ctx context.Context) ([]IndexedRow, error)

	// DeleteActiveRows removes the given rows, processing indices in
	// descending order so earlier deletions do not shift rows not yet
	// deleted. No-op on empty input.
	DeleteActiveRows(ctx context.Context, rowIndices1 []int) error

	AppendCompleted(ctx context.Context, row []string) error

	// AppendCompletedRows is the batch form; no-op on empty input.
	AppendCompletedRows(ctx context.Context, rows [][]string) error

	ReadCompletedAll(ctx context.Context) ([]TradeRecord, error)
}
