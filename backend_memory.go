// FILE: backend_memory.go
// Package main – In-memory backend (no external dependencies).
//
// This backend keeps both tabs as [][]string with the header row at slice
// index 0, so 1-based sheet indices map to slice positions with a plain
// idx-1. It is used for local/offline runs and as the workhorse of the
// behavioral test suite; the ledger code cannot tell it apart from Sheets.
//
// Failure model: operations here cannot fail. An out-of-range index is a
// caller bug, not a recoverable condition, and panics via normal slice
// indexing rather than returning an error.

package main

import (
	"context"
	"sort"
	"sync"
)

// MemoryBackend stores both tabs in process memory behind one mutex.
type MemoryBackend struct {
	mu        sync.Mutex
	active    [][]string // index 0 is the header row
	completed [][]string
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		active:    [][]string{append([]string(nil), tradeHeaders...)},
		completed: [][]string{append([]string(nil), tradeHeaders...)},
	}
}

func (m *MemoryBackend) Name() string { return "memory" }

// EnsureInitialized is a no-op: both tabs are born with their header row.
func (m *MemoryBackend) EnsureInitialized(ctx context.Context) error { return nil }

func (m *MemoryBackend) AppendActive(ctx context.Context, row []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = append(m.active, append([]string(nil), row...))
	return nil
}

func (m *MemoryBackend) UpdateActiveCell(ctx context.Context, rowIdx1, colIdx0 int, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active[rowIdx1-1][colIdx0] = value
	return nil
}

func (m *MemoryBackend) ReadActiveRow(ctx context.Context, rowIdx1 int) (TradeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return recordFromRow(m.active[rowIdx1-1]), nil
}

func (m *MemoryBackend) FindActiveRowIndex(ctx context.Context, offerID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, row := range m.active {
		if i == 0 {
			continue // header
		}
		if len(row) > 0 && row[colOfferID] == offerID {
			return i + 1, nil
		}
	}
	return 0, nil
}

func (m *MemoryBackend) ReadActiveAll(ctx context.Context) ([]TradeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]TradeRecord, 0, len(m.active)-1)
	for _, row := range m.active[1:] {
		out = append(out, recordFromRow(row))
	}
	return out, nil
}

func (m *MemoryBackend) ReadActiveRowsWithIndices(ctx context.Context) ([]IndexedRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]IndexedRow, 0, len(m.active)-1)
	for i := 1; i < len(m.active); i++ {
		out = append(out, IndexedRow{Index: i + 1, Cells: normalizeRow(m.active[i])})
	}
	return out, nil
}

func (m *MemoryBackend) DeleteActiveRows(ctx context.Context, rowIndices1 []int) error {
	if len(rowIndices1) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	idxs := append([]int(nil), rowIndices1...)
	sort.Sort(sort.Reverse(sort.IntSlice(idxs)))
	for _, idx := range idxs {
		m.active = append(m.active[:idx-1], m.active[idx:]...)
	}
	return nil
}

func (m *MemoryBackend) AppendCompleted(ctx context.Context, row []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completed = append(m.completed, append([]string(nil), row...))
	return nil
}

func (m *MemoryBackend) AppendCompletedRows(ctx context.Context, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range rows {
		m.completed = append(m.completed, append([]string(nil), row...))
	}
	return nil
}

func (m *MemoryBackend) ReadCompletedAll(ctx context.Context) ([]TradeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]TradeRecord, 0, len(m.completed)-1)
	for _, row := range m.completed[1:] {
		out = append(out, recordFromRow(row))
	}
	return out, nil
}
