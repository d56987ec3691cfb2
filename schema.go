// FILE: schema.go
// Package main – Canonical row schema shared by every component.
//
// This file pins down the one thing everything else depends on:
//   • tradeHeaders: the fixed, ordered column list used by BOTH tabs
//   • Status constants: OPEN, ACCEPTED, COMPLETED, CANCELLED
//   • TradeRecord: a typed view of one row, convertible to/from the
//     positional form the backends speak
//   • normalizeRow: the read-boundary length fixup (pad short rows with "",
//     truncate long rows) so callers never see a ragged row
//   • colA1 / utcNow: tiny helpers for A1 addressing and timestamps
//
// Column order is identical across ActiveTrades and CompletedTrades; a row
// appended to either tab is exactly tradeHeaders-long.

package main

import "time"

// Tab titles in the spreadsheet (and the two slices of the memory backend).
const (
	activeTab    = "ActiveTrades"
	completedTab = "CompletedTrades"
)

// Status values a trade moves through. The engine only ever writes the first
// three; CANCELLED arrives from outside (a human editing the sheet) and is
// treated purely as another terminal state for sweeping.
const (
	StatusOpen      = "OPEN"
	StatusAccepted  = "ACCEPTED"
	StatusCompleted = "COMPLETED"
	StatusCancelled = "CANCELLED"
)

var statusAllowed = []string{StatusOpen, StatusAccepted, StatusCompleted, StatusCancelled}

// tradeHeaders is the canonical column order, 1-indexed from column A in the
// sheet. The header row of each tab must match this list exactly.
var tradeHeaders = []string{
	"offer_id", "status", "item_raw", "item_norm",
	"offerer_id", "offerer_name", "accepter_id", "accepter_name",
	"created_ts", "accepted_ts", "completed_ts",
	"notes", "guild_id", "channel_id",
}

// 0-based column indices into tradeHeaders.
const (
	colOfferID = iota
	colStatus
	colItemRaw
	colItemNorm
	colOffererID
	colOffererName
	colAccepterID
	colAccepterName
	colCreatedTS
	colAcceptedTS
	colCompletedTS
	colNotes
	colGuildID
	colChannelID
)

// Columns provisioned as plain text so Sheets never reformats ids or
// timestamps into numbers/dates behind our back.
var (
	timestampCols = []int{colCreatedTS, colAcceptedTS, colCompletedTS}
	idCols        = []int{colOfferID, colOffererID, colAccepterID, colGuildID, colChannelID}
)

// TradeRecord is one row of either tab, field-name keyed.
type TradeRecord struct {
	OfferID      string
	Status       string
	ItemRaw      string
	ItemNorm     string
	OffererID    string
	OffererName  string
	AccepterID   string
	AccepterName string
	CreatedTS    string
	AcceptedTS   string
	CompletedTS  string
	Notes        string
	GuildID      string
	ChannelID    string
}

// Row converts the record to its positional form in canonical column order.
func (r TradeRecord) Row() []string {
	return []string{
		r.OfferID, r.Status, r.ItemRaw, r.ItemNorm,
		r.OffererID, r.OffererName, r.AccepterID, r.AccepterName,
		r.CreatedTS, r.AcceptedTS, r.CompletedTS,
		r.Notes, r.GuildID, r.ChannelID,
	}
}

// recordFromRow builds a TradeRecord from a positional row. The row is
// length-normalized first, so short/long rows from storage are safe.
func recordFromRow(row []string) TradeRecord {
	row = normalizeRow(row)
	return TradeRecord{
		OfferID:      row[colOfferID],
		Status:       row[colStatus],
		ItemRaw:      row[colItemRaw],
		ItemNorm:     row[colItemNorm],
		OffererID:    row[colOffererID],
		OffererName:  row[colOffererName],
		AccepterID:   row[colAccepterID],
		AccepterName: row[colAccepterName],
		CreatedTS:    row[colCreatedTS],
		AcceptedTS:   row[colAcceptedTS],
		CompletedTS:  row[colCompletedTS],
		Notes:        row[colNotes],
		GuildID:      row[colGuildID],
		ChannelID:    row[colChannelID],
	}
}

// normalizeRow pads a short row with empty strings and truncates a long one
// to schema length. This happens at the read boundary; callers can index any
// column of the result without checking length.
func normalizeRow(row []string) []string {
	out := make([]string, len(tradeHeaders))
	copy(out, row)
	return out
}

// isTerminalStatus reports whether s (already uppercased by the caller when
// it came from storage) is a state the engine never transitions out of.
func isTerminalStatus(s string) bool {
	return s == StatusCompleted || s == StatusCancelled
}

// utcNow returns the current time as ISO-8601 UTC with second precision and
// a literal Z suffix, e.g. "2026-08-25T14:03:07Z".
func utcNow() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05Z")
}

// colA1 converts a 1-based column number to its A1 letter form:
// 1->A, 26->Z, 27->AA, ...
func colA1(n int) string {
	s := ""
	for n > 0 {
		n--
		s = string(rune('A'+n%26)) + s
		n /= 26
	}
	return s
}
