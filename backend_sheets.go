// FILE: backend_sheets.go
// Package main – Google Sheets backend (API v4).
//
// Durable backend persisting both tabs in one spreadsheet. Reads and writes
// go through the values API with RAW input (no cell parsing by Sheets);
// structural changes (add tab, delete rows) and provisioning (freeze,
// filter, validation, formats) go through batchUpdate.
//
// Failure model: every Sheets API error is returned to the caller
// unmodified — no retry, no classification. The ledger decides what is
// swallowed (its sweep) and what propagates (everything else).
//
// Credentials: a service-account JSON file, path from config. The
// spreadsheet is addressed by explicit id only.

package main

import (
	"context"
	"fmt"
	"sort"

	"google.golang.org/api/option"
	sheets "google.golang.org/api/sheets/v4"
)

// SheetsBackend talks to a single spreadsheet holding both tabs.
type SheetsBackend struct {
	svc           *sheets.Service
	spreadsheetID string
}

// NewSheetsBackend builds the API client from a service-account file. A
// missing/unreadable credentials file or empty spreadsheet id is a
// construction-time error; the process should not proceed without it.
func NewSheetsBackend(ctx context.Context, spreadsheetID, credentialsPath string) (*SheetsBackend, error) {
	if spreadsheetID == "" {
		return nil, fmt.Errorf("sheets backend: GOOGLE_SHEET_ID must be set")
	}
	svc, err := sheets.NewService(ctx,
		option.WithCredentialsFile(credentialsPath),
		option.WithScopes(sheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("sheets backend: build service: %w", err)
	}
	return &SheetsBackend{svc: svc, spreadsheetID: spreadsheetID}, nil
}

func (s *SheetsBackend) Name() string { return "sheets" }

// --- Setup helpers ---

// sheetIDsByTitle maps tab titles to their numeric sheet ids.
func (s *SheetsBackend) sheetIDsByTitle(ctx context.Context) (map[string]int64, error) {
	meta, err := s.svc.Spreadsheets.Get(s.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(meta.Sheets))
	for _, sh := range meta.Sheets {
		out[sh.Properties.Title] = sh.Properties.SheetId
	}
	return out, nil
}

func (s *SheetsBackend) addSheetIfMissing(ctx context.Context, title string, cols int) (int64, error) {
	ids, err := s.sheetIDsByTitle(ctx)
	if err != nil {
		return 0, err
	}
	if id, ok := ids[title]; ok {
		return id, nil
	}
	resp, err := s.batchUpdate(ctx, &sheets.Request{
		AddSheet: &sheets.AddSheetRequest{
			Properties: &sheets.SheetProperties{
				Title:          title,
				GridProperties: &sheets.GridProperties{RowCount: 1000, ColumnCount: int64(cols)},
			},
		},
	})
	if err != nil {
		return 0, err
	}
	return resp.Replies[0].AddSheet.Properties.SheetId, nil
}

func (s *SheetsBackend) batchUpdate(ctx context.Context, reqs ...*sheets.Request) (*sheets.BatchUpdateSpreadsheetResponse, error) {
	return s.svc.Spreadsheets.BatchUpdate(s.spreadsheetID,
		&sheets.BatchUpdateSpreadsheetRequest{Requests: reqs}).Context(ctx).Do()
}

func (s *SheetsBackend) readHeaderRow(ctx context.Context, title string) ([]string, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, title+"!1:1").Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	if len(resp.Values) == 0 {
		return nil, nil
	}
	return cellsToRow(resp.Values[0]), nil
}

// writeHeadersStrict rewrites the full header row whenever it does not match
// the canonical list exactly (case, order, length). Never a partial patch.
func (s *SheetsBackend) writeHeadersStrict(ctx context.Context, title string) error {
	row1, err := s.readHeaderRow(ctx, title)
	if err != nil {
		return err
	}
	if equalRows(row1, tradeHeaders) {
		return nil
	}
	rng := fmt.Sprintf("%s!A1:%s1", title, colA1(len(tradeHeaders)))
	_, err = s.svc.Spreadsheets.Values.Update(s.spreadsheetID, rng,
		&sheets.ValueRange{Values: [][]interface{}{rowToCells(tradeHeaders)}}).
		ValueInputOption("RAW").Context(ctx).Do()
	return err
}

func (s *SheetsBackend) freezeHeader(ctx context.Context, sheetID int64) error {
	_, err := s.batchUpdate(ctx, &sheets.Request{
		UpdateSheetProperties: &sheets.UpdateSheetPropertiesRequest{
			Properties: &sheets.SheetProperties{
				SheetId:        sheetID,
				GridProperties: &sheets.GridProperties{FrozenRowCount: 1},
			},
			Fields: "gridProperties.frozenRowCount",
		},
	})
	return err
}

func (s *SheetsBackend) basicFilter(ctx context.Context, sheetID int64, colCount int) error {
	_, err := s.batchUpdate(ctx, &sheets.Request{
		SetBasicFilter: &sheets.SetBasicFilterRequest{
			Filter: &sheets.BasicFilter{
				Range: &sheets.GridRange{
					SheetId:          sheetID,
					StartRowIndex:    0,
					EndRowIndex:      10000,
					StartColumnIndex: 0,
					EndColumnIndex:   int64(colCount),
				},
			},
		},
	})
	return err
}

// textFormatCols forces plain-text cell format on id and timestamp columns
// so Sheets does not coerce "00123456" or an ISO timestamp into a number.
func (s *SheetsBackend) textFormatCols(ctx context.Context, sheetID int64, columns []int) error {
	reqs := make([]*sheets.Request, 0, len(columns))
	for _, c := range columns {
		reqs = append(reqs, &sheets.Request{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          sheetID,
					StartRowIndex:    1, // skip header
					EndRowIndex:      10000,
					StartColumnIndex: int64(c),
					EndColumnIndex:   int64(c) + 1,
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						NumberFormat: &sheets.NumberFormat{Type: "TEXT"},
					},
				},
				Fields: "userEnteredFormat.numberFormat",
			},
		})
	}
	_, err := s.batchUpdate(ctx, reqs...)
	return err
}

// statusValidation restricts the status column to the four allowed values.
func (s *SheetsBackend) statusValidation(ctx context.Context, sheetID int64) error {
	values := make([]*sheets.ConditionValue, 0, len(statusAllowed))
	for _, v := range statusAllowed {
		values = append(values, &sheets.ConditionValue{UserEnteredValue: v})
	}
	_, err := s.batchUpdate(ctx, &sheets.Request{
		RepeatCell: &sheets.RepeatCellRequest{
			Range: &sheets.GridRange{
				SheetId:          sheetID,
				StartRowIndex:    1,
				EndRowIndex:      10000,
				StartColumnIndex: colStatus,
				EndColumnIndex:   colStatus + 1,
			},
			Cell: &sheets.CellData{
				DataValidation: &sheets.DataValidationRule{
					Condition:    &sheets.BooleanCondition{Type: "ONE_OF_LIST", Values: values},
					Strict:       true,
					ShowCustomUi: true,
				},
			},
			Fields: "dataValidation",
		},
	})
	return err
}

func (s *SheetsBackend) boldHeaderAndAutosize(ctx context.Context, sheetID int64, colCount int) error {
	_, err := s.batchUpdate(ctx,
		&sheets.Request{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          sheetID,
					StartRowIndex:    0,
					EndRowIndex:      1,
					StartColumnIndex: 0,
					EndColumnIndex:   int64(colCount),
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{TextFormat: &sheets.TextFormat{Bold: true}},
				},
				Fields: "userEnteredFormat.textFormat.bold",
			},
		},
		&sheets.Request{
			AutoResizeDimensions: &sheets.AutoResizeDimensionsRequest{
				Dimensions: &sheets.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "COLUMNS",
					StartIndex: 0,
					EndIndex:   int64(colCount),
				},
			},
		},
	)
	return err
}

// --- Backend interface ---

// EnsureInitialized creates missing tabs, enforces headers, and applies the
// classic setup (freeze/filter/validation/formats). Idempotent; data rows
// are never touched.
func (s *SheetsBackend) EnsureInitialized(ctx context.Context) error {
	colCount := len(tradeHeaders)
	activeID, err := s.addSheetIfMissing(ctx, activeTab, colCount)
	if err != nil {
		return err
	}
	completedID, err := s.addSheetIfMissing(ctx, completedTab, colCount)
	if err != nil {
		return err
	}
	if err := s.writeHeadersStrict(ctx, activeTab); err != nil {
		return err
	}
	if err := s.writeHeadersStrict(ctx, completedTab); err != nil {
		return err
	}
	textCols := append(append([]int(nil), idCols...), timestampCols...)
	for _, sid := range []int64{activeID, completedID} {
		if err := s.freezeHeader(ctx, sid); err != nil {
			return err
		}
		if err := s.basicFilter(ctx, sid, colCount); err != nil {
			return err
		}
		if err := s.statusValidation(ctx, sid); err != nil {
			return err
		}
		if err := s.textFormatCols(ctx, sid, textCols); err != nil {
			return err
		}
		if err := s.boldHeaderAndAutosize(ctx, sid, colCount); err != nil {
			return err
		}
	}
	return nil
}

func (s *SheetsBackend) appendRows(ctx context.Context, title string, rows [][]string) error {
	values := make([][]interface{}, 0, len(rows))
	for _, row := range rows {
		values = append(values, rowToCells(row))
	}
	_, err := s.svc.Spreadsheets.Values.Append(s.spreadsheetID, title+"!A:A",
		&sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	return err
}

func (s *SheetsBackend) AppendActive(ctx context.Context, row []string) error {
	return s.appendRows(ctx, activeTab, [][]string{row})
}

func (s *SheetsBackend) UpdateActiveCell(ctx context.Context, rowIdx1, colIdx0 int, value string) error {
	cell := fmt.Sprintf("%s!%s%d", activeTab, colA1(colIdx0+1), rowIdx1)
	_, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, cell,
		&sheets.ValueRange{Values: [][]interface{}{{value}}}).
		ValueInputOption("RAW").Context(ctx).Do()
	return err
}

func (s *SheetsBackend) ReadActiveRow(ctx context.Context, rowIdx1 int) (TradeRecord, error) {
	rng := fmt.Sprintf("%s!A%d:%s%d", activeTab, rowIdx1, colA1(len(tradeHeaders)), rowIdx1)
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return TradeRecord{}, err
	}
	if len(resp.Values) == 0 {
		return TradeRecord{}, nil
	}
	return recordFromRow(cellsToRow(resp.Values[0])), nil
}

func (s *SheetsBackend) FindActiveRowIndex(ctx context.Context, offerID string) (int, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, activeTab+"!A:A").Context(ctx).Do()
	if err != nil {
		return 0, err
	}
	for i, row := range resp.Values {
		if len(row) > 0 && fmt.Sprint(row[0]) == offerID {
			return i + 1, nil
		}
	}
	return 0, nil
}

func (s *SheetsBackend) readAll(ctx context.Context, title string) ([][]string, error) {
	rng := fmt.Sprintf("%s!A2:%s", title, colA1(len(tradeHeaders)))
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	rows := make([][]string, 0, len(resp.Values))
	for _, cells := range resp.Values {
		rows = append(rows, cellsToRow(cells))
	}
	return rows, nil
}

func (s *SheetsBackend) ReadActiveAll(ctx context.Context) ([]TradeRecord, error) {
	rows, err := s.readAll(ctx, activeTab)
	if err != nil {
		return nil, err
	}
	out := make([]TradeRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, recordFromRow(row))
	}
	return out, nil
}

func (s *SheetsBackend) ReadActiveRowsWithIndices(ctx context.Context) ([]IndexedRow, error) {
	rows, err := s.readAll(ctx, activeTab)
	if err != nil {
		return nil, err
	}
	out := make([]IndexedRow, 0, len(rows))
	for i, row := range rows {
		out = append(out, IndexedRow{Index: i + 2, Cells: normalizeRow(row)})
	}
	return out, nil
}

func (s *SheetsBackend) DeleteActiveRows(ctx context.Context, rowIndices1 []int) error {
	if len(rowIndices1) == 0 {
		return nil
	}
	ids, err := s.sheetIDsByTitle(ctx)
	if err != nil {
		return err
	}
	sheetID, ok := ids[activeTab]
	if !ok {
		return fmt.Errorf("sheets backend: tab %q not found", activeTab)
	}
	// Descending order: deleting a later row never shifts an earlier one.
	idxs := append([]int(nil), rowIndices1...)
	sort.Sort(sort.Reverse(sort.IntSlice(idxs)))
	reqs := make([]*sheets.Request, 0, len(idxs))
	for _, idx := range idxs {
		reqs = append(reqs, &sheets.Request{
			DeleteDimension: &sheets.DeleteDimensionRequest{
				Range: &sheets.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: int64(idx - 1),
					EndIndex:   int64(idx),
				},
			},
		})
	}
	_, err = s.batchUpdate(ctx, reqs...)
	return err
}

func (s *SheetsBackend) AppendCompleted(ctx context.Context, row []string) error {
	return s.appendRows(ctx, completedTab, [][]string{row})
}

func (s *SheetsBackend) AppendCompletedRows(ctx context.Context, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}
	return s.appendRows(ctx, completedTab, rows)
}

func (s *SheetsBackend) ReadCompletedAll(ctx context.Context) ([]TradeRecord, error) {
	rows, err := s.readAll(ctx, completedTab)
	if err != nil {
		return nil, err
	}
	out := make([]TradeRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, recordFromRow(row))
	}
	return out, nil
}

// --- cell conversions ---

func rowToCells(row []string) []interface{} {
	out := make([]interface{}, len(row))
	for i, v := range row {
		out[i] = v
	}
	return out
}

func cellsToRow(cells []interface{}) []string {
	out := make([]string, len(cells))
	for i, v := range cells {
		if v == nil {
			continue
		}
		out[i] = fmt.Sprint(v)
	}
	return out
}

func equalRows(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
