// Initialize the trade worksheets.
//
// What this tool does:
//  1. Ensures two tabs exist: ActiveTrades, CompletedTrades.
//  2. Ensures headers are present in strict order (rewrites on mismatch).
//  3. Applies classic setup (no attempt to create real Sheets Tables):
//     freeze header row, basic filter, status data validation, plain-text
//     formats for ids/timestamps, bold header + auto-resize columns.
//
// Usage:
//
//	export GOOGLE_SA_JSON_PATH="./service_account.json"
//	export GOOGLE_SHEET_ID="<your spreadsheet id>"
//	go run ./tools/sheets_setup
//
// Notes:
//   - The spreadsheet must be addressed by explicit id. Locating it by
//     display name (GOOGLE_SHEET_NAME) is intentionally not implemented;
//     the tool exits with an error when no id is given.
//   - Safe to re-run any time; data rows are never touched.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"google.golang.org/api/option"
	sheets "google.golang.org/api/sheets/v4"
)

const (
	activeTab    = "ActiveTrades"
	completedTab = "CompletedTrades"
)

var tradeHeaders = []string{
	"offer_id", "status", "item_raw", "item_norm",
	"offerer_id", "offerer_name", "accepter_id", "accepter_name",
	"created_ts", "accepted_ts", "completed_ts",
	"notes", "guild_id", "channel_id",
}

var statusAllowed = []string{"OPEN", "ACCEPTED", "COMPLETED", "CANCELLED"}

// 0-based column indices for API requests.
const statusCol = 1

var (
	timestampCols = []int{8, 9, 10} // created_ts, accepted_ts, completed_ts
	idCols        = []int{0, 4, 6, 12, 13}
)

func main() {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SHEET_ID"))
	saPath := os.Getenv("GOOGLE_SA_JSON_PATH")
	if saPath == "" {
		saPath = "./service_account.json"
	}
	if spreadsheetID == "" {
		fmt.Fprintln(os.Stderr, "ERROR: Set GOOGLE_SHEET_ID env var (lookup by GOOGLE_SHEET_NAME is not implemented).")
		os.Exit(2)
	}

	ctx := context.Background()
	svc, err := sheets.NewService(ctx,
		option.WithCredentialsFile(saPath),
		option.WithScopes(sheets.SpreadsheetsScope),
	)
	if err != nil {
		log.Fatalf("build sheets service: %v", err)
	}

	s := setup{svc: svc, spreadsheetID: spreadsheetID}
	activeID, completedID, err := s.ensureTradeSheets(ctx)
	if err != nil {
		log.Fatalf("setup: %v", err)
	}
	fmt.Printf("OK: %s (sheetId=%d), %s (sheetId=%d) initialized\n",
		activeTab, activeID, completedTab, completedID)
}

type setup struct {
	svc           *sheets.Service
	spreadsheetID string
}

// ensureTradeSheets is the idempotent initializer: tabs, strict headers,
// then per-tab freeze, filter, validation, text formats, bold + auto-resize.
func (s setup) ensureTradeSheets(ctx context.Context) (int64, int64, error) {
	colCount := len(tradeHeaders)
	activeID, err := s.addSheetIfMissing(ctx, activeTab, colCount)
	if err != nil {
		return 0, 0, err
	}
	completedID, err := s.addSheetIfMissing(ctx, completedTab, colCount)
	if err != nil {
		return 0, 0, err
	}
	for _, title := range []string{activeTab, completedTab} {
		if err := s.writeHeadersStrict(ctx, title); err != nil {
			return 0, 0, err
		}
	}

	textCols := append(append([]int(nil), idCols...), timestampCols...)
	for _, sid := range []int64{activeID, completedID} {
		reqs := []*sheets.Request{
			{UpdateSheetProperties: &sheets.UpdateSheetPropertiesRequest{
				Properties: &sheets.SheetProperties{
					SheetId:        sid,
					GridProperties: &sheets.GridProperties{FrozenRowCount: 1},
				},
				Fields: "gridProperties.frozenRowCount",
			}},
			{SetBasicFilter: &sheets.SetBasicFilterRequest{
				Filter: &sheets.BasicFilter{Range: &sheets.GridRange{
					SheetId: sid, StartRowIndex: 0, EndRowIndex: 10000,
					StartColumnIndex: 0, EndColumnIndex: int64(colCount),
				}},
			}},
			statusValidationReq(sid),
		}
		for _, c := range textCols {
			reqs = append(reqs, textFormatReq(sid, c))
		}
		reqs = append(reqs,
			&sheets.Request{RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId: sid, StartRowIndex: 0, EndRowIndex: 1,
					StartColumnIndex: 0, EndColumnIndex: int64(colCount),
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{TextFormat: &sheets.TextFormat{Bold: true}},
				},
				Fields: "userEnteredFormat.textFormat.bold",
			}},
			&sheets.Request{AutoResizeDimensions: &sheets.AutoResizeDimensionsRequest{
				Dimensions: &sheets.DimensionRange{
					SheetId: sid, Dimension: "COLUMNS", StartIndex: 0, EndIndex: int64(colCount),
				},
			}},
		)
		if _, err := s.batchUpdate(ctx, reqs...); err != nil {
			return 0, 0, err
		}
	}
	return activeID, completedID, nil
}

func statusValidationReq(sheetID int64) *sheets.Request {
	values := make([]*sheets.ConditionValue, 0, len(statusAllowed))
	for _, v := range statusAllowed {
		values = append(values, &sheets.ConditionValue{UserEnteredValue: v})
	}
	return &sheets.Request{RepeatCell: &sheets.RepeatCellRequest{
		Range: &sheets.GridRange{
			SheetId: sheetID, StartRowIndex: 1, EndRowIndex: 10000,
			StartColumnIndex: statusCol, EndColumnIndex: statusCol + 1,
		},
		Cell: &sheets.CellData{DataValidation: &sheets.DataValidationRule{
			Condition:    &sheets.BooleanCondition{Type: "ONE_OF_LIST", Values: values},
			Strict:       true,
			ShowCustomUi: true,
		}},
		Fields: "dataValidation",
	}}
}

func textFormatReq(sheetID int64, col int) *sheets.Request {
	return &sheets.Request{RepeatCell: &sheets.RepeatCellRequest{
		Range: &sheets.GridRange{
			SheetId: sheetID, StartRowIndex: 1, EndRowIndex: 10000,
			StartColumnIndex: int64(col), EndColumnIndex: int64(col) + 1,
		},
		Cell: &sheets.CellData{UserEnteredFormat: &sheets.CellFormat{
			NumberFormat: &sheets.NumberFormat{Type: "TEXT"},
		}},
		Fields: "userEnteredFormat.numberFormat",
	}}
}

func (s setup) batchUpdate(ctx context.Context, reqs ...*sheets.Request) (*sheets.BatchUpdateSpreadsheetResponse, error) {
	return s.svc.Spreadsheets.BatchUpdate(s.spreadsheetID,
		&sheets.BatchUpdateSpreadsheetRequest{Requests: reqs}).Context(ctx).Do()
}

func (s setup) addSheetIfMissing(ctx context.Context, title string, cols int) (int64, error) {
	meta, err := s.svc.Spreadsheets.Get(s.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return 0, err
	}
	for _, sh := range meta.Sheets {
		if sh.Properties.Title == title {
			return sh.Properties.SheetId, nil
		}
	}
	resp, err := s.batchUpdate(ctx, &sheets.Request{
		AddSheet: &sheets.AddSheetRequest{Properties: &sheets.SheetProperties{
			Title:          title,
			GridProperties: &sheets.GridProperties{RowCount: 1000, ColumnCount: int64(cols)},
		}},
	})
	if err != nil {
		return 0, err
	}
	return resp.Replies[0].AddSheet.Properties.SheetId, nil
}

func (s setup) writeHeadersStrict(ctx context.Context, title string) error {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, title+"!1:1").Context(ctx).Do()
	if err != nil {
		return err
	}
	if len(resp.Values) > 0 && len(resp.Values[0]) == len(tradeHeaders) {
		match := true
		for i, v := range resp.Values[0] {
			if fmt.Sprint(v) != tradeHeaders[i] {
				match = false
				break
			}
		}
		if match {
			return nil
		}
	}
	cells := make([]interface{}, len(tradeHeaders))
	for i, h := range tradeHeaders {
		cells[i] = h
	}
	rng := fmt.Sprintf("%s!A1:%s1", title, colA1(len(tradeHeaders)))
	_, err = s.svc.Spreadsheets.Values.Update(s.spreadsheetID, rng,
		&sheets.ValueRange{Values: [][]interface{}{cells}}).
		ValueInputOption("RAW").Context(ctx).Do()
	return err
}

// colA1: 1->A, 2->B, 27->AA ...
func colA1(n int) string {
	s := ""
	for n > 0 {
		n--
		s = string(rune('A'+n%26)) + s
		n /= 26
	}
	return s
}
