// Package gsheet backs the invoice workspace with the Google Sheets API.
package gsheet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"soji/internal/invoice"
)

const exportURLFormat = "https://docs.google.com/spreadsheets/d/%s/export"

type Workspace struct {
	svc           *gsheet.Service
	export        *resty.Client
	tokens        oauth2.TokenSource
	spreadsheetID string
	templateSheet string
	now           func() time.Time
}

// Ensure interface conformance
var _ invoice.Workspace = (*Workspace)(nil)

// NewFromEnv creates a workspace using environment variables.
// Required: GOOGLE_SPREADSHEET_ID
// Optional: INVOICE_TEMPLATE_SHEET (default "InvoiceTemplate"),
// GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or
// GOOGLE_APPLICATION_CREDENTIALS for auth.
func NewFromEnv(ctx context.Context) (*Workspace, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	templateSheet := strings.TrimSpace(os.Getenv("INVOICE_TEMPLATE_SHEET"))
	if templateSheet == "" {
		templateSheet = "InvoiceTemplate"
	}

	credentialsJSON, err := readCredentials(ctx)
	if err != nil {
		return nil, err
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope, gsheet.DriveReadonlyScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	// The PDF export endpoint is plain HTTP, outside the Sheets API surface,
	// so it needs its own bearer token source.
	creds, err := google.CredentialsFromJSON(ctx, credentialsJSON,
		gsheet.SpreadsheetsScope, gsheet.DriveReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}

	export := resty.New().
		SetTimeout(60 * time.Second)

	return &Workspace{
		svc:           svc,
		export:        export,
		tokens:        creds.TokenSource,
		spreadsheetID: spreadsheetID,
		templateSheet: templateSheet,
		now:           time.Now,
	}, nil
}

// readCredentials resolves service account JSON from
// GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or
// GOOGLE_APPLICATION_CREDENTIALS.
func readCredentials(ctx context.Context) ([]byte, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case serviceAccountJSON != "":
		return []byte(serviceAccountJSON), nil
	case serviceAccountFile != "":
		data, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return data, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// CopyTemplate duplicates the template sheet under a timestamped scratch
// name. The timestamp suffix keeps concurrent generations from colliding.
func (w *Workspace) CopyTemplate(ctx context.Context) (invoice.Scratch, error) {
	templateID, err := w.sheetIDByTitle(ctx, w.templateSheet)
	if err != nil {
		return nil, err
	}

	name := fmt.Sprintf("TempInvoice_%d", w.now().UnixMilli())
	resp, err := w.svc.Spreadsheets.BatchUpdate(w.spreadsheetID, &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			DuplicateSheet: &gsheet.DuplicateSheetRequest{
				SourceSheetId: templateID,
				NewSheetName:  name,
			},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("duplicate template sheet: %w", err)
	}
	if len(resp.Replies) == 0 || resp.Replies[0].DuplicateSheet == nil {
		return nil, errors.New("duplicate template sheet: empty reply")
	}

	sheetID := resp.Replies[0].DuplicateSheet.Properties.SheetId
	slog.InfoContext(ctx, "Created scratch sheet", "name", name, "sheet_id", sheetID)

	return &scratch{ws: w, sheetID: sheetID, name: name}, nil
}

func (w *Workspace) sheetIDByTitle(ctx context.Context, title string) (int64, error) {
	ss, err := w.svc.Spreadsheets.Get(w.spreadsheetID).
		Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("get spreadsheet: %w", err)
	}
	for _, sheet := range ss.Sheets {
		if sheet.Properties != nil && sheet.Properties.Title == title {
			return sheet.Properties.SheetId, nil
		}
	}
	return 0, fmt.Errorf("sheet %q not found", title)
}

type scratch struct {
	ws      *Workspace
	sheetID int64
	name    string
}

func (s *scratch) SetCell(ctx context.Context, cell, value string) error {
	rng := fmt.Sprintf("%s!%s", s.name, cell)
	vr := &gsheet.ValueRange{Values: [][]any{{value}}}
	_, err := s.ws.svc.Spreadsheets.Values.Update(s.ws.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", rng, err)
	}
	return nil
}

func (s *scratch) ReplaceText(ctx context.Context, placeholder, value string) error {
	_, err := s.ws.svc.Spreadsheets.BatchUpdate(s.ws.spreadsheetID, &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			FindReplace: &gsheet.FindReplaceRequest{
				Find:        placeholder,
				Replacement: value,
				SheetId:     s.sheetID,
				MatchCase:   true,
			},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("replace %s: %w", placeholder, err)
	}
	return nil
}

func (s *scratch) InsertItemRows(ctx context.Context, startRow int, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}

	_, err := s.ws.svc.Spreadsheets.BatchUpdate(s.ws.spreadsheetID, &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			InsertDimension: &gsheet.InsertDimensionRequest{
				Range: &gsheet.DimensionRange{
					SheetId:    s.sheetID,
					Dimension:  "ROWS",
					StartIndex: int64(startRow - 1),
					EndIndex:   int64(startRow - 1 + len(rows)),
				},
			},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("insert %d rows: %w", len(rows), err)
	}

	values := make([][]any, len(rows))
	for i, row := range rows {
		cells := make([]any, len(row))
		for j, v := range row {
			cells[j] = v
		}
		values[i] = cells
	}
	rng := fmt.Sprintf("%s!A%d:E%d", s.name, startRow, startRow+len(rows)-1)
	_, err = s.ws.svc.Spreadsheets.Values.Update(s.ws.spreadsheetID, rng, &gsheet.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", rng, err)
	}
	return nil
}

func (s *scratch) ExportPDF(ctx context.Context) ([]byte, error) {
	token, err := s.ws.tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("export token: %w", err)
	}

	resp, err := s.ws.export.R().
		SetContext(ctx).
		SetAuthToken(token.AccessToken).
		SetQueryParams(map[string]string{
			"exportFormat": "pdf",
			"format":       "pdf",
			"size":         "A4",
			"portrait":     "true",
			"fitw":         "true",
			"gridlines":    "false",
			"printtitle":   "false",
			"sheetnames":   "false",
			"rownumbers":   "false",
			"gid":          strconv.FormatInt(s.sheetID, 10),
		}).
		Get(fmt.Sprintf(exportURLFormat, s.ws.spreadsheetID))
	if err != nil {
		return nil, fmt.Errorf("fetch pdf export: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("pdf export returned %s", resp.Status())
	}
	return resp.Body(), nil
}

func (s *scratch) Discard(ctx context.Context) error {
	_, err := s.ws.svc.Spreadsheets.BatchUpdate(s.ws.spreadsheetID, &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			DeleteSheet: &gsheet.DeleteSheetRequest{SheetId: s.sheetID},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("delete scratch sheet %s: %w", s.name, err)
	}
	return nil
}
