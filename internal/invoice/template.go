package invoice

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"soji/internal/core"
)

// Fixed cell positions of the invoice template.
const (
	cellBillingDate      = "N4"
	cellMonthLabel       = "C9"
	cellRegularCount     = "J20"
	cellExtraMinutes     = "J21"
	cellEmergencyMinutes = "J22"
	cellExpenseCount     = "J23"
	cellExpenseTotal     = "O23"
)

// Itemized rows are inserted below the header row of the template.
const itemStartRow = 7

// Workspace is the scratch-artifact contract a spreadsheet backend provides.
// CopyTemplate duplicates the invoice template into a working copy; every
// copy handed out must eventually be discarded by the caller.
type Workspace interface {
	CopyTemplate(ctx context.Context) (Scratch, error)
}

// Scratch is one working copy of the template.
type Scratch interface {
	SetCell(ctx context.Context, cell, value string) error
	ReplaceText(ctx context.Context, placeholder, value string) error
	InsertItemRows(ctx context.Context, startRow int, rows [][]string) error
	ExportPDF(ctx context.Context) ([]byte, error)
	Discard(ctx context.Context) error
}

// TemplateRenderer renders invoices by populating a copy of the spreadsheet
// template and exporting it as PDF. The scratch copy is discarded on every
// exit path, success or failure.
type TemplateRenderer struct {
	ws Workspace
}

func NewTemplateRenderer(ws Workspace) *TemplateRenderer {
	return &TemplateRenderer{ws: ws}
}

func (t *TemplateRenderer) Render(ctx context.Context, in RenderInput) (Document, error) {
	scratch, err := t.ws.CopyTemplate(ctx)
	if err != nil {
		return Document{}, fmt.Errorf("copy template: %w", err)
	}
	defer func() {
		// Cleanup must run even when the request context is already done.
		if err := scratch.Discard(context.WithoutCancel(ctx)); err != nil {
			slog.ErrorContext(ctx, "Failed to discard scratch copy", "error", err)
		}
	}()

	cells := []struct {
		cell  string
		value string
	}{
		{cellBillingDate, core.FormatBillingDate(in.BillingDate)},
		{cellMonthLabel, core.FormatMonthLabel(in.Month)},
		{cellRegularCount, strconv.Itoa(in.Summary.RegularCount)},
		{cellExtraMinutes, strconv.Itoa(in.Summary.ExtraMinutes)},
		{cellEmergencyMinutes, strconv.Itoa(in.Summary.EmergencyMinutes)},
		{cellExpenseCount, strconv.Itoa(in.Summary.ExpenseCount)},
		{cellExpenseTotal, strconv.Itoa(in.Summary.ExpenseTotal)},
	}
	for _, c := range cells {
		if err := scratch.SetCell(ctx, c.cell, c.value); err != nil {
			return Document{}, fmt.Errorf("set cell %s: %w", c.cell, err)
		}
	}

	totalAmount := 0
	for _, r := range in.Records {
		totalAmount += r.Amount
	}
	placeholders := []struct {
		name  string
		value string
	}{
		{"{{CLIENT_NAME}}", in.Settings.ClientName},
		{"{{REPORTER_NAME}}", in.Settings.ReporterName},
		{"{{MONTH}}", strings.Replace(in.Month, "-", "年", 1) + "月"},
		{"{{DATE}}", in.BillingDate.In(time.Local).Format("2006/01/02")},
		{"{{TOTAL_AMOUNT}}", core.FormatYen(totalAmount)},
	}
	for _, p := range placeholders {
		if err := scratch.ReplaceText(ctx, p.name, p.value); err != nil {
			return Document{}, fmt.Errorf("replace %s: %w", p.name, err)
		}
	}

	if err := scratch.InsertItemRows(ctx, itemStartRow, itemRows(in.Records)); err != nil {
		return Document{}, fmt.Errorf("insert item rows: %w", err)
	}

	pdf, err := scratch.ExportPDF(ctx)
	if err != nil {
		return Document{}, fmt.Errorf("export pdf: %w", err)
	}

	return Document{
		Filename: fmt.Sprintf("請求書_%s.pdf", in.Month),
		PDF:      pdf,
	}, nil
}

// itemRows builds the five-column itemized rows: date, item with note
// suffix, unit price, quantity, amount.
func itemRows(records []core.Record) [][]string {
	rows := make([][]string, len(records))
	for i, r := range records {
		item := r.Item
		if r.Note != "" {
			item += fmt.Sprintf(" (%s)", r.Note)
		}
		unitPrice := 0
		if r.UnitPrice != nil {
			unitPrice = *r.UnitPrice
		}
		rows[i] = []string{
			r.Date.In(time.Local).Format("2006-01-02"),
			item,
			core.FormatYen(unitPrice),
			core.FormatQuantity(r),
			core.FormatYen(r.Amount),
		}
	}
	return rows
}
