// Package invoice aggregates one month's records and renders the invoice PDF.
package invoice

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"soji/internal/core"
	"soji/internal/store"
)

// Document is a rendered invoice PDF.
type Document struct {
	Filename string
	PDF      []byte
}

// DataURL returns the document as a base64 data URL, the transport format
// the clients embed directly into a download link.
func (d Document) DataURL() string {
	return "data:application/pdf;base64," + base64.StdEncoding.EncodeToString(d.PDF)
}

// RenderInput carries everything a renderer needs for one invoice.
type RenderInput struct {
	Month       string // YYYY-MM
	BillingDate time.Time
	Records     []core.Record
	Summary     core.InvoiceSummary
	Settings    store.Settings
}

// Renderer turns aggregated month data into a PDF document.
type Renderer interface {
	Render(ctx context.Context, in RenderInput) (Document, error)
}

// Service orchestrates invoice generation: list, aggregate, render.
type Service struct {
	records  store.RecordStore
	renderer Renderer
	settings store.Settings
	now      func() time.Time
}

func NewService(records store.RecordStore, renderer Renderer, settings store.Settings) *Service {
	return &Service{
		records:  records,
		renderer: renderer,
		settings: settings,
		now:      time.Now,
	}
}

// Generate renders the invoice for one month. An empty month defaults to the
// previous calendar month (invoices are issued after the month closes); a
// zero billingDate defaults to today. A month without records yields
// core.ErrNoData before any scratch artifact is created.
func (s *Service) Generate(ctx context.Context, month string, billingDate time.Time) (Document, error) {
	if month == "" {
		month = core.PreviousMonth(s.now())
	}
	month = core.NormalizeMonth(month)

	records, err := s.records.ListByMonth(ctx, month, "")
	if err != nil {
		return Document{}, fmt.Errorf("list records for %s: %w", month, err)
	}
	if len(records) == 0 {
		return Document{}, core.ErrNoData
	}

	if billingDate.IsZero() {
		billingDate = s.now()
	}

	summary := core.Summarize(records)
	slog.InfoContext(ctx, "Generating invoice",
		"month", month,
		"records", len(records),
		"regular_count", summary.RegularCount,
		"extra_minutes", summary.ExtraMinutes,
		"emergency_minutes", summary.EmergencyMinutes,
		"expense_count", summary.ExpenseCount,
		"expense_total", summary.ExpenseTotal)

	doc, err := s.renderer.Render(ctx, RenderInput{
		Month:       month,
		BillingDate: billingDate,
		Records:     records,
		Summary:     summary,
		Settings:    s.settings,
	})
	if err != nil {
		return Document{}, fmt.Errorf("render invoice for %s: %w", month, err)
	}
	return doc, nil
}

// GenerateFromRecords renders an invoice from caller-supplied records
// instead of the store, for clients that hold the month's data themselves.
func (s *Service) GenerateFromRecords(ctx context.Context, records []core.Record, month string, billingDate time.Time) (Document, error) {
	if len(records) == 0 {
		return Document{}, core.ErrNoData
	}
	month = core.NormalizeMonth(month)
	if billingDate.IsZero() {
		billingDate = s.now()
	}

	doc, err := s.renderer.Render(ctx, RenderInput{
		Month:       month,
		BillingDate: billingDate,
		Records:     records,
		Summary:     core.Summarize(records),
		Settings:    s.settings,
	})
	if err != nil {
		return Document{}, fmt.Errorf("render invoice for %s: %w", month, err)
	}
	return doc, nil
}
