// Package worker runs deferred invoice generation jobs.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"soji/internal/core"
	"soji/internal/invoice"
	"soji/internal/queue"
)

// InvoiceWorker consumes invoice jobs and writes the rendered PDFs into the
// output directory.
type InvoiceWorker struct {
	service   *invoice.Service
	outputDir string
}

func NewInvoiceWorker(service *invoice.Service, outputDir string) *InvoiceWorker {
	return &InvoiceWorker{
		service:   service,
		outputDir: outputDir,
	}
}

// HandleJob processes a single invoice job. A month without records is final
// and must not be retried, so ErrNoData is logged and swallowed; any other
// failure propagates and the delivery is requeued.
func (w *InvoiceWorker) HandleJob(ctx context.Context, job *queue.InvoiceJob) error {
	slog.InfoContext(ctx, "Processing invoice job",
		"month", job.Month,
		"requested_by", job.RequestedBy)

	var billingDate time.Time
	if job.BillingDate != "" {
		d, err := time.ParseInLocation("2006-01-02", job.BillingDate, time.Local)
		if err != nil {
			// Malformed date is permanent; bill as of today instead of
			// bouncing the job forever.
			slog.WarnContext(ctx, "Invalid billing date in job, using today",
				"billing_date", job.BillingDate, "error", err)
		} else {
			billingDate = d
		}
	}

	doc, err := w.service.Generate(ctx, job.Month, billingDate)
	if errors.Is(err, core.ErrNoData) {
		slog.InfoContext(ctx, "No records for month, skipping invoice", "month", job.Month)
		return nil
	}
	if err != nil {
		return fmt.Errorf("generate invoice: %w", err)
	}

	path, err := w.writePDF(doc)
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Invoice written",
		"month", job.Month,
		"path", path,
		"size", len(doc.PDF))
	return nil
}

func (w *InvoiceWorker) writePDF(doc invoice.Document) (string, error) {
	if err := os.MkdirAll(w.outputDir, 0755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	path := filepath.Join(w.outputDir, doc.Filename)
	if err := os.WriteFile(path, doc.PDF, 0644); err != nil {
		return "", fmt.Errorf("write invoice pdf: %w", err)
	}
	return path, nil
}
