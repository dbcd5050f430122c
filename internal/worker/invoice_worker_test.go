package worker

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"soji/internal/core"
	"soji/internal/invoice"
	invmem "soji/internal/invoice/memory"
	"soji/internal/queue"
	"soji/internal/store"
	storemem "soji/internal/store/memory"
)

func newWorker(t *testing.T, records *storemem.RecordStore, ws *invmem.Workspace) *InvoiceWorker {
	t.Helper()
	svc := invoice.NewService(records, invoice.NewTemplateRenderer(ws), store.Settings{PIN: store.DefaultPIN})
	return NewInvoiceWorker(svc, t.TempDir())
}

func TestHandleJobWritesPDF(t *testing.T) {
	ctx := context.Background()
	records := storemem.NewRecordStore()
	if _, err := records.Create(ctx, core.Record{
		Date: time.Date(2026, 3, 2, 0, 0, 0, 0, time.Local),
		Type: core.TypeWork, Item: core.ItemRegularCleaning, Amount: 8000,
	}); err != nil {
		t.Fatalf("seed record: %v", err)
	}
	ws := invmem.NewWorkspace()
	w := newWorker(t, records, ws)

	job := queue.NewInvoiceJob("2026-03", "2026-03-31", "cron")
	if err := w.HandleJob(ctx, job); err != nil {
		t.Fatalf("HandleJob() error: %v", err)
	}

	path := filepath.Join(w.outputDir, "請求書_2026-03.pdf")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read written pdf: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("written pdf is empty")
	}
	if ws.LiveScratchCount() != 0 {
		t.Fatalf("live scratch copies after job: %d", ws.LiveScratchCount())
	}
}

func TestHandleJobEmptyMonthIsNotRetried(t *testing.T) {
	ctx := context.Background()
	ws := invmem.NewWorkspace()
	w := newWorker(t, storemem.NewRecordStore(), ws)

	job := queue.NewInvoiceJob("2026-03", "", "cron")
	if err := w.HandleJob(ctx, job); err != nil {
		t.Fatalf("HandleJob() for empty month = %v, want nil (acked, not requeued)", err)
	}
	if ws.CopyCount() != 0 {
		t.Fatalf("scratch copies created for empty month: %d", ws.CopyCount())
	}
}

func TestHandleJobExportFailurePropagates(t *testing.T) {
	ctx := context.Background()
	records := storemem.NewRecordStore()
	if _, err := records.Create(ctx, core.Record{
		Date: time.Date(2026, 3, 2, 0, 0, 0, 0, time.Local),
		Type: core.TypeWork, Item: core.ItemRegularCleaning, Amount: 8000,
	}); err != nil {
		t.Fatalf("seed record: %v", err)
	}
	ws := invmem.NewWorkspace()
	ws.FailExport = true
	w := newWorker(t, records, ws)

	if err := w.HandleJob(ctx, queue.NewInvoiceJob("2026-03", "", "cron")); err == nil {
		t.Fatal("HandleJob() succeeded despite export failure")
	}
}
