package invoice_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"soji/internal/core"
	"soji/internal/invoice"
	invmem "soji/internal/invoice/memory"
	"soji/internal/store"
	storemem "soji/internal/store/memory"
)

func seedMonth(t *testing.T, records *storemem.RecordStore) {
	t.Helper()
	ctx := context.Background()
	seed := []core.Record{
		{
			Date: time.Date(2026, 3, 2, 0, 0, 0, 0, time.Local),
			Type: core.TypeWork, Item: core.ItemRegularCleaning,
			UnitPrice: core.IntPtr(8000), Amount: 8000,
		},
		{
			Date: time.Date(2026, 3, 9, 0, 0, 0, 0, time.Local),
			Type: core.TypeWork, Item: core.ItemExtraTask,
			UnitPrice: core.IntPtr(2000), Duration: core.IntPtr(45), Amount: 1500,
			Note: "窓清掃",
		},
		{
			Date: time.Date(2026, 3, 14, 0, 0, 0, 0, time.Local),
			Type: core.TypeExpense, Item: "洗剤", Amount: 1200,
		},
	}
	for _, r := range seed {
		if _, err := records.Create(ctx, r); err != nil {
			t.Fatalf("seed record: %v", err)
		}
	}
}

func newService(records *storemem.RecordStore, ws *invmem.Workspace) *invoice.Service {
	settings := store.Settings{
		PIN:          store.DefaultPIN,
		ReporterName: "田中 太郎",
		ClientName:   "桑原 宏和",
	}
	return invoice.NewService(records, invoice.NewTemplateRenderer(ws), settings)
}

func TestGenerateEmptyMonthRefusedBeforeScratch(t *testing.T) {
	ws := invmem.NewWorkspace()
	svc := newService(storemem.NewRecordStore(), ws)

	_, err := svc.Generate(context.Background(), "2026-03", time.Time{})
	if !errors.Is(err, core.ErrNoData) {
		t.Fatalf("Generate() error = %v, want ErrNoData", err)
	}
	if ws.CopyCount() != 0 {
		t.Fatalf("scratch copies created for empty month: %d", ws.CopyCount())
	}
}

func TestGeneratePopulatesTemplate(t *testing.T) {
	records := storemem.NewRecordStore()
	seedMonth(t, records)
	ws := invmem.NewWorkspace()
	svc := newService(records, ws)

	billing := time.Date(2026, 3, 31, 0, 0, 0, 0, time.Local)
	doc, err := svc.Generate(context.Background(), "2026-03", billing)
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if doc.Filename != "請求書_2026-03.pdf" {
		t.Fatalf("Filename = %q", doc.Filename)
	}
	if !strings.HasPrefix(doc.DataURL(), "data:application/pdf;base64,") {
		t.Fatalf("DataURL missing prefix: %q", doc.DataURL()[:40])
	}

	scratch := ws.LastScratch()
	if scratch == nil {
		t.Fatal("no scratch was created")
	}

	wantCells := map[string]string{
		"N4":  "2026年3月31日",
		"C9":  "2026年3月分",
		"J20": "1",
		"J21": "45",
		"J22": "0",
		"J23": "1",
		"O23": "1200",
	}
	for cell, want := range wantCells {
		if got := scratch.Cells[cell]; got != want {
			t.Errorf("cell %s = %q, want %q", cell, got, want)
		}
	}

	wantReplacements := map[string]string{
		"{{CLIENT_NAME}}":   "桑原 宏和",
		"{{REPORTER_NAME}}": "田中 太郎",
		"{{MONTH}}":         "2026年03月",
		"{{DATE}}":          "2026/03/31",
		"{{TOTAL_AMOUNT}}":  "¥10,700",
	}
	for name, want := range wantReplacements {
		if got := scratch.Replacements[name]; got != want {
			t.Errorf("placeholder %s = %q, want %q", name, got, want)
		}
	}

	if scratch.StartRow != 7 {
		t.Errorf("StartRow = %d, want 7", scratch.StartRow)
	}
	if len(scratch.Rows) != 3 {
		t.Fatalf("itemized rows = %d, want 3", len(scratch.Rows))
	}
	wantRow := []string{"2026-03-09", "追加業務 (窓清掃)", "¥2,000", "0時間45分", "¥1,500"}
	for i, want := range wantRow {
		if scratch.Rows[1][i] != want {
			t.Errorf("row[1][%d] = %q, want %q", i, scratch.Rows[1][i], want)
		}
	}
}

func TestGenerateDiscardsScratchOnSuccess(t *testing.T) {
	records := storemem.NewRecordStore()
	seedMonth(t, records)
	ws := invmem.NewWorkspace()
	svc := newService(records, ws)

	if _, err := svc.Generate(context.Background(), "2026-03", time.Time{}); err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if ws.LiveScratchCount() != 0 {
		t.Fatalf("live scratch copies after success: %d", ws.LiveScratchCount())
	}
}

func TestGenerateDiscardsScratchOnExportFailure(t *testing.T) {
	records := storemem.NewRecordStore()
	seedMonth(t, records)
	ws := invmem.NewWorkspace()
	ws.FailExport = true
	svc := newService(records, ws)

	if _, err := svc.Generate(context.Background(), "2026-03", time.Time{}); err == nil {
		t.Fatal("Generate() succeeded despite export failure")
	}
	if ws.CopyCount() != 1 {
		t.Fatalf("scratch copies = %d, want 1", ws.CopyCount())
	}
	if ws.LiveScratchCount() != 0 {
		t.Fatalf("live scratch copies after failure: %d", ws.LiveScratchCount())
	}
}

func TestGenerateNormalizesMonthArgument(t *testing.T) {
	records := storemem.NewRecordStore()
	seedMonth(t, records)
	ws := invmem.NewWorkspace()
	svc := newService(records, ws)

	doc, err := svc.Generate(context.Background(), "2026-03-15", time.Time{})
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if doc.Filename != "請求書_2026-03.pdf" {
		t.Fatalf("Filename = %q", doc.Filename)
	}
}

func TestGenerateDefaultsToPreviousMonth(t *testing.T) {
	ctx := context.Background()
	records := storemem.NewRecordStore()
	lastMonth := time.Now().AddDate(0, -1, 0)
	if _, err := records.Create(ctx, core.Record{
		Date: lastMonth, Type: core.TypeWork, Item: core.ItemRegularCleaning, Amount: 8000,
	}); err != nil {
		t.Fatalf("seed record: %v", err)
	}
	ws := invmem.NewWorkspace()
	svc := newService(records, ws)

	doc, err := svc.Generate(ctx, "", time.Time{})
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	want := "請求書_" + core.PreviousMonth(time.Now()) + ".pdf"
	if doc.Filename != want {
		t.Fatalf("Filename = %q, want %q", doc.Filename, want)
	}
}
