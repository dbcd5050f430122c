package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"soji/internal/auth"
	"soji/internal/core"
	"soji/internal/invoice"
	invmem "soji/internal/invoice/memory"
	"soji/internal/store"
	"soji/internal/store/memory"
)

var restTestKey = []byte("rest-test-signing-key")

func newRESTTestServer(t *testing.T) (*Server, *memory.RecordStore, *invmem.Workspace) {
	t.Helper()

	records := memory.NewRecordStore()
	ws := invmem.NewWorkspace()
	settings := store.Settings{ReporterName: "山田太郎", ClientName: "株式会社テスト"}
	invoices := invoice.NewService(records, invoice.NewTemplateRenderer(ws), settings)

	verifier := auth.NewTokenVerifierWithKeyfunc(func(token *jwt.Token) (any, error) {
		return restTestKey, nil
	}, "")
	s := NewRESTServer(":0", records, invoices, verifier)
	t.Cleanup(func() { s.rateLimiter.stop() })
	return s, records, ws
}

func signToken(t *testing.T, sub, role string) string {
	t.Helper()

	claims := jwt.MapClaims{
		"sub": sub,
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	if role != "" {
		claims["app_metadata"] = map[string]any{"role": role}
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(restTestKey)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func doREST(t *testing.T, s *Server, method, target, token, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)
	return rec
}

func seedOwnedRecord(t *testing.T, records *memory.RecordStore, userID, date string) core.Record {
	t.Helper()

	d, err := time.ParseInLocation("2006-01-02", date, time.Local)
	if err != nil {
		t.Fatalf("parse date %s: %v", date, err)
	}
	created, err := records.Create(context.Background(), core.Record{
		UserID: userID,
		Date:   d,
		Type:   core.TypeWork,
		Item:   core.ItemRegularCleaning,
		Amount: 8000,
	})
	if err != nil {
		t.Fatalf("seed record: %v", err)
	}
	return created
}

func TestRESTRequiresBearerToken(t *testing.T) {
	s, _, _ := newRESTTestServer(t)

	cases := []struct {
		name  string
		token string
	}{
		{name: "missing token", token: ""},
		{name: "garbage token", token: "not-a-jwt"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doREST(t, s, http.MethodGet, "/api/v1/reports?month=2026-03", tc.token, "")
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected status 401, got %d", rec.Code)
			}
		})
	}
}

func TestRESTListReportsRequiresMonth(t *testing.T) {
	s, _, _ := newRESTTestServer(t)

	rec := doREST(t, s, http.MethodGet, "/api/v1/reports", signToken(t, "user-1", ""), "")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestRESTListReportsScopedToCaller(t *testing.T) {
	s, records, _ := newRESTTestServer(t)
	mine := seedOwnedRecord(t, records, "user-1", "2026-03-02")
	seedOwnedRecord(t, records, "user-2", "2026-03-09")

	rec := doREST(t, s, http.MethodGet, "/api/v1/reports?month=2026-03", signToken(t, "user-1", ""), "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var dtos []reportDTO
	if err := json.Unmarshal(rec.Body.Bytes(), &dtos); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(dtos) != 1 {
		t.Fatalf("expected only the caller's record, got %d", len(dtos))
	}
	if dtos[0].ID != mine.ID {
		t.Fatalf("expected record %s, got %s", mine.ID, dtos[0].ID)
	}
}

func TestRESTCreateReport(t *testing.T) {
	s, records, _ := newRESTTestServer(t)

	body := `{"date":"2026-03-09","type":"work","item":"追加業務","duration":45,"amount":1500,"userId":"spoofed"}`
	rec := doREST(t, s, http.MethodPost, "/api/v1/reports", signToken(t, "user-1", ""), body)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var dto reportDTO
	if err := json.Unmarshal(rec.Body.Bytes(), &dto); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if dto.UserID != "user-1" {
		t.Fatalf("expected ownership from the token, got %q", dto.UserID)
	}
	if dto.Month != "2026-03" {
		t.Fatalf("expected month 2026-03, got %s", dto.Month)
	}

	saved, err := records.FindByID(context.Background(), dto.ID)
	if err != nil {
		t.Fatalf("find created record: %v", err)
	}
	if saved.UserID != "user-1" {
		t.Fatalf("expected stored owner user-1, got %q", saved.UserID)
	}
}

func TestRESTCreateReportRejectsInvalid(t *testing.T) {
	s, _, _ := newRESTTestServer(t)

	body := `{"date":"2026-03-09","type":"invalid","item":"x","amount":100}`
	rec := doREST(t, s, http.MethodPost, "/api/v1/reports", signToken(t, "user-1", ""), body)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestRESTUpdateReport(t *testing.T) {
	s, records, _ := newRESTTestServer(t)
	created := seedOwnedRecord(t, records, "user-1", "2026-03-02")

	body := `{"date":"2026-03-02","type":"work","item":"通常清掃","amount":9000}`
	rec := doREST(t, s, http.MethodPut, "/api/v1/reports/"+created.ID, signToken(t, "user-1", ""), body)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	updated, err := records.FindByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("find updated record: %v", err)
	}
	if updated.Amount != 9000 {
		t.Fatalf("expected amount 9000, got %d", updated.Amount)
	}
	if updated.UserID != "user-1" {
		t.Fatalf("ownership must not change on update, got %q", updated.UserID)
	}
}

func TestRESTUpdateForbiddenBeforeMutation(t *testing.T) {
	s, records, _ := newRESTTestServer(t)
	created := seedOwnedRecord(t, records, "user-1", "2026-03-02")

	body := `{"date":"2026-03-02","type":"work","item":"通常清掃","amount":9999}`
	rec := doREST(t, s, http.MethodPut, "/api/v1/reports/"+created.ID, signToken(t, "user-2", ""), body)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", rec.Code)
	}
	untouched, err := records.FindByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("find record: %v", err)
	}
	if untouched.Amount != 8000 {
		t.Fatalf("record mutated despite 403, amount %d", untouched.Amount)
	}
}

func TestRESTAdminCanModifyAnyReport(t *testing.T) {
	s, records, _ := newRESTTestServer(t)
	created := seedOwnedRecord(t, records, "user-1", "2026-03-02")

	rec := doREST(t, s, http.MethodDelete, "/api/v1/reports/"+created.ID, signToken(t, "admin-1", "admin"), "")

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rec.Code)
	}
	if _, err := records.FindByID(context.Background(), created.ID); err == nil {
		t.Fatal("expected record to be deleted")
	}
}

func TestRESTUpdateUnknownID(t *testing.T) {
	s, _, _ := newRESTTestServer(t)

	body := `{"date":"2026-03-02","type":"work","item":"通常清掃","amount":9000}`
	rec := doREST(t, s, http.MethodPut, "/api/v1/reports/missing", signToken(t, "user-1", ""), body)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}
}

func TestRESTDeleteReport(t *testing.T) {
	s, records, _ := newRESTTestServer(t)
	created := seedOwnedRecord(t, records, "user-1", "2026-03-02")

	rec := doREST(t, s, http.MethodDelete, "/api/v1/reports/"+created.ID, signToken(t, "user-1", ""), "")

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rec.Code)
	}
	if _, err := records.FindByID(context.Background(), created.ID); err == nil {
		t.Fatal("expected record to be deleted")
	}
}

func TestRESTAdminListing(t *testing.T) {
	s, records, _ := newRESTTestServer(t)
	seedOwnedRecord(t, records, "user-1", "2026-03-02")
	seedOwnedRecord(t, records, "user-2", "2026-03-09")

	t.Run("staff is forbidden", func(t *testing.T) {
		rec := doREST(t, s, http.MethodGet, "/api/v1/admin/reports?month=2026-03", signToken(t, "user-1", ""), "")
		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected status 403, got %d", rec.Code)
		}
	})

	t.Run("admin sees every user", func(t *testing.T) {
		rec := doREST(t, s, http.MethodGet, "/api/v1/admin/reports?month=2026-03", signToken(t, "admin-1", "admin"), "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
		var dtos []reportDTO
		if err := json.Unmarshal(rec.Body.Bytes(), &dtos); err != nil {
			t.Fatalf("unmarshal response: %v", err)
		}
		if len(dtos) != 2 {
			t.Fatalf("expected 2 records, got %d", len(dtos))
		}
	})
}

func TestRESTGenerateInvoice(t *testing.T) {
	s, records, ws := newRESTTestServer(t)
	seedOwnedRecord(t, records, "user-1", "2026-03-02")

	body := `{"month":"2026-03","billingDate":"2026-03-31"}`
	rec := doREST(t, s, http.MethodPost, "/api/v1/invoices", signToken(t, "admin-1", "admin"), body)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var result testResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got message %q", result.Message)
	}
	if result.Filename != "請求書_2026-03.pdf" {
		t.Fatalf("unexpected filename %q", result.Filename)
	}
	if ws.LiveScratchCount() != 0 {
		t.Fatalf("expected scratch cleanup, %d still live", ws.LiveScratchCount())
	}
}

func TestRESTGenerateInvoiceEmptyMonth(t *testing.T) {
	s, _, _ := newRESTTestServer(t)

	body := `{"month":"2026-03"}`
	rec := doREST(t, s, http.MethodPost, "/api/v1/invoices", signToken(t, "user-1", ""), body)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}
	var result testResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if result.Message != "対象月のデータがありません" {
		t.Fatalf("unexpected message %q", result.Message)
	}
}

func TestRateLimiterBlocksAfterBurst(t *testing.T) {
	rl := newRateLimiter()
	t.Cleanup(rl.stop)

	for i := 0; i < 60; i++ {
		if !rl.allow("10.0.0.1") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if rl.allow("10.0.0.1") {
		t.Fatal("request 61 should be blocked")
	}
	if !rl.allow("10.0.0.2") {
		t.Fatal("another client should not be affected")
	}
}
