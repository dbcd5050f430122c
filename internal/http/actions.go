package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"soji/internal/auth"
	"soji/internal/core"
)

// actionRequest is the single-endpoint dispatch envelope. GET requests carry
// the same fields as query parameters, with data as a JSON string.
type actionRequest struct {
	Action      string          `json:"action"`
	ID          string          `json:"id"`
	Month       string          `json:"month"`
	MonthStr    string          `json:"monthStr"`
	BillingDate string          `json:"billingDate"`
	PIN         string          `json:"pin"`
	Data        json.RawMessage `json:"data"`
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	req, err := decodeActionRequest(r)
	if err != nil {
		s.writeActionError(w, r, err)
		return
	}

	result, err := s.runAction(r, req)
	if err != nil {
		s.writeActionError(w, r, err)
		return
	}
	writeResult(w, r, http.StatusOK, result)
}

func decodeActionRequest(r *http.Request) (actionRequest, error) {
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		req := actionRequest{
			Action:      q.Get("action"),
			ID:          q.Get("id"),
			Month:       q.Get("month"),
			MonthStr:    q.Get("monthStr"),
			BillingDate: q.Get("billingDate"),
			PIN:         q.Get("pin"),
		}
		if data := q.Get("data"); data != "" {
			req.Data = json.RawMessage(data)
		}
		if req.Action == "" {
			req.Action = "ping"
		}
		return req, nil
	case http.MethodPost:
		var req actionRequest
		body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			return actionRequest{}, fmt.Errorf("read request body: %w", err)
		}
		if len(body) > 0 {
			if err := json.Unmarshal(body, &req); err != nil {
				return actionRequest{}, fmt.Errorf("parse request body: %w", err)
			}
		}
		if req.Action == "" {
			req.Action = "ping"
		}
		return req, nil
	default:
		return actionRequest{}, fmt.Errorf("method not allowed: %s", r.Method)
	}
}

// runAction dispatches over the closed action set. Errors returned here are
// internal faults; expected business outcomes come back as envelopes.
func (s *Server) runAction(r *http.Request, req actionRequest) (Result, error) {
	ctx := r.Context()

	switch req.Action {
	case "ping":
		return Result{
			Success:   true,
			Message:   "API is running",
			Timestamp: time.Now().Format(time.RFC3339),
		}, nil

	case "verifyPin":
		if err := s.pin.Verify(req.PIN); err != nil {
			if errors.Is(err, auth.ErrInvalidPIN) {
				slog.WarnContext(ctx, "PIN verification failed")
				return Result{Success: false, Message: "Invalid PIN"}, nil
			}
			return Result{}, err
		}
		return Result{Success: true}, nil

	case "getData":
		month := req.Month
		if month == "" {
			month = core.MonthOf(time.Now())
		}
		month = core.NormalizeMonth(month)
		records, err := s.records.ListByMonth(ctx, month, "")
		if err != nil {
			return Result{}, fmt.Errorf("list records for %s: %w", month, err)
		}
		dtos := fromRecords(records)
		// Newest first for the client list view.
		for i, j := 0, len(dtos)-1; i < j; i, j = i+1, j-1 {
			dtos[i], dtos[j] = dtos[j], dtos[i]
		}
		return Result{Success: true, Data: dtos}, nil

	case "saveReport":
		rec, err := decodeReport(req.Data)
		if err != nil {
			return Result{}, err
		}
		if err := rec.Validate(); err != nil {
			return Result{}, err
		}
		created, err := s.records.Create(ctx, rec)
		if err != nil {
			return Result{}, fmt.Errorf("create record: %w", err)
		}
		slog.InfoContext(ctx, "Record saved", "id", created.ID, "type", created.Type, "month", created.Month)
		return Result{Success: true, Message: "Saved successfully", ID: created.ID}, nil

	case "updateReport":
		rec, err := decodeReport(req.Data)
		if err != nil {
			return Result{}, err
		}
		if rec.ID == "" {
			rec.ID = req.ID
		}
		if err := rec.Validate(); err != nil {
			return Result{}, err
		}
		updated, err := s.records.Update(ctx, rec)
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				return Result{Success: false, Message: "ID not found"}, nil
			}
			return Result{}, fmt.Errorf("update record: %w", err)
		}
		slog.InfoContext(ctx, "Record updated", "id", updated.ID, "month", updated.Month)
		return Result{Success: true, ID: updated.ID}, nil

	case "deleteData":
		if err := s.records.Delete(ctx, req.ID); err != nil {
			if errors.Is(err, core.ErrNotFound) {
				return Result{Success: false, Message: "ID not found"}, nil
			}
			return Result{}, fmt.Errorf("delete record: %w", err)
		}
		slog.InfoContext(ctx, "Record deleted", "id", req.ID)
		return Result{Success: true}, nil

	case "generatePDF":
		doc, err := s.invoices.Generate(ctx, req.Month, parseBillingDate(req.BillingDate))
		if err != nil {
			if errors.Is(err, core.ErrNoData) {
				return Result{Success: false, Message: noDataMessage}, nil
			}
			return Result{}, err
		}
		return Result{Success: true, Data: doc.DataURL(), Filename: doc.Filename}, nil

	case "generatePDFFromData":
		records, err := decodeReports(req.Data, req.MonthStr)
		if err != nil {
			return Result{}, err
		}
		doc, err := s.invoices.GenerateFromRecords(ctx, records, req.MonthStr, parseBillingDate(req.BillingDate))
		if err != nil {
			if errors.Is(err, core.ErrNoData) {
				return Result{Success: false, Message: noDataMessage}, nil
			}
			return Result{}, err
		}
		return Result{Success: true, Data: doc.DataURL(), Filename: doc.Filename}, nil

	default:
		return Result{Success: false, Message: "Unknown action: " + req.Action}, nil
	}
}

// writeActionError hides internal errors behind the generic message and a
// support-facing error ID that links back to the log entry.
func (s *Server) writeActionError(w http.ResponseWriter, r *http.Request, err error) {
	errorID := newErrorID()
	slog.ErrorContext(r.Context(), "Action failed",
		"error_id", errorID,
		"error", err)
	writeResult(w, r, http.StatusOK, Result{
		Success:     false,
		Message:     genericErrorMessage,
		ErrorID:     errorID,
		ErrorDetail: err.Error(),
	})
}

func decodeReport(data json.RawMessage) (core.Record, error) {
	if len(data) == 0 {
		return core.Record{}, errors.New("missing report data")
	}
	var dto reportDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return core.Record{}, fmt.Errorf("parse report data: %w", err)
	}
	return dto.toRecord()
}

// decodeReports parses the client-supplied record list for direct rendering.
// Rows without a date fall back to the first day of the target month.
func decodeReports(data json.RawMessage, month string) ([]core.Record, error) {
	if len(data) == 0 {
		return nil, errors.New("missing report data")
	}
	var dtos []reportDTO
	if err := json.Unmarshal(data, &dtos); err != nil {
		return nil, fmt.Errorf("parse report data: %w", err)
	}

	fallback := monthStart(month)
	records := make([]core.Record, 0, len(dtos))
	for _, dto := range dtos {
		if dto.Date == "" {
			dto.Date = fallback
		}
		rec, err := dto.toRecord()
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func monthStart(month string) string {
	if t, err := time.ParseInLocation("2006-01", core.NormalizeMonth(month), time.Local); err == nil {
		return t.Format("2006-01-02")
	}
	return time.Now().In(time.Local).Format("2006-01-02")
}

// parseBillingDate is lenient: a malformed or absent date means "bill today".
func parseBillingDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t
		}
	}
	return time.Time{}
}
