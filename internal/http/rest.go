package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"soji/internal/auth"
	"soji/internal/core"
)

type identityKey struct{}

// withIdentity authenticates the bearer token and stores the caller identity
// in the request context.
func (s *Server) withIdentity(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeResult(w, r, http.StatusUnauthorized, Result{Success: false, Message: "Missing bearer token"})
			return
		}

		identity, err := s.tokens.Verify(token)
		if err != nil {
			slog.WarnContext(r.Context(), "Token verification failed", "error", err)
			writeResult(w, r, http.StatusUnauthorized, Result{Success: false, Message: "Invalid token"})
			return
		}

		ctx := context.WithValue(r.Context(), identityKey{}, identity)
		next(w, r.WithContext(ctx))
	}
}

func identityFrom(ctx context.Context) auth.Identity {
	identity, _ := ctx.Value(identityKey{}).(auth.Identity)
	return identity
}

// handleReports serves GET (list own records for a month) and POST (create).
func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listReports(w, r, identityFrom(r.Context()).UserID)
	case http.MethodPost:
		s.createReport(w, r)
	default:
		writeResult(w, r, http.StatusMethodNotAllowed, Result{Success: false, Message: "Method not allowed"})
	}
}

// handleAdminReports lists every user's records for a month, admins only.
func (s *Server) handleAdminReports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeResult(w, r, http.StatusMethodNotAllowed, Result{Success: false, Message: "Method not allowed"})
		return
	}
	if identityFrom(r.Context()).Role != auth.RoleAdmin {
		writeResult(w, r, http.StatusForbidden, Result{Success: false, Message: "Admin role required"})
		return
	}
	s.listReports(w, r, "")
}

func (s *Server) listReports(w http.ResponseWriter, r *http.Request, userID string) {
	month := r.URL.Query().Get("month")
	if month == "" {
		writeResult(w, r, http.StatusBadRequest, Result{Success: false, Message: "month parameter is required"})
		return
	}
	month = core.NormalizeMonth(month)

	records, err := s.records.ListByMonth(r.Context(), month, userID)
	if err != nil {
		s.writeRESTError(w, r, fmt.Errorf("list records for %s: %w", month, err))
		return
	}
	writeJSON(w, r, http.StatusOK, fromRecords(records))
}

func (s *Server) createReport(w http.ResponseWriter, r *http.Request) {
	dto, ok := s.decodeReportBody(w, r)
	if !ok {
		return
	}

	rec, err := dto.toRecord()
	if err != nil {
		writeResult(w, r, http.StatusBadRequest, Result{Success: false, Message: err.Error()})
		return
	}
	rec.UserID = identityFrom(r.Context()).UserID
	if err := rec.Validate(); err != nil {
		writeResult(w, r, http.StatusBadRequest, Result{Success: false, Message: err.Error()})
		return
	}

	created, err := s.records.Create(r.Context(), rec)
	if err != nil {
		s.writeRESTError(w, r, fmt.Errorf("create record: %w", err))
		return
	}
	slog.InfoContext(r.Context(), "Record created", "id", created.ID, "user_id", created.UserID, "month", created.Month)
	writeJSON(w, r, http.StatusCreated, fromRecord(created))
}

// handleReportByID serves PUT and DELETE on a single record. Existence is
// checked before ownership so callers learn a 404 before a 403, and ownership
// before any mutation.
func (s *Server) handleReportByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/reports/")
	if id == "" || strings.Contains(id, "/") {
		writeResult(w, r, http.StatusNotFound, Result{Success: false, Message: "Report not found"})
		return
	}

	existing, err := s.records.FindByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			writeResult(w, r, http.StatusNotFound, Result{Success: false, Message: "Report not found"})
			return
		}
		s.writeRESTError(w, r, fmt.Errorf("find record %s: %w", id, err))
		return
	}

	identity := identityFrom(r.Context())
	if !identity.CanModify(existing.UserID) {
		writeResult(w, r, http.StatusForbidden, Result{Success: false, Message: "Not allowed to modify this report"})
		return
	}

	switch r.Method {
	case http.MethodPut:
		s.updateReport(w, r, existing)
	case http.MethodDelete:
		s.deleteReport(w, r, id)
	default:
		writeResult(w, r, http.StatusMethodNotAllowed, Result{Success: false, Message: "Method not allowed"})
	}
}

func (s *Server) updateReport(w http.ResponseWriter, r *http.Request, existing core.Record) {
	dto, ok := s.decodeReportBody(w, r)
	if !ok {
		return
	}

	rec, err := dto.toRecord()
	if err != nil {
		writeResult(w, r, http.StatusBadRequest, Result{Success: false, Message: err.Error()})
		return
	}
	rec.ID = existing.ID
	// Ownership never changes on update.
	rec.UserID = existing.UserID
	if err := rec.Validate(); err != nil {
		writeResult(w, r, http.StatusBadRequest, Result{Success: false, Message: err.Error()})
		return
	}

	updated, err := s.records.Update(r.Context(), rec)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			writeResult(w, r, http.StatusNotFound, Result{Success: false, Message: "Report not found"})
			return
		}
		s.writeRESTError(w, r, fmt.Errorf("update record %s: %w", rec.ID, err))
		return
	}
	slog.InfoContext(r.Context(), "Record updated", "id", updated.ID, "user_id", updated.UserID)
	writeJSON(w, r, http.StatusOK, fromRecord(updated))
}

func (s *Server) deleteReport(w http.ResponseWriter, r *http.Request, id string) {
	if err := s.records.Delete(r.Context(), id); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			writeResult(w, r, http.StatusNotFound, Result{Success: false, Message: "Report not found"})
			return
		}
		s.writeRESTError(w, r, fmt.Errorf("delete record %s: %w", id, err))
		return
	}
	slog.InfoContext(r.Context(), "Record deleted", "id", id)
	w.WriteHeader(http.StatusNoContent)
}

// handleInvoices renders the invoice for a month on demand.
func (s *Server) handleInvoices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeResult(w, r, http.StatusMethodNotAllowed, Result{Success: false, Message: "Method not allowed"})
		return
	}

	var req struct {
		Month       string `json:"month"`
		BillingDate string `json:"billingDate"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeResult(w, r, http.StatusBadRequest, Result{Success: false, Message: "Invalid request body"})
		return
	}

	doc, err := s.invoices.Generate(r.Context(), req.Month, parseBillingDate(req.BillingDate))
	if err != nil {
		if errors.Is(err, core.ErrNoData) {
			writeResult(w, r, http.StatusNotFound, Result{Success: false, Message: noDataMessage})
			return
		}
		s.writeRESTError(w, r, fmt.Errorf("generate invoice: %w", err))
		return
	}
	writeResult(w, r, http.StatusOK, Result{Success: true, Data: doc.DataURL(), Filename: doc.Filename})
}

func (s *Server) decodeReportBody(w http.ResponseWriter, r *http.Request) (reportDTO, bool) {
	var dto reportDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeResult(w, r, http.StatusBadRequest, Result{Success: false, Message: "Invalid request body"})
		return reportDTO{}, false
	}
	return dto, true
}

func (s *Server) writeRESTError(w http.ResponseWriter, r *http.Request, err error) {
	errorID := newErrorID()
	slog.ErrorContext(r.Context(), "Request failed", "error_id", errorID, "error", err)
	writeResult(w, r, http.StatusInternalServerError, Result{
		Success: false,
		Message: genericErrorMessage,
		ErrorID: errorID,
	})
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to marshal response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
