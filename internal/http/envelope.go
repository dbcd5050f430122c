package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Result is the JSON envelope every API response uses.
type Result struct {
	Success     bool   `json:"success"`
	Data        any    `json:"data,omitempty"`
	Message     string `json:"message,omitempty"`
	Filename    string `json:"filename,omitempty"`
	ID          string `json:"id,omitempty"`
	Timestamp   string `json:"timestamp,omitempty"`
	ErrorID     string `json:"errorId,omitempty"`
	ErrorDetail string `json:"errorDetail,omitempty"`
}

// The generic failure message never leaks internals; the error ID links the
// response to the server-side log entry.
const genericErrorMessage = "エラーが発生しました。サポートに連絡する際はエラーIDをお伝えください。"

const noDataMessage = "対象月のデータがありません"

// newErrorID generates a support-facing error ID, e.g. ERR-MB1X2K3J.
func newErrorID() string {
	return "ERR-" + strings.ToUpper(strconv.FormatInt(time.Now().UnixMilli(), 36))
}

// writeResult writes the envelope as JSON, or as a JSONP call when the
// request carries a callback parameter.
func writeResult(w http.ResponseWriter, r *http.Request, status int, result Result) {
	body, err := json.Marshal(result)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to marshal response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	if callback := r.URL.Query().Get("callback"); callback != "" && isJSONPCallback(callback) {
		w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(callback + "("))
		_, _ = w.Write(body)
		_, _ = w.Write([]byte(")"))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// isJSONPCallback keeps injected callbacks to plain identifier characters.
func isJSONPCallback(callback string) bool {
	if len(callback) == 0 || len(callback) > 64 {
		return false
	}
	for _, r := range callback {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_' || r == '.' || r == '$':
		default:
			return false
		}
	}
	return true
}
