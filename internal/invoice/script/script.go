// Package script renders invoices through a deployed Apps Script web app.
// The web app owns the spreadsheet template and runs the same populate-and-
// export flow server-side; this renderer only ships the month's data over.
package script

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"soji/internal/core"
	"soji/internal/invoice"
)

const dataURLPrefix = "data:application/pdf;base64,"

type Renderer struct {
	client   *resty.Client
	endpoint string
}

// Ensure interface conformance
var _ invoice.Renderer = (*Renderer)(nil)

func NewRenderer(endpoint string) *Renderer {
	client := resty.New().
		SetHeader("Content-Type", "application/json").
		SetTimeout(90 * time.Second)
	return &Renderer{client: client, endpoint: endpoint}
}

type renderRequest struct {
	Action      string       `json:"action"`
	Data        []recordData `json:"data"`
	MonthStr    string       `json:"monthStr"`
	BillingDate string       `json:"billingDate"`
}

type recordData struct {
	Type     string `json:"type"`
	Item     string `json:"item"`
	Duration int    `json:"duration"`
	Amount   int    `json:"amount"`
}

type renderResponse struct {
	Success     bool   `json:"success"`
	Data        string `json:"data"`
	Filename    string `json:"filename"`
	Message     string `json:"message"`
	ErrorID     string `json:"errorId"`
	ErrorDetail string `json:"errorDetail"`
}

// Render forwards the month's records to the web app in a single attempt.
func (r *Renderer) Render(ctx context.Context, in invoice.RenderInput) (invoice.Document, error) {
	data := make([]recordData, len(in.Records))
	for i, rec := range in.Records {
		duration := 0
		if rec.Duration != nil {
			duration = *rec.Duration
		}
		data[i] = recordData{
			Type:     string(rec.Type),
			Item:     rec.Item,
			Duration: duration,
			Amount:   rec.Amount,
		}
	}

	var out renderResponse
	resp, err := r.client.R().
		SetContext(ctx).
		SetBody(renderRequest{
			Action:      "generatePDFFromData",
			Data:        data,
			MonthStr:    in.Month,
			BillingDate: in.BillingDate.In(time.Local).Format("2006-01-02"),
		}).
		SetResult(&out).
		Post(r.endpoint)
	if err != nil {
		return invoice.Document{}, fmt.Errorf("call render script: %w", err)
	}
	if resp.IsError() {
		return invoice.Document{}, fmt.Errorf("render script returned %s", resp.Status())
	}
	if !out.Success {
		if strings.Contains(out.Message, "データがありません") {
			return invoice.Document{}, core.ErrNoData
		}
		if out.ErrorID != "" {
			return invoice.Document{}, fmt.Errorf("render script failed (%s): %s", out.ErrorID, out.Message)
		}
		return invoice.Document{}, fmt.Errorf("render script failed: %s", out.Message)
	}

	if !strings.HasPrefix(out.Data, dataURLPrefix) {
		return invoice.Document{}, errors.New("render script returned unexpected payload")
	}
	pdf, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(out.Data, dataURLPrefix))
	if err != nil {
		return invoice.Document{}, fmt.Errorf("decode pdf payload: %w", err)
	}

	filename := out.Filename
	if filename == "" {
		filename = fmt.Sprintf("請求書_%s.pdf", in.Month)
	}
	return invoice.Document{Filename: filename, PDF: pdf}, nil
}
