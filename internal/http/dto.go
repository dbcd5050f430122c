package http

import (
	"strconv"
	"strings"
	"time"

	"soji/internal/core"
)

// flexInt tolerates the numeric sloppiness of spreadsheet-era clients:
// numbers, numeric strings, floats, null, and empty strings all decode, with
// anything non-numeric coercing to 0.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == `""` {
		*f = 0
		return nil
	}
	s = strings.Trim(s, `"`)
	if v, err := strconv.Atoi(s); err == nil {
		*f = flexInt(v)
		return nil
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		*f = flexInt(int(v))
		return nil
	}
	*f = 0
	return nil
}

// reportDTO is the wire form of a record on both API surfaces.
type reportDTO struct {
	ID        string  `json:"id,omitempty"`
	UserID    string  `json:"userId,omitempty"`
	Date      string  `json:"date"`
	Type      string  `json:"type"`
	Item      string  `json:"item"`
	UnitPrice flexInt `json:"unitPrice"`
	Duration  flexInt `json:"duration"`
	Amount    flexInt `json:"amount"`
	Note      string  `json:"note,omitempty"`
	Month     string  `json:"month,omitempty"`
	CreatedAt string  `json:"createdAt,omitempty"`
	UpdatedAt string  `json:"updatedAt,omitempty"`
}

func (d reportDTO) toRecord() (core.Record, error) {
	date, err := parseDate(d.Date)
	if err != nil {
		return core.Record{}, err
	}
	rec := core.Record{
		ID:     d.ID,
		UserID: d.UserID,
		Date:   date,
		Type:   core.RecordType(d.Type),
		Item:   strings.TrimSpace(d.Item),
		Amount: int(d.Amount),
		Note:   strings.TrimSpace(d.Note),
	}
	if d.UnitPrice != 0 {
		rec.UnitPrice = core.IntPtr(int(d.UnitPrice))
	}
	if d.Duration != 0 {
		rec.Duration = core.IntPtr(int(d.Duration))
	}
	return rec, nil
}

func fromRecord(r core.Record) reportDTO {
	dto := reportDTO{
		ID:        r.ID,
		UserID:    r.UserID,
		Date:      r.Date.In(time.Local).Format("2006-01-02"),
		Type:      string(r.Type),
		Item:      r.Item,
		UnitPrice: flexInt(ptrValue(r.UnitPrice)),
		Duration:  flexInt(ptrValue(r.Duration)),
		Amount:    flexInt(r.Amount),
		Note:      r.Note,
		Month:     r.Month,
		CreatedAt: r.CreatedAt.In(time.Local).Format(time.RFC3339),
	}
	if r.UpdatedAt != nil {
		dto.UpdatedAt = r.UpdatedAt.In(time.Local).Format(time.RFC3339)
	}
	return dto
}

func fromRecords(records []core.Record) []reportDTO {
	out := make([]reportDTO, len(records))
	for i, r := range records {
		out[i] = fromRecord(r)
	}
	return out
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01-02", time.RFC3339, "2006-01-02T15:04:05"} {
		if d, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return d, nil
		}
	}
	return time.Time{}, core.ErrInvalidDate
}

func ptrValue(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
