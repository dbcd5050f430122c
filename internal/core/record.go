package core

import (
	"errors"
	"strings"
	"time"
)

const (
	TypeWork    RecordType = "work"
	TypeExpense RecordType = "expense"
)

// Item labels the invoice aggregation recognizes. Any other label is still
// stored and itemized but carries no aggregate figure.
const (
	ItemRegularCleaning = "通常清掃"
	ItemExtraTask       = "追加業務"
	ItemEmergency       = "緊急対応"
)

type (
	RecordType string

	// Record is one logged work item or expense.
	Record struct {
		ID        string
		UserID    string
		Date      time.Time
		Type      RecordType
		Item      string
		UnitPrice *int // yen, optional
		Duration  *int // minutes, optional
		Amount    int  // whole yen
		Note      string
		Month     string // YYYY-MM, derived from Date
		CreatedAt time.Time
		UpdatedAt *time.Time
	}
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrNoData        = errors.New("no records for month")
	ErrInvalidDate   = errors.New("invalid date")
	ErrInvalidType   = errors.New("invalid record type")
	ErrEmptyItem     = errors.New("empty item")
	ErrInvalidAmount = errors.New("invalid amount")
)

func (t RecordType) Valid() bool {
	return t == TypeWork || t == TypeExpense
}

func (r Record) Validate() error {
	if r.Date.IsZero() {
		return ErrInvalidDate
	}
	if !r.Type.Valid() {
		return ErrInvalidType
	}
	if strings.TrimSpace(r.Item) == "" {
		return ErrEmptyItem
	}
	if r.Amount < 0 {
		return ErrInvalidAmount
	}
	return nil
}

// MonthOf returns the YYYY-MM bucket for a date in the service's local timezone.
func MonthOf(d time.Time) string {
	return d.In(time.Local).Format("2006-01")
}

func intOrZero(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

// IntPtr is a convenience for building optional numeric fields.
func IntPtr(v int) *int {
	return &v
}
