package core

import (
	"errors"
	"testing"
	"time"
)

func TestRecordValidate(t *testing.T) {
	valid := Record{
		Date:   time.Date(2026, 3, 2, 0, 0, 0, 0, time.Local),
		Type:   TypeWork,
		Item:   ItemRegularCleaning,
		Amount: 8000,
	}

	cases := []struct {
		name    string
		mutate  func(*Record)
		wantErr error
	}{
		{"valid work", func(r *Record) {}, nil},
		{"valid expense", func(r *Record) { r.Type = TypeExpense; r.Item = "洗剤"; r.Amount = 1200 }, nil},
		{"zero date", func(r *Record) { r.Date = time.Time{} }, ErrInvalidDate},
		{"unknown type", func(r *Record) { r.Type = "holiday" }, ErrInvalidType},
		{"blank item", func(r *Record) { r.Item = "   " }, ErrEmptyItem},
		{"negative amount", func(r *Record) { r.Amount = -1 }, ErrInvalidAmount},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := valid
			tc.mutate(&r)
			err := r.Validate()
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("Validate() = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestMonthOf(t *testing.T) {
	d := time.Date(2026, 3, 2, 23, 59, 0, 0, time.Local)
	if got := MonthOf(d); got != "2026-03" {
		t.Fatalf("MonthOf() = %q, want %q", got, "2026-03")
	}
}
