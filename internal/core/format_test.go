package core

import (
	"testing"
	"time"
)

func TestFormatMonthLabel(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"2026-03", "2026年3月分"},
		{"2025-12", "2025年12月分"},
		{"garbage", "garbage分"},
	}
	for _, tc := range cases {
		if got := FormatMonthLabel(tc.in); got != tc.want {
			t.Fatalf("FormatMonthLabel(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFormatBillingDate(t *testing.T) {
	d := time.Date(2026, 3, 31, 0, 0, 0, 0, time.Local)
	if got := FormatBillingDate(d); got != "2026年3月31日" {
		t.Fatalf("FormatBillingDate() = %q", got)
	}
}

func TestFormatYen(t *testing.T) {
	cases := []struct {
		in   int
		want string
	}{
		{0, "¥0"},
		{500, "¥500"},
		{1200, "¥1,200"},
		{1234567, "¥1,234,567"},
		{-4500, "¥-4,500"},
	}
	for _, tc := range cases {
		if got := FormatYen(tc.in); got != tc.want {
			t.Fatalf("FormatYen(%d) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		minutes int
		want    string
	}{
		{0, "0時間0分"},
		{45, "0時間45分"},
		{60, "1時間0分"},
		{90, "1時間30分"},
		{135, "2時間15分"},
	}
	for _, tc := range cases {
		if got := FormatDuration(tc.minutes); got != tc.want {
			t.Fatalf("FormatDuration(%d) = %q, want %q", tc.minutes, got, tc.want)
		}
	}
}

func TestFormatQuantity(t *testing.T) {
	cases := []struct {
		name string
		rec  Record
		want string
	}{
		{"regular cleaning", Record{Type: TypeWork, Item: ItemRegularCleaning}, "1回"},
		{"timed extra task", Record{Type: TypeWork, Item: ItemExtraTask, Duration: IntPtr(90)}, "1時間30分"},
		{"timed emergency", Record{Type: TypeWork, Item: ItemEmergency, Duration: IntPtr(45)}, "0時間45分"},
		{"untimed extra task", Record{Type: TypeWork, Item: ItemExtraTask}, "0時間0分"},
		{"expense", Record{Type: TypeExpense, Item: "洗剤"}, "1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := FormatQuantity(tc.rec); got != tc.want {
				t.Fatalf("FormatQuantity() = %q, want %q", got, tc.want)
			}
		})
	}
}
