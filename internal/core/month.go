package core

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var monthPattern = regexp.MustCompile(`^\d{4}-\d{2}$`)

// monthLayouts is the ordered list of date shapes accepted during month
// normalization. First match wins.
var monthLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006/01/02",
	"2006-01",
	"2006/01",
}

// NormalizeMonth maps a stored month value onto its YYYY-MM bucket.
//
// Spreadsheet storage silently converts text into date cells, so a month
// column may hold a real date, an ISO-like string, or an already normalized
// bucket. Priority: an exact YYYY-MM string passes through; a time.Time is
// formatted in the local timezone; a string containing '-', '/' or 'T' is
// parsed against monthLayouts; anything else is returned unchanged.
func NormalizeMonth(v any) string {
	switch val := v.(type) {
	case time.Time:
		return MonthOf(val)
	case string:
		s := strings.TrimSpace(val)
		if monthPattern.MatchString(s) {
			return s
		}
		if strings.ContainsAny(s, "-/T") {
			for _, layout := range monthLayouts {
				if d, err := time.ParseInLocation(layout, s, time.Local); err == nil {
					return MonthOf(d)
				}
			}
		}
		return s
	default:
		return fmt.Sprint(v)
	}
}

// PreviousMonth returns the bucket one calendar month before now.
func PreviousMonth(now time.Time) string {
	return MonthOf(now.AddDate(0, -1, 0))
}
