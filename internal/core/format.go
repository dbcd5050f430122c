package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FormatMonth renders a YYYY-MM bucket as a Japanese month, e.g. "2026年3月".
// Unparseable input falls through unchanged.
func FormatMonth(month string) string {
	parts := strings.SplitN(month, "-", 2)
	if len(parts) != 2 {
		return month
	}
	y, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return month
	}
	return fmt.Sprintf("%d年%d月", y, m)
}

// FormatMonthLabel renders the invoice header label, e.g. "2026年3月分".
func FormatMonthLabel(month string) string {
	return FormatMonth(month) + "分"
}

// FormatBillingDate renders a date in the invoice's long form, e.g.
// "2026年3月31日".
func FormatBillingDate(d time.Time) string {
	d = d.In(time.Local)
	return fmt.Sprintf("%d年%d月%d日", d.Year(), int(d.Month()), d.Day())
}

// FormatYen renders an amount as "¥1,200".
func FormatYen(amount int) string {
	return "¥" + groupThousands(amount)
}

func groupThousands(n int) string {
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}
	s := strconv.Itoa(n)
	if len(s) <= 3 {
		return sign + s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return sign + b.String()
}

// FormatDuration renders minutes as a full hour/minute breakdown, e.g. 45 →
// "0時間45分", 90 → "1時間30分".
func FormatDuration(minutes int) string {
	return fmt.Sprintf("%d時間%d分", minutes/60, minutes%60)
}

// FormatQuantity renders the itemized-row quantity column: timed work items
// show their duration, untimed work shows "1回", expenses show "1".
func FormatQuantity(r Record) string {
	if r.Type == TypeWork && r.Item != ItemRegularCleaning {
		return FormatDuration(intOrZero(r.Duration))
	}
	if r.Type == TypeExpense {
		return "1"
	}
	return "1回"
}
