package core

// InvoiceSummary holds the five figures the invoice template shows.
type InvoiceSummary struct {
	RegularCount     int // 通常清掃 visits
	ExtraMinutes     int // 追加業務 total minutes
	EmergencyMinutes int // 緊急対応 total minutes
	ExpenseCount     int
	ExpenseTotal     int // yen
}

// Summarize folds one month's records into the invoice figures. The fold is
// a single pass, order-independent, and total: records with unrecognized work
// items contribute nothing, and nil numeric fields count as zero.
func Summarize(records []Record) InvoiceSummary {
	var s InvoiceSummary
	for _, r := range records {
		switch r.Type {
		case TypeWork:
			switch r.Item {
			case ItemRegularCleaning:
				s.RegularCount++
			case ItemExtraTask:
				s.ExtraMinutes += intOrZero(r.Duration)
			case ItemEmergency:
				s.EmergencyMinutes += intOrZero(r.Duration)
			}
		case TypeExpense:
			s.ExpenseCount++
			s.ExpenseTotal += r.Amount
		}
	}
	return s
}
