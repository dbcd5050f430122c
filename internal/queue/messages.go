package queue

import (
	"encoding/json"
	"time"
)

// InvoiceJob asks the worker to generate one month's invoice. BillingDate is
// YYYY-MM-DD and may be empty; the worker then bills as of the day it runs.
type InvoiceJob struct {
	Month       string    `json:"month"`
	BillingDate string    `json:"billingDate,omitempty"`
	RequestedBy string    `json:"requestedBy,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

func NewInvoiceJob(month, billingDate, requestedBy string) *InvoiceJob {
	return &InvoiceJob{
		Month:       month,
		BillingDate: billingDate,
		RequestedBy: requestedBy,
		Timestamp:   time.Now(),
	}
}

// ToJSON converts the job to JSON bytes
func (j *InvoiceJob) ToJSON() ([]byte, error) {
	return json.Marshal(j)
}

// InvoiceJobFromJSON creates a job from JSON bytes
func InvoiceJobFromJSON(data []byte) (*InvoiceJob, error) {
	var job InvoiceJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, err
	}
	return &job, nil
}
