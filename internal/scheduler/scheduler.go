// Package scheduler enqueues the monthly invoice job on the billing day.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"soji/internal/core"
	"soji/internal/queue"
)

type Scheduler struct {
	cron  *cron.Cron
	queue *queue.Client
}

// New schedules an invoice job for the previous month on the given cron
// spec, e.g. "0 9 1 * *" for 09:00 on the first of each month.
func New(spec string, q *queue.Client) (*Scheduler, error) {
	s := &Scheduler{
		cron:  cron.New(),
		queue: q,
	}
	if _, err := s.cron.AddFunc(spec, s.enqueueLastMonth); err != nil {
		return nil, fmt.Errorf("parse cron spec %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) enqueueLastMonth() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	month := core.PreviousMonth(time.Now())
	job := queue.NewInvoiceJob(month, "", "scheduler")
	if err := s.queue.PublishInvoiceJob(ctx, job); err != nil {
		slog.ErrorContext(ctx, "Failed to enqueue scheduled invoice job",
			"month", month, "error", err)
		return
	}
	slog.InfoContext(ctx, "Enqueued scheduled invoice job", "month", month)
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling; the returned context is done when any running job
// has finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
