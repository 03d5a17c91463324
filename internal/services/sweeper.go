package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// SweeperService runs the overdue-invoice sweep on a schedule, in
// addition to the opportunistic sweep on list endpoints, so statuses
// stay current even when nobody is looking at the list.
type SweeperService struct {
	invoice  *InvoiceService
	log      *logrus.Logger
	interval time.Duration
}

func NewSweeperService(invoice *InvoiceService, log *logrus.Logger, interval time.Duration) *SweeperService {
	if interval <= 0 {
		interval = time.Hour
	}
	return &SweeperService{invoice: invoice, log: log, interval: interval}
}

// Run loops until the context is cancelled. One sweep runs immediately
// on startup.
func (s *SweeperService) Run(ctx context.Context) {
	s.sweep()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-ctx.Done():
			s.log.Info("overdue sweeper stopped")
			return
		}
	}
}

func (s *SweeperService) sweep() {
	if err := s.invoice.MarkOverdueInvoices(); err != nil {
		s.log.WithError(err).Error("overdue sweep failed")
		return
	}
	s.log.Debug("overdue sweep completed")
}
