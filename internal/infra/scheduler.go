package infra

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"propdesk/internal/usecase"
)

// Scheduler runs the periodic risk evaluation sweep. On-demand triggers go
// straight to the Monitor; both paths coalesce per account there.
type Scheduler struct {
	cron     *cron.Cron
	monitor  *usecase.Monitor
	interval time.Duration
}

// NewScheduler creates a new scheduler sweeping at the given interval.
func NewScheduler(monitor *usecase.Monitor, interval time.Duration) *Scheduler {
	if interval < time.Second {
		interval = 15 * time.Second
	}
	return &Scheduler{
		cron:     cron.New(cron.WithSeconds()),
		monitor:  monitor,
		interval: interval,
	}
}

// Start begins the periodic sweep.
func (s *Scheduler) Start() error {
	spec := fmt.Sprintf("@every %s", s.interval)

	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.interval)
		defer cancel()

		if err := s.monitor.Sweep(ctx); err != nil {
			log.Printf("ERROR: Scheduled risk sweep failed: %v", err)
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	log.Printf("[OK] Risk monitor started (every %s)", s.interval)

	return nil
}

// Stop stops the scheduler gracefully
func (s *Scheduler) Stop() {
	log.Println("Stopping risk monitor...")
	s.cron.Stop()
	log.Println("[OK] Risk monitor stopped")
}
