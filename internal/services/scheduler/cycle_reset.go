package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/gridline-ai/gridline-backend/internal/services/entitlements"
)

// CycleResetScheduler periodically resets plan credits for accounts whose
// billing cycle has elapsed. Refill credits are never touched by the sweep.
type CycleResetScheduler struct {
	entitlements *entitlements.Service
	interval     time.Duration
	stopChan     chan struct{}
}

func NewCycleResetScheduler(entitlementsService *entitlements.Service, interval time.Duration) *CycleResetScheduler {
	if interval == 0 {
		interval = 1 * time.Hour
	}
	return &CycleResetScheduler{
		entitlements: entitlementsService,
		interval:     interval,
		stopChan:     make(chan struct{}),
	}
}

func (s *CycleResetScheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Printf("Cycle reset scheduler started, running every %s", s.interval)

	for {
		select {
		case <-ticker.C:
			if reset, err := s.entitlements.ResetExpiredCycles(ctx, time.Now().UTC()); err != nil {
				log.Printf("Error resetting expired billing cycles: %v", err)
			} else if reset > 0 {
				log.Printf("Reset plan credits for %d accounts", reset)
			}
		case <-s.stopChan:
			log.Println("Cycle reset scheduler stopped")
			return
		case <-ctx.Done():
			log.Println("Cycle reset scheduler stopped due to context cancellation")
			return
		}
	}
}

func (s *CycleResetScheduler) Stop() {
	close(s.stopChan)
}
