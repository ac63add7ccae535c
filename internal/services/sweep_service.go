package services

import (
	"fmt"
	"log"
	"time"

	"kb-research-report/internal/config"

	"github.com/robfig/cron/v3"
)

// OrphanStore is the persistence slice the sweep needs
type OrphanStore interface {
	FailOrphanedReports(cutoff time.Time) (int64, error)
}

// SweepService periodically fails report records stuck in Pending. A record
// older than the orphan window was abandoned by a crashed worker; there is no
// heartbeat, the wall clock is the only signal.
type SweepService struct {
	store    OrphanStore
	interval time.Duration
	window   time.Duration
	cron     *cron.Cron
}

// NewSweepService creates the orphan sweep from the pipeline configuration
func NewSweepService(store OrphanStore, cfg config.PipelineConfig) *SweepService {
	return &SweepService{
		store:    store,
		interval: cfg.SweepInterval,
		window:   cfg.OrphanWindow,
		cron:     cron.New(),
	}
}

// Start schedules the sweep and runs it once immediately to clear records
// orphaned before the last restart.
func (s *SweepService) Start() error {
	spec := fmt.Sprintf("@every %s", s.interval)
	if _, err := s.cron.AddFunc(spec, s.Sweep); err != nil {
		return fmt.Errorf("failed to schedule orphan sweep: %w", err)
	}
	s.cron.Start()
	log.Printf("Orphan sweep scheduled every %s (window %s)", s.interval, s.window)

	go s.Sweep()
	return nil
}

// Sweep runs one pass, failing every Pending record older than the window
func (s *SweepService) Sweep() {
	cutoff := time.Now().Add(-s.window)
	if _, err := s.store.FailOrphanedReports(cutoff); err != nil {
		log.Printf("ERROR: orphan sweep failed: %v", err)
	}
}

// Stop halts the schedule and waits for a running sweep to finish
func (s *SweepService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
