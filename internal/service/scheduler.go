package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const syncTimeout = 10 * time.Minute

// Scheduler runs the periodic pvp standings sync
type Scheduler struct {
	cron *cron.Cron
	svc  *Service
	log  *logrus.Logger
}

// NewScheduler creates a scheduler. Overlapping runs are skipped.
func NewScheduler(svc *Service, log *logrus.Logger) *Scheduler {
	c := cron.New(cron.WithChain(
		cron.Recover(cron.PrintfLogger(log)),
		cron.SkipIfStillRunning(cron.PrintfLogger(log)),
	))
	return &Scheduler{cron: c, svc: svc, log: log}
}

// Start registers the sync job on spec (standard cron or "@every 1h") and starts the scheduler
func (s *Scheduler) Start(spec string) error {
	if _, err := s.cron.AddFunc(spec, s.syncPvpStandings); err != nil {
		return fmt.Errorf("invalid sync schedule %q: %w", spec, err)
	}
	s.cron.Start()
	s.log.Infof("Pvp standings sync scheduled: %s", spec)
	return nil
}

// Stop stops scheduling and returns a context done when running jobs finish
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) syncPvpStandings() {
	ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
	defer cancel()

	start := time.Now()
	synced, err := s.svc.SyncAllPvpStandings(ctx)
	if err != nil {
		s.log.Errorf("Pvp standings sync failed after %d tokens: %v", synced, err)
		return
	}
	s.log.WithField("duration", time.Since(start).String()).Infof("Pvp standings sync finished: %d tokens", synced)
}
