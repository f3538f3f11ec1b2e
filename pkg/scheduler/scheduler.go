// Package scheduler runs the incremental sync on an interval and on demand.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/unicef/hope-sub007/pkg/jobs"
	"github.com/unicef/hope-sub007/pkg/metrics"
	"github.com/unicef/hope-sub007/pkg/platform/tracing"
	"github.com/unicef/hope-sub007/pkg/store"
)

var (
	ErrSchedulerStopped        = errors.New("scheduler stopped")
	ErrSchedulerAlreadyRunning = errors.New("scheduler already running")
	// ErrQueueFull is returned by Trigger when too many requests are pending.
	ErrQueueFull = errors.New("sync queue full")
)

const DefaultQueueDepth = 64

type Config struct {
	// Interval between periodic runs. Zero disables periodic runs; triggered
	// runs still happen.
	Interval time.Duration
	// BusinessAreas restricts periodic runs. Empty means every business area.
	BusinessAreas []string
	QueueDepth    int
}

// JobRunner is the part of *jobs.Runner the scheduler drives.
type JobRunner interface {
	Run(ctx context.Context, jobs []jobs.Job, opts jobs.RunOptions) ([]jobs.Result, error)
}

type Scheduler struct {
	runner JobRunner
	store  store.Store
	config Config
	logger ectologger.Logger

	triggers chan string
	stopCh   chan struct{}
	stoppedC chan struct{}
	running  bool
	mu       sync.RWMutex
}

func New(runner JobRunner, s store.Store, config Config, logger ectologger.Logger) *Scheduler {
	if config.QueueDepth <= 0 {
		config.QueueDepth = DefaultQueueDepth
	}
	return &Scheduler{
		runner:   runner,
		store:    s,
		config:   config,
		logger:   logger,
		triggers: make(chan string, config.QueueDepth),
		stopCh:   make(chan struct{}),
		stoppedC: make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrSchedulerAlreadyRunning
	}
	s.running = true
	s.mu.Unlock()

	s.logger.WithContext(ctx).Infof("Starting scheduler: interval=%s business_areas=%v",
		s.config.Interval, s.config.BusinessAreas)

	go s.loop(ctx)
	return nil
}

// Stop waits for the in-flight cycle to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.logger.WithContext(ctx).Info("Stopping scheduler...")
	close(s.stopCh)

	select {
	case <-s.stoppedC:
		s.logger.WithContext(ctx).Info("Scheduler stopped gracefully")
	case <-ctx.Done():
		s.logger.WithContext(ctx).Warn("Scheduler shutdown timed out")
		return ctx.Err()
	}
	return nil
}

func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Trigger queues a sync of one business area.
func (s *Scheduler) Trigger(businessAreaID string) error {
	if !s.IsRunning() {
		return ErrSchedulerStopped
	}
	select {
	case s.triggers <- businessAreaID:
		return nil
	default:
		return ErrQueueFull
	}
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.stoppedC)

	var tick <-chan time.Time
	if s.config.Interval > 0 {
		ticker := time.NewTicker(s.config.Interval)
		defer ticker.Stop()
		tick = ticker.C
		s.runCycle(ctx)
	}

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-tick:
			s.runCycle(ctx)
		case ba := <-s.triggers:
			s.run(ctx, []string{ba})
		}
	}
}

// runCycle syncs every scheduled business area.
func (s *Scheduler) runCycle(ctx context.Context) {
	ctx, span := tracing.StartSpan(ctx, "scheduler.Scheduler.runCycle")
	defer span.End()
	metrics.SchedulerTicks.Inc()

	areas, err := s.businessAreas(ctx)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Failed to list business areas")
		return
	}
	if len(areas) == 0 {
		s.logger.WithContext(ctx).Debug("No business areas to sync")
		return
	}
	s.run(ctx, areas)
}

func (s *Scheduler) run(ctx context.Context, areas []string) {
	start := time.Now()
	list := make([]jobs.Job, len(areas))
	for i, ba := range areas {
		list[i] = jobs.Job{Kind: jobs.KindSync, BusinessAreaID: ba}
	}

	results, err := s.runner.Run(ctx, list, jobs.RunOptions{})
	writes, failed := 0, 0
	for _, res := range results {
		if res.Err != nil {
			failed++
			continue
		}
		writes += res.Summary.Writes
	}
	log := s.logger.WithContext(ctx).WithFields(map[string]any{
		"business_areas": len(areas),
		"failed":         failed,
		"writes":         writes,
		"duration":       time.Since(start).String(),
	})
	if err != nil {
		log.WithError(err).Warn("Scheduled sync finished with failures")
		return
	}
	log.Info("Scheduled sync finished")
}

func (s *Scheduler) businessAreas(ctx context.Context) ([]string, error) {
	if len(s.config.BusinessAreas) > 0 {
		return s.config.BusinessAreas, nil
	}
	rows, err := s.store.BusinessAreas().Find(ctx, store.All().OrderBy("slug"))
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(rows))
	for i, ba := range rows {
		ids[i] = ba.ID
	}
	return ids, nil
}
