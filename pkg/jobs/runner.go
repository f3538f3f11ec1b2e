// Package jobs runs migrations and syncs for a list of business areas.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/unicef/hope-sub007/pkg/events"
	"github.com/unicef/hope-sub007/pkg/graph"
	"github.com/unicef/hope-sub007/pkg/lock"
	"github.com/unicef/hope-sub007/pkg/metrics"
	appctx "github.com/unicef/hope-sub007/pkg/platform/context"
	"github.com/unicef/hope-sub007/pkg/platform/tracing"
	"github.com/unicef/hope-sub007/pkg/report"
	"github.com/unicef/hope-sub007/pkg/store"
)

type Kind string

const (
	// KindMigrate runs the household migration then the grievance driver.
	KindMigrate          Kind = "migrate"
	KindMigrateGrievance Kind = "migrate-grievance"
	KindSync             Kind = "sync"
)

type Job struct {
	Kind           Kind   `json:"kind"`
	BusinessAreaID string `json:"business_area_id"`
}

// Result is the outcome of one job. Err is set when the job failed or was
// skipped because another run held the business area.
type Result struct {
	Job      Job            `json:"job"`
	RunID    string         `json:"run_id"`
	DryRun   bool           `json:"dry_run"`
	Summary  report.Summary `json:"summary"`
	Duration time.Duration  `json:"duration"`
	Err      error          `json:"-"`

	Report *report.Report `json:"-"`
}

// Func is a driver entry point. The runner attaches the report to ctx, so
// return values other than the error are ignored.
type Func func(ctx context.Context, businessAreaID string) (*report.Report, error)

type Drivers struct {
	Migrate          Func
	MigrateGrievance Func
	Sync             Func
}

type Config struct {
	// Concurrency bounds how many business areas run at once.
	Concurrency int
	// LockTTL is the lease extension applied between the stages of a migrate job.
	LockTTL time.Duration
}

type Runner struct {
	store     store.Store
	drivers   Drivers
	locker    lock.Locker
	emitter   events.Emitter
	projector *graph.Projector
	logger    ectologger.Logger
	cfg       Config
}

var errDryRun = errors.New("dry run rolled back")

func NewRunner(s store.Store, drivers Drivers, locker lock.Locker, emitter events.Emitter, projector *graph.Projector, logger ectologger.Logger, cfg Config) *Runner {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 2 * time.Hour
	}
	if locker == nil {
		locker = lock.Noop{}
	}
	if emitter == nil {
		emitter = events.Noop{}
	}
	if projector == nil {
		projector = graph.NewProjector(graph.Noop{}, logger)
	}
	return &Runner{
		store:     s,
		drivers:   drivers,
		locker:    locker,
		emitter:   emitter,
		projector: projector,
		logger:    logger,
		cfg:       cfg,
	}
}

type RunOptions struct {
	// DryRun executes every job inside one transaction that is rolled back.
	DryRun bool
	// Concurrency overrides the configured limit when positive.
	Concurrency int
}

// Run executes jobs with bounded parallelism. Every job runs to completion
// regardless of the others; the returned error joins the failures.
func (r *Runner) Run(ctx context.Context, jobs []Job, opts RunOptions) ([]Result, error) {
	ctx, span := tracing.StartSpan(ctx, "jobs.Runner.Run")
	defer span.End()

	limit := r.cfg.Concurrency
	if opts.Concurrency > 0 {
		limit = opts.Concurrency
	}

	results := make([]Result, len(jobs))
	var g errgroup.Group
	g.SetLimit(limit)
	for i, job := range jobs {
		g.Go(func() error {
			results[i] = r.RunJob(ctx, job, opts.DryRun)
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, res := range results {
		if res.Err != nil {
			errs = append(errs, fmt.Errorf("%s %s: %w", res.Job.Kind, res.Job.BusinessAreaID, res.Err))
		}
	}
	return results, errors.Join(errs...)
}

// RunJob runs one job under the business-area lock.
func (r *Runner) RunJob(ctx context.Context, job Job, dryRun bool) (res Result) {
	res = Result{Job: job, RunID: uuid.NewString(), DryRun: dryRun, Report: report.New()}

	ctx = appctx.SetRunID(ctx, res.RunID)
	ctx = appctx.SetBusinessArea(ctx, job.BusinessAreaID)
	ctx = appctx.SetJob(ctx, string(job.Kind))
	ctx = report.WithRecorder(ctx, res.Report)
	ctx, span := tracing.StartSpan(ctx, "jobs.Runner.RunJob")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"job":              job.Kind,
		"business_area_id": job.BusinessAreaID,
		"run_id":           res.RunID,
		"dry_run":          dryRun,
	})

	start := time.Now()
	defer func() {
		res.Duration = time.Since(start)
	}()

	stages, err := r.stages(job.Kind)
	if err != nil {
		res.Err = err
		return res
	}

	lease, err := r.locker.Acquire(ctx, job.BusinessAreaID)
	if err != nil {
		if errors.Is(err, lock.ErrLockNotAcquired) {
			metrics.LockAcquireFailures.WithLabelValues(job.BusinessAreaID).Inc()
			log.Warn("business area is locked by another run, skipping")
		}
		res.Err = err
		return res
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			log.WithError(err).Warn("failed to release business area lock")
		}
	}()

	run := func(ctx context.Context) error {
		for i, stage := range stages {
			if i > 0 {
				if err := lease.Extend(ctx, r.cfg.LockTTL); err != nil {
					return fmt.Errorf("lost business area lock: %w", err)
				}
			}
			if _, err := stage(ctx, job.BusinessAreaID); err != nil {
				return err
			}
		}
		return nil
	}

	if dryRun {
		err = r.store.RunInTransaction(ctx, func(ctx context.Context) error {
			if err := run(ctx); err != nil {
				return err
			}
			return errDryRun
		})
		if errors.Is(err, errDryRun) {
			err = nil
		}
	} else {
		err = run(ctx)
	}
	res.Summary = res.Report.Summary()
	res.Err = err

	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.RecordJobRun(string(job.Kind), job.BusinessAreaID, status, time.Since(start).Seconds())

	if err != nil {
		log.WithError(err).Error("job failed")
		return res
	}
	if dryRun {
		log.WithField("writes", res.Report.Writes()).Info("dry run finished, changes rolled back")
		return res
	}

	r.publish(ctx, job.BusinessAreaID, res.Report)
	log.WithFields(map[string]any{
		"writes":   res.Report.Writes(),
		"duration": time.Since(start).String(),
	}).Info("job finished")
	return res
}

func (r *Runner) stages(kind Kind) ([]Func, error) {
	var stages []Func
	switch kind {
	case KindMigrate:
		stages = []Func{r.drivers.Migrate, r.drivers.MigrateGrievance}
	case KindMigrateGrievance:
		stages = []Func{r.drivers.MigrateGrievance}
	case KindSync:
		stages = []Func{r.drivers.Sync}
	default:
		return nil, fmt.Errorf("unknown job kind %q", kind)
	}
	for _, stage := range stages {
		if stage == nil {
			return nil, fmt.Errorf("no driver configured for job kind %q", kind)
		}
	}
	return stages, nil
}

// publish records metrics and forwards committed changes to Kafka and the
// lineage graph. Failures here are logged; the run itself already committed.
func (r *Runner) publish(ctx context.Context, businessAreaID string, rep *report.Report) {
	changes := rep.Changes()
	for _, c := range changes {
		metrics.RecordChange(c.EntityType, string(c.Action))
	}
	for entityType, n := range rep.Skipped() {
		metrics.RecordSkipped(entityType, n)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := r.emitter.Emit(ctx, businessAreaID, changes); err != nil {
			r.logger.WithContext(ctx).WithError(err).Warn("failed to emit representation events")
		}
	}()
	go func() {
		defer wg.Done()
		if err := r.projector.Project(ctx, businessAreaID, changes); err != nil {
			r.logger.WithContext(ctx).WithError(err).Warn("failed to project lineage")
		}
	}()
	wg.Wait()
}
