// Package syncer keeps representations in step with their originals after
// the initial migration: new originals are copied, removed ones are deleted
// and modified ones are pushed to every representation.
package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/unicef/hope-sub007/pkg/grievance"
	"github.com/unicef/hope-sub007/pkg/migration"
	"github.com/unicef/hope-sub007/pkg/platform/tracing"
	"github.com/unicef/hope-sub007/pkg/report"
	"github.com/unicef/hope-sub007/pkg/representation"
	"github.com/unicef/hope-sub007/pkg/store"
)

const DefaultBatchSize = 500

type Config struct {
	// BatchSize is the number of representations written per transaction.
	BatchSize int
}

type Syncer struct {
	store     store.Store
	reps      *representation.Service
	migrator  *migration.Migrator
	grievance *grievance.Driver
	logger    ectologger.Logger
	batchSize int
}

func New(reps *representation.Service, migrator *migration.Migrator, driver *grievance.Driver, logger ectologger.Logger, cfg Config) *Syncer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	return &Syncer{
		store:     reps.Store(),
		reps:      reps,
		migrator:  migrator,
		grievance: driver,
		logger:    logger,
		batchSize: cfg.BatchSize,
	}
}

// Sync runs the new, removed and modified phases for every entity type of the
// business area in dependency order, then parks grievance records left
// without a program.
func (s *Syncer) Sync(ctx context.Context, businessAreaID string) (*report.Report, error) {
	ctx, rep := withReport(ctx)
	ctx, span := tracing.StartSpan(ctx, "syncer.Syncer.Sync")
	defer span.End()

	start := time.Now()
	for _, st := range s.steps(businessAreaID) {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		if err := st.Run(ctx, s); err != nil {
			return rep, fmt.Errorf("failed to sync %s: %w", st.Name(), err)
		}
	}
	if err := s.grievance.HandleNonProgramObjects(ctx, businessAreaID); err != nil {
		return rep, err
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"business_area_id": businessAreaID,
		"writes":           rep.Writes(),
		"skipped":          rep.Skipped(),
		"duration":         time.Since(start).String(),
	}).Info("sync finished")
	return rep, nil
}

// EntityTypes lists the synced types in processing order.
func (s *Syncer) EntityTypes() []string {
	steps := s.steps("")
	out := make([]string, len(steps))
	for i, st := range steps {
		out[i] = st.Name()
	}
	return out
}

func (s *Syncer) steps(businessAreaID string) []step {
	households := s.householdEntity(businessAreaID)
	individuals := s.individualEntity(businessAreaID)
	tickets := s.ticketEntity(businessAreaID)
	feedbacks := s.feedbackEntity(businessAreaID)
	return []step{
		households,
		individuals,
		s.roleEntity(households),
		s.documentEntity(individuals),
		s.identityEntity(individuals),
		s.bankAccountEntity(individuals),
		tickets,
		s.noteEntity(tickets),
		s.grievanceDocumentEntity(tickets),
		feedbacks,
		s.feedbackMessageEntity(feedbacks),
		s.messageEntity(businessAreaID),
	}
}

func withReport(ctx context.Context) (context.Context, *report.Report) {
	if rep := report.From(ctx); rep != nil {
		return ctx, rep
	}
	rep := report.New()
	return report.WithRecorder(ctx, rep), rep
}
