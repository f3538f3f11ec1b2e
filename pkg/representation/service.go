// Package representation finds and creates the per-program copies of
// households, individuals and their dependent rows.
package representation

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/unicef/hope-sub007/pkg/report"
	"github.com/unicef/hope-sub007/pkg/store"
)

type Service struct {
	store  store.Store
	logger ectologger.Logger
}

func New(st store.Store, logger ectologger.Logger) *Service {
	return &Service{
		store:  st,
		logger: logger,
	}
}

func (s *Service) Store() store.Store {
	return s.store
}

func (s *Service) created(ctx context.Context, entityType, id, originalID, programID string) {
	report.From(ctx).Created(entityType, id, originalID, programID)
}

func (s *Service) updated(ctx context.Context, entityType, id, originalID, programID string) {
	report.From(ctx).Updated(entityType, id, originalID, programID)
}

// skip logs and counts a record that cannot be copied yet.
func (s *Service) skip(ctx context.Context, entityType, id, programID, reason string) {
	report.From(ctx).Skip(entityType)
	s.logger.WithContext(ctx).WithFields(map[string]any{
		"entity_type": entityType,
		"id":          id,
		"program_id":  programID,
	}).Warnf("skipping representation: %s", reason)
}
