package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/unicef/hope-sub007/pkg/metrics"
	"github.com/unicef/hope-sub007/pkg/models"
	"github.com/unicef/hope-sub007/pkg/report"
	"github.com/unicef/hope-sub007/pkg/store"
)

type copyable[T any] interface {
	*T
	models.Copyable
}

// step runs the three sync phases for one entity type.
type step interface {
	Name() string
	Run(ctx context.Context, s *Syncer) error
}

// entity describes how one type is created, removed and refreshed.
type entity[T any, PT copyable[T]] struct {
	name string
	repo store.Repository[T]
	// scope returns the rows of the business area matching conditions.
	scope func(ctx context.Context, conditions ...store.Condition) ([]*T, error)
	// handled marks types whose originals carry is_migration_handled.
	handled bool
	create  func(ctx context.Context, originals []*T) error
	remove  func(ctx context.Context, rep PT) error
	refresh func(ctx context.Context, orig, rep PT) error
}

func (e *entity[T, PT]) Name() string {
	return e.name
}

func (e *entity[T, PT]) Run(ctx context.Context, s *Syncer) error {
	for _, phase := range []struct {
		name string
		run  func(context.Context, *Syncer) error
	}{
		{"new", e.created},
		{"removed", e.removed},
		{"modified", e.modified},
	} {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := phase.run(ctx, s); err != nil {
			return fmt.Errorf("%s phase: %w", phase.name, err)
		}
	}
	return nil
}

// created hands originals without any representation to the copy logic.
func (e *entity[T, PT]) created(ctx context.Context, s *Syncer) error {
	conditions := []store.Condition{store.Originals(), store.NotRemoved()}
	if e.handled {
		conditions = append(conditions, store.Eq("is_migration_handled", false))
	}
	originals, err := e.scope(ctx, conditions...)
	if err != nil || len(originals) == 0 {
		return err
	}

	reps, err := store.FindIn(ctx, e.repo, "copied_from_id", idsOf[T, PT](originals), store.Representations())
	if err != nil {
		return err
	}
	represented := map[string]bool{}
	for _, rep := range reps {
		represented[models.StringValue(PT(rep).GetLineage().CopiedFromID)] = true
	}

	var pending []*T
	for _, orig := range originals {
		if !represented[PT(orig).GetID()] {
			pending = append(pending, orig)
		}
	}
	if len(pending) == 0 {
		return nil
	}
	s.logger.WithContext(ctx).WithFields(map[string]any{
		"entity_type": e.name,
		"count":       len(pending),
	}).Debug("copying new originals")
	return e.create(ctx, pending)
}

// removed deletes representations whose original is gone or removed.
func (e *entity[T, PT]) removed(ctx context.Context, s *Syncer) error {
	pairs, err := e.pairs(ctx)
	if err != nil {
		return err
	}
	var doomed []PT
	for _, p := range pairs {
		if p.orig == nil || p.orig.GetLineage().IsRemoved {
			doomed = append(doomed, p.rep)
		}
	}
	return inBatches(ctx, s, doomed, func(ctx context.Context, rep PT) error {
		return e.remove(ctx, rep)
	})
}

// modified refreshes representations whose original changed after their last sync.
func (e *entity[T, PT]) modified(ctx context.Context, s *Syncer) error {
	pairs, err := e.pairs(ctx)
	if err != nil {
		return err
	}
	var drifted []pair[T, PT]
	for _, p := range pairs {
		if p.orig != nil && !p.orig.GetLineage().IsRemoved && models.Drifted(p.orig.GetLineage(), p.rep.GetLineage()) {
			drifted = append(drifted, p)
		}
	}
	return inBatches(ctx, s, drifted, func(ctx context.Context, p pair[T, PT]) error {
		if err := e.refresh(ctx, p.orig, p.rep); err != nil {
			return err
		}
		models.MarkSynced(p.orig.GetLineage(), p.rep.GetLineage())
		if err := e.repo.Update(ctx, (*T)(p.rep)); err != nil {
			return fmt.Errorf("failed to update %s %s: %w", e.name, p.rep.GetID(), err)
		}
		lineage := p.rep.GetLineage()
		report.From(ctx).Updated(e.name, p.rep.GetID(), p.orig.GetID(), models.StringValue(lineage.ProgramID))
		return nil
	})
}

type pair[T any, PT copyable[T]] struct {
	orig PT
	rep  PT
}

// pairs loads the business area's representations with their originals.
// orig is nil when the original row no longer exists.
func (e *entity[T, PT]) pairs(ctx context.Context) ([]pair[T, PT], error) {
	reps, err := e.scope(ctx, store.Representations())
	if err != nil || len(reps) == 0 {
		return nil, err
	}
	originalIDs := make([]string, 0, len(reps))
	for _, rep := range reps {
		originalIDs = append(originalIDs, models.StringValue(PT(rep).GetLineage().CopiedFromID))
	}
	originals, err := store.FindByIDs(ctx, e.repo, originalIDs, func(row *T) string { return PT(row).GetID() })
	if err != nil {
		return nil, err
	}

	out := make([]pair[T, PT], len(reps))
	for i, rep := range reps {
		out[i] = pair[T, PT]{rep: PT(rep)}
		if orig, ok := originals[models.StringValue(PT(rep).GetLineage().CopiedFromID)]; ok {
			out[i].orig = PT(orig)
		}
	}
	return out, nil
}

// inBatches runs fn over items with one transaction per batch.
func inBatches[I any](ctx context.Context, s *Syncer, items []I, fn func(context.Context, I) error) error {
	for _, batch := range store.Chunk(items, s.batchSize) {
		if err := ctx.Err(); err != nil {
			return err
		}
		start := time.Now()
		if err := s.store.RunInTransaction(ctx, func(ctx context.Context) error {
			for _, item := range batch {
				if err := fn(ctx, item); err != nil {
					return err
				}
			}
			return nil
		}); err != nil {
			return err
		}
		metrics.BatchDuration.WithLabelValues("sync").Observe(time.Since(start).Seconds())
	}
	return nil
}

func idsOf[T any, PT copyable[T]](rows []*T) []string {
	out := make([]string, len(rows))
	for i, row := range rows {
		out[i] = PT(row).GetID()
	}
	return out
}

// inArea scopes a type carrying business_area_id.
func inArea[T any](repo store.Repository[T], businessAreaID string) func(context.Context, ...store.Condition) ([]*T, error) {
	return func(ctx context.Context, conditions ...store.Condition) ([]*T, error) {
		return repo.Find(ctx, store.Where(store.Eq("business_area_id", businessAreaID)).And(conditions...).OrderBy("created_at"))
	}
}

// underParent scopes a child type through the business area's parent rows,
// originals and representations alike.
func underParent[T, P any, PP copyable[P]](repo store.Repository[T], column string, parents func(context.Context, ...store.Condition) ([]*P, error)) func(context.Context, ...store.Condition) ([]*T, error) {
	return func(ctx context.Context, conditions ...store.Condition) ([]*T, error) {
		rows, err := parents(ctx)
		if err != nil || len(rows) == 0 {
			return nil, err
		}
		return store.FindIn(ctx, repo, column, idsOf[P, PP](rows), conditions...)
	}
}

// deleteRows deletes the rows matching q and reports each one.
func deleteRows[T any, PT copyable[T]](ctx context.Context, repo store.Repository[T], entityType string, q store.Query) error {
	rows, err := repo.Find(ctx, q)
	if err != nil || len(rows) == 0 {
		return err
	}
	if _, err := repo.Delete(ctx, store.Where(store.In("id", idsOf[T, PT](rows)))); err != nil {
		return fmt.Errorf("failed to delete %s rows: %w", entityType, err)
	}
	rep := report.From(ctx)
	for _, row := range rows {
		lineage := PT(row).GetLineage()
		rep.Deleted(entityType, PT(row).GetID(), models.StringValue(lineage.CopiedFromID), models.StringValue(lineage.ProgramID))
	}
	return nil
}
