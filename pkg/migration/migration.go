// Package migration copies a business area's households and individuals into
// the programs that claim them.
package migration

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/unicef/hope-sub007/pkg/metrics"
	"github.com/unicef/hope-sub007/pkg/models"
	"github.com/unicef/hope-sub007/pkg/platform/tracing"
	"github.com/unicef/hope-sub007/pkg/programs"
	"github.com/unicef/hope-sub007/pkg/report"
	"github.com/unicef/hope-sub007/pkg/representation"
	"github.com/unicef/hope-sub007/pkg/store"
)

const DefaultBatchSize = 500

type Config struct {
	// BatchSize is the number of households copied per transaction.
	BatchSize int
}

type Migrator struct {
	store     store.Store
	reps      *representation.Service
	programs  *programs.Resolver
	logger    ectologger.Logger
	batchSize int
}

func New(reps *representation.Service, resolver *programs.Resolver, logger ectologger.Logger, cfg Config) *Migrator {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	return &Migrator{
		store:     reps.Store(),
		reps:      reps,
		programs:  resolver,
		logger:    logger,
		batchSize: cfg.BatchSize,
	}
}

// Migrate copies every original household of the business area, one
// registration data import at a time, into the programs claiming it.
// Households registered outside any import are handled last.
func (m *Migrator) Migrate(ctx context.Context, businessAreaID string) (*report.Report, error) {
	ctx, rep := withReport(ctx)
	ctx, span := tracing.StartSpan(ctx, "migration.Migrator.Migrate")
	defer span.End()

	log := m.logger.WithContext(ctx).WithField("business_area_id", businessAreaID)
	start := time.Now()

	rdis, err := m.store.RegistrationDataImports().Find(ctx, store.Where(
		store.Eq("business_area_id", businessAreaID),
	).OrderBy("created_at"))
	if err != nil {
		return rep, fmt.Errorf("failed to load registration data imports: %w", err)
	}

	for _, rdi := range rdis {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		households, err := m.households(ctx, businessAreaID, store.Eq("registration_data_import_id", rdi.ID))
		if err != nil {
			return rep, err
		}
		if err := m.migrateGroup(ctx, businessAreaID, rdi, households); err != nil {
			return rep, fmt.Errorf("failed to migrate registration data import %s: %w", rdi.ID, err)
		}
	}

	if err := m.HandleNonProgramObjects(ctx, businessAreaID); err != nil {
		return rep, err
	}

	log.WithFields(map[string]any{
		"rdis":     len(rdis),
		"writes":   rep.Writes(),
		"duration": time.Since(start).String(),
	}).Info("household migration finished")
	return rep, nil
}

// HandleNonProgramObjects copies households that belong to no import.
func (m *Migrator) HandleNonProgramObjects(ctx context.Context, businessAreaID string) error {
	households, err := m.households(ctx, businessAreaID, store.IsNull("registration_data_import_id"))
	if err != nil {
		return err
	}
	if len(households) == 0 {
		return nil
	}
	if err := m.migrateGroup(ctx, businessAreaID, nil, households); err != nil {
		return fmt.Errorf("failed to migrate households without import: %w", err)
	}
	return nil
}

// MigrateHouseholds copies the given original households, grouped by import,
// into their claiming programs.
func (m *Migrator) MigrateHouseholds(ctx context.Context, businessAreaID string, households []*models.Household) error {
	ctx, span := tracing.StartSpan(ctx, "migration.Migrator.MigrateHouseholds")
	defer span.End()

	groups := map[string][]*models.Household{}
	var order []string
	for _, hh := range households {
		if !hh.IsOriginal || hh.IsRemoved {
			continue
		}
		key := models.StringValue(hh.RegistrationDataImportID)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], hh)
	}

	for _, key := range order {
		var rdi *models.RegistrationDataImport
		if key != "" {
			loaded, err := store.GetOptional(ctx, m.store.RegistrationDataImports(), &key)
			if err != nil {
				return err
			}
			rdi = loaded
		}
		if err := m.migrateGroup(ctx, businessAreaID, rdi, groups[key]); err != nil {
			return err
		}
	}
	return nil
}

func (m *Migrator) households(ctx context.Context, businessAreaID string, condition store.Condition) ([]*models.Household, error) {
	households, err := m.store.Households().Find(ctx, store.Where(
		store.Eq("business_area_id", businessAreaID),
		store.Originals(),
		store.NotRemoved(),
		condition,
	).OrderBy("created_at"))
	if err != nil {
		return nil, fmt.Errorf("failed to load households: %w", err)
	}
	return households, nil
}

// migrateGroup copies households sharing one import (or none) in batches,
// one transaction per batch.
func (m *Migrator) migrateGroup(ctx context.Context, businessAreaID string, rdi *models.RegistrationDataImport, households []*models.Household) error {
	if len(households) == 0 {
		return nil
	}
	ctx, span := tracing.StartSpan(ctx, "migration.Migrator.migrateGroup")
	defer span.End()

	var targets []*models.Program
	err := m.store.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		targets, err = m.targetPrograms(ctx, businessAreaID, rdi, households)
		if err != nil {
			return err
		}
		return m.assignImport(ctx, rdi, targets)
	})
	if err != nil {
		return err
	}

	log := m.logger.WithContext(ctx).WithFields(map[string]any{
		"business_area_id": businessAreaID,
		"rdi_id":           rdiID(rdi),
		"households":       len(households),
		"programs":         len(targets),
	})
	log.Debug("migrating household group")

	for i, batch := range store.Chunk(households, m.batchSize) {
		if err := ctx.Err(); err != nil {
			return err
		}
		batchStart := time.Now()
		err := m.store.RunInTransaction(ctx, func(ctx context.Context) error {
			copied := map[string]bool{}
			for _, program := range targets {
				reps, err := m.reps.CopyHouseholdsFast(ctx, batch, program.ID)
				if err != nil {
					return fmt.Errorf("failed to copy households into program %s: %w", program.ID, err)
				}
				for _, rep := range reps {
					copied[models.StringValue(rep.CopiedFromID)] = true
				}
			}
			return m.markHandled(ctx, batch, copied)
		})
		if err != nil {
			log.WithError(err).WithField("batch", i).Error("household batch failed")
			return err
		}
		metrics.BatchDuration.WithLabelValues("migrate_households").Observe(time.Since(batchStart).Seconds())
	}
	return nil
}

// targetPrograms returns the programs claiming an import's households: its
// explicit assignments and the programs of target populations selecting any
// of them. Unclaimed imports go to the storage program of their collecting
// type; unclaimed households without an import go to the Void Program.
func (m *Migrator) targetPrograms(ctx context.Context, businessAreaID string, rdi *models.RegistrationDataImport, households []*models.Household) ([]*models.Program, error) {
	var ids []string
	if rdi != nil {
		assigned, err := m.store.RDIPrograms().Find(ctx, store.Where(store.Eq("registration_data_import_id", rdi.ID)))
		if err != nil {
			return nil, fmt.Errorf("failed to load program assignments: %w", err)
		}
		for _, a := range assigned {
			ids = append(ids, a.ProgramID)
		}
	}

	selected, err := m.selectedPrograms(ctx, rdi, households)
	if err != nil {
		return nil, err
	}
	ids = append(ids, selected...)

	claimed, err := m.programs.Ordered(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(claimed) > 0 {
		return claimed, nil
	}

	if rdi == nil {
		void, err := m.programs.VoidProgram(ctx, businessAreaID)
		if err != nil {
			return nil, err
		}
		return []*models.Program{void}, nil
	}
	code, err := m.programs.CollectingTypeCode(ctx, rdi)
	if err != nil {
		return nil, err
	}
	storage, err := m.programs.StorageProgram(ctx, businessAreaID, code)
	if err != nil {
		return nil, err
	}
	return []*models.Program{storage}, nil
}

// selectedPrograms lists programs of target populations selecting any
// household of the import, or of the given households when there is none.
func (m *Migrator) selectedPrograms(ctx context.Context, rdi *models.RegistrationDataImport, households []*models.Household) ([]string, error) {
	householdIDs := make([]string, 0, len(households))
	for _, hh := range households {
		householdIDs = append(householdIDs, hh.ID)
	}
	if rdi != nil {
		all, err := m.store.Households().Find(ctx, store.Where(
			store.Originals(),
			store.Eq("registration_data_import_id", rdi.ID),
		))
		if err != nil {
			return nil, err
		}
		householdIDs = householdIDs[:0]
		for _, hh := range all {
			householdIDs = append(householdIDs, hh.ID)
		}
	}

	var tpIDs []string
	for _, chunk := range store.Chunk(store.Unique(householdIDs), m.batchSize) {
		selections, err := m.store.HouseholdSelections().Find(ctx, store.Where(store.In("household_id", chunk)))
		if err != nil {
			return nil, fmt.Errorf("failed to load household selections: %w", err)
		}
		for _, s := range selections {
			tpIDs = append(tpIDs, s.TargetPopulationID)
		}
	}
	tps, err := store.FindByIDs(ctx, m.store.TargetPopulations(), tpIDs, func(tp *models.TargetPopulation) string { return tp.ID })
	if err != nil {
		return nil, fmt.Errorf("failed to load target populations: %w", err)
	}

	var ids []string
	for _, tp := range tps {
		if tp.ProgramID != nil {
			ids = append(ids, *tp.ProgramID)
		}
	}
	return ids, nil
}

// assignImport records the import to program assignment for every target.
func (m *Migrator) assignImport(ctx context.Context, rdi *models.RegistrationDataImport, targets []*models.Program) error {
	if rdi == nil {
		return nil
	}
	for _, program := range targets {
		existing, err := m.store.RDIPrograms().First(ctx, store.Where(
			store.Eq("registration_data_import_id", rdi.ID),
			store.Eq("program_id", program.ID),
		))
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		if err := m.store.RDIPrograms().Insert(ctx, &models.RDIProgram{
			ID:                       uuid.NewString(),
			RegistrationDataImportID: rdi.ID,
			ProgramID:                program.ID,
			CreatedAt:                time.Now().UTC(),
		}); err != nil {
			return fmt.Errorf("failed to assign import %s to program %s: %w", rdi.ID, program.ID, err)
		}
	}
	return nil
}

// markHandled flags copied originals so the sync driver does not treat them
// as new. Skipped households stay unhandled and are retried by the next sync.
func (m *Migrator) markHandled(ctx context.Context, households []*models.Household, copied map[string]bool) error {
	var pending []*models.Household
	for _, hh := range households {
		if copied[hh.ID] && !hh.IsMigrationHandled {
			hh.IsMigrationHandled = true
			pending = append(pending, hh)
		}
	}
	if err := m.store.Households().Update(ctx, pending...); err != nil {
		return fmt.Errorf("failed to mark households handled: %w", err)
	}
	return nil
}

func rdiID(rdi *models.RegistrationDataImport) string {
	if rdi == nil {
		return ""
	}
	return rdi.ID
}

// withReport reuses the report carried by ctx or attaches a new one.
func withReport(ctx context.Context) (context.Context, *report.Report) {
	if rep := report.From(ctx); rep != nil {
		return ctx, rep
	}
	rep := report.New()
	return report.WithRecorder(ctx, rep), rep
}
