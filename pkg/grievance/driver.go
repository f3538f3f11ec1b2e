// Package grievance assigns grievance tickets, feedback and messages to the
// programs of the households and individuals they reference, cloning active
// records into every further program.
package grievance

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/unicef/hope-sub007/pkg/models"
	"github.com/unicef/hope-sub007/pkg/platform/tracing"
	"github.com/unicef/hope-sub007/pkg/programs"
	"github.com/unicef/hope-sub007/pkg/remap"
	"github.com/unicef/hope-sub007/pkg/report"
	"github.com/unicef/hope-sub007/pkg/representation"
	"github.com/unicef/hope-sub007/pkg/store"
)

const DefaultBatchSize = 500

type Config struct {
	// BatchSize is the number of tickets, and of join rows, written per transaction.
	BatchSize int
}

type Driver struct {
	store     store.Store
	reps      *representation.Service
	remapper  *remap.Remapper
	programs  *programs.Resolver
	logger    ectologger.Logger
	batchSize int
}

func New(reps *representation.Service, remapper *remap.Remapper, resolver *programs.Resolver, logger ectologger.Logger, cfg Config) *Driver {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	return &Driver{
		store:     reps.Store(),
		reps:      reps,
		remapper:  remapper,
		programs:  resolver,
		logger:    logger,
		batchSize: cfg.BatchSize,
	}
}

// Migrate handles every unhandled original ticket, feedback and message of
// the business area, then parks what is left in the Void Program.
func (d *Driver) Migrate(ctx context.Context, businessAreaID string) (*report.Report, error) {
	ctx, rep := withReport(ctx)
	ctx, span := tracing.StartSpan(ctx, "grievance.Driver.Migrate")
	defer span.End()

	start := time.Now()
	for _, step := range []struct {
		name string
		run  func(context.Context, string) error
	}{
		{"tickets", d.MigrateTickets},
		{"feedback", d.MigrateFeedback},
		{"messages", d.MigrateMessages},
		{"orphans", d.HandleNonProgramObjects},
	} {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		if err := step.run(ctx, businessAreaID); err != nil {
			return rep, fmt.Errorf("failed to migrate %s: %w", step.name, err)
		}
	}

	d.logger.WithContext(ctx).WithFields(map[string]any{
		"business_area_id": businessAreaID,
		"writes":           rep.Writes(),
		"duration":         time.Since(start).String(),
	}).Info("grievance migration finished")
	return rep, nil
}

// MigrateTickets classifies unhandled original tickets kind by kind.
func (d *Driver) MigrateTickets(ctx context.Context, businessAreaID string) error {
	ctx, span := tracing.StartSpan(ctx, "grievance.Driver.MigrateTickets")
	defer span.End()

	tickets, err := d.store.Tickets().Find(ctx, store.Where(
		store.Eq("business_area_id", businessAreaID),
		store.Originals(),
		store.NotRemoved(),
		store.Eq("is_migration_handled", false),
	).OrderBy("created_at"))
	if err != nil {
		return fmt.Errorf("failed to load tickets: %w", err)
	}
	return d.migrateTickets(ctx, tickets)
}

// MigrateTicketsByID handles the given original tickets. The sync driver
// uses it for tickets created since the last run.
func (d *Driver) MigrateTicketsByID(ctx context.Context, ids []string) error {
	found, err := store.FindByIDs(ctx, d.store.Tickets(), ids, func(t *models.GrievanceTicket) string { return t.ID },
		store.Originals(), store.NotRemoved())
	if err != nil {
		return err
	}
	tickets := make([]*models.GrievanceTicket, 0, len(found))
	for _, id := range store.Unique(ids) {
		if t, ok := found[id]; ok {
			tickets = append(tickets, t)
		}
	}
	return d.migrateTickets(ctx, tickets)
}

func (d *Driver) migrateTickets(ctx context.Context, tickets []*models.GrievanceTicket) error {
	for _, batch := range store.Chunk(tickets, d.batchSize) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := d.store.RunInTransaction(ctx, func(ctx context.Context) error {
			return d.migrateTicketBatch(ctx, batch)
		}); err != nil {
			return err
		}
	}
	return nil
}

func (d *Driver) migrateTicketBatch(ctx context.Context, batch []*models.GrievanceTicket) error {
	ids := make([]string, len(batch))
	for i, t := range batch {
		ids[i] = t.ID
	}
	details, err := d.detailsByTicket(ctx, ids)
	if err != nil {
		return err
	}
	assigned, err := d.programsByTicket(ctx, ids)
	if err != nil {
		return err
	}

	for _, kind := range models.DetailKinds {
		for _, ticket := range batch {
			detail := details[ticket.ID]
			if detail == nil || detail.Kind != kind {
				continue
			}
			if len(assigned[ticket.ID]) > 0 {
				if err := d.markTicketHandled(ctx, ticket); err != nil {
					return err
				}
				continue
			}
			if err := d.MigrateTicket(ctx, ticket, detail); err != nil {
				return fmt.Errorf("failed to migrate ticket %s: %w", ticket.ID, err)
			}
		}
	}
	return nil
}

func (d *Driver) detailsByTicket(ctx context.Context, ticketIDs []string) (map[string]*models.TicketDetail, error) {
	out := map[string]*models.TicketDetail{}
	for _, chunk := range store.Chunk(store.Unique(ticketIDs), d.batchSize) {
		rows, err := d.store.TicketDetails().Find(ctx, store.Where(store.In("ticket_id", chunk)))
		if err != nil {
			return nil, fmt.Errorf("failed to load ticket details: %w", err)
		}
		for _, row := range rows {
			out[row.TicketID] = row
		}
	}
	return out, nil
}

func (d *Driver) programsByTicket(ctx context.Context, ticketIDs []string) (map[string][]string, error) {
	out := map[string][]string{}
	for _, chunk := range store.Chunk(store.Unique(ticketIDs), d.batchSize) {
		rows, err := d.store.TicketPrograms().Find(ctx, store.Where(store.In("ticket_id", chunk)))
		if err != nil {
			return nil, fmt.Errorf("failed to load ticket programs: %w", err)
		}
		for _, row := range rows {
			out[row.TicketID] = append(out[row.TicketID], row.ProgramID)
		}
	}
	return out, nil
}

// withReport reuses the report carried by ctx or attaches a new one.
func withReport(ctx context.Context) (context.Context, *report.Report) {
	if rep := report.From(ctx); rep != nil {
		return ctx, rep
	}
	rep := report.New()
	return report.WithRecorder(ctx, rep), rep
}
