package grievance

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/unicef/hope-sub007/pkg/models"
	"github.com/unicef/hope-sub007/pkg/platform/tracing"
	"github.com/unicef/hope-sub007/pkg/report"
	"github.com/unicef/hope-sub007/pkg/store"
)

// HandleNonProgramObjects parks every original ticket, feedback and message
// of the business area that is still without a program in the Void Program.
func (d *Driver) HandleNonProgramObjects(ctx context.Context, businessAreaID string) error {
	ctx, span := tracing.StartSpan(ctx, "grievance.Driver.HandleNonProgramObjects")
	defer span.End()

	tickets, err := d.orphanTickets(ctx, businessAreaID)
	if err != nil {
		return err
	}
	feedbacks, err := d.store.Feedbacks().Find(ctx, store.Where(
		store.Eq("business_area_id", businessAreaID),
		store.Originals(),
		store.NotRemoved(),
		store.IsNull("program_id"),
	).OrderBy("created_at"))
	if err != nil {
		return fmt.Errorf("failed to load feedback without program: %w", err)
	}
	messages, err := d.store.Messages().Find(ctx, store.Where(
		store.Eq("business_area_id", businessAreaID),
		store.Originals(),
		store.NotRemoved(),
		store.IsNull("program_id"),
	).OrderBy("created_at"))
	if err != nil {
		return fmt.Errorf("failed to load messages without program: %w", err)
	}
	if len(tickets)+len(feedbacks)+len(messages) == 0 {
		return nil
	}

	void, err := d.programs.VoidProgram(ctx, businessAreaID)
	if err != nil {
		return err
	}

	for _, batch := range store.Chunk(tickets, d.batchSize) {
		if err := d.store.RunInTransaction(ctx, func(ctx context.Context) error {
			return d.parkTickets(ctx, batch, void.ID)
		}); err != nil {
			return err
		}
	}
	for _, batch := range store.Chunk(feedbacks, d.batchSize) {
		if err := d.store.RunInTransaction(ctx, func(ctx context.Context) error {
			for _, feedback := range batch {
				if err := d.assignFeedback(ctx, feedback, void.ID); err != nil {
					return err
				}
			}
			return nil
		}); err != nil {
			return err
		}
	}
	for _, batch := range store.Chunk(messages, d.batchSize) {
		if err := d.store.RunInTransaction(ctx, func(ctx context.Context) error {
			for _, message := range batch {
				if err := d.assignMessage(ctx, message, void.ID); err != nil {
					return err
				}
			}
			return nil
		}); err != nil {
			return err
		}
	}

	d.logger.WithContext(ctx).WithFields(map[string]any{
		"business_area_id": businessAreaID,
		"program_id":       void.ID,
		"tickets":          len(tickets),
		"feedback":         len(feedbacks),
		"messages":         len(messages),
	}).Info("parked records without program in the void program")
	return nil
}

// orphanTickets lists the original tickets with no program row.
func (d *Driver) orphanTickets(ctx context.Context, businessAreaID string) ([]*models.GrievanceTicket, error) {
	tickets, err := d.store.Tickets().Find(ctx, store.Where(
		store.Eq("business_area_id", businessAreaID),
		store.Originals(),
		store.NotRemoved(),
	).OrderBy("created_at"))
	if err != nil {
		return nil, fmt.Errorf("failed to load tickets: %w", err)
	}
	ticketIDs := make([]string, len(tickets))
	for i, t := range tickets {
		ticketIDs[i] = t.ID
	}
	assigned, err := d.programsByTicket(ctx, ticketIDs)
	if err != nil {
		return nil, err
	}

	var orphans []*models.GrievanceTicket
	for _, t := range tickets {
		if len(assigned[t.ID]) == 0 {
			orphans = append(orphans, t)
		}
	}
	return orphans, nil
}

// parkTickets bulk-inserts the Void Program rows of one batch.
func (d *Driver) parkTickets(ctx context.Context, tickets []*models.GrievanceTicket, voidID string) error {
	rows := make([]*models.TicketProgram, len(tickets))
	for i, t := range tickets {
		rows[i] = &models.TicketProgram{ID: uuid.NewString(), TicketID: t.ID, ProgramID: voidID}
	}
	if err := d.store.TicketPrograms().Insert(ctx, rows...); err != nil {
		return fmt.Errorf("failed to assign tickets to the void program: %w", err)
	}
	for _, t := range tickets {
		report.From(ctx).Assigned(models.EntityGrievanceTicket, t.ID, voidID)
		if err := d.markTicketHandled(ctx, t); err != nil {
			return err
		}
	}
	return nil
}
