package grievance

import (
	"context"
	"fmt"

	"github.com/unicef/hope-sub007/pkg/models"
	"github.com/unicef/hope-sub007/pkg/store"
)

// RefreshTicket copies the original's header onto a ticket clone and rebuilds
// the clone's detail from the original's, pointed at the clone's program.
// The caller persists rep.
func (d *Driver) RefreshTicket(ctx context.Context, orig, rep *models.GrievanceTicket) error {
	ApplyTicket(orig, rep)

	source, err := d.store.TicketDetails().First(ctx, store.Where(store.Eq("ticket_id", orig.ID)))
	if err != nil || source == nil {
		return err
	}
	current, err := d.store.TicketDetails().First(ctx, store.Where(store.Eq("ticket_id", rep.ID)))
	if err != nil {
		return err
	}

	fresh := buildDetail(source, rep.ID)
	if current != nil {
		fresh.ID = current.ID
	}
	if _, err := d.remapDetail(ctx, fresh, models.StringValue(rep.ProgramID)); err != nil {
		return err
	}
	if current == nil {
		err = d.store.TicketDetails().Insert(ctx, fresh)
	} else {
		err = d.store.TicketDetails().Update(ctx, fresh)
	}
	if err != nil {
		return fmt.Errorf("failed to refresh detail of ticket %s: %w", rep.ID, err)
	}
	return nil
}

// RefreshFeedback copies the original's columns onto a feedback clone and
// re-resolves its lookups and linked grievance. The caller persists rep.
func (d *Driver) RefreshFeedback(ctx context.Context, orig, rep *models.Feedback) error {
	ApplyFeedback(orig, rep)
	rep.HouseholdLookupID = orig.HouseholdLookupID
	rep.IndividualLookupID = orig.IndividualLookupID
	rep.LinkedGrievanceID = orig.LinkedGrievanceID

	programID := models.StringValue(rep.ProgramID)
	if err := d.remapLookups(ctx, rep, programID); err != nil {
		return err
	}
	return d.relinkGrievance(ctx, rep, programID)
}
