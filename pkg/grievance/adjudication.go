package grievance

import (
	"context"
	"fmt"
	"slices"

	"github.com/unicef/hope-sub007/pkg/models"
	"github.com/unicef/hope-sub007/pkg/report"
	"github.com/unicef/hope-sub007/pkg/store"
)

// migrateAdjudication places a deduplication ticket in every program where at
// least two of its individuals are represented. A ticket with no such program
// is deleted.
func (d *Driver) migrateAdjudication(ctx context.Context, ticket *models.GrievanceTicket, detail *models.TicketDetail) error {
	programs, err := d.adjudicationPrograms(ctx, detail)
	if err != nil {
		return err
	}
	if len(programs) == 0 {
		d.logger.WithContext(ctx).WithField("ticket_id", ticket.ID).
			Info("deleting adjudication ticket with no program holding two of its individuals")
		return d.DeleteTicket(ctx, ticket)
	}

	if err := d.assign(ctx, ticket, detail, programs[0]); err != nil {
		return err
	}
	if ticket.IsClosed() {
		return nil
	}
	for _, programID := range programs[1:] {
		if _, err := d.CopyGrievanceTicket(ctx, ticket, programID); err != nil {
			return err
		}
	}
	return nil
}

func (d *Driver) adjudicationPrograms(ctx context.Context, detail *models.TicketDetail) ([]string, error) {
	counts := map[string]int{}
	for _, id := range store.Unique(detail.AdjudicationIndividuals()) {
		programs, err := d.reps.IndividualPrograms(ctx, &id)
		if err != nil {
			return nil, err
		}
		for _, p := range programs {
			counts[p.ID]++
		}
	}

	var eligible []string
	for programID, n := range counts {
		if n > 1 {
			eligible = append(eligible, programID)
		}
	}
	ordered, err := d.programs.Ordered(ctx, eligible)
	if err != nil {
		return nil, err
	}
	return ids(ordered), nil
}

// remapAdjudication rewrites the golden record, possible duplicates and
// selected individuals to programID, dropping individuals not represented
// there. When the golden record is not represented, the first represented
// duplicate takes its place.
func (d *Driver) remapAdjudication(ctx context.Context, detail *models.TicketDetail, programID string) (bool, error) {
	var golden *string
	if detail.GoldenRecordsIndividualID != nil {
		rep, err := d.reps.FindIndividual(ctx, detail.GoldenRecordsIndividualID, programID)
		if err != nil {
			return false, err
		}
		if rep != nil {
			golden = &rep.ID
		}
	}

	duplicates := []string{}
	for _, id := range detail.PossibleDuplicates.Data {
		rep, err := d.reps.FindIndividual(ctx, &id, programID)
		if err != nil {
			return false, err
		}
		switch {
		case rep == nil:
		case golden == nil:
			golden = &rep.ID
		case rep.ID != *golden && !slices.Contains(duplicates, rep.ID):
			duplicates = append(duplicates, rep.ID)
		}
	}

	selected := []string{}
	for _, id := range detail.SelectedIndividuals.Data {
		rep, err := d.reps.FindIndividual(ctx, &id, programID)
		if err != nil {
			return false, err
		}
		if rep != nil && !slices.Contains(selected, rep.ID) {
			selected = append(selected, rep.ID)
		}
	}

	if golden == nil {
		golden = detail.GoldenRecordsIndividualID
	}
	changed := !models.SameString(golden, detail.GoldenRecordsIndividualID) ||
		!slices.Equal(duplicates, detail.PossibleDuplicates.Data) ||
		!slices.Equal(selected, detail.SelectedIndividuals.Data)
	if !changed {
		return false, nil
	}
	detail.GoldenRecordsIndividualID = golden
	detail.PossibleDuplicates.Data = duplicates
	detail.SelectedIndividuals.Data = selected
	return true, nil
}

// DeleteTicket removes a ticket with its detail, notes, documents, program
// assignments and links. Feedback pointing at it loses the link.
func (d *Driver) DeleteTicket(ctx context.Context, ticket *models.GrievanceTicket) error {
	byTicket := store.Where(store.Eq("ticket_id", ticket.ID))
	programID := models.StringValue(ticket.ProgramID)
	original := models.StringValue(ticket.CopiedFromID)
	rep := report.From(ctx)

	notes, err := d.store.TicketNotes().Find(ctx, byTicket)
	if err != nil {
		return err
	}
	documents, err := d.store.GrievanceDocuments().Find(ctx, byTicket)
	if err != nil {
		return err
	}

	for _, step := range []func() (int, error){
		func() (int, error) { return d.store.TicketDetails().Delete(ctx, byTicket) },
		func() (int, error) { return d.store.TicketNotes().Delete(ctx, byTicket) },
		func() (int, error) { return d.store.GrievanceDocuments().Delete(ctx, byTicket) },
		func() (int, error) { return d.store.TicketPrograms().Delete(ctx, byTicket) },
		func() (int, error) { return d.store.TicketLinks().Delete(ctx, byTicket) },
		func() (int, error) {
			return d.store.TicketLinks().Delete(ctx, store.Where(store.Eq("linked_ticket_id", ticket.ID)))
		},
	} {
		if _, err := step(); err != nil {
			return fmt.Errorf("failed to delete rows of ticket %s: %w", ticket.ID, err)
		}
	}

	linked, err := d.store.Feedbacks().Find(ctx, store.Where(store.Eq("linked_grievance_id", ticket.ID)))
	if err != nil {
		return err
	}
	for _, fb := range linked {
		fb.LinkedGrievanceID = nil
	}
	if err := d.store.Feedbacks().Update(ctx, linked...); err != nil {
		return fmt.Errorf("failed to unlink feedback from ticket %s: %w", ticket.ID, err)
	}

	if _, err := d.store.Tickets().Delete(ctx, store.Where(store.Eq("id", ticket.ID))); err != nil {
		return fmt.Errorf("failed to delete ticket %s: %w", ticket.ID, err)
	}

	for _, n := range notes {
		rep.Deleted(models.EntityTicketNote, n.ID, models.StringValue(n.CopiedFromID), programID)
	}
	for _, doc := range documents {
		rep.Deleted(models.EntityGrievanceDocument, doc.ID, models.StringValue(doc.CopiedFromID), programID)
	}
	rep.Deleted(models.EntityGrievanceTicket, ticket.ID, original, programID)
	return nil
}
