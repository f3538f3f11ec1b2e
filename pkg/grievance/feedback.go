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

// MigrateFeedback assigns unhandled original feedback to the programs of the
// household or individual it was looked up against.
func (d *Driver) MigrateFeedback(ctx context.Context, businessAreaID string) error {
	ctx, span := tracing.StartSpan(ctx, "grievance.Driver.MigrateFeedback")
	defer span.End()

	feedbacks, err := d.store.Feedbacks().Find(ctx, store.Where(
		store.Eq("business_area_id", businessAreaID),
		store.Originals(),
		store.NotRemoved(),
		store.Eq("is_migration_handled", false),
	).OrderBy("created_at"))
	if err != nil {
		return fmt.Errorf("failed to load feedback: %w", err)
	}
	return d.migrateFeedbacks(ctx, feedbacks)
}

// MigrateFeedbackByID handles the given original feedback.
func (d *Driver) MigrateFeedbackByID(ctx context.Context, ids []string) error {
	found, err := store.FindByIDs(ctx, d.store.Feedbacks(), ids, func(f *models.Feedback) string { return f.ID },
		store.Originals(), store.NotRemoved())
	if err != nil {
		return err
	}
	feedbacks := make([]*models.Feedback, 0, len(found))
	for _, id := range store.Unique(ids) {
		if f, ok := found[id]; ok {
			feedbacks = append(feedbacks, f)
		}
	}
	return d.migrateFeedbacks(ctx, feedbacks)
}

func (d *Driver) migrateFeedbacks(ctx context.Context, feedbacks []*models.Feedback) error {
	for _, batch := range store.Chunk(feedbacks, d.batchSize) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := d.store.RunInTransaction(ctx, func(ctx context.Context) error {
			for _, feedback := range batch {
				if err := d.MigrateOneFeedback(ctx, feedback); err != nil {
					return fmt.Errorf("failed to migrate feedback %s: %w", feedback.ID, err)
				}
			}
			return nil
		}); err != nil {
			return err
		}
	}
	return nil
}

// MigrateOneFeedback assigns one original feedback. Feedback whose linked
// grievance is closed stays in a single program.
func (d *Driver) MigrateOneFeedback(ctx context.Context, feedback *models.Feedback) error {
	if feedback.ProgramID != nil {
		return d.markFeedbackHandled(ctx, feedback)
	}

	programs, err := d.linkedPrograms(ctx, feedback.HouseholdLookupID, feedback.IndividualLookupID)
	if err != nil {
		return err
	}
	if len(programs) == 0 {
		d.logger.WithContext(ctx).WithField("feedback_id", feedback.ID).
			Debug("feedback matches no program, left for the void program")
		return nil
	}

	if err := d.assignFeedback(ctx, feedback, programs[0]); err != nil {
		return err
	}
	closed, err := d.linkedTicketClosed(ctx, feedback)
	if err != nil || closed {
		return err
	}
	for _, programID := range programs[1:] {
		if _, err := d.CopyFeedback(ctx, feedback, programID); err != nil {
			return err
		}
	}
	return nil
}

func (d *Driver) linkedTicketClosed(ctx context.Context, feedback *models.Feedback) (bool, error) {
	ticket, err := store.GetOptional(ctx, d.store.Tickets(), feedback.LinkedGrievanceID)
	if err != nil || ticket == nil {
		return false, err
	}
	return ticket.IsClosed(), nil
}

func (d *Driver) assignFeedback(ctx context.Context, feedback *models.Feedback, programID string) error {
	if err := d.remapLookups(ctx, feedback, programID); err != nil {
		return err
	}
	feedback.ProgramID = models.StringPtr(programID)
	feedback.IsMigrationHandled = true
	if err := d.store.Feedbacks().Update(ctx, feedback); err != nil {
		return fmt.Errorf("failed to assign feedback %s to program %s: %w", feedback.ID, programID, err)
	}
	report.From(ctx).Assigned(models.EntityFeedback, feedback.ID, programID)
	return nil
}

// remapLookups points the household and individual lookups at programID.
// Lookups without a representation there are left as they are.
func (d *Driver) remapLookups(ctx context.Context, feedback *models.Feedback, programID string) error {
	if feedback.HouseholdLookupID != nil {
		rep, err := d.reps.FindHousehold(ctx, feedback.HouseholdLookupID, programID)
		if err != nil {
			return err
		}
		if rep != nil {
			feedback.HouseholdLookupID = &rep.ID
		}
	}
	if feedback.IndividualLookupID != nil {
		rep, err := d.reps.FindIndividual(ctx, feedback.IndividualLookupID, programID)
		if err != nil {
			return err
		}
		if rep != nil {
			feedback.IndividualLookupID = &rep.ID
		}
	}
	return nil
}

// CopyFeedback clones an original feedback and its messages into programID.
// The linked grievance follows to the ticket clone of the same program when
// there is one.
func (d *Driver) CopyFeedback(ctx context.Context, feedback *models.Feedback, programID string) (*models.Feedback, error) {
	ctx, span := tracing.StartSpan(ctx, "grievance.Driver.CopyFeedback")
	defer span.End()

	existing, err := d.store.Feedbacks().First(ctx, store.RepresentationOf(feedback.ID, programID))
	if err != nil || existing != nil {
		return existing, err
	}

	clone := &models.Feedback{
		ID:                 uuid.NewString(),
		UnicefID:           newUnicefID("FED"),
		HouseholdLookupID:  feedback.HouseholdLookupID,
		IndividualLookupID: feedback.IndividualLookupID,
		LinkedGrievanceID:  feedback.LinkedGrievanceID,
		CreatedAt:          feedback.CreatedAt,
		Lineage:            models.RepresentationOf(&feedback.Lineage, feedback.ID, feedback.UnicefID, programID),
	}
	ApplyFeedback(feedback, clone)
	if err := d.remapLookups(ctx, clone, programID); err != nil {
		return nil, err
	}
	if err := d.relinkGrievance(ctx, clone, programID); err != nil {
		return nil, err
	}
	if err := d.store.Feedbacks().Insert(ctx, clone); err != nil {
		return nil, fmt.Errorf("failed to insert clone of feedback %s: %w", feedback.ID, err)
	}
	report.From(ctx).Created(models.EntityFeedback, clone.ID, feedback.ID, programID)

	messages, err := d.store.FeedbackMessages().Find(ctx, store.Where(
		store.Eq("feedback_id", feedback.ID), store.Originals(), store.NotRemoved(),
	).OrderBy("created_at"))
	if err != nil {
		return nil, err
	}
	for _, message := range messages {
		if _, err := d.CopyFeedbackMessage(ctx, message, clone.ID, programID); err != nil {
			return nil, err
		}
	}
	return clone, nil
}

func (d *Driver) relinkGrievance(ctx context.Context, feedback *models.Feedback, programID string) error {
	if feedback.LinkedGrievanceID == nil {
		return nil
	}
	rep, err := d.store.Tickets().First(ctx, store.RepresentationOf(*feedback.LinkedGrievanceID, programID))
	if err != nil {
		return err
	}
	if rep != nil {
		feedback.LinkedGrievanceID = &rep.ID
	}
	return nil
}

func (d *Driver) CopyFeedbackMessage(ctx context.Context, message *models.FeedbackMessage, feedbackID, programID string) (*models.FeedbackMessage, error) {
	existing, err := d.store.FeedbackMessages().First(ctx, store.RepresentationOf(message.ID, programID))
	if err != nil || existing != nil {
		return existing, err
	}
	rep := &models.FeedbackMessage{
		ID:         uuid.NewString(),
		FeedbackID: feedbackID,
		CreatedAt:  message.CreatedAt,
		Lineage:    models.RepresentationOf(&message.Lineage, message.ID, "", programID),
	}
	ApplyFeedbackMessage(message, rep)
	if err := d.store.FeedbackMessages().Insert(ctx, rep); err != nil {
		return nil, fmt.Errorf("failed to insert feedback message representation of %s: %w", message.ID, err)
	}
	report.From(ctx).Created(models.EntityFeedbackMessage, rep.ID, message.ID, programID)
	return rep, nil
}

func (d *Driver) markFeedbackHandled(ctx context.Context, feedback *models.Feedback) error {
	if feedback.IsMigrationHandled {
		return nil
	}
	feedback.IsMigrationHandled = true
	if err := d.store.Feedbacks().Update(ctx, feedback); err != nil {
		return fmt.Errorf("failed to mark feedback %s handled: %w", feedback.ID, err)
	}
	return nil
}
