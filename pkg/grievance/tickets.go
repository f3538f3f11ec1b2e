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

// MigrateTicket assigns one original ticket without programs. Payment-linked
// tickets follow their payment's program. Household or individual linked
// tickets go to the first program holding a representation; active ones are
// cloned into the rest. Tickets that match nothing are left for the Void
// Program.
func (d *Driver) MigrateTicket(ctx context.Context, ticket *models.GrievanceTicket, detail *models.TicketDetail) error {
	ctx, span := tracing.StartSpan(ctx, "grievance.Driver.MigrateTicket")
	defer span.End()

	if detail.Kind == models.DetailNeedsAdjudication {
		return d.migrateAdjudication(ctx, ticket, detail)
	}

	if detail.Kind.Shape().PaymentLinked {
		programID, err := d.paymentProgram(ctx, detail)
		if err != nil {
			return err
		}
		if programID != "" {
			return d.assign(ctx, ticket, detail, programID)
		}
	}

	programs, err := d.linkedPrograms(ctx, detail.HouseholdRef(), detail.IndividualRef())
	if err != nil {
		return err
	}
	if len(programs) == 0 {
		d.logger.WithContext(ctx).WithFields(map[string]any{
			"ticket_id": ticket.ID,
			"kind":      detail.Kind,
		}).Debug("ticket matches no program, left for the void program")
		return nil
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

// linkedPrograms lists the programs of the referenced household, or of the
// referenced individual when the household has none, oldest first.
func (d *Driver) linkedPrograms(ctx context.Context, householdID, individualID *string) ([]string, error) {
	if householdID != nil {
		programs, err := d.reps.HouseholdPrograms(ctx, householdID)
		if err != nil {
			return nil, err
		}
		if len(programs) > 0 {
			return ids(programs), nil
		}
	}
	if individualID != nil {
		programs, err := d.reps.IndividualPrograms(ctx, individualID)
		if err != nil {
			return nil, err
		}
		return ids(programs), nil
	}
	return nil, nil
}

// paymentProgram follows a payment-linked detail to the program that paid.
func (d *Driver) paymentProgram(ctx context.Context, detail *models.TicketDetail) (string, error) {
	objectType, objectID := detail.PaymentObjectType, detail.PaymentObjectID
	if detail.Kind == models.DetailPaymentVerification {
		verification, err := store.GetOptional(ctx, d.store.PaymentVerifications(), detail.PaymentVerificationID)
		if err != nil || verification == nil {
			return "", err
		}
		objectType, objectID = &verification.PaymentObjectType, &verification.PaymentObjectID
	}
	if objectType == nil || objectID == nil {
		return "", nil
	}

	var targetPopulationID *string
	switch *objectType {
	case models.PaymentObjectPayment:
		payment, err := store.GetOptional(ctx, d.store.Payments(), objectID)
		if err != nil || payment == nil {
			return "", err
		}
		plan, err := store.GetOptional(ctx, d.store.PaymentPlans(), &payment.ParentID)
		if err != nil || plan == nil {
			return "", err
		}
		targetPopulationID = plan.TargetPopulationID
	case models.PaymentObjectPaymentRecord:
		record, err := store.GetOptional(ctx, d.store.PaymentRecords(), objectID)
		if err != nil || record == nil {
			return "", err
		}
		targetPopulationID = record.TargetPopulationID
	default:
		return "", nil
	}

	tp, err := store.GetOptional(ctx, d.store.TargetPopulations(), targetPopulationID)
	if err != nil || tp == nil {
		return "", err
	}
	return models.StringValue(tp.ProgramID), nil
}

// assign puts an original ticket in programID and points its detail at the
// program's representations.
func (d *Driver) assign(ctx context.Context, ticket *models.GrievanceTicket, detail *models.TicketDetail, programID string) error {
	added, err := d.ensureTicketProgram(ctx, ticket.ID, programID)
	if err != nil {
		return err
	}
	changed, err := d.remapDetail(ctx, detail, programID)
	if err != nil {
		return err
	}
	if changed {
		if err := d.store.TicketDetails().Update(ctx, detail); err != nil {
			return fmt.Errorf("failed to update detail of ticket %s: %w", ticket.ID, err)
		}
	}
	if added {
		report.From(ctx).Assigned(models.EntityGrievanceTicket, ticket.ID, programID)
	}
	return d.markTicketHandled(ctx, ticket)
}

func (d *Driver) ensureTicketProgram(ctx context.Context, ticketID, programID string) (bool, error) {
	existing, err := d.store.TicketPrograms().First(ctx, store.Where(
		store.Eq("ticket_id", ticketID),
		store.Eq("program_id", programID),
	))
	if err != nil || existing != nil {
		return false, err
	}
	if err := d.store.TicketPrograms().Insert(ctx, &models.TicketProgram{
		ID:        uuid.NewString(),
		TicketID:  ticketID,
		ProgramID: programID,
	}); err != nil {
		return false, fmt.Errorf("failed to assign ticket %s to program %s: %w", ticketID, programID, err)
	}
	return true, nil
}

func (d *Driver) markTicketHandled(ctx context.Context, ticket *models.GrievanceTicket) error {
	if ticket.IsMigrationHandled {
		return nil
	}
	ticket.IsMigrationHandled = true
	if err := d.store.Tickets().Update(ctx, ticket); err != nil {
		return fmt.Errorf("failed to mark ticket %s handled: %w", ticket.ID, err)
	}
	return nil
}

func ids(programs []*models.Program) []string {
	out := make([]string, len(programs))
	for i, p := range programs {
		out[i] = p.ID
	}
	return out
}
