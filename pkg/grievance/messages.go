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

// MigrateMessages assigns unhandled original messages to the program of their
// target population, or to the programs of their recipient households.
func (d *Driver) MigrateMessages(ctx context.Context, businessAreaID string) error {
	ctx, span := tracing.StartSpan(ctx, "grievance.Driver.MigrateMessages")
	defer span.End()

	messages, err := d.store.Messages().Find(ctx, store.Where(
		store.Eq("business_area_id", businessAreaID),
		store.Originals(),
		store.NotRemoved(),
		store.Eq("is_migration_handled", false),
	).OrderBy("created_at"))
	if err != nil {
		return fmt.Errorf("failed to load messages: %w", err)
	}
	return d.migrateMessages(ctx, messages)
}

// MigrateMessagesByID handles the given original messages.
func (d *Driver) MigrateMessagesByID(ctx context.Context, ids []string) error {
	found, err := store.FindByIDs(ctx, d.store.Messages(), ids, func(m *models.Message) string { return m.ID },
		store.Originals(), store.NotRemoved())
	if err != nil {
		return err
	}
	messages := make([]*models.Message, 0, len(found))
	for _, id := range store.Unique(ids) {
		if m, ok := found[id]; ok {
			messages = append(messages, m)
		}
	}
	return d.migrateMessages(ctx, messages)
}

func (d *Driver) migrateMessages(ctx context.Context, messages []*models.Message) error {
	for _, batch := range store.Chunk(messages, d.batchSize) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := d.store.RunInTransaction(ctx, func(ctx context.Context) error {
			for _, message := range batch {
				if err := d.MigrateMessage(ctx, message); err != nil {
					return fmt.Errorf("failed to migrate message %s: %w", message.ID, err)
				}
			}
			return nil
		}); err != nil {
			return err
		}
	}
	return nil
}

func (d *Driver) MigrateMessage(ctx context.Context, message *models.Message) error {
	if message.ProgramID != nil {
		return d.markMessageHandled(ctx, message)
	}

	programs, err := d.messagePrograms(ctx, message)
	if err != nil {
		return err
	}
	if len(programs) == 0 {
		d.logger.WithContext(ctx).WithField("message_id", message.ID).
			Debug("message matches no program, left for the void program")
		return nil
	}

	if err := d.assignMessage(ctx, message, programs[0]); err != nil {
		return err
	}
	for _, programID := range programs[1:] {
		if _, err := d.CopyMessage(ctx, message, programID); err != nil {
			return err
		}
	}
	return nil
}

// messagePrograms is the target population's program, or the union of the
// recipient households' programs ordered by program creation.
func (d *Driver) messagePrograms(ctx context.Context, message *models.Message) ([]string, error) {
	tp, err := store.GetOptional(ctx, d.store.TargetPopulations(), message.TargetPopulationID)
	if err != nil {
		return nil, err
	}
	if tp != nil && tp.ProgramID != nil {
		return []string{*tp.ProgramID}, nil
	}

	recipients, err := d.recipients(ctx, message.ID)
	if err != nil {
		return nil, err
	}
	var all []string
	for _, row := range recipients {
		programs, err := d.reps.HouseholdPrograms(ctx, &row.HouseholdID)
		if err != nil {
			return nil, err
		}
		all = append(all, ids(programs)...)
	}
	ordered, err := d.programs.Ordered(ctx, store.Unique(all))
	if err != nil {
		return nil, err
	}
	return ids(ordered), nil
}

func (d *Driver) recipients(ctx context.Context, messageID string) ([]*models.MessageHousehold, error) {
	return d.store.MessageHouseholds().Find(ctx, store.Where(store.Eq("message_id", messageID)).OrderBy("id"))
}

// assignMessage puts the original message in programID and repoints its
// recipients at the program's household representations.
func (d *Driver) assignMessage(ctx context.Context, message *models.Message, programID string) error {
	recipients, err := d.recipients(ctx, message.ID)
	if err != nil {
		return err
	}
	var changed []*models.MessageHousehold
	for _, row := range recipients {
		rep, err := d.reps.FindHousehold(ctx, &row.HouseholdID, programID)
		if err != nil {
			return err
		}
		if rep != nil && rep.ID != row.HouseholdID {
			row.HouseholdID = rep.ID
			changed = append(changed, row)
		}
	}
	if len(changed) > 0 {
		if err := d.store.MessageHouseholds().Update(ctx, changed...); err != nil {
			return fmt.Errorf("failed to repoint recipients of message %s: %w", message.ID, err)
		}
	}

	message.ProgramID = models.StringPtr(programID)
	message.IsMigrationHandled = true
	if err := d.store.Messages().Update(ctx, message); err != nil {
		return fmt.Errorf("failed to assign message %s to program %s: %w", message.ID, programID, err)
	}
	report.From(ctx).Assigned(models.EntityMessage, message.ID, programID)
	return nil
}

// CopyMessage clones an original message into programID. The clone is sent
// to the program's representations of the recipients that have one.
func (d *Driver) CopyMessage(ctx context.Context, message *models.Message, programID string) (*models.Message, error) {
	ctx, span := tracing.StartSpan(ctx, "grievance.Driver.CopyMessage")
	defer span.End()

	existing, err := d.store.Messages().First(ctx, store.RepresentationOf(message.ID, programID))
	if err != nil || existing != nil {
		return existing, err
	}

	recipients, err := d.recipients(ctx, message.ID)
	if err != nil {
		return nil, err
	}
	clone := &models.Message{
		ID:        uuid.NewString(),
		UnicefID:  newUnicefID("MSG"),
		CreatedAt: message.CreatedAt,
		Lineage:   models.RepresentationOf(&message.Lineage, message.ID, message.UnicefID, programID),
	}
	ApplyMessage(message, clone)

	rows := make([]*models.MessageHousehold, 0, len(recipients))
	for _, row := range recipients {
		rep, err := d.reps.FindHousehold(ctx, &row.HouseholdID, programID)
		if err != nil {
			return nil, err
		}
		if rep == nil {
			continue
		}
		rows = append(rows, &models.MessageHousehold{ID: uuid.NewString(), MessageID: clone.ID, HouseholdID: rep.ID})
	}
	clone.NumberOfRecipients = len(rows)

	if err := d.store.Messages().Insert(ctx, clone); err != nil {
		return nil, fmt.Errorf("failed to insert clone of message %s: %w", message.ID, err)
	}
	if err := d.store.MessageHouseholds().Insert(ctx, rows...); err != nil {
		return nil, fmt.Errorf("failed to insert recipients of message %s: %w", clone.ID, err)
	}
	report.From(ctx).Created(models.EntityMessage, clone.ID, message.ID, programID)
	return clone, nil
}

func (d *Driver) markMessageHandled(ctx context.Context, message *models.Message) error {
	if message.IsMigrationHandled {
		return nil
	}
	message.IsMigrationHandled = true
	if err := d.store.Messages().Update(ctx, message); err != nil {
		return fmt.Errorf("failed to mark message %s handled: %w", message.ID, err)
	}
	return nil
}
