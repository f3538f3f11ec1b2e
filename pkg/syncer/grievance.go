package syncer

import (
	"context"

	"github.com/unicef/hope-sub007/pkg/grievance"
	"github.com/unicef/hope-sub007/pkg/models"
	"github.com/unicef/hope-sub007/pkg/store"
)

type (
	ticketSync   = entity[models.GrievanceTicket, *models.GrievanceTicket]
	feedbackSync = entity[models.Feedback, *models.Feedback]
)

func (s *Syncer) ticketEntity(businessAreaID string) *ticketSync {
	return &ticketSync{
		name:    models.EntityGrievanceTicket,
		repo:    s.store.Tickets(),
		scope:   inArea(s.store.Tickets(), businessAreaID),
		handled: true,
		create: func(ctx context.Context, originals []*models.GrievanceTicket) error {
			return s.grievance.MigrateTicketsByID(ctx, idsOf[models.GrievanceTicket](originals))
		},
		remove:  s.grievance.DeleteTicket,
		refresh: s.grievance.RefreshTicket,
	}
}

// ticketChild builds the entity of a row attached to a ticket. New rows of an
// original ticket are copied onto each of its clones.
func ticketChild[T any, PT copyable[T]](
	s *Syncer,
	name string,
	repo store.Repository[T],
	tickets *ticketSync,
	ticketOf func(PT) string,
	copyTo func(ctx context.Context, row PT, ticketID, programID string) (PT, error),
	apply func(orig, rep PT),
) step {
	return &entity[T, PT]{
		name:  name,
		repo:  repo,
		scope: underParent(repo, "ticket_id", tickets.scope),
		create: func(ctx context.Context, originals []*T) error {
			return inBatches(ctx, s, originals, func(ctx context.Context, row *T) error {
				clones, err := s.store.Tickets().Find(ctx, store.RepresentationsOf(ticketOf(PT(row))))
				if err != nil {
					return err
				}
				for _, clone := range clones {
					if _, err := copyTo(ctx, PT(row), clone.ID, models.StringValue(clone.ProgramID)); err != nil {
						return err
					}
				}
				return nil
			})
		},
		remove: func(ctx context.Context, rep PT) error {
			return deleteRows[T, PT](ctx, repo, name, store.Where(store.Eq("id", rep.GetID())))
		},
		refresh: func(_ context.Context, orig, rep PT) error {
			apply(orig, rep)
			return nil
		},
	}
}

func (s *Syncer) noteEntity(tickets *ticketSync) step {
	return ticketChild(s, models.EntityTicketNote, s.store.TicketNotes(), tickets,
		func(n *models.TicketNote) string { return n.TicketID },
		s.grievance.CopyNote,
		grievance.ApplyNote,
	)
}

func (s *Syncer) grievanceDocumentEntity(tickets *ticketSync) step {
	return ticketChild(s, models.EntityGrievanceDocument, s.store.GrievanceDocuments(), tickets,
		func(d *models.GrievanceDocument) string { return d.TicketID },
		s.grievance.CopyDocument,
		grievance.ApplyGrievanceDocument,
	)
}

func (s *Syncer) feedbackEntity(businessAreaID string) *feedbackSync {
	return &feedbackSync{
		name:    models.EntityFeedback,
		repo:    s.store.Feedbacks(),
		scope:   inArea(s.store.Feedbacks(), businessAreaID),
		handled: true,
		create: func(ctx context.Context, originals []*models.Feedback) error {
			return s.grievance.MigrateFeedbackByID(ctx, idsOf[models.Feedback](originals))
		},
		remove: func(ctx context.Context, rep *models.Feedback) error {
			if err := deleteRows[models.FeedbackMessage](ctx, s.store.FeedbackMessages(), models.EntityFeedbackMessage,
				store.Where(store.Eq("feedback_id", rep.ID))); err != nil {
				return err
			}
			return deleteRows[models.Feedback](ctx, s.store.Feedbacks(), models.EntityFeedback, store.Where(store.Eq("id", rep.ID)))
		},
		refresh: s.grievance.RefreshFeedback,
	}
}

func (s *Syncer) feedbackMessageEntity(feedbacks *feedbackSync) step {
	return &entity[models.FeedbackMessage, *models.FeedbackMessage]{
		name:  models.EntityFeedbackMessage,
		repo:  s.store.FeedbackMessages(),
		scope: underParent(s.store.FeedbackMessages(), "feedback_id", feedbacks.scope),
		create: func(ctx context.Context, originals []*models.FeedbackMessage) error {
			return inBatches(ctx, s, originals, func(ctx context.Context, message *models.FeedbackMessage) error {
				clones, err := s.store.Feedbacks().Find(ctx, store.RepresentationsOf(message.FeedbackID))
				if err != nil {
					return err
				}
				for _, clone := range clones {
					if _, err := s.grievance.CopyFeedbackMessage(ctx, message, clone.ID, models.StringValue(clone.ProgramID)); err != nil {
						return err
					}
				}
				return nil
			})
		},
		remove: func(ctx context.Context, rep *models.FeedbackMessage) error {
			return deleteRows[models.FeedbackMessage](ctx, s.store.FeedbackMessages(), models.EntityFeedbackMessage, store.Where(store.Eq("id", rep.ID)))
		},
		refresh: func(_ context.Context, orig, rep *models.FeedbackMessage) error {
			grievance.ApplyFeedbackMessage(orig, rep)
			return nil
		},
	}
}

func (s *Syncer) messageEntity(businessAreaID string) step {
	return &entity[models.Message, *models.Message]{
		name:    models.EntityMessage,
		repo:    s.store.Messages(),
		scope:   inArea(s.store.Messages(), businessAreaID),
		handled: true,
		create: func(ctx context.Context, originals []*models.Message) error {
			return s.grievance.MigrateMessagesByID(ctx, idsOf[models.Message](originals))
		},
		remove: func(ctx context.Context, rep *models.Message) error {
			if _, err := s.store.MessageHouseholds().Delete(ctx, store.Where(store.Eq("message_id", rep.ID))); err != nil {
				return err
			}
			return deleteRows[models.Message](ctx, s.store.Messages(), models.EntityMessage, store.Where(store.Eq("id", rep.ID)))
		},
		refresh: func(_ context.Context, orig, rep *models.Message) error {
			grievance.ApplyMessage(orig, rep)
			return nil
		},
	}
}
