package grievance

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/unicef/hope-sub007/pkg/models"
	"github.com/unicef/hope-sub007/pkg/platform/tracing"
	"github.com/unicef/hope-sub007/pkg/report"
	"github.com/unicef/hope-sub007/pkg/store"
)

// CopyGrievanceTicket clones an original ticket into programID: a new id and
// unicef id, the program assignment, a detail pointing at the program's
// representations, the notes and documents, the original's links and a link
// back to the original. An existing clone is returned unchanged.
func (d *Driver) CopyGrievanceTicket(ctx context.Context, ticket *models.GrievanceTicket, programID string) (*models.GrievanceTicket, error) {
	ctx, span := tracing.StartSpan(ctx, "grievance.Driver.CopyGrievanceTicket")
	defer span.End()

	existing, err := d.store.Tickets().First(ctx, store.RepresentationOf(ticket.ID, programID))
	if err != nil || existing != nil {
		return existing, err
	}

	clone := buildTicket(ticket, programID)
	if err := d.store.Tickets().Insert(ctx, clone); err != nil {
		return nil, fmt.Errorf("failed to insert clone of ticket %s: %w", ticket.ID, err)
	}
	if _, err := d.ensureTicketProgram(ctx, clone.ID, programID); err != nil {
		return nil, err
	}
	report.From(ctx).Created(models.EntityGrievanceTicket, clone.ID, ticket.ID, programID)

	detail, err := d.store.TicketDetails().First(ctx, store.Where(store.Eq("ticket_id", ticket.ID)))
	if err != nil {
		return nil, err
	}
	if detail != nil {
		cloned := buildDetail(detail, clone.ID)
		if _, err := d.remapDetail(ctx, cloned, programID); err != nil {
			return nil, err
		}
		if err := d.store.TicketDetails().Insert(ctx, cloned); err != nil {
			return nil, fmt.Errorf("failed to insert detail of ticket %s: %w", clone.ID, err)
		}
	}

	if err := d.copyNotes(ctx, ticket, clone, programID); err != nil {
		return nil, err
	}
	if err := d.copyDocuments(ctx, ticket, clone, programID); err != nil {
		return nil, err
	}
	if err := d.copyLinks(ctx, ticket, clone); err != nil {
		return nil, err
	}
	return clone, nil
}

func (d *Driver) copyNotes(ctx context.Context, ticket, clone *models.GrievanceTicket, programID string) error {
	notes, err := d.store.TicketNotes().Find(ctx, store.Where(
		store.Eq("ticket_id", ticket.ID), store.Originals(), store.NotRemoved(),
	).OrderBy("created_at"))
	if err != nil {
		return err
	}
	for _, note := range notes {
		if _, err := d.CopyNote(ctx, note, clone.ID, programID); err != nil {
			return err
		}
	}
	return nil
}

// CopyNote clones an original note onto the ticket clone owned by programID.
func (d *Driver) CopyNote(ctx context.Context, note *models.TicketNote, ticketID, programID string) (*models.TicketNote, error) {
	existing, err := d.store.TicketNotes().First(ctx, store.RepresentationOf(note.ID, programID))
	if err != nil || existing != nil {
		return existing, err
	}
	rep := &models.TicketNote{
		ID:        uuid.NewString(),
		TicketID:  ticketID,
		CreatedAt: note.CreatedAt,
		Lineage:   models.RepresentationOf(&note.Lineage, note.ID, "", programID),
	}
	ApplyNote(note, rep)
	if err := d.store.TicketNotes().Insert(ctx, rep); err != nil {
		return nil, fmt.Errorf("failed to insert note representation of %s: %w", note.ID, err)
	}
	report.From(ctx).Created(models.EntityTicketNote, rep.ID, note.ID, programID)
	return rep, nil
}

func (d *Driver) copyDocuments(ctx context.Context, ticket, clone *models.GrievanceTicket, programID string) error {
	documents, err := d.store.GrievanceDocuments().Find(ctx, store.Where(
		store.Eq("ticket_id", ticket.ID), store.Originals(), store.NotRemoved(),
	).OrderBy("created_at"))
	if err != nil {
		return err
	}
	for _, doc := range documents {
		if _, err := d.CopyDocument(ctx, doc, clone.ID, programID); err != nil {
			return err
		}
	}
	return nil
}

// CopyDocument clones an original attachment onto the ticket clone owned by programID.
func (d *Driver) CopyDocument(ctx context.Context, doc *models.GrievanceDocument, ticketID, programID string) (*models.GrievanceDocument, error) {
	existing, err := d.store.GrievanceDocuments().First(ctx, store.RepresentationOf(doc.ID, programID))
	if err != nil || existing != nil {
		return existing, err
	}
	rep := &models.GrievanceDocument{
		ID:        uuid.NewString(),
		TicketID:  ticketID,
		CreatedAt: doc.CreatedAt,
		Lineage:   models.RepresentationOf(&doc.Lineage, doc.ID, "", programID),
	}
	ApplyGrievanceDocument(doc, rep)
	if err := d.store.GrievanceDocuments().Insert(ctx, rep); err != nil {
		return nil, fmt.Errorf("failed to insert document representation of %s: %w", doc.ID, err)
	}
	report.From(ctx).Created(models.EntityGrievanceDocument, rep.ID, doc.ID, programID)
	return rep, nil
}

// copyLinks gives the clone every link of the original plus the original itself.
func (d *Driver) copyLinks(ctx context.Context, ticket, clone *models.GrievanceTicket) error {
	links, err := d.store.TicketLinks().Find(ctx, store.Where(store.Eq("ticket_id", ticket.ID)))
	if err != nil {
		return err
	}
	targets := []string{ticket.ID}
	for _, link := range links {
		targets = append(targets, link.LinkedTicketID)
	}

	var rows []*models.TicketLink
	for _, target := range store.Unique(targets) {
		if target == clone.ID {
			continue
		}
		rows = append(rows,
			&models.TicketLink{ID: uuid.NewString(), TicketID: clone.ID, LinkedTicketID: target},
			&models.TicketLink{ID: uuid.NewString(), TicketID: target, LinkedTicketID: clone.ID},
		)
	}
	if err := d.store.TicketLinks().Insert(ctx, rows...); err != nil {
		return fmt.Errorf("failed to link clone %s: %w", clone.ID, err)
	}
	return nil
}

func buildTicket(orig *models.GrievanceTicket, programID string) *models.GrievanceTicket {
	rep := &models.GrievanceTicket{
		ID:        uuid.NewString(),
		UnicefID:  newUnicefID("GRV"),
		CreatedAt: orig.CreatedAt,
		Lineage:   models.RepresentationOf(&orig.Lineage, orig.ID, orig.UnicefID, programID),
	}
	ApplyTicket(orig, rep)
	return rep
}

// ApplyTicket copies the mutable header columns of a ticket.
func ApplyTicket(orig, rep *models.GrievanceTicket) {
	rep.BusinessAreaID = orig.BusinessAreaID
	rep.Status = orig.Status
	rep.Category = orig.Category
	rep.IssueType = orig.IssueType
	rep.Description = orig.Description
	rep.Comments = orig.Comments
	rep.Admin2 = orig.Admin2
	rep.Area = orig.Area
	rep.Language = orig.Language
	rep.Consent = orig.Consent
	rep.Priority = orig.Priority
	rep.Urgency = orig.Urgency
	rep.AssignedToID = orig.AssignedToID
	rep.CreatedByID = orig.CreatedByID
	rep.HouseholdUnicefID = orig.HouseholdUnicefID
	rep.RegistrationDataID = orig.RegistrationDataID
}

// buildDetail copies every detail column; references are remapped afterwards.
func buildDetail(orig *models.TicketDetail, ticketID string) *models.TicketDetail {
	rep := *orig
	rep.ID = uuid.NewString()
	rep.TicketID = ticketID
	rep.PossibleDuplicates.Data = append([]string(nil), orig.PossibleDuplicates.Data...)
	rep.SelectedIndividuals.Data = append([]string(nil), orig.SelectedIndividuals.Data...)
	rep.RoleReassignData = cloneJSON(orig.RoleReassignData)
	rep.IndividualData = cloneJSON(orig.IndividualData)
	rep.HouseholdData = cloneJSON(orig.HouseholdData)
	rep.ExtraData = cloneJSON(orig.ExtraData)
	return &rep
}

func ApplyNote(orig, rep *models.TicketNote) {
	rep.Description = orig.Description
	rep.CreatedByID = orig.CreatedByID
}

func ApplyGrievanceDocument(orig, rep *models.GrievanceDocument) {
	rep.Name = orig.Name
	rep.File = orig.File
	rep.FileSize = orig.FileSize
	rep.ContentType = orig.ContentType
	rep.CreatedByID = orig.CreatedByID
}

func ApplyFeedback(orig, rep *models.Feedback) {
	rep.BusinessAreaID = orig.BusinessAreaID
	rep.IssueType = orig.IssueType
	rep.Description = orig.Description
	rep.Comments = orig.Comments
	rep.Area = orig.Area
	rep.Language = orig.Language
	rep.Consent = orig.Consent
	rep.CreatedByID = orig.CreatedByID
}

func ApplyFeedbackMessage(orig, rep *models.FeedbackMessage) {
	rep.Description = orig.Description
	rep.CreatedByID = orig.CreatedByID
}

func ApplyMessage(orig, rep *models.Message) {
	rep.BusinessAreaID = orig.BusinessAreaID
	rep.Title = orig.Title
	rep.Body = orig.Body
	rep.TargetPopulationID = orig.TargetPopulationID
	rep.RegistrationDataImportID = orig.RegistrationDataImportID
	rep.SamplingType = orig.SamplingType
	rep.CreatedByID = orig.CreatedByID
}

// newUnicefID returns a human readable id such as GRV-1A2B3C4D.
func newUnicefID(prefix string) string {
	return prefix + "-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func cloneJSON(raw models.JSON) models.JSON {
	if raw == nil {
		return nil
	}
	return append(models.JSON(nil), raw...)
}
