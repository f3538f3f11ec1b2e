package grievance_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unicef/hope-sub007/internal/testfixtures"
	"github.com/unicef/hope-sub007/pkg/grievance"
	"github.com/unicef/hope-sub007/pkg/models"
	"github.com/unicef/hope-sub007/pkg/programs"
	"github.com/unicef/hope-sub007/pkg/remap"
	"github.com/unicef/hope-sub007/pkg/representation"
	"github.com/unicef/hope-sub007/pkg/store"
)

type world struct {
	*testfixtures.Fixture
	driver  *grievance.Driver
	reps    *representation.Service
	p1, p2  *models.Program
	hh      *models.Household
	members []*models.Individual
}

// newWorld seeds a household represented in two programs.
func newWorld(t *testing.T) *world {
	f := testfixtures.New(t)
	reps := representation.New(f.Store, testfixtures.Logger())
	w := &world{
		Fixture: f,
		reps:    reps,
		driver: grievance.New(reps, remap.New(reps, testfixtures.Logger()), programs.NewResolver(f.Store, testfixtures.Logger()),
			testfixtures.Logger(), grievance.Config{BatchSize: 2}),
		p1: f.Program("Cash"),
		p2: f.Program("Food"),
	}
	w.hh, w.members = f.Household(nil, "Ann", "Bob")
	w.represent(t, w.hh, w.p1, w.p2)
	return w
}

func (w *world) represent(t *testing.T, hh *models.Household, programs ...*models.Program) {
	t.Helper()
	for _, p := range programs {
		_, err := w.reps.GetOrCreateHousehold(w.Ctx, hh, p.ID)
		require.NoError(t, err)
	}
}

func (w *world) household(t *testing.T, origID string, p *models.Program) *models.Household {
	t.Helper()
	rep, err := w.Store.Households().First(w.Ctx, store.RepresentationOf(origID, p.ID))
	require.NoError(t, err)
	require.NotNil(t, rep)
	return rep
}

func (w *world) individual(t *testing.T, origID string, p *models.Program) *models.Individual {
	t.Helper()
	rep, err := w.Store.Individuals().First(w.Ctx, store.RepresentationOf(origID, p.ID))
	require.NoError(t, err)
	require.NotNil(t, rep)
	return rep
}

func (w *world) ticketPrograms(t *testing.T, ticketID string) []string {
	t.Helper()
	rows, err := w.Store.TicketPrograms().Find(w.Ctx, store.Where(store.Eq("ticket_id", ticketID)))
	require.NoError(t, err)
	out := make([]string, len(rows))
	for i, row := range rows {
		out[i] = row.ProgramID
	}
	return out
}

func (w *world) detail(t *testing.T, ticketID string) *models.TicketDetail {
	t.Helper()
	d, err := w.Store.TicketDetails().First(w.Ctx, store.Where(store.Eq("ticket_id", ticketID)))
	require.NoError(t, err)
	require.NotNil(t, d)
	return d
}

func (w *world) clone(t *testing.T, ticketID string, p *models.Program) *models.GrievanceTicket {
	t.Helper()
	c, err := w.Store.Tickets().First(w.Ctx, store.RepresentationOf(ticketID, p.ID))
	require.NoError(t, err)
	return c
}

func (w *world) linked(t *testing.T, ticketID string) []string {
	t.Helper()
	rows, err := w.Store.TicketLinks().Find(w.Ctx, store.Where(store.Eq("ticket_id", ticketID)))
	require.NoError(t, err)
	out := make([]string, len(rows))
	for i, row := range rows {
		out[i] = row.LinkedTicketID
	}
	return out
}

func TestMigrate_ClosedTicketStaysInOneProgram(t *testing.T) {
	w := newWorld(t)
	ticket, _ := w.Ticket(models.TicketStatusClosed, models.DetailComplaint, func(d *models.TicketDetail) {
		d.HouseholdID = &w.hh.ID
		d.IndividualID = &w.members[1].ID
	})

	rep, err := w.driver.Migrate(w.Ctx, w.BA.ID)
	require.NoError(t, err)

	assert.Equal(t, []string{w.p1.ID}, w.ticketPrograms(t, ticket.ID))
	assert.Nil(t, w.clone(t, ticket.ID, w.p2))
	assert.Equal(t, 1, rep.Counts()[models.EntityGrievanceTicket].Assigned)

	detail := w.detail(t, ticket.ID)
	assert.Equal(t, w.household(t, w.hh.ID, w.p1).ID, *detail.HouseholdID)
	assert.Equal(t, w.individual(t, w.members[1].ID, w.p1).ID, *detail.IndividualID)

	stored, err := w.Store.Tickets().Get(w.Ctx, ticket.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsMigrationHandled)
}

func TestMigrate_ClosedTicketFollowsHouseholdOverIndividual(t *testing.T) {
	w := newWorld(t)
	p3 := w.Program("Health")
	other, others := w.Household(nil, "Cara")
	w.represent(t, other, p3)

	ticket, _ := w.Ticket(models.TicketStatusClosed, models.DetailComplaint, func(d *models.TicketDetail) {
		d.HouseholdID = &w.hh.ID
		d.IndividualID = &others[0].ID
	})

	rep, err := w.driver.Migrate(w.Ctx, w.BA.ID)
	require.NoError(t, err)

	assert.Equal(t, []string{w.p1.ID}, w.ticketPrograms(t, ticket.ID))
	assert.Nil(t, w.clone(t, ticket.ID, w.p2))
	assert.Nil(t, w.clone(t, ticket.ID, p3))
	assert.Equal(t, 1, rep.Counts()[models.EntityGrievanceTicket].Assigned)
	assert.Zero(t, rep.Counts()[models.EntityGrievanceTicket].Created)

	detail := w.detail(t, ticket.ID)
	assert.Equal(t, w.household(t, w.hh.ID, w.p1).ID, *detail.HouseholdID)
	assert.Equal(t, others[0].ID, *detail.IndividualID, "individual without a representation in the program is left unchanged")
}

func TestMigrate_ActiveTicketFansOut(t *testing.T) {
	w := newWorld(t)
	ticket, _ := w.Ticket(models.TicketStatusInProgress, models.DetailHouseholdDataUpdate, func(d *models.TicketDetail) {
		d.HouseholdID = &w.hh.ID
		d.HouseholdData = models.JSON(`{"village":"New"}`)
	})
	note := w.Note(ticket, "called the family")
	doc := w.GrievanceDocument(ticket, "receipt.pdf")
	other, _ := w.Ticket(models.TicketStatusClosed, models.DetailComplaint, nil)
	w.Link(ticket, other)

	rep, err := w.driver.Migrate(w.Ctx, w.BA.ID)
	require.NoError(t, err)

	assert.Equal(t, []string{w.p1.ID}, w.ticketPrograms(t, ticket.ID))
	assert.Equal(t, w.household(t, w.hh.ID, w.p1).ID, *w.detail(t, ticket.ID).HouseholdID)

	clone := w.clone(t, ticket.ID, w.p2)
	require.NotNil(t, clone)
	assert.NotEqual(t, ticket.UnicefID, clone.UnicefID)
	assert.True(t, strings.HasPrefix(clone.UnicefID, "GRV-"))
	assert.Equal(t, ticket.UnicefID, models.StringValue(clone.OriginUnicefID))
	assert.Equal(t, ticket.Description, clone.Description)
	assert.Equal(t, []string{w.p2.ID}, w.ticketPrograms(t, clone.ID))

	cloneDetail := w.detail(t, clone.ID)
	assert.Equal(t, w.household(t, w.hh.ID, w.p2).ID, *cloneDetail.HouseholdID)
	assert.JSONEq(t, `{"village":"New"}`, string(cloneDetail.HouseholdData))

	notes, err := w.Store.TicketNotes().Find(w.Ctx, store.Where(store.Eq("ticket_id", clone.ID)))
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, note.ID, models.StringValue(notes[0].CopiedFromID))
	assert.Equal(t, note.Description, notes[0].Description)

	docs, err := w.Store.GrievanceDocuments().Find(w.Ctx, store.Where(store.Eq("ticket_id", clone.ID)))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, doc.ID, models.StringValue(docs[0].CopiedFromID))

	assert.ElementsMatch(t, []string{ticket.ID, other.ID}, w.linked(t, clone.ID))
	assert.ElementsMatch(t, []string{other.ID, clone.ID}, w.linked(t, ticket.ID))
	assert.ElementsMatch(t, []string{ticket.ID, clone.ID}, w.linked(t, other.ID))

	counts := rep.Counts()
	assert.Equal(t, 1, counts[models.EntityGrievanceTicket].Created)
	assert.Equal(t, 2, counts[models.EntityGrievanceTicket].Assigned)
	assert.Equal(t, 1, counts[models.EntityTicketNote].Created)
	assert.Equal(t, 1, counts[models.EntityGrievanceDocument].Created)

	t.Run("second run writes nothing", func(t *testing.T) {
		again, err := w.driver.Migrate(w.Ctx, w.BA.ID)
		require.NoError(t, err)
		assert.Zero(t, again.Writes())
	})

	t.Run("copy is idempotent", func(t *testing.T) {
		again, err := w.driver.CopyGrievanceTicket(w.Ctx, ticket, w.p2.ID)
		require.NoError(t, err)
		assert.Equal(t, clone.ID, again.ID)
	})
}

func TestMigrate_PaymentLinkedTicket(t *testing.T) {
	w := newWorld(t)
	tp := w.TargetPopulation(w.p2, w.hh)
	plan := &models.PaymentPlan{ID: "plan-1", BusinessAreaID: w.BA.ID, TargetPopulationID: &tp.ID}
	payment := &models.Payment{ID: "payment-1", ParentID: plan.ID}
	record := &models.PaymentRecord{ID: "record-1", TargetPopulationID: &tp.ID}
	verification := &models.PaymentVerification{ID: "pv-1", PaymentObjectType: models.PaymentObjectPaymentRecord, PaymentObjectID: record.ID}
	require.NoError(t, w.Store.PaymentPlans().Insert(w.Ctx, plan))
	require.NoError(t, w.Store.Payments().Insert(w.Ctx, payment))
	require.NoError(t, w.Store.PaymentRecords().Insert(w.Ctx, record))
	require.NoError(t, w.Store.PaymentVerifications().Insert(w.Ctx, verification))

	complaint, _ := w.Ticket(models.TicketStatusNew, models.DetailComplaint, func(d *models.TicketDetail) {
		d.PaymentObjectType = models.StringPtr(models.PaymentObjectPayment)
		d.PaymentObjectID = &payment.ID
		d.HouseholdID = &w.hh.ID
	})
	verified, _ := w.Ticket(models.TicketStatusNew, models.DetailPaymentVerification, func(d *models.TicketDetail) {
		d.PaymentVerificationID = &verification.ID
	})

	_, err := w.driver.Migrate(w.Ctx, w.BA.ID)
	require.NoError(t, err)

	assert.Equal(t, []string{w.p2.ID}, w.ticketPrograms(t, complaint.ID))
	assert.Nil(t, w.clone(t, complaint.ID, w.p1))
	assert.Equal(t, w.household(t, w.hh.ID, w.p2).ID, *w.detail(t, complaint.ID).HouseholdID)
	assert.Equal(t, []string{w.p2.ID}, w.ticketPrograms(t, verified.ID))
}

func TestMigrate_NeedsAdjudication(t *testing.T) {
	w := newWorld(t)
	ann, bob := w.members[0], w.members[1]
	other, others := w.Household(nil, "Cid")
	cid := others[0]
	w.represent(t, other, w.p1)
	dan := w.Individual(nil, "Dan")

	kept, _ := w.Ticket(models.TicketStatusNew, models.DetailNeedsAdjudication, func(d *models.TicketDetail) {
		d.GoldenRecordsIndividualID = &ann.ID
		d.PossibleDuplicates = testfixtures.IDs(bob.ID, cid.ID)
		d.SelectedIndividuals = testfixtures.IDs(cid.ID)
	})
	dropped, _ := w.Ticket(models.TicketStatusNew, models.DetailNeedsAdjudication, func(d *models.TicketDetail) {
		d.GoldenRecordsIndividualID = &ann.ID
		d.PossibleDuplicates = testfixtures.IDs(dan.ID)
	})
	w.Note(dropped, "duplicate?")
	fb := w.Feedback(nil, nil, func(fb *models.Feedback) { fb.LinkedGrievanceID = &dropped.ID })

	rep, err := w.driver.Migrate(w.Ctx, w.BA.ID)
	require.NoError(t, err)

	t.Run("ticket in every program with two represented individuals", func(t *testing.T) {
		assert.Equal(t, []string{w.p1.ID}, w.ticketPrograms(t, kept.ID))
		d := w.detail(t, kept.ID)
		assert.Equal(t, w.individual(t, ann.ID, w.p1).ID, *d.GoldenRecordsIndividualID)
		assert.Equal(t, []string{w.individual(t, bob.ID, w.p1).ID, w.individual(t, cid.ID, w.p1).ID}, d.PossibleDuplicates.Data)
		assert.Equal(t, []string{w.individual(t, cid.ID, w.p1).ID}, d.SelectedIndividuals.Data)

		clone := w.clone(t, kept.ID, w.p2)
		require.NotNil(t, clone)
		cd := w.detail(t, clone.ID)
		assert.Equal(t, w.individual(t, ann.ID, w.p2).ID, *cd.GoldenRecordsIndividualID)
		assert.Equal(t, []string{w.individual(t, bob.ID, w.p2).ID}, cd.PossibleDuplicates.Data)
		assert.Empty(t, cd.SelectedIndividuals.Data)
	})

	t.Run("ticket without such program is deleted", func(t *testing.T) {
		_, err := w.Store.Tickets().Get(w.Ctx, dropped.ID)
		assert.True(t, store.IsNotFound(err))
		notes, err := w.Store.TicketNotes().Count(w.Ctx, store.Where(store.Eq("ticket_id", dropped.ID)))
		require.NoError(t, err)
		assert.Zero(t, notes)

		stored, err := w.Store.Feedbacks().Get(w.Ctx, fb.ID)
		require.NoError(t, err)
		assert.Nil(t, stored.LinkedGrievanceID)

		assert.Equal(t, 1, rep.Counts()[models.EntityGrievanceTicket].Deleted)
		assert.Equal(t, 1, rep.Counts()[models.EntityTicketNote].Deleted)
	})
}

func TestMigrate_OrphansGoToVoidProgram(t *testing.T) {
	w := newWorld(t)
	stray := w.Individual(nil, "Eve")
	ticket, _ := w.Ticket(models.TicketStatusNew, models.DetailReferral, func(d *models.TicketDetail) {
		d.IndividualID = &stray.ID
	})
	fb := w.Feedback(nil, &stray.ID, nil)
	msg := w.Message(nil)

	rep, err := w.driver.Migrate(w.Ctx, w.BA.ID)
	require.NoError(t, err)

	void, err := w.Store.Programs().First(w.Ctx, store.Where(store.Eq("kind", string(models.ProgramKindVoid))))
	require.NoError(t, err)
	require.NotNil(t, void)

	assert.Equal(t, []string{void.ID}, w.ticketPrograms(t, ticket.ID))
	storedFeedback, err := w.Store.Feedbacks().Get(w.Ctx, fb.ID)
	require.NoError(t, err)
	assert.Equal(t, void.ID, models.StringValue(storedFeedback.ProgramID))
	assert.True(t, storedFeedback.IsMigrationHandled)
	storedMessage, err := w.Store.Messages().Get(w.Ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, void.ID, models.StringValue(storedMessage.ProgramID))

	counts := rep.Counts()
	assert.Equal(t, 1, counts[models.EntityGrievanceTicket].Assigned)
	assert.Equal(t, 1, counts[models.EntityFeedback].Assigned)
	assert.Equal(t, 1, counts[models.EntityMessage].Assigned)

	again, err := w.driver.Migrate(w.Ctx, w.BA.ID)
	require.NoError(t, err)
	assert.Zero(t, again.Writes())
}

func TestMigrate_Feedback(t *testing.T) {
	w := newWorld(t)
	ticket, _ := w.Ticket(models.TicketStatusNew, models.DetailNegativeFeedback, func(d *models.TicketDetail) {
		d.HouseholdID = &w.hh.ID
	})
	closed, _ := w.Ticket(models.TicketStatusClosed, models.DetailNegativeFeedback, func(d *models.TicketDetail) {
		d.HouseholdID = &w.hh.ID
	})
	fb := w.Feedback(&w.hh.ID, &w.members[0].ID, func(fb *models.Feedback) { fb.LinkedGrievanceID = &ticket.ID })
	message := w.FeedbackMessage(fb, "thanks")
	single := w.Feedback(&w.hh.ID, nil, func(fb *models.Feedback) { fb.LinkedGrievanceID = &closed.ID })

	rep, err := w.driver.Migrate(w.Ctx, w.BA.ID)
	require.NoError(t, err)

	stored, err := w.Store.Feedbacks().Get(w.Ctx, fb.ID)
	require.NoError(t, err)
	assert.Equal(t, w.p1.ID, models.StringValue(stored.ProgramID))
	assert.Equal(t, w.household(t, w.hh.ID, w.p1).ID, *stored.HouseholdLookupID)
	assert.Equal(t, w.individual(t, w.members[0].ID, w.p1).ID, *stored.IndividualLookupID)
	assert.Equal(t, ticket.ID, *stored.LinkedGrievanceID)

	clone, err := w.Store.Feedbacks().First(w.Ctx, store.RepresentationOf(fb.ID, w.p2.ID))
	require.NoError(t, err)
	require.NotNil(t, clone)
	assert.True(t, strings.HasPrefix(clone.UnicefID, "FED-"))
	assert.NotEqual(t, fb.UnicefID, clone.UnicefID)
	assert.Equal(t, w.household(t, w.hh.ID, w.p2).ID, *clone.HouseholdLookupID)
	assert.Equal(t, w.clone(t, ticket.ID, w.p2).ID, *clone.LinkedGrievanceID)

	messages, err := w.Store.FeedbackMessages().Find(w.Ctx, store.Where(store.Eq("feedback_id", clone.ID)))
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, message.ID, models.StringValue(messages[0].CopiedFromID))

	noClone, err := w.Store.Feedbacks().First(w.Ctx, store.RepresentationOf(single.ID, w.p2.ID))
	require.NoError(t, err)
	assert.Nil(t, noClone)

	counts := rep.Counts()
	assert.Equal(t, 2, counts[models.EntityFeedback].Assigned)
	assert.Equal(t, 1, counts[models.EntityFeedback].Created)
	assert.Equal(t, 1, counts[models.EntityFeedbackMessage].Created)

	again, err := w.driver.Migrate(w.Ctx, w.BA.ID)
	require.NoError(t, err)
	assert.Zero(t, again.Writes())
}

func TestMigrate_Messages(t *testing.T) {
	w := newWorld(t)
	broadcast := w.Message(nil, w.hh)
	tp := w.TargetPopulation(w.p2, w.hh)
	targeted := w.Message(tp, w.hh)

	_, err := w.driver.Migrate(w.Ctx, w.BA.ID)
	require.NoError(t, err)

	recipients := func(messageID string) []*models.MessageHousehold {
		rows, err := w.Store.MessageHouseholds().Find(w.Ctx, store.Where(store.Eq("message_id", messageID)))
		require.NoError(t, err)
		return rows
	}

	stored, err := w.Store.Messages().Get(w.Ctx, broadcast.ID)
	require.NoError(t, err)
	assert.Equal(t, w.p1.ID, models.StringValue(stored.ProgramID))
	rows := recipients(broadcast.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, w.household(t, w.hh.ID, w.p1).ID, rows[0].HouseholdID)

	clone, err := w.Store.Messages().First(w.Ctx, store.RepresentationOf(broadcast.ID, w.p2.ID))
	require.NoError(t, err)
	require.NotNil(t, clone)
	assert.Equal(t, 1, clone.NumberOfRecipients)
	cloneRows := recipients(clone.ID)
	require.Len(t, cloneRows, 1)
	assert.Equal(t, w.household(t, w.hh.ID, w.p2).ID, cloneRows[0].HouseholdID)

	storedTargeted, err := w.Store.Messages().Get(w.Ctx, targeted.ID)
	require.NoError(t, err)
	assert.Equal(t, w.p2.ID, models.StringValue(storedTargeted.ProgramID))
	none, err := w.Store.Messages().First(w.Ctx, store.RepresentationOf(targeted.ID, w.p1.ID))
	require.NoError(t, err)
	assert.Nil(t, none)

	again, err := w.driver.Migrate(w.Ctx, w.BA.ID)
	require.NoError(t, err)
	assert.Zero(t, again.Writes())
}
