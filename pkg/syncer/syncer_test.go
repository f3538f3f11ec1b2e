package syncer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unicef/hope-sub007/internal/testfixtures"
	"github.com/unicef/hope-sub007/pkg/grievance"
	"github.com/unicef/hope-sub007/pkg/migration"
	"github.com/unicef/hope-sub007/pkg/models"
	"github.com/unicef/hope-sub007/pkg/programs"
	"github.com/unicef/hope-sub007/pkg/remap"
	"github.com/unicef/hope-sub007/pkg/representation"
	"github.com/unicef/hope-sub007/pkg/store"
	"github.com/unicef/hope-sub007/pkg/syncer"
)

type env struct {
	*testfixtures.Fixture
	syncer  *syncer.Syncer
	p1, p2  *models.Program
	rdi     *models.RegistrationDataImport
	hh      *models.Household
	members []*models.Individual
}

// migrated seeds one import claimed by two programs and runs the initial migration.
func migrated(t *testing.T, seed func(e *env)) *env {
	f := testfixtures.New(t)
	logger := testfixtures.Logger()
	reps := representation.New(f.Store, logger)
	resolver := programs.NewResolver(f.Store, logger)
	migrator := migration.New(reps, resolver, logger, migration.Config{})
	driver := grievance.New(reps, remap.New(reps, logger), resolver, logger, grievance.Config{})

	e := &env{
		Fixture: f,
		syncer:  syncer.New(reps, migrator, driver, logger, syncer.Config{BatchSize: 2}),
		p1:      f.Program("Cash"),
		p2:      f.Program("Food"),
		rdi:     f.RDI("import", nil),
	}
	f.AssignRDI(e.rdi, e.p1)
	f.AssignRDI(e.rdi, e.p2)
	e.hh, e.members = f.Household(e.rdi, "Ann", "Bob")
	f.Role(e.hh, e.members[0], models.RolePrimary)
	f.Document(e.members[1], "P-1", "passport", "AFG")
	if seed != nil {
		seed(e)
	}

	_, err := migrator.Migrate(f.Ctx, f.BA.ID)
	require.NoError(t, err)
	_, err = driver.Migrate(f.Ctx, f.BA.ID)
	require.NoError(t, err)
	return e
}

func (e *env) sync(t *testing.T) map[string]int {
	t.Helper()
	rep, err := e.syncer.Sync(e.Ctx, e.BA.ID)
	require.NoError(t, err)
	totals := map[string]int{}
	for entityType, c := range rep.Counts() {
		totals[entityType+".created"] = c.Created
		totals[entityType+".updated"] = c.Updated
		totals[entityType+".deleted"] = c.Deleted
		totals[entityType+".assigned"] = c.Assigned
	}
	totals["writes"] = rep.Writes()
	return totals
}

func (e *env) representations(t *testing.T, origID string) []*models.Individual {
	t.Helper()
	rows, err := e.Store.Individuals().Find(e.Ctx, store.RepresentationsOf(origID))
	require.NoError(t, err)
	return rows
}

func TestSync_NothingChanged(t *testing.T) {
	e := migrated(t, nil)
	assert.Zero(t, e.sync(t)["writes"])
}

func TestSync_EntityOrder(t *testing.T) {
	e := migrated(t, nil)
	assert.Equal(t, []string{
		models.EntityHousehold,
		models.EntityIndividual,
		models.EntityRole,
		models.EntityDocument,
		models.EntityIdentity,
		models.EntityBankAccount,
		models.EntityGrievanceTicket,
		models.EntityTicketNote,
		models.EntityGrievanceDocument,
		models.EntityFeedback,
		models.EntityFeedbackMessage,
		models.EntityMessage,
	}, e.syncer.EntityTypes())
}

func TestSync_NewOriginals(t *testing.T) {
	e := migrated(t, nil)
	e.Household(e.rdi, "Dan")
	cid := e.Individual(&e.hh.ID, "Cid")
	e.Document(e.members[1], "ID-9", "national_id", "AFG")

	totals := e.sync(t)
	assert.Equal(t, 2, totals[models.EntityHousehold+".created"])
	assert.Equal(t, 4, totals[models.EntityIndividual+".created"])
	assert.Equal(t, 2, totals[models.EntityDocument+".created"])

	for _, rep := range e.representations(t, cid.ID) {
		household, err := e.Store.Households().Get(e.Ctx, *rep.HouseholdID)
		require.NoError(t, err)
		assert.Equal(t, e.hh.ID, models.StringValue(household.CopiedFromID))
		assert.Equal(t, models.StringValue(rep.ProgramID), models.StringValue(household.ProgramID))
	}

	assert.Zero(t, e.sync(t)["writes"])
}

func TestSync_ModifiedOriginals(t *testing.T) {
	e := migrated(t, nil)
	ann, err := e.Store.Individuals().Get(e.Ctx, e.members[0].ID)
	require.NoError(t, err)
	ann.FullName = "Ann Smith"
	e.Touch(&ann.Lineage)
	require.NoError(t, e.Store.Individuals().Update(e.Ctx, ann))

	totals := e.sync(t)
	assert.Equal(t, 2, totals[models.EntityIndividual+".updated"])
	assert.Equal(t, 2, totals["writes"])

	for _, rep := range e.representations(t, ann.ID) {
		assert.Equal(t, "Ann Smith", rep.FullName)
		require.NotNil(t, rep.MigratedAt)
		assert.Equal(t, ann.UpdatedAt, *rep.MigratedAt)
		assert.NotNil(t, rep.HouseholdID)
	}

	assert.Zero(t, e.sync(t)["writes"])
}

func TestSync_RemovedOriginals(t *testing.T) {
	e := migrated(t, nil)
	bob, err := e.Store.Individuals().Get(e.Ctx, e.members[1].ID)
	require.NoError(t, err)
	bob.IsRemoved = true
	e.Touch(&bob.Lineage)
	require.NoError(t, e.Store.Individuals().Update(e.Ctx, bob))

	totals := e.sync(t)
	assert.Equal(t, 2, totals[models.EntityIndividual+".deleted"])
	assert.Equal(t, 2, totals[models.EntityDocument+".deleted"])
	assert.Empty(t, e.representations(t, bob.ID))

	docs, err := e.Store.Documents().Count(e.Ctx, store.Where(store.Representations()))
	require.NoError(t, err)
	assert.Zero(t, docs)

	assert.Zero(t, e.sync(t)["writes"])
}

func TestSync_Grievance(t *testing.T) {
	var ticket *models.GrievanceTicket
	e := migrated(t, func(e *env) {
		ticket, _ = e.Ticket(models.TicketStatusInProgress, models.DetailHouseholdDataUpdate, func(d *models.TicketDetail) {
			d.HouseholdID = &e.hh.ID
		})
	})
	clone, err := e.Store.Tickets().First(e.Ctx, store.RepresentationOf(ticket.ID, e.p2.ID))
	require.NoError(t, err)
	require.NotNil(t, clone)

	t.Run("new and modified", func(t *testing.T) {
		e.Note(ticket, "visited")
		stored, err := e.Store.Tickets().Get(e.Ctx, ticket.ID)
		require.NoError(t, err)
		stored.Description = "updated"
		e.Touch(&stored.Lineage)
		require.NoError(t, e.Store.Tickets().Update(e.Ctx, stored))
		fresh, _ := e.Ticket(models.TicketStatusClosed, models.DetailComplaint, func(d *models.TicketDetail) {
			d.HouseholdID = &e.hh.ID
		})

		totals := e.sync(t)
		assert.Equal(t, 1, totals[models.EntityTicketNote+".created"])
		assert.Equal(t, 1, totals[models.EntityGrievanceTicket+".updated"])
		assert.Equal(t, 1, totals[models.EntityGrievanceTicket+".assigned"])

		refreshed, err := e.Store.Tickets().Get(e.Ctx, clone.ID)
		require.NoError(t, err)
		assert.Equal(t, "updated", refreshed.Description)

		detail, err := e.Store.TicketDetails().First(e.Ctx, store.Where(store.Eq("ticket_id", clone.ID)))
		require.NoError(t, err)
		hhRep, err := e.Store.Households().First(e.Ctx, store.RepresentationOf(e.hh.ID, e.p2.ID))
		require.NoError(t, err)
		assert.Equal(t, hhRep.ID, *detail.HouseholdID)

		programs, err := e.Store.TicketPrograms().Find(e.Ctx, store.Where(store.Eq("ticket_id", fresh.ID)))
		require.NoError(t, err)
		require.Len(t, programs, 1)
		assert.Equal(t, e.p1.ID, programs[0].ProgramID)

		assert.Zero(t, e.sync(t)["writes"])
	})

	t.Run("removed", func(t *testing.T) {
		stored, err := e.Store.Tickets().Get(e.Ctx, ticket.ID)
		require.NoError(t, err)
		stored.IsRemoved = true
		e.Touch(&stored.Lineage)
		require.NoError(t, e.Store.Tickets().Update(e.Ctx, stored))

		totals := e.sync(t)
		assert.Equal(t, 1, totals[models.EntityGrievanceTicket+".deleted"])
		assert.Equal(t, 1, totals[models.EntityTicketNote+".deleted"])

		_, err = e.Store.Tickets().Get(e.Ctx, clone.ID)
		assert.True(t, store.IsNotFound(err))
		links, err := e.Store.TicketLinks().Count(e.Ctx, store.Where(store.Eq("linked_ticket_id", clone.ID)))
		require.NoError(t, err)
		assert.Zero(t, links)
	})
}

// assertHousehold checks that every representation of the household lives
// with its head and members in the same program.
func (e *env) assertHousehold(t *testing.T, head *models.Individual, members ...*models.Individual) {
	t.Helper()
	reps, err := e.Store.Households().Find(e.Ctx, store.RepresentationsOf(e.hh.ID))
	require.NoError(t, err)
	require.Len(t, reps, 2)

	for _, rep := range reps {
		programID := models.StringValue(rep.ProgramID)

		headRep, err := e.Store.Individuals().First(e.Ctx, store.RepresentationOf(head.ID, programID))
		require.NoError(t, err)
		require.NotNil(t, headRep)
		require.NotNil(t, rep.HeadOfHouseholdID)
		assert.Equal(t, headRep.ID, *rep.HeadOfHouseholdID)

		for _, member := range members {
			memberRep, err := e.Store.Individuals().First(e.Ctx, store.RepresentationOf(member.ID, programID))
			require.NoError(t, err)
			require.NotNil(t, memberRep, "member %s in program %s", member.FullName, programID)
			require.NotNil(t, memberRep.HouseholdID)
			assert.Equal(t, rep.ID, *memberRep.HouseholdID)
		}
	}
}

func TestSync_MemberJoinsAfterMigration(t *testing.T) {
	e := migrated(t, nil)
	cid := e.Individual(&e.hh.ID, "Cid")

	totals := e.sync(t)
	assert.Equal(t, 2, totals[models.EntityIndividual+".created"])
	assert.Zero(t, totals[models.EntityHousehold+".created"])

	e.assertHousehold(t, e.members[0], e.members[0], e.members[1], cid)

	roles, err := e.Store.Roles().Find(e.Ctx, store.Where(store.Representations()))
	require.NoError(t, err)
	require.Len(t, roles, 2)
	for _, role := range roles {
		holder, err := e.Store.Individuals().Get(e.Ctx, role.IndividualID)
		require.NoError(t, err)
		household, err := e.Store.Households().Get(e.Ctx, role.HouseholdID)
		require.NoError(t, err)
		assert.Equal(t, e.members[0].ID, models.StringValue(holder.CopiedFromID))
		assert.Equal(t, models.StringValue(role.ProgramID), models.StringValue(holder.ProgramID))
		assert.Equal(t, models.StringValue(role.ProgramID), models.StringValue(household.ProgramID))
	}

	assert.Zero(t, e.sync(t)["writes"])
}

func TestSync_HeadChangesToNewMember(t *testing.T) {
	e := migrated(t, nil)
	cid := e.Individual(&e.hh.ID, "Cid")

	hh, err := e.Store.Households().Get(e.Ctx, e.hh.ID)
	require.NoError(t, err)
	hh.HeadOfHouseholdID = &cid.ID
	e.Touch(&hh.Lineage)
	require.NoError(t, e.Store.Households().Update(e.Ctx, hh))

	totals := e.sync(t)
	assert.Equal(t, 2, totals[models.EntityHousehold+".updated"])
	assert.Equal(t, 2, totals[models.EntityIndividual+".created"])
	assert.Len(t, e.representations(t, cid.ID), 2)

	e.assertHousehold(t, cid, e.members[0], e.members[1], cid)

	assert.Zero(t, e.sync(t)["writes"])
}

func TestSync_HeadChangesToExistingMember(t *testing.T) {
	e := migrated(t, nil)

	hh, err := e.Store.Households().Get(e.Ctx, e.hh.ID)
	require.NoError(t, err)
	hh.HeadOfHouseholdID = &e.members[1].ID
	e.Touch(&hh.Lineage)
	require.NoError(t, e.Store.Households().Update(e.Ctx, hh))

	totals := e.sync(t)
	assert.Equal(t, 2, totals[models.EntityHousehold+".updated"])
	assert.Equal(t, 2, totals["writes"])

	e.assertHousehold(t, e.members[1], e.members...)
}

func TestSync_NewExternalCollector(t *testing.T) {
	e := migrated(t, nil)
	collector := e.Individual(nil, "Dee")
	e.Role(e.hh, collector, models.RoleAlternate)

	totals := e.sync(t)
	assert.Equal(t, 2, totals[models.EntityIndividual+".created"])
	assert.Equal(t, 2, totals[models.EntityRole+".created"])

	reps := e.representations(t, collector.ID)
	require.Len(t, reps, 2)
	for _, rep := range reps {
		assert.Nil(t, rep.HouseholdID)
		role, err := e.Store.Roles().First(e.Ctx, store.Where(store.Representations(), store.Eq("individual_id", rep.ID)))
		require.NoError(t, err)
		require.NotNil(t, role)
		assert.Equal(t, models.StringValue(rep.ProgramID), models.StringValue(role.ProgramID))
	}

	assert.Zero(t, e.sync(t)["writes"])
}
