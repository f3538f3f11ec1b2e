package representation_test

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unicef/hope-sub007/internal/testfixtures"
	"github.com/unicef/hope-sub007/pkg/models"
	"github.com/unicef/hope-sub007/pkg/report"
	"github.com/unicef/hope-sub007/pkg/representation"
	"github.com/unicef/hope-sub007/pkg/store"
)

func setup(t *testing.T) (*testfixtures.Fixture, *representation.Service) {
	t.Helper()
	f := testfixtures.New(t)
	return f, representation.New(f.Store, testfixtures.Logger())
}

func withReport(ctx context.Context) (context.Context, *report.Report) {
	r := report.New()
	return report.WithRecorder(ctx, r), r
}

func repsOf[T any](t *testing.T, repo store.Repository[T], originalID string) []*T {
	t.Helper()
	rows, err := repo.Find(context.Background(), store.RepresentationsOf(originalID))
	require.NoError(t, err)
	return rows
}

func TestGetOrCreateHousehold_CopiesMembersHeadRolesAndChildren(t *testing.T) {
	f, svc := setup(t)
	program := f.Program("Cash")
	hh, members := f.Household(nil, "Alice", "Bob")
	alice, bob := members[0], members[1]
	f.Role(hh, bob, models.RolePrimary)
	f.Document(alice, "P-1", "passport", "AFG")
	f.Identity(alice, "ID-1", "WFP", "AFG")
	f.BankAccount(bob, "Bank", "0001")

	ctx, rep := withReport(f.Ctx)
	hhRep, err := svc.GetOrCreateHousehold(ctx, hh, program.ID)
	require.NoError(t, err)
	require.NotNil(t, hhRep)

	assert.False(t, hhRep.IsOriginal)
	assert.Equal(t, hh.ID, models.StringValue(hhRep.CopiedFromID))
	assert.Equal(t, hh.UnicefID, models.StringValue(hhRep.OriginUnicefID))
	assert.Equal(t, hh.UnicefID, hhRep.UnicefID)
	assert.Equal(t, hh.Address, hhRep.Address)
	assert.True(t, hhRep.InProgram(program.ID))

	aliceReps := repsOf(t, f.Store.Individuals(), alice.ID)
	bobReps := repsOf(t, f.Store.Individuals(), bob.ID)
	require.Len(t, aliceReps, 1)
	require.Len(t, bobReps, 1)
	assert.Equal(t, hhRep.ID, models.StringValue(aliceReps[0].HouseholdID))
	assert.Equal(t, hhRep.ID, models.StringValue(bobReps[0].HouseholdID))
	assert.Equal(t, aliceReps[0].ID, models.StringValue(hhRep.HeadOfHouseholdID))

	roles, err := f.Store.Roles().Find(ctx, store.Where(store.Representations(), store.InProgram(program.ID)))
	require.NoError(t, err)
	require.Len(t, roles, 1)
	assert.Equal(t, hhRep.ID, roles[0].HouseholdID)
	assert.Equal(t, bobReps[0].ID, roles[0].IndividualID)
	assert.Equal(t, models.RolePrimary, roles[0].Role)

	docs, err := f.Store.Documents().Find(ctx, store.Where(store.Representations()))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, aliceReps[0].ID, docs[0].IndividualID)
	assert.Equal(t, "P-1", docs[0].DocumentNumber)

	counts := rep.Counts()
	assert.Equal(t, 1, counts[models.EntityHousehold].Created)
	assert.Equal(t, 2, counts[models.EntityIndividual].Created)
	assert.Equal(t, 1, counts[models.EntityRole].Created)
	assert.Equal(t, 1, counts[models.EntityDocument].Created)
	assert.Equal(t, 1, counts[models.EntityIdentity].Created)
	assert.Equal(t, 1, counts[models.EntityBankAccount].Created)
}

func TestGetOrCreateHousehold_Idempotent(t *testing.T) {
	f, svc := setup(t)
	program := f.Program("Cash")
	hh, members := f.Household(nil, "Alice", "Bob")
	f.Role(hh, members[1], models.RoleAlternate)

	first, err := svc.GetOrCreateHousehold(f.Ctx, hh, program.ID)
	require.NoError(t, err)

	ctx, rep := withReport(f.Ctx)
	second, err := svc.GetOrCreateHousehold(ctx, hh, program.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Zero(t, rep.Writes())

	// a representation id resolves to the same copy
	third, err := svc.GetOrCreateHousehold(ctx, first, program.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, third.ID)
	assert.Len(t, repsOf(t, f.Store.Households(), hh.ID), 1)
	assert.Len(t, repsOf(t, f.Store.Individuals(), members[0].ID), 1)
}

func TestGetOrCreateHousehold_ExternalCollectorAcrossPrograms(t *testing.T) {
	f, svc := setup(t)
	p1 := f.Program("One")
	p2 := f.Program("Two")

	h1, h1Members := f.Household(nil, "Head")
	h2, h2Members := f.Household(nil, "Collector")
	collector := h2Members[0]
	f.Role(h1, collector, models.RolePrimary)

	h1Rep, err := svc.GetOrCreateHousehold(f.Ctx, h1, p1.ID)
	require.NoError(t, err)
	require.NotNil(t, h1Rep)

	collectorReps := repsOf(t, f.Store.Individuals(), collector.ID)
	require.Len(t, collectorReps, 1)
	assert.Nil(t, collectorReps[0].HouseholdID, "collector copied before its own household has no household")
	assert.NotEqual(t, models.StringValue(h1Rep.HeadOfHouseholdID), collectorReps[0].ID)

	ctx, rep := withReport(f.Ctx)
	h2Rep, err := svc.GetOrCreateHousehold(ctx, h2, p1.ID)
	require.NoError(t, err)
	require.NotNil(t, h2Rep)

	collectorReps = repsOf(t, f.Store.Individuals(), collector.ID)
	require.Len(t, collectorReps, 1, "collector is reused, not copied twice")
	assert.Equal(t, h2Rep.ID, models.StringValue(collectorReps[0].HouseholdID))
	assert.Equal(t, collectorReps[0].ID, models.StringValue(h2Rep.HeadOfHouseholdID))
	assert.Equal(t, 1, rep.Counts()[models.EntityIndividual].Updated)
	assert.Equal(t, 0, rep.Counts()[models.EntityIndividual].Created)

	// second program gets its own copies
	h1RepP2, err := svc.GetOrCreateHousehold(f.Ctx, h1, p2.ID)
	require.NoError(t, err)
	require.NotNil(t, h1RepP2)
	assert.NotEqual(t, h1Rep.ID, h1RepP2.ID)
	assert.Len(t, repsOf(t, f.Store.Individuals(), h1Members[0].ID), 2)
	assert.Len(t, repsOf(t, f.Store.Individuals(), collector.ID), 2)

	programs, err := svc.IndividualPrograms(f.Ctx, &collector.ID)
	require.NoError(t, err)
	require.Len(t, programs, 2)
	assert.Equal(t, p1.ID, programs[0].ID)
	assert.Equal(t, p2.ID, programs[1].ID)
}

func TestGetOrCreateHousehold_SkipsInvalidHead(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(f *testfixtures.Fixture, hh *models.Household, head *models.Individual)
	}{
		{
			name: "head removed",
			mutate: func(f *testfixtures.Fixture, _ *models.Household, head *models.Individual) {
				head.IsRemoved = true
				require.NoError(t, f.Store.Individuals().Update(f.Ctx, head))
			},
		},
		{
			name: "head missing",
			mutate: func(f *testfixtures.Fixture, hh *models.Household, _ *models.Individual) {
				hh.HeadOfHouseholdID = models.StringPtr("ghost")
				require.NoError(t, f.Store.Households().Update(f.Ctx, hh))
			},
		},
		{
			name: "no head",
			mutate: func(f *testfixtures.Fixture, hh *models.Household, _ *models.Individual) {
				hh.HeadOfHouseholdID = nil
				require.NoError(t, f.Store.Households().Update(f.Ctx, hh))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, svc := setup(t)
			program := f.Program("Cash")
			hh, members := f.Household(nil, "Head", "Other")
			tt.mutate(f, hh, members[0])

			ctx, rep := withReport(f.Ctx)
			got, err := svc.GetOrCreateHousehold(ctx, hh, program.ID)
			require.NoError(t, err)
			assert.Nil(t, got)
			assert.Zero(t, rep.Writes())
			assert.Equal(t, 1, rep.Skipped()[models.EntityHousehold])
			assert.Empty(t, repsOf(t, f.Store.Individuals(), members[1].ID))

			fast, err := svc.CopyHouseholdsFast(ctx, []*models.Household{hh}, program.ID)
			require.NoError(t, err)
			assert.Empty(t, fast)
			assert.Equal(t, 2, rep.Skipped()[models.EntityHousehold])
		})
	}
}

func TestGetOrCreateHousehold_RemovedHousehold(t *testing.T) {
	f, svc := setup(t)
	program := f.Program("Cash")
	hh, _ := f.Household(nil, "Head")
	hh.IsRemoved = true
	require.NoError(t, f.Store.Households().Update(f.Ctx, hh))

	got, err := svc.GetOrCreateHousehold(f.Ctx, hh, program.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGetOrCreateIndividual(t *testing.T) {
	f, svc := setup(t)
	program := f.Program("Cash")
	hh, members := f.Household(nil, "Head", "Member")
	loner := f.Individual(nil, "Loner")
	f.Document(loner, "D-9", "national_id", "AFG")

	t.Run("member copies its household", func(t *testing.T) {
		rep, err := svc.GetOrCreateIndividual(f.Ctx, members[1], program.ID)
		require.NoError(t, err)
		require.NotNil(t, rep)

		hhRep, err := svc.FindHousehold(f.Ctx, &hh.ID, program.ID)
		require.NoError(t, err)
		require.NotNil(t, hhRep)
		assert.Equal(t, hhRep.ID, models.StringValue(rep.HouseholdID))
	})

	t.Run("individual without household", func(t *testing.T) {
		rep, err := svc.GetOrCreateIndividual(f.Ctx, loner, program.ID)
		require.NoError(t, err)
		require.NotNil(t, rep)
		assert.Nil(t, rep.HouseholdID)

		docs, err := f.Store.Documents().Find(f.Ctx, store.Where(store.Representations(), store.Eq("individual_id", rep.ID)))
		require.NoError(t, err)
		assert.Len(t, docs, 1)

		again, err := svc.GetOrCreateIndividual(f.Ctx, rep, program.ID)
		require.NoError(t, err)
		assert.Equal(t, rep.ID, again.ID)
	})
}

func TestGetOrCreateChildren(t *testing.T) {
	f, svc := setup(t)
	program := f.Program("Cash")
	hh, members := f.Household(nil, "Head")
	head := members[0]

	doc := f.Document(head, "P-1", "passport", "AFG")
	ctx, rep := withReport(f.Ctx)
	got, err := svc.GetOrCreateDocument(ctx, doc, program.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, 1, rep.Skipped()[models.EntityDocument])

	_, err = svc.GetOrCreateHousehold(f.Ctx, hh, program.ID)
	require.NoError(t, err)
	headRep, err := svc.FindIndividual(f.Ctx, &head.ID, program.ID)
	require.NoError(t, err)
	require.NotNil(t, headRep)

	t.Run("existing document is returned", func(t *testing.T) {
		got, err := svc.GetOrCreateDocument(f.Ctx, doc, program.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, headRep.ID, got.IndividualID)
		found, err := svc.FindDocument(f.Ctx, headRep.ID, "P-1", "passport", "AFG", program.ID)
		require.NoError(t, err)
		assert.Equal(t, got.ID, found.ID)
	})

	t.Run("new children are copied onto the representation", func(t *testing.T) {
		identity := f.Identity(head, "ID-7", "UNHCR", "AFG")
		account := f.BankAccount(head, "Bank", "42")

		idRep, err := svc.GetOrCreateIdentity(f.Ctx, identity, program.ID)
		require.NoError(t, err)
		require.NotNil(t, idRep)
		assert.Equal(t, headRep.ID, idRep.IndividualID)

		accRep, err := svc.GetOrCreateBankAccount(f.Ctx, account, program.ID)
		require.NoError(t, err)
		require.NotNil(t, accRep)
		found, err := svc.FindBankAccount(f.Ctx, headRep.ID, "Bank", "42", program.ID)
		require.NoError(t, err)
		assert.Equal(t, accRep.ID, found.ID)

		foundID, err := svc.FindIdentity(f.Ctx, headRep.ID, "ID-7", "UNHCR", "AFG", program.ID)
		require.NoError(t, err)
		assert.Equal(t, idRep.ID, foundID.ID)
	})

	t.Run("removed child is ignored", func(t *testing.T) {
		removed := f.Document(head, "P-2", "passport", "AFG")
		removed.IsRemoved = true
		got, err := svc.GetOrCreateDocument(f.Ctx, removed, program.ID)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("role needs its household", func(t *testing.T) {
		other, otherMembers := f.Household(nil, "Other")
		role := f.Role(other, otherMembers[0], models.RolePrimary)
		ctx, rep := withReport(f.Ctx)
		got, err := svc.GetOrCreateRole(ctx, role, program.ID)
		require.NoError(t, err)
		assert.Nil(t, got)
		assert.Equal(t, 1, rep.Skipped()[models.EntityRole])

		hhRole := f.Role(hh, head, models.RoleAlternate)
		got, err = svc.GetOrCreateRole(f.Ctx, hhRole, program.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		hhRep, err := svc.FindHousehold(f.Ctx, &hh.ID, program.ID)
		require.NoError(t, err)
		found, err := svc.FindRole(f.Ctx, hhRep.ID, headRep.ID, program.ID)
		require.NoError(t, err)
		assert.Equal(t, got.ID, found.ID)
	})
}

func TestFindHousehold_AcceptsRepresentationID(t *testing.T) {
	f, svc := setup(t)
	p1 := f.Program("One")
	p2 := f.Program("Two")
	hh, _ := f.Household(nil, "Head")

	rep1, err := svc.GetOrCreateHousehold(f.Ctx, hh, p1.ID)
	require.NoError(t, err)
	rep2, err := svc.GetOrCreateHousehold(f.Ctx, hh, p2.ID)
	require.NoError(t, err)

	found, err := svc.FindHousehold(f.Ctx, &rep1.ID, p2.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, rep2.ID, found.ID)

	missing, err := svc.FindHousehold(f.Ctx, models.StringPtr("nope"), p1.ID)
	require.NoError(t, err)
	assert.Nil(t, missing)

	programs, err := representation.RepresentedPrograms[models.Household](f.Ctx, f.Store.Households(), hh.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{p1.ID, p2.ID}, programs)
}

// shape describes a program's copies in terms of original ids.
type shape struct {
	Household string
	Head      string
	Members   []string
	Roles     []string
	Children  int
}

func programShape(t *testing.T, f *testfixtures.Fixture, programID string) []shape {
	t.Helper()
	ctx := f.Ctx
	inProgram := store.Where(store.Representations(), store.InProgram(programID))

	individuals, err := f.Store.Individuals().Find(ctx, inProgram)
	require.NoError(t, err)
	origOf := map[string]string{}
	for _, ind := range individuals {
		origOf[ind.ID] = models.StringValue(ind.CopiedFromID)
	}

	households, err := f.Store.Households().Find(ctx, inProgram)
	require.NoError(t, err)
	roles, err := f.Store.Roles().Find(ctx, inProgram)
	require.NoError(t, err)
	docs, err := f.Store.Documents().Count(ctx, inProgram)
	require.NoError(t, err)
	ids, err := f.Store.Identities().Count(ctx, inProgram)
	require.NoError(t, err)
	accounts, err := f.Store.BankAccounts().Count(ctx, inProgram)
	require.NoError(t, err)

	var out []shape
	for _, hh := range households {
		s := shape{
			Household: models.StringValue(hh.CopiedFromID),
			Head:      origOf[models.StringValue(hh.HeadOfHouseholdID)],
			Children:  docs + ids + accounts,
		}
		for _, ind := range individuals {
			if models.StringValue(ind.HouseholdID) == hh.ID {
				s.Members = append(s.Members, origOf[ind.ID])
			}
		}
		for _, r := range roles {
			if r.HouseholdID == hh.ID {
				s.Roles = append(s.Roles, models.StringValue(r.CopiedFromID)+"@"+origOf[r.IndividualID])
			}
		}
		sort.Strings(s.Members)
		sort.Strings(s.Roles)
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Household < out[j].Household })
	return out
}

func TestCopyHouseholdsFast_MatchesPerItemCopy(t *testing.T) {
	f, svc := setup(t)
	slow := f.Program("Slow")
	fast := f.Program("Fast")

	h1, h1Members := f.Household(nil, "A", "B")
	h2, h2Members := f.Household(nil, "C")
	h3, _ := f.Household(nil, "D", "E", "F")
	f.Role(h1, h2Members[0], models.RolePrimary)
	f.Role(h1, h1Members[1], models.RoleAlternate)
	f.Role(h3, h1Members[0], models.RolePrimary)
	f.Document(h1Members[0], "P-1", "passport", "AFG")
	f.Identity(h2Members[0], "I-1", "WFP", "AFG")
	f.BankAccount(h1Members[1], "Bank", "7")

	households := []*models.Household{h1, h2, h3}
	slowReport := report.New()
	slowCtx := report.WithRecorder(f.Ctx, slowReport)
	for _, hh := range households {
		_, err := svc.GetOrCreateHousehold(slowCtx, hh, slow.ID)
		require.NoError(t, err)
	}

	fastCtx, fastReport := withReport(f.Ctx)
	reps, err := svc.CopyHouseholdsFast(fastCtx, households, fast.ID)
	require.NoError(t, err)
	assert.Len(t, reps, 3)

	assert.Equal(t, programShape(t, f, slow.ID), programShape(t, f, fast.ID))
	for _, entity := range []string{models.EntityHousehold, models.EntityIndividual, models.EntityRole, models.EntityDocument} {
		assert.Equal(t, slowReport.Counts()[entity].Created, fastReport.Counts()[entity].Created, entity)
	}

	t.Run("second run writes nothing", func(t *testing.T) {
		ctx, rep := withReport(f.Ctx)
		again, err := svc.CopyHouseholdsFast(ctx, households, fast.ID)
		require.NoError(t, err)
		assert.Len(t, again, 3)
		assert.Zero(t, rep.Writes())
	})
}

func TestCopyHouseholdsFast_AttachesEarlierCollector(t *testing.T) {
	f, svc := setup(t)
	program := f.Program("Cash")
	h1, _ := f.Household(nil, "Head")
	h2, h2Members := f.Household(nil, "Collector")
	f.Role(h1, h2Members[0], models.RolePrimary)

	_, err := svc.CopyHouseholdsFast(f.Ctx, []*models.Household{h1}, program.ID)
	require.NoError(t, err)
	collectorReps := repsOf(t, f.Store.Individuals(), h2Members[0].ID)
	require.Len(t, collectorReps, 1)
	assert.Nil(t, collectorReps[0].HouseholdID)

	ctx, rep := withReport(f.Ctx)
	reps, err := svc.CopyHouseholdsFast(ctx, []*models.Household{h2}, program.ID)
	require.NoError(t, err)
	require.Len(t, reps, 1)

	collectorReps = repsOf(t, f.Store.Individuals(), h2Members[0].ID)
	require.Len(t, collectorReps, 1)
	assert.Equal(t, reps[0].ID, models.StringValue(collectorReps[0].HouseholdID))
	assert.Equal(t, collectorReps[0].ID, models.StringValue(reps[0].HeadOfHouseholdID))
	assert.Equal(t, 1, rep.Counts()[models.EntityIndividual].Updated)
}

func TestApplyHousehold_DoesNotShareJSON(t *testing.T) {
	orig := &models.Household{Address: "A", FlexFields: models.JSON(`{"a":1}`)}
	rep := &models.Household{}
	representation.ApplyHousehold(orig, rep)
	require.Equal(t, `{"a":1}`, string(rep.FlexFields))
	orig.FlexFields[2] = 'b'
	assert.Equal(t, `{"a":1}`, string(rep.FlexFields))
	assert.Equal(t, "A", rep.Address)
}
