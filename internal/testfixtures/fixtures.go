// Package testfixtures seeds an in-memory store with originals for engine tests.
package testfixtures

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/require"

	"github.com/unicef/hope-sub007/internal/repositories/memory"
	"github.com/unicef/hope-sub007/pkg/models"
	"github.com/unicef/hope-sub007/pkg/platform/database"
)

type Fixture struct {
	t     testing.TB
	Ctx   context.Context
	Store *memory.Store
	BA    *models.BusinessArea
	clock time.Time
	seq   int
}

func New(t testing.TB) *Fixture {
	f := &Fixture{
		t:     t,
		Ctx:   context.Background(),
		Store: memory.New(),
		BA:    &models.BusinessArea{ID: "ba-1", Slug: "afghanistan", Name: "Afghanistan"},
		clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, f.Store.BusinessAreas().Insert(f.Ctx, f.BA))
	return f
}

func Logger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

// Tick advances the fixture clock and returns it.
func (f *Fixture) Tick() time.Time {
	f.clock = f.clock.Add(time.Minute)
	return f.clock
}

func (f *Fixture) id(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%d", prefix, f.seq)
}

func (f *Fixture) original() models.Lineage {
	return models.Lineage{IsOriginal: true, UpdatedAt: f.Tick()}
}

func (f *Fixture) Program(name string) *models.Program {
	p := &models.Program{
		ID:                     f.id("program"),
		BusinessAreaID:         f.BA.ID,
		Name:                   name,
		Status:                 models.ProgramStatusActive,
		Kind:                   models.ProgramKindRegular,
		DataCollectingTypeCode: models.CollectingTypeFull,
		IsVisible:              true,
		CreatedAt:              f.Tick(),
	}
	require.NoError(f.t, f.Store.Programs().Insert(f.Ctx, p))
	return p
}

func (f *Fixture) CollectingType(code string) *models.DataCollectingType {
	dct := &models.DataCollectingType{ID: f.id("dct"), Code: code, Label: code}
	require.NoError(f.t, f.Store.DataCollectingTypes().Insert(f.Ctx, dct))
	return dct
}

func (f *Fixture) RDI(name string, dct *models.DataCollectingType) *models.RegistrationDataImport {
	rdi := &models.RegistrationDataImport{
		ID:             f.id("rdi"),
		BusinessAreaID: f.BA.ID,
		Name:           name,
		Status:         "MERGED",
		CreatedAt:      f.Tick(),
	}
	if dct != nil {
		rdi.DataCollectingTypeID = &dct.ID
	}
	require.NoError(f.t, f.Store.RegistrationDataImports().Insert(f.Ctx, rdi))
	return rdi
}

func (f *Fixture) AssignRDI(rdi *models.RegistrationDataImport, program *models.Program) {
	require.NoError(f.t, f.Store.RDIPrograms().Insert(f.Ctx, &models.RDIProgram{
		ID:                       f.id("rdi-program"),
		RegistrationDataImportID: rdi.ID,
		ProgramID:                program.ID,
		CreatedAt:                f.Tick(),
	}))
}

// TargetPopulation selects households into program.
func (f *Fixture) TargetPopulation(program *models.Program, households ...*models.Household) *models.TargetPopulation {
	tp := &models.TargetPopulation{
		ID:             f.id("tp"),
		BusinessAreaID: f.BA.ID,
		ProgramID:      &program.ID,
		Name:           "tp",
		Status:         "LOCKED",
		CreatedAt:      f.Tick(),
	}
	require.NoError(f.t, f.Store.TargetPopulations().Insert(f.Ctx, tp))
	for _, hh := range households {
		require.NoError(f.t, f.Store.HouseholdSelections().Insert(f.Ctx, &models.HouseholdSelection{
			ID:                 f.id("selection"),
			TargetPopulationID: tp.ID,
			HouseholdID:        hh.ID,
		}))
	}
	return tp
}

// Household creates an original household with members; the first member is the head.
func (f *Fixture) Household(rdi *models.RegistrationDataImport, memberNames ...string) (*models.Household, []*models.Individual) {
	hh := &models.Household{
		ID:             f.id("hh"),
		BusinessAreaID: f.BA.ID,
		Address:        "Street 1",
		Village:        "Village",
		CreatedAt:      f.Tick(),
		Lineage:        f.original(),
	}
	hh.UnicefID = "HH-" + hh.ID
	if rdi != nil {
		hh.RegistrationDataImportID = &rdi.ID
	}
	require.NoError(f.t, f.Store.Households().Insert(f.Ctx, hh))

	members := make([]*models.Individual, 0, len(memberNames))
	for _, name := range memberNames {
		members = append(members, f.Individual(&hh.ID, name))
	}
	if len(members) > 0 {
		hh.HeadOfHouseholdID = &members[0].ID
		require.NoError(f.t, f.Store.Households().Update(f.Ctx, hh))
	}
	return hh, members
}

func (f *Fixture) Individual(householdID *string, name string) *models.Individual {
	ind := &models.Individual{
		ID:             f.id("ind"),
		BusinessAreaID: f.BA.ID,
		HouseholdID:    householdID,
		FullName:       name,
		GivenName:      name,
		Sex:            "FEMALE",
		BirthDate:      time.Date(1990, 5, 1, 0, 0, 0, 0, time.UTC),
		CreatedAt:      f.Tick(),
		Lineage:        f.original(),
	}
	ind.UnicefID = "IND-" + ind.ID
	require.NoError(f.t, f.Store.Individuals().Insert(f.Ctx, ind))
	return ind
}

func (f *Fixture) Role(hh *models.Household, ind *models.Individual, role models.Role) *models.IndividualRoleInHousehold {
	r := &models.IndividualRoleInHousehold{
		ID:           f.id("role"),
		HouseholdID:  hh.ID,
		IndividualID: ind.ID,
		Role:         role,
		CreatedAt:    f.Tick(),
		Lineage:      f.original(),
	}
	require.NoError(f.t, f.Store.Roles().Insert(f.Ctx, r))
	return r
}

func (f *Fixture) Document(ind *models.Individual, number, typeKey, country string) *models.Document {
	d := &models.Document{
		ID:             f.id("doc"),
		IndividualID:   ind.ID,
		DocumentNumber: number,
		TypeKey:        typeKey,
		Country:        country,
		Status:         "VALID",
		CreatedAt:      f.Tick(),
		Lineage:        f.original(),
	}
	require.NoError(f.t, f.Store.Documents().Insert(f.Ctx, d))
	return d
}

func (f *Fixture) Identity(ind *models.Individual, number, partner, country string) *models.IndividualIdentity {
	i := &models.IndividualIdentity{
		ID:           f.id("identity"),
		IndividualID: ind.ID,
		Number:       number,
		Partner:      partner,
		Country:      country,
		CreatedAt:    f.Tick(),
		Lineage:      f.original(),
	}
	require.NoError(f.t, f.Store.Identities().Insert(f.Ctx, i))
	return i
}

func (f *Fixture) BankAccount(ind *models.Individual, bank, number string) *models.BankAccountInfo {
	b := &models.BankAccountInfo{
		ID:                f.id("bank"),
		IndividualID:      ind.ID,
		BankName:          bank,
		BankAccountNumber: number,
		CreatedAt:         f.Tick(),
		Lineage:           f.original(),
	}
	require.NoError(f.t, f.Store.BankAccounts().Insert(f.Ctx, b))
	return b
}

// Ticket creates an original ticket with a detail of the given kind. The
// mutate callback fills in the detail references.
func (f *Fixture) Ticket(status models.TicketStatus, kind models.DetailKind, mutate func(*models.TicketDetail)) (*models.GrievanceTicket, *models.TicketDetail) {
	ticket := &models.GrievanceTicket{
		ID:             f.id("grv"),
		BusinessAreaID: f.BA.ID,
		Status:         status,
		Category:       1,
		Description:    "ticket",
		Consent:        true,
		CreatedAt:      f.Tick(),
		Lineage:        f.original(),
	}
	ticket.UnicefID = "GRV-" + ticket.ID
	require.NoError(f.t, f.Store.Tickets().Insert(f.Ctx, ticket))

	detail := &models.TicketDetail{ID: f.id("detail"), TicketID: ticket.ID, Kind: kind}
	if mutate != nil {
		mutate(detail)
	}
	require.NoError(f.t, f.Store.TicketDetails().Insert(f.Ctx, detail))
	return ticket, detail
}

func (f *Fixture) Note(ticket *models.GrievanceTicket, text string) *models.TicketNote {
	n := &models.TicketNote{ID: f.id("note"), TicketID: ticket.ID, Description: text, CreatedAt: f.Tick(), Lineage: f.original()}
	require.NoError(f.t, f.Store.TicketNotes().Insert(f.Ctx, n))
	return n
}

func (f *Fixture) GrievanceDocument(ticket *models.GrievanceTicket, name string) *models.GrievanceDocument {
	d := &models.GrievanceDocument{ID: f.id("gdoc"), TicketID: ticket.ID, Name: name, File: name, CreatedAt: f.Tick(), Lineage: f.original()}
	require.NoError(f.t, f.Store.GrievanceDocuments().Insert(f.Ctx, d))
	return d
}

func (f *Fixture) Link(a, b *models.GrievanceTicket) {
	require.NoError(f.t, f.Store.TicketLinks().Insert(f.Ctx,
		&models.TicketLink{ID: f.id("link"), TicketID: a.ID, LinkedTicketID: b.ID},
		&models.TicketLink{ID: f.id("link"), TicketID: b.ID, LinkedTicketID: a.ID},
	))
}

func (f *Fixture) Feedback(householdID, individualID *string, mutate func(*models.Feedback)) *models.Feedback {
	fb := &models.Feedback{
		ID:                 f.id("fb"),
		BusinessAreaID:     f.BA.ID,
		IssueType:          "NEGATIVE_FEEDBACK",
		HouseholdLookupID:  householdID,
		IndividualLookupID: individualID,
		Description:        "feedback",
		Consent:            true,
		CreatedAt:          f.Tick(),
		Lineage:            f.original(),
	}
	fb.UnicefID = "FED-" + fb.ID
	if mutate != nil {
		mutate(fb)
	}
	require.NoError(f.t, f.Store.Feedbacks().Insert(f.Ctx, fb))
	return fb
}

func (f *Fixture) FeedbackMessage(fb *models.Feedback, text string) *models.FeedbackMessage {
	m := &models.FeedbackMessage{ID: f.id("fbm"), FeedbackID: fb.ID, Description: text, CreatedAt: f.Tick(), Lineage: f.original()}
	require.NoError(f.t, f.Store.FeedbackMessages().Insert(f.Ctx, m))
	return m
}

func (f *Fixture) Message(tp *models.TargetPopulation, households ...*models.Household) *models.Message {
	msg := &models.Message{
		ID:             f.id("msg"),
		BusinessAreaID: f.BA.ID,
		Title:          "title",
		Body:           "body",
		SamplingType:   "FULL_LIST",
		CreatedAt:      f.Tick(),
		Lineage:        f.original(),
	}
	msg.UnicefID = "MSG-" + msg.ID
	if tp != nil {
		msg.TargetPopulationID = &tp.ID
	}
	msg.NumberOfRecipients = len(households)
	require.NoError(f.t, f.Store.Messages().Insert(f.Ctx, msg))
	for _, hh := range households {
		require.NoError(f.t, f.Store.MessageHouseholds().Insert(f.Ctx, &models.MessageHousehold{
			ID: f.id("msg-hh"), MessageID: msg.ID, HouseholdID: hh.ID,
		}))
	}
	return msg
}

// Touch marks an original as edited now.
func (f *Fixture) Touch(lineage *models.Lineage) {
	lineage.UpdatedAt = f.Tick()
}

// IDs is a convenience for JSONB id lists.
func IDs(ids ...string) database.JSONB[[]string] {
	return database.NewJSONB(ids)
}
