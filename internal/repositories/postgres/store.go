// Package postgres backs the store with PostgreSQL through sqlx and go-sqlbuilder.
package postgres

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/unicef/hope-sub007/pkg/models"
	"github.com/unicef/hope-sub007/pkg/platform/database"
	"github.com/unicef/hope-sub007/pkg/store"
)

type Store struct {
	db     database.DB
	logger ectologger.Logger

	businessAreas        *table[models.BusinessArea]
	dataCollectingTypes  *table[models.DataCollectingType]
	programs             *table[models.Program]
	rdis                 *table[models.RegistrationDataImport]
	rdiPrograms          *table[models.RDIProgram]
	targetPopulations    *table[models.TargetPopulation]
	householdSelections  *table[models.HouseholdSelection]
	paymentPlans         *table[models.PaymentPlan]
	payments             *table[models.Payment]
	paymentRecords       *table[models.PaymentRecord]
	paymentVerifications *table[models.PaymentVerification]
	households           *table[models.Household]
	individuals          *table[models.Individual]
	roles                *table[models.IndividualRoleInHousehold]
	documents            *table[models.Document]
	identities           *table[models.IndividualIdentity]
	bankAccounts         *table[models.BankAccountInfo]
	tickets              *table[models.GrievanceTicket]
	ticketPrograms       *table[models.TicketProgram]
	ticketLinks          *table[models.TicketLink]
	ticketDetails        *table[models.TicketDetail]
	ticketNotes          *table[models.TicketNote]
	grievanceDocuments   *table[models.GrievanceDocument]
	feedbacks            *table[models.Feedback]
	feedbackMessages     *table[models.FeedbackMessage]
	messages             *table[models.Message]
	messageHouseholds    *table[models.MessageHousehold]
}

var _ store.Store = (*Store)(nil)

func New(db database.DB, logger ectologger.Logger) *Store {
	s := &Store{db: db, logger: logger}
	s.businessAreas = newTable[models.BusinessArea](store.TableBusinessAreas, db, logger)
	s.dataCollectingTypes = newTable[models.DataCollectingType](store.TableDataCollectingTypes, db, logger)
	s.programs = newTable[models.Program](store.TablePrograms, db, logger)
	s.rdis = newTable[models.RegistrationDataImport](store.TableRDIs, db, logger)
	s.rdiPrograms = newTable[models.RDIProgram](store.TableRDIPrograms, db, logger).withConflictKey("registration_data_import_id", "program_id")
	s.targetPopulations = newTable[models.TargetPopulation](store.TableTargetPopulations, db, logger)
	s.householdSelections = newTable[models.HouseholdSelection](store.TableHouseholdSelections, db, logger)
	s.paymentPlans = newTable[models.PaymentPlan](store.TablePaymentPlans, db, logger)
	s.payments = newTable[models.Payment](store.TablePayments, db, logger)
	s.paymentRecords = newTable[models.PaymentRecord](store.TablePaymentRecords, db, logger)
	s.paymentVerifications = newTable[models.PaymentVerification](store.TablePaymentVerifications, db, logger)
	s.households = newTable[models.Household](store.TableHouseholds, db, logger)
	s.individuals = newTable[models.Individual](store.TableIndividuals, db, logger)
	s.roles = newTable[models.IndividualRoleInHousehold](store.TableRoles, db, logger)
	s.documents = newTable[models.Document](store.TableDocuments, db, logger)
	s.identities = newTable[models.IndividualIdentity](store.TableIdentities, db, logger)
	s.bankAccounts = newTable[models.BankAccountInfo](store.TableBankAccounts, db, logger)
	s.tickets = newTable[models.GrievanceTicket](store.TableTickets, db, logger)
	s.ticketPrograms = newTable[models.TicketProgram](store.TableTicketPrograms, db, logger).withConflictKey("ticket_id", "program_id")
	s.ticketLinks = newTable[models.TicketLink](store.TableTicketLinks, db, logger).withConflictKey("ticket_id", "linked_ticket_id")
	s.ticketDetails = newTable[models.TicketDetail](store.TableTicketDetails, db, logger)
	s.ticketNotes = newTable[models.TicketNote](store.TableTicketNotes, db, logger)
	s.grievanceDocuments = newTable[models.GrievanceDocument](store.TableGrievanceDocuments, db, logger)
	s.feedbacks = newTable[models.Feedback](store.TableFeedbacks, db, logger)
	s.feedbackMessages = newTable[models.FeedbackMessage](store.TableFeedbackMessages, db, logger)
	s.messages = newTable[models.Message](store.TableMessages, db, logger)
	s.messageHouseholds = newTable[models.MessageHousehold](store.TableMessageHouseholds, db, logger).withConflictKey("message_id", "household_id")
	return s
}

// RunInTransaction joins the transaction carried by ctx or opens one.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.db.RunInTransaction(ctx, fn)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) BusinessAreas() store.Repository[models.BusinessArea] { return s.businessAreas }

func (s *Store) DataCollectingTypes() store.Repository[models.DataCollectingType] {
	return s.dataCollectingTypes
}

func (s *Store) Programs() store.Repository[models.Program] { return s.programs }

func (s *Store) RegistrationDataImports() store.Repository[models.RegistrationDataImport] {
	return s.rdis
}

func (s *Store) RDIPrograms() store.Repository[models.RDIProgram] { return s.rdiPrograms }

func (s *Store) TargetPopulations() store.Repository[models.TargetPopulation] {
	return s.targetPopulations
}

func (s *Store) HouseholdSelections() store.Repository[models.HouseholdSelection] {
	return s.householdSelections
}

func (s *Store) PaymentPlans() store.Repository[models.PaymentPlan] { return s.paymentPlans }

func (s *Store) Payments() store.Repository[models.Payment] { return s.payments }

func (s *Store) PaymentRecords() store.Repository[models.PaymentRecord] { return s.paymentRecords }

func (s *Store) PaymentVerifications() store.Repository[models.PaymentVerification] {
	return s.paymentVerifications
}

func (s *Store) Households() store.Repository[models.Household] { return s.households }

func (s *Store) Individuals() store.Repository[models.Individual] { return s.individuals }

func (s *Store) Roles() store.Repository[models.IndividualRoleInHousehold] { return s.roles }

func (s *Store) Documents() store.Repository[models.Document] { return s.documents }

func (s *Store) Identities() store.Repository[models.IndividualIdentity] { return s.identities }

func (s *Store) BankAccounts() store.Repository[models.BankAccountInfo] { return s.bankAccounts }

func (s *Store) Tickets() store.Repository[models.GrievanceTicket] { return s.tickets }

func (s *Store) TicketPrograms() store.Repository[models.TicketProgram] { return s.ticketPrograms }

func (s *Store) TicketLinks() store.Repository[models.TicketLink] { return s.ticketLinks }

func (s *Store) TicketDetails() store.Repository[models.TicketDetail] { return s.ticketDetails }

func (s *Store) TicketNotes() store.Repository[models.TicketNote] { return s.ticketNotes }

func (s *Store) GrievanceDocuments() store.Repository[models.GrievanceDocument] {
	return s.grievanceDocuments
}

func (s *Store) Feedbacks() store.Repository[models.Feedback] { return s.feedbacks }

func (s *Store) FeedbackMessages() store.Repository[models.FeedbackMessage] {
	return s.feedbackMessages
}

func (s *Store) Messages() store.Repository[models.Message] { return s.messages }

func (s *Store) MessageHouseholds() store.Repository[models.MessageHousehold] {
	return s.messageHouseholds
}
