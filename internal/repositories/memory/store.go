// Package memory is an in-process store used by tests and dry runs.
package memory

import (
	"context"
	"sync"

	"github.com/unicef/hope-sub007/pkg/models"
	"github.com/unicef/hope-sub007/pkg/store"
)

type txKey struct{}

type Store struct {
	mu   sync.RWMutex
	txMu sync.Mutex

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

	snapshots []func() func()
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	s := &Store{}
	s.businessAreas = register(s, newTable[models.BusinessArea](store.TableBusinessAreas, &s.mu))
	s.dataCollectingTypes = register(s, newTable[models.DataCollectingType](store.TableDataCollectingTypes, &s.mu))
	s.programs = register(s, newTable[models.Program](store.TablePrograms, &s.mu))
	s.rdis = register(s, newTable[models.RegistrationDataImport](store.TableRDIs, &s.mu))
	s.rdiPrograms = register(s, newTable[models.RDIProgram](store.TableRDIPrograms, &s.mu).withConflictKey("registration_data_import_id", "program_id"))
	s.targetPopulations = register(s, newTable[models.TargetPopulation](store.TableTargetPopulations, &s.mu))
	s.householdSelections = register(s, newTable[models.HouseholdSelection](store.TableHouseholdSelections, &s.mu))
	s.paymentPlans = register(s, newTable[models.PaymentPlan](store.TablePaymentPlans, &s.mu))
	s.payments = register(s, newTable[models.Payment](store.TablePayments, &s.mu))
	s.paymentRecords = register(s, newTable[models.PaymentRecord](store.TablePaymentRecords, &s.mu))
	s.paymentVerifications = register(s, newTable[models.PaymentVerification](store.TablePaymentVerifications, &s.mu))
	s.households = register(s, newTable[models.Household](store.TableHouseholds, &s.mu))
	s.individuals = register(s, newTable[models.Individual](store.TableIndividuals, &s.mu))
	s.roles = register(s, newTable[models.IndividualRoleInHousehold](store.TableRoles, &s.mu))
	s.documents = register(s, newTable[models.Document](store.TableDocuments, &s.mu))
	s.identities = register(s, newTable[models.IndividualIdentity](store.TableIdentities, &s.mu))
	s.bankAccounts = register(s, newTable[models.BankAccountInfo](store.TableBankAccounts, &s.mu))
	s.tickets = register(s, newTable[models.GrievanceTicket](store.TableTickets, &s.mu))
	s.ticketPrograms = register(s, newTable[models.TicketProgram](store.TableTicketPrograms, &s.mu).withConflictKey("ticket_id", "program_id"))
	s.ticketLinks = register(s, newTable[models.TicketLink](store.TableTicketLinks, &s.mu).withConflictKey("ticket_id", "linked_ticket_id"))
	s.ticketDetails = register(s, newTable[models.TicketDetail](store.TableTicketDetails, &s.mu))
	s.ticketNotes = register(s, newTable[models.TicketNote](store.TableTicketNotes, &s.mu))
	s.grievanceDocuments = register(s, newTable[models.GrievanceDocument](store.TableGrievanceDocuments, &s.mu))
	s.feedbacks = register(s, newTable[models.Feedback](store.TableFeedbacks, &s.mu))
	s.feedbackMessages = register(s, newTable[models.FeedbackMessage](store.TableFeedbackMessages, &s.mu))
	s.messages = register(s, newTable[models.Message](store.TableMessages, &s.mu))
	s.messageHouseholds = register(s, newTable[models.MessageHousehold](store.TableMessageHouseholds, &s.mu).withConflictKey("message_id", "household_id"))
	return s
}

func register[T any](s *Store, t *table[T]) *table[T] {
	s.snapshots = append(s.snapshots, t.snapshot)
	return t
}

// RunInTransaction serialises transactions and restores every table when fn fails.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	restores := make([]func(), len(s.snapshots))
	for i, snapshot := range s.snapshots {
		restores[i] = snapshot()
	}

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		for _, restore := range restores {
			restore()
		}
		return err
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
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
