package store

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"

	"github.com/unicef/hope-sub007/pkg/models"
)

// Repository is the typed access to one table.
type Repository[T any] interface {
	// Get returns a 404 httperror when the row does not exist.
	Get(ctx context.Context, id string) (*T, error)
	Find(ctx context.Context, q Query) ([]*T, error)
	// First returns nil without error when nothing matches.
	First(ctx context.Context, q Query) (*T, error)
	Count(ctx context.Context, q Query) (int, error)
	Insert(ctx context.Context, rows ...*T) error
	Update(ctx context.Context, rows ...*T) error
	Delete(ctx context.Context, q Query) (int, error)
}

// Store is the relational store the migration and sync drivers run against.
type Store interface {
	// RunInTransaction joins the transaction carried by ctx or opens one.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
	Ping(ctx context.Context) error

	BusinessAreas() Repository[models.BusinessArea]
	DataCollectingTypes() Repository[models.DataCollectingType]
	Programs() Repository[models.Program]
	RegistrationDataImports() Repository[models.RegistrationDataImport]
	RDIPrograms() Repository[models.RDIProgram]
	TargetPopulations() Repository[models.TargetPopulation]
	HouseholdSelections() Repository[models.HouseholdSelection]
	PaymentPlans() Repository[models.PaymentPlan]
	Payments() Repository[models.Payment]
	PaymentRecords() Repository[models.PaymentRecord]
	PaymentVerifications() Repository[models.PaymentVerification]

	Households() Repository[models.Household]
	Individuals() Repository[models.Individual]
	Roles() Repository[models.IndividualRoleInHousehold]
	Documents() Repository[models.Document]
	Identities() Repository[models.IndividualIdentity]
	BankAccounts() Repository[models.BankAccountInfo]

	Tickets() Repository[models.GrievanceTicket]
	TicketPrograms() Repository[models.TicketProgram]
	TicketLinks() Repository[models.TicketLink]
	TicketDetails() Repository[models.TicketDetail]
	TicketNotes() Repository[models.TicketNote]
	GrievanceDocuments() Repository[models.GrievanceDocument]

	Feedbacks() Repository[models.Feedback]
	FeedbackMessages() Repository[models.FeedbackMessage]
	Messages() Repository[models.Message]
	MessageHouseholds() Repository[models.MessageHousehold]
}

// Table names shared by every backend.
const (
	TableBusinessAreas        = "business_areas"
	TableDataCollectingTypes  = "data_collecting_types"
	TablePrograms             = "programs"
	TableRDIs                 = "registration_data_imports"
	TableRDIPrograms          = "registration_data_import_programs"
	TableTargetPopulations    = "target_populations"
	TableHouseholdSelections  = "household_selections"
	TablePaymentPlans         = "payment_plans"
	TablePayments             = "payments"
	TablePaymentRecords       = "payment_records"
	TablePaymentVerifications = "payment_verifications"
	TableHouseholds           = "households"
	TableIndividuals          = "individuals"
	TableRoles                = "individual_roles_in_household"
	TableDocuments            = "documents"
	TableIdentities           = "individual_identities"
	TableBankAccounts         = "bank_account_infos"
	TableTickets              = "grievance_tickets"
	TableTicketPrograms       = "grievance_ticket_programs"
	TableTicketLinks          = "grievance_ticket_links"
	TableTicketDetails        = "grievance_ticket_details"
	TableTicketNotes          = "grievance_ticket_notes"
	TableGrievanceDocuments   = "grievance_documents"
	TableFeedbacks            = "feedbacks"
	TableFeedbackMessages     = "feedback_messages"
	TableMessages             = "messages"
	TableMessageHouseholds    = "message_households"
)

func NotFound(table, id string) error {
	return httperror.NewHTTPErrorf(http.StatusNotFound, "%s %s not found", table, id)
}

// IsNotFound reports whether err is a 404 from a repository.
func IsNotFound(err error) bool {
	return err != nil && httperror.IsHTTPError(err) && httperror.GetStatusCode(err) == http.StatusNotFound
}

// GetOptional is Get that maps not-found to nil.
func GetOptional[T any](ctx context.Context, repo Repository[T], id *string) (*T, error) {
	if id == nil || *id == "" {
		return nil, nil
	}
	row, err := repo.Get(ctx, *id)
	if IsNotFound(err) {
		return nil, nil
	}
	return row, err
}

// FindByIDs loads rows by id in chunks and indexes them.
func FindByIDs[T any](ctx context.Context, repo Repository[T], ids []string, key func(*T) string, conditions ...Condition) (map[string]*T, error) {
	out := make(map[string]*T, len(ids))
	for _, chunk := range Chunk(Unique(ids), 500) {
		rows, err := repo.Find(ctx, Where(In("id", chunk)).And(conditions...))
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			out[key(row)] = row
		}
	}
	return out, nil
}

// FindIn loads the rows whose column matches any of values, in chunks.
func FindIn[T any](ctx context.Context, repo Repository[T], column string, values []string, conditions ...Condition) ([]*T, error) {
	var out []*T
	for _, chunk := range Chunk(Unique(values), 500) {
		rows, err := repo.Find(ctx, Where(In(column, chunk)).And(conditions...))
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	return out, nil
}

// Unique drops empty and repeated ids, keeping first-seen order.
func Unique(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
