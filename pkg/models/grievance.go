package models

import (
	"time"

	"github.com/unicef/hope-sub007/pkg/platform/database"
)

type TicketStatus int

const (
	TicketStatusNew TicketStatus = iota + 1
	TicketStatusAssigned
	TicketStatusInProgress
	TicketStatusOnHold
	TicketStatusForApproval
	TicketStatusClosed
)

type GrievanceTicket struct {
	ID                 string       `db:"id" json:"id"`
	UnicefID           string       `db:"unicef_id" json:"unicef_id"`
	BusinessAreaID     string       `db:"business_area_id" json:"business_area_id"`
	Status             TicketStatus `db:"status" json:"status"`
	Category           int          `db:"category" json:"category"`
	IssueType          *int         `db:"issue_type" json:"issue_type,omitempty"`
	Description        string       `db:"description" json:"description"`
	Comments           *string      `db:"comments" json:"comments,omitempty"`
	Admin2             *string      `db:"admin2" json:"admin2,omitempty"`
	Area               string       `db:"area" json:"area"`
	Language           string       `db:"language" json:"language"`
	Consent            bool         `db:"consent" json:"consent"`
	Priority           int          `db:"priority" json:"priority"`
	Urgency            int          `db:"urgency" json:"urgency"`
	AssignedToID       *string      `db:"assigned_to_id" json:"assigned_to_id,omitempty"`
	CreatedByID        *string      `db:"created_by_id" json:"created_by_id,omitempty"`
	HouseholdUnicefID  *string      `db:"household_unicef_id" json:"household_unicef_id,omitempty"`
	RegistrationDataID *string      `db:"registration_data_import_id" json:"registration_data_import_id,omitempty"`
	CreatedAt          time.Time    `db:"created_at" json:"created_at"`
	Lineage
}

func (t *GrievanceTicket) GetID() string { return t.ID }

func (t *GrievanceTicket) IsClosed() bool { return t.Status == TicketStatusClosed }

// TicketProgram is one row of the ticket to program many-to-many.
type TicketProgram struct {
	ID        string `db:"id" json:"id"`
	TicketID  string `db:"ticket_id" json:"ticket_id"`
	ProgramID string `db:"program_id" json:"program_id"`
}

// TicketLink is one direction of a linked_tickets pair.
type TicketLink struct {
	ID             string `db:"id" json:"id"`
	TicketID       string `db:"ticket_id" json:"ticket_id"`
	LinkedTicketID string `db:"linked_ticket_id" json:"linked_ticket_id"`
}

// DetailKind identifies which of the thirteen typed detail shapes a ticket carries.
type DetailKind string

const (
	DetailComplaint            DetailKind = "complaint"
	DetailSensitive            DetailKind = "sensitive"
	DetailPaymentVerification  DetailKind = "payment_verification"
	DetailHouseholdDataUpdate  DetailKind = "household_data_update"
	DetailIndividualDataUpdate DetailKind = "individual_data_update"
	DetailAddIndividual        DetailKind = "add_individual"
	DetailDeleteIndividual     DetailKind = "delete_individual"
	DetailDeleteHousehold      DetailKind = "delete_household"
	DetailSystemFlagging       DetailKind = "system_flagging"
	DetailPositiveFeedback     DetailKind = "positive_feedback"
	DetailNegativeFeedback     DetailKind = "negative_feedback"
	DetailReferral             DetailKind = "referral"
	DetailNeedsAdjudication    DetailKind = "needs_adjudication"
)

// DetailKinds lists every kind in processing order.
var DetailKinds = []DetailKind{
	DetailComplaint,
	DetailSensitive,
	DetailPaymentVerification,
	DetailHouseholdDataUpdate,
	DetailIndividualDataUpdate,
	DetailAddIndividual,
	DetailDeleteIndividual,
	DetailDeleteHousehold,
	DetailSystemFlagging,
	DetailPositiveFeedback,
	DetailNegativeFeedback,
	DetailReferral,
	DetailNeedsAdjudication,
}

// DetailShape describes which references a detail kind carries.
type DetailShape struct {
	PaymentLinked    bool
	Household        bool
	Individual       bool
	RoleReassignData bool
	IndividualData   bool
}

var detailShapes = map[DetailKind]DetailShape{
	DetailComplaint:            {PaymentLinked: true, Household: true, Individual: true},
	DetailSensitive:            {PaymentLinked: true, Household: true, Individual: true},
	DetailPaymentVerification:  {PaymentLinked: true},
	DetailHouseholdDataUpdate:  {Household: true},
	DetailIndividualDataUpdate: {Individual: true, IndividualData: true},
	DetailAddIndividual:        {Household: true},
	DetailDeleteIndividual:     {Individual: true, RoleReassignData: true},
	DetailDeleteHousehold:      {Household: true},
	DetailSystemFlagging:       {Individual: true, RoleReassignData: true},
	DetailPositiveFeedback:     {Household: true, Individual: true},
	DetailNegativeFeedback:     {Household: true, Individual: true},
	DetailReferral:             {Household: true, Individual: true},
	DetailNeedsAdjudication:    {RoleReassignData: true},
}

func (k DetailKind) Shape() DetailShape {
	return detailShapes[k]
}

// TicketDetail holds the typed detail row of a ticket. Columns not used by
// the kind stay empty.
type TicketDetail struct {
	ID       string     `db:"id" json:"id"`
	TicketID string     `db:"ticket_id" json:"ticket_id"`
	Kind     DetailKind `db:"kind" json:"kind"`

	HouseholdID  *string `db:"household_id" json:"household_id,omitempty"`
	IndividualID *string `db:"individual_id" json:"individual_id,omitempty"`

	// Complaint and Sensitive.
	PaymentObjectType *string `db:"payment_object_type" json:"payment_object_type,omitempty"`
	PaymentObjectID   *string `db:"payment_object_id" json:"payment_object_id,omitempty"`
	// PaymentVerification.
	PaymentVerificationID *string `db:"payment_verification_id" json:"payment_verification_id,omitempty"`
	NewReceivedAmount     *string `db:"new_received_amount" json:"new_received_amount,omitempty"`

	// SystemFlagging and NeedsAdjudication.
	GoldenRecordsIndividualID *string                  `db:"golden_records_individual_id" json:"golden_records_individual_id,omitempty"`
	SanctionListIndividualID  *string                  `db:"sanction_list_individual_id" json:"sanction_list_individual_id,omitempty"`
	PossibleDuplicates        database.JSONB[[]string] `db:"possible_duplicates" json:"possible_duplicates"`
	SelectedIndividuals       database.JSONB[[]string] `db:"selected_individuals" json:"selected_individuals"`
	IsMultipleDuplicates      bool                     `db:"is_multiple_duplicates_version" json:"is_multiple_duplicates_version"`
	Score                     *float64                 `db:"score_min" json:"score_min,omitempty"`

	// DeleteHousehold.
	ReasonHouseholdID *string `db:"reason_household_id" json:"reason_household_id,omitempty"`

	RoleReassignData JSON `db:"role_reassign_data" json:"role_reassign_data,omitempty"`
	IndividualData   JSON `db:"individual_data" json:"individual_data,omitempty"`
	HouseholdData    JSON `db:"household_data" json:"household_data,omitempty"`
	ExtraData        JSON `db:"extra_data" json:"extra_data,omitempty"`
	ApproveStatus    bool `db:"approve_status" json:"approve_status"`
}

// HouseholdRef is the household the ticket is about, if the kind has one.
func (d *TicketDetail) HouseholdRef() *string {
	if !d.Kind.Shape().Household {
		return nil
	}
	return d.HouseholdID
}

// IndividualRef is the individual the ticket is about. SystemFlagging
// points at its golden record.
func (d *TicketDetail) IndividualRef() *string {
	switch {
	case d.Kind == DetailSystemFlagging:
		return d.GoldenRecordsIndividualID
	case d.Kind.Shape().Individual:
		return d.IndividualID
	default:
		return nil
	}
}

func (d *TicketDetail) SetIndividualRef(id *string) {
	if d.Kind == DetailSystemFlagging {
		d.GoldenRecordsIndividualID = id
		return
	}
	d.IndividualID = id
}

// AdjudicationIndividuals returns the golden record followed by the possible duplicates.
func (d *TicketDetail) AdjudicationIndividuals() []string {
	var ids []string
	if d.GoldenRecordsIndividualID != nil {
		ids = append(ids, *d.GoldenRecordsIndividualID)
	}
	for _, id := range d.PossibleDuplicates.Data {
		if id != "" && (d.GoldenRecordsIndividualID == nil || id != *d.GoldenRecordsIndividualID) {
			ids = append(ids, id)
		}
	}
	return ids
}

type TicketNote struct {
	ID          string    `db:"id" json:"id"`
	TicketID    string    `db:"ticket_id" json:"ticket_id"`
	Description string    `db:"description" json:"description"`
	CreatedByID *string   `db:"created_by_id" json:"created_by_id,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	Lineage
}

func (n *TicketNote) GetID() string { return n.ID }

type GrievanceDocument struct {
	ID          string    `db:"id" json:"id"`
	TicketID    string    `db:"ticket_id" json:"ticket_id"`
	Name        string    `db:"name" json:"name"`
	File        string    `db:"file" json:"file"`
	FileSize    int64     `db:"file_size" json:"file_size"`
	ContentType string    `db:"content_type" json:"content_type"`
	CreatedByID *string   `db:"created_by_id" json:"created_by_id,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	Lineage
}

func (d *GrievanceDocument) GetID() string { return d.ID }
