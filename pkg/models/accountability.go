package models

import "time"

type Feedback struct {
	ID                 string    `db:"id" json:"id"`
	UnicefID           string    `db:"unicef_id" json:"unicef_id"`
	BusinessAreaID     string    `db:"business_area_id" json:"business_area_id"`
	IssueType          string    `db:"issue_type" json:"issue_type"`
	HouseholdLookupID  *string   `db:"household_lookup_id" json:"household_lookup_id,omitempty"`
	IndividualLookupID *string   `db:"individual_lookup_id" json:"individual_lookup_id,omitempty"`
	LinkedGrievanceID  *string   `db:"linked_grievance_id" json:"linked_grievance_id,omitempty"`
	Description        string    `db:"description" json:"description"`
	Comments           *string   `db:"comments" json:"comments,omitempty"`
	Area               string    `db:"area" json:"area"`
	Language           string    `db:"language" json:"language"`
	Consent            bool      `db:"consent" json:"consent"`
	CreatedByID        *string   `db:"created_by_id" json:"created_by_id,omitempty"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	Lineage
}

func (f *Feedback) GetID() string { return f.ID }

type FeedbackMessage struct {
	ID          string    `db:"id" json:"id"`
	FeedbackID  string    `db:"feedback_id" json:"feedback_id"`
	Description string    `db:"description" json:"description"`
	CreatedByID *string   `db:"created_by_id" json:"created_by_id,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	Lineage
}

func (m *FeedbackMessage) GetID() string { return m.ID }

type Message struct {
	ID                       string    `db:"id" json:"id"`
	UnicefID                 string    `db:"unicef_id" json:"unicef_id"`
	BusinessAreaID           string    `db:"business_area_id" json:"business_area_id"`
	Title                    string    `db:"title" json:"title"`
	Body                     string    `db:"body" json:"body"`
	TargetPopulationID       *string   `db:"target_population_id" json:"target_population_id,omitempty"`
	RegistrationDataImportID *string   `db:"registration_data_import_id" json:"registration_data_import_id,omitempty"`
	SamplingType             string    `db:"sampling_type" json:"sampling_type"`
	NumberOfRecipients       int       `db:"number_of_recipients" json:"number_of_recipients"`
	CreatedByID              *string   `db:"created_by_id" json:"created_by_id,omitempty"`
	CreatedAt                time.Time `db:"created_at" json:"created_at"`
	Lineage
}

func (m *Message) GetID() string { return m.ID }

// MessageHousehold is one row of the message to household many-to-many.
type MessageHousehold struct {
	ID          string `db:"id" json:"id"`
	MessageID   string `db:"message_id" json:"message_id"`
	HouseholdID string `db:"household_id" json:"household_id"`
}
