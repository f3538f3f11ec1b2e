package models

import "time"

// Payment object content types referenced by grievance details.
const (
	PaymentObjectPayment       = "payment"
	PaymentObjectPaymentRecord = "payment_record"
)

type PaymentPlan struct {
	ID                 string    `db:"id" json:"id"`
	BusinessAreaID     string    `db:"business_area_id" json:"business_area_id"`
	TargetPopulationID *string   `db:"target_population_id" json:"target_population_id,omitempty"`
	Status             string    `db:"status" json:"status"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
}

type Payment struct {
	ID          string    `db:"id" json:"id"`
	UnicefID    string    `db:"unicef_id" json:"unicef_id"`
	ParentID    string    `db:"parent_id" json:"parent_id"`
	HouseholdID *string   `db:"household_id" json:"household_id,omitempty"`
	Status      string    `db:"status" json:"status"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

type PaymentRecord struct {
	ID                 string    `db:"id" json:"id"`
	CaID               string    `db:"ca_id" json:"ca_id"`
	TargetPopulationID *string   `db:"target_population_id" json:"target_population_id,omitempty"`
	HouseholdID        *string   `db:"household_id" json:"household_id,omitempty"`
	Status             string    `db:"status" json:"status"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
}

// PaymentVerification verifies one payment or payment record.
type PaymentVerification struct {
	ID                string    `db:"id" json:"id"`
	PaymentObjectType string    `db:"payment_object_type" json:"payment_object_type"`
	PaymentObjectID   string    `db:"payment_object_id" json:"payment_object_id"`
	Status            string    `db:"status" json:"status"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}
