package models

import "time"

type BusinessArea struct {
	ID   string `db:"id" json:"id"`
	Slug string `db:"slug" json:"slug"`
	Name string `db:"name" json:"name"`
}

// Data collecting type codes. Unknown covers RDIs without a recognised type.
const (
	CollectingTypePartial       = "partial_individuals"
	CollectingTypeFull          = "full_collection"
	CollectingTypeSizeOnly      = "size_only"
	CollectingTypeSizeAgeGender = "size_age_gender_disaggregated"
	CollectingTypeUnknown       = "unknown"
)

var CollectingTypeCodes = []string{
	CollectingTypePartial,
	CollectingTypeFull,
	CollectingTypeSizeOnly,
	CollectingTypeSizeAgeGender,
	CollectingTypeUnknown,
}

// NormalizeCollectingType maps anything unrecognised to unknown.
func NormalizeCollectingType(code string) string {
	for _, known := range CollectingTypeCodes {
		if code == known {
			return code
		}
	}
	return CollectingTypeUnknown
}

type DataCollectingType struct {
	ID    string `db:"id" json:"id"`
	Code  string `db:"code" json:"code"`
	Label string `db:"label" json:"label"`
}

type ProgramStatus string

const (
	ProgramStatusDraft    ProgramStatus = "DRAFT"
	ProgramStatusActive   ProgramStatus = "ACTIVE"
	ProgramStatusFinished ProgramStatus = "FINISHED"
)

type ProgramKind string

const (
	ProgramKindRegular ProgramKind = "regular"
	// ProgramKindStorage parks RDIs of one collecting type that no program claims.
	ProgramKindStorage ProgramKind = "storage"
	// ProgramKindVoid parks tickets, feedback and messages tied to no program.
	ProgramKindVoid ProgramKind = "void"
)

type Program struct {
	ID                     string        `db:"id" json:"id"`
	BusinessAreaID         string        `db:"business_area_id" json:"business_area_id"`
	Name                   string        `db:"name" json:"name"`
	Status                 ProgramStatus `db:"status" json:"status"`
	Kind                   ProgramKind   `db:"kind" json:"kind"`
	DataCollectingTypeID   *string       `db:"data_collecting_type_id" json:"data_collecting_type_id,omitempty"`
	DataCollectingTypeCode string        `db:"data_collecting_type_code" json:"data_collecting_type_code"`
	IsVisible              bool          `db:"is_visible" json:"is_visible"`
	StartDate              *time.Time    `db:"start_date" json:"start_date,omitempty"`
	EndDate                *time.Time    `db:"end_date" json:"end_date,omitempty"`
	CreatedAt              time.Time     `db:"created_at" json:"created_at"`
}

func (p *Program) GetID() string { return p.ID }

type RegistrationDataImport struct {
	ID                   string    `db:"id" json:"id"`
	BusinessAreaID       string    `db:"business_area_id" json:"business_area_id"`
	Name                 string    `db:"name" json:"name"`
	Status               string    `db:"status" json:"status"`
	DataCollectingTypeID *string   `db:"data_collecting_type_id" json:"data_collecting_type_id,omitempty"`
	CreatedAt            time.Time `db:"created_at" json:"created_at"`
}

// RDIProgram assigns a registration data import to a program.
type RDIProgram struct {
	ID                       string    `db:"id" json:"id"`
	RegistrationDataImportID string    `db:"registration_data_import_id" json:"registration_data_import_id"`
	ProgramID                string    `db:"program_id" json:"program_id"`
	CreatedAt                time.Time `db:"created_at" json:"created_at"`
}

type TargetPopulation struct {
	ID             string    `db:"id" json:"id"`
	BusinessAreaID string    `db:"business_area_id" json:"business_area_id"`
	ProgramID      *string   `db:"program_id" json:"program_id,omitempty"`
	Name           string    `db:"name" json:"name"`
	Status         string    `db:"status" json:"status"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// HouseholdSelection links a household to a target population.
type HouseholdSelection struct {
	ID                 string `db:"id" json:"id"`
	TargetPopulationID string `db:"target_population_id" json:"target_population_id"`
	HouseholdID        string `db:"household_id" json:"household_id"`
}
