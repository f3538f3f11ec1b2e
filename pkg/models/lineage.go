package models

import (
	"time"

	"github.com/unicef/hope-sub007/pkg/platform/database"
)

// JSON is a jsonb column whose bytes round-trip unchanged.
type JSON = database.RawJSON

// Scope tells whether a row is the canonical original or a program copy.
type Scope int

const (
	ScopeOriginal Scope = iota
	ScopeRepresentation
)

func (s Scope) String() string {
	if s == ScopeRepresentation {
		return "representation"
	}
	return "original"
}

// Entity type names, also used as the global id type prefix.
const (
	EntityHousehold         = "Household"
	EntityIndividual        = "Individual"
	EntityRole              = "IndividualRoleInHousehold"
	EntityDocument          = "Document"
	EntityIdentity          = "IndividualIdentity"
	EntityBankAccount       = "BankAccountInfo"
	EntityGrievanceTicket   = "GrievanceTicket"
	EntityTicketNote        = "TicketNote"
	EntityGrievanceDocument = "GrievanceDocument"
	EntityFeedback          = "Feedback"
	EntityFeedbackMessage   = "FeedbackMessage"
	EntityMessage           = "Message"
	EntityProgram           = "Program"
)

// Lineage is carried by every entity that can be copied into a program.
type Lineage struct {
	IsOriginal         bool       `db:"is_original" json:"is_original"`
	CopiedFromID       *string    `db:"copied_from_id" json:"copied_from_id,omitempty"`
	OriginUnicefID     *string    `db:"origin_unicef_id" json:"origin_unicef_id,omitempty"`
	ProgramID          *string    `db:"program_id" json:"program_id,omitempty"`
	IsMigrationHandled bool       `db:"is_migration_handled" json:"is_migration_handled"`
	MigratedAt         *time.Time `db:"migrated_at" json:"migrated_at,omitempty"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
	IsRemoved          bool       `db:"is_removed" json:"is_removed"`
}

// Copyable is implemented by pointers to every model embedding Lineage.
type Copyable interface {
	GetID() string
	GetLineage() *Lineage
}

func (l *Lineage) GetLineage() *Lineage {
	return l
}

func (l *Lineage) Scope() Scope {
	if l.IsOriginal {
		return ScopeOriginal
	}
	return ScopeRepresentation
}

// InProgram reports whether the row is owned by programID.
func (l *Lineage) InProgram(programID string) bool {
	return l.ProgramID != nil && *l.ProgramID == programID
}

// RepresentationOf builds the lineage of a new copy of original in programID.
// The watermark is the original's updated_at at copy time.
func RepresentationOf(original *Lineage, originalID, originUnicefID, programID string) Lineage {
	watermark := original.UpdatedAt
	lineage := Lineage{
		IsOriginal:         false,
		CopiedFromID:       StringPtr(originalID),
		ProgramID:          StringPtr(programID),
		IsMigrationHandled: true,
		MigratedAt:         &watermark,
		UpdatedAt:          time.Now().UTC(),
	}
	if originUnicefID != "" {
		lineage.OriginUnicefID = StringPtr(originUnicefID)
	}
	return lineage
}

// Drifted reports whether the original changed after the representation was last synced.
func Drifted(original, representation *Lineage) bool {
	if representation.MigratedAt == nil {
		return true
	}
	return original.UpdatedAt.After(*representation.MigratedAt)
}

// MarkSynced records the original's watermark on the representation.
func MarkSynced(original, representation *Lineage) {
	watermark := original.UpdatedAt
	representation.MigratedAt = &watermark
	representation.UpdatedAt = time.Now().UTC()
}

func StringPtr(s string) *string {
	return &s
}

func StringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// SameString compares two optional strings.
func SameString(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
