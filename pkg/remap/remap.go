// Package remap rewrites the entity ids embedded in grievance ticket JSON
// payloads so they point at the representations of a target program.
package remap

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/unicef/hope-sub007/pkg/globalid"
	"github.com/unicef/hope-sub007/pkg/models"
)

// Resolver finds representations. ids passed to Find* and Resolve* may be
// original or representation ids.
type Resolver interface {
	FindHousehold(ctx context.Context, id *string, programID string) (*models.Household, error)
	FindIndividual(ctx context.Context, id *string, programID string) (*models.Individual, error)
	FindRole(ctx context.Context, householdID, individualID, programID string) (*models.IndividualRoleInHousehold, error)

	ResolveDocument(ctx context.Context, id *string) (*models.Document, error)
	ResolveIdentity(ctx context.Context, id *string) (*models.IndividualIdentity, error)
	ResolveBankAccount(ctx context.Context, id *string) (*models.BankAccountInfo, error)

	FindDocument(ctx context.Context, individualID, number, typeKey, country, programID string) (*models.Document, error)
	FindIdentity(ctx context.Context, individualID, number, partner, country, programID string) (*models.IndividualIdentity, error)
	FindBankAccount(ctx context.Context, individualID, bankName, accountNumber, programID string) (*models.BankAccountInfo, error)
}

type Remapper struct {
	resolver Resolver
	logger   ectologger.Logger
}

func New(resolver Resolver, logger ectologger.Logger) *Remapper {
	return &Remapper{
		resolver: resolver,
		logger:   logger,
	}
}

// ref is an id read from a payload. Encoded ids are written back encoded,
// raw primary keys are written back raw.
type ref struct {
	pk      string
	encoded bool
}

func parseRef(s string) ref {
	if s == "" {
		return ref{}
	}
	if pk, err := globalid.Decode(s); err == nil {
		return ref{pk: pk, encoded: true}
	}
	return ref{pk: s}
}

func (r ref) empty() bool {
	return r.pk == ""
}

// rewrite formats id the same way r was formatted.
func (r ref) rewrite(id, typeName string) string {
	if r.encoded {
		return globalid.Encode(id, typeName)
	}
	return id
}

func (r *Remapper) unchanged(ctx context.Context, field, key, programID, reason string) {
	r.logger.WithContext(ctx).WithFields(map[string]any{
		"field":      field,
		"key":        key,
		"program_id": programID,
	}).Debugf("payload entry left unchanged: %s", reason)
}

func (r *Remapper) malformed(ctx context.Context, field, programID string, err error) {
	r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
		"field":      field,
		"program_id": programID,
	}).Warn("payload is not a JSON object, left unchanged")
}
