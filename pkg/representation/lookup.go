package representation

import (
	"context"

	"github.com/unicef/hope-sub007/pkg/models"
	"github.com/unicef/hope-sub007/pkg/platform/tracing"
	"github.com/unicef/hope-sub007/pkg/store"
)

// resolveOriginal maps an original or representation row to its live original.
// It returns nil when the original is gone or removed.
func resolveOriginal[T any, PT interface {
	*T
	models.Copyable
}](ctx context.Context, repo store.Repository[T], row PT) (PT, error) {
	if row == nil {
		return nil, nil
	}
	lineage := row.GetLineage()
	if !lineage.IsOriginal {
		orig, err := store.GetOptional(ctx, repo, lineage.CopiedFromID)
		if err != nil || orig == nil {
			return nil, err
		}
		row = PT(orig)
		lineage = row.GetLineage()
	}
	if lineage.IsRemoved {
		return nil, nil
	}
	return row, nil
}

func resolveOriginalID[T any, PT interface {
	*T
	models.Copyable
}](ctx context.Context, repo store.Repository[T], id *string) (PT, error) {
	row, err := store.GetOptional(ctx, repo, id)
	if err != nil || row == nil {
		return nil, err
	}
	return resolveOriginal[T, PT](ctx, repo, PT(row))
}

// findRepresentation returns the copy of originalID owned by programID, or nil.
func findRepresentation[T any](ctx context.Context, repo store.Repository[T], originalID, programID string) (*T, error) {
	return repo.First(ctx, store.RepresentationOf(originalID, programID))
}

// ResolveHousehold accepts an original or representation id.
func (s *Service) ResolveHousehold(ctx context.Context, id *string) (*models.Household, error) {
	return resolveOriginalID[models.Household](ctx, s.store.Households(), id)
}

// ResolveIndividual accepts an original or representation id.
func (s *Service) ResolveIndividual(ctx context.Context, id *string) (*models.Individual, error) {
	return resolveOriginalID[models.Individual](ctx, s.store.Individuals(), id)
}

func (s *Service) ResolveDocument(ctx context.Context, id *string) (*models.Document, error) {
	return resolveOriginalID[models.Document](ctx, s.store.Documents(), id)
}

func (s *Service) ResolveIdentity(ctx context.Context, id *string) (*models.IndividualIdentity, error) {
	return resolveOriginalID[models.IndividualIdentity](ctx, s.store.Identities(), id)
}

func (s *Service) ResolveBankAccount(ctx context.Context, id *string) (*models.BankAccountInfo, error) {
	return resolveOriginalID[models.BankAccountInfo](ctx, s.store.BankAccounts(), id)
}

// FindHousehold returns the representation in programID of the household
// identified by id, which may itself be an original or a representation.
func (s *Service) FindHousehold(ctx context.Context, id *string, programID string) (*models.Household, error) {
	ctx, span := tracing.StartSpan(ctx, "representation.Service.FindHousehold")
	defer span.End()

	orig, err := s.ResolveHousehold(ctx, id)
	if err != nil || orig == nil {
		return nil, err
	}
	return findRepresentation(ctx, s.store.Households(), orig.ID, programID)
}

func (s *Service) FindIndividual(ctx context.Context, id *string, programID string) (*models.Individual, error) {
	ctx, span := tracing.StartSpan(ctx, "representation.Service.FindIndividual")
	defer span.End()

	orig, err := s.ResolveIndividual(ctx, id)
	if err != nil || orig == nil {
		return nil, err
	}
	return findRepresentation(ctx, s.store.Individuals(), orig.ID, programID)
}

// FindRole returns the role representation linking a household and an
// individual representation in programID.
func (s *Service) FindRole(ctx context.Context, householdID, individualID, programID string) (*models.IndividualRoleInHousehold, error) {
	return s.store.Roles().First(ctx, store.Where(
		store.Representations(),
		store.InProgram(programID),
		store.Eq("household_id", householdID),
		store.Eq("individual_id", individualID),
	))
}

// FindDocument matches by business key on the individual's representation.
func (s *Service) FindDocument(ctx context.Context, individualID, number, typeKey, country, programID string) (*models.Document, error) {
	return s.store.Documents().First(ctx, store.Where(
		store.Representations(),
		store.InProgram(programID),
		store.Eq("individual_id", individualID),
		store.Eq("document_number", number),
		store.Eq("type_key", typeKey),
		store.Eq("country", country),
	))
}

func (s *Service) FindIdentity(ctx context.Context, individualID, number, partner, country, programID string) (*models.IndividualIdentity, error) {
	return s.store.Identities().First(ctx, store.Where(
		store.Representations(),
		store.InProgram(programID),
		store.Eq("individual_id", individualID),
		store.Eq("number", number),
		store.Eq("partner", partner),
		store.Eq("country", country),
	))
}

func (s *Service) FindBankAccount(ctx context.Context, individualID, bankName, accountNumber, programID string) (*models.BankAccountInfo, error) {
	return s.store.BankAccounts().First(ctx, store.Where(
		store.Representations(),
		store.InProgram(programID),
		store.Eq("individual_id", individualID),
		store.Eq("bank_name", bankName),
		store.Eq("bank_account_number", accountNumber),
	))
}

// HouseholdPrograms lists the programs holding a representation of the
// household, ordered by program creation.
func (s *Service) HouseholdPrograms(ctx context.Context, id *string) ([]*models.Program, error) {
	orig, err := s.ResolveHousehold(ctx, id)
	if err != nil || orig == nil {
		return nil, err
	}
	reps, err := s.store.Households().Find(ctx, store.RepresentationsOf(orig.ID))
	if err != nil {
		return nil, err
	}
	return s.programsOf(ctx, programIDs(reps))
}

func (s *Service) IndividualPrograms(ctx context.Context, id *string) ([]*models.Program, error) {
	orig, err := s.ResolveIndividual(ctx, id)
	if err != nil || orig == nil {
		return nil, err
	}
	reps, err := s.store.Individuals().Find(ctx, store.RepresentationsOf(orig.ID))
	if err != nil {
		return nil, err
	}
	return s.programsOf(ctx, programIDs(reps))
}

func (s *Service) programsOf(ctx context.Context, ids []string) ([]*models.Program, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return s.store.Programs().Find(ctx, store.Where(store.In("id", store.Unique(ids))).OrderBy("created_at", "id"))
}

func programIDs[T any, PT interface {
	*T
	models.Copyable
}](rows []PT) []string {
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		if pid := row.GetLineage().ProgramID; pid != nil {
			ids = append(ids, *pid)
		}
	}
	return ids
}
