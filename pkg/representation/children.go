package representation

import (
	"context"
	"fmt"

	"github.com/unicef/hope-sub007/pkg/models"
	"github.com/unicef/hope-sub007/pkg/store"
)

// GetOrCreateRole copies role into programID when its household already has a
// representation there.
func (s *Service) GetOrCreateRole(ctx context.Context, role *models.IndividualRoleInHousehold, programID string) (*models.IndividualRoleInHousehold, error) {
	if role.IsRemoved {
		return nil, nil
	}
	householdRep, err := findRepresentation(ctx, s.store.Households(), role.HouseholdID, programID)
	if err != nil {
		return nil, err
	}
	if householdRep == nil {
		s.skip(ctx, models.EntityRole, role.ID, programID, "household has no representation")
		return nil, nil
	}
	return s.copyRole(ctx, role, householdRep.ID, programID)
}

// individualRep returns the representation the child row should hang off.
func (s *Service) individualRep(ctx context.Context, entityType, id, individualID, programID string) (*models.Individual, error) {
	rep, err := findRepresentation(ctx, s.store.Individuals(), individualID, programID)
	if err != nil {
		return nil, err
	}
	if rep == nil {
		s.skip(ctx, entityType, id, programID, "individual has no representation")
	}
	return rep, nil
}

func (s *Service) GetOrCreateDocument(ctx context.Context, doc *models.Document, programID string) (*models.Document, error) {
	if doc.IsRemoved {
		return nil, nil
	}
	existing, err := findRepresentation(ctx, s.store.Documents(), doc.ID, programID)
	if err != nil || existing != nil {
		return existing, err
	}
	owner, err := s.individualRep(ctx, models.EntityDocument, doc.ID, doc.IndividualID, programID)
	if err != nil || owner == nil {
		return nil, err
	}

	rep := buildDocument(doc, programID, owner.ID)
	if err := s.store.Documents().Insert(ctx, rep); err != nil {
		return nil, fmt.Errorf("failed to insert document representation of %s: %w", doc.ID, err)
	}
	s.created(ctx, models.EntityDocument, rep.ID, doc.ID, programID)
	return rep, nil
}

func (s *Service) GetOrCreateIdentity(ctx context.Context, identity *models.IndividualIdentity, programID string) (*models.IndividualIdentity, error) {
	if identity.IsRemoved {
		return nil, nil
	}
	existing, err := findRepresentation(ctx, s.store.Identities(), identity.ID, programID)
	if err != nil || existing != nil {
		return existing, err
	}
	owner, err := s.individualRep(ctx, models.EntityIdentity, identity.ID, identity.IndividualID, programID)
	if err != nil || owner == nil {
		return nil, err
	}

	rep := buildIdentity(identity, programID, owner.ID)
	if err := s.store.Identities().Insert(ctx, rep); err != nil {
		return nil, fmt.Errorf("failed to insert identity representation of %s: %w", identity.ID, err)
	}
	s.created(ctx, models.EntityIdentity, rep.ID, identity.ID, programID)
	return rep, nil
}

func (s *Service) GetOrCreateBankAccount(ctx context.Context, account *models.BankAccountInfo, programID string) (*models.BankAccountInfo, error) {
	if account.IsRemoved {
		return nil, nil
	}
	existing, err := findRepresentation(ctx, s.store.BankAccounts(), account.ID, programID)
	if err != nil || existing != nil {
		return existing, err
	}
	owner, err := s.individualRep(ctx, models.EntityBankAccount, account.ID, account.IndividualID, programID)
	if err != nil || owner == nil {
		return nil, err
	}

	rep := buildBankAccount(account, programID, owner.ID)
	if err := s.store.BankAccounts().Insert(ctx, rep); err != nil {
		return nil, fmt.Errorf("failed to insert bank account representation of %s: %w", account.ID, err)
	}
	s.created(ctx, models.EntityBankAccount, rep.ID, account.ID, programID)
	return rep, nil
}

// RepresentedPrograms lists the program ids holding a representation of originalID.
func RepresentedPrograms[T any, PT interface {
	*T
	models.Copyable
}](ctx context.Context, repo store.Repository[T], originalID string) ([]string, error) {
	reps, err := repo.Find(ctx, store.RepresentationsOf(originalID))
	if err != nil {
		return nil, err
	}
	out := make([]PT, len(reps))
	for i, rep := range reps {
		out[i] = PT(rep)
	}
	return store.Unique(programIDs[T, PT](out)), nil
}
