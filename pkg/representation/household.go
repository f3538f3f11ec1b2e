package representation

import (
	"context"
	"fmt"

	"github.com/unicef/hope-sub007/pkg/models"
	"github.com/unicef/hope-sub007/pkg/platform/tracing"
	"github.com/unicef/hope-sub007/pkg/store"
)

// GetOrCreateHousehold returns the representation of household in programID,
// copying the household, its members, head and roles when none exists. It
// returns nil without error when the household cannot be copied.
func (s *Service) GetOrCreateHousehold(ctx context.Context, household *models.Household, programID string) (*models.Household, error) {
	ctx, span := tracing.StartSpan(ctx, "representation.Service.GetOrCreateHousehold")
	defer span.End()

	orig, err := resolveOriginal(ctx, s.store.Households(), household)
	if err != nil || orig == nil {
		return nil, err
	}
	existing, err := findRepresentation(ctx, s.store.Households(), orig.ID, programID)
	if err != nil || existing != nil {
		return existing, err
	}
	return s.copyHousehold(ctx, orig, programID)
}

func (s *Service) copyHousehold(ctx context.Context, orig *models.Household, programID string) (*models.Household, error) {
	head, err := store.GetOptional(ctx, s.store.Individuals(), orig.HeadOfHouseholdID)
	if err != nil {
		return nil, fmt.Errorf("failed to load head of household %s: %w", orig.ID, err)
	}
	if head == nil || head.IsRemoved {
		s.skip(ctx, models.EntityHousehold, orig.ID, programID, "head of household missing or removed")
		return nil, nil
	}

	rep := buildHousehold(orig, programID)
	if err := s.store.Households().Insert(ctx, rep); err != nil {
		return nil, fmt.Errorf("failed to insert household representation of %s: %w", orig.ID, err)
	}
	s.created(ctx, models.EntityHousehold, rep.ID, orig.ID, programID)

	members, err := s.store.Individuals().Find(ctx, store.Where(
		store.Originals(),
		store.Eq("household_id", orig.ID),
		store.NotRemoved(),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to load members of %s: %w", orig.ID, err)
	}
	for _, member := range members {
		if _, err := s.attachMember(ctx, member, rep.ID, programID); err != nil {
			return nil, err
		}
	}

	headRep, err := s.getOrCreateCollector(ctx, head, programID)
	if err != nil {
		return nil, err
	}
	if headRep != nil {
		rep.HeadOfHouseholdID = &headRep.ID
		if err := s.store.Households().Update(ctx, rep); err != nil {
			return nil, fmt.Errorf("failed to set head of household %s: %w", rep.ID, err)
		}
	}

	if err := s.copyRoles(ctx, orig, rep, programID); err != nil {
		return nil, err
	}
	return rep, nil
}

// attachMember ensures member has a representation living in householdID.
func (s *Service) attachMember(ctx context.Context, member *models.Individual, householdID, programID string) (*models.Individual, error) {
	existing, err := findRepresentation(ctx, s.store.Individuals(), member.ID, programID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return s.copyIndividual(ctx, member, programID, &householdID)
	}
	if existing.HouseholdID == nil {
		// copied earlier as an external collector
		existing.HouseholdID = &householdID
		if err := s.store.Individuals().Update(ctx, existing); err != nil {
			return nil, fmt.Errorf("failed to attach individual %s to household %s: %w", existing.ID, householdID, err)
		}
		s.updated(ctx, models.EntityIndividual, existing.ID, member.ID, programID)
	}
	return existing, nil
}

func (s *Service) copyRoles(ctx context.Context, orig, rep *models.Household, programID string) error {
	roles, err := s.store.Roles().Find(ctx, store.Where(
		store.Originals(),
		store.Eq("household_id", orig.ID),
		store.NotRemoved(),
	))
	if err != nil {
		return fmt.Errorf("failed to load roles of %s: %w", orig.ID, err)
	}
	for _, role := range roles {
		if _, err := s.copyRole(ctx, role, rep.ID, programID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) copyRole(ctx context.Context, role *models.IndividualRoleInHousehold, householdID, programID string) (*models.IndividualRoleInHousehold, error) {
	existing, err := findRepresentation(ctx, s.store.Roles(), role.ID, programID)
	if err != nil || existing != nil {
		return existing, err
	}

	holder, err := s.store.Individuals().Get(ctx, role.IndividualID)
	if store.IsNotFound(err) {
		s.skip(ctx, models.EntityRole, role.ID, programID, "role holder missing")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	holderRep, err := s.getOrCreateCollector(ctx, holder, programID)
	if err != nil {
		return nil, err
	}
	if holderRep == nil {
		s.skip(ctx, models.EntityRole, role.ID, programID, "role holder has no representation")
		return nil, nil
	}

	rep := buildRole(role, programID, householdID, holderRep.ID)
	if err := s.store.Roles().Insert(ctx, rep); err != nil {
		return nil, fmt.Errorf("failed to insert role representation of %s: %w", role.ID, err)
	}
	s.created(ctx, models.EntityRole, rep.ID, role.ID, programID)
	return rep, nil
}

// getOrCreateCollector copies an individual without copying its household.
// The copy lives in the program's representation of its own household when
// that exists, otherwise it has no household.
func (s *Service) getOrCreateCollector(ctx context.Context, individual *models.Individual, programID string) (*models.Individual, error) {
	orig, err := resolveOriginal(ctx, s.store.Individuals(), individual)
	if err != nil || orig == nil {
		return nil, err
	}
	existing, err := findRepresentation(ctx, s.store.Individuals(), orig.ID, programID)
	if err != nil || existing != nil {
		return existing, err
	}

	var householdID *string
	if orig.HouseholdID != nil {
		householdRep, err := findRepresentation(ctx, s.store.Households(), *orig.HouseholdID, programID)
		if err != nil {
			return nil, err
		}
		if householdRep != nil {
			householdID = &householdRep.ID
		}
	}
	return s.copyIndividual(ctx, orig, programID, householdID)
}

// GetOrCreateIndividual returns the representation of individual in
// programID. Members are copied through their household so the household
// members stay consistent.
func (s *Service) GetOrCreateIndividual(ctx context.Context, individual *models.Individual, programID string) (*models.Individual, error) {
	ctx, span := tracing.StartSpan(ctx, "representation.Service.GetOrCreateIndividual")
	defer span.End()

	orig, err := resolveOriginal(ctx, s.store.Individuals(), individual)
	if err != nil || orig == nil {
		return nil, err
	}
	existing, err := findRepresentation(ctx, s.store.Individuals(), orig.ID, programID)
	if err != nil || existing != nil {
		return existing, err
	}

	if orig.HouseholdID != nil {
		household, err := store.GetOptional(ctx, s.store.Households(), orig.HouseholdID)
		if err != nil {
			return nil, err
		}
		if household != nil && !household.IsRemoved {
			if _, err := s.GetOrCreateHousehold(ctx, household, programID); err != nil {
				return nil, err
			}
			existing, err := findRepresentation(ctx, s.store.Individuals(), orig.ID, programID)
			if err != nil || existing != nil {
				return existing, err
			}
		}
	}
	return s.getOrCreateCollector(ctx, orig, programID)
}

func (s *Service) copyIndividual(ctx context.Context, orig *models.Individual, programID string, householdID *string) (*models.Individual, error) {
	rep := buildIndividual(orig, programID, householdID)
	if err := s.store.Individuals().Insert(ctx, rep); err != nil {
		return nil, fmt.Errorf("failed to insert individual representation of %s: %w", orig.ID, err)
	}
	s.created(ctx, models.EntityIndividual, rep.ID, orig.ID, programID)

	if err := s.copyIndividualChildren(ctx, orig, rep, programID); err != nil {
		return nil, err
	}
	return rep, nil
}

func (s *Service) copyIndividualChildren(ctx context.Context, orig, rep *models.Individual, programID string) error {
	owned := store.Where(store.Originals(), store.Eq("individual_id", orig.ID), store.NotRemoved())

	documents, err := s.store.Documents().Find(ctx, owned)
	if err != nil {
		return err
	}
	for _, doc := range documents {
		copied := buildDocument(doc, programID, rep.ID)
		if err := s.store.Documents().Insert(ctx, copied); err != nil {
			return fmt.Errorf("failed to insert document representation of %s: %w", doc.ID, err)
		}
		s.created(ctx, models.EntityDocument, copied.ID, doc.ID, programID)
	}

	identities, err := s.store.Identities().Find(ctx, owned)
	if err != nil {
		return err
	}
	for _, identity := range identities {
		copied := buildIdentity(identity, programID, rep.ID)
		if err := s.store.Identities().Insert(ctx, copied); err != nil {
			return fmt.Errorf("failed to insert identity representation of %s: %w", identity.ID, err)
		}
		s.created(ctx, models.EntityIdentity, copied.ID, identity.ID, programID)
	}

	accounts, err := s.store.BankAccounts().Find(ctx, owned)
	if err != nil {
		return err
	}
	for _, account := range accounts {
		copied := buildBankAccount(account, programID, rep.ID)
		if err := s.store.BankAccounts().Insert(ctx, copied); err != nil {
			return fmt.Errorf("failed to insert bank account representation of %s: %w", account.ID, err)
		}
		s.created(ctx, models.EntityBankAccount, copied.ID, account.ID, programID)
	}
	return nil
}
