package syncer

import (
	"context"
	"fmt"

	"github.com/unicef/hope-sub007/pkg/models"
	"github.com/unicef/hope-sub007/pkg/report"
	"github.com/unicef/hope-sub007/pkg/representation"
	"github.com/unicef/hope-sub007/pkg/store"
)

type (
	householdSync  = entity[models.Household, *models.Household]
	individualSync = entity[models.Individual, *models.Individual]
)

func (s *Syncer) householdEntity(businessAreaID string) *householdSync {
	return &householdSync{
		name:    models.EntityHousehold,
		repo:    s.store.Households(),
		scope:   inArea(s.store.Households(), businessAreaID),
		handled: true,
		create: func(ctx context.Context, originals []*models.Household) error {
			return s.migrator.MigrateHouseholds(ctx, businessAreaID, originals)
		},
		remove:  s.removeHousehold,
		refresh: s.refreshHousehold,
	}
}

// removeHousehold deletes a household representation with its roles. Member
// representations stay and lose their household.
func (s *Syncer) removeHousehold(ctx context.Context, rep *models.Household) error {
	if err := deleteRows[models.IndividualRoleInHousehold](ctx, s.store.Roles(), models.EntityRole,
		store.Where(store.Eq("household_id", rep.ID))); err != nil {
		return err
	}

	members, err := s.store.Individuals().Find(ctx, store.Where(store.Eq("household_id", rep.ID)))
	if err != nil {
		return err
	}
	for _, member := range members {
		member.HouseholdID = nil
		if err := s.store.Individuals().Update(ctx, member); err != nil {
			return fmt.Errorf("failed to detach individual %s: %w", member.ID, err)
		}
		report.From(ctx).Updated(models.EntityIndividual, member.ID, models.StringValue(member.CopiedFromID), models.StringValue(member.ProgramID))
	}

	return deleteRows[models.Household](ctx, s.store.Households(), models.EntityHousehold, store.Where(store.Eq("id", rep.ID)))
}

// refreshHousehold also points the representation at the current head,
// copying the head into the program when it has no representation there yet.
func (s *Syncer) refreshHousehold(ctx context.Context, orig, rep *models.Household) error {
	representation.ApplyHousehold(orig, rep)
	head, err := store.GetOptional(ctx, s.store.Individuals(), orig.HeadOfHouseholdID)
	if err != nil {
		return fmt.Errorf("failed to load head of household %s: %w", orig.ID, err)
	}
	if head == nil || head.IsRemoved {
		return nil
	}
	headRep, err := s.reps.GetOrCreateIndividual(ctx, head, models.StringValue(rep.ProgramID))
	if err != nil {
		return err
	}
	if headRep != nil {
		rep.HeadOfHouseholdID = &headRep.ID
	}
	return nil
}

func (s *Syncer) individualEntity(businessAreaID string) *individualSync {
	return &individualSync{
		name:  models.EntityIndividual,
		repo:  s.store.Individuals(),
		scope: inArea(s.store.Individuals(), businessAreaID),
		create: func(ctx context.Context, originals []*models.Individual) error {
			return inBatches(ctx, s, originals, s.createIndividual)
		},
		remove:  s.removeIndividual,
		refresh: s.refreshIndividual,
	}
}

// createIndividual copies a new member into every program holding its household.
func (s *Syncer) createIndividual(ctx context.Context, orig *models.Individual) error {
	if orig.HouseholdID == nil {
		// Individuals outside any household are collectors only; the role
		// phase copies them with the role that references them.
		return nil
	}
	programs, err := representation.RepresentedPrograms[models.Household](ctx, s.store.Households(), *orig.HouseholdID)
	if err != nil {
		return err
	}
	for _, programID := range programs {
		if _, err := s.reps.GetOrCreateIndividual(ctx, orig, programID); err != nil {
			return err
		}
	}
	return nil
}

// removeIndividual deletes an individual representation with its roles,
// documents, identities and bank accounts. Households it headed lose their head.
func (s *Syncer) removeIndividual(ctx context.Context, rep *models.Individual) error {
	owned := store.Where(store.Eq("individual_id", rep.ID))
	if err := deleteRows[models.IndividualRoleInHousehold](ctx, s.store.Roles(), models.EntityRole, owned); err != nil {
		return err
	}
	if err := deleteRows[models.Document](ctx, s.store.Documents(), models.EntityDocument, owned); err != nil {
		return err
	}
	if err := deleteRows[models.IndividualIdentity](ctx, s.store.Identities(), models.EntityIdentity, owned); err != nil {
		return err
	}
	if err := deleteRows[models.BankAccountInfo](ctx, s.store.BankAccounts(), models.EntityBankAccount, owned); err != nil {
		return err
	}

	headed, err := s.store.Households().Find(ctx, store.Where(store.Eq("head_of_household_id", rep.ID)))
	if err != nil {
		return err
	}
	for _, hh := range headed {
		hh.HeadOfHouseholdID = nil
		if err := s.store.Households().Update(ctx, hh); err != nil {
			return fmt.Errorf("failed to clear head of household %s: %w", hh.ID, err)
		}
		report.From(ctx).Updated(models.EntityHousehold, hh.ID, models.StringValue(hh.CopiedFromID), models.StringValue(hh.ProgramID))
	}

	return deleteRows[models.Individual](ctx, s.store.Individuals(), models.EntityIndividual, store.Where(store.Eq("id", rep.ID)))
}

// refreshIndividual also follows the original to its current household.
func (s *Syncer) refreshIndividual(ctx context.Context, orig, rep *models.Individual) error {
	representation.ApplyIndividual(orig, rep)
	household, err := s.reps.FindHousehold(ctx, orig.HouseholdID, models.StringValue(rep.ProgramID))
	if err != nil {
		return err
	}
	rep.HouseholdID = nil
	if household != nil {
		rep.HouseholdID = &household.ID
	}
	return nil
}

func (s *Syncer) roleEntity(households *householdSync) step {
	return &entity[models.IndividualRoleInHousehold, *models.IndividualRoleInHousehold]{
		name:  models.EntityRole,
		repo:  s.store.Roles(),
		scope: underParent(s.store.Roles(), "household_id", households.scope),
		create: func(ctx context.Context, originals []*models.IndividualRoleInHousehold) error {
			return inBatches(ctx, s, originals, func(ctx context.Context, role *models.IndividualRoleInHousehold) error {
				programs, err := representation.RepresentedPrograms[models.Household](ctx, s.store.Households(), role.HouseholdID)
				if err != nil {
					return err
				}
				for _, programID := range programs {
					if _, err := s.reps.GetOrCreateRole(ctx, role, programID); err != nil {
						return err
					}
				}
				return nil
			})
		},
		remove: func(ctx context.Context, rep *models.IndividualRoleInHousehold) error {
			return deleteRows[models.IndividualRoleInHousehold](ctx, s.store.Roles(), models.EntityRole, store.Where(store.Eq("id", rep.ID)))
		},
		refresh: func(ctx context.Context, orig, rep *models.IndividualRoleInHousehold) error {
			representation.ApplyRole(orig, rep)
			programID := models.StringValue(rep.ProgramID)
			holder, err := s.reps.FindIndividual(ctx, &orig.IndividualID, programID)
			if err != nil {
				return err
			}
			if holder != nil {
				rep.IndividualID = holder.ID
			}
			household, err := s.reps.FindHousehold(ctx, &orig.HouseholdID, programID)
			if err != nil {
				return err
			}
			if household != nil {
				rep.HouseholdID = household.ID
			}
			return nil
		},
	}
}

// individualChild builds the entity of a row owned by an individual.
func individualChild[T any, PT copyable[T]](
	s *Syncer,
	name string,
	repo store.Repository[T],
	individuals *individualSync,
	owner func(PT) string,
	getOrCreate func(context.Context, PT, string) (PT, error),
	apply func(orig, rep PT),
) step {
	return &entity[T, PT]{
		name:  name,
		repo:  repo,
		scope: underParent(repo, "individual_id", individuals.scope),
		create: func(ctx context.Context, originals []*T) error {
			return inBatches(ctx, s, originals, func(ctx context.Context, row *T) error {
				programs, err := representation.RepresentedPrograms[models.Individual](ctx, s.store.Individuals(), owner(PT(row)))
				if err != nil {
					return err
				}
				for _, programID := range programs {
					if _, err := getOrCreate(ctx, PT(row), programID); err != nil {
						return err
					}
				}
				return nil
			})
		},
		remove: func(ctx context.Context, rep PT) error {
			return deleteRows[T, PT](ctx, repo, name, store.Where(store.Eq("id", rep.GetID())))
		},
		refresh: func(_ context.Context, orig, rep PT) error {
			apply(orig, rep)
			return nil
		},
	}
}

func (s *Syncer) documentEntity(individuals *individualSync) step {
	return individualChild(s, models.EntityDocument, s.store.Documents(), individuals,
		func(d *models.Document) string { return d.IndividualID },
		s.reps.GetOrCreateDocument,
		representation.ApplyDocument,
	)
}

func (s *Syncer) identityEntity(individuals *individualSync) step {
	return individualChild(s, models.EntityIdentity, s.store.Identities(), individuals,
		func(i *models.IndividualIdentity) string { return i.IndividualID },
		s.reps.GetOrCreateIdentity,
		representation.ApplyIdentity,
	)
}

func (s *Syncer) bankAccountEntity(individuals *individualSync) step {
	return individualChild(s, models.EntityBankAccount, s.store.BankAccounts(), individuals,
		func(b *models.BankAccountInfo) string { return b.IndividualID },
		s.reps.GetOrCreateBankAccount,
		representation.ApplyBankAccount,
	)
}
