package representation

import (
	"context"
	"fmt"

	"github.com/unicef/hope-sub007/pkg/models"
	"github.com/unicef/hope-sub007/pkg/platform/tracing"
	"github.com/unicef/hope-sub007/pkg/store"
)

const lookupChunkSize = 500

func findIn[T any](ctx context.Context, repo store.Repository[T], column string, ids []string, conditions ...store.Condition) ([]*T, error) {
	var out []*T
	for _, chunk := range store.Chunk(store.Unique(ids), lookupChunkSize) {
		rows, err := repo.Find(ctx, store.Where(store.In(column, chunk)).And(conditions...))
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	return out, nil
}

// representationsByOriginal indexes the program's copies of ids by original id.
func representationsByOriginal[T any, PT interface {
	*T
	models.Copyable
}](ctx context.Context, repo store.Repository[T], ids []string, programID string) (map[string]PT, error) {
	rows, err := findIn(ctx, repo, "copied_from_id", ids, store.Representations(), store.InProgram(programID))
	if err != nil {
		return nil, err
	}
	out := make(map[string]PT, len(rows))
	for _, row := range rows {
		out[models.StringValue(PT(row).GetLineage().CopiedFromID)] = PT(row)
	}
	return out, nil
}

// householdBatch accumulates the rows one CopyHouseholdsFast call writes.
type householdBatch struct {
	programID  string
	households []*models.Household
	created    []*models.Individual
	attached   []*models.Individual
	roles      []*models.IndividualRoleInHousehold
	documents  []*models.Document
	identities []*models.IndividualIdentity
	accounts   []*models.BankAccountInfo

	// original individual id to its representation, existing or new
	individuals map[string]*models.Individual
}

// CopyHouseholdsFast copies original households into programID with bulk
// reads and bulk inserts. It produces the same rows as GetOrCreateHousehold
// for each household and returns every representation, existing or new.
func (s *Service) CopyHouseholdsFast(ctx context.Context, households []*models.Household, programID string) ([]*models.Household, error) {
	ctx, span := tracing.StartSpan(ctx, "representation.Service.CopyHouseholdsFast")
	defer span.End()

	var originals []*models.Household
	for _, hh := range households {
		if hh.IsOriginal && !hh.IsRemoved {
			originals = append(originals, hh)
		}
	}
	if len(originals) == 0 {
		return nil, nil
	}

	ids := make([]string, len(originals))
	for i, hh := range originals {
		ids[i] = hh.ID
	}
	existing, err := representationsByOriginal[models.Household](ctx, s.store.Households(), ids, programID)
	if err != nil {
		return nil, fmt.Errorf("failed to preload household representations: %w", err)
	}

	var pending []*models.Household
	var result []*models.Household
	for _, hh := range originals {
		if rep, ok := existing[hh.ID]; ok {
			result = append(result, rep)
			continue
		}
		pending = append(pending, hh)
	}
	if len(pending) == 0 {
		return result, nil
	}

	batch, err := s.planHouseholds(ctx, pending, programID)
	if err != nil {
		return nil, err
	}
	if err := s.writeBatch(ctx, batch); err != nil {
		return nil, err
	}
	return append(result, batch.households...), nil
}

func (s *Service) planHouseholds(ctx context.Context, pending []*models.Household, programID string) (*householdBatch, error) {
	pendingIDs := make([]string, 0, len(pending))
	var headIDs []string
	for _, hh := range pending {
		pendingIDs = append(pendingIDs, hh.ID)
		headIDs = append(headIDs, models.StringValue(hh.HeadOfHouseholdID))
	}

	members, err := findIn(ctx, s.store.Individuals(), "household_id", pendingIDs, store.Originals(), store.NotRemoved())
	if err != nil {
		return nil, fmt.Errorf("failed to preload members: %w", err)
	}
	membersByHousehold := map[string][]*models.Individual{}
	for _, m := range members {
		key := models.StringValue(m.HouseholdID)
		membersByHousehold[key] = append(membersByHousehold[key], m)
	}

	roles, err := findIn(ctx, s.store.Roles(), "household_id", pendingIDs, store.Originals(), store.NotRemoved())
	if err != nil {
		return nil, fmt.Errorf("failed to preload roles: %w", err)
	}
	rolesByHousehold := map[string][]*models.IndividualRoleInHousehold{}
	var holderIDs, roleIDs []string
	for _, r := range roles {
		rolesByHousehold[r.HouseholdID] = append(rolesByHousehold[r.HouseholdID], r)
		holderIDs = append(holderIDs, r.IndividualID)
		roleIDs = append(roleIDs, r.ID)
	}

	people, err := store.FindByIDs(ctx, s.store.Individuals(), append(headIDs, holderIDs...), func(i *models.Individual) string { return i.ID })
	if err != nil {
		return nil, fmt.Errorf("failed to preload heads and collectors: %w", err)
	}
	for _, m := range members {
		people[m.ID] = m
	}
	peopleIDs := make([]string, 0, len(people))
	for id := range people {
		peopleIDs = append(peopleIDs, id)
	}

	individualReps, err := representationsByOriginal[models.Individual](ctx, s.store.Individuals(), peopleIDs, programID)
	if err != nil {
		return nil, fmt.Errorf("failed to preload individual representations: %w", err)
	}
	roleReps, err := representationsByOriginal[models.IndividualRoleInHousehold](ctx, s.store.Roles(), roleIDs, programID)
	if err != nil {
		return nil, fmt.Errorf("failed to preload role representations: %w", err)
	}

	batch := &householdBatch{programID: programID, individuals: map[string]*models.Individual{}}
	for id, rep := range individualReps {
		batch.individuals[id] = rep
	}

	// Households of collectors outside this batch that already exist in the program.
	var outsideHouseholdIDs []string
	for _, person := range people {
		if person.HouseholdID != nil {
			outsideHouseholdIDs = append(outsideHouseholdIDs, *person.HouseholdID)
		}
	}
	householdReps, err := representationsByOriginal[models.Household](ctx, s.store.Households(), outsideHouseholdIDs, programID)
	if err != nil {
		return nil, fmt.Errorf("failed to preload collector households: %w", err)
	}

	var accepted []*models.Household
	for _, hh := range pending {
		head := people[models.StringValue(hh.HeadOfHouseholdID)]
		if head == nil || head.IsRemoved {
			s.skip(ctx, models.EntityHousehold, hh.ID, programID, "head of household missing or removed")
			continue
		}
		rep := buildHousehold(hh, programID)
		householdReps[hh.ID] = rep
		batch.households = append(batch.households, rep)
		accepted = append(accepted, hh)
	}

	// Members first so collectors of a household in this batch find their home.
	for _, hh := range accepted {
		rep := householdReps[hh.ID]
		for _, member := range membersByHousehold[hh.ID] {
			existing, ok := batch.individuals[member.ID]
			switch {
			case !ok:
				batch.individuals[member.ID] = buildIndividual(member, programID, &rep.ID)
				batch.created = append(batch.created, batch.individuals[member.ID])
			case existing.HouseholdID == nil:
				existing.HouseholdID = &rep.ID
				batch.attached = append(batch.attached, existing)
			}
		}
	}

	collector := func(person *models.Individual) *models.Individual {
		if person == nil || person.IsRemoved || !person.IsOriginal {
			return nil
		}
		if rep, ok := batch.individuals[person.ID]; ok {
			return rep
		}
		var householdID *string
		if person.HouseholdID != nil {
			if home, ok := householdReps[*person.HouseholdID]; ok {
				householdID = &home.ID
			}
		}
		rep := buildIndividual(person, programID, householdID)
		batch.individuals[person.ID] = rep
		batch.created = append(batch.created, rep)
		return rep
	}

	for _, hh := range accepted {
		rep := householdReps[hh.ID]
		if headRep := collector(people[*hh.HeadOfHouseholdID]); headRep != nil {
			rep.HeadOfHouseholdID = &headRep.ID
		}
		for _, role := range rolesByHousehold[hh.ID] {
			if _, ok := roleReps[role.ID]; ok {
				continue
			}
			holder := collector(people[role.IndividualID])
			if holder == nil {
				s.skip(ctx, models.EntityRole, role.ID, programID, "role holder has no representation")
				continue
			}
			batch.roles = append(batch.roles, buildRole(role, programID, rep.ID, holder.ID))
		}
	}

	if err := s.planChildren(ctx, batch); err != nil {
		return nil, err
	}
	return batch, nil
}

func (s *Service) planChildren(ctx context.Context, batch *householdBatch) error {
	if len(batch.created) == 0 {
		return nil
	}
	owners := map[string]string{}
	originalIDs := make([]string, 0, len(batch.created))
	for _, rep := range batch.created {
		origID := models.StringValue(rep.CopiedFromID)
		owners[origID] = rep.ID
		originalIDs = append(originalIDs, origID)
	}

	documents, err := findIn(ctx, s.store.Documents(), "individual_id", originalIDs, store.Originals(), store.NotRemoved())
	if err != nil {
		return fmt.Errorf("failed to preload documents: %w", err)
	}
	for _, doc := range documents {
		batch.documents = append(batch.documents, buildDocument(doc, batch.programID, owners[doc.IndividualID]))
	}

	identities, err := findIn(ctx, s.store.Identities(), "individual_id", originalIDs, store.Originals(), store.NotRemoved())
	if err != nil {
		return fmt.Errorf("failed to preload identities: %w", err)
	}
	for _, identity := range identities {
		batch.identities = append(batch.identities, buildIdentity(identity, batch.programID, owners[identity.IndividualID]))
	}

	accounts, err := findIn(ctx, s.store.BankAccounts(), "individual_id", originalIDs, store.Originals(), store.NotRemoved())
	if err != nil {
		return fmt.Errorf("failed to preload bank accounts: %w", err)
	}
	for _, account := range accounts {
		batch.accounts = append(batch.accounts, buildBankAccount(account, batch.programID, owners[account.IndividualID]))
	}
	return nil
}

// writeBatch inserts in dependency order; household and head reference each
// other so the Postgres constraints are deferred to commit.
func (s *Service) writeBatch(ctx context.Context, batch *householdBatch) error {
	if err := s.store.Households().Insert(ctx, batch.households...); err != nil {
		return fmt.Errorf("failed to bulk insert households: %w", err)
	}
	if err := s.store.Individuals().Insert(ctx, batch.created...); err != nil {
		return fmt.Errorf("failed to bulk insert individuals: %w", err)
	}
	if err := s.store.Individuals().Update(ctx, batch.attached...); err != nil {
		return fmt.Errorf("failed to attach collectors: %w", err)
	}
	if err := s.store.Documents().Insert(ctx, batch.documents...); err != nil {
		return fmt.Errorf("failed to bulk insert documents: %w", err)
	}
	if err := s.store.Identities().Insert(ctx, batch.identities...); err != nil {
		return fmt.Errorf("failed to bulk insert identities: %w", err)
	}
	if err := s.store.BankAccounts().Insert(ctx, batch.accounts...); err != nil {
		return fmt.Errorf("failed to bulk insert bank accounts: %w", err)
	}
	if err := s.store.Roles().Insert(ctx, batch.roles...); err != nil {
		return fmt.Errorf("failed to bulk insert roles: %w", err)
	}

	p := batch.programID
	for _, r := range batch.households {
		s.created(ctx, models.EntityHousehold, r.ID, models.StringValue(r.CopiedFromID), p)
	}
	for _, r := range batch.created {
		s.created(ctx, models.EntityIndividual, r.ID, models.StringValue(r.CopiedFromID), p)
	}
	for _, r := range batch.attached {
		s.updated(ctx, models.EntityIndividual, r.ID, models.StringValue(r.CopiedFromID), p)
	}
	for _, r := range batch.documents {
		s.created(ctx, models.EntityDocument, r.ID, models.StringValue(r.CopiedFromID), p)
	}
	for _, r := range batch.identities {
		s.created(ctx, models.EntityIdentity, r.ID, models.StringValue(r.CopiedFromID), p)
	}
	for _, r := range batch.accounts {
		s.created(ctx, models.EntityBankAccount, r.ID, models.StringValue(r.CopiedFromID), p)
	}
	for _, r := range batch.roles {
		s.created(ctx, models.EntityRole, r.ID, models.StringValue(r.CopiedFromID), p)
	}
	return nil
}
