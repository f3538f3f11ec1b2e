package remap

import (
	"context"

	"github.com/unicef/hope-sub007/pkg/models"
	"github.com/unicef/hope-sub007/pkg/platform/tracing"
)

// HeadKey marks the role_reassign_data entry that reassigns the head of household.
const HeadKey = "HEAD"

const roleReassignField = "role_reassign_data"

// RoleReassignData rewrites the household and individual of every entry to
// their representations in programID and re-keys the entry by the role
// representation linking them. Entries with any unresolvable reference are
// kept byte-identical. The input is returned as is when nothing changes.
func (r *Remapper) RoleReassignData(ctx context.Context, raw models.JSON, programID string) (models.JSON, error) {
	ctx, span := tracing.StartSpan(ctx, "remap.Remapper.RoleReassignData")
	defer span.End()

	if raw.IsEmpty() {
		return raw, nil
	}
	outer, err := parseObject(raw)
	if err != nil {
		r.malformed(ctx, roleReassignField, programID, err)
		return raw, nil
	}

	changed := false
	for _, key := range append([]string(nil), outer.keys...) {
		entry, err := parseObject(outer.values[key])
		if err != nil {
			r.unchanged(ctx, roleReassignField, key, programID, "entry is not an object")
			continue
		}
		newKey, ok, err := r.roleEntry(ctx, key, entry, programID)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if err := outer.setChild(key, entry); err != nil {
			return nil, err
		}
		if !outer.rename(key, newKey) {
			r.unchanged(ctx, roleReassignField, key, programID, "key "+newKey+" already taken, key kept")
		}
		changed = true
	}

	if !changed {
		return raw, nil
	}
	out, err := outer.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return models.JSON(out), nil
}

func (r *Remapper) roleEntry(ctx context.Context, key string, entry *object, programID string) (string, bool, error) {
	householdRef := parseRef(entry.str("household"))
	individualRef := parseRef(entry.str("individual"))
	if householdRef.empty() && individualRef.empty() {
		r.unchanged(ctx, roleReassignField, key, programID, "no references")
		return key, false, nil
	}

	var household *models.Household
	if !householdRef.empty() {
		rep, err := r.resolver.FindHousehold(ctx, &householdRef.pk, programID)
		if err != nil {
			return key, false, err
		}
		if rep == nil {
			r.unchanged(ctx, roleReassignField, key, programID, "household has no representation")
			return key, false, nil
		}
		household = rep
	}

	var individual *models.Individual
	if !individualRef.empty() {
		rep, err := r.resolver.FindIndividual(ctx, &individualRef.pk, programID)
		if err != nil {
			return key, false, err
		}
		if rep == nil {
			r.unchanged(ctx, roleReassignField, key, programID, "individual has no representation")
			return key, false, nil
		}
		individual = rep
	}

	if household != nil {
		if err := entry.setStr("household", householdRef.rewrite(household.ID, models.EntityHousehold)); err != nil {
			return key, false, err
		}
	}
	if individual != nil {
		if err := entry.setStr("individual", individualRef.rewrite(individual.ID, models.EntityIndividual)); err != nil {
			return key, false, err
		}
	}

	if key == HeadKey || household == nil || individual == nil {
		return key, true, nil
	}
	role, err := r.resolver.FindRole(ctx, household.ID, individual.ID, programID)
	if err != nil {
		return key, false, err
	}
	if role == nil {
		// keep the original role id rather than drop the entry
		r.unchanged(ctx, roleReassignField, key, programID, "no role representation, key kept")
		return key, true, nil
	}
	return role.ID, true, nil
}
