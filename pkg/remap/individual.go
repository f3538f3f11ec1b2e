package remap

import (
	"context"
	"encoding/json"

	"github.com/unicef/hope-sub007/pkg/models"
	"github.com/unicef/hope-sub007/pkg/platform/tracing"
)

const individualDataField = "individual_data"

// childKind describes one family of sub-objects inside individual_data.
type childKind struct {
	name     string
	typeName string
	// find returns the representation id and its owner's representation id,
	// or empty strings when the object has no match in the program.
	find func(r *Remapper, ctx context.Context, pk, programID string) (string, string, error)
}

var childKinds = []childKind{
	{name: "documents", typeName: models.EntityDocument, find: (*Remapper).findDocument},
	{name: "identities", typeName: models.EntityIdentity, find: (*Remapper).findIdentity},
	{name: "payment_channels", typeName: models.EntityBankAccount, find: (*Remapper).findBankAccount},
}

type resolved struct {
	id         string
	individual string
}

// IndividualData rewrites the ids inside the *_to_remove, *_to_edit and
// previous_* members of an individual data update so they point at the
// matching objects of programID. Objects are matched by business key, not
// by id. Unmatched entries and unrelated members are kept as written.
func (r *Remapper) IndividualData(ctx context.Context, raw models.JSON, programID string) (models.JSON, error) {
	ctx, span := tracing.StartSpan(ctx, "remap.Remapper.IndividualData")
	defer span.End()

	if raw.IsEmpty() {
		return raw, nil
	}
	outer, err := parseObject(raw)
	if err != nil {
		r.malformed(ctx, individualDataField, programID, err)
		return raw, nil
	}

	changed := false
	for _, kind := range childKinds {
		seen := map[string]resolved{}
		for _, step := range []func(context.Context, *object, childKind, string, map[string]resolved) (bool, error){
			r.remapRemovals,
			r.remapEdits,
			r.remapPrevious,
		} {
			stepChanged, err := step(ctx, outer, kind, programID, seen)
			if err != nil {
				return nil, err
			}
			changed = changed || stepChanged
		}
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

// resolve maps a payload id to the program's object, caching by payload id.
func (r *Remapper) resolve(ctx context.Context, kind childKind, id, programID string, seen map[string]resolved) (resolved, bool, error) {
	if hit, ok := seen[id]; ok {
		return hit, true, nil
	}
	in := parseRef(id)
	if in.empty() {
		return resolved{}, false, nil
	}
	repID, ownerID, err := kind.find(r, ctx, in.pk, programID)
	if err != nil || repID == "" {
		return resolved{}, false, err
	}
	out := resolved{
		id:         in.rewrite(repID, kind.typeName),
		individual: in.rewrite(ownerID, models.EntityIndividual),
	}
	seen[id] = out
	return out, true, nil
}

// remapRemovals handles <kind>_to_remove: a list of {"value": id}.
func (r *Remapper) remapRemovals(ctx context.Context, outer *object, kind childKind, programID string, seen map[string]resolved) (bool, error) {
	key := kind.name + "_to_remove"
	return r.remapList(ctx, outer, key, programID, func(item *object) (bool, error) {
		id := item.str("value")
		hit, ok, err := r.resolve(ctx, kind, id, programID, seen)
		if err != nil || !ok {
			if err == nil {
				r.unchanged(ctx, individualDataField, key, programID, "no matching "+kind.typeName)
			}
			return false, err
		}
		return true, item.setStr("value", hit.id)
	})
}

// remapEdits handles <kind>_to_edit: a list of {"value": {...}, "previous_value": {...}}.
func (r *Remapper) remapEdits(ctx context.Context, outer *object, kind childKind, programID string, seen map[string]resolved) (bool, error) {
	key := kind.name + "_to_edit"
	return r.remapList(ctx, outer, key, programID, func(item *object) (bool, error) {
		value := item.child("value")
		previous := item.child("previous_value")
		id := ""
		if value != nil {
			id = value.str("id")
		}
		if id == "" && previous != nil {
			id = previous.str("id")
		}
		hit, ok, err := r.resolve(ctx, kind, id, programID, seen)
		if err != nil || !ok {
			if err == nil {
				r.unchanged(ctx, individualDataField, key, programID, "no matching "+kind.typeName)
			}
			return false, err
		}
		for member, obj := range map[string]*object{"value": value, "previous_value": previous} {
			if obj == nil {
				continue
			}
			if err := rewriteIDs(obj, hit); err != nil {
				return false, err
			}
			if err := item.setChild(member, obj); err != nil {
				return false, err
			}
		}
		return true, nil
	})
}

// remapPrevious re-keys previous_<kind>, a map from payload id to the object
// as it was before the edit.
func (r *Remapper) remapPrevious(ctx context.Context, outer *object, kind childKind, programID string, seen map[string]resolved) (bool, error) {
	key := "previous_" + kind.name
	previous := outer.child(key)
	if previous == nil {
		return false, nil
	}

	changed := false
	for _, id := range append([]string(nil), previous.keys...) {
		hit, ok, err := r.resolve(ctx, kind, id, programID, seen)
		if err != nil {
			return false, err
		}
		if !ok {
			r.unchanged(ctx, individualDataField, key, programID, "no matching "+kind.typeName)
			continue
		}
		if entry := previous.child(id); entry != nil {
			if err := rewriteIDs(entry, hit); err != nil {
				return false, err
			}
			if err := previous.setChild(id, entry); err != nil {
				return false, err
			}
		}
		if !previous.rename(id, hit.id) {
			r.unchanged(ctx, individualDataField, key, programID, "key "+hit.id+" already taken, key kept")
		}
		changed = true
	}
	if !changed {
		return false, nil
	}
	return true, outer.setChild(key, previous)
}

func (r *Remapper) remapList(ctx context.Context, outer *object, key, programID string, fn func(item *object) (bool, error)) (bool, error) {
	raw, ok := outer.values[key]
	if !ok {
		return false, nil
	}
	items, err := parseArray(raw)
	if err != nil {
		r.unchanged(ctx, individualDataField, key, programID, "not a list")
		return false, nil
	}

	changed := false
	for i, rawItem := range items {
		item, err := parseObject(rawItem)
		if err != nil {
			continue
		}
		itemChanged, err := fn(item)
		if err != nil {
			return false, err
		}
		if !itemChanged {
			continue
		}
		b, err := item.MarshalJSON()
		if err != nil {
			return false, err
		}
		items[i] = json.RawMessage(b)
		changed = true
	}
	if changed {
		outer.set(key, marshalArray(items))
	}
	return changed, nil
}

// rewriteIDs updates the id and individual members when present.
func rewriteIDs(obj *object, hit resolved) error {
	if obj.has("id") {
		if err := obj.setStr("id", hit.id); err != nil {
			return err
		}
	}
	if obj.has("individual") {
		return obj.setStr("individual", hit.individual)
	}
	return nil
}

func (r *Remapper) findDocument(ctx context.Context, pk, programID string) (string, string, error) {
	doc, err := r.resolver.ResolveDocument(ctx, &pk)
	if err != nil || doc == nil {
		return "", "", err
	}
	owner, err := r.resolver.FindIndividual(ctx, &doc.IndividualID, programID)
	if err != nil || owner == nil {
		return "", "", err
	}
	rep, err := r.resolver.FindDocument(ctx, owner.ID, doc.DocumentNumber, doc.TypeKey, doc.Country, programID)
	if err != nil || rep == nil {
		return "", "", err
	}
	return rep.ID, owner.ID, nil
}

func (r *Remapper) findIdentity(ctx context.Context, pk, programID string) (string, string, error) {
	identity, err := r.resolver.ResolveIdentity(ctx, &pk)
	if err != nil || identity == nil {
		return "", "", err
	}
	owner, err := r.resolver.FindIndividual(ctx, &identity.IndividualID, programID)
	if err != nil || owner == nil {
		return "", "", err
	}
	rep, err := r.resolver.FindIdentity(ctx, owner.ID, identity.Number, identity.Partner, identity.Country, programID)
	if err != nil || rep == nil {
		return "", "", err
	}
	return rep.ID, owner.ID, nil
}

func (r *Remapper) findBankAccount(ctx context.Context, pk, programID string) (string, string, error) {
	account, err := r.resolver.ResolveBankAccount(ctx, &pk)
	if err != nil || account == nil {
		return "", "", err
	}
	owner, err := r.resolver.FindIndividual(ctx, &account.IndividualID, programID)
	if err != nil || owner == nil {
		return "", "", err
	}
	rep, err := r.resolver.FindBankAccount(ctx, owner.ID, account.BankName, account.BankAccountNumber, programID)
	if err != nil || rep == nil {
		return "", "", err
	}
	return rep.ID, owner.ID, nil
}
