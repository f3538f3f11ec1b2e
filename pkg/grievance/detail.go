package grievance

import (
	"bytes"
	"context"

	"github.com/unicef/hope-sub007/pkg/models"
)

// remapDetail points the detail's references and JSON payloads at the
// representations of programID. References without a representation there
// are left as they are. It reports whether anything changed.
func (d *Driver) remapDetail(ctx context.Context, detail *models.TicketDetail, programID string) (bool, error) {
	changed := false

	if ref := detail.HouseholdRef(); ref != nil {
		id, err := d.householdIn(ctx, detail, ref, programID)
		if err != nil {
			return false, err
		}
		if id != nil && *id != *ref {
			detail.HouseholdID = id
			changed = true
		}
	}
	if ref := detail.ReasonHouseholdID; ref != nil && detail.Kind == models.DetailDeleteHousehold {
		id, err := d.householdIn(ctx, detail, ref, programID)
		if err != nil {
			return false, err
		}
		if id != nil && *id != *ref {
			detail.ReasonHouseholdID = id
			changed = true
		}
	}
	if ref := detail.IndividualRef(); ref != nil {
		id, err := d.individualIn(ctx, detail, ref, programID)
		if err != nil {
			return false, err
		}
		if id != nil && *id != *ref {
			detail.SetIndividualRef(id)
			changed = true
		}
	}

	if detail.Kind == models.DetailNeedsAdjudication {
		adjusted, err := d.remapAdjudication(ctx, detail, programID)
		if err != nil {
			return false, err
		}
		changed = changed || adjusted
	}

	shape := detail.Kind.Shape()
	if shape.RoleReassignData {
		out, err := d.remapper.RoleReassignData(ctx, detail.RoleReassignData, programID)
		if err != nil {
			return false, err
		}
		if !bytes.Equal(out, detail.RoleReassignData) {
			detail.RoleReassignData = out
			changed = true
		}
	}
	if shape.IndividualData {
		out, err := d.remapper.IndividualData(ctx, detail.IndividualData, programID)
		if err != nil {
			return false, err
		}
		if !bytes.Equal(out, detail.IndividualData) {
			detail.IndividualData = out
			changed = true
		}
	}
	return changed, nil
}

func (d *Driver) householdIn(ctx context.Context, detail *models.TicketDetail, ref *string, programID string) (*string, error) {
	rep, err := d.reps.FindHousehold(ctx, ref, programID)
	if err != nil {
		return nil, err
	}
	if rep == nil {
		d.unmapped(ctx, detail, models.EntityHousehold, *ref, programID)
		return nil, nil
	}
	return &rep.ID, nil
}

func (d *Driver) individualIn(ctx context.Context, detail *models.TicketDetail, ref *string, programID string) (*string, error) {
	rep, err := d.reps.FindIndividual(ctx, ref, programID)
	if err != nil {
		return nil, err
	}
	if rep == nil {
		d.unmapped(ctx, detail, models.EntityIndividual, *ref, programID)
		return nil, nil
	}
	return &rep.ID, nil
}

func (d *Driver) unmapped(ctx context.Context, detail *models.TicketDetail, entityType, id, programID string) {
	d.logger.WithContext(ctx).WithFields(map[string]any{
		"ticket_id":   detail.TicketID,
		"kind":        detail.Kind,
		"entity_type": entityType,
		"id":          id,
		"program_id":  programID,
	}).Debug("reference has no representation in program, left unchanged")
}
