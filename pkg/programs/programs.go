// Package programs finds or creates the hidden programs that park records no
// regular program claims.
package programs

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/unicef/hope-sub007/pkg/models"
	"github.com/unicef/hope-sub007/pkg/report"
	"github.com/unicef/hope-sub007/pkg/store"
)

const VoidProgramName = "Void Program"

type Resolver struct {
	store  store.Store
	logger ectologger.Logger
}

func NewResolver(st store.Store, logger ectologger.Logger) *Resolver {
	return &Resolver{
		store:  st,
		logger: logger,
	}
}

// StorageProgram returns the business area's storage program for a data
// collecting type code, creating it on first use. Unknown codes share the
// "unknown" storage program.
func (r *Resolver) StorageProgram(ctx context.Context, businessAreaID, collectingTypeCode string) (*models.Program, error) {
	code := models.NormalizeCollectingType(collectingTypeCode)
	return r.parking(ctx, &models.Program{
		BusinessAreaID:         businessAreaID,
		Name:                   fmt.Sprintf("Storage program for %s", code),
		Status:                 models.ProgramStatusActive,
		Kind:                   models.ProgramKindStorage,
		DataCollectingTypeCode: code,
	})
}

// VoidProgram returns the business area's draft program for tickets,
// feedback and messages tied to no program.
func (r *Resolver) VoidProgram(ctx context.Context, businessAreaID string) (*models.Program, error) {
	return r.parking(ctx, &models.Program{
		BusinessAreaID:         businessAreaID,
		Name:                   VoidProgramName,
		Status:                 models.ProgramStatusDraft,
		Kind:                   models.ProgramKindVoid,
		DataCollectingTypeCode: models.CollectingTypeUnknown,
	})
}

func (r *Resolver) parking(ctx context.Context, want *models.Program) (*models.Program, error) {
	existing, err := r.store.Programs().First(ctx, store.Where(
		store.Eq("business_area_id", want.BusinessAreaID),
		store.Eq("kind", string(want.Kind)),
		store.Eq("data_collecting_type_code", want.DataCollectingTypeCode),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to look up %s program: %w", want.Kind, err)
	}
	if existing != nil {
		return existing, nil
	}

	dct, err := r.store.DataCollectingTypes().First(ctx, store.Where(store.Eq("code", want.DataCollectingTypeCode)))
	if err != nil {
		return nil, err
	}
	if dct != nil {
		want.DataCollectingTypeID = &dct.ID
	}
	want.ID = uuid.NewString()
	want.IsVisible = false
	want.CreatedAt = time.Now().UTC()
	if err := r.store.Programs().Insert(ctx, want); err != nil {
		return nil, fmt.Errorf("failed to create %s program: %w", want.Kind, err)
	}

	report.From(ctx).Created(models.EntityProgram, want.ID, "", want.ID)
	r.logger.WithContext(ctx).WithFields(map[string]any{
		"program_id":       want.ID,
		"business_area_id": want.BusinessAreaID,
		"kind":             want.Kind,
		"collecting_type":  want.DataCollectingTypeCode,
	}).Info("created parking program")
	return want, nil
}

// CollectingTypeCode returns the normalized data collecting type of an RDI.
func (r *Resolver) CollectingTypeCode(ctx context.Context, rdi *models.RegistrationDataImport) (string, error) {
	if rdi == nil {
		return models.CollectingTypeUnknown, nil
	}
	dct, err := store.GetOptional(ctx, r.store.DataCollectingTypes(), rdi.DataCollectingTypeID)
	if err != nil {
		return "", err
	}
	if dct == nil {
		return models.CollectingTypeUnknown, nil
	}
	return models.NormalizeCollectingType(dct.Code), nil
}

// Ordered loads programs by id ordered by creation.
func (r *Resolver) Ordered(ctx context.Context, ids []string) ([]*models.Program, error) {
	ids = store.Unique(ids)
	if len(ids) == 0 {
		return nil, nil
	}
	return r.store.Programs().Find(ctx, store.Where(store.In("id", ids)).OrderBy("created_at", "id"))
}
