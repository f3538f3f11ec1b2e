// Package representation lists the program copies of an original record.
package representation

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	"github.com/unicef/hope-sub007/pkg/models"
	"github.com/unicef/hope-sub007/pkg/store"
)

// Register registers representation routes
func Register(g *echo.Group) {
	g.GET("/:type/:id", List)
}

type Representation struct {
	ID         string     `json:"id"`
	ProgramID  string     `json:"program_id"`
	MigratedAt *time.Time `json:"migrated_at,omitempty"`
	IsRemoved  bool       `json:"is_removed"`
}

type ListResponse struct {
	EntityType      string           `json:"entity_type"`
	OriginalID      string           `json:"original_id"`
	Representations []Representation `json:"representations"`
}

type lister func(ctx context.Context, id string) (string, []Representation, error)

func listers(s store.Store) map[string]lister {
	return map[string]lister{
		strings.ToLower(models.EntityHousehold):         list(s.Households()),
		strings.ToLower(models.EntityIndividual):        list(s.Individuals()),
		strings.ToLower(models.EntityRole):              list(s.Roles()),
		strings.ToLower(models.EntityDocument):          list(s.Documents()),
		strings.ToLower(models.EntityIdentity):          list(s.Identities()),
		strings.ToLower(models.EntityBankAccount):       list(s.BankAccounts()),
		strings.ToLower(models.EntityGrievanceTicket):   list(s.Tickets()),
		strings.ToLower(models.EntityTicketNote):        list(s.TicketNotes()),
		strings.ToLower(models.EntityGrievanceDocument): list(s.GrievanceDocuments()),
		strings.ToLower(models.EntityFeedback):          list(s.Feedbacks()),
		strings.ToLower(models.EntityFeedbackMessage):   list(s.FeedbackMessages()),
		strings.ToLower(models.EntityMessage):           list(s.Messages()),
	}
}

// list resolves id to its original, so either an original or a
// representation id may be passed.
func list[T any, PT interface {
	*T
	models.Copyable
}](repo store.Repository[T]) lister {
	return func(ctx context.Context, id string) (string, []Representation, error) {
		row, err := repo.Get(ctx, id)
		if err != nil {
			return "", nil, err
		}
		lineage := PT(row).GetLineage()
		originalID := id
		if !lineage.IsOriginal {
			originalID = models.StringValue(lineage.CopiedFromID)
		}

		rows, err := repo.Find(ctx, store.RepresentationsOf(originalID))
		if err != nil {
			return "", nil, err
		}
		out := make([]Representation, 0, len(rows))
		for _, r := range rows {
			l := PT(r).GetLineage()
			out = append(out, Representation{
				ID:         PT(r).GetID(),
				ProgramID:  models.StringValue(l.ProgramID),
				MigratedAt: l.MigratedAt,
				IsRemoved:  l.IsRemoved,
			})
		}
		return originalID, out, nil
	}
}

// List handles GET /api/v1/representations/:type/:id. The type is an entity
// name such as household or grievanceticket, case-insensitive.
func List(c echo.Context) error {
	ctx, st, err := ectoinject.GetContext[store.Store](c.Request().Context())
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	entityType := strings.ToLower(c.Param("type"))
	fn, ok := listers(st)[entityType]
	if !ok {
		return httperror.NewHTTPErrorf(http.StatusBadRequest, "unknown entity type %q", c.Param("type"))
	}

	originalID, reps, err := fn(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ListResponse{
		EntityType:      c.Param("type"),
		OriginalID:      originalID,
		Representations: reps,
	})
}
