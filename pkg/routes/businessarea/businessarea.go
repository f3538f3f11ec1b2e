// Package businessarea exposes on-demand sync runs for a business area.
package businessarea

import (
	"context"
	"errors"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/unicef/hope-sub007/pkg/jobs"
	"github.com/unicef/hope-sub007/pkg/lock"
	"github.com/unicef/hope-sub007/pkg/scheduler"
	"github.com/unicef/hope-sub007/pkg/store"
)

// Trigger queues a background sync.
type Trigger interface {
	Trigger(businessAreaID string) error
}

// JobRunner runs a job in the request.
type JobRunner interface {
	RunJob(ctx context.Context, job jobs.Job, dryRun bool) jobs.Result
}

var validate = validator.New()

// Register registers business area routes
func Register(g *echo.Group) {
	g.POST("/:id/sync", Sync)
}

type SyncRequest struct {
	BusinessAreaID string `param:"id" validate:"required,max=64"`
	// Wait runs the sync in the request and returns its report.
	Wait   bool `query:"wait"`
	DryRun bool `query:"dry_run"`
}

type SyncResponse struct {
	Status         string       `json:"status"`
	BusinessAreaID string       `json:"business_area_id"`
	Result         *jobs.Result `json:"result,omitempty"`
	Error          string       `json:"error,omitempty"`
}

// Sync handles POST /api/v1/business-areas/:id/sync.
func Sync(c echo.Context) error {
	ctx := c.Request().Context()

	var req SyncRequest
	if err := (&echo.DefaultBinder{}).BindPathParams(c, &req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, st, err := ectoinject.GetContext[store.Store](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}
	if _, err := st.BusinessAreas().Get(ctx, req.BusinessAreaID); err != nil {
		return err
	}

	if req.Wait || req.DryRun {
		ctx, runner, err := ectoinject.GetContext[JobRunner](ctx)
		if err != nil {
			return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
		}
		res := runner.RunJob(ctx, jobs.Job{Kind: jobs.KindSync, BusinessAreaID: req.BusinessAreaID}, req.DryRun)
		resp := SyncResponse{Status: "completed", BusinessAreaID: req.BusinessAreaID, Result: &res}
		switch {
		case errors.Is(res.Err, lock.ErrLockNotAcquired):
			return httperror.NewHTTPErrorf(http.StatusConflict, "business area %s is already syncing", req.BusinessAreaID)
		case res.Err != nil:
			ctx, logger, _ := ectoinject.GetContext[ectologger.Logger](ctx)
			if logger != nil {
				logger.WithContext(ctx).WithError(res.Err).WithField("business_area_id", req.BusinessAreaID).Warn("Requested sync failed")
			}
			resp.Status = "failed"
			resp.Error = res.Err.Error()
			return c.JSON(http.StatusInternalServerError, resp)
		}
		return c.JSON(http.StatusOK, resp)
	}

	_, trigger, err := ectoinject.GetContext[Trigger](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}
	if err := trigger.Trigger(req.BusinessAreaID); err != nil {
		switch {
		case errors.Is(err, scheduler.ErrQueueFull):
			return httperror.NewHTTPError(http.StatusTooManyRequests, err.Error())
		case errors.Is(err, scheduler.ErrSchedulerStopped):
			return httperror.NewHTTPError(http.StatusServiceUnavailable, err.Error())
		}
		return err
	}
	return c.JSON(http.StatusAccepted, SyncResponse{Status: "queued", BusinessAreaID: req.BusinessAreaID})
}
