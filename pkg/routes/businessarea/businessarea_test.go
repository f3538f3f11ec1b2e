package businessarea_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unicef/hope-sub007/internal/testfixtures"
	"github.com/unicef/hope-sub007/pkg/jobs"
	"github.com/unicef/hope-sub007/pkg/lock"
	"github.com/unicef/hope-sub007/pkg/platform/middleware"
	"github.com/unicef/hope-sub007/pkg/report"
	"github.com/unicef/hope-sub007/pkg/routes/businessarea"
	"github.com/unicef/hope-sub007/pkg/scheduler"
	"github.com/unicef/hope-sub007/pkg/store"
)

type fakeTrigger struct {
	queued []string
	err    error
}

func (f *fakeTrigger) Trigger(ba string) error {
	if f.err != nil {
		return f.err
	}
	f.queued = append(f.queued, ba)
	return nil
}

type fakeRunner struct {
	dryRun bool
	err    error
}

func (f *fakeRunner) RunJob(_ context.Context, job jobs.Job, dryRun bool) jobs.Result {
	f.dryRun = dryRun
	rep := report.New()
	rep.Updated("Household", "r", "o", "p")
	return jobs.Result{Job: job, DryRun: dryRun, Summary: rep.Summary(), Err: f.err}
}

func setup(t *testing.T, trigger *fakeTrigger, runner *fakeRunner) *echo.Echo {
	f := testfixtures.New(t)
	container, err := ectoinject.NewDIDefaultContainer()
	require.NoError(t, err)
	ectoinject.RegisterInstance[ectologger.Logger](container, testfixtures.Logger())
	ectoinject.RegisterInstance[store.Store](container, f.Store)
	ectoinject.RegisterInstance[businessarea.Trigger](container, trigger)
	ectoinject.RegisterInstance[businessarea.JobRunner](container, runner)

	e := echo.New()
	e.HTTPErrorHandler = middleware.Error(testfixtures.Logger())
	businessarea.Register(e.Group("/api/v1/business-areas"))
	return e
}

func post(e *echo.Echo, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, nil))
	return rec
}

func TestSync_Queued(t *testing.T) {
	trigger := &fakeTrigger{}
	e := setup(t, trigger, &fakeRunner{})

	rec := post(e, "/api/v1/business-areas/ba-1/sync")
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{"ba-1"}, trigger.queued)

	var resp businessarea.SyncResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "queued", resp.Status)
}

func TestSync_UnknownBusinessArea(t *testing.T) {
	trigger := &fakeTrigger{}
	e := setup(t, trigger, &fakeRunner{})
	assert.Equal(t, http.StatusNotFound, post(e, "/api/v1/business-areas/nowhere/sync").Code)
	assert.Empty(t, trigger.queued)
}

func TestSync_QueueErrors(t *testing.T) {
	e := setup(t, &fakeTrigger{err: scheduler.ErrQueueFull}, &fakeRunner{})
	assert.Equal(t, http.StatusTooManyRequests, post(e, "/api/v1/business-areas/ba-1/sync").Code)

	e = setup(t, &fakeTrigger{err: scheduler.ErrSchedulerStopped}, &fakeRunner{})
	assert.Equal(t, http.StatusServiceUnavailable, post(e, "/api/v1/business-areas/ba-1/sync").Code)
}

func TestSync_Wait(t *testing.T) {
	runner := &fakeRunner{}
	e := setup(t, &fakeTrigger{}, runner)

	rec := post(e, "/api/v1/business-areas/ba-1/sync?wait=true&dry_run=true")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, runner.dryRun)

	var resp businessarea.SyncResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "completed", resp.Status)
	require.NotNil(t, resp.Result)
	assert.Equal(t, 1, resp.Result.Summary.Writes)
}

func TestSync_WaitFailures(t *testing.T) {
	e := setup(t, &fakeTrigger{}, &fakeRunner{err: lock.ErrLockNotAcquired})
	assert.Equal(t, http.StatusConflict, post(e, "/api/v1/business-areas/ba-1/sync?wait=true").Code)

	e = setup(t, &fakeTrigger{}, &fakeRunner{err: errors.New("boom")})
	rec := post(e, "/api/v1/business-areas/ba-1/sync?wait=true")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var resp businessarea.SyncResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "failed", resp.Status)
	assert.Equal(t, "boom", resp.Error)
}

func TestSync_InvalidQuery(t *testing.T) {
	e := setup(t, &fakeTrigger{}, &fakeRunner{})
	assert.Equal(t, http.StatusBadRequest, post(e, "/api/v1/business-areas/ba-1/sync?wait=maybe").Code)
}
