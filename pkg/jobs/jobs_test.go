package jobs_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unicef/hope-sub007/internal/testfixtures"
	"github.com/unicef/hope-sub007/pkg/jobs"
	"github.com/unicef/hope-sub007/pkg/lock"
	"github.com/unicef/hope-sub007/pkg/migration"
	"github.com/unicef/hope-sub007/pkg/models"
	"github.com/unicef/hope-sub007/pkg/programs"
	"github.com/unicef/hope-sub007/pkg/report"
	"github.com/unicef/hope-sub007/pkg/representation"
	"github.com/unicef/hope-sub007/pkg/store"
)

type emitted struct {
	calls   int
	changes []report.Change
}

func (e *emitted) Emit(_ context.Context, _ string, changes []report.Change) error {
	e.calls++
	e.changes = append(e.changes, changes...)
	return nil
}

func (e *emitted) Close() error { return nil }

func recording(entityType string) jobs.Func {
	return func(ctx context.Context, businessAreaID string) (*report.Report, error) {
		report.From(ctx).Created(entityType, "rep-"+businessAreaID, "orig-"+businessAreaID, "p1")
		return report.From(ctx), nil
	}
}

func TestRunner_MigrateRunsBothStages(t *testing.T) {
	f := testfixtures.New(t)
	emitter := &emitted{}
	r := jobs.NewRunner(f.Store, jobs.Drivers{
		Migrate:          recording(models.EntityHousehold),
		MigrateGrievance: recording(models.EntityGrievanceTicket),
	}, nil, emitter, nil, testfixtures.Logger(), jobs.Config{})

	results, err := r.Run(f.Ctx, []jobs.Job{{Kind: jobs.KindMigrate, BusinessAreaID: "ba-1"}}, jobs.RunOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)

	res := results[0]
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 2, res.Summary.Writes)
	assert.Equal(t, 1, res.Summary.Counts[models.EntityHousehold].Created)
	assert.Equal(t, 1, res.Summary.Counts[models.EntityGrievanceTicket].Created)
	assert.Equal(t, 1, emitter.calls)
	assert.Len(t, emitter.changes, 2)
}

func TestRunner_FailuresDoNotStopOtherJobs(t *testing.T) {
	f := testfixtures.New(t)
	var calls atomic.Int32
	r := jobs.NewRunner(f.Store, jobs.Drivers{
		Sync: func(ctx context.Context, ba string) (*report.Report, error) {
			calls.Add(1)
			if ba == "bad" {
				return nil, errors.New("boom")
			}
			return report.From(ctx), nil
		},
	}, nil, nil, nil, testfixtures.Logger(), jobs.Config{Concurrency: 3})

	results, err := r.Run(f.Ctx, []jobs.Job{
		{Kind: jobs.KindSync, BusinessAreaID: "a"},
		{Kind: jobs.KindSync, BusinessAreaID: "bad"},
		{Kind: jobs.KindSync, BusinessAreaID: "c"},
	}, jobs.RunOptions{})
	require.Error(t, err)
	assert.ErrorContains(t, err, "sync bad: boom")
	assert.EqualValues(t, 3, calls.Load())
	assert.NoError(t, results[0].Err)
	assert.Error(t, results[1].Err)
	assert.NoError(t, results[2].Err)
}

func TestRunner_UnknownKind(t *testing.T) {
	f := testfixtures.New(t)
	r := jobs.NewRunner(f.Store, jobs.Drivers{}, nil, nil, nil, testfixtures.Logger(), jobs.Config{})
	_, err := r.Run(f.Ctx, []jobs.Job{{Kind: "publish", BusinessAreaID: "a"}}, jobs.RunOptions{})
	assert.ErrorContains(t, err, `unknown job kind "publish"`)

	_, err = r.Run(f.Ctx, []jobs.Job{{Kind: jobs.KindSync, BusinessAreaID: "a"}}, jobs.RunOptions{})
	assert.ErrorContains(t, err, "no driver configured")
}

func TestRunner_LockedBusinessAreaIsSkipped(t *testing.T) {
	f := testfixtures.New(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	locker := lock.NewRedisLocker(rdb, lock.Config{TTL: time.Minute}, testfixtures.Logger())

	held, err := locker.Acquire(f.Ctx, "ba-1")
	require.NoError(t, err)

	var ran bool
	r := jobs.NewRunner(f.Store, jobs.Drivers{
		Sync: func(ctx context.Context, _ string) (*report.Report, error) {
			ran = true
			return nil, nil
		},
	}, locker, nil, nil, testfixtures.Logger(), jobs.Config{})

	results, err := r.Run(f.Ctx, []jobs.Job{{Kind: jobs.KindSync, BusinessAreaID: "ba-1"}}, jobs.RunOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, results[0].Err, lock.ErrLockNotAcquired)
	assert.False(t, ran)

	require.NoError(t, held.Release(f.Ctx))
	_, err = r.Run(f.Ctx, []jobs.Job{{Kind: jobs.KindSync, BusinessAreaID: "ba-1"}}, jobs.RunOptions{})
	require.NoError(t, err)
	assert.True(t, ran)
	assert.False(t, mr.Exists("lock:hope-sync:ba-1"))
}

func TestRunner_DryRunRollsBack(t *testing.T) {
	f := testfixtures.New(t)
	program := f.Program("Cash")
	rdi := f.RDI("import", nil)
	f.AssignRDI(rdi, program)
	f.Household(rdi, "A", "B")

	reps := representation.New(f.Store, testfixtures.Logger())
	migrator := migration.New(reps, programs.NewResolver(f.Store, testfixtures.Logger()), testfixtures.Logger(), migration.Config{})
	emitter := &emitted{}
	r := jobs.NewRunner(f.Store, jobs.Drivers{Sync: migrator.Migrate}, nil, emitter, nil, testfixtures.Logger(), jobs.Config{})

	results, err := r.Run(f.Ctx, []jobs.Job{{Kind: jobs.KindSync, BusinessAreaID: f.BA.ID}}, jobs.RunOptions{DryRun: true})
	require.NoError(t, err)
	assert.True(t, results[0].DryRun)
	assert.Equal(t, 1, results[0].Summary.Counts[models.EntityHousehold].Created)
	assert.Zero(t, emitter.calls)

	count, err := f.Store.Households().Count(f.Ctx, store.Where(store.Representations()))
	require.NoError(t, err)
	assert.Zero(t, count)

	results, err = r.Run(f.Ctx, []jobs.Job{{Kind: jobs.KindSync, BusinessAreaID: f.BA.ID}}, jobs.RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, results[0].Summary.Counts[models.EntityHousehold].Created)
	count, err = f.Store.Households().Count(f.Ctx, store.Where(store.Representations()))
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestParseManifest(t *testing.T) {
	m, err := jobs.ParseManifest([]byte(`
concurrency: 2
jobs:
  - kind: migrate
    business_areas: [afghanistan]
  - kind: sync
    business_areas: [afghanistan, ukraine]
`))
	require.NoError(t, err)
	assert.Equal(t, 2, m.Concurrency)
	assert.False(t, m.DryRun)
	assert.Equal(t, []jobs.Job{
		{Kind: jobs.KindMigrate, BusinessAreaID: "afghanistan"},
		{Kind: jobs.KindSync, BusinessAreaID: "afghanistan"},
		{Kind: jobs.KindSync, BusinessAreaID: "ukraine"},
	}, m.Expand())

	for name, doc := range map[string]string{
		"no jobs":        "concurrency: 1\n",
		"unknown kind":   "jobs:\n  - kind: publish\n    business_areas: [a]\n",
		"no areas":       "jobs:\n  - kind: sync\n",
		"blank area":     "jobs:\n  - kind: sync\n    business_areas: ['']\n",
		"not yaml":       "jobs: [",
		"negative limit": "concurrency: -1\njobs:\n  - kind: sync\n    business_areas: [a]\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := jobs.ParseManifest([]byte(doc))
			assert.Error(t, err)
		})
	}
}
