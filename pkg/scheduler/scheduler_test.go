package scheduler_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unicef/hope-sub007/internal/testfixtures"
	"github.com/unicef/hope-sub007/pkg/jobs"
	"github.com/unicef/hope-sub007/pkg/scheduler"
)

type fakeRunner struct {
	mu   sync.Mutex
	runs [][]jobs.Job
}

func (r *fakeRunner) Run(_ context.Context, list []jobs.Job, _ jobs.RunOptions) ([]jobs.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, list)
	results := make([]jobs.Result, len(list))
	for i, job := range list {
		results[i] = jobs.Result{Job: job}
	}
	return results, nil
}

func (r *fakeRunner) snapshot() [][]jobs.Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]jobs.Job(nil), r.runs...)
}

func TestScheduler_Trigger(t *testing.T) {
	f := testfixtures.New(t)
	runner := &fakeRunner{}
	s := scheduler.New(runner, f.Store, scheduler.Config{}, testfixtures.Logger())

	assert.ErrorIs(t, s.Trigger("ba-1"), scheduler.ErrSchedulerStopped)

	require.NoError(t, s.Start(f.Ctx))
	assert.ErrorIs(t, s.Start(f.Ctx), scheduler.ErrSchedulerAlreadyRunning)
	require.NoError(t, s.Trigger("ba-1"))

	assert.Eventually(t, func() bool { return len(runner.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []jobs.Job{{Kind: jobs.KindSync, BusinessAreaID: "ba-1"}}, runner.snapshot()[0])

	require.NoError(t, s.Stop(f.Ctx))
	assert.False(t, s.IsRunning())
	require.NoError(t, s.Stop(f.Ctx))
}

func TestScheduler_PeriodicRunsEveryBusinessArea(t *testing.T) {
	f := testfixtures.New(t)
	runner := &fakeRunner{}
	s := scheduler.New(runner, f.Store, scheduler.Config{Interval: 10 * time.Millisecond}, testfixtures.Logger())

	require.NoError(t, s.Start(f.Ctx))
	assert.Eventually(t, func() bool { return len(runner.snapshot()) >= 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop(f.Ctx))

	for _, run := range runner.snapshot() {
		assert.Equal(t, []jobs.Job{{Kind: jobs.KindSync, BusinessAreaID: f.BA.ID}}, run)
	}
}

func TestScheduler_ConfiguredBusinessAreas(t *testing.T) {
	f := testfixtures.New(t)
	runner := &fakeRunner{}
	s := scheduler.New(runner, f.Store, scheduler.Config{
		Interval:      time.Hour,
		BusinessAreas: []string{"ukraine", "syria"},
	}, testfixtures.Logger())

	require.NoError(t, s.Start(f.Ctx))
	assert.Eventually(t, func() bool { return len(runner.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop(f.Ctx))

	run := runner.snapshot()[0]
	require.Len(t, run, 2)
	assert.Equal(t, "ukraine", run[0].BusinessAreaID)
	assert.Equal(t, "syria", run[1].BusinessAreaID)
}

func TestScheduler_QueueFull(t *testing.T) {
	f := testfixtures.New(t)
	block := make(chan struct{})
	runner := &blockingRunner{release: block}
	s := scheduler.New(runner, f.Store, scheduler.Config{QueueDepth: 1}, testfixtures.Logger())
	require.NoError(t, s.Start(f.Ctx))

	require.NoError(t, s.Trigger("a"))
	assert.Eventually(t, func() bool { return runner.started() }, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Trigger("b"))
	assert.ErrorIs(t, s.Trigger("c"), scheduler.ErrQueueFull)

	close(block)
	require.NoError(t, s.Stop(f.Ctx))
}

type blockingRunner struct {
	release chan struct{}
	mu      sync.Mutex
	calls   int
}

func (r *blockingRunner) Run(ctx context.Context, list []jobs.Job, _ jobs.RunOptions) ([]jobs.Result, error) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	<-r.release
	return nil, nil
}

func (r *blockingRunner) started() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls > 0
}
