package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/collegebaseball/internal/backfill"
	"github.com/fortuna/collegebaseball/internal/config"
)

type fakeEnqueuer struct {
	specs []backfill.JobSpec
	err   error
}

func (f *fakeEnqueuer) EnqueueSpec(_ context.Context, spec backfill.JobSpec) (*backfill.Job, error) {
	f.specs = append(f.specs, spec)
	if f.err != nil {
		return nil, f.err
	}
	return backfill.NewJob(spec), nil
}

func testConfig() config.SchedulerConfig {
	return config.SchedulerConfig{
		Enabled:  true,
		Spec:     "0 3 * * *",
		Timezone: "America/New_York",
		Season:   2022,
		Division: 1,
	}
}

func TestNewOrchestratorValidates(t *testing.T) {
	_, err := NewOrchestrator(testConfig(), nil, nil)
	assert.Error(t, err)

	cfg := testConfig()
	cfg.Spec = "every day"
	_, err = NewOrchestrator(cfg, &fakeEnqueuer{}, nil)
	assert.Error(t, err)

	cfg = testConfig()
	cfg.Timezone = "Mars/Olympus_Mons"
	_, err = NewOrchestrator(cfg, &fakeEnqueuer{}, nil)
	assert.Error(t, err)
}

func TestTriggerQueuesRefresh(t *testing.T) {
	enq := &fakeEnqueuer{}
	o, err := NewOrchestrator(testConfig(), enq, nil)
	require.NoError(t, err)

	job, err := o.Trigger(context.Background())
	require.NoError(t, err)

	require.Len(t, enq.specs, 1)
	assert.Equal(t, backfill.JobSpec{
		Type:      backfill.JobTypeTeamResults,
		Seasons:   []int{2022},
		Divisions: []int{1},
		Save:      true,
	}, enq.specs[0])

	status := o.Status()
	assert.Equal(t, job.JobID, status.LastJobID)
	assert.False(t, status.LastRun.IsZero())
	assert.Empty(t, status.LastError)
}

func TestTriggerRecordsFailure(t *testing.T) {
	enq := &fakeEnqueuer{err: errors.New("database unavailable")}
	o, err := NewOrchestrator(testConfig(), enq, nil)
	require.NoError(t, err)

	_, err = o.Trigger(context.Background())
	require.Error(t, err)
	assert.Contains(t, o.Status().LastError, "database unavailable")
}

func TestRefreshSpecAllDivisions(t *testing.T) {
	cfg := testConfig()
	cfg.Division = 0
	o, err := NewOrchestrator(cfg, &fakeEnqueuer{}, nil)
	require.NoError(t, err)
	assert.Nil(t, o.RefreshSpec().Divisions)
}

func TestStatusReportsNextRun(t *testing.T) {
	o, err := NewOrchestrator(testConfig(), &fakeEnqueuer{}, nil)
	require.NoError(t, err)
	assert.True(t, o.Status().NextRun.IsZero(), "no next run before start")

	o.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	defer o.Stop(ctx)

	next := o.Status().NextRun
	require.False(t, next.IsZero())
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	assert.Equal(t, 3, next.In(loc).Hour())
	assert.True(t, next.After(time.Now()))
}
