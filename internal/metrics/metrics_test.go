package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestNop(t *testing.T) {
	m := NewNop()

	require.NotPanics(t, func() {
		m.AssignmentCreated("auto")
		m.MatchFailed("validation")
		m.AssignmentEdited("removed")
		m.AutoMatchCompleted(3, 1, time.Second)
		m.CounterAborted()
		m.ObserveHTTP("GET", "/v1/assignments", 200, time.Millisecond)
		m.JobFinished("assignments.notify", "done")
	})
}

func TestPrometheus_RecordsEngineOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheus(reg, "test")

	p.AssignmentCreated("auto")
	p.AssignmentCreated("auto")
	p.AssignmentCreated("manual")
	p.MatchFailed("conflict")
	p.AssignmentEdited("updated")
	p.AutoMatchCompleted(4, 2, 150*time.Millisecond)
	p.CounterAborted()

	require.InDelta(t, 2, testutil.ToFloat64(p.assignmentsCreated.WithLabelValues("auto")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(p.assignmentsCreated.WithLabelValues("manual")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(p.matchFailures.WithLabelValues("conflict")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(p.assignmentEdits.WithLabelValues("updated")), 0)
	require.InDelta(t, 4, testutil.ToFloat64(p.autoMatchRuns.WithLabelValues("succeeded")), 0)
	require.InDelta(t, 2, testutil.ToFloat64(p.autoMatchRuns.WithLabelValues("failed")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(p.counterAborts), 0)
	require.Equal(t, 1, testutil.CollectAndCount(p.autoMatchDuration))
}

func TestPrometheus_HTTPAndJobs(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheus(reg, "")

	p.ObserveHTTP("POST", "/v1/assignments", 201, 20*time.Millisecond)
	p.ObserveHTTP("POST", "/v1/assignments", 409, 5*time.Millisecond)
	p.JobFinished("assignments.auto_match", "done")

	require.InDelta(t, 1, testutil.ToFloat64(p.httpRequests.WithLabelValues("POST", "/v1/assignments", "409")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(p.jobsFinished.WithLabelValues("assignments.auto_match", "done")), 0)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	require.True(t, names["evalassign_http_requests_total"])
	require.True(t, names["evalassign_jobs_finished_total"])
}

func TestPrometheus_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewPrometheus(reg, "dup")

	require.Panics(t, func() { NewPrometheus(reg, "dup") })
}
