package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus implements Collector backed by Prometheus. Collectors are
// created and registered on first use.
type Prometheus struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	assignmentsCreated *prometheus.CounterVec
	matchFailures      *prometheus.CounterVec
	assignmentEdits    *prometheus.CounterVec
	autoMatchRuns      *prometheus.CounterVec
	autoMatchDuration  prometheus.Histogram
	counterAborts      prometheus.Counter
	httpRequests       *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
	jobsFinished       *prometheus.CounterVec
}

var _ Collector = (*Prometheus)(nil)

// NewPrometheus creates a Prometheus-backed collector. reg defaults to
// prometheus.DefaultRegisterer and namespace to "evalassign".
func NewPrometheus(reg prometheus.Registerer, namespace string) *Prometheus {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "evalassign"
	}

	p := &Prometheus{reg: reg, namespace: namespace}
	p.ensureRegistered()
	return p
}

func (p *Prometheus) ensureRegistered() {
	p.once.Do(func() {
		p.assignmentsCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "matching",
			Name:      "assignments_created_total",
			Help:      "Assignments created by match mode (auto, slot1, manual, upsert).",
		}, []string{"mode"})
		p.matchFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "matching",
			Name:      "failures_total",
			Help:      "Rejected match and edit requests by error kind.",
		}, []string{"kind"})
		p.assignmentEdits = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "matching",
			Name:      "edits_total",
			Help:      "Assignment edits by outcome (updated, created, removed).",
		}, []string{"outcome"})
		p.autoMatchRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "matching",
			Name:      "auto_match_establishments_total",
			Help:      "Establishments processed by auto-match by result (succeeded, failed).",
		}, []string{"result"})
		p.autoMatchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "matching",
			Name:      "auto_match_duration_seconds",
			Help:      "Wall time of auto-match runs.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		})
		p.counterAborts = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "matching",
			Name:      "counter_aborts_total",
			Help:      "Creates aborted because the ID counter failed.",
		})
		p.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route template and status code.",
		}, []string{"method", "route", "status"})
		p.httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by method and route template.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"})
		p.jobsFinished = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "jobs",
			Name:      "finished_total",
			Help:      "Background jobs by type and result (done, retry, failed).",
		}, []string{"type", "result"})

		p.reg.MustRegister(
			p.assignmentsCreated,
			p.matchFailures,
			p.assignmentEdits,
			p.autoMatchRuns,
			p.autoMatchDuration,
			p.counterAborts,
			p.httpRequests,
			p.httpDuration,
			p.jobsFinished,
		)
	})
}

func (p *Prometheus) AssignmentCreated(mode string) {
	p.assignmentsCreated.WithLabelValues(mode).Inc()
}

func (p *Prometheus) MatchFailed(kind string) {
	p.matchFailures.WithLabelValues(kind).Inc()
}

func (p *Prometheus) AssignmentEdited(outcome string) {
	p.assignmentEdits.WithLabelValues(outcome).Inc()
}

func (p *Prometheus) AutoMatchCompleted(succeeded, failed int, d time.Duration) {
	p.autoMatchRuns.WithLabelValues("succeeded").Add(float64(succeeded))
	p.autoMatchRuns.WithLabelValues("failed").Add(float64(failed))
	p.autoMatchDuration.Observe(d.Seconds())
}

func (p *Prometheus) CounterAborted() {
	p.counterAborts.Inc()
}

func (p *Prometheus) ObserveHTTP(method, route string, status int, d time.Duration) {
	p.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	p.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (p *Prometheus) JobFinished(jobType, result string) {
	p.jobsFinished.WithLabelValues(jobType, result).Inc()
}
