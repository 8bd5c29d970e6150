// Package metrics records engine and HTTP outcomes. Nop discards everything;
// Prometheus exports them for scraping on /metrics.
package metrics

import (
	"time"

	"github.com/garnizeh/evalassign/internal/matching"
)

// Collector is everything the service reports: engine outcomes plus HTTP
// request observations from the api middleware.
type Collector interface {
	matching.Recorder
	ObserveHTTP(method, route string, status int, d time.Duration)
	JobFinished(jobType, result string)
}

// Nop implements Collector with no-op methods.
type Nop struct {
	matching.NopRecorder
}

var _ Collector = (*Nop)(nil)

func NewNop() *Nop { return &Nop{} }

func (*Nop) ObserveHTTP(string, string, int, time.Duration) {}

func (*Nop) JobFinished(string, string) {}
