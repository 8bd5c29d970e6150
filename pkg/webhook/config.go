package webhook

import "time"

// Config holds settings for the notification webhook client.
type Config struct {
	// URL receives a POST with the JSON payload of every notification
	URL string `yaml:"url" json:"url"`
	// Secret, when set, is sent as a bearer token
	Secret string `yaml:"secret" json:"-"`
	// Timeout is the per-request timeout
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
	// CircuitFailureThreshold opens circuit after this many consecutive failures
	CircuitFailureThreshold int `yaml:"circuit_failure_threshold" json:"circuit_failure_threshold"`
	// CircuitReset is the duration after which the circuit attempts to half-open
	CircuitReset time.Duration `yaml:"circuit_reset" json:"circuit_reset"`
}

// DefaultConfig returns a sensible default configuration. URL is left empty,
// which disables delivery.
func DefaultConfig() Config {
	return Config{
		Timeout:                 10 * time.Second,
		CircuitFailureThreshold: 5,
		CircuitReset:            30 * time.Second,
	}
}
