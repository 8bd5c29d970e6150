package matching

import "time"

// Recorder receives engine outcomes. Implementations must be safe for
// concurrent use; AutoMatch reports from several goroutines.
type Recorder interface {
	AssignmentCreated(mode string)
	MatchFailed(kind string)
	AssignmentEdited(outcome string)
	AutoMatchCompleted(succeeded, failed int, d time.Duration)
	CounterAborted()
}

// NopRecorder discards everything.
type NopRecorder struct{}

var _ Recorder = NopRecorder{}

func (NopRecorder) AssignmentCreated(string) {}
func (NopRecorder) MatchFailed(string) {}
func (NopRecorder) AssignmentEdited(string) {}
func (NopRecorder) AutoMatchCompleted(int, int, time.Duration) {}
func (NopRecorder) CounterAborted() {}
