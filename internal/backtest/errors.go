package backtest

import (
	"fmt"
	"time"
)

// InvalidConfigError reports an engine configuration rejected at construction
// time. Configuration is never validated mid-simulation.
type InvalidConfigError struct {
	Field  string
	Value  float64
	Reason string
}

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid config: %s = %v (%s)", e.Field, e.Value, e.Reason)
}

// AlignmentError reports a signal series that does not line up 1:1 with its
// price series. It is raised before any simulation step runs, so a failed run
// never produces a partial result.
type AlignmentError struct {
	Expected  int       // number of bars
	Actual    int       // number of signals
	Index     int       // first mismatched index, -1 for a length mismatch
	Timestamp time.Time // offending bar timestamp, zero for a length mismatch
}

func (e *AlignmentError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("signal series misaligned: %d signals for %d bars", e.Actual, e.Expected)
	}
	return fmt.Sprintf("signal series misaligned at index %d: no signal for bar %s",
		e.Index, e.Timestamp.Format("2006-01-02"))
}
