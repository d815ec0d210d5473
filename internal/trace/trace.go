// Package trace provides a scoped wall-clock timer used to emit the
// debug-level stage timing lines the logging section of SPEC_FULL.md calls
// for. It is intentionally tiny: a stand-in for original_source's
// util/profiler.rs, not a general tracing framework.
package trace

import "time"

// Span measures the wall-clock duration of one named stage.
type Span struct {
	Name  string
	start time.Time
}

// Start begins a new Span named name.
func Start(name string) Span {
	return Span{Name: name, start: time.Now()}
}

// Elapsed returns the time since Start was called.
func (s Span) Elapsed() time.Duration {
	return time.Since(s.start)
}
