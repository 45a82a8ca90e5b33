package diag

import (
	"errors"
	"sort"
	"sync"
)

// Severity of a collected diagnostic.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
)

func (s Severity) String() string {
	if s == SeverityError {
		return "error"
	}

	return "warning"
}

// Entry is one collected diagnostic.
type Entry struct {
	Severity Severity
	Unit     string
	Err      error
}

// List collects diagnostics from concurrent workers. The zero value is ready to use.
type List struct {
	mu      sync.Mutex
	entries []Entry
}

// Error records a fatal diagnostic for unit.
func (l *List) Error(unit string, err error) {
	if err == nil {
		return
	}

	l.add(Entry{Severity: SeverityError, Unit: unit, Err: err})
}

// Warn records a non-fatal diagnostic for unit.
func (l *List) Warn(unit string, err error) {
	if err == nil {
		return
	}

	l.add(Entry{Severity: SeverityWarning, Unit: unit, Err: err})
}

func (l *List) add(entry Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, entry)
}

// Entries returns every diagnostic ordered by unit, then severity (errors first).
func (l *List) Entries() []Entry {
	l.mu.Lock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	l.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Unit != out[j].Unit {
			return out[i].Unit < out[j].Unit
		}

		return out[i].Severity > out[j].Severity
	})

	return out
}

// Failed reports whether unit has at least one fatal diagnostic.
func (l *List) Failed(unit string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, e := range l.entries {
		if e.Unit == unit && e.Severity == SeverityError {
			return true
		}
	}

	return false
}

// FailedUnits returns the set of units with fatal diagnostics.
func (l *List) FailedUnits() map[string]bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[string]bool)

	for _, e := range l.entries {
		if e.Severity == SeverityError {
			out[e.Unit] = true
		}
	}

	return out
}

// Err joins every fatal diagnostic, or returns nil when there are none.
func (l *List) Err() error {
	var errs []error

	for _, e := range l.Entries() {
		if e.Severity == SeverityError {
			errs = append(errs, e.Err)
		}
	}

	return errors.Join(errs...)
}

// Len returns the number of collected diagnostics.
func (l *List) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.entries)
}
