package selector

import (
	"errors"
	"fmt"
)

var (
	// ErrLookup signals a (team, round) pair missing from the value table. It
	// means the table and the eligibility sets disagree, so the search aborts.
	ErrLookup = errors.New("value lookup failed")
	// ErrInvalidInput is returned for inputs the search cannot run on at all.
	ErrInvalidInput = errors.New("invalid selection input")
	// ErrCanceled is returned when a caller-imposed limit stops the search.
	// The accompanying result still holds the best selection found so far.
	ErrCanceled = errors.New("selection search canceled")
	// ErrNodeLimit is joined with ErrCanceled when Options.NodeLimit is reached.
	ErrNodeLimit = errors.New("node limit reached")
)

// LookupError describes the missing value table entry.
type LookupError struct {
	Team  string
	Day   int
	Round int
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("%s: no value for team %q on day %d (round %d)", ErrLookup, e.Team, e.Day, e.Round)
}

func (e *LookupError) Unwrap() error {
	return ErrLookup
}

func canceled(cause error) error {
	return fmt.Errorf("%w: %w", ErrCanceled, cause)
}

func isCancel(err error) bool {
	return errors.Is(err, ErrCanceled)
}
