// Package errs holds the failure taxonomy shared by every rollout component.
// It has no internal dependencies so adapters and services can both wrap it.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound reports a missing city, plan or ledger row for a specific-id request.
	ErrNotFound = errors.New("not found")

	// ErrInvalidTransition reports a status change that is not reachable.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrUpstreamTimeout reports that the transaction feed or store missed its deadline.
	ErrUpstreamTimeout = errors.New("upstream timeout")
)

// NotFound wraps ErrNotFound with a description of what was missing.
func NotFound(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotFound)
}

// InvalidTransition wraps ErrInvalidTransition with a reason.
func InvalidTransition(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInvalidTransition)
}

// Retryable reports whether err may succeed on a second attempt.
// Only upstream timeouts qualify.
func Retryable(err error) bool {
	return errors.Is(err, ErrUpstreamTimeout)
}

// UnitFailure describes one failed member of a batch.
type UnitFailure struct {
	Unit   string // city name or "cityID/month"
	Reason string
	Err    error
}

// PartialBatchFailure is returned alongside a batch report when some units
// failed. The batch itself always runs to completion.
type PartialBatchFailure struct {
	Op       string
	Total    int
	Failures []UnitFailure
}

func (e *PartialBatchFailure) Error() string {
	units := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		units = append(units, f.Unit)
	}
	return fmt.Sprintf("%s: %d of %d units failed (%s)", e.Op, len(e.Failures), e.Total, strings.Join(units, ", "))
}

// Unwrap exposes the per-unit causes so errors.Is can see a timeout inside a batch.
func (e *PartialBatchFailure) Unwrap() []error {
	out := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		if f.Err != nil {
			out = append(out, f.Err)
		}
	}
	return out
}
