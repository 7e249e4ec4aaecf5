// Package pipeline drives the prepare and promote stations of a release
// pipeline against a set of hooks.
package pipeline

import (
	"context"
	"errors"
	"fmt"
)

// Station names a pipeline stage.
type Station string

const (
	StationPrepare Station = "prepare"
	StationPromote Station = "promote"
)

// ErrHalted is returned by Run when a hook's outcome stops the pipeline.
var ErrHalted = errors.New("pipeline halted")

// Outcome is the result a hook reports back to the pipeline.
type Outcome int

const (
	// Skipped means the hook had nothing to do for this run.
	Skipped Outcome = iota
	// Approved means the announcement may be sent.
	Approved
	// Rejected means sending was declined; the pipeline must stop.
	Rejected
	// NoRecipients means there is nobody to announce to.
	NoRecipients
	// Reported means a dry run described the send instead of doing it.
	Reported
	// Sent means the announcement was delivered to the transport.
	Sent
)

var outcomeNames = map[Outcome]string{
	Skipped:      "skipped",
	Approved:     "approved",
	Rejected:     "rejected",
	NoRecipients: "no-recipients",
	Reported:     "reported",
	Sent:         "sent",
}

func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Halts reports whether the outcome stops the pipeline.
func (o Outcome) Halts() bool {
	return o == Rejected
}

// Hooks is implemented by tools that take part in the pipeline.
type Hooks interface {
	// Prepare runs at the prepare station. destination is the last station
	// the pipeline will reach.
	Prepare(ctx context.Context, destination Station) (Outcome, error)

	// Promote runs at the promote station.
	Promote(ctx context.Context) (Outcome, error)
}

// ParseStation validates a station name.
func ParseStation(s string) (Station, error) {
	switch Station(s) {
	case StationPrepare, StationPromote:
		return Station(s), nil
	default:
		return "", fmt.Errorf("unknown station %q", s)
	}
}

// Run executes the stations up to and including destination. It returns the
// outcome of the last hook that ran, or ErrHalted when a hook halts.
func Run(ctx context.Context, hooks Hooks, destination Station) (Outcome, error) {
	if _, err := ParseStation(string(destination)); err != nil {
		return Skipped, err
	}

	outcome, err := hooks.Prepare(ctx, destination)
	if err != nil {
		return outcome, fmt.Errorf("%s: %w", StationPrepare, err)
	}
	if outcome.Halts() {
		return outcome, fmt.Errorf("%s: %w", StationPrepare, ErrHalted)
	}
	if destination == StationPrepare {
		return outcome, nil
	}

	if err := ctx.Err(); err != nil {
		return outcome, err
	}

	outcome, err = hooks.Promote(ctx)
	if err != nil {
		return outcome, fmt.Errorf("%s: %w", StationPromote, err)
	}
	if outcome.Halts() {
		return outcome, fmt.Errorf("%s: %w", StationPromote, ErrHalted)
	}
	return outcome, nil
}
