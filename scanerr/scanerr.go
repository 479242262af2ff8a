// Package scanerr distinguishes the three classes of error condition the
// scanner can hit: an Ephemeral error is retried forever by
// task.ContinuallyRun and logged at Warn; an Invariant violation panics --
// continuing risks a double-spend, so there is no recovery path; a
// Rejection is not an error at all, just a dropped-output decision counted
// in metrics, and is never represented as a Go error value.
// github.com/pkg/errors is layered on top of Invariant so a panic carries a
// stack trace instead of a bare message.
package scanerr

import (
	"fmt"

	"github.com/klaytn/bridgescan/log"
	"github.com/pkg/errors"
)

// Ephemeral wraps an error known to be transient: a network blip, a node
// temporarily behind, a Kafka broker unreachable. task.ContinuallyRun
// retries on any non-nil error returned from Tick, so in practice every
// error a Task hands back must already be one of these -- wrapping is a
// documentation aid for call sites that want to be explicit about it.
type Ephemeral struct {
	Op  string
	Err error
}

func (e *Ephemeral) Error() string {
	return fmt.Sprintf("%s: %v (will retry)", e.Op, e.Err)
}

func (e *Ephemeral) Unwrap() error { return e.Err }

// WrapEphemeral tags err as ephemeral for op, or returns nil unchanged.
func WrapEphemeral(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Ephemeral{Op: op, Err: err}
}

// Invariant panics immediately: msg describes the double-spend-risking
// condition observed. Every call site that would otherwise need to return
// an error it has no sane recovery for calls this instead. The panic value
// carries both a stack trace (github.com/pkg/errors) and the immediate
// caller's frame, so the log line pointing at the panic names the call
// site that detected the violation, not just scanerr.Invariant itself.
func Invariant(msg string, args ...interface{}) {
	frame := log.CallerFrame(1)
	panic(errors.Errorf("%s (at %v)", fmt.Sprintf(msg, args...), frame))
}

// Reason classifies a silently-dropped output for metrics, never returned
// as an error: a dust filter, an unrefundable Finishing output, or an
// unknown address all drop the output without surfacing a Go error.
type Reason string

const (
	ReasonDust           Reason = "dust"
	ReasonUnrefundable   Reason = "unrefundable"
	ReasonUncoveredByFee Reason = "not_worth_aggregating"
	ReasonDuplicateID    Reason = "duplicate_output_id"
)

// Rejection records a dropped output for the rejected_outputs_total metric.
// It carries no error semantics; callers pass it straight to
// metrics.Recorder.RejectedOutput and otherwise discard it.
type Rejection struct {
	Reason Reason
	Coin   uint32
}
