// Package lifetime implements the key lifetime state machine: a pure
// function from block heights to a Stage, expressed as exhaustive case
// analysis over a small enum rather than a class hierarchy.
package lifetime

import "fmt"

// Stage is where in its lifetime a key currently is.
type Stage int

const (
	// NotYetActive means current < the key's activation_block_number; the
	// key isn't considered for scanning at all yet.
	NotYetActive Stage = iota
	// Active keys receive all new user deposits.
	Active
	// UsedToForward means a successor is active; new deposits arriving at
	// this key are immediately forwarded to the successor instead of
	// being credited here.
	UsedToForward
	// Forwarding means existing outputs at this key are being migrated to
	// the successor; no new deposits are accepted.
	Forwarding
	// Finishing means no more deposits of any kind; the key only waits for
	// its outstanding Eventualities to resolve before retiring.
	Finishing
)

func (s Stage) String() string {
	switch s {
	case NotYetActive:
		return "NotYetActive"
	case Active:
		return "Active"
	case UsedToForward:
		return "UsedToForward"
	case Forwarding:
		return "Forwarding"
	case Finishing:
		return "Finishing"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

// The rotation schedule is expressed in multiples of TEN_MINUTES blocks, a
// chain-specific approximation of ten minutes of wall time. These multiples
// balance confirmation latency against rotation liveness and are exposed as
// named constants rather than inlined.
const (
	usedToForwardBlocksInTenMinutes = 6  // successor.activation .. +6*TEN_MINUTES
	forwardingBlocksInTenMinutes    = 6  // +6*TEN_MINUTES .. +12*TEN_MINUTES
	finishingBlocksInTenMinutes     = usedToForwardBlocksInTenMinutes + forwardingBlocksInTenMinutes
)

// ComputeStage computes the LifetimeStage of a key, given its own activation
// height, its successor's activation height (if any), the current block
// height, and the chain's TEN_MINUTES constant.
func ComputeStage(activation uint64, successorActivation *uint64, current uint64, tenMinutes uint64) Stage {
	if current < activation {
		return NotYetActive
	}
	if successorActivation == nil {
		return Active
	}
	succ := *successorActivation
	if current < succ {
		return Active
	}

	// Plain subtraction cannot underflow: current >= succ is guaranteed here.
	elapsed := current - succ

	usedToForwardSpan := usedToForwardBlocksInTenMinutes * tenMinutes
	forwardingEnd := finishingBlocksInTenMinutes * tenMinutes

	switch {
	case elapsed < usedToForwardSpan:
		return UsedToForward
	case elapsed < forwardingEnd:
		return Forwarding
	default:
		return Finishing
	}
}
