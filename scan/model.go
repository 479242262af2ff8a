package scan

import (
	"encoding/binary"
	"io"

	"github.com/klaytn/bridgescan/primitives"
)

// Disposition is the classification Scan assigns a kept External output at
// the moment it scans it. It's persisted alongside
// the output rather than recomputed later: by the time Eventuality reads
// block n back, further key rotation may have moved the owning key past the
// LifetimeStage it had when Scan looked at it, and the disposition decision
// must not change retroactively.
type Disposition int

const (
	// Credit is a new deposit accepted by an Active key.
	Credit Disposition = iota
	// Forward is a deposit arriving at a key in UsedToForward, to be routed
	// to its successor once acknowledged.
	Forward
	// Returned is a rejected-but-refundable output (key Forwarding/Finishing,
	// address known, balance covers dust+aggregation).
	Returned
	// Passthrough is any non-External output (Branch/Change/Forwarded):
	// always kept, never classified by LifetimeStage.
	Passthrough
)

// ScanOutput pairs a scanned output with Scan's disposition for it. This is
// the element type persisted at scanner/outputs/<n>/<K>; Eventuality buckets
// a block's ScanOutputs into SchedulerUpdate{Outputs, Forwards, Returns} by
// Disposition.
type ScanOutput[K primitives.Key, A primitives.Address, O primitives.Output[K, A]] struct {
	Output      O
	Disposition Disposition
}

func (s ScanOutput[K, A, O]) WriteTo(w io.Writer) error {
	if err := binary.Write(w, binary.BigEndian, uint8(s.Disposition)); err != nil {
		return err
	}
	return s.Output.WriteTo(w)
}

// ReadScanOutput is the inverse of WriteTo. readOutput constructs O the same
// way callers of primitives.ReadReturn do.
func ReadScanOutput[K primitives.Key, A primitives.Address, O primitives.Output[K, A]](r io.Reader, readOutput func(io.Reader) (O, error)) (ScanOutput[K, A, O], error) {
	var out ScanOutput[K, A, O]
	var d uint8
	if err := binary.Read(r, binary.BigEndian, &d); err != nil {
		return out, err
	}
	o, err := readOutput(r)
	if err != nil {
		return out, err
	}
	out.Disposition = Disposition(d)
	out.Output = o
	return out, nil
}
