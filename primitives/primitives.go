// Package primitives defines the capability set the scanner core is generic
// over: Block, Output, Key, Address, Eventuality. Each external chain
// provides exactly one implementation of this set; the scanner never knows
// which chain it is running against.
package primitives

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// BlockNumber is a monotonic, zero-indexed block height. Genesis is 0.
type BlockNumber = uint64

// BlockId opaquely identifies a block within the external chain's consensus.
type BlockId []byte

// Coin identifies a unit of value native to the external chain (the chain
// may support several, e.g. an ETH bridge also forwarding ERC20s).
type Coin uint32

// Amount is a balance value. Design constant: 1 unit == 1e12 (UNIT) --
// callers are expected to scale into this fixed-point representation
// before handing an Amount to the scanner.
type Amount uint64

const Unit = Amount(1_000_000_000_000)

// Balance pairs a Coin with an Amount, as used throughout Output/Return.
type Balance struct {
	Coin   Coin
	Amount Amount
}

// Key identifies a threshold-signed multisig group key. It must be directly
// comparable (used as a map key throughout the scanner) and encodable for
// persistence.
type Key interface {
	comparable
	fmt.Stringer
	Encode() []byte
}

// Address is a chain-specific payment destination, used for Returns.
type Address interface {
	WriteTo(w io.Writer) error
	ReadFrom(r io.Reader) error
	fmt.Stringer
}

// OutputKind classifies the provenance of a scanned Output. Only External
// outputs produce Batch InInstructions.
type OutputKind int

const (
	// External is a user deposit from outside the bridge's own control.
	External OutputKind = iota
	// Branch is an internal output produced while fulfilling a Burn,
	// existing purely to carry a tracked change output.
	Branch
	// Change is leftover value returned to the multisig's own keys by a
	// planned transaction.
	Change
	// Forwarded is an output moved from a retiring key to its successor
	// during key rotation.
	Forwarded
)

func (k OutputKind) String() string {
	switch k {
	case External:
		return "External"
	case Branch:
		return "Branch"
	case Change:
		return "Change"
	case Forwarded:
		return "Forwarded"
	default:
		return fmt.Sprintf("OutputKind(%d)", int(k))
	}
}

// Output is a single payment discovered by scanning a block for a Key.
type Output[K Key, A Address] interface {
	// Id uniquely identifies this output within any collection it's part
	// of. sort_outputs panics if two outputs in the same collection carry
	// equal IDs.
	Id() []byte
	Kind() OutputKind
	Key() K
	// Addr is the refund address for this output, if known. Returns false
	// if the chain can't recover a payer address (e.g. a fully shielded
	// input), in which case the output can never generate a Return.
	Addr() (A, bool)
	Balance() Balance
	// Data is caller-supplied calldata/memo attached to the deposit (e.g.
	// a bridge destination address encoded in an OP_RETURN).
	Data() []byte

	WriteTo(w io.Writer) error
}

// Eventuality is a predicate matching a single expected future outbound
// transaction. Implementations hold whatever lookup key (nonce, commitment,
// spent output reference, ...) their chain uses to recognize completion.
type Eventuality interface {
	// LookupKey is the value used to index pending Eventualities for fast
	// per-transaction matching (e.g. a contract nonce, or a spent output
	// reference for UTXO chains).
	LookupKey() []byte
	WriteTo(w io.Writer) error
}

// Transaction is the minimal capability the Eventuality task needs from a
// block's transactions: something to test pending Eventualities against.
type Transaction interface {
	Matches(e Eventuality) bool
}

// Block is a consensus event carrying transactions, identified by an
// opaque BlockId.
type Block[K Key, A Address, O Output[K, A], E Eventuality] interface {
	Id() BlockId
	Number() BlockNumber
	Transactions() []Transaction
	// ScanForOutputsUnordered returns every output in this block payable to
	// key, in no particular order; sort_outputs imposes the order.
	ScanForOutputsUnordered(key K) []O
}

// SortOutputs imposes a strict total order on IDs and panics on a
// duplicate ID: two outputs sharing an ID within one block is an invariant
// violation, not a condition callers can recover from.
func SortOutputs[K Key, A Address, O Output[K, A]](outputs []O) {
	sortOutputsBy(outputs, func(a, b O) int {
		return bytes.Compare(a.Id(), b.Id())
	})
}

func sortOutputsBy[O any](outputs []O, cmp func(a, b O) int) {
	// insertion sort is sufficient: blocks carry at most a few hundred
	// outputs per key, and we need the panic-on-equal check at every
	// comparison anyway.
	for i := 1; i < len(outputs); i++ {
		j := i
		for j > 0 {
			c := cmp(outputs[j-1], outputs[j])
			if c == 0 {
				panic("two outputs within a collection had the same ID")
			}
			if c < 0 {
				break
			}
			outputs[j-1], outputs[j] = outputs[j], outputs[j-1]
			j--
		}
	}
}

// Return is an output that cannot be credited and must be refunded to its
// source address.
type Return[K Key, A Address, O Output[K, A]] struct {
	Address A
	Output  O
}

// WriteTo serializes a Return as address then output, back to back.
func (r Return[K, A, O]) WriteTo(w io.Writer) error {
	if err := r.Address.WriteTo(w); err != nil {
		return err
	}
	return r.Output.WriteTo(w)
}

// ReadReturn is the inverse of WriteTo. Address and Output are constructed
// via the supplied factories since Go generics can't express "construct the
// zero value of an interface type" directly.
func ReadReturn[K Key, A Address, O Output[K, A]](r io.Reader, newAddr func() A, readOutput func(io.Reader) (O, error)) (Return[K, A, O], error) {
	var ret Return[K, A, O]
	addr := newAddr()
	if err := addr.ReadFrom(r); err != nil {
		return ret, err
	}
	out, err := readOutput(r)
	if err != nil {
		return ret, err
	}
	ret.Address = addr
	ret.Output = out
	return ret, nil
}

// SchedulerUpdate is the Eventuality task's hand-off to the Scheduler upon
// acknowledging a block.
type SchedulerUpdate[K Key, A Address, O Output[K, A]] struct {
	Outputs  []O
	Forwards []O
	Returns  []Return[K, A, O]
}

// Batch is an externally-ordered sequence of InInstructions derived from
// External outputs, tagged with a network and a per-network monotonic id.
type Batch struct {
	Network   string
	Id        uint32
	Instructions []InInstruction
}

// InInstruction is a single inbound instruction derived from one External
// output.
type InInstruction struct {
	Origin  []byte // the address.String() of the depositor, if known
	Coin    Coin
	Amount  Amount
	Data    []byte
}

// PutUint64 / GetUint64 are the big-endian encodings used throughout the
// persisted schema for BlockNumber keys, matching db_manager.go's own
// encoding/binary usage for numeric keys.
func PutUint64(n uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, n)
	return b
}

func GetUint64(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}
