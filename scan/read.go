package scan

import (
	"io"

	"github.com/klaytn/bridgescan/db"
	"github.com/klaytn/bridgescan/primitives"
)

// Outputs returns the ScanOutputs persisted for key encKey in block n,
// already in sort_outputs order since that's the order they were scanned
// and persisted in.
func Outputs[K primitives.Key, A primitives.Address, O primitives.Output[K, A]](
	t db.Txn, n primitives.BlockNumber, encKey []byte, readOutput func(io.Reader) (O, error),
) []ScanOutput[K, A, O] {
	return db.Outputs(t, n, encKey, func(r io.Reader) (ScanOutput[K, A, O], error) {
		return ReadScanOutput(r, readOutput)
	})
}
