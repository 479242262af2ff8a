package audit

import (
	"testing"

	"github.com/klaytn/bridgescan/primitives"
)

// TestNoopLedgerIsSafe matches deployments that never call Open: every
// method on a nil *Ledger must be a no-op rather than a nil-pointer panic.
func TestNoopLedgerIsSafe(t *testing.T) {
	l := NewNoopLedger()
	l.RecordBatch(primitives.Batch{Network: "testnet", Id: 1})
	l.RecordAcknowledgement(42)
	if err := l.Close(); err != nil {
		t.Fatalf("Close on a noop ledger must not error, got %v", err)
	}
}
