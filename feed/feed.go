// Package feed defines ScannerFeed and BatchPublisher, the two interfaces
// the scanner consumes from the chain-specific fetch driver and the batch
// transport. Both are out of scope to implement generically -- each chain
// integration supplies its own -- but the scanner core pins down exactly
// what it needs from them here.
package feed

import (
	"context"

	"github.com/klaytn/bridgescan/primitives"
)

// ScannerFeed is everything the scanner needs from a chain-specific fetch
// driver: block/header fetch, the dust threshold, and aggregation cost.
// Errors returned from any method MUST be ephemeral -- retrying eventually
// resolves without manual intervention.
type ScannerFeed[K primitives.Key, A primitives.Address, O primitives.Output[K, A], E primitives.Eventuality, B primitives.Block[K, A, O, E]] interface {
	// Network identifies which chain this feed scans.
	Network() string
	// Confirmations is how many confirmations a block needs to be
	// considered finalized. Must be >= 1.
	Confirmations() uint64
	// WindowLength bounds how far ahead of the last acknowledged block the
	// scanner may scan. Must satisfy 1 <= WindowLength <= Confirmations.
	WindowLength() uint64
	// TenMinutes is the chain-specific block count approximating ten
	// minutes of wall time, feeding the lifetime state machine. Must be
	// >= 1.
	TenMinutes() uint64

	LatestFinalizedBlockNumber(ctx context.Context) (primitives.BlockNumber, error)
	UncheckedBlockHeaderByNumber(ctx context.Context, n primitives.BlockNumber) (primitives.BlockId, error)
	UncheckedBlockByNumber(ctx context.Context, n primitives.BlockNumber) (B, error)

	// Dust is the minimum amount worth crediting for the given coin. This
	// MUST be constant; the scanner never creates internal outputs worth
	// less than this.
	Dust(coin primitives.Coin) primitives.Amount
	// CostToAggregate is the fee for a 2-input, 1-output transaction as of
	// referenceBlock, used to decide whether a rejected-but-refundable
	// output is worth returning.
	CostToAggregate(ctx context.Context, coin primitives.Coin, referenceBlock B) (primitives.Amount, error)
}

// BatchPublisher hands finished Batches off to the external consensus
// layer's ingestion pipeline. PublishBatch MUST be safe to call with the
// same Batch multiple times -- the Report task retries forever on ephemeral
// errors and may re-publish a Batch it already succeeded on if it crashed
// between the call succeeding and its own bookkeeping commit.
type BatchPublisher interface {
	PublishBatch(ctx context.Context, batch primitives.Batch) error
}
