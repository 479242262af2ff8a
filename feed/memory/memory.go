// Package memory provides in-memory test doubles for every capability
// primitives.go defines (Key, Address, Output, Eventuality, Block,
// Transaction) plus a ScannerFeed and BatchPublisher built on top of them,
// so scanner/scanner's end-to-end scenarios can run against a fully
// in-process chain instead of a real one: bare structs satisfying an
// interface rather than a mocking framework for simple value types --
// scannertest's hand-written stubs cover the behavior-heavy interfaces
// (Scheduler) where call expectations matter more than state.
package memory

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/klaytn/bridgescan/feed"
	"github.com/klaytn/bridgescan/primitives"
)

// Key is a fixed-size stand-in multisig key, satisfying primitives.Key's
// comparable requirement directly (a Go array, unlike a slice, compares by
// value).
type Key [4]byte

func (k Key) String() string  { return fmt.Sprintf("key-%x", [4]byte(k)) }
func (k Key) Encode() []byte  { return append([]byte(nil), k[:]...) }
func DecodeKey(b []byte) (Key, error) {
	var k Key
	if len(b) != len(k) {
		return k, fmt.Errorf("memory: bad key length %d", len(b))
	}
	copy(k[:], b)
	return k, nil
}

// Address is a plain string payment destination.
type Address string

func (a Address) String() string { return string(a) }
func (a Address) WriteTo(w io.Writer) error {
	b := []byte(a)
	if err := binary.Write(w, binary.BigEndian, uint32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}
func (a *Address) ReadFrom(r io.Reader) error {
	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return err
	}
	*a = Address(b)
	return nil
}
func NewAddress() Address { return "" }

// Output is a concrete primitives.Output[Key, Address].
type Output struct {
	ID       []byte
	KindV    primitives.OutputKind
	KeyV     Key
	AddrV    Address
	HasAddr  bool
	BalanceV primitives.Balance
	DataV    []byte
}

func (o Output) Id() []byte                    { return o.ID }
func (o Output) Kind() primitives.OutputKind    { return o.KindV }
func (o Output) Key() Key                       { return o.KeyV }
func (o Output) Addr() (Address, bool)          { return o.AddrV, o.HasAddr }
func (o Output) Balance() primitives.Balance    { return o.BalanceV }
func (o Output) Data() []byte                   { return o.DataV }

func (o Output) WriteTo(w io.Writer) error {
	if err := binary.Write(w, binary.BigEndian, uint32(len(o.ID))); err != nil {
		return err
	}
	if _, err := w.Write(o.ID); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, uint8(o.KindV)); err != nil {
		return err
	}
	if _, err := w.Write(o.KeyV.Encode()); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, o.HasAddr); err != nil {
		return err
	}
	if o.HasAddr {
		if err := o.AddrV.WriteTo(w); err != nil {
			return err
		}
	}
	if err := binary.Write(w, binary.BigEndian, uint32(o.BalanceV.Coin)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, uint64(o.BalanceV.Amount)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, uint32(len(o.DataV))); err != nil {
		return err
	}
	_, err := w.Write(o.DataV)
	return err
}

func ReadOutput(r io.Reader) (Output, error) {
	var o Output
	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return o, err
	}
	o.ID = make([]byte, n)
	if _, err := io.ReadFull(r, o.ID); err != nil {
		return o, err
	}
	var kind uint8
	if err := binary.Read(r, binary.BigEndian, &kind); err != nil {
		return o, err
	}
	o.KindV = primitives.OutputKind(kind)
	key := make([]byte, 4)
	if _, err := io.ReadFull(r, key); err != nil {
		return o, err
	}
	k, err := DecodeKey(key)
	if err != nil {
		return o, err
	}
	o.KeyV = k
	if err := binary.Read(r, binary.BigEndian, &o.HasAddr); err != nil {
		return o, err
	}
	if o.HasAddr {
		var a Address
		if err := a.ReadFrom(r); err != nil {
			return o, err
		}
		o.AddrV = a
	}
	var coin uint32
	if err := binary.Read(r, binary.BigEndian, &coin); err != nil {
		return o, err
	}
	var amount uint64
	if err := binary.Read(r, binary.BigEndian, &amount); err != nil {
		return o, err
	}
	o.BalanceV = primitives.Balance{Coin: primitives.Coin(coin), Amount: primitives.Amount(amount)}
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return o, err
	}
	o.DataV = make([]byte, n)
	_, err = io.ReadFull(r, o.DataV)
	return o, err
}

// Eventuality matches Transactions carrying the same LookupKey bytes.
type Eventuality struct {
	Lookup []byte
}

func (e Eventuality) LookupKey() []byte { return e.Lookup }
func (e Eventuality) WriteTo(w io.Writer) error {
	if err := binary.Write(w, binary.BigEndian, uint32(len(e.Lookup))); err != nil {
		return err
	}
	_, err := w.Write(e.Lookup)
	return err
}

func ReadEventuality(r io.Reader) (Eventuality, error) {
	var e Eventuality
	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return e, err
	}
	e.Lookup = make([]byte, n)
	_, err := io.ReadFull(r, e.Lookup)
	return e, err
}

// Transaction carries a lookup key tested against pending Eventualities.
type Transaction struct {
	Lookup []byte
}

func (tx Transaction) Matches(e primitives.Eventuality) bool {
	return bytes.Equal(tx.Lookup, e.LookupKey())
}

// Block is a hand-constructed block: a fixed set of transactions and, per
// key, the outputs scanning for that key should return.
type Block struct {
	IDV      primitives.BlockId
	NumberV  primitives.BlockNumber
	Txs      []Transaction
	ByKey    map[Key][]Output
}

func (b Block) Id() primitives.BlockId          { return b.IDV }
func (b Block) Number() primitives.BlockNumber  { return b.NumberV }
func (b Block) Transactions() []primitives.Transaction {
	out := make([]primitives.Transaction, len(b.Txs))
	for i, tx := range b.Txs {
		out[i] = tx
	}
	return out
}
func (b Block) ScanForOutputsUnordered(key Key) []Output {
	return b.ByKey[key]
}

// Feed is an in-memory feed.ScannerFeed[Key, Address, Output, Eventuality, Block].
// Blocks are appended with AddBlock; a block's index in Blocks is its own
// BlockNumber.
type Feed struct {
	mu             sync.Mutex
	Blocks         []Block
	NetworkV       string
	ConfirmationsV uint64
	WindowLengthV  uint64
	TenMinutesV    uint64
	DustV          map[primitives.Coin]primitives.Amount
	AggregateCostV primitives.Amount
}

func New(network string) *Feed {
	return &Feed{
		NetworkV:       network,
		ConfirmationsV: 3,
		WindowLengthV:  3,
		TenMinutesV:    5,
		DustV:          make(map[primitives.Coin]primitives.Amount),
	}
}

// AddBlock appends a block as the next height, finalizing it immediately
// (there is no reorg concept in this test double).
func (f *Feed) AddBlock(id primitives.BlockId, txs []Transaction, byKey map[Key][]Output) primitives.BlockNumber {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := primitives.BlockNumber(len(f.Blocks))
	f.Blocks = append(f.Blocks, Block{IDV: id, NumberV: n, Txs: txs, ByKey: byKey})
	return n
}

func (f *Feed) Network() string        { return f.NetworkV }
func (f *Feed) Confirmations() uint64  { return f.ConfirmationsV }
func (f *Feed) WindowLength() uint64   { return f.WindowLengthV }
func (f *Feed) TenMinutes() uint64     { return f.TenMinutesV }

func (f *Feed) LatestFinalizedBlockNumber(ctx context.Context) (primitives.BlockNumber, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Blocks) == 0 {
		return 0, fmt.Errorf("memory: no blocks yet")
	}
	return primitives.BlockNumber(len(f.Blocks) - 1), nil
}

func (f *Feed) UncheckedBlockHeaderByNumber(ctx context.Context, n primitives.BlockNumber) (primitives.BlockId, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n >= primitives.BlockNumber(len(f.Blocks)) {
		return nil, fmt.Errorf("memory: no block %d", n)
	}
	return f.Blocks[n].IDV, nil
}

func (f *Feed) UncheckedBlockByNumber(ctx context.Context, n primitives.BlockNumber) (Block, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n >= primitives.BlockNumber(len(f.Blocks)) {
		return Block{}, fmt.Errorf("memory: no block %d", n)
	}
	return f.Blocks[n], nil
}

func (f *Feed) Dust(coin primitives.Coin) primitives.Amount { return f.DustV[coin] }

func (f *Feed) CostToAggregate(ctx context.Context, coin primitives.Coin, referenceBlock Block) (primitives.Amount, error) {
	return f.AggregateCostV, nil
}

var _ feed.ScannerFeed[Key, Address, Output, Eventuality, Block] = (*Feed)(nil)

// Publisher records every published Batch in order, for test assertions.
type Publisher struct {
	mu      sync.Mutex
	Batches []primitives.Batch
}

func NewPublisher() *Publisher { return &Publisher{} }

func (p *Publisher) PublishBatch(ctx context.Context, batch primitives.Batch) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Batches = append(p.Batches, batch)
	return nil
}

var _ feed.BatchPublisher = (*Publisher)(nil)
