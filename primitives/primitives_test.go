package primitives

import (
	"bytes"
	"io"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/assert"
)

type fakeKey string

func (k fakeKey) String() string  { return string(k) }
func (k fakeKey) Encode() []byte  { return []byte(k) }

type fakeAddr string

func (a fakeAddr) String() string             { return string(a) }
func (a fakeAddr) WriteTo(w io.Writer) error  { _, err := w.Write([]byte(a)); return err }
func (a *fakeAddr) ReadFrom(r io.Reader) error { return nil }

type fakeOutput struct {
	id []byte
}

func (o fakeOutput) Id() []byte                 { return o.id }
func (o fakeOutput) Kind() OutputKind           { return External }
func (o fakeOutput) Key() fakeKey               { return "k" }
func (o fakeOutput) Addr() (fakeAddr, bool)      { return "", false }
func (o fakeOutput) Balance() Balance            { return Balance{} }
func (o fakeOutput) Data() []byte                { return nil }
func (o fakeOutput) WriteTo(w io.Writer) error   { return nil }

func TestSortOutputsOrdersByID(t *testing.T) {
	outs := []fakeOutput{{id: []byte("c")}, {id: []byte("a")}, {id: []byte("b")}}
	SortOutputs[fakeKey, fakeAddr](outs)
	assert.Equal(t, []byte("a"), outs[0].id, spew.Sdump(outs))
	assert.Equal(t, []byte("b"), outs[1].id)
	assert.Equal(t, []byte("c"), outs[2].id)
}

func TestSortOutputsPanicsOnDuplicateID(t *testing.T) {
	outs := []fakeOutput{{id: []byte("a")}, {id: []byte("a")}}
	defer func() {
		r := recover()
		assert.Equal(t, "two outputs within a collection had the same ID", r)
	}()
	SortOutputs[fakeKey, fakeAddr](outs)
	t.Fatal("expected a panic")
}

func TestReturnRoundTrip(t *testing.T) {
	ret := Return[fakeKey, fakeAddr, fakeOutput]{
		Address: "dest",
		Output:  fakeOutput{id: []byte("out-1")},
	}
	var buf bytes.Buffer
	assert.NoError(t, ret.WriteTo(&buf))

	got, err := ReadReturn[fakeKey, fakeAddr, fakeOutput](&buf, func() fakeAddr { return "" }, func(r io.Reader) (fakeOutput, error) {
		return fakeOutput{id: []byte("out-1")}, nil
	})
	assert.NoError(t, err)
	assert.Equal(t, ret.Address, got.Address)
	assert.Equal(t, ret.Output.Id(), got.Output.Id())
}

func TestPutGetUint64RoundTrip(t *testing.T) {
	assert.Equal(t, uint64(424242), GetUint64(PutUint64(424242)))
}
