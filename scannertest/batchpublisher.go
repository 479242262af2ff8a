// Package scannertest provides test doubles for the scanner's interfaces,
// using the //go:generate mockgen convention for the one non-generic
// interface, feed.BatchPublisher. golang/mock's generated code doesn't
// support Go generics, so the generic scheduler.Scheduler gets a
// hand-written function-field stub instead of a gomock.Controller-based
// mock. There is no feed.ScannerFeed stub: feed/memory's concrete types
// cover that need for full end-to-end scenarios; the stubs here are for unit
// tests that want to assert a specific call sequence without a whole fake
// chain behind it.
package scannertest

import (
	"context"
	"reflect"

	"github.com/golang/mock/gomock"

	"github.com/klaytn/bridgescan/primitives"
)

//go:generate mockgen -destination=./mock_batchpublisher.go -package=scannertest github.com/klaytn/bridgescan/feed BatchPublisher

// MockBatchPublisher is a gomock.Controller-driven mock of
// feed.BatchPublisher, hand-written in the shape mockgen would emit (no
// generics are involved in this interface, so a real `go generate` run
// would produce the equivalent of this file).
type MockBatchPublisher struct {
	ctrl     *gomock.Controller
	recorder *MockBatchPublisherRecorder
}

type MockBatchPublisherRecorder struct {
	mock *MockBatchPublisher
}

func NewMockBatchPublisher(ctrl *gomock.Controller) *MockBatchPublisher {
	m := &MockBatchPublisher{ctrl: ctrl}
	m.recorder = &MockBatchPublisherRecorder{mock: m}
	return m
}

func (m *MockBatchPublisher) EXPECT() *MockBatchPublisherRecorder { return m.recorder }

func (m *MockBatchPublisher) PublishBatch(ctx context.Context, batch primitives.Batch) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "PublishBatch", ctx, batch)
	ret0, _ := ret[0].(error)
	return ret0
}

func (mr *MockBatchPublisherRecorder) PublishBatch(ctx, batch interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "PublishBatch",
		reflect.TypeOf((*MockBatchPublisher)(nil).PublishBatch), ctx, batch)
}
