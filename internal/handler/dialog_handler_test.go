package handler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dialogtable/dialogtable/internal/model"
	"github.com/dialogtable/dialogtable/internal/rpcapi"
	"github.com/dialogtable/dialogtable/internal/session"
	"github.com/dialogtable/dialogtable/internal/store"
	"github.com/dialogtable/dialogtable/internal/util/workerpool"
)

func testHandler(t *testing.T) *DialogHandler {
	pool := workerpool.NewWorkerPool(&workerpool.Config{Name: "test", MaxWorkers: 2, QueueSize: 8, Logger: zap.NewNop()})
	t.Cleanup(func() { pool.Stop(0) })
	st := store.New(pool, zap.NewNop())
	sessions := session.NewManager(st, 10)
	return New(st, sessions, zap.NewNop())
}

func registerAndCreateTable(t *testing.T, h *DialogHandler) int64 {
	reg, err := h.RegisterHandler(context.Background(), &rpcapi.RegisterHandlerRequest{})
	require.NoError(t, err)

	_, err = h.CreateTable(context.Background(), &rpcapi.CreateTableRequest{
		HandlerID: reg.HandlerID,
		Name:      "events",
		Schema: []rpcapi.ColumnSpec{
			{Name: "level", Type: "LONG"},
		},
		StorageMode: int32(model.StorageModeInMemory),
	})
	require.NoError(t, err)

	_, err = h.SetCurrentTable(context.Background(), &rpcapi.SetCurrentTableRequest{
		HandlerID: reg.HandlerID,
		Name:      "events",
	})
	require.NoError(t, err)

	return reg.HandlerID
}

func TestDialogHandler_CreateTableAndAppendRead(t *testing.T) {
	h := testHandler(t)
	handlerID := registerAndCreateTable(t, h)

	sch, err := h.SetCurrentTable(context.Background(), &rpcapi.SetCurrentTableRequest{HandlerID: handlerID, Name: "events"})
	require.NoError(t, err)
	require.Len(t, sch.Schema, 2) // implicit timestamp + level

	appendResp, err := h.Append(context.Background(), &rpcapi.AppendRequest{
		HandlerID: handlerID,
		Data:      make([]byte, 16),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), appendResp.Offset)

	readResp, err := h.Read(context.Background(), &rpcapi.ReadRequest{HandlerID: handlerID, Offset: 0, NRecords: 1})
	require.NoError(t, err)
	assert.Len(t, readResp.Data, 16)
}

func TestDialogHandler_CreateTable_InvalidNameRejected(t *testing.T) {
	h := testHandler(t)
	reg, err := h.RegisterHandler(context.Background(), &rpcapi.RegisterHandlerRequest{})
	require.NoError(t, err)

	_, err = h.CreateTable(context.Background(), &rpcapi.CreateTableRequest{
		HandlerID:   reg.HandlerID,
		Name:        "9bad",
		Schema:      []rpcapi.ColumnSpec{{Name: "x", Type: "LONG"}},
		StorageMode: int32(model.StorageModeInMemory),
	})
	require.Error(t, err)
	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, codes.InvalidArgument, st.Code())
}

func TestDialogHandler_SetCurrentTable_UnknownTableIsFailedPrecondition(t *testing.T) {
	h := testHandler(t)
	reg, err := h.RegisterHandler(context.Background(), &rpcapi.RegisterHandlerRequest{})
	require.NoError(t, err)

	_, err = h.SetCurrentTable(context.Background(), &rpcapi.SetCurrentTableRequest{HandlerID: reg.HandlerID, Name: "ghost"})
	require.Error(t, err)
	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, codes.FailedPrecondition, st.Code())
}

func TestDialogHandler_AddFilterAndAdhocQuery(t *testing.T) {
	h := testHandler(t)
	handlerID := registerAndCreateTable(t, h)

	_, err := h.AddFilter(context.Background(), &rpcapi.AddFilterRequest{HandlerID: handlerID, Name: "high", Expr: "level > 5"})
	require.NoError(t, err)

	for _, v := range []int64{1, 10, 20} {
		rec := make([]byte, 16)
		rec[8] = byte(v)
		_, err := h.Append(context.Background(), &rpcapi.AppendRequest{HandlerID: handlerID, Data: rec})
		require.NoError(t, err)
	}

	handle, err := h.AdhocFilter(context.Background(), &rpcapi.AdhocFilterRequest{HandlerID: handlerID, Expr: "level > 5"})
	require.NoError(t, err)
	assert.False(t, handle.HasMore)
	assert.Equal(t, model.IteratorAdhoc, model.IteratorKind(handle.Descriptor.Kind))
}

func TestDialogHandler_AddFilter_EmptyExprRejected(t *testing.T) {
	h := testHandler(t)
	handlerID := registerAndCreateTable(t, h)

	_, err := h.AddFilter(context.Background(), &rpcapi.AddFilterRequest{HandlerID: handlerID, Name: "bad", Expr: "   "})
	require.Error(t, err)
	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, codes.InvalidArgument, st.Code())
}

func TestDialogHandler_DeregisterHandler_UnknownFails(t *testing.T) {
	h := testHandler(t)
	_, err := h.DeregisterHandler(context.Background(), &rpcapi.DeregisterHandlerRequest{HandlerID: 999})
	require.Error(t, err)
}

func TestDialogHandler_GetMore_CrossSessionDescriptorRejected(t *testing.T) {
	h := testHandler(t)
	handlerID := registerAndCreateTable(t, h)

	for _, v := range []int64{1, 2, 3} {
		rec := make([]byte, 16)
		rec[8] = byte(v)
		_, err := h.Append(context.Background(), &rpcapi.AppendRequest{HandlerID: handlerID, Data: rec})
		require.NoError(t, err)
	}

	handle, err := h.AdhocFilter(context.Background(), &rpcapi.AdhocFilterRequest{HandlerID: handlerID, Expr: "level > 0"})
	require.NoError(t, err)

	other, err := h.RegisterHandler(context.Background(), &rpcapi.RegisterHandlerRequest{})
	require.NoError(t, err)

	_, err = h.GetMore(context.Background(), &rpcapi.GetMoreRequest{
		HandlerID:  other.HandlerID,
		Descriptor: handle.Descriptor,
	})
	require.Error(t, err)
	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, codes.InvalidArgument, st.Code())
}

func TestDialogHandler_NumRecords(t *testing.T) {
	h := testHandler(t)
	handlerID := registerAndCreateTable(t, h)

	_, err := h.Append(context.Background(), &rpcapi.AppendRequest{HandlerID: handlerID, Data: make([]byte, 16)})
	require.NoError(t, err)

	resp, err := h.NumRecords(context.Background(), &rpcapi.NumRecordsRequest{HandlerID: handlerID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), resp.Count)
}
