// Package rpcapi defines the wire types and gRPC service wiring for the
// dialogtable RPC surface (spec §6). There is no protoc toolchain
// available in this repo, so the request/response types below are
// hand-written plain Go structs (gob-encoded, see codec.go) standing in
// for protoc-generated messages; the service registration in
// service.go is genuine grpc-go, built by hand in the same shape
// protoc-gen-go-grpc would emit.
package rpcapi

// ColumnSpec is the wire form of one schema column (spec §4.1's
// ColumnSpec), named Type by its string form (e.g. "LONG", "STRING").
type ColumnSpec struct {
	Name        string
	Type        string
	StringWidth int32
}

// CursorDescriptor is the wire form of session.CursorDescriptor.
type CursorDescriptor struct {
	HandlerID int64
	ID        int64
	Kind      int32
}

// IteratorHandle is the wire form spec §6 names rpc_iterator_handle.
type IteratorHandle struct {
	Descriptor CursorDescriptor
	Data       []byte
	NumEntries int32
	HasMore    bool
}

type RegisterHandlerRequest struct{}

type RegisterHandlerResponse struct {
	HandlerID int64
}

type DeregisterHandlerRequest struct {
	HandlerID int64
}

type DeregisterHandlerResponse struct{}

type CreateTableRequest struct {
	HandlerID   int64
	Name        string
	Schema      []ColumnSpec
	StorageMode int32
}

type CreateTableResponse struct{}

type SetCurrentTableRequest struct {
	HandlerID int64
	Name      string
}

type SetCurrentTableResponse struct {
	Schema []ColumnSpec
}

type AddIndexRequest struct {
	HandlerID  int64
	FieldName  string
	BucketSize float64
}

type AddIndexResponse struct{}

type RemoveIndexRequest struct {
	HandlerID int64
	FieldName string
}

type RemoveIndexResponse struct{}

type AddFilterRequest struct {
	HandlerID int64
	Name      string
	Expr      string
}

type AddFilterResponse struct{}

type RemoveFilterRequest struct {
	HandlerID int64
	Name      string
}

type RemoveFilterResponse struct{}

type AddTriggerRequest struct {
	HandlerID  int64
	Name       string
	FilterName string
	Expr       string
}

type AddTriggerResponse struct{}

type RemoveTriggerRequest struct {
	HandlerID int64
	Name      string
}

type RemoveTriggerResponse struct{}

type AppendRequest struct {
	HandlerID int64
	Data      []byte
}

type AppendResponse struct {
	Offset int64
}

type AppendBatchRequest struct {
	HandlerID int64
	Batch     [][]byte
}

type AppendBatchResponse struct {
	FirstOffset int64
}

type ReadRequest struct {
	HandlerID int64
	Offset    int64
	NRecords  int64
}

type ReadResponse struct {
	Data []byte
}

type AdhocFilterRequest struct {
	HandlerID int64
	Expr      string
}

type PredefFilterRequest struct {
	HandlerID int64
	Name      string
	BeginMs   int64
	EndMs     int64
}

type CombinedFilterRequest struct {
	HandlerID int64
	Name      string
	Expr      string
	BeginMs   int64
	EndMs     int64
}

type AlertsByTimeRequest struct {
	HandlerID int64
	BeginMs   int64
	EndMs     int64
}

// GetMoreRequest carries the handler_id of the caller separately from
// Descriptor.HandlerID, the cursor descriptor the caller is presenting:
// the server resolves the session to operate on from HandlerID, then
// checks Descriptor against that session, so a session can never page
// through another session's cursor by presenting its descriptor.
type GetMoreRequest struct {
	HandlerID  int64
	Descriptor CursorDescriptor
}

type NumRecordsRequest struct {
	HandlerID int64
}

type NumRecordsResponse struct {
	Count int64
}
