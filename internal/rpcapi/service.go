package rpcapi

import (
	"context"

	"google.golang.org/grpc"
)

// DialogServiceServer is the server-side interface every RPC in spec
// §6's table maps onto. internal/handler's DialogHandler implements it.
type DialogServiceServer interface {
	RegisterHandler(context.Context, *RegisterHandlerRequest) (*RegisterHandlerResponse, error)
	DeregisterHandler(context.Context, *DeregisterHandlerRequest) (*DeregisterHandlerResponse, error)
	CreateTable(context.Context, *CreateTableRequest) (*CreateTableResponse, error)
	SetCurrentTable(context.Context, *SetCurrentTableRequest) (*SetCurrentTableResponse, error)
	AddIndex(context.Context, *AddIndexRequest) (*AddIndexResponse, error)
	RemoveIndex(context.Context, *RemoveIndexRequest) (*RemoveIndexResponse, error)
	AddFilter(context.Context, *AddFilterRequest) (*AddFilterResponse, error)
	RemoveFilter(context.Context, *RemoveFilterRequest) (*RemoveFilterResponse, error)
	AddTrigger(context.Context, *AddTriggerRequest) (*AddTriggerResponse, error)
	RemoveTrigger(context.Context, *RemoveTriggerRequest) (*RemoveTriggerResponse, error)
	Append(context.Context, *AppendRequest) (*AppendResponse, error)
	AppendBatch(context.Context, *AppendBatchRequest) (*AppendBatchResponse, error)
	Read(context.Context, *ReadRequest) (*ReadResponse, error)
	AdhocFilter(context.Context, *AdhocFilterRequest) (*IteratorHandle, error)
	PredefFilter(context.Context, *PredefFilterRequest) (*IteratorHandle, error)
	CombinedFilter(context.Context, *CombinedFilterRequest) (*IteratorHandle, error)
	AlertsByTime(context.Context, *AlertsByTimeRequest) (*IteratorHandle, error)
	GetMore(context.Context, *GetMoreRequest) (*IteratorHandle, error)
	NumRecords(context.Context, *NumRecordsRequest) (*NumRecordsResponse, error)
}

const serviceName = "dialogtable.DialogService"

// unaryHandler builds a grpc.MethodDesc handler for one RPC, generic
// over its request/response types so each of the service's nineteen
// methods doesn't need its own hand-copied decode/dispatch boilerplate.
func unaryHandler[Req, Resp any](method string, call func(DialogServiceServer, context.Context, *Req) (*Resp, error)) func(interface{}, context.Context, func(interface{}) error, grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(DialogServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/" + method}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(DialogServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ServiceDesc is the grpc.ServiceDesc for DialogServiceServer, built by
// hand in the shape protoc-gen-go-grpc would otherwise generate.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*DialogServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "RegisterHandler", Handler: unaryHandler("RegisterHandler", DialogServiceServer.RegisterHandler)},
		{MethodName: "DeregisterHandler", Handler: unaryHandler("DeregisterHandler", DialogServiceServer.DeregisterHandler)},
		{MethodName: "CreateTable", Handler: unaryHandler("CreateTable", DialogServiceServer.CreateTable)},
		{MethodName: "SetCurrentTable", Handler: unaryHandler("SetCurrentTable", DialogServiceServer.SetCurrentTable)},
		{MethodName: "AddIndex", Handler: unaryHandler("AddIndex", DialogServiceServer.AddIndex)},
		{MethodName: "RemoveIndex", Handler: unaryHandler("RemoveIndex", DialogServiceServer.RemoveIndex)},
		{MethodName: "AddFilter", Handler: unaryHandler("AddFilter", DialogServiceServer.AddFilter)},
		{MethodName: "RemoveFilter", Handler: unaryHandler("RemoveFilter", DialogServiceServer.RemoveFilter)},
		{MethodName: "AddTrigger", Handler: unaryHandler("AddTrigger", DialogServiceServer.AddTrigger)},
		{MethodName: "RemoveTrigger", Handler: unaryHandler("RemoveTrigger", DialogServiceServer.RemoveTrigger)},
		{MethodName: "Append", Handler: unaryHandler("Append", DialogServiceServer.Append)},
		{MethodName: "AppendBatch", Handler: unaryHandler("AppendBatch", DialogServiceServer.AppendBatch)},
		{MethodName: "Read", Handler: unaryHandler("Read", DialogServiceServer.Read)},
		{MethodName: "AdhocFilter", Handler: unaryHandler("AdhocFilter", DialogServiceServer.AdhocFilter)},
		{MethodName: "PredefFilter", Handler: unaryHandler("PredefFilter", DialogServiceServer.PredefFilter)},
		{MethodName: "CombinedFilter", Handler: unaryHandler("CombinedFilter", DialogServiceServer.CombinedFilter)},
		{MethodName: "AlertsByTime", Handler: unaryHandler("AlertsByTime", DialogServiceServer.AlertsByTime)},
		{MethodName: "GetMore", Handler: unaryHandler("GetMore", DialogServiceServer.GetMore)},
		{MethodName: "NumRecords", Handler: unaryHandler("NumRecords", DialogServiceServer.NumRecords)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "dialogtable.proto",
}

// RegisterDialogServiceServer registers srv with s, the way
// protoc-gen-go-grpc's generated RegisterXxxServer function would.
func RegisterDialogServiceServer(s grpc.ServiceRegistrar, srv DialogServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}
