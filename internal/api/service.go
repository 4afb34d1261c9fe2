package api

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "ftcontroller.v1.Controller"

// ControllerServer is the operator-facing surface of the experiment controller.
type ControllerServer interface {
	GetView(ctx context.Context, in *Empty) (*View, error)
	UpdateDraft(ctx context.Context, in *UpdateDraftRequest) (*View, error)
	RunExperiment(ctx context.Context, in *Empty) (*RunExperimentResponse, error)
	InjectFault(ctx context.Context, in *InjectFaultRequest) (*FaultAck, error)
	ConfigureStrategy(ctx context.Context, in *Empty) (*ConfigureResponse, error)
	ListPresets(ctx context.Context, in *Empty) (*PresetsResponse, error)
	ApplyPreset(ctx context.Context, in *ApplyPresetRequest) (*View, error)
	ListHistory(ctx context.Context, in *HistoryRequest) (*HistoryResponse, error)
}

// Hand-written descriptor; messages travel through the JSON codec.
var controllerServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ControllerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetView", Handler: unaryHandler("GetView", ControllerServer.GetView)},
		{MethodName: "UpdateDraft", Handler: unaryHandler("UpdateDraft", ControllerServer.UpdateDraft)},
		{MethodName: "RunExperiment", Handler: unaryHandler("RunExperiment", ControllerServer.RunExperiment)},
		{MethodName: "InjectFault", Handler: unaryHandler("InjectFault", ControllerServer.InjectFault)},
		{MethodName: "ConfigureStrategy", Handler: unaryHandler("ConfigureStrategy", ControllerServer.ConfigureStrategy)},
		{MethodName: "ListPresets", Handler: unaryHandler("ListPresets", ControllerServer.ListPresets)},
		{MethodName: "ApplyPreset", Handler: unaryHandler("ApplyPreset", ControllerServer.ApplyPreset)},
		{MethodName: "ListHistory", Handler: unaryHandler("ListHistory", ControllerServer.ListHistory)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ftcontroller/v1/controller",
}

// RegisterControllerServer attaches srv to a gRPC server.
func RegisterControllerServer(s grpc.ServiceRegistrar, srv ControllerServer) {
	s.RegisterService(&controllerServiceDesc, srv)
}

func fullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

func unaryHandler[Req, Resp any](method string, call func(ControllerServer, context.Context, *Req) (*Resp, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ControllerServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(method)}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ControllerServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}
