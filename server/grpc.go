package server

import (
	"context"
	"fmt"
	"math"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	. "hstin/isobar/helper"
	"hstin/isobar/render"
	"hstin/isobar/service"
)

const RenderServiceName = "isobar.v1.RenderService"

// RecvMsgSize is the receive limit clients should dial with. A full day
// animation is a single BytesValue and outgrows grpc-go's 4 MiB default on
// real WRF grids, so pass
// grpc.WithDefaultCallOptions(grpc.MaxCallRecvMsgSize(RecvMsgSize)).
const RecvMsgSize = 64 << 20

// RenderServiceServer mirrors the HTTP API. Requests carry the same fields
// as the query string (parameter, time_index, include_wind) in a Struct.
// StaticImage and ParameterAnimation answer with the encoded image in one
// message; see RecvMsgSize.
type RenderServiceServer interface {
	TimeInfo(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	StaticImage(context.Context, *structpb.Struct) (*wrapperspb.BytesValue, error)
	ParameterAnimation(context.Context, *structpb.Struct) (*wrapperspb.BytesValue, error)
	CreateShareableMap(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// unary builds the method descriptor for one RPC.
func unary[Req proto.Message, Resp any](name string, newReq func() Req, call func(RenderServiceServer, context.Context, Req) (Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := newReq()
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(RenderServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + RenderServiceName + "/" + name}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(RenderServiceServer), ctx, req.(Req))
			})
		},
	}
}

var RenderServiceDesc = grpc.ServiceDesc{
	ServiceName: RenderServiceName,
	HandlerType: (*RenderServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("TimeInfo", func() *emptypb.Empty { return new(emptypb.Empty) }, RenderServiceServer.TimeInfo),
		unary("StaticImage", func() *structpb.Struct { return new(structpb.Struct) }, RenderServiceServer.StaticImage),
		unary("ParameterAnimation", func() *structpb.Struct { return new(structpb.Struct) }, RenderServiceServer.ParameterAnimation),
		unary("CreateShareableMap", func() *structpb.Struct { return new(structpb.Struct) }, RenderServiceServer.CreateShareableMap),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "isobar/v1/render.proto",
}

type renderServer struct {
	svc *service.Service
}

func (s *renderServer) TimeInfo(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	info := s.svc.TimeInfo()
	times := make([]any, len(info.Times))
	for i, t := range info.Times {
		times[i] = t
	}
	out, err := structpb.NewStruct(map[string]any{
		"times":      times,
		"date":       info.Date,
		"timezone":   info.Timezone,
		"label_zone": info.LabelZone,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return out, nil
}

func (s *renderServer) StaticImage(ctx context.Context, in *structpb.Struct) (*wrapperspb.BytesValue, error) {
	req, err := structFrameRequest(in)
	if err != nil {
		return nil, toStatus(err)
	}
	data, err := s.svc.StaticImage(req)
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.Bytes(data), nil
}

func (s *renderServer) ParameterAnimation(ctx context.Context, in *structpb.Struct) (*wrapperspb.BytesValue, error) {
	req, err := structFrameRequest(in)
	if err != nil {
		return nil, toStatus(err)
	}
	data, err := s.svc.Animation(ctx, req.Parameter, req.IncludeWind)
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.Bytes(data), nil
}

func (s *renderServer) CreateShareableMap(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := structFrameRequest(in)
	if err != nil {
		return nil, toStatus(err)
	}
	url, err := s.svc.ShareableMap(req)
	if err != nil {
		return nil, toStatus(err)
	}
	return structpb.NewStruct(map[string]any{"success": true, "share_url": url})
}

func structFrameRequest(in *structpb.Struct) (render.FrameRequest, error) {
	fields := in.GetFields()

	parameter := fields["parameter"].GetStringValue()
	if parameter == "" {
		return render.FrameRequest{}, fmt.Errorf("%w: parameter is required", errBadRequest)
	}

	timeIndex := 0
	if v, ok := fields["time_index"]; ok {
		n, isNumber := v.GetKind().(*structpb.Value_NumberValue)
		if !isNumber || n.NumberValue != math.Trunc(n.NumberValue) || math.Abs(n.NumberValue) > math.MaxInt32 {
			return render.FrameRequest{}, fmt.Errorf("%w: time_index must be an integer", errBadRequest)
		}
		timeIndex = int(n.NumberValue)
	}

	includeWind := false
	if v, ok := fields["include_wind"]; ok {
		b, isBool := v.GetKind().(*structpb.Value_BoolValue)
		if !isBool {
			return render.FrameRequest{}, fmt.Errorf("%w: include_wind must be a boolean", errBadRequest)
		}
		includeWind = b.BoolValue
	}

	return render.FrameRequest{Parameter: parameter, TimeIndex: timeIndex, IncludeWind: includeWind}, nil
}

func toStatus(err error) error {
	code := grpcCode(err)
	if code == codes.Internal {
		Log.Error().Err(err).Msg("gRPC request failed")
	}
	return status.Error(code, err.Error())
}

func NewGRPCServer(svc *service.Service) *grpc.Server {
	s := grpc.NewServer(grpc.MaxSendMsgSize(RecvMsgSize))
	s.RegisterService(&RenderServiceDesc, &renderServer{svc: svc})
	reflection.Register(s)
	return s
}

func ServeGRPC(s *grpc.Server, lis net.Listener) error {
	Log.Info().Str("addr", lis.Addr().String()).Msg("gRPC server started")
	return s.Serve(lis)
}
