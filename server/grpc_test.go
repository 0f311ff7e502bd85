package server

import (
	"bytes"
	"context"
	"image/png"
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

func newTestConn(t *testing.T, steps int) (*grpc.ClientConn, testEnv) {
	t.Helper()
	env := newTestEnv(t, steps)

	lis := bufconn.Listen(1 << 20)
	srv := NewGRPCServer(env.svc)
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.MaxCallRecvMsgSize(RecvMsgSize)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn, env
}

func method(name string) string {
	return "/" + RenderServiceName + "/" + name
}

func request(t *testing.T, fields map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(fields)
	require.NoError(t, err)
	return s
}

func TestGRPC_TimeInfo(t *testing.T) {
	conn, _ := newTestConn(t, 24)

	out := new(structpb.Struct)
	require.NoError(t, conn.Invoke(context.Background(), method("TimeInfo"), &emptypb.Empty{}, out))

	times := out.GetFields()["times"].GetListValue().GetValues()
	require.Len(t, times, 24)
	assert.Equal(t, "00:00", times[0].GetStringValue())
	assert.Equal(t, "23:00", times[23].GetStringValue())
	assert.Equal(t, "04/03/2025", out.GetFields()["date"].GetStringValue())
	assert.Equal(t, "UTC", out.GetFields()["label_zone"].GetStringValue())
}

func TestGRPC_StaticImage(t *testing.T) {
	conn, _ := newTestConn(t, 2)

	out := new(wrapperspb.BytesValue)
	err := conn.Invoke(context.Background(), method("StaticImage"), request(t, map[string]any{
		"parameter":    "wind_vector",
		"time_index":   1,
		"include_wind": false,
	}), out)
	require.NoError(t, err)

	_, err = png.Decode(bytes.NewReader(out.GetValue()))
	assert.NoError(t, err)
}

func TestGRPC_ParameterAnimation(t *testing.T) {
	conn, _ := newTestConn(t, 2)

	out := new(wrapperspb.BytesValue)
	err := conn.Invoke(context.Background(), method("ParameterAnimation"), request(t, map[string]any{"parameter": "rain"}), out)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out.GetValue(), []byte("GIF89a")))
}

func TestGRPC_RecvMsgSizeAboveClientDefault(t *testing.T) {
	const grpcDefaultRecv = 4 << 20
	assert.Greater(t, RecvMsgSize, grpcDefaultRecv)
}

func TestGRPC_CreateShareableMap(t *testing.T) {
	conn, _ := newTestConn(t, 2)

	out := new(structpb.Struct)
	err := conn.Invoke(context.Background(), method("CreateShareableMap"), request(t, map[string]any{"parameter": "no2"}), out)
	require.NoError(t, err)

	assert.True(t, out.GetFields()["success"].GetBoolValue())
	assert.True(t, strings.HasPrefix(out.GetFields()["share_url"].GetStringValue(), "/static/no2_0_"))
}

func TestGRPC_ErrorCodes(t *testing.T) {
	conn, _ := newTestConn(t, 2)

	cases := []struct {
		fields map[string]any
		want   codes.Code
	}{
		{map[string]any{"parameter": "humidity"}, codes.NotFound},
		{map[string]any{"parameter": "rain", "time_index": 2}, codes.OutOfRange},
		{map[string]any{"parameter": "rain", "time_index": 0.5}, codes.InvalidArgument},
		{map[string]any{"parameter": "rain", "include_wind": "yes"}, codes.InvalidArgument},
		{map[string]any{}, codes.InvalidArgument},
	}

	for _, tc := range cases {
		err := conn.Invoke(context.Background(), method("StaticImage"), request(t, tc.fields), new(wrapperspb.BytesValue))
		assert.Equal(t, tc.want, status.Code(err), tc.fields)
	}
}
