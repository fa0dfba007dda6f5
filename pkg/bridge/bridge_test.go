package bridge

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	reflectionv1 "google.golang.org/grpc/reflection/grpc_reflection_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/getmockd/protomock/pkg/client"
	"github.com/getmockd/protomock/pkg/config"
	"github.com/getmockd/protomock/pkg/metrics"
	"github.com/getmockd/protomock/pkg/server"
	"github.com/getmockd/protomock/pkg/stub"
)

type harness struct {
	mock *server.Server
	conn *grpc.ClientConn
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()

	serverOpts := config.DefaultServerOptions()
	serverOpts.BindAddress = "127.0.0.1"
	serverOpts.RootDir = t.TempDir()
	mock := server.New(serverOpts)
	require.NoError(t, mock.Start(context.Background()))
	t.Cleanup(func() { _ = mock.Stop(context.Background()) })

	b := New(loadEchoSchema(t), client.NewForServer(mock), opts...)
	lis := bufconn.Listen(1 << 20)
	go func() { _ = b.Serve(lis) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		b.Stop(ctx)
	})

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return &harness{mock: mock, conn: conn}
}

func (h *harness) stub(t *testing.T, st *stub.Stub) {
	t.Helper()
	_, err := h.mock.Stubs().Add(st)
	require.NoError(t, err)
}

func callCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestBridge_Unary(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.stub(t, &stub.Stub{
		Request:  stub.Request{Method: http.MethodPost, URLPath: "/echo.v1.Echo/Say"},
		Response: stub.Response{JSONBody: "hello"},
	})

	before := testutil.ToFloat64(metrics.BridgeCallsTotal.WithLabelValues("echo.v1.Echo/Say", "OK"))

	var out wrapperspb.StringValue
	err := h.conn.Invoke(callCtx(t), "/echo.v1.Echo/Say", wrapperspb.String("hi"), &out)
	require.NoError(t, err)
	assert.Equal(t, "hello", out.GetValue())

	logged := h.mock.Journal().List()
	require.Len(t, logged, 1)
	assert.Equal(t, `"hi"`, logged[0].Body)
	assert.True(t, logged[0].Matched)

	after := testutil.ToFloat64(metrics.BridgeCallsTotal.WithLabelValues("echo.v1.Echo/Say", "OK"))
	assert.Equal(t, before+1, after)
}

func TestBridge_MetadataIsPropagated(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.stub(t, &stub.Stub{
		Request:  stub.Request{URLPath: "/echo.v1.Echo/Say"},
		Response: stub.Response{JSONBody: "generic"},
	})
	h.stub(t, &stub.Stub{
		Priority: 1,
		Request: stub.Request{
			URLPath: "/echo.v1.Echo/Say",
			Headers: map[string]string{"x-tenant": "acme"},
		},
		Response: stub.Response{JSONBody: "tenant"},
	})

	var out wrapperspb.StringValue
	ctx := metadata.AppendToOutgoingContext(callCtx(t), "x-tenant", "acme")
	require.NoError(t, h.conn.Invoke(ctx, "/echo.v1.Echo/Say", wrapperspb.String(""), &out))
	assert.Equal(t, "tenant", out.GetValue())

	require.NoError(t, h.conn.Invoke(callCtx(t), "/echo.v1.Echo/Say", wrapperspb.String(""), &out))
	assert.Equal(t, "generic", out.GetValue())
}

func TestBridge_ServerStreaming(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.stub(t, &stub.Stub{
		Request: stub.Request{URLPath: "/echo.v1.Echo/SayMany"},
		Response: stub.Response{
			Headers:  map[string]string{client.StreamSizeHeader: "3"},
			JSONBody: "tick",
		},
	})

	stream, err := h.conn.NewStream(callCtx(t), &grpc.StreamDesc{ServerStreams: true}, "/echo.v1.Echo/SayMany")
	require.NoError(t, err)
	require.NoError(t, stream.SendMsg(wrapperspb.String("go")))
	require.NoError(t, stream.CloseSend())

	var got []string
	for {
		var msg wrapperspb.StringValue
		err := stream.RecvMsg(&msg)
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		got = append(got, msg.GetValue())
	}
	assert.Equal(t, []string{"tick", "tick", "tick"}, got)
}

func TestBridge_ServerStreamingDefaultsToOne(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.stub(t, &stub.Stub{
		Request:  stub.Request{URLPath: "/echo.v1.Echo/SayMany"},
		Response: stub.Response{JSONBody: "once"},
	})

	stream, err := h.conn.NewStream(callCtx(t), &grpc.StreamDesc{ServerStreams: true}, "/echo.v1.Echo/SayMany")
	require.NoError(t, err)
	require.NoError(t, stream.SendMsg(wrapperspb.String("")))
	require.NoError(t, stream.CloseSend())

	var msg wrapperspb.StringValue
	require.NoError(t, stream.RecvMsg(&msg))
	assert.Equal(t, "once", msg.GetValue())
	assert.ErrorIs(t, stream.RecvMsg(&msg), io.EOF)
}

func TestBridge_ClientStreamingUnimplemented(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	stream, err := h.conn.NewStream(callCtx(t), &grpc.StreamDesc{ClientStreams: true}, "/echo.v1.Echo/Collect")
	require.NoError(t, err)
	_ = stream.SendMsg(wrapperspb.String("a"))
	_ = stream.CloseSend()

	var out wrapperspb.StringValue
	err = stream.RecvMsg(&out)
	assert.Equal(t, codes.Unimplemented, status.Code(err))
}

func TestBridge_ErrorMapping(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.stub(t, &stub.Stub{
		Request:  stub.Request{URLPath: "/echo.v1.Echo/Say", Headers: map[string]string{"x-case": "down"}},
		Response: stub.Response{Status: http.StatusServiceUnavailable, Body: "backend down"},
	})
	h.stub(t, &stub.Stub{
		Request: stub.Request{URLPath: "/echo.v1.Echo/Say", Headers: map[string]string{"x-case": "override"}},
		Response: stub.Response{
			Status:  http.StatusInternalServerError,
			Headers: map[string]string{GRPCStatusHeader: "9"},
			Body:    "not yet",
		},
	})

	var out wrapperspb.StringValue

	ctx := metadata.AppendToOutgoingContext(callCtx(t), "x-case", "down")
	err := h.conn.Invoke(ctx, "/echo.v1.Echo/Say", wrapperspb.String(""), &out)
	st := status.Convert(err)
	assert.Equal(t, codes.Unavailable, st.Code())
	assert.Equal(t, "backend down", st.Message())

	var info *errdetails.ErrorInfo
	for _, d := range st.Details() {
		if ei, ok := d.(*errdetails.ErrorInfo); ok {
			info = ei
		}
	}
	require.NotNil(t, info)
	assert.Equal(t, ErrorDomain, info.GetDomain())
	assert.Equal(t, "503", info.GetMetadata()["httpStatus"])
	assert.Equal(t, "echo.v1.Echo/Say", info.GetMetadata()["path"])

	ctx = metadata.AppendToOutgoingContext(callCtx(t), "x-case", "override")
	err = h.conn.Invoke(ctx, "/echo.v1.Echo/Say", wrapperspb.String(""), &out)
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	err = h.conn.Invoke(callCtx(t), "/echo.v1.Echo/Say", wrapperspb.String(""), &out)
	assert.Equal(t, codes.NotFound, status.Code(err), "no stub matched")
}

func TestBridge_MalformedStubBody(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.stub(t, &stub.Stub{
		Request:  stub.Request{URLPath: "/echo.v1.Echo/Say"},
		Response: stub.Response{JSONBody: map[string]any{"not": "a string"}},
	})

	var out wrapperspb.StringValue
	err := h.conn.Invoke(callCtx(t), "/echo.v1.Echo/Say", wrapperspb.String(""), &out)
	assert.Equal(t, codes.Internal, status.Code(err))
}

func TestBridge_UnknownService(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	unknown := metrics.BridgeCallsTotal.WithLabelValues(metrics.UnknownMethod, codes.Unimplemented.String())
	before := testutil.ToFloat64(unknown)

	var out wrapperspb.StringValue
	err := h.conn.Invoke(callCtx(t), "/other.v1.Nope/Call", wrapperspb.String(""), &out)
	assert.Equal(t, codes.Unimplemented, status.Code(err))
	err = h.conn.Invoke(callCtx(t), "/other.v1.Nope/Another", wrapperspb.String(""), &out)
	assert.Equal(t, codes.Unimplemented, status.Code(err))

	assert.GreaterOrEqual(t, testutil.ToFloat64(unknown)-before, 2.0)

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.NotContains(t, rec.Body.String(), "other.v1.Nope")
}

func TestBridge_Reflection(t *testing.T) {
	t.Parallel()

	h := newHarness(t, WithReflection(true))

	stream, err := reflectionv1.NewServerReflectionClient(h.conn).ServerReflectionInfo(callCtx(t))
	require.NoError(t, err)

	require.NoError(t, stream.Send(&reflectionv1.ServerReflectionRequest{
		MessageRequest: &reflectionv1.ServerReflectionRequest_ListServices{ListServices: "*"},
	}))
	resp, err := stream.Recv()
	require.NoError(t, err)

	var names []string
	for _, svc := range resp.GetListServicesResponse().GetService() {
		names = append(names, svc.GetName())
	}
	assert.Contains(t, names, "echo.v1.Echo")

	require.NoError(t, stream.Send(&reflectionv1.ServerReflectionRequest{
		MessageRequest: &reflectionv1.ServerReflectionRequest_FileContainingSymbol{FileContainingSymbol: "echo.v1.Echo"},
	}))
	resp, err = stream.Recv()
	require.NoError(t, err)
	assert.NotEmpty(t, resp.GetFileDescriptorResponse().GetFileDescriptorProto())
}

func TestBridge_RequestError(t *testing.T) {
	t.Parallel()

	srv := server.New(nil)
	b := New(loadEchoSchema(t), client.New(srv.BaseURL))
	m := b.schema.Service("echo.v1.Echo").Methods["Say"]

	_, _, err := b.call(context.Background(), m, wrapperspb.String(""))
	assert.Equal(t, codes.Unavailable, status.Code(err), "mock server not running")
}
