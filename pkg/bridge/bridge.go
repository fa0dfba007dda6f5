package bridge

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/reflection"
	reflectionv1 "google.golang.org/grpc/reflection/grpc_reflection_v1"
	reflectionv1alpha "google.golang.org/grpc/reflection/grpc_reflection_v1alpha"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/getmockd/protomock/pkg/client"
	"github.com/getmockd/protomock/pkg/logging"
	"github.com/getmockd/protomock/pkg/metrics"
)

// Bridge answers gRPC calls for every method of a Schema by dispatching
// them to the mock server.
type Bridge struct {
	schema     *Schema
	dispatcher *client.Dispatcher
	log        *slog.Logger
	reflection bool
	serverOpts []grpc.ServerOption

	once       sync.Once
	grpcServer *grpc.Server
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the operational logger.
func WithLogger(log *slog.Logger) Option {
	return func(b *Bridge) {
		b.log = logging.Component(log, "bridge")
	}
}

// WithReflection registers the gRPC server reflection service.
func WithReflection(enabled bool) Option {
	return func(b *Bridge) {
		b.reflection = enabled
	}
}

// WithServerOptions appends options to the underlying grpc.Server.
func WithServerOptions(opts ...grpc.ServerOption) Option {
	return func(b *Bridge) {
		b.serverOpts = append(b.serverOpts, opts...)
	}
}

// New creates a Bridge for schema. The dispatcher's codec must be able to
// resolve any google.protobuf.Any payloads the schema's messages carry; see
// Schema.Types.
func New(schema *Schema, dispatcher *client.Dispatcher, opts ...Option) *Bridge {
	b := &Bridge{
		schema:     schema,
		dispatcher: dispatcher,
		log:        logging.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Server returns the grpc.Server, creating it on first use.
func (b *Bridge) Server() *grpc.Server {
	b.once.Do(func() {
		opts := append([]grpc.ServerOption{
			grpc.UnknownServiceHandler(b.handleUnknown),
			grpc.ChainUnaryInterceptor(UnaryHeaderInterceptor()),
			grpc.ChainStreamInterceptor(StreamHeaderInterceptor()),
		}, b.serverOpts...)
		b.grpcServer = grpc.NewServer(opts...)
		b.registerServices()

		if b.reflection {
			reflectionOpts := reflection.ServerOptions{
				Services:           b.grpcServer,
				DescriptorResolver: b.schema.Files(),
			}
			reflectionv1.RegisterServerReflectionServer(b.grpcServer, reflection.NewServerV1(reflectionOpts))
			reflectionv1alpha.RegisterServerReflectionServer(b.grpcServer, reflection.NewServer(reflectionOpts))
		}
	})
	return b.grpcServer
}

// Serve accepts connections on lis until Stop is called.
func (b *Bridge) Serve(lis net.Listener) error {
	b.log.Info("grpc bridge listening", "addr", lis.Addr().String(), "services", b.schema.ServiceNames())
	if err := b.Server().Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// Stop drains in-flight calls and stops the server, forcing it after ctx is done.
func (b *Bridge) Stop(ctx context.Context) {
	srv := b.Server()
	done := make(chan struct{})
	go func() {
		srv.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		srv.Stop()
		<-done
	}
}

func (b *Bridge) registerServices() {
	for _, name := range b.schema.ServiceNames() {
		svc := b.schema.Service(name)

		var methods []grpc.MethodDesc
		var streams []grpc.StreamDesc
		for _, methodName := range svc.MethodNames() {
			m := svc.Methods[methodName]
			if m.IsUnary() {
				methods = append(methods, grpc.MethodDesc{
					MethodName: m.Name,
					Handler:    b.unaryHandler(m),
				})
				continue
			}
			streams = append(streams, grpc.StreamDesc{
				StreamName:    m.Name,
				Handler:       b.streamHandler(m),
				ServerStreams: m.ServerStreaming,
				ClientStreams: m.ClientStreaming,
			})
		}

		b.grpcServer.RegisterService(&grpc.ServiceDesc{
			ServiceName: svc.Name,
			HandlerType: (*any)(nil),
			Methods:     methods,
			Streams:     streams,
		}, struct{}{})
	}
}

func (b *Bridge) unaryHandler(m *Method) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := dynamicpb.NewMessage(m.Input())
		if err := dec(req); err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "decode request: %v", err)
		}

		handle := func(ctx context.Context, req any) (any, error) {
			start := time.Now()
			out, _, err := b.call(ctx, m, req.(proto.Message))
			b.observe(m.Path, start, err)
			return out, err
		}
		if interceptor == nil {
			return handle(ctx, req)
		}
		return interceptor(ctx, req, &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + m.Path}, handle)
	}
}

func (b *Bridge) streamHandler(m *Method) grpc.StreamHandler {
	return func(_ any, stream grpc.ServerStream) error {
		start := time.Now()
		err := b.serveStream(m, stream)
		b.observe(m.Path, start, err)
		return err
	}
}

func (b *Bridge) serveStream(m *Method, stream grpc.ServerStream) error {
	if m.ClientStreaming {
		return status.Errorf(codes.Unimplemented, "%s methods are not supported: %s", m.Kind(), m.Path)
	}

	req := dynamicpb.NewMessage(m.Input())
	if err := stream.RecvMsg(req); err != nil {
		return status.Errorf(codes.InvalidArgument, "receive request: %v", err)
	}

	out, resp, err := b.call(stream.Context(), m, req)
	if err != nil {
		return err
	}
	n, err := resp.StreamSize()
	if err != nil {
		return status.Error(codes.Internal, err.Error())
	}
	for range n {
		if err := stream.SendMsg(out); err != nil {
			return err
		}
	}
	return nil
}

// call dispatches req to the stub for m and decodes the response.
func (b *Bridge) call(ctx context.Context, m *Method, req proto.Message) (proto.Message, *client.Response, error) {
	resp, err := b.dispatcher.RequestNoHeaders(ctx, m.Path, req)
	if err != nil {
		return nil, nil, toStatus(err, m.Path, nil)
	}
	out, err := resp.Message(dynamicpb.NewMessageType(m.Output()))
	if err != nil {
		return nil, nil, toStatus(err, m.Path, resp.Header())
	}
	return out, resp, nil
}

func (b *Bridge) handleUnknown(_ any, stream grpc.ServerStream) error {
	fullMethod, _ := grpc.MethodFromServerStream(stream)
	path := strings.TrimPrefix(fullMethod, "/")
	err := status.Errorf(codes.Unimplemented, "unknown method %s", fullMethod)
	// Client-chosen names never become label values.
	b.record(metrics.UnknownMethod, path, time.Now(), err)
	return err
}

func (b *Bridge) observe(path string, start time.Time, err error) {
	b.record(path, path, start, err)
}

func (b *Bridge) record(label, path string, start time.Time, err error) {
	code := status.Code(err)
	metrics.BridgeCallsTotal.WithLabelValues(label, code.String()).Inc()

	attrs := []any{"method", path, "code", code.String(), "duration", time.Since(start)}
	if err != nil {
		b.log.Warn("grpc call failed", append(attrs, "error", err)...)
		return
	}
	b.log.Info("grpc call", attrs...)
}
