package bridge

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/getmockd/protomock/pkg/client"
)

// UnaryHeaderInterceptor copies incoming metadata into the context as
// propagated headers for the dispatcher.
func UnaryHeaderInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		return handler(withIncomingHeaders(ctx), req)
	}
}

// StreamHeaderInterceptor is the streaming counterpart of UnaryHeaderInterceptor.
func StreamHeaderInterceptor() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, _ *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		return handler(srv, &headerStream{ServerStream: ss, ctx: withIncomingHeaders(ss.Context())})
	}
}

type headerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *headerStream) Context() context.Context {
	return s.ctx
}

func withIncomingHeaders(ctx context.Context) context.Context {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ctx
	}
	headers := make(map[string]string, len(md))
	for key, values := range md {
		if skipMetadata(key) || len(values) == 0 {
			continue
		}
		headers[key] = strings.Join(values, ",")
	}
	return client.WithPropagatedHeaders(ctx, headers)
}

// skipMetadata filters transport-level keys and binary values, which have
// no meaning as HTTP headers on the mock server.
func skipMetadata(key string) bool {
	switch key {
	case "content-type", "user-agent", "te", "authority":
		return true
	}
	return strings.HasPrefix(key, ":") ||
		strings.HasPrefix(key, "grpc-") ||
		strings.HasSuffix(key, "-bin")
}
