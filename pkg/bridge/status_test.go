package bridge

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"

	"github.com/getmockd/protomock/pkg/client"
)

func TestCodeFromHTTPStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status int
		want   codes.Code
	}{
		{http.StatusOK, codes.OK},
		{http.StatusBadRequest, codes.InvalidArgument},
		{http.StatusUnauthorized, codes.Unauthenticated},
		{http.StatusForbidden, codes.PermissionDenied},
		{http.StatusNotFound, codes.NotFound},
		{http.StatusConflict, codes.AlreadyExists},
		{http.StatusTooManyRequests, codes.ResourceExhausted},
		{499, codes.Canceled},
		{http.StatusNotImplemented, codes.Unimplemented},
		{http.StatusServiceUnavailable, codes.Unavailable},
		{http.StatusGatewayTimeout, codes.DeadlineExceeded},
		{http.StatusInternalServerError, codes.Internal},
		{http.StatusBadGateway, codes.Internal},
		{http.StatusTeapot, codes.FailedPrecondition},
		{http.StatusCreated, codes.Unknown},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CodeFromHTTPStatus(tt.status), "status %d", tt.status)
	}
}

func TestHeaderInterceptors(t *testing.T) {
	t.Parallel()

	md := metadata.Pairs(
		"x-tenant", "acme",
		"x-multi", "a",
		"x-multi", "b",
		":authority", "bufnet",
		"content-type", "application/grpc",
		"grpc-timeout", "1S",
		"trace-bin", "\x00\x01",
	)
	want := map[string]string{"x-tenant": "acme", "x-multi": "a,b"}

	t.Run("unary", func(t *testing.T) {
		t.Parallel()
		ctx := metadata.NewIncomingContext(context.Background(), md)

		var got map[string]string
		_, err := UnaryHeaderInterceptor()(ctx, nil, &grpc.UnaryServerInfo{}, func(ctx context.Context, _ any) (any, error) {
			got = client.PropagatedHeaders(ctx)
			return nil, nil
		})
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("stream", func(t *testing.T) {
		t.Parallel()
		ctx := metadata.NewIncomingContext(context.Background(), md)

		var got map[string]string
		err := StreamHeaderInterceptor()(nil, &fakeStream{ctx: ctx}, &grpc.StreamServerInfo{}, func(_ any, ss grpc.ServerStream) error {
			got = client.PropagatedHeaders(ss.Context())
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("no metadata", func(t *testing.T) {
		t.Parallel()
		ctx := withIncomingHeaders(context.Background())
		assert.Empty(t, client.PropagatedHeaders(ctx))
	})
}

type fakeStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *fakeStream) Context() context.Context {
	return s.ctx
}
