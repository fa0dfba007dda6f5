package bridge

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/getmockd/protomock/pkg/client"
	"github.com/getmockd/protomock/pkg/codec"
)

// ErrorDomain is the ErrorInfo domain attached to stubbed errors.
const ErrorDomain = "protomock"

// GRPCStatusHeader on a non-200 stub response overrides the code derived
// from the HTTP status. Its value is the numeric gRPC code.
const GRPCStatusHeader = "grpc-status"

// CodeFromHTTPStatus maps an HTTP status to the closest gRPC code.
func CodeFromHTTPStatus(httpStatus int) codes.Code {
	switch httpStatus {
	case http.StatusOK:
		return codes.OK
	case http.StatusBadRequest:
		return codes.InvalidArgument
	case http.StatusUnauthorized:
		return codes.Unauthenticated
	case http.StatusForbidden:
		return codes.PermissionDenied
	case http.StatusNotFound:
		return codes.NotFound
	case http.StatusConflict:
		return codes.AlreadyExists
	case http.StatusPreconditionFailed:
		return codes.FailedPrecondition
	case http.StatusRequestedRangeNotSatisfiable:
		return codes.OutOfRange
	case http.StatusTooManyRequests:
		return codes.ResourceExhausted
	case 499:
		return codes.Canceled
	case http.StatusNotImplemented:
		return codes.Unimplemented
	case http.StatusServiceUnavailable:
		return codes.Unavailable
	case http.StatusGatewayTimeout:
		return codes.DeadlineExceeded
	}
	switch {
	case httpStatus >= 500:
		return codes.Internal
	case httpStatus >= 400:
		return codes.FailedPrecondition
	default:
		return codes.Unknown
	}
}

// toStatus converts a dispatch or decode failure into a gRPC status error.
func toStatus(err error, path string, header http.Header) error {
	var badResp *client.BadResponseError
	if errors.As(err, &badResp) {
		return badResponseStatus(badResp, path, header)
	}

	var reqErr *client.RequestError
	if errors.As(err, &reqErr) {
		switch {
		case errors.Is(err, context.Canceled):
			return status.Error(codes.Canceled, err.Error())
		case reqErr.Timeout():
			return status.Error(codes.DeadlineExceeded, err.Error())
		default:
			return status.Error(codes.Unavailable, err.Error())
		}
	}

	var decodeErr *codec.DecodeError
	if errors.As(err, &decodeErr) {
		return status.Errorf(codes.Internal, "stub response does not match %s: %v", decodeErr.Type, decodeErr.Err)
	}
	return status.Error(codes.Internal, err.Error())
}

func badResponseStatus(badResp *client.BadResponseError, path string, header http.Header) error {
	code := CodeFromHTTPStatus(badResp.StatusCode)
	if v := header.Get(GRPCStatusHeader); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 && n <= int(codes.Unauthenticated) {
			code = codes.Code(n)
		}
	}

	st := status.New(code, strings.TrimSpace(badResp.Body))
	withInfo, err := st.WithDetails(&errdetails.ErrorInfo{
		Reason: "HTTP_" + strconv.Itoa(badResp.StatusCode),
		Domain: ErrorDomain,
		Metadata: map[string]string{
			"httpStatus": strconv.Itoa(badResp.StatusCode),
			"path":       path,
		},
	})
	if err != nil {
		return st.Err()
	}
	return withInfo.Err()
}
