package client

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// RequestError reports a request that produced no usable response: the
// server could not be reached, the call was cancelled or timed out, or the
// response body could not be read.
type RequestError struct {
	Path string
	Err  error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("client: request %s: %v", e.Path, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the request failed because a deadline expired.
func (e *RequestError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

// BadResponseError reports a response whose status is not 200. Body is the
// response body exactly as the server sent it, after gzip decoding.
type BadResponseError struct {
	StatusCode int
	Body       string
}

func (e *BadResponseError) Error() string {
	return fmt.Sprintf("client: unexpected status %d: %s", e.StatusCode, e.Body)
}
