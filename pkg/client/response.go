package client

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/getmockd/protomock/pkg/codec"
)

// StreamSizeHeader tells streaming callers how many times to emit the message.
const StreamSizeHeader = "streamSize"

// Response is a fully read mock server response.
type Response struct {
	statusCode int
	header     http.Header
	body       []byte
	codec      *codec.Codec
}

// newResponse drains and closes resp.Body, reversing gzip encoding.
func newResponse(resp *http.Response, c *codec.Codec) (*Response, error) {
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	body := raw
	if strings.EqualFold(strings.TrimSpace(resp.Header.Get("Content-Encoding")), "gzip") && len(raw) > 0 {
		body, err = gunzip(raw)
		if err != nil {
			return nil, fmt.Errorf("gunzip body: %w", err)
		}
	}

	return &Response{
		statusCode: resp.StatusCode,
		header:     resp.Header,
		body:       body,
		codec:      c,
	}, nil
}

func gunzip(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

// StatusCode returns the HTTP status code.
func (r *Response) StatusCode() int {
	return r.statusCode
}

// Header returns a copy of the response headers.
func (r *Response) Header() http.Header {
	return r.header.Clone()
}

// Body returns the decoded response body.
func (r *Response) Body() []byte {
	return bytes.Clone(r.body)
}

// Message decodes the body as a message of type mt. A status other than 200
// yields a *BadResponseError.
func (r *Response) Message(mt protoreflect.MessageType) (proto.Message, error) {
	if err := r.checkStatus(); err != nil {
		return nil, err
	}
	return r.codec.FromJSON(r.body, mt)
}

// Into decodes the body into msg. A status other than 200 yields a
// *BadResponseError.
func (r *Response) Into(msg proto.Message) error {
	if err := r.checkStatus(); err != nil {
		return err
	}
	return r.codec.Unmarshal(r.body, msg)
}

// StreamSize returns the streamSize header as an integer, or 1 when the
// header is absent. A value that is not a non-negative integer is an error.
func (r *Response) StreamSize() (int, error) {
	values := r.header.Values(StreamSizeHeader)
	if len(values) == 0 {
		return 1, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(values[0]))
	if err != nil {
		return 0, fmt.Errorf("client: invalid %s header %q: %w", StreamSizeHeader, values[0], err)
	}
	if n < 0 {
		return 0, fmt.Errorf("client: invalid %s header %q: negative", StreamSizeHeader, values[0])
	}
	return n, nil
}

func (r *Response) checkStatus() error {
	if r.statusCode != http.StatusOK {
		return &BadResponseError{StatusCode: r.statusCode, Body: string(r.body)}
	}
	return nil
}
