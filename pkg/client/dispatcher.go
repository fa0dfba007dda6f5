package client

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"google.golang.org/protobuf/proto"

	"github.com/getmockd/protomock/pkg/codec"
	"github.com/getmockd/protomock/pkg/logging"
	"github.com/getmockd/protomock/pkg/metrics"
	"github.com/getmockd/protomock/pkg/server"
)

// Dispatcher posts protobuf messages to the mock server. It is safe for
// concurrent use.
type Dispatcher struct {
	baseURL    func() (string, error)
	httpClient *http.Client
	codec      *codec.Codec
	log        *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(c *http.Client) Option {
	return func(d *Dispatcher) {
		d.httpClient = c
	}
}

// WithCodec sets the codec used for request and response bodies.
func WithCodec(c *codec.Codec) Option {
	return func(d *Dispatcher) {
		d.codec = c
	}
}

// WithLogger sets the operational logger.
func WithLogger(log *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.log = logging.Component(log, "dispatcher")
	}
}

// New creates a Dispatcher. baseURL is consulted on every request, so a
// server that restarts on a new port is followed.
func New(baseURL func() (string, error), opts ...Option) *Dispatcher {
	d := &Dispatcher{
		baseURL:    baseURL,
		httpClient: &http.Client{},
		codec:      codec.Default,
		log:        logging.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// NewForServer creates a Dispatcher targeting srv. When srv serves HTTPS the
// client trusts its self-signed certificate.
func NewForServer(srv *server.Server, opts ...Option) *Dispatcher {
	if tlsConfig := srv.ClientTLSConfig(); tlsConfig != nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = tlsConfig
		opts = append([]Option{WithHTTPClient(&http.Client{Transport: transport})}, opts...)
	}
	return New(srv.BaseURL, opts...)
}

// RequestNoHeaders is Request without caller headers.
func (d *Dispatcher) RequestNoHeaders(ctx context.Context, path string, msg proto.Message) (*Response, error) {
	return d.Request(ctx, path, msg, nil)
}

// Request encodes msg as JSON and posts it to {baseURL}/{path}, blocking
// until the response body has been read or ctx is done.
func (d *Dispatcher) Request(ctx context.Context, path string, msg proto.Message, headers map[string]string) (*Response, error) {
	start := time.Now()
	resp, err := d.do(ctx, path, msg, headers)

	status := metrics.StatusError
	if err == nil {
		status = metrics.StatusLabel(resp.StatusCode())
	}
	metrics.DispatchRequestsTotal.WithLabelValues(status).Inc()
	metrics.DispatchDuration.Observe(time.Since(start).Seconds())
	return resp, err
}

func (d *Dispatcher) do(ctx context.Context, path string, msg proto.Message, headers map[string]string) (*Response, error) {
	body, err := d.codec.ToJSON(msg)
	if err != nil {
		return nil, fmt.Errorf("client: encode request: %w", err)
	}

	base, err := d.baseURL()
	if err != nil {
		return nil, &RequestError{Path: path, Err: err}
	}

	merged := mergeHeaders(headers, PropagatedHeaders(ctx))
	d.log.Info("dispatching request",
		"path", path,
		logging.Headers(merged),
		"message", string(body),
	)

	url := strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &RequestError{Path: path, Err: err}
	}
	for k, v := range merged {
		req.Header.Set(k, v)
	}
	if req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	// Asking for gzip explicitly turns off the transport's transparent
	// decompression; Response handles Content-Encoding itself.
	if req.Header.Get("Accept-Encoding") == "" {
		req.Header.Set("Accept-Encoding", "gzip")
	}

	httpResp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, &RequestError{Path: path, Err: err}
	}

	resp, err := newResponse(httpResp, d.codec)
	if err != nil {
		return nil, &RequestError{Path: path, Err: err}
	}
	d.log.Debug("response received", "path", path, "status", resp.StatusCode(), "bytes", len(resp.body))
	return resp, nil
}
