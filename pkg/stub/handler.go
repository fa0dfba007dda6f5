package stub

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/getmockd/protomock/pkg/logging"
	"github.com/getmockd/protomock/pkg/metrics"
)

// maxBodySize bounds request bodies read for matching and journaling.
const maxBodySize = 10 << 20

// Handler serves requests from a Store.
type Handler struct {
	store       *Store
	journal     *Journal
	disableGzip bool
	log         *slog.Logger
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithJournal records every served request in j.
func WithJournal(j *Journal) HandlerOption {
	return func(h *Handler) {
		h.journal = j
	}
}

// WithGzipDisabled turns off gzip response encoding.
func WithGzipDisabled(disabled bool) HandlerOption {
	return func(h *Handler) {
		h.disableGzip = disabled
	}
}

// WithLogger sets the operational logger.
func WithLogger(log *slog.Logger) HandlerOption {
	return func(h *Handler) {
		h.log = logging.Component(log, "stubs")
	}
}

// NewHandler creates a Handler serving stubs from store.
func NewHandler(store *Store, opts ...HandlerOption) *Handler {
	h := &Handler{
		store: store,
		log:   logging.Nop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Journal returns the request journal, or nil when journaling is disabled.
func (h *Handler) Journal() *Journal {
	return h.journal
}

// ServeHTTP matches the request against the store and writes the stub response.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	st, ok := h.store.Match(r)
	if h.journal != nil {
		h.journal.Record(r, body, st)
	}

	if !ok {
		metrics.StubRequestsTotal.WithLabelValues(r.Method, metrics.OutcomeUnmatched).Inc()
		h.log.Debug("no stub matched", "method", r.Method, "url", r.URL.RequestURI())
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		_, _ = fmt.Fprintf(w, "No stub matched request: %s %s\n", r.Method, r.URL.RequestURI())
		return
	}

	metrics.StubRequestsTotal.WithLabelValues(r.Method, metrics.OutcomeMatched).Inc()
	h.log.Debug("stub matched", "method", r.Method, "url", r.URL.RequestURI(), "stub", st.ID)

	if d := st.Response.Delay(); d > 0 {
		timer := time.NewTimer(d)
		select {
		case <-timer.C:
		case <-r.Context().Done():
			timer.Stop()
			return
		}
	}

	h.write(w, r, &st.Response)
}

func (h *Handler) write(w http.ResponseWriter, r *http.Request, resp *Response) {
	payload, err := resp.Bytes()
	if err != nil {
		h.log.Error("failed to render stub body", "error", err)
		http.Error(w, "failed to render stub body", http.StatusInternalServerError)
		return
	}

	header := w.Header()
	for k, v := range resp.Headers {
		header.Set(k, v)
	}
	if resp.JSONBody != nil && header.Get("Content-Type") == "" {
		header.Set("Content-Type", "application/json")
	}

	compress := !h.disableGzip && len(payload) > 0 &&
		header.Get("Content-Encoding") == "" && acceptsGzip(r.Header)
	if !compress {
		w.WriteHeader(resp.StatusCode())
		_, _ = w.Write(payload)
		return
	}

	header.Set("Content-Encoding", "gzip")
	header.Add("Vary", "Accept-Encoding")
	header.Del("Content-Length")
	w.WriteHeader(resp.StatusCode())

	gz := gzip.NewWriter(w)
	if _, err := gz.Write(payload); err != nil {
		h.log.Warn("failed to write gzip body", "error", err)
	}
	if err := gz.Close(); err != nil {
		h.log.Warn("failed to close gzip body", "error", err)
	}
}
