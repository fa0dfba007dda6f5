package client

import (
	"context"
	"maps"
	"net/http"
)

type propagatedKey struct{}

// WithPropagatedHeaders returns a context carrying a snapshot of headers.
// Requests made with the context send them, overriding caller headers of
// the same name.
func WithPropagatedHeaders(ctx context.Context, headers map[string]string) context.Context {
	return context.WithValue(ctx, propagatedKey{}, maps.Clone(headers))
}

// PropagatedHeaders returns a copy of the headers carried by ctx.
func PropagatedHeaders(ctx context.Context) map[string]string {
	h, _ := ctx.Value(propagatedKey{}).(map[string]string)
	return maps.Clone(h)
}

// mergeHeaders applies caller headers and then propagated ones, so
// propagated values win. Names are canonicalized so the override holds
// regardless of case.
func mergeHeaders(caller, propagated map[string]string) map[string]string {
	merged := make(map[string]string, len(caller)+len(propagated))
	for k, v := range caller {
		merged[http.CanonicalHeaderKey(k)] = v
	}
	for k, v := range propagated {
		merged[http.CanonicalHeaderKey(k)] = v
	}
	return merged
}
