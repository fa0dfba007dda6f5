package stub

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// DefaultPriority is assigned to stubs that do not set a priority.
// Lower values take precedence.
const DefaultPriority = 5

// AnyMethod matches every HTTP method.
const AnyMethod = "ANY"

// Validation errors.
var (
	// ErrNilStub is returned when a nil stub is added.
	ErrNilStub = errors.New("stub: nil stub")

	// ErrMultipleURLMatchers is returned when more than one of url, urlPath
	// and urlPathPattern is set.
	ErrMultipleURLMatchers = errors.New("stub: only one of url, urlPath and urlPathPattern may be set")

	// ErrMultipleBodies is returned when more than one response body field is set.
	ErrMultipleBodies = errors.New("stub: only one of body, jsonBody and base64Body may be set")

	// ErrInvalidStatus is returned for response status codes outside 100-599.
	ErrInvalidStatus = errors.New("stub: response status must be between 100 and 599")

	// ErrNegativeDelay is returned for a negative fixed delay.
	ErrNegativeDelay = errors.New("stub: fixedDelayMilliseconds must not be negative")
)

// Stub pairs a request pattern with the response served when it matches.
type Stub struct {
	// ID identifies the stub. Assigned on registration when empty.
	ID string `json:"id,omitempty" yaml:"id,omitempty"`

	// Name is an optional human-readable label.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Priority orders overlapping stubs; lower wins. Zero means DefaultPriority.
	Priority int `json:"priority,omitempty" yaml:"priority,omitempty"`

	Request  Request  `json:"request" yaml:"request"`
	Response Response `json:"response" yaml:"response"`

	// CreatedAt is set when the stub is registered.
	CreatedAt time.Time `json:"createdAt,omitzero" yaml:"createdAt,omitempty"`

	seq     uint64
	pattern *regexp.Regexp
}

// Request is the pattern an incoming request must match.
type Request struct {
	// Method is matched case-insensitively. Empty or "ANY" matches all methods.
	Method string `json:"method,omitempty" yaml:"method,omitempty"`

	// URL matches the path and query string exactly.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	// URLPath matches the path exactly, ignoring the query string.
	URLPath string `json:"urlPath,omitempty" yaml:"urlPath,omitempty"`

	// URLPathPattern is a regular expression that must match the whole path.
	URLPathPattern string `json:"urlPathPattern,omitempty" yaml:"urlPathPattern,omitempty"`

	// Headers must all be present with exactly these values.
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
}

// Response is the canned answer of a stub.
type Response struct {
	// Status defaults to 200.
	Status int `json:"status,omitempty" yaml:"status,omitempty"`

	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`

	// Body is sent verbatim.
	Body string `json:"body,omitempty" yaml:"body,omitempty"`

	// JSONBody is marshaled to JSON and sent with an application/json content type.
	JSONBody any `json:"jsonBody,omitempty" yaml:"jsonBody,omitempty"`

	// Base64Body is decoded and sent as raw bytes.
	Base64Body string `json:"base64Body,omitempty" yaml:"base64Body,omitempty"`

	// FixedDelayMs delays the response by this many milliseconds.
	FixedDelayMs int `json:"fixedDelayMilliseconds,omitempty" yaml:"fixedDelayMilliseconds,omitempty"`
}

// Validate checks the stub and compiles its path pattern.
func (s *Stub) Validate() error {
	if s == nil {
		return ErrNilStub
	}

	matchers := 0
	for _, v := range []string{s.Request.URL, s.Request.URLPath, s.Request.URLPathPattern} {
		if v != "" {
			matchers++
		}
	}
	if matchers > 1 {
		return ErrMultipleURLMatchers
	}

	if s.Request.URLPathPattern != "" {
		re, err := regexp.Compile("^(?:" + s.Request.URLPathPattern + ")$")
		if err != nil {
			return fmt.Errorf("stub: invalid urlPathPattern %q: %w", s.Request.URLPathPattern, err)
		}
		s.pattern = re
	}

	bodies := 0
	if s.Response.Body != "" {
		bodies++
	}
	if s.Response.JSONBody != nil {
		bodies++
	}
	if s.Response.Base64Body != "" {
		bodies++
		if _, err := base64.StdEncoding.DecodeString(s.Response.Base64Body); err != nil {
			return fmt.Errorf("stub: invalid base64Body: %w", err)
		}
	}
	if bodies > 1 {
		return ErrMultipleBodies
	}

	if s.Response.Status != 0 && (s.Response.Status < 100 || s.Response.Status > 599) {
		return ErrInvalidStatus
	}
	if s.Response.FixedDelayMs < 0 {
		return ErrNegativeDelay
	}
	return nil
}

// EffectivePriority returns Priority, or DefaultPriority when unset.
func (s *Stub) EffectivePriority() int {
	if s.Priority == 0 {
		return DefaultPriority
	}
	return s.Priority
}

// StatusCode returns the response status, defaulting to 200.
func (r *Response) StatusCode() int {
	if r.Status == 0 {
		return 200
	}
	return r.Status
}

// Bytes renders the response body.
func (r *Response) Bytes() ([]byte, error) {
	switch {
	case r.JSONBody != nil:
		return json.Marshal(r.JSONBody)
	case r.Base64Body != "":
		return base64.StdEncoding.DecodeString(r.Base64Body)
	default:
		return []byte(r.Body), nil
	}
}

// Delay returns the configured fixed delay.
func (r *Response) Delay() time.Duration {
	return time.Duration(r.FixedDelayMs) * time.Millisecond
}

func (r *Request) method() string {
	if r.Method == "" {
		return AnyMethod
	}
	return strings.ToUpper(r.Method)
}
