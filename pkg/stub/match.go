package stub

import (
	"net/http"
	"strconv"
	"strings"
)

// Matches reports whether r satisfies the stub's request pattern.
func (s *Stub) Matches(r *http.Request) bool {
	if m := s.Request.method(); m != AnyMethod && m != r.Method {
		return false
	}
	if !s.matchesURL(r) {
		return false
	}
	for name, want := range s.Request.Headers {
		values, ok := r.Header[http.CanonicalHeaderKey(name)]
		if !ok || !containsValue(values, want) {
			return false
		}
	}
	return true
}

func (s *Stub) matchesURL(r *http.Request) bool {
	switch {
	case s.Request.URL != "":
		return s.Request.URL == r.URL.RequestURI()
	case s.Request.URLPath != "":
		return s.Request.URLPath == r.URL.Path
	case s.pattern != nil:
		return s.pattern.MatchString(r.URL.Path)
	default:
		return true
	}
}

func containsValue(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}

// acceptsGzip reports whether the Accept-Encoding header allows gzip.
func acceptsGzip(h http.Header) bool {
	for _, header := range h.Values("Accept-Encoding") {
		for _, token := range strings.Split(header, ",") {
			name, params, _ := strings.Cut(token, ";")
			if !strings.EqualFold(strings.TrimSpace(name), "gzip") {
				continue
			}
			if q, ok := strings.CutPrefix(strings.TrimSpace(params), "q="); ok {
				if v, err := strconv.ParseFloat(q, 64); err == nil && v == 0 {
					return false
				}
			}
			return true
		}
	}
	return false
}
