package stub

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStub_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		stub    *Stub
		wantErr error
	}{
		{name: "nil stub", stub: nil, wantErr: ErrNilStub},
		{name: "empty stub is valid", stub: &Stub{}},
		{
			name:    "two url matchers",
			stub:    &Stub{Request: Request{URL: "/a", URLPath: "/a"}},
			wantErr: ErrMultipleURLMatchers,
		},
		{
			name:    "two bodies",
			stub:    &Stub{Response: Response{Body: "x", JSONBody: map[string]any{}}},
			wantErr: ErrMultipleBodies,
		},
		{
			name:    "status too low",
			stub:    &Stub{Response: Response{Status: 42}},
			wantErr: ErrInvalidStatus,
		},
		{
			name:    "negative delay",
			stub:    &Stub{Response: Response{FixedDelayMs: -1}},
			wantErr: ErrNegativeDelay,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.stub.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestStub_Validate_BadPattern(t *testing.T) {
	t.Parallel()

	err := (&Stub{Request: Request{URLPathPattern: "/a/("}}).Validate()
	assert.Error(t, err)
}

func TestStub_Validate_BadBase64(t *testing.T) {
	t.Parallel()

	err := (&Stub{Response: Response{Base64Body: "***"}}).Validate()
	assert.Error(t, err)
}

func TestStub_Matches(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		request Request
		method  string
		target  string
		headers map[string]string
		want    bool
	}{
		{name: "any method any url", request: Request{}, method: "GET", target: "/x", want: true},
		{name: "method case-insensitive", request: Request{Method: "post"}, method: "POST", target: "/x", want: true},
		{name: "method mismatch", request: Request{Method: "GET"}, method: "POST", target: "/x", want: false},
		{name: "ANY method", request: Request{Method: "ANY"}, method: "DELETE", target: "/x", want: true},
		{name: "url path exact", request: Request{URLPath: "/svc/Call"}, method: "POST", target: "/svc/Call?x=1", want: true},
		{name: "url path mismatch", request: Request{URLPath: "/svc/Call"}, method: "POST", target: "/svc/Other", want: false},
		{name: "url includes query", request: Request{URL: "/svc?x=1"}, method: "GET", target: "/svc?x=1", want: true},
		{name: "url query mismatch", request: Request{URL: "/svc?x=1"}, method: "GET", target: "/svc?x=2", want: false},
		{name: "path pattern full match", request: Request{URLPathPattern: "/svc/.*"}, method: "GET", target: "/svc/a/b", want: true},
		{name: "path pattern anchored", request: Request{URLPathPattern: "/svc"}, method: "GET", target: "/svc/a", want: false},
		{
			name:    "header match",
			request: Request{Headers: map[string]string{"x-tenant": "acme"}},
			method:  "GET", target: "/", headers: map[string]string{"X-Tenant": "acme"},
			want: true,
		},
		{
			name:    "header value mismatch",
			request: Request{Headers: map[string]string{"x-tenant": "acme"}},
			method:  "GET", target: "/", headers: map[string]string{"X-Tenant": "other"},
			want: false,
		},
		{
			name:    "header missing",
			request: Request{Headers: map[string]string{"x-tenant": "acme"}},
			method:  "GET", target: "/",
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			st := &Stub{Request: tt.request}
			require.NoError(t, st.Validate())

			r := httptest.NewRequest(tt.method, tt.target, nil)
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, st.Matches(r))
		})
	}
}

func TestResponse_Bytes(t *testing.T) {
	t.Parallel()

	b, err := (&Response{JSONBody: map[string]any{"a": 1}}).Bytes()
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(b))

	b, err = (&Response{Base64Body: "aGVsbG8="}).Bytes()
	require.NoError(t, err)
	assert.Equal(t, "hello", string(b))

	b, err = (&Response{Body: "plain"}).Bytes()
	require.NoError(t, err)
	assert.Equal(t, "plain", string(b))
}

func TestResponse_StatusCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, http.StatusOK, (&Response{}).StatusCode())
	assert.Equal(t, http.StatusTeapot, (&Response{Status: http.StatusTeapot}).StatusCode())
}

func TestAcceptsGzip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		header string
		want   bool
	}{
		{"", false},
		{"gzip", true},
		{"deflate, gzip", true},
		{"GZIP;q=0.5", true},
		{"gzip;q=0", false},
		{"br", false},
	}

	for _, tt := range tests {
		h := http.Header{}
		if tt.header != "" {
			h.Set("Accept-Encoding", tt.header)
		}
		assert.Equal(t, tt.want, acceptsGzip(h), "header %q", tt.header)
	}
}
