package client

import (
	"bytes"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/getmockd/protomock/pkg/codec"
)

func makeResponse(t *testing.T, status int, header http.Header, body []byte) *Response {
	t.Helper()
	if header == nil {
		header = http.Header{}
	}
	resp, err := newResponse(&http.Response{
		StatusCode: status,
		Header:     header,
		Body:       io.NopCloser(bytes.NewReader(body)),
	}, codec.Default)
	require.NoError(t, err)
	return resp
}

func TestResponse_Message(t *testing.T) {
	t.Parallel()

	want := wrapperspb.Int64(42)
	body, err := codec.Default.ToJSON(want)
	require.NoError(t, err)

	t.Run("plain", func(t *testing.T) {
		t.Parallel()
		resp := makeResponse(t, http.StatusOK, nil, body)
		got, err := resp.Message(want.ProtoReflect().Type())
		require.NoError(t, err)
		assert.True(t, proto.Equal(want, got))
	})

	t.Run("gzip", func(t *testing.T) {
		t.Parallel()
		resp := makeResponse(t, http.StatusOK, http.Header{"Content-Encoding": {"gzip"}}, gzipBytes(t, body))
		got, err := resp.Message(want.ProtoReflect().Type())
		require.NoError(t, err)
		assert.True(t, proto.Equal(want, got))
		assert.Equal(t, body, resp.Body())
	})

	t.Run("repeated reads", func(t *testing.T) {
		t.Parallel()
		resp := makeResponse(t, http.StatusOK, nil, body)
		for range 2 {
			var got wrapperspb.Int64Value
			require.NoError(t, resp.Into(&got))
			assert.Equal(t, int64(42), got.GetValue())
		}
	})
}

func TestResponse_BadResponse(t *testing.T) {
	t.Parallel()

	for _, status := range []int{http.StatusNotFound, http.StatusCreated, http.StatusInternalServerError} {
		resp := makeResponse(t, status, nil, []byte("raw body"))
		_, err := resp.Message(wrapperspb.String("").ProtoReflect().Type())

		var badResp *BadResponseError
		require.ErrorAs(t, err, &badResp)
		assert.Equal(t, status, badResp.StatusCode)
		assert.Equal(t, "raw body", badResp.Body)
	}
}

func TestResponse_BadResponseGzipBody(t *testing.T) {
	t.Parallel()

	resp := makeResponse(t, http.StatusBadGateway, http.Header{"Content-Encoding": {"gzip"}}, gzipBytes(t, []byte("upstream down")))
	err := resp.Into(&wrapperspb.StringValue{})

	var badResp *BadResponseError
	require.ErrorAs(t, err, &badResp)
	assert.Equal(t, "upstream down", badResp.Body)
}

func TestResponse_StreamSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		header  http.Header
		want    int
		wantErr bool
	}{
		{name: "absent", header: http.Header{}, want: 1},
		{name: "present", header: http.Header{"Streamsize": {"5"}}, want: 5},
		{name: "zero", header: http.Header{"Streamsize": {"0"}}, want: 0},
		{name: "whitespace", header: http.Header{"Streamsize": {" 3 "}}, want: 3},
		{name: "malformed", header: http.Header{"Streamsize": {"five"}}, wantErr: true},
		{name: "negative", header: http.Header{"Streamsize": {"-2"}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			resp := makeResponse(t, http.StatusOK, tt.header, nil)
			got, err := resp.StreamSize()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResponse_Accessors(t *testing.T) {
	t.Parallel()

	resp := makeResponse(t, http.StatusAccepted, http.Header{"X-A": {"1"}}, []byte("b"))
	assert.Equal(t, http.StatusAccepted, resp.StatusCode())

	h := resp.Header()
	h.Set("X-A", "changed")
	assert.Equal(t, "1", resp.Header().Get("X-A"))

	b := resp.Body()
	b[0] = 'x'
	assert.Equal(t, []byte("b"), resp.Body())
}
