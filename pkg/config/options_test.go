package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/protomock/pkg/stub"
)

func TestParseArgs_Defaults(t *testing.T) {
	t.Parallel()

	opts, unknown, err := ParseArgs(nil)
	require.NoError(t, err)
	assert.Empty(t, unknown)

	assert.Equal(t, 0, opts.Port)
	assert.Equal(t, HTTPSDisabled, opts.HTTPSPort)
	assert.Equal(t, DefaultBindAddress, opts.BindAddress)
	assert.Equal(t, stub.DefaultJournalSize, opts.MaxRequestJournalEntries)
	assert.True(t, opts.HTTPEnabled())
	assert.False(t, opts.HTTPSEnabled())
	assert.NoError(t, opts.Validate())
}

func TestParseArgs_Values(t *testing.T) {
	t.Parallel()

	opts, unknown, err := ParseArgs([]string{
		"--port=8080",
		"--https-port=0",
		"--verbose",
		"--root-dir=/data",
		"--read-timeout=5s",
		"--disable-gzip",
	})
	require.NoError(t, err)
	assert.Empty(t, unknown)

	assert.Equal(t, 8080, opts.Port)
	assert.Equal(t, 0, opts.HTTPSPort)
	assert.True(t, opts.HTTPSEnabled())
	assert.True(t, opts.Verbose)
	assert.True(t, opts.DisableGzip)
	assert.Equal(t, "/data", opts.RootDir)
	assert.Equal(t, 5*time.Second, opts.ReadTimeout)
}

func TestParseArgs_UnderscoreNames(t *testing.T) {
	t.Parallel()

	opts, unknown, err := ParseArgs([]string{"--root_dir=/mocks", "--disable_http", "--https_port=8443"})
	require.NoError(t, err)
	assert.Empty(t, unknown)
	assert.Equal(t, "/mocks", opts.RootDir)
	assert.True(t, opts.DisableHTTP)
	assert.Equal(t, 8443, opts.HTTPSPort)
}

func TestParseArgs_Unknown(t *testing.T) {
	t.Parallel()

	opts, unknown, err := ParseArgs([]string{"--port=1", "--home=/root", "positional", "--"})
	require.NoError(t, err)
	assert.Equal(t, 1, opts.Port)
	assert.Equal(t, []string{"--home=/root", "positional", "--"}, unknown)
}

func TestParseArgs_LaterWins(t *testing.T) {
	t.Parallel()

	opts, _, err := ParseArgs([]string{"--port=1", "--port=2"})
	require.NoError(t, err)
	assert.Equal(t, 2, opts.Port)
}

func TestParseArgs_MalformedValue(t *testing.T) {
	t.Parallel()

	_, _, err := ParseArgs([]string{"--port=abc"})
	assert.Error(t, err)

	_, _, err = ParseArgs([]string{"--port"})
	assert.Error(t, err, "int option without value")
}

func TestServerOptions_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*ServerOptions)
		wantErr error
	}{
		{name: "defaults", mutate: func(*ServerOptions) {}},
		{name: "port too high", mutate: func(o *ServerOptions) { o.Port = 70000 }, wantErr: ErrInvalidPort},
		{name: "negative port", mutate: func(o *ServerOptions) { o.Port = -1 }, wantErr: ErrInvalidPort},
		{name: "https port below -1", mutate: func(o *ServerOptions) { o.HTTPSPort = -2 }, wantErr: ErrInvalidHTTPSPort},
		{name: "no listener", mutate: func(o *ServerOptions) { o.DisableHTTP = true }, wantErr: ErrNoListener},
		{
			name:   "https only",
			mutate: func(o *ServerOptions) { o.DisableHTTP = true; o.HTTPSPort = 0 },
		},
		{name: "journal size", mutate: func(o *ServerOptions) { o.MaxRequestJournalEntries = 0 }, wantErr: ErrInvalidJournal},
		{name: "negative timeout", mutate: func(o *ServerOptions) { o.WriteTimeout = -time.Second }, wantErr: ErrInvalidTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			opts := DefaultServerOptions()
			tt.mutate(opts)
			err := opts.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestServerOptions_Args(t *testing.T) {
	t.Parallel()

	opts := DefaultServerOptions()
	opts.Port = 9000
	opts.Verbose = true

	args := opts.Args()
	assert.Contains(t, args, "--port=9000")
	assert.Contains(t, args, "--verbose=true")
	assert.Contains(t, args, "--https-port=-1")

	reparsed, unknown, err := ParseArgs(args)
	require.NoError(t, err)
	assert.Empty(t, unknown)
	assert.Equal(t, opts, reparsed)
}

func TestIsServerOption(t *testing.T) {
	t.Parallel()

	assert.True(t, IsServerOption("port"))
	assert.True(t, IsServerOption("root_dir"))
	assert.False(t, IsServerOption("proto"))
}
