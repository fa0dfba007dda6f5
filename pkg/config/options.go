package config

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/getmockd/protomock/pkg/stub"
)

// Defaults.
const (
	DefaultBindAddress  = "0.0.0.0"
	DefaultRootDir      = "."
	DefaultReadTimeout  = 30 * time.Second
	DefaultWriteTimeout = 30 * time.Second

	// HTTPSDisabled is the HTTPSPort value that turns HTTPS off.
	HTTPSDisabled = -1
)

// Option validation errors.
var (
	ErrInvalidPort      = errors.New("config: port must be between 0 and 65535")
	ErrInvalidHTTPSPort = errors.New("config: https-port must be -1 (disabled) or between 0 and 65535")
	ErrNoListener       = errors.New("config: http is disabled and https is not enabled")
	ErrInvalidJournal   = errors.New("config: max-request-journal-entries must be positive")
	ErrInvalidTimeout   = errors.New("config: timeouts must not be negative")
)

// ServerOptions configures the mock server façade.
type ServerOptions struct {
	// Port is the HTTP port. 0 picks a free port.
	Port int

	// HTTPSPort is the HTTPS port. 0 picks a free port, -1 disables HTTPS.
	HTTPSPort int

	// DisableHTTP turns the plain HTTP listener off.
	DisableHTTP bool

	// BindAddress is the interface both listeners bind to.
	BindAddress string

	// RootDir contains the mappings directory.
	RootDir string

	// Verbose enables debug logging.
	Verbose bool

	// DisableGzip stops the stub handler from gzip-encoding responses.
	DisableGzip bool

	// MaxRequestJournalEntries bounds the request journal.
	MaxRequestJournalEntries int

	// NoRequestJournal disables the request journal.
	NoRequestJournal bool

	// Watch reloads mappings when files under RootDir/mappings change.
	Watch bool

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultServerOptions returns options with every default applied.
func DefaultServerOptions() *ServerOptions {
	return &ServerOptions{
		Port:                     0,
		HTTPSPort:                HTTPSDisabled,
		BindAddress:              DefaultBindAddress,
		RootDir:                  DefaultRootDir,
		MaxRequestJournalEntries: stub.DefaultJournalSize,
		ReadTimeout:              DefaultReadTimeout,
		WriteTimeout:             DefaultWriteTimeout,
	}
}

// BindFlags registers one flag per option on fs, using the current values as defaults.
func (o *ServerOptions) BindFlags(fs *pflag.FlagSet) {
	fs.SetNormalizeFunc(normalizeName)
	fs.IntVar(&o.Port, "port", o.Port, "HTTP port (0 = pick a free port)")
	fs.IntVar(&o.HTTPSPort, "https-port", o.HTTPSPort, "HTTPS port (0 = pick a free port, -1 = disabled)")
	fs.BoolVar(&o.DisableHTTP, "disable-http", o.DisableHTTP, "Disable the HTTP listener")
	fs.StringVar(&o.BindAddress, "bind-address", o.BindAddress, "Interface to bind to")
	fs.StringVar(&o.RootDir, "root-dir", o.RootDir, "Directory containing the mappings directory")
	fs.BoolVar(&o.Verbose, "verbose", o.Verbose, "Enable debug logging")
	fs.BoolVar(&o.DisableGzip, "disable-gzip", o.DisableGzip, "Never gzip stub responses")
	fs.IntVar(&o.MaxRequestJournalEntries, "max-request-journal-entries", o.MaxRequestJournalEntries, "Maximum number of journaled requests")
	fs.BoolVar(&o.NoRequestJournal, "no-request-journal", o.NoRequestJournal, "Disable the request journal")
	fs.BoolVar(&o.Watch, "watch", o.Watch, "Reload mappings when files change")
	fs.DurationVar(&o.ReadTimeout, "read-timeout", o.ReadTimeout, "HTTP read timeout")
	fs.DurationVar(&o.WriteTimeout, "write-timeout", o.WriteTimeout, "HTTP write timeout")
}

// FlagSet returns a FlagSet bound to o.
func (o *ServerOptions) FlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("protomock", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	o.BindFlags(fs)
	return fs
}

// IsServerOption reports whether name is a known server option.
func IsServerOption(name string) bool {
	return DefaultServerOptions().FlagSet().Lookup(name) != nil
}

// ParseArgs parses option strings on top of the defaults. Options that are
// not recognized are returned separately; later options override earlier ones.
func ParseArgs(args []string) (*ServerOptions, []string, error) {
	opts := DefaultServerOptions()
	fs := opts.FlagSet()

	known := make([]string, 0, len(args))
	unknown := make([]string, 0)
	for _, arg := range args {
		name, ok := optionName(arg)
		if !ok || fs.Lookup(name) == nil {
			unknown = append(unknown, arg)
			continue
		}
		known = append(known, arg)
	}

	if err := fs.Parse(known); err != nil {
		return nil, unknown, fmt.Errorf("config: %w", err)
	}
	return opts, unknown, nil
}

// Args renders every option as --name=value, in flag order.
func (o *ServerOptions) Args() []string {
	var args []string
	o.clone().FlagSet().VisitAll(func(f *pflag.Flag) {
		args = append(args, "--"+f.Name+"="+f.Value.String())
	})
	return args
}

// HTTPEnabled reports whether the plain HTTP listener is on.
func (o *ServerOptions) HTTPEnabled() bool {
	return !o.DisableHTTP
}

// HTTPSEnabled reports whether the HTTPS listener is on.
func (o *ServerOptions) HTTPSEnabled() bool {
	return o.HTTPSPort != HTTPSDisabled
}

// Validate checks option ranges and combinations.
func (o *ServerOptions) Validate() error {
	if o.Port < 0 || o.Port > 65535 {
		return ErrInvalidPort
	}
	if o.HTTPSPort < HTTPSDisabled || o.HTTPSPort > 65535 {
		return ErrInvalidHTTPSPort
	}
	if !o.HTTPEnabled() && !o.HTTPSEnabled() {
		return ErrNoListener
	}
	if o.MaxRequestJournalEntries <= 0 {
		return ErrInvalidJournal
	}
	if o.ReadTimeout < 0 || o.WriteTimeout < 0 {
		return ErrInvalidTimeout
	}
	return nil
}

func (o *ServerOptions) clone() *ServerOptions {
	c := *o
	return &c
}

func optionName(arg string) (string, bool) {
	rest, ok := strings.CutPrefix(arg, "--")
	if !ok || rest == "" {
		return "", false
	}
	name, _, _ := strings.Cut(rest, "=")
	return name, name != ""
}

func normalizeName(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(strings.ToLower(name), "_", "-"))
}
