// Package envopts turns prefixed environment variables into command-line
// style server options.
//
// Every variable whose name starts with the prefix (compared
// case-insensitively) becomes one option. The remainder of the name is
// lower-cased and used as the option name:
//
//	WIREMOCK_PORT=8080        -> --port=8080
//	wiremock_verbose=         -> --verbose
//	WIREMOCK_HTTPS_PORT=8443  -> --https_port=8443
//
// Collect is a pure function over a map so it can be tested without touching
// the process environment.
package envopts

import (
	"os"
	"sort"
	"strings"
)

// DefaultPrefix is the prefix recognized by FromProcess.
const DefaultPrefix = "wiremock_"

// Collect returns one option string per entry of env whose key starts with
// prefix. Options are sorted so the result is stable across platforms.
func Collect(env map[string]string, prefix string) []string {
	prefix = strings.ToLower(prefix)

	opts := make([]string, 0)
	for key, value := range env {
		lower := strings.ToLower(key)
		if !strings.HasPrefix(lower, prefix) {
			continue
		}
		name := lower[len(prefix):]
		if name == "" {
			continue
		}
		opts = append(opts, Option(name, value))
	}

	sort.Strings(opts)
	return opts
}

// Option formats a single option. An empty value yields a bare flag.
func Option(name, value string) string {
	if value == "" {
		return "--" + name
	}
	return "--" + name + "=" + value
}

// ParseEnviron converts "KEY=value" entries, as returned by os.Environ, into a
// map. Entries without '=' map to an empty value. Later duplicates win.
func ParseEnviron(environ []string) map[string]string {
	env := make(map[string]string, len(environ))
	for _, kv := range environ {
		key, value, _ := strings.Cut(kv, "=")
		if key == "" {
			continue
		}
		env[key] = value
	}
	return env
}

// FromProcess collects options from the current process environment using
// DefaultPrefix.
func FromProcess() []string {
	return Collect(ParseEnviron(os.Environ()), DefaultPrefix)
}
