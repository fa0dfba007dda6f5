// Package config holds the protomock server options and the stub mapping
// file loader.
//
// Server options are command-line style strings, usually produced by
// envopts from WIREMOCK_* environment variables, parsed with pflag:
//
//	opts, unknown, err := config.ParseArgs(envopts.FromProcess())
//
// Underscores in option names are treated as hyphens, so WIREMOCK_ROOT_DIR
// and --root-dir configure the same option. Unknown options are returned to
// the caller instead of failing startup.
//
// Stub mappings are JSON or YAML files below <root-dir>/mappings. A file holds
// either a single stub or a list under a "mappings" key.
package config
