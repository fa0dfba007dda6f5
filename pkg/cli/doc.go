// Package cli provides the protomock command-line interface.
//
// Commands:
//   - serve: start the stub server, optionally with a gRPC bridge (--proto)
//   - request: send a JSON message to a running stub server
//   - version: print build information
//
// Server options for serve come from WIREMOCK_<OPTION> environment variables
// and the matching flags; flags take precedence.
package cli
