// Package server runs the embedded mock HTTP server.
//
// A Server owns its listeners for its whole lifecycle:
//
//	NotStarted -> Running -> Stopped -> Running -> ...
//
// Start binds the configured (or OS-assigned) ports, loads stub mappings from
// RootDir/mappings and serves stubs and the /__admin API. Stop shuts the
// listeners down so a later Start can bind the same ports again.
//
//	srv, err := server.FromEnvironment()
//	if err != nil { ... }
//	if err := srv.Start(ctx); err != nil { ... }
//	defer srv.Stop(context.Background())
//	baseURL, _ := srv.BaseURL()
package server
