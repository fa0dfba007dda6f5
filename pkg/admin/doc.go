// Package admin serves the /__admin API of a running mock server.
//
// The API manages stubs at runtime and exposes the request journal, health
// and Prometheus metrics:
//
//	GET    /__admin/health
//	GET    /__admin/mappings
//	POST   /__admin/mappings
//	POST   /__admin/mappings/reset
//	GET    /__admin/mappings/{id}
//	DELETE /__admin/mappings/{id}
//	GET    /__admin/requests
//	DELETE /__admin/requests
//	GET    /__admin/metrics
package admin
