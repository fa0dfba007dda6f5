// Package metrics provides Prometheus instrumentation for protomock.
//
// All collectors live on a package-level registry so that several mock
// servers in the same test binary share one set of series and never hit
// duplicate-registration panics on the default registry.
//
//   - protomock_stub_requests_total: requests served by the stub handler
//     (labels: method, outcome)
//   - protomock_stubs: number of stubs currently registered
//   - protomock_dispatch_requests_total: requests sent by the dispatcher
//     (labels: status)
//   - protomock_dispatch_duration_seconds: dispatcher round-trip latency
//   - protomock_bridge_calls_total: gRPC calls handled by the bridge
//     (labels: method, code)
//
// Handler exposes the registry in the Prometheus text format.
package metrics
