// Package bridge serves gRPC services whose every call is answered by the
// mock server.
//
// Services come from .proto files compiled at runtime. A unary call is
// re-encoded as JSON, posted to /{package.Service}/{Method} through a
// client.Dispatcher and the stubbed JSON response is decoded into the method
// output type. A server-streaming call sends the decoded response as many
// times as the stub's streamSize header says. Incoming metadata travels with
// the call as propagated headers, so stubs can match on it.
//
// A response status other than 200 becomes a gRPC status: the body is the
// status message and an errdetails.ErrorInfo records the HTTP status.
package bridge
