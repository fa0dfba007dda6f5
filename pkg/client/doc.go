// Package client sends protobuf messages to the mock server as JSON and
// wraps what comes back.
//
// A Dispatcher posts each message to {baseURL}/{path}. Headers captured from
// an inbound call travel in the context (see WithPropagatedHeaders) and win
// over headers given by the caller. Failures to reach the server surface as
// *RequestError; a response with any status other than 200 surfaces as
// *BadResponseError when its message is read. Nothing is retried.
package client
