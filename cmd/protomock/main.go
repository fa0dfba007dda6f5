// protomock CLI - stub server and gRPC bridge for protobuf messages over HTTP
package main

import "github.com/getmockd/protomock/pkg/cli"

func main() {
	cli.Execute()
}
