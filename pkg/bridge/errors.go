package bridge

import "errors"

// Schema errors.
var (
	// ErrNoProtoFiles is returned when LoadSchema is called without files.
	ErrNoProtoFiles = errors.New("bridge: no proto files provided")

	// ErrNoServices is returned when the compiled files declare no service.
	ErrNoServices = errors.New("bridge: proto files declare no services")
)
