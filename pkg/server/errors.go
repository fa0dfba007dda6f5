package server

import (
	"errors"
	"fmt"
)

// Lifecycle errors.
var (
	ErrAlreadyRunning = errors.New("server: already running")
	ErrNotRunning     = errors.New("server: not running")
)

// BindError reports a listener that could not be opened. It is a startup
// failure: the server does not run and every listener it did open is closed.
type BindError struct {
	Scheme string
	Addr   string
	Err    error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("server: bind %s listener on %s: %v", e.Scheme, e.Addr, e.Err)
}

func (e *BindError) Unwrap() error {
	return e.Err
}
