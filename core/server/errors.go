package server

import "errors"

var (
	// ErrServerAlreadyRunning is returned by Start on a server that is
	// already serving.
	ErrServerAlreadyRunning = errors.New("server is already running")
)
