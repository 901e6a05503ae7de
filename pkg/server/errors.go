package server

import "errors"

var (
	errPathEscapesRoot = errors.New("error: requested path escapes root directory")
	errStartingServer  = errors.New("error: starting the udp server")
)
