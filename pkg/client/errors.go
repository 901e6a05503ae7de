package client

import "errors"

var errNotConnected = errors.New("error: not connected to a server")
