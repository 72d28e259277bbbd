package client

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrNotConnected is returned by Call before Connect or after Disconnect.
var ErrNotConnected = errors.New("not connected to server")

// ConnectError reports a server that could not be reached.
type ConnectError struct {
	Addr string
	Err  error
}

func (e *ConnectError) Error() string {
	if e.Addr == "" {
		return fmt.Sprintf("connect: %v", e.Err)
	}
	return fmt.Sprintf("connect %s: %v", e.Addr, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

func (e *ConnectError) Cause() error { return e.Err }

// RPCError is a failure reported by the server. Message is the server's
// error text, unchanged.
type RPCError struct {
	Method  string
	Message string
}

func (e *RPCError) Error() string { return e.Message }
