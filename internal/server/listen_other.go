//go:build !unix

package server

import (
	"context"
	"net"
)

// listenTCP falls back to the standard listener. The backlog is left to the
// operating system.
func listenTCP(addr string, _ int) (net.Listener, error) {
	lc := new(net.ListenConfig)
	return lc.Listen(context.Background(), "tcp", addr)
}
