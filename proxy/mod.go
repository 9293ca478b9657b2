// Package proxy defines the primitives of the server that gives access to the
// node to the clients.
package proxy

import (
	"net"
	"net/http"
)

// Proxy defines the primitives to implement an http server that handles client
// side requests.
type Proxy interface {
	// Listen starts the proxy server. This call is blocking.
	Listen()

	// Stop stops the proxy server.
	Stop()

	// GetAddr returns the address of the server, or nil if it is not
	// listening.
	GetAddr() net.Addr

	// RegisterHandler registers a new handler for the method and the path.
	// The path accepts URL parameters in the form of '{name}'.
	RegisterHandler(method, path string, handler http.HandlerFunc)
}
