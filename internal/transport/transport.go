// Package transport provides abstractions for reaching the network
// side of a route.  Dialers handle connection establishment, either
// plain TCP or TCP through an SSH gateway, independent of what flows
// over the connection afterwards.
package transport

import (
	"context"
	"net"
)

// Dialer opens outbound network connections.  Implementations include
// a plain TCP dialer and an SSH-gateway dialer that routes traffic
// through an encrypted bastion.
type Dialer interface {
	// Dial establishes a connection to the given network address.
	Dial(ctx context.Context, network, address string) (net.Conn, error)

	// Close releases any long-lived resources held by the dialer
	// (e.g. an SSH client).  Stateless dialers return nil.
	Close() error
}
