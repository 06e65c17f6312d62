// Package tunnel carries IRC connections through an SSH gateway using
// golang.org/x/crypto/ssh.
package tunnel

import (
	"context"
	"net"
)

// Tunnel forwards TCP connections through a gateway. A tunnel is
// connected once and then serves any number of Dials, so reconnects
// to the IRC server reuse it while it stays alive.
type Tunnel interface {
	Connect(ctx context.Context) error
	Dial(ctx context.Context, network, address string) (net.Conn, error)
	// IsAlive reports false once the gateway connection has dropped;
	// the owner is expected to Close and Connect again.
	IsAlive() bool
	// Addr is the gateway's host:port, for logs.
	Addr() string
	Close() error
}

var _ Tunnel = (*SSHTunnel)(nil)
