package transport

import (
	"context"
	"fmt"
	"net"
	"time"
)

// TCPDialer dials IRC servers directly.
type TCPDialer struct {
	Timeout time.Duration

	// LocalAddr binds outgoing connections to a source IP, e.g. a
	// vhost the network resolves to a nicer hostname. Empty lets the
	// kernel choose.
	LocalAddr string

	// KeepAlive is the TCP keepalive period; zero uses 30s and a
	// negative value disables keepalives.
	KeepAlive time.Duration
}

// Dial connects to address over TCP.
func (d *TCPDialer) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	keepAlive := d.KeepAlive
	if keepAlive == 0 {
		keepAlive = 30 * time.Second
	}
	dialer := net.Dialer{Timeout: d.Timeout, KeepAlive: keepAlive}

	if d.LocalAddr != "" {
		ip := net.ParseIP(d.LocalAddr)
		if ip == nil {
			return nil, fmt.Errorf("bind address %q is not an IP", d.LocalAddr)
		}
		dialer.LocalAddr = &net.TCPAddr{IP: ip}
	}
	return dialer.DialContext(ctx, network, address)
}

// Close is a no-op; a TCPDialer holds no resources.
func (d *TCPDialer) Close() error { return nil }
