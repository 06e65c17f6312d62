package transport

import (
	"context"
	"fmt"
	"net"
	"sync"

	"ircsess/tunnel"
	"ircsess/util"
)

// SSHDialer reaches the IRC server through an SSH gateway. The tunnel
// comes up on the first Dial and is reused by later reconnects until
// it dies or the dialer is closed.
type SSHDialer struct {
	tunnel  tunnel.Tunnel
	gateway string
	logger  *util.Logger

	mu sync.Mutex
	up bool
}

// NewSSHDialer creates a dialer forwarding through the gateway in cfg.
func NewSSHDialer(cfg *tunnel.SSHConfig, logger *util.Logger) *SSHDialer {
	t := tunnel.NewSSHTunnel(cfg, logger)
	return NewTunnelDialer(t, cfg.User, logger)
}

// NewTunnelDialer wraps an arbitrary tunnel. user only labels the
// gateway in logs.
func NewTunnelDialer(t tunnel.Tunnel, user string, logger *util.Logger) *SSHDialer {
	gateway := t.Addr()
	if user != "" {
		gateway = user + "@" + gateway
	}
	return &SSHDialer{tunnel: t, gateway: gateway, logger: logger}
}

func (d *SSHDialer) ensureTunnel(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.up && d.tunnel.IsAlive() {
		return nil
	}
	if d.up {
		d.logger.Warn("ssh gateway %s went away, reconnecting", d.gateway)
		d.tunnel.Close() //nolint:errcheck
	}

	d.logger.Verbose("opening ssh gateway %s", d.gateway)
	if err := d.tunnel.Connect(ctx); err != nil {
		d.up = false
		return fmt.Errorf("tunnel: %w", err)
	}
	d.up = true
	return nil
}

// Dial connects to address through the gateway.
func (d *SSHDialer) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	if err := d.ensureTunnel(ctx); err != nil {
		return nil, err
	}
	return d.tunnel.Dial(ctx, network, address)
}

// Close tears down the gateway connection.
func (d *SSHDialer) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.up {
		return nil
	}
	d.up = false
	return d.tunnel.Close()
}
