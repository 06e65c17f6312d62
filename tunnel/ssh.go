package tunnel

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	ircerr "ircsess/internal/errors"
	"ircsess/util"
)

// SSHConfig holds everything needed to dial an SSH gateway.
type SSHConfig struct {
	User          string
	Host          string
	Port          int
	KeyPath       string
	PromptPass    bool
	UseAgent      bool
	StrictHostKey bool
	KnownHosts    string
	ConnTimeout   time.Duration

	// KeepAlive is the interval between keepalive@openssh.com
	// requests. Zero disables them.
	KeepAlive time.Duration

	// Prompt reads a secret (password or key passphrase) from the
	// user. Nil reads from the terminal.
	Prompt func(label string) (string, error)
}

func (c *SSHConfig) prompt(label string) (string, error) {
	if c.Prompt != nil {
		return c.Prompt(label)
	}
	return util.ReadSecret(label)
}

// SSHTunnel implements [Tunnel] by opening an SSH connection and
// forwarding traffic with ssh.Client.DialContext.
type SSHTunnel struct {
	config *SSHConfig
	client *ssh.Client
	logger *util.Logger
	mu     sync.RWMutex
	alive  bool
}

// NewSSHTunnel creates a tunnel that is ready to [Connect].
func NewSSHTunnel(cfg *SSHConfig, logger *util.Logger) *SSHTunnel {
	if cfg.Port == 0 {
		cfg.Port = 22
	}
	if cfg.ConnTimeout == 0 {
		cfg.ConnTimeout = 30 * time.Second
	}
	return &SSHTunnel{config: cfg, logger: logger.Named("ssh")}
}

// Addr returns the gateway address.
func (t *SSHTunnel) Addr() string { return util.FormatAddr(t.config.Host, t.config.Port) }

// Connect dials the SSH gateway and completes the handshake.
func (t *SSHTunnel) Connect(ctx context.Context) error {
	authMethods, err := BuildAuthMethods(t.config)
	if err != nil {
		return ircerr.WrapSSH("auth", t.config.Host, t.config.Port, err)
	}

	hkCallback, err := hostKeyCallback(t.config, t.logger)
	if err != nil {
		return ircerr.WrapSSH("hostkey", t.config.Host, t.config.Port, err)
	}

	sshCfg := &ssh.ClientConfig{
		User:            t.config.User,
		Auth:            authMethods,
		HostKeyCallback: hkCallback,
		Timeout:         t.config.ConnTimeout,
	}

	addr := t.Addr()
	t.logger.Debug("dialing %s as %s", addr, t.config.User)

	dialer := net.Dialer{Timeout: t.config.ConnTimeout}
	tcpConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return ircerr.Wrap("dial", addr, err)
	}

	// the handshake has no context of its own
	stop := context.AfterFunc(ctx, func() { tcpConn.Close() })
	sshConn, chans, reqs, err := ssh.NewClientConn(tcpConn, addr, sshCfg)
	stop()
	if err != nil {
		tcpConn.Close()
		return t.handshakeError(err)
	}

	client := ssh.NewClient(sshConn, chans, reqs)

	t.mu.Lock()
	t.client = client
	t.alive = true
	t.mu.Unlock()

	go t.monitor(client)
	if t.config.KeepAlive > 0 {
		go t.keepaliveLoop(client, t.config.KeepAlive)
	}
	return nil
}

// handshakeError tags authentication and host-key failures with their
// sentinels so callers can tell them from network trouble.
func (t *SSHTunnel) handshakeError(err error) error {
	var keyErr *knownhosts.KeyError
	switch {
	case ircerr.As(err, &keyErr) && len(keyErr.Want) > 0,
		strings.Contains(err.Error(), "knownhosts: key mismatch"):
		err = fmt.Errorf("%w: %v", ircerr.ErrHostKeyMismatch, err)
		return ircerr.WrapSSH("hostkey", t.config.Host, t.config.Port, err)
	case strings.Contains(err.Error(), "unable to authenticate"):
		err = fmt.Errorf("%w: %v", ircerr.ErrAuthFailed, err)
		return ircerr.WrapSSH("auth", t.config.Host, t.config.Port, err)
	}
	return ircerr.WrapSSH("handshake", t.config.Host, t.config.Port, err)
}

// Dial forwards a connection through the tunnel.
func (t *SSHTunnel) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	t.mu.RLock()
	client := t.client
	alive := t.alive
	t.mu.RUnlock()

	if !alive || client == nil {
		return nil, ircerr.ErrTunnelClosed
	}

	t.logger.Debug("forwarding %s %s", network, address)
	conn, err := client.DialContext(ctx, network, address)
	if err != nil {
		return nil, ircerr.Wrap("tunnel dial", address, err)
	}
	return conn, nil
}

// Close shuts down the SSH connection.
func (t *SSHTunnel) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.alive = false
	if t.client != nil {
		err := t.client.Close()
		t.client = nil
		return err
	}
	return nil
}

// IsAlive reports whether the tunnel is still connected.
func (t *SSHTunnel) IsAlive() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.alive
}

// monitor blocks until client closes and flips the alive flag if it is
// still the current client.
func (t *SSHTunnel) monitor(client *ssh.Client) {
	err := client.Wait()

	t.mu.Lock()
	if t.client == client {
		t.alive = false
	}
	t.mu.Unlock()

	if err != nil {
		t.logger.Debug("gateway closed: %v", err)
	} else {
		t.logger.Debug("gateway closed")
	}
}

// keepaliveLoop pings the gateway and closes client once a ping fails,
// which lets monitor mark the tunnel dead.
func (t *SSHTunnel) keepaliveLoop(client *ssh.Client, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for range ticker.C {
		t.mu.RLock()
		current := t.client == client
		t.mu.RUnlock()
		if !current {
			return
		}
		if _, _, err := client.SendRequest("keepalive@openssh.com", true, nil); err != nil {
			t.logger.Warn("keepalive failed: %v", err)
			client.Close()
			return
		}
		t.logger.Debug("keepalive ok")
	}
}
