package tunnel

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"

	"ircsess/util"
)

// defaultKeyNames are tried in ~/.ssh when no method was configured.
var defaultKeyNames = []string{"id_ed25519", "id_ecdsa", "id_rsa"}

// BuildAuthMethods returns the gateway authentication methods in the
// order they are offered. Configured methods come first (key file,
// agent, password); with none configured the agent and unencrypted
// default keys are used.
func BuildAuthMethods(cfg *SSHConfig) ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod

	if cfg.KeyPath != "" {
		signer, err := loadSigner(cfg.KeyPath, cfg.prompt)
		if err != nil {
			return nil, fmt.Errorf("key %s: %w", cfg.KeyPath, err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}
	if cfg.UseAgent {
		m, err := agentAuth()
		if err != nil {
			return nil, fmt.Errorf("ssh-agent: %w", err)
		}
		methods = append(methods, m)
	}
	if cfg.PromptPass {
		pass, err := cfg.prompt(fmt.Sprintf("Password for %s@%s: ", cfg.User, cfg.Host))
		if err != nil {
			return nil, err
		}
		methods = append(methods, ssh.Password(pass))
	}
	if len(methods) > 0 {
		return methods, nil
	}

	if methods = implicitAuthMethods(); len(methods) == 0 {
		return nil, errors.New("no SSH authentication methods available, " +
			"use --ssh-key, --ssh-password, or --ssh-agent")
	}
	return methods, nil
}

// loadSigner parses the private key at path. An encrypted key is
// decrypted with a passphrase from prompt; a nil prompt refuses it.
func loadSigner(path string, prompt func(string) (string, error)) (ssh.Signer, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading key: %w", err)
	}

	signer, err := ssh.ParsePrivateKey(pem)
	var missing *ssh.PassphraseMissingError
	if err == nil || !errors.As(err, &missing) {
		if err != nil {
			return nil, fmt.Errorf("parsing key: %w", err)
		}
		return signer, nil
	}
	if prompt == nil {
		return nil, err
	}

	pass, err := prompt(fmt.Sprintf("Enter passphrase for %s: ", path))
	if err != nil {
		return nil, err
	}
	signer, err = ssh.ParsePrivateKeyWithPassphrase(pem, []byte(pass))
	if err != nil {
		return nil, fmt.Errorf("decrypting key: %w", err)
	}
	return signer, nil
}

func agentAuth() (ssh.AuthMethod, error) {
	sock := os.Getenv("SSH_AUTH_SOCK")
	if sock == "" {
		return nil, errors.New("SSH_AUTH_SOCK is not set")
	}
	conn, err := net.Dial("unix", sock)
	if err != nil {
		return nil, fmt.Errorf("connecting to agent at %s: %w", sock, err)
	}
	return ssh.PublicKeysCallback(agent.NewClient(conn).Signers), nil
}

// implicitAuthMethods never prompts: encrypted default keys are
// skipped.
func implicitAuthMethods() []ssh.AuthMethod {
	var out []ssh.AuthMethod
	if m, err := agentAuth(); err == nil {
		out = append(out, m)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return out
	}
	var signers []ssh.Signer
	for _, name := range defaultKeyNames {
		if s, err := loadSigner(filepath.Join(home, ".ssh", name), nil); err == nil {
			signers = append(signers, s)
		}
	}
	if len(signers) > 0 {
		out = append(out, ssh.PublicKeys(signers...))
	}
	return out
}

// ── host-key verification ────────────────────────────────────────────

// hostKeyCallback checks the gateway against known_hosts in strict
// mode. Otherwise any key is accepted and its fingerprint logged.
func hostKeyCallback(cfg *SSHConfig, logger *util.Logger) (ssh.HostKeyCallback, error) {
	if !cfg.StrictHostKey {
		return func(host string, _ net.Addr, key ssh.PublicKey) error {
			logger.Verbose("accepting %s host key %s for %s without verification",
				key.Type(), ssh.FingerprintSHA256(key), host)
			return nil
		}, nil
	}

	path := cfg.KnownHosts
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("locating home directory: %w", err)
		}
		path = filepath.Join(home, ".ssh", "known_hosts")
	}

	cb, err := knownhosts.New(path)
	if err != nil {
		return nil, fmt.Errorf("loading known_hosts from %s: %w", path, err)
	}
	return cb, nil
}
