// Package wgconf parses and sanity-checks the wg-quick configuration text the
// controller generates for a peer before it is saved to disk.
package wgconf

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

type Interface struct {
	PrivateKey string
	Address    string
	DNS        string
	ListenPort int
}

type Peer struct {
	PublicKey  string
	Endpoint   string
	AllowedIPs string
	Keepalive  int
}

type Config struct {
	Interface Interface
	Peers     []Peer
}

// Parse reads wg-quick INI text. Unknown keys are kept out of the model but
// do not fail the parse; wg-quick itself accepts more than we inspect.
func Parse(text string) (Config, error) {
	var cfg Config
	var section string
	var peer *Peer
	for ln, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "[") {
			if peer != nil {
				cfg.Peers = append(cfg.Peers, *peer)
				peer = nil
			}
			section = strings.ToLower(strings.Trim(line, "[]"))
			if section == "peer" {
				peer = &Peer{}
			} else if section != "interface" {
				return Config{}, fmt.Errorf("line %d: unknown section %q", ln+1, line)
			}
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return Config{}, fmt.Errorf("line %d: expected key = value", ln+1)
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		switch section {
		case "interface":
			switch key {
			case "privatekey":
				cfg.Interface.PrivateKey = value
			case "address":
				cfg.Interface.Address = value
			case "dns":
				cfg.Interface.DNS = value
			case "listenport":
				p, err := strconv.Atoi(value)
				if err != nil {
					return Config{}, fmt.Errorf("line %d: bad ListenPort: %w", ln+1, err)
				}
				cfg.Interface.ListenPort = p
			}
		case "peer":
			switch key {
			case "publickey":
				peer.PublicKey = value
			case "endpoint":
				peer.Endpoint = value
			case "allowedips":
				peer.AllowedIPs = value
			case "persistentkeepalive":
				k, err := strconv.Atoi(value)
				if err != nil {
					return Config{}, fmt.Errorf("line %d: bad PersistentKeepalive: %w", ln+1, err)
				}
				peer.Keepalive = k
			}
		default:
			return Config{}, fmt.Errorf("line %d: key outside a section", ln+1)
		}
	}
	if peer != nil {
		cfg.Peers = append(cfg.Peers, *peer)
	}
	return cfg, nil
}

// Validate checks that the document is usable: the private key and every peer
// public key parse as curve25519 keys, at least one peer is present, and the
// interface does not list its own derived public key as a peer.
func (c Config) Validate() error {
	if c.Interface.PrivateKey == "" {
		return fmt.Errorf("interface has no private key")
	}
	priv, err := wgtypes.ParseKey(c.Interface.PrivateKey)
	if err != nil {
		return fmt.Errorf("parse private key: %w", err)
	}
	if c.Interface.Address == "" {
		return fmt.Errorf("interface has no address")
	}
	if len(c.Peers) == 0 {
		return fmt.Errorf("config has no peers")
	}
	self := priv.PublicKey().String()
	for i, p := range c.Peers {
		if p.PublicKey == "" {
			return fmt.Errorf("peer %d has no public key", i)
		}
		if _, err := wgtypes.ParseKey(p.PublicKey); err != nil {
			return fmt.Errorf("peer %d: parse public key: %w", i, err)
		}
		if p.PublicKey == self {
			return fmt.Errorf("peer %d lists the interface's own key", i)
		}
		if p.AllowedIPs == "" {
			return fmt.Errorf("peer %d has no allowed IPs", i)
		}
	}
	return nil
}

// Save validates the document and writes it under dir as <name>.conf with
// key-file permissions.
func Save(dir, name, text string) (string, error) {
	cfg, err := Parse(text)
	if err != nil {
		return "", fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return "", fmt.Errorf("validate config: %w", err)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("mkdir output: %w", err)
	}
	path := filepath.Join(dir, name+".conf")
	if err := os.WriteFile(path, []byte(text), 0o600); err != nil {
		return "", fmt.Errorf("write config: %w", err)
	}
	return path, nil
}
