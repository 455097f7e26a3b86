// Package config resolves runtime settings from .env, environment variables,
// and the data directory conventions of the host platform.
package config

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/joho/godotenv"
)

const appDirName = "peerdesk"

// Config is everything the console needs before it can talk to a controller.
type Config struct {
	Controller    string // controller base URL
	ConsulAddr    string // consul agent address for discovery builds
	ConsulService string // catalog service name of the controller
	CAFile        string
	CertFile      string
	KeyFile       string
	Insecure      bool
	DataDir       string
}

// Load reads .env when present, then the environment. Flag values layered on
// top are the caller's business.
func Load() (Config, error) {
	if err := loadDotEnv(); err != nil {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	dataDir, err := ResolveDataDir()
	if err != nil {
		return Config{}, err
	}
	return Config{
		Controller:    getenv("PEERDESK_CONTROLLER", "http://127.0.0.1:8000"),
		ConsulAddr:    os.Getenv("PEERDESK_CONSUL_ADDR"),
		ConsulService: getenv("PEERDESK_CONSUL_SERVICE", "peerdesk-controller"),
		CAFile:        os.Getenv("PEERDESK_CA_FILE"),
		CertFile:      os.Getenv("PEERDESK_CLIENT_CERT"),
		KeyFile:       os.Getenv("PEERDESK_CLIENT_KEY"),
		Insecure:      os.Getenv("PEERDESK_INSECURE") == "1",
		DataDir:       dataDir,
	}, nil
}

// ResolveDataDir picks the per-user state directory for this platform. The
// PEERDESK_DATA_DIR override wins everywhere.
func ResolveDataDir() (string, error) {
	if override := os.Getenv("PEERDESK_DATA_DIR"); override != "" {
		return override, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve user home: %w", err)
	}
	switch runtime.GOOS {
	case "windows":
		base := os.Getenv("APPDATA")
		if base == "" {
			base = filepath.Join(home, "AppData", "Roaming")
		}
		return filepath.Join(base, appDirName), nil
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", appDirName), nil
	default:
		base := os.Getenv("XDG_CONFIG_HOME")
		if base == "" {
			base = filepath.Join(home, ".config")
		}
		return filepath.Join(base, appDirName), nil
	}
}

// BuildHTTPClient assembles the transport for controller traffic, honoring a
// custom CA, mTLS client certificates, and the insecure switch.
func (c Config) BuildHTTPClient() (*http.Client, error) {
	tlsConfig := &tls.Config{InsecureSkipVerify: c.Insecure} //nolint:gosec
	if c.CAFile != "" {
		caCertPool := x509.NewCertPool()
		caData, err := os.ReadFile(c.CAFile)
		if err != nil {
			return nil, fmt.Errorf("read ca file: %w", err)
		}
		caCertPool.AppendCertsFromPEM(caData)
		tlsConfig.RootCAs = caCertPool
	}
	if c.CertFile != "" && c.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("load client cert: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}
	return &http.Client{
		Timeout: 15 * time.Second,
		Transport: &http.Transport{
			TLSClientConfig: tlsConfig,
		},
	}, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func loadDotEnv() error {
	if _, err := os.Stat(".env"); err == nil {
		return godotenv.Load(".env")
	}
	return nil
}
