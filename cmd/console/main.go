package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"peerdesk/pkg/cache"
	"peerdesk/pkg/client"
	"peerdesk/pkg/config"
	"peerdesk/pkg/discover"
	"peerdesk/pkg/live"
	"peerdesk/pkg/localdb"
	"peerdesk/pkg/mutate"
	"peerdesk/pkg/session"
	"peerdesk/pkg/token"
	"peerdesk/pkg/ui"
	"peerdesk/pkg/version"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	controller := flag.String("controller", cfg.Controller, "controller base URL (env PEERDESK_CONTROLLER)")
	dataDir := flag.String("data-dir", cfg.DataDir, "state directory (env PEERDESK_DATA_DIR)")
	caFile := flag.String("ca", cfg.CAFile, "CA file for controller TLS (optional)")
	clientCert := flag.String("cert", cfg.CertFile, "client TLS certificate (for mTLS)")
	clientKey := flag.String("key", cfg.KeyFile, "client TLS key (for mTLS)")
	insecure := flag.Bool("insecure", cfg.Insecure, "skip TLS verify for controller (not recommended)")
	consulAddr := flag.String("consul", cfg.ConsulAddr, "consul address for controller discovery (optional)")
	showVersion := flag.Bool("v", false, "print version and exit")
	doLogout := flag.Bool("logout", false, "clear stored credentials and cached state, then exit")
	flag.Parse()

	if *showVersion {
		log.Printf("peerdesk version=%s", version.Build)
		return
	}

	cfg.Controller = *controller
	cfg.DataDir = *dataDir
	cfg.CAFile = *caFile
	cfg.CertFile = *clientCert
	cfg.KeyFile = *clientKey
	cfg.Insecure = *insecure
	cfg.ConsulAddr = *consulAddr

	db, err := localdb.Open(cfg.DataDir)
	if err != nil {
		log.Fatalf("open local state: %v", err)
	}
	defer db.Close()

	tokens := token.NewStore(db)
	c := cache.New(db)

	if *doLogout {
		tokens.Clear()
		c.Reset()
		log.Printf("cleared credentials and cached state in %s", cfg.DataDir)
		return
	}

	// The alt screen owns the terminal from here on; logs go to a file.
	if f, err := os.OpenFile(filepath.Join(cfg.DataDir, "console.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600); err == nil {
		log.SetOutput(f)
		defer f.Close()
	}

	if *consulAddr != "" && discover.Enabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		addr, err := discover.Controller(ctx, *consulAddr, cfg.ConsulService)
		cancel()
		if err != nil {
			log.Printf("consul discovery failed, using %s: %v", cfg.Controller, err)
		} else {
			log.Printf("discovered controller at %s", addr)
			cfg.Controller = addr
		}
	}

	httpClient, err := cfg.BuildHTTPClient()
	if err != nil {
		log.Fatalf("http client build failed: %v", err)
	}
	api := client.New(cfg.Controller, httpClient, tokens)
	gate := session.NewGate(tokens, api, c)
	coord := mutate.NewCoordinator(api, c)

	push, err := live.New(cfg.Controller, tokens, c)
	if err != nil {
		log.Printf("live updates disabled: %v", err)
	} else {
		push.Start()
		defer push.Close()
	}

	app := ui.New(ui.Deps{
		API:     api,
		Cache:   c,
		Gate:    gate,
		Mutate:  coord,
		Tokens:  tokens,
		DataDir: cfg.DataDir,
	})
	if _, err := tea.NewProgram(app, tea.WithAltScreen()).Run(); err != nil {
		log.Fatalf("console exited: %v", err)
	}
}
