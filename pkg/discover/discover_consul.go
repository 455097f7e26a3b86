//go:build consul

// Package discover resolves the controller address from the consul catalog
// when no explicit address is configured.
package discover

import (
	"context"
	"fmt"

	consulapi "github.com/hashicorp/consul/api"
)

// Enabled returns true when the consul tag is on.
func Enabled() bool { return true }

// Controller looks up the named service in the consul catalog and returns a
// base URL for the first healthy instance.
func Controller(ctx context.Context, addr string, service string) (string, error) {
	cfg := consulapi.DefaultConfig()
	if addr != "" {
		cfg.Address = addr
	}
	cli, err := consulapi.NewClient(cfg)
	if err != nil {
		return "", err
	}
	if service == "" {
		service = "peerdesk-controller"
	}
	entries, _, err := cli.Health().ServiceMultipleTags(service, nil, true, (&consulapi.QueryOptions{}).WithContext(ctx))
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", fmt.Errorf("no healthy %s instance in catalog", service)
	}
	svc := entries[0].Service
	host := svc.Address
	if host == "" {
		host = entries[0].Node.Address
	}
	return fmt.Sprintf("http://%s:%d", host, svc.Port), nil
}
