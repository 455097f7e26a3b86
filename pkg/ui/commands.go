package ui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"peerdesk/pkg/cache"
	"peerdesk/pkg/model"
	"peerdesk/pkg/mutate"
	"peerdesk/pkg/session"
	"peerdesk/pkg/wgconf"
)

const cmdTimeout = 15 * time.Second

// subscribe attaches to a cache key and routes every update through the
// model's channel. The cancel func is remembered so logout can detach all
// views at once.
func (m *Model) subscribe(key string, fetch cache.FetchFunc, opts cache.Options) cache.Entry {
	if _, ok := m.cancels[key]; ok {
		entry, _ := m.deps.Cache.Get(key)
		return entry
	}
	entry, cancel := m.deps.Cache.Subscribe(key, fetch, opts, func(e cache.Entry) {
		select {
		case m.updates <- e:
		default:
			// Drop under backpressure; the poller will deliver a fresh
			// entry shortly.
		}
	})
	m.cancels[key] = cancel
	return entry
}

func (m *Model) unsubscribe(key string) {
	if cancel, ok := m.cancels[key]; ok {
		cancel()
		delete(m.cancels, key)
	}
}

func (m *Model) unsubscribeAll() {
	for key, cancel := range m.cancels {
		cancel()
		delete(m.cancels, key)
	}
}

// waitForUpdate blocks until the next cache update arrives. Re-armed after
// every entryMsg.
func (m *Model) waitForUpdate() tea.Cmd {
	return func() tea.Msg {
		return entryMsg{entry: <-m.updates}
	}
}

func (m *Model) loginCmd(username, password string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), cmdTimeout)
		defer cancel()
		tok, err := m.deps.API.Login(ctx, username, password)
		if err != nil {
			return errMsg{err: err}
		}
		m.deps.Tokens.Set(tok)
		if m.deps.Gate.Resolve(ctx) != session.StateAuthenticated {
			return deniedMsg{}
		}
		id, _ := m.deps.Gate.Identity()
		return loggedInMsg{identity: id}
	}
}

func (m *Model) resolveGateCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), cmdTimeout)
		defer cancel()
		if m.deps.Gate.Resolve(ctx) != session.StateAuthenticated {
			return deniedMsg{}
		}
		id, _ := m.deps.Gate.Identity()
		return loggedInMsg{identity: id}
	}
}

func (m *Model) mutateCmd(in mutate.Intent) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), cmdTimeout)
		defer cancel()
		res, err := m.deps.Mutate.Do(ctx, in)
		if err != nil {
			return errMsg{err: err}
		}
		return mutatedMsg{kind: in.Kind, result: res}
	}
}

func (m *Model) saveConfigCmd(peer model.Peer, text string) tea.Cmd {
	return func() tea.Msg {
		path, err := wgconf.Save(m.deps.DataDir, peer.PeerName, text)
		if err != nil {
			return errMsg{err: err}
		}
		return savedMsg{path: path}
	}
}
