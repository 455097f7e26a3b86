package ui

import (
	"peerdesk/pkg/cache"
	"peerdesk/pkg/model"
	"peerdesk/pkg/mutate"
)

// entryMsg carries a cache update into the bubbletea loop.
type entryMsg struct {
	entry cache.Entry
}

// loggedInMsg fires after a successful login and gate resolution.
type loggedInMsg struct {
	identity model.Identity
}

// mutatedMsg fires when a write completed.
type mutatedMsg struct {
	kind   mutate.Kind
	result mutate.Result
}

// savedMsg fires after a generated config was written to disk.
type savedMsg struct {
	path string
}

// errMsg surfaces any failed command.
type errMsg struct {
	err error
}

// deniedMsg means the gate rejected the stored credential.
type deniedMsg struct{}
