// Package ui is the terminal front end. One bubbletea model owns every view;
// cache updates arrive over a channel and are re-dispatched as messages so
// all rendering happens on the program goroutine.
package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"peerdesk/pkg/cache"
	"peerdesk/pkg/client"
	"peerdesk/pkg/model"
	"peerdesk/pkg/mutate"
	"peerdesk/pkg/session"
	"peerdesk/pkg/token"
)

type Deps struct {
	API     *client.Client
	Cache   *cache.Cache
	Gate    *session.Gate
	Mutate  *mutate.Coordinator
	Tokens  *token.Store
	DataDir string
}

type view int

const (
	viewLogin view = iota
	viewPeers
	viewUsers
	viewUserPeers
	viewNewPeer
	viewNewUser
	viewConfig
)

type Model struct {
	deps    Deps
	view    view
	updates chan cache.Entry
	cancels map[string]func()

	identity model.Identity

	login    form
	peerForm form
	userForm form

	peers     table.Model
	users     table.Model
	peerList  []model.Peer
	userList  []model.User
	roleList  []model.Role
	userPeers []model.Peer
	selUser   model.User

	configPeer model.Peer
	configText string
	editID     string // peer being edited; empty means the form creates

	status  string
	errText string
	width   int
	height  int
}

func New(deps Deps) *Model {
	return &Model{
		deps:     deps,
		view:     viewLogin,
		updates:  make(chan cache.Entry, 64),
		cancels:  map[string]func(){},
		login:    newForm("sign in", textField("username", false), textField("password", true)),
		peerForm: newForm("new peer", textField("peer name", false), textField("assigned ip (optional)", false)),
		userForm: newForm("new user", textField("username", false), textField("password", true), textField("role", false)),
		peers:    newPeersTable(),
		users:    newUsersTable(),
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.resolveGateCmd(), m.waitForUpdate())
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		return m.handleKey(msg)

	case loggedInMsg:
		m.identity = msg.identity
		m.errText = ""
		m.enterPeers()
		return m, nil

	case deniedMsg:
		m.toLogin("")
		return m, nil

	case entryMsg:
		m.applyEntry(msg.entry)
		return m, m.waitForUpdate()

	case mutatedMsg:
		return m.handleMutated(msg)

	case savedMsg:
		m.status = "saved " + msg.path
		return m, nil

	case errMsg:
		if errors.Is(msg.err, client.ErrUnauthenticated) {
			m.logout()
			m.toLogin("session expired, sign in again")
			return m, nil
		}
		m.errText = msg.err.Error()
		return m, nil
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.view {
	case viewLogin:
		var cmd tea.Cmd
		var submit bool
		m.login, cmd, submit = m.login.update(msg)
		if submit {
			v := m.login.values()
			m.status = "signing in..."
			return m, m.loginCmd(v[0], v[1])
		}
		return m, cmd

	case viewNewPeer:
		if msg.String() == "esc" {
			m.view = viewPeers
			return m, nil
		}
		var cmd tea.Cmd
		var submit bool
		m.peerForm, cmd, submit = m.peerForm.update(msg)
		if submit {
			v := m.peerForm.values()
			req := model.PeerRequest{PeerName: v[0], IP: v[1]}
			editID := m.editID
			m.peerForm = m.peerForm.reset()
			m.editID = ""
			m.view = viewPeers
			if editID != "" {
				return m, m.mutateCmd(mutate.UpdatePeer(editID, m.identity.ID, req))
			}
			return m, m.mutateCmd(mutate.CreatePeer(m.identity.ID, req))
		}
		return m, cmd

	case viewNewUser:
		if msg.String() == "esc" {
			m.view = viewUsers
			return m, nil
		}
		var cmd tea.Cmd
		var submit bool
		m.userForm, cmd, submit = m.userForm.update(msg)
		if submit {
			v := m.userForm.values()
			roleID, ok := m.roleByName(v[2])
			if !ok {
				m.errText = "unknown role: " + v[2]
				return m, nil
			}
			m.userForm = m.userForm.reset()
			m.view = viewUsers
			return m, m.mutateCmd(mutate.CreateUser(model.UserRequest{Username: v[0], Password: v[1], RoleID: roleID}))
		}
		return m, cmd

	case viewConfig:
		switch msg.String() {
		case "esc":
			m.view = viewPeers
			return m, nil
		case "s":
			return m, m.saveConfigCmd(m.configPeer, m.configText)
		}
		return m, nil

	case viewPeers:
		return m.handlePeersKey(msg)

	case viewUsers:
		return m.handleUsersKey(msg)

	case viewUserPeers:
		if msg.String() == "esc" {
			// Leaving the drill-down releases its subscription so the
			// key's poller stops instead of accumulating per visited user.
			m.unsubscribe(cache.KeyUserPeers(m.selUser.ID))
			m.view = viewUsers
			return m, nil
		}
		return m, nil
	}
	return m, nil
}

func (m *Model) handlePeersKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "u":
		m.enterUsers()
		return m, nil
	case "n":
		m.peerForm = m.peerForm.reset()
		m.peerForm.title = "new peer"
		m.editID = ""
		m.view = viewNewPeer
		return m, nil
	case "e":
		if p, ok := m.selectedPeer(); ok {
			m.peerForm = m.peerForm.reset()
			m.peerForm.title = "edit " + p.PeerName
			m.peerForm.inputs[0].SetValue(p.PeerName)
			m.peerForm.inputs[1].SetValue(p.AssignedIP)
			m.editID = p.ID
			m.view = viewNewPeer
		}
		return m, nil
	case "r":
		m.deps.Cache.Invalidate(cache.KeyPeers)
		return m, nil
	case "d":
		if p, ok := m.selectedPeer(); ok {
			return m, m.mutateCmd(mutate.DeletePeer(p.ID, m.identity.ID))
		}
		return m, nil
	case "g":
		if p, ok := m.selectedPeer(); ok {
			m.configPeer = p
			m.status = "generating config for " + p.PeerName + "..."
			return m, m.mutateCmd(mutate.GenerateConfig(p.ID))
		}
		return m, nil
	case "L":
		m.logout()
		m.toLogin("")
		return m, nil
	}
	var cmd tea.Cmd
	m.peers, cmd = m.peers.Update(msg)
	return m, cmd
}

func (m *Model) handleUsersKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "esc", "p":
		m.view = viewPeers
		return m, nil
	case "r":
		m.deps.Cache.Invalidate(cache.KeyUsers)
		return m, nil
	case "x":
		if u, ok := m.selectedUser(); ok {
			return m, m.mutateCmd(mutate.DeleteUser(u.ID))
		}
		return m, nil
	case "a":
		m.view = viewNewUser
		return m, nil
	case "enter":
		if u, ok := m.selectedUser(); ok {
			m.selUser = u
			m.userPeers = nil
			m.view = viewUserPeers
			key := cache.KeyUserPeers(u.ID)
			fetch := func(ctx context.Context) (any, error) { return m.deps.API.UserPeers(ctx, u.ID) }
			entry := m.subscribe(key, fetch, cache.Options{PollInterval: cache.DefaultPollInterval, Decode: decodePeers})
			if peers, ok := entry.Value.([]model.Peer); ok {
				m.userPeers = peers
			}
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.users, cmd = m.users.Update(msg)
	return m, cmd
}

func (m *Model) handleMutated(msg mutatedMsg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case mutate.KindGenerateConfig:
		m.configText = msg.result.Config
		m.view = viewConfig
		m.status = ""
	default:
		m.status = msg.kind.String() + " ok"
	}
	return m, nil
}

// applyEntry routes a cache update into whichever view shows that key. An
// Error entry keeps the previous rows on screen and only surfaces the
// failure text.
func (m *Model) applyEntry(e cache.Entry) {
	if e.Status == cache.StatusError {
		if e.Err != nil {
			if errors.Is(e.Err, client.ErrUnauthenticated) {
				m.logout()
				m.toLogin("session expired, sign in again")
				return
			}
			m.errText = e.Err.Error()
		}
		return
	}
	if e.Status != cache.StatusReady {
		return
	}
	m.errText = ""
	switch {
	case e.Key == cache.KeyPeers:
		if peers, ok := e.Value.([]model.Peer); ok {
			m.peerList = peers
			m.peers.SetRows(peerRows(peers))
		}
	case e.Key == cache.KeyUsers:
		if users, ok := e.Value.([]model.User); ok {
			m.userList = users
			m.users.SetRows(userRows(users))
		}
	case e.Key == cache.KeyRoles:
		if roles, ok := e.Value.([]model.Role); ok {
			m.roleList = roles
		}
	case m.selUser.ID != "" && e.Key == cache.KeyUserPeers(m.selUser.ID):
		if peers, ok := e.Value.([]model.Peer); ok {
			m.userPeers = peers
		}
	}
}

func (m *Model) enterPeers() {
	m.view = viewPeers
	m.status = ""
	fetch := func(ctx context.Context) (any, error) { return m.deps.API.Peers(ctx) }
	entry := m.subscribe(cache.KeyPeers, fetch, cache.Options{PollInterval: cache.DefaultPollInterval, Decode: decodePeers})
	if peers, ok := entry.Value.([]model.Peer); ok {
		m.peerList = peers
		m.peers.SetRows(peerRows(peers))
	}
}

func (m *Model) enterUsers() {
	m.view = viewUsers
	m.status = ""
	fetch := func(ctx context.Context) (any, error) { return m.deps.API.Users(ctx) }
	entry := m.subscribe(cache.KeyUsers, fetch, cache.Options{PollInterval: cache.DefaultPollInterval, Decode: decodeUsers})
	if users, ok := entry.Value.([]model.User); ok {
		m.userList = users
		m.users.SetRows(userRows(users))
	}
	// Roles back the new-user form; they change rarely, so no polling.
	roleFetch := func(ctx context.Context) (any, error) { return m.deps.API.Roles(ctx) }
	roleEntry := m.subscribe(cache.KeyRoles, roleFetch, cache.Options{Decode: decodeRoles})
	if roles, ok := roleEntry.Value.([]model.Role); ok {
		m.roleList = roles
	}
}

func (m *Model) roleByName(name string) (string, bool) {
	for _, r := range m.roleList {
		if strings.EqualFold(r.Name, name) {
			return r.ID, true
		}
	}
	return "", false
}

func (m *Model) selectedPeer() (model.Peer, bool) {
	i := m.peers.Cursor()
	if i < 0 || i >= len(m.peerList) {
		return model.Peer{}, false
	}
	return m.peerList[i], true
}

func (m *Model) selectedUser() (model.User, bool) {
	i := m.users.Cursor()
	if i < 0 || i >= len(m.userList) {
		return model.User{}, false
	}
	return m.userList[i], true
}

func (m *Model) logout() {
	m.unsubscribeAll()
	m.deps.Gate.Logout()
	m.peerList, m.userList, m.userPeers = nil, nil, nil
	m.peers.SetRows(nil)
	m.users.SetRows(nil)
}

func (m *Model) toLogin(status string) {
	m.view = viewLogin
	m.identity = model.Identity{}
	m.login = m.login.reset()
	m.status = status
	m.errText = ""
}

func (m *Model) View() string {
	var body string
	switch m.view {
	case viewLogin:
		body = m.login.view()
	case viewNewPeer:
		body = m.peerForm.view()
	case viewNewUser:
		body = m.userForm.view()
	case viewPeers:
		body = titleStyle.Render("peers") + "\n" +
			tableBorder.Render(m.peers.View()) + "\n" +
			helpStyle.Render("n: new  e: edit  d: delete  g: config  r: refresh  u: users  L: logout  q: quit")
	case viewUsers:
		body = titleStyle.Render("users") + "\n" +
			tableBorder.Render(m.users.View()) + "\n" +
			helpStyle.Render("enter: peers  a: add  x: delete  r: refresh  esc: back  q: quit")
	case viewUserPeers:
		body = titleStyle.Render("peers of "+m.selUser.Username) + "\n" +
			renderPeerLines(m.userPeers) + "\n" +
			helpStyle.Render("esc: back")
	case viewConfig:
		body = titleStyle.Render("config for "+m.configPeer.PeerName) + "\n\n" +
			m.configText + "\n" +
			helpStyle.Render("s: save to disk  esc: back")
	}

	var footer []string
	if m.identity.Username != "" {
		footer = append(footer, statusBar.Render(fmt.Sprintf("%s (%s)", m.identity.Username, m.identity.Role)))
	}
	if m.status != "" {
		footer = append(footer, labelStyle.Render(m.status))
	}
	if m.errText != "" {
		footer = append(footer, errStyle.Render(m.errText))
	}
	if len(footer) == 0 {
		return body + "\n"
	}
	return body + "\n\n" + strings.Join(footer, "  ") + "\n"
}

func renderPeerLines(peers []model.Peer) string {
	if len(peers) == 0 {
		return labelStyle.Render("no peers")
	}
	var b strings.Builder
	for _, r := range peerRows(peers) {
		b.WriteString(strings.Join(r, "  "))
		b.WriteString("\n")
	}
	return b.String()
}
