// Package tui is the terminal front end of the messaging client. It
// renders session state snapshots and turns keyboard input into transport
// and authentication calls.
package tui

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"chat-client/internal/auth"
	"chat-client/internal/backend"
	"chat-client/internal/models"
	"chat-client/internal/notify"
	"chat-client/internal/protocol"
	"chat-client/internal/state"
)

// TypingIdle is how long the composer may stay untouched before the
// typing indicator is withdrawn.
const TypingIdle = 2 * time.Second

const callTimeout = 10 * time.Second

var errNoSession = errors.New("not logged in")

type Sessions interface {
	Login(ctx context.Context, username, password string) (*auth.Session, error)
	Logout(ctx context.Context)
	Current() (auth.Session, bool)
}

type Transport interface {
	SendMessage(ctx context.Context, msg protocol.ChatMessage) error
	SendTyping(ctx context.Context, isTyping bool, receiver models.ID) error
	RequestHistory(ctx context.Context) error
	MarkRead(ctx context.Context) error
}

type Reactions interface {
	ToggleReaction(ctx context.Context, token string, messageID models.ID, emoji string) (*backend.ReactionResult, error)
}

// Deps are the collaborators of the model. Snapshots and Notifications are
// subscriptions owned by the caller.
type Deps struct {
	Sessions      Sessions
	Transport     Transport
	Reactions     Reactions
	Snapshots     <-chan state.Snapshot
	Notifications <-chan notify.Notification
}

type mode int

const (
	modeLogin mode = iota
	modeChat
)

type (
	snapshotMsg     struct{ snap state.Snapshot }
	notificationMsg struct{ n notify.Notification }
	loginResultMsg  struct {
		session *auth.Session
		err     error
	}
	logoutDoneMsg struct{}
	callResultMsg struct {
		what string
		err  error
	}
	typingIdleMsg struct{ seq int }
)

type Model struct {
	deps Deps
	keys KeyMap
	mode mode

	username  textinput.Model
	password  textinput.Model
	loggingIn bool

	composer textinput.Model
	viewport viewport.Model
	ready    bool
	width    int

	snap  state.Snapshot
	peer  models.ID
	query string

	status      string
	statusError bool

	typingActive bool
	typingSeq    int
}

func NewModel(deps Deps) Model {
	username := textinput.New()
	username.Placeholder = "username"
	username.CharLimit = 64
	username.Focus()

	password := textinput.New()
	password.Placeholder = "password"
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'
	password.CharLimit = 128

	composer := textinput.New()
	composer.Placeholder = "Type a message, /help for commands"
	composer.CharLimit = 2000

	m := Model{
		deps:     deps,
		keys:     DefaultKeyMap,
		username: username,
		password: password,
		composer: composer,
	}
	if s, ok := deps.Sessions.Current(); ok {
		m.enterChat(s.User)
	}
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		listenSnapshots(m.deps.Snapshots),
		listenNotifications(m.deps.Notifications),
	)
}

func listenSnapshots(ch <-chan state.Snapshot) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		snap, ok := <-ch
		if !ok {
			return nil
		}
		return snapshotMsg{snap: snap}
	}
}

func listenNotifications(ch <-chan notify.Notification) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		n, ok := <-ch
		if !ok {
			return nil
		}
		return notificationMsg{n: n}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case snapshotMsg:
		m.snap = msg.snap
		m.refresh()
		return m, listenSnapshots(m.deps.Snapshots)

	case notificationMsg:
		m.setStatus(msg.n.Text, msg.n.Level == notify.LevelError)
		if msg.n.Kind == notify.KindSessionExpired || msg.n.Kind == notify.KindLoggedOut {
			m.enterLogin()
		}
		return m, listenNotifications(m.deps.Notifications)

	case loginResultMsg:
		m.loggingIn = false
		if msg.err != nil {
			m.setStatus(auth.Message(msg.err), true)
			return m, nil
		}
		m.password.SetValue("")
		m.enterChat(msg.session.User)
		return m, nil

	case logoutDoneMsg:
		m.enterLogin()
		return m, nil

	case callResultMsg:
		if msg.err != nil {
			m.setStatus(msg.what+": "+msg.err.Error(), true)
		}
		return m, nil

	case typingIdleMsg:
		if msg.seq != m.typingSeq || !m.typingActive {
			return m, nil
		}
		m.typingActive = false
		return m, m.sendTyping(false)

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			return m, tea.Quit
		}
		if m.mode == modeLogin {
			return m.updateLogin(msg)
		}
		return m.updateChat(msg)
	}

	if m.mode == modeChat && m.ready {
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) updateLogin(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.NextField):
		if m.username.Focused() {
			m.username.Blur()
			return m, m.password.Focus()
		}
		m.password.Blur()
		return m, m.username.Focus()

	case key.Matches(msg, m.keys.Submit):
		if m.username.Focused() {
			m.username.Blur()
			return m, m.password.Focus()
		}
		username := strings.TrimSpace(m.username.Value())
		password := m.password.Value()
		if username == "" || password == "" || m.loggingIn {
			return m, nil
		}
		m.loggingIn = true
		m.setStatus("Signing in...", false)
		sessions := m.deps.Sessions
		return m, func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
			defer cancel()
			s, err := sessions.Login(ctx, username, password)
			return loginResultMsg{session: s, err: err}
		}
	}

	var cmd tea.Cmd
	if m.username.Focused() {
		m.username, cmd = m.username.Update(msg)
	} else {
		m.password, cmd = m.password.Update(msg)
	}
	return m, cmd
}

func (m Model) updateChat(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Submit):
		text := strings.TrimSpace(m.composer.Value())
		if text == "" {
			return m, nil
		}
		m.composer.SetValue("")
		var cmds []tea.Cmd
		if m.typingActive {
			m.typingActive = false
			m.typingSeq++
			cmds = append(cmds, m.sendTyping(false))
		}
		if strings.HasPrefix(text, "/") {
			cmds = append(cmds, m.runCommand(text))
		} else {
			cmds = append(cmds, m.sendMessage(text))
		}
		return m, tea.Batch(cmds...)

	case key.Matches(msg, m.keys.PageUp, m.keys.PageDown):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	before := m.composer.Value()
	var cmd tea.Cmd
	m.composer, cmd = m.composer.Update(msg)
	if m.composer.Value() == before || strings.HasPrefix(m.composer.Value(), "/") {
		return m, cmd
	}

	m.typingSeq++
	seq := m.typingSeq
	cmds := []tea.Cmd{cmd, tea.Tick(TypingIdle, func(time.Time) tea.Msg { return typingIdleMsg{seq: seq} })}
	if !m.typingActive {
		m.typingActive = true
		cmds = append(cmds, m.sendTyping(true))
	}
	return m, tea.Batch(cmds...)
}

func (m *Model) runCommand(text string) tea.Cmd {
	fields := strings.Fields(text)
	switch fields[0] {
	case "/dm":
		if len(fields) != 2 {
			m.setStatus("usage: /dm <user id>", true)
			return nil
		}
		m.peer = models.ID(fields[1])
		m.refresh()
		return nil
	case "/general":
		m.peer = ""
		m.refresh()
		return nil
	case "/search":
		m.query = strings.TrimSpace(strings.TrimPrefix(text, "/search"))
		m.refresh()
		return nil
	case "/history":
		return m.call("history", m.deps.Transport.RequestHistory)
	case "/read":
		return m.call("mark read", m.deps.Transport.MarkRead)
	case "/react":
		if len(fields) != 3 {
			m.setStatus("usage: /react <message id> <emoji>", true)
			return nil
		}
		return m.react(models.ID(fields[1]), fields[2])
	case "/logout":
		sessions := m.deps.Sessions
		return func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
			defer cancel()
			sessions.Logout(ctx)
			return logoutDoneMsg{}
		}
	case "/quit":
		return tea.Quit
	case "/help":
		m.setStatus("/dm <id>  /general  /search <text>  /history  /read  /react <id> <emoji>  /logout  /quit", false)
		return nil
	default:
		m.setStatus("unknown command "+fields[0], true)
		return nil
	}
}

func (m Model) sendMessage(text string) tea.Cmd {
	transport := m.deps.Transport
	msg := protocol.ChatMessage{Content: text, ReceiverID: m.peer, MessageType: models.MessageText}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
		defer cancel()
		return callResultMsg{what: "send", err: transport.SendMessage(ctx, msg)}
	}
}

func (m Model) sendTyping(isTyping bool) tea.Cmd {
	transport := m.deps.Transport
	peer := m.peer
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
		defer cancel()
		// typing signals are best effort
		_ = transport.SendTyping(ctx, isTyping, peer)
		return nil
	}
}

func (m Model) react(messageID models.ID, emoji string) tea.Cmd {
	reactions := m.deps.Reactions
	sessions := m.deps.Sessions
	if reactions == nil {
		return nil
	}
	return func() tea.Msg {
		s, ok := sessions.Current()
		if !ok {
			return callResultMsg{what: "react", err: errNoSession}
		}
		ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
		defer cancel()
		_, err := reactions.ToggleReaction(ctx, s.Token, messageID, emoji)
		return callResultMsg{what: "react", err: err}
	}
}

func (m Model) call(what string, fn func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
		defer cancel()
		return callResultMsg{what: what, err: fn(ctx)}
	}
}

func (m *Model) enterChat(user models.User) {
	m.mode = modeChat
	m.username.Blur()
	m.password.Blur()
	m.composer.Focus()
	m.setStatus("Signed in as "+user.DisplayName(), false)
	m.refresh()
}

func (m *Model) enterLogin() {
	m.mode = modeLogin
	m.composer.Blur()
	m.composer.SetValue("")
	m.typingActive = false
	m.peer = ""
	m.query = ""
	m.password.SetValue("")
	m.username.Focus()
}

func (m *Model) setStatus(text string, isError bool) {
	m.status = text
	m.statusError = isError
}

func (m *Model) resize(width, height int) {
	m.width = width
	vpHeight := height - 5
	if vpHeight < 1 {
		vpHeight = 1
	}
	if !m.ready {
		m.viewport = viewport.New(width, vpHeight)
		m.ready = true
	} else {
		m.viewport.Width = width
		m.viewport.Height = vpHeight
	}
	m.composer.Width = width - 3
	m.refresh()
}

func (m *Model) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(renderMessages(m.visibleMessages(), m.snap.Self.ID, m.width))
	m.viewport.GotoBottom()
}

func (m Model) visibleMessages() []models.Message {
	return state.Search(m.snap.Conversation(m.peer), m.query)
}
