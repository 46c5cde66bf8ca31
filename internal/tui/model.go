// Package tui is the terminal client for the marketplace runtime.
// It renders the local catalog, drives the navigation state machine,
// and surfaces toasts raised by the runtime services.
package tui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/key"
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"

	"github.com/gearhaus/market-runtime/internal/app"
	"github.com/gearhaus/market-runtime/internal/config"
	"github.com/gearhaus/market-runtime/internal/dedup"
	"github.com/gearhaus/market-runtime/internal/history"
	"github.com/gearhaus/market-runtime/internal/nav"
	"github.com/gearhaus/market-runtime/internal/session"
	"github.com/gearhaus/market-runtime/internal/store"
)

type focusZone int

const (
	focusSidebar focusZone = iota
	focusWorkbench
	focusHelp
)

func focusLabel(zone focusZone) string {
	switch zone {
	case focusWorkbench:
		return "main"
	case focusHelp:
		return "help"
	default:
		return "nav"
	}
}

// sidebarViews are the destinations offered in the sidebar. Login
// views are reached through guard redirects, never picked directly.
func sidebarViews() []nav.View {
	return []nav.View{
		nav.ViewHome,
		nav.ViewSell,
		nav.ViewSellerDashboard,
		nav.ViewInbox,
		nav.ViewProfile,
		nav.ViewAdminPanel,
	}
}

func viewLabel(view nav.View) string {
	switch view {
	case nav.ViewHome:
		return "Browse"
	case nav.ViewDetail:
		return "Listing"
	case nav.ViewSell:
		return "Sell"
	case nav.ViewSellerDashboard:
		return "Dashboard"
	case nav.ViewSellerProfile:
		return "Seller"
	case nav.ViewAdminPanel:
		return "Admin"
	case nav.ViewAdminLogin:
		return "Admin Login"
	case nav.ViewLoginPortal:
		return "Sign In"
	case nav.ViewProfile:
		return "Profile"
	case nav.ViewInbox:
		return "Inbox"
	default:
		return string(view)
	}
}

func sidebarIndexForView(view nav.View) int {
	for index, item := range sidebarViews() {
		if item == view {
			return index
		}
	}
	return -1
}

type model struct {
	cfg          config.Config
	logger       *slog.Logger
	orchestrator *app.Orchestrator
	navState     *nav.State
	bridge       *history.Bridge
	toasts       *dedup.ToastCenter

	keys         keyMap
	help         help.Model
	composeInput textinput.Model
	loginInput   textinput.Model

	width        int
	height       int
	focus        focusZone
	sidebarIndex int
	vehicleIndex int
	composing    bool
	quitting     bool
	statusText   string
	errorText    string
}

func newModel(
	cfg config.Config,
	orchestrator *app.Orchestrator,
	navState *nav.State,
	bridge *history.Bridge,
	toasts *dedup.ToastCenter,
	logger *slog.Logger,
) model {
	composeInput := textinput.New()
	composeInput.Placeholder = "write a message to the seller"
	composeInput.CharLimit = 500

	loginInput := textinput.New()
	loginInput.Placeholder = "user id"
	loginInput.CharLimit = 64

	return model{
		cfg:          cfg,
		logger:       logger.With("component", "tui"),
		orchestrator: orchestrator,
		navState:     navState,
		bridge:       bridge,
		toasts:       toasts,
		keys:         newKeyMap(),
		help:         help.New(),
		composeInput: composeInput,
		loginInput:   loginInput,
		width:        100,
		height:       30,
	}
}

// Run starts the terminal client against a wired runtime.
func Run(runtime *app.Runtime, cfg config.Config, logger *slog.Logger) error {
	m := newModel(
		cfg,
		runtime.Orchestrator(),
		runtime.Nav(),
		runtime.History(),
		runtime.Toasts(),
		logger,
	)
	program := tea.NewProgram(m)
	_, err := program.Run()
	return err
}

type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

type refreshDoneMsg struct {
	err error
}

type messageSentMsg struct {
	err error
}

type signInDoneMsg struct {
	userID string
	err    error
}

func (m model) Init() tea.Cmd {
	return tickCmd()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = typed.Width
		m.height = typed.Height
		return m, nil
	case tickMsg:
		m.toasts.Expire(time.Duration(m.cfg.ToastDisplaySec) * time.Second)
		return m, tickCmd()
	case refreshDoneMsg:
		if typed.err != nil {
			m.errorText = typed.err.Error()
			m.statusText = ""
			return m, nil
		}
		m.errorText = ""
		m.statusText = "catalog refreshed"
		return m, nil
	case messageSentMsg:
		m.composing = false
		m.composeInput.Blur()
		m.composeInput.SetValue("")
		if typed.err != nil {
			m.errorText = typed.err.Error()
			return m, nil
		}
		m.errorText = ""
		m.statusText = "message sent"
		return m, nil
	case signInDoneMsg:
		m.loginInput.Blur()
		m.loginInput.SetValue("")
		if typed.err != nil {
			m.errorText = typed.err.Error()
			return m, nil
		}
		m.errorText = ""
		m.statusText = "signed in as " + typed.userID
		m.navigate(nav.ViewHome, nav.Params{})
		return m, nil
	case tea.KeyPressMsg:
		return m.handleKey(typed)
	}
	return m, nil
}

func (m model) handleKey(typed tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	if key.Matches(typed, m.keys.Quit) && !m.composing && !m.loginFocused() {
		m.quitting = true
		return m, tea.Quit
	}

	if m.composing {
		return m.handleComposeKey(typed)
	}
	if m.loginFocused() {
		return m.handleLoginKey(typed)
	}

	switch {
	case key.Matches(typed, m.keys.ToggleHelp):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(typed, m.keys.FocusNext):
		m.focus = (m.focus + 1) % 3
		return m, nil
	case key.Matches(typed, m.keys.FocusPrev):
		m.focus = (m.focus + 2) % 3
		return m, nil
	case key.Matches(typed, m.keys.Back):
		m.bridge.Back(nav.ViewHome)
		m.syncSidebar()
		return m, nil
	case key.Matches(typed, m.keys.Forward):
		m.bridge.Forward()
		m.syncSidebar()
		return m, nil
	case key.Matches(typed, m.keys.Refresh):
		m.statusText = "refreshing..."
		m.errorText = ""
		return m, m.refreshCmd()
	case key.Matches(typed, m.keys.View1):
		return m.jumpTo(nav.ViewHome)
	case key.Matches(typed, m.keys.View2):
		return m.jumpTo(nav.ViewSell)
	case key.Matches(typed, m.keys.View3):
		return m.jumpTo(nav.ViewSellerDashboard)
	case key.Matches(typed, m.keys.View4):
		return m.jumpTo(nav.ViewInbox)
	case key.Matches(typed, m.keys.View5):
		return m.jumpTo(nav.ViewProfile)
	case key.Matches(typed, m.keys.View6):
		return m.jumpTo(nav.ViewAdminPanel)
	case key.Matches(typed, m.keys.Up):
		return m.moveCursor(-1), nil
	case key.Matches(typed, m.keys.Down):
		return m.moveCursor(1), nil
	case key.Matches(typed, m.keys.Activate):
		return m.activate()
	case key.Matches(typed, m.keys.Compose):
		if m.navState.CurrentView() == nav.ViewDetail {
			m.composing = true
			m.errorText = ""
			return m, m.composeInput.Focus()
		}
		return m, nil
	}

	if isLoginView(m.navState.CurrentView()) {
		var cmd tea.Cmd
		m.loginInput, cmd = m.loginInput.Update(typed)
		return m, cmd
	}
	return m, nil
}

func (m model) handleComposeKey(typed tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch typed.Code {
	case tea.KeyEscape:
		m.composing = false
		m.composeInput.Blur()
		return m, nil
	case tea.KeyEnter:
		body := strings.TrimSpace(m.composeInput.Value())
		if body == "" {
			return m, nil
		}
		return m, m.sendMessageCmd(body)
	}
	var cmd tea.Cmd
	m.composeInput, cmd = m.composeInput.Update(typed)
	return m, cmd
}

func (m model) handleLoginKey(typed tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch typed.Code {
	case tea.KeyEscape:
		m.loginInput.Blur()
		return m, nil
	case tea.KeyEnter:
		userID := strings.TrimSpace(m.loginInput.Value())
		if userID == "" {
			return m, nil
		}
		return m, m.signInCmd(userID)
	}
	var cmd tea.Cmd
	m.loginInput, cmd = m.loginInput.Update(typed)
	return m, cmd
}

func (m model) loginFocused() bool {
	return isLoginView(m.navState.CurrentView()) && m.loginInput.Focused()
}

func (m model) moveCursor(delta int) model {
	if m.focus == focusSidebar {
		count := len(sidebarViews())
		m.sidebarIndex = clampInt(m.sidebarIndex+delta, 0, count-1)
		return m
	}
	if m.navState.CurrentView() == nav.ViewHome {
		count := len(m.orchestrator.LoadedVehicles())
		if count > 0 {
			m.vehicleIndex = clampInt(m.vehicleIndex+delta, 0, count-1)
		}
	}
	return m
}

func (m model) activate() (tea.Model, tea.Cmd) {
	if m.focus == focusSidebar {
		m.navigate(sidebarViews()[m.sidebarIndex], nav.Params{})
		if isLoginView(m.navState.CurrentView()) {
			return m, m.loginInput.Focus()
		}
		return m, nil
	}

	switch m.navState.CurrentView() {
	case nav.ViewHome:
		vehicles := m.orchestrator.LoadedVehicles()
		if len(vehicles) == 0 {
			return m, nil
		}
		index := clampInt(m.vehicleIndex, 0, len(vehicles)-1)
		snapshot := vehicles[index]
		m.navigate(nav.ViewDetail, nav.Params{VehicleID: snapshot.ID, Snapshot: &snapshot})
		return m, nil
	case nav.ViewLoginPortal, nav.ViewAdminLogin:
		return m, m.loginInput.Focus()
	}
	return m, nil
}

func (m model) jumpTo(view nav.View) (tea.Model, tea.Cmd) {
	m.navigate(view, nav.Params{})
	if isLoginView(m.navState.CurrentView()) {
		return m, m.loginInput.Focus()
	}
	return m, nil
}

// navigate drives the state machine and mirrors the outcome into the
// sidebar cursor.
func (m *model) navigate(view nav.View, params nav.Params) {
	result, err := m.navState.Navigate(view, params)
	if err != nil {
		m.errorText = err.Error()
		return
	}
	m.errorText = ""
	if result.Suppressed {
		return
	}
	if result.Redirected {
		m.statusText = "sign in to continue"
	} else {
		m.statusText = ""
	}
	m.syncSidebar()
	if result.View == nav.ViewHome {
		m.vehicleIndex = 0
	}
}

func (m *model) syncSidebar() {
	if index := sidebarIndexForView(m.navState.CurrentView()); index >= 0 {
		m.sidebarIndex = index
	}
}

func (m model) refreshCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return refreshDoneMsg{err: m.orchestrator.Refresh(ctx, "", true)}
	}
}

func (m model) sendMessageCmd(body string) tea.Cmd {
	selected, ok := m.navState.Selected()
	if !ok {
		return func() tea.Msg {
			return messageSentMsg{err: fmt.Errorf("no listing selected")}
		}
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		user, err := m.orchestrator.CurrentUser(ctx)
		if err != nil {
			return messageSentMsg{err: fmt.Errorf("sign in to message sellers")}
		}
		conversationID := conversationIDFor(selected.ID, user.ID)
		if err := m.orchestrator.SaveConversation(ctx, conversationRecordFor(conversationID, selected, user.ID)); err != nil {
			return messageSentMsg{err: err}
		}
		_, err = m.orchestrator.SendMessage(ctx, conversationID, user.ID, body)
		return messageSentMsg{err: err}
	}
}

func (m model) signInCmd(userID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return signInDoneMsg{userID: userID, err: m.orchestrator.SignIn(ctx, userID)}
	}
}

func isLoginView(view nav.View) bool {
	return view == nav.ViewLoginPortal || view == nav.ViewAdminLogin
}

// conversationIDFor keeps one thread per buyer and listing, so a
// retried send lands in the same conversation.
func conversationIDFor(vehicleID, buyerID string) string {
	return "cnv-" + vehicleID + "-" + buyerID
}

func conversationRecordFor(id string, snapshot session.VehicleSnapshot, buyerID string) store.ConversationRecord {
	return store.ConversationRecord{
		ID:        id,
		VehicleID: snapshot.ID,
		BuyerID:   buyerID,
		SellerID:  snapshot.SellerID,
		UpdatedAt: time.Now().UTC(),
	}
}

func (m model) View() tea.View {
	return tea.NewView(m.renderView())
}

func centsToPrice(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}

func snapshotLine(snapshot session.VehicleSnapshot) string {
	parts := []string{snapshot.Title}
	if snapshot.Year > 0 {
		parts = append(parts, fmt.Sprintf("%d", snapshot.Year))
	}
	if snapshot.City != "" {
		parts = append(parts, snapshot.City)
	}
	return strings.Join(parts, " · ")
}
