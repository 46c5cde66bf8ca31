// Package nav implements the navigation state machine: view
// transitions, role guards, and selection handling for the detail view.
package nav

import (
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gearhaus/market-runtime/internal/session"
)

var ErrUnknownView = errors.New("unknown view")

// restoreGraceWindow suppresses application navigations for a short
// span after a history restore. Without it, view code reacting to the
// restored state immediately issues its own navigate call and the two
// stacks chase each other in a loop.
const restoreGraceWindow = 250 * time.Millisecond

type User struct {
	ID   string
	Role string
}

// UserSource reports the signed-in user, if any.
type UserSource interface {
	Current() (User, bool)
}

// Selection is the session-scoped snapshot store the state machine
// reads before committing a detail transition.
type Selection interface {
	Load() (session.VehicleSnapshot, bool)
	Save(session.VehicleSnapshot) error
	Clear()
}

// Record is the state attached to every host history entry. It is the
// sole source of truth when a back/forward event restores a view.
type Record struct {
	View             View      `json:"view"`
	PreviousView     View      `json:"previous_view,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
	SelectedEntityID string    `json:"selected_entity_id,omitempty"`
}

// Recorder receives the committed record of every navigation. The
// history bridge implements it against the host stack.
type Recorder interface {
	Push(record Record, path string)
}

// Params disambiguate a transition: entering the detail view for a
// specific vehicle carries the snapshot the caller already holds.
type Params struct {
	VehicleID string
	Snapshot  *session.VehicleSnapshot
}

func (p Params) empty() bool {
	return strings.TrimSpace(p.VehicleID) == "" && p.Snapshot == nil
}

type Result struct {
	View        View
	Redirected  bool
	Suppressed  bool
	HasSnapshot bool
	Snapshot    session.VehicleSnapshot
}

type State struct {
	logger    *slog.Logger
	users     UserSource
	selection Selection
	recorder  Recorder

	mu             sync.Mutex
	current        View
	previous       View
	selected       session.VehicleSnapshot
	hasSelected    bool
	restoringUntil time.Time

	now func() time.Time
}

func NewState(users UserSource, selection Selection, recorder Recorder, logger *slog.Logger) *State {
	if logger == nil {
		logger = slog.Default()
	}
	return &State{
		logger:    logger,
		users:     users,
		selection: selection,
		recorder:  recorder,
		current:   ViewHome,
		now:       time.Now,
	}
}

func (s *State) CurrentView() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *State) PreviousView() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.previous
}

func (s *State) Selected() (session.VehicleSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected, s.hasSelected
}

// Navigate attempts a transition into view. Guard rejections commit the
// guard's substitute view instead; the caller learns about it through
// Result.Redirected, never through an error.
func (s *State) Navigate(view View, params Params) (Result, error) {
	if !Known(view) {
		return Result{}, ErrUnknownView
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.now().Before(s.restoringUntil) {
		s.logger.Debug("navigation suppressed during history restore", "view", view)
		return Result{View: s.current, Suppressed: true, HasSnapshot: s.hasSelected, Snapshot: s.selected}, nil
	}

	// The detail view always re-evaluates: it can be re-entered with a
	// different vehicle while already current.
	if view == s.current && view != ViewDetail && params.empty() {
		return Result{View: s.current, HasSnapshot: s.hasSelected, Snapshot: s.selected}, nil
	}

	preserveSelection := view == ViewDetail || (view == ViewSellerProfile && s.current == ViewDetail)
	if !preserveSelection {
		s.selection.Clear()
		s.selected = session.VehicleSnapshot{}
		s.hasSelected = false
	}

	if view == ViewDetail {
		s.resolveDetailSelection(params)
	}

	target, redirected := s.applyGuards(view)
	if redirected && target == s.current {
		// Already on the guard's login view; re-running the redirect
		// would only loop.
		return Result{View: s.current, Redirected: true, HasSnapshot: s.hasSelected, Snapshot: s.selected}, nil
	}

	s.previous = s.current
	s.current = target

	record := Record{
		View:         target,
		PreviousView: s.previous,
		Timestamp:    s.now().UTC(),
	}
	if target == ViewDetail && s.hasSelected {
		record.SelectedEntityID = s.selected.ID
	}
	// Pushed even when the path string does not change, so every
	// navigate call is independently reachable via back/forward.
	s.recorder.Push(record, Path(target))

	return Result{View: target, Redirected: redirected, HasSnapshot: s.hasSelected, Snapshot: s.selected}, nil
}

// resolveDetailSelection settles which vehicle the detail view shows.
// The session store is authoritative; the caller's snapshot or the
// in-memory selection fill in behind it. With nothing available the
// transition still proceeds and the detail view renders its not-found
// state, so a broken deep link stays diagnosable instead of silently
// bouncing the user elsewhere.
func (s *State) resolveDetailSelection(params Params) {
	if params.Snapshot != nil && strings.TrimSpace(params.Snapshot.ID) != "" {
		s.selected = *params.Snapshot
		s.hasSelected = true
		if err := s.selection.Save(s.selected); err != nil {
			s.logger.Warn("persist selection snapshot failed", "vehicle_id", s.selected.ID, "error", err)
		}
		return
	}
	if snapshot, ok := s.selection.Load(); ok {
		if params.VehicleID == "" || snapshot.ID == params.VehicleID {
			s.selected = snapshot
			s.hasSelected = true
			return
		}
	}
	if s.hasSelected && (params.VehicleID == "" || s.selected.ID == params.VehicleID) {
		return
	}
	s.selected = session.VehicleSnapshot{}
	s.hasSelected = false
}

func (s *State) applyGuards(view View) (View, bool) {
	user, authenticated := s.users.Current()
	role := strings.ToLower(strings.TrimSpace(user.Role))

	switch view {
	case ViewSellerDashboard:
		if !authenticated || role != RoleSeller {
			return s.loginRedirect(ViewLoginPortal)
		}
	case ViewAdminPanel:
		if !authenticated || role != RoleAdmin {
			return s.loginRedirect(ViewAdminLogin)
		}
	case ViewProfile, ViewInbox:
		if !authenticated {
			return s.loginRedirect(ViewLoginPortal)
		}
	}
	return view, false
}

func (s *State) loginRedirect(substitute View) (View, bool) {
	if isLoginView(s.current) {
		return s.current, true
	}
	return substitute, true
}

// Restore applies a record delivered by a host back/forward event.
// lookup resolves a selected vehicle id against the currently loaded
// in-memory collection; storage is deliberately not consulted here.
func (s *State) Restore(record Record, lookup func(id string) (session.VehicleSnapshot, bool)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	preserveSelection := record.View == ViewDetail || (record.View == ViewSellerProfile && s.current == ViewDetail)

	s.previous = record.PreviousView
	s.current = record.View
	s.restoringUntil = s.now().Add(restoreGraceWindow)

	if record.View == ViewDetail && strings.TrimSpace(record.SelectedEntityID) != "" && lookup != nil {
		if snapshot, ok := lookup(record.SelectedEntityID); ok {
			s.selected = snapshot
			s.hasSelected = true
			return
		}
		s.selection.Clear()
		s.selected = session.VehicleSnapshot{}
		s.hasSelected = false
		return
	}
	if !preserveSelection {
		s.selection.Clear()
		s.selected = session.VehicleSnapshot{}
		s.hasSelected = false
	}
}
