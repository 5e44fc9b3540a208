// Package history drives the version-history view for one artifact: fetching
// the server-ordered timeline and executing "revert to version V" as a new
// server-side version, never a destructive rewrite.
package history

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/promptdeck/promptdeck/internal/errs"
	"github.com/promptdeck/promptdeck/internal/model"
	"github.com/promptdeck/promptdeck/internal/transport"
)

// API issues the history endpoints. *api.Client satisfies this.
type API interface {
	History(ctx context.Context, promptID int64) ([]model.Version, error)
	Revert(ctx context.Context, promptID, versionID int64) error
}

// Notifier receives the user-facing outcome of a revert. A UI shows toasts;
// the CLI prints.
type Notifier interface {
	Success(msg string)
	Error(msg string)
}

type nopNotifier struct{}

func (nopNotifier) Success(string) {}
func (nopNotifier) Error(string)   {}

// State is the per-open lifecycle of the history view.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateLoaded
	StateFailed
	StateRevertConfirming
	StateReverting
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateFailed:
		return "failed"
	case StateRevertConfirming:
		return "revert-confirming"
	case StateReverting:
		return "reverting"
	default:
		return "idle"
	}
}

const fallbackLoadError = "failed to load history; you may not have permission to view it"

// Manager is the state machine for one history view instance. A generation
// counter guards against late-arriving responses for a view that has been
// closed and possibly reopened; the network layer is never asked to cancel.
type Manager struct {
	api    API
	notify Notifier
	log    *zap.Logger

	mu        sync.Mutex
	gen       uint64
	promptID  int64
	state     State
	versions  []model.Version
	failure   string
	selected  int64 // version pending confirmation
	reverting int64 // version with a revert in flight, 0 when none
}

func NewManager(api API, notify Notifier, log *zap.Logger) *Manager {
	if notify == nil {
		notify = nopNotifier{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{api: api, notify: notify, log: log, state: StateIdle}
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Versions returns the loaded timeline, newest first as the server sent it.
// Never reordered or mutated client-side.
func (m *Manager) Versions() []model.Version {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.versions
}

// FailureReason returns the human-readable reason when in StateFailed.
func (m *Manager) FailureReason() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failure
}

// RevertingVersion returns the id of the version whose revert is in flight,
// so a UI can mark the specific busy row. Zero when none.
func (m *Manager) RevertingVersion() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reverting
}

// Open loads the timeline for promptID. Without an id the view settles to an
// empty Loaded state with no network call. A load failure is terminal for
// this open: retried only by reopening.
func (m *Manager) Open(ctx context.Context, promptID int64) error {
	m.mu.Lock()
	m.gen++
	gen := m.gen
	m.promptID = promptID
	m.versions = nil
	m.failure = ""
	m.selected = 0
	m.reverting = 0
	if promptID == 0 {
		m.state = StateLoaded
		m.mu.Unlock()
		return nil
	}
	m.state = StateLoading
	m.mu.Unlock()

	versions, err := m.api.History(ctx, promptID)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen {
		// view was closed or reopened while the fetch was in flight
		return nil
	}
	if err != nil {
		m.state = StateFailed
		m.failure = reason(err, fallbackLoadError)
		m.log.Warn("history load failed", zap.Int64("prompt", promptID), zap.Error(err))
		return err
	}
	m.state = StateLoaded
	m.versions = versions
	return nil
}

// Close discards the view. Any in-flight response for it is dropped.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gen++
	m.state = StateIdle
	m.promptID = 0
	m.versions = nil
	m.failure = ""
	m.selected = 0
	m.reverting = 0
}

// RequestRevert selects a version and moves to the explicit confirmation
// step. Reverts look destructive to the user even though they are additive
// server-side, so confirmation is never skipped.
func (m *Manager) RequestRevert(versionID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateLoaded {
		return fmt.Errorf("cannot revert from state %s", m.state)
	}
	found := false
	for i := range m.versions {
		if m.versions[i].ID == versionID {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("version %d not in loaded history", versionID)
	}
	m.selected = versionID
	m.state = StateRevertConfirming
	return nil
}

// CancelRevert abandons the confirmation step: back to Loaded, selection
// cleared, no network call.
func (m *Manager) CancelRevert() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateRevertConfirming {
		m.selected = 0
		m.state = StateLoaded
	}
}

// ConfirmRevert executes the selected revert. Success closes the view and
// notifies; failure returns to Loaded with an error notification so the user
// keeps their context. One revert may be in flight per artifact.
func (m *Manager) ConfirmRevert(ctx context.Context) error {
	m.mu.Lock()
	if m.state == StateReverting {
		m.mu.Unlock()
		return errs.ErrRevertInFlight
	}
	if m.state != StateRevertConfirming || m.selected == 0 {
		m.mu.Unlock()
		return fmt.Errorf("no revert pending confirmation")
	}
	gen := m.gen
	promptID := m.promptID
	versionID := m.selected
	m.state = StateReverting
	m.reverting = versionID
	m.mu.Unlock()

	err := m.api.Revert(ctx, promptID, versionID)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen {
		return nil
	}
	m.selected = 0
	m.reverting = 0
	if err != nil {
		m.state = StateLoaded
		m.notify.Error(reason(err, "failed to revert; you may not have permission"))
		m.log.Warn("revert failed",
			zap.Int64("prompt", promptID),
			zap.Int64("version", versionID),
			zap.Error(err),
		)
		return err
	}

	// success closes the view; the next open refetches the extended timeline
	m.gen++
	m.state = StateIdle
	m.promptID = 0
	m.versions = nil
	m.notify.Success("successfully reverted to the selected version")
	return nil
}

// reason applies the structured-error fallback chain, ending in the given
// generic string when the failure carries nothing usable.
func reason(err error, generic string) string {
	var apiErr *transport.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Reason()
	}
	return generic
}
