// Package session owns the login/logout lifecycle and the derived
// authentication state the rest of the app reads. All session mutation is
// funneled through Login, Logout and FetchCurrentUser; consumers observe an
// explicit Session value instead of poking shared globals.
package session

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/promptdeck/promptdeck/internal/credstore"
	"github.com/promptdeck/promptdeck/internal/model"
)

// ProfileFetcher retrieves the authenticated user's profile. The profile
// endpoint is the sole source of truth for whether a session is valid.
type ProfileFetcher interface {
	CurrentUser(ctx context.Context) (*model.UserProfile, error)
}

// Controller owns the Session value. Safe for concurrent reads via Snapshot.
type Controller struct {
	creds   credstore.Store
	profile ProfileFetcher
	log     *zap.Logger

	mu   sync.Mutex
	cur  model.Session
	subs []func(model.Session)
}

// New builds a controller. With persisted credentials the initial state is
// Loading (logged-in optimistically, pending profile confirmation); without
// them it is SignedOut. Consumers must render the Loading window as neither
// signed-in nor signed-out.
func New(creds credstore.Store, profile ProfileFetcher, log *zap.Logger) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	state := model.SessionSignedOut
	if creds.Pair().Complete() {
		state = model.SessionLoading
	}
	return &Controller{
		creds:   creds,
		profile: profile,
		log:     log,
		cur:     model.Session{State: state},
	}
}

// Snapshot returns the current session value.
func (c *Controller) Snapshot() model.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur
}

// Subscribe registers an observer called after every session change. The
// navigation layer subscribes here to route to the login surface on
// teardown; the controller itself never navigates.
func (c *Controller) Subscribe(fn func(model.Session)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs = append(c.subs, fn)
}

func (c *Controller) set(s model.Session) {
	c.mu.Lock()
	c.cur = s
	subs := append([]func(model.Session){}, c.subs...)
	c.mu.Unlock()
	for _, fn := range subs {
		fn(s)
	}
}

// Login stores the pair and confirms it against the profile endpoint. A
// profile failure tears the session down fully rather than leaving a
// half-authenticated state.
func (c *Controller) Login(ctx context.Context, pair model.CredentialPair) error {
	if err := c.creds.Save(pair); err != nil {
		return fmt.Errorf("store credentials: %w", err)
	}
	if err := c.FetchCurrentUser(ctx); err != nil {
		c.Logout()
		return fmt.Errorf("confirm session: %w", err)
	}
	return nil
}

// Logout clears credentials and session state. Idempotent.
func (c *Controller) Logout() {
	_ = c.creds.Clear()
	c.set(model.Session{State: model.SessionSignedOut})
}

// FetchCurrentUser resolves the session against the profile endpoint. With
// no stored credentials it settles to SignedOut without a network call. Any
// profile failure invalidates the session and clears credentials.
func (c *Controller) FetchCurrentUser(ctx context.Context) error {
	pair := c.creds.Pair()
	if pair.Access == "" {
		c.set(model.Session{State: model.SessionSignedOut})
		return nil
	}

	user, err := c.profile.CurrentUser(ctx)
	if err != nil {
		c.log.Warn("profile fetch failed, invalidating session", zap.Error(err))
		_ = c.creds.Clear()
		c.set(model.Session{State: model.SessionSignedOut})
		return err
	}

	_ = c.creds.SaveUsername(user.Username)
	c.set(model.Session{
		State: model.SessionSignedIn,
		User:  user,
		Role:  model.RoleOf(user),
	})
	return nil
}

// Terminate reflects a pipeline-signaled session termination (renewal
// failure). Credentials are already cleared by the pipeline; this settles
// local state and notifies subscribers.
func (c *Controller) Terminate() {
	c.log.Info("session terminated")
	c.set(model.Session{State: model.SessionSignedOut})
}
