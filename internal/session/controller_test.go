package session

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/promptdeck/promptdeck/internal/credstore"
	"github.com/promptdeck/promptdeck/internal/model"
)

type fakeProfile struct {
	user  *model.UserProfile
	err   error
	calls int
}

var _ ProfileFetcher = (*fakeProfile)(nil)

func (f *fakeProfile) CurrentUser(_ context.Context) (*model.UserProfile, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	cpy := *f.user
	return &cpy, nil
}

func pair() model.CredentialPair {
	return model.CredentialPair{Access: "a", Refresh: "r"}
}

func TestNew_LoadingWindowWithPersistedCredentials(t *testing.T) {
	store := credstore.NewMemory()
	_ = store.Save(pair())
	c := New(store, &fakeProfile{}, zap.NewNop())

	s := c.Snapshot()
	if s.State != model.SessionLoading {
		t.Fatalf("state=%s, want loading", s.State)
	}
	if s.Authenticated() {
		t.Fatalf("loading window must not report authenticated")
	}
}

func TestNew_SignedOutWithoutCredentials(t *testing.T) {
	c := New(credstore.NewMemory(), &fakeProfile{}, zap.NewNop())
	if got := c.Snapshot().State; got != model.SessionSignedOut {
		t.Fatalf("state=%s, want signed-out", got)
	}
}

func TestFetchCurrentUser_Confirms(t *testing.T) {
	store := credstore.NewMemory()
	_ = store.Save(pair())
	profile := &fakeProfile{user: &model.UserProfile{Username: "alice", IsStaff: true}}
	c := New(store, profile, zap.NewNop())

	if err := c.FetchCurrentUser(context.Background()); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	s := c.Snapshot()
	if !s.Authenticated() || s.User.Username != "alice" {
		t.Fatalf("session: %+v", s)
	}
	if s.Role != model.RoleAdmin || !s.Admin() {
		t.Fatalf("staff profile must normalize to admin, got %s", s.Role)
	}
	if store.Username() != "alice" {
		t.Fatalf("last-known username not persisted, got %q", store.Username())
	}
}

func TestFetchCurrentUser_NoCredentialsSkipsNetwork(t *testing.T) {
	profile := &fakeProfile{user: &model.UserProfile{Username: "alice"}}
	c := New(credstore.NewMemory(), profile, zap.NewNop())

	if err := c.FetchCurrentUser(context.Background()); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if profile.calls != 0 {
		t.Fatalf("profile endpoint called %d times, want 0", profile.calls)
	}
	if got := c.Snapshot().State; got != model.SessionSignedOut {
		t.Fatalf("state=%s, want signed-out", got)
	}
}

func TestFetchCurrentUser_FailureInvalidates(t *testing.T) {
	store := credstore.NewMemory()
	_ = store.Save(pair())
	profile := &fakeProfile{err: errors.New("boom")}
	c := New(store, profile, zap.NewNop())

	if err := c.FetchCurrentUser(context.Background()); err == nil {
		t.Fatalf("want error")
	}
	s := c.Snapshot()
	if s.State != model.SessionSignedOut || s.User != nil {
		t.Fatalf("session: %+v", s)
	}
	if !store.Pair().Empty() {
		t.Fatalf("credentials must be cleared on profile failure")
	}
}

func TestLogin_SuccessAndTeardownOnProfileFailure(t *testing.T) {
	store := credstore.NewMemory()
	profile := &fakeProfile{user: &model.UserProfile{Username: "bob"}}
	c := New(store, profile, zap.NewNop())

	if err := c.Login(context.Background(), pair()); err != nil {
		t.Fatalf("login: %v", err)
	}
	if s := c.Snapshot(); !s.Authenticated() || s.Role != model.RoleMember {
		t.Fatalf("session: %+v", s)
	}

	// a failing profile fetch after storing the pair tears everything down
	profile.err = errors.New("profile down")
	if err := c.Login(context.Background(), pair()); err == nil {
		t.Fatalf("want error")
	}
	if !store.Pair().Empty() {
		t.Fatalf("no half-authenticated state: credentials must be gone")
	}
	if got := c.Snapshot().State; got != model.SessionSignedOut {
		t.Fatalf("state=%s, want signed-out", got)
	}
}

func TestLogout_IdempotentAndObserved(t *testing.T) {
	store := credstore.NewMemory()
	_ = store.Save(pair())
	c := New(store, &fakeProfile{user: &model.UserProfile{Username: "x"}}, zap.NewNop())

	var seen []model.SessionState
	c.Subscribe(func(s model.Session) { seen = append(seen, s.State) })

	c.Logout()
	c.Logout() // no-op beyond notification
	if !store.Pair().Empty() {
		t.Fatalf("credentials survive logout")
	}
	if len(seen) != 2 || seen[0] != model.SessionSignedOut || seen[1] != model.SessionSignedOut {
		t.Fatalf("observed states: %v", seen)
	}
}

func TestTerminate_NotifiesSubscribers(t *testing.T) {
	store := credstore.NewMemory()
	_ = store.Save(pair())
	c := New(store, &fakeProfile{}, zap.NewNop())

	notified := false
	c.Subscribe(func(s model.Session) {
		notified = s.State == model.SessionSignedOut
	})
	c.Terminate()
	if !notified {
		t.Fatalf("terminate must notify subscribers with signed-out state")
	}
}
