package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/promptdeck/promptdeck/internal/credstore"
	"github.com/promptdeck/promptdeck/internal/model"
	"github.com/promptdeck/promptdeck/internal/transport"
)

func newTestClient(t *testing.T, register func(r *mux.Router)) *Client {
	t.Helper()
	r := mux.NewRouter()
	register(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	store := credstore.NewMemory()
	_ = store.Save(model.CredentialPair{Access: "tok", Refresh: "ref"})
	return New(transport.New(srv.URL, store, 5*time.Second, zap.NewNop()))
}

func TestUpvote_DecodesAuthoritativeStateFromFullPrompt(t *testing.T) {
	var calledPath string
	c := newTestClient(t, func(r *mux.Router) {
		r.HandleFunc("/prompts/{id}/upvote/", func(w http.ResponseWriter, req *http.Request) {
			calledPath = req.URL.Path
			// the server replies with the whole prompt serializer payload
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id": 42, "title": "t", "user_vote": 1, "vote_count": 11,
				"like_count": 12, "dislike_count": 1, "is_bookmarked": true,
			})
		}).Methods(http.MethodPost)
	})

	out, err := c.Upvote(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "/prompts/42/upvote/", calledPath)
	assert.Equal(t, model.VoteState{UserVote: 1, VoteCount: 11}, out)
}

func TestDownvote_AcceptsCamelCasePayload(t *testing.T) {
	c := newTestClient(t, func(r *mux.Router) {
		r.HandleFunc("/prompts/{id}/downvote/", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"userVote": -1, "voteCount": 9}`))
		}).Methods(http.MethodPost)
	})

	out, err := c.Downvote(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, model.VoteState{UserVote: -1, VoteCount: 9}, out)
}

func TestHistory_DecodesVersionRecords(t *testing.T) {
	c := newTestClient(t, func(r *mux.Router) {
		r.HandleFunc("/prompts/{id}/history/", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`[
				{"id": 2, "prompt": 5, "edited_by_username": "bob",
				 "version_created_at": "2026-02-01T10:00:00Z", "title": "newer",
				 "prompt_text": "text2", "task_type": "qa", "task_type_label": "Q&A"},
				{"id": 1, "prompt": 5, "edited_by_username": "alice",
				 "version_created_at": "2026-01-01T10:00:00Z", "title": "older",
				 "prompt_text": "text1", "output_format": "md"}
			]`))
		}).Methods(http.MethodGet)
	})

	versions, err := c.History(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, int64(2), versions[0].ID)
	assert.Equal(t, "bob", versions[0].EditedByUsername)
	assert.Equal(t, "Q&A", versions[0].TaskTypeLabel)
	assert.Equal(t, time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC), versions[1].CreatedAt)
	assert.Equal(t, "md", versions[1].OutputFormat)
}

func TestRevert_PostsVersionPath(t *testing.T) {
	var calledPath, method string
	c := newTestClient(t, func(r *mux.Router) {
		r.PathPrefix("/prompts/").HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			calledPath, method = req.URL.Path, req.Method
			w.WriteHeader(http.StatusOK)
		})
	})

	require.NoError(t, c.Revert(context.Background(), 5, 17))
	assert.Equal(t, "/prompts/5/revert/17/", calledPath)
	assert.Equal(t, http.MethodPost, method)
}

func TestLogin_ReturnsPair(t *testing.T) {
	c := newTestClient(t, func(r *mux.Router) {
		r.HandleFunc("/token/", func(w http.ResponseWriter, req *http.Request) {
			var body map[string]string
			_ = json.NewDecoder(req.Body).Decode(&body)
			if body["username"] != "alice" || body["password"] != "pw" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = w.Write([]byte(`{"access": "a1", "refresh": "r1"}`))
		}).Methods(http.MethodPost)
	})

	pair, err := c.Login(context.Background(), "alice", "pw")
	require.NoError(t, err)
	assert.Equal(t, model.CredentialPair{Access: "a1", Refresh: "r1"}, pair)

	_, err = c.Login(context.Background(), "alice", "wrong")
	require.Error(t, err)
}

func TestCurrentUser_DecodesProfile(t *testing.T) {
	c := newTestClient(t, func(r *mux.Router) {
		r.HandleFunc("/auth/user/", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"id": 9, "username": "root", "is_staff": true}`))
		}).Methods(http.MethodGet)
	})

	u, err := c.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "root", u.Username)
	assert.Equal(t, model.RoleAdmin, model.RoleOf(u))
}

func TestCategories_Decode(t *testing.T) {
	c := newTestClient(t, func(r *mux.Router) {
		r.HandleFunc("/categories/", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`[{"value": "eng", "label": "Engineering"}]`))
		}).Methods(http.MethodGet)
	})

	cats, err := c.Categories(context.Background())
	require.NoError(t, err)
	require.Len(t, cats, 1)
	assert.Equal(t, Category{Value: "eng", Label: "Engineering"}, cats[0])
}
