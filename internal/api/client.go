// Package api is the typed surface over the request pipeline. Methods are
// thin: they name endpoints and decode payloads, and leave every session,
// retry and renewal decision to the transport layer.
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/promptdeck/promptdeck/internal/model"
	"github.com/promptdeck/promptdeck/internal/transport"
)

type Client struct {
	http *transport.Client
}

func New(t *transport.Client) *Client {
	return &Client{http: t}
}

// Login exchanges username/password for a credential pair. Unauthenticated
// by design: a stale bearer token must not interfere with a fresh login.
func (c *Client) Login(ctx context.Context, username, password string) (model.CredentialPair, error) {
	var out struct {
		Access  string `json:"access"`
		Refresh string `json:"refresh"`
	}
	body := map[string]string{"username": username, "password": password}
	if err := c.http.DoUnauthenticated(ctx, http.MethodPost, "/token/", body, &out); err != nil {
		return model.CredentialPair{}, err
	}
	return model.CredentialPair{Access: out.Access, Refresh: out.Refresh}, nil
}

// Register creates a new account.
func (c *Client) Register(ctx context.Context, username, email, password string) error {
	body := map[string]string{"username": username, "email": email, "password": password}
	return c.http.DoUnauthenticated(ctx, http.MethodPost, "/auth/register/", body, nil)
}

// CurrentUser fetches the authenticated user's profile.
func (c *Client) CurrentUser(ctx context.Context) (*model.UserProfile, error) {
	var u model.UserProfile
	if err := c.http.Do(ctx, http.MethodGet, "/auth/user/", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Prompts lists prompts visible to the current user.
func (c *Client) Prompts(ctx context.Context) ([]model.Prompt, error) {
	var out []model.Prompt
	if err := c.http.Do(ctx, http.MethodGet, "/prompts/", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Prompt fetches a single prompt.
func (c *Client) Prompt(ctx context.Context, id int64) (*model.Prompt, error) {
	var p model.Prompt
	if err := c.http.Do(ctx, http.MethodGet, fmt.Sprintf("/prompts/%d/", id), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Upvote records a +1 press and returns the authoritative vote state.
func (c *Client) Upvote(ctx context.Context, id int64) (model.VoteState, error) {
	return c.vote(ctx, id, "upvote")
}

// Downvote records a -1 press and returns the authoritative vote state.
func (c *Client) Downvote(ctx context.Context, id int64) (model.VoteState, error) {
	return c.vote(ctx, id, "downvote")
}

func (c *Client) vote(ctx context.Context, id int64, action string) (model.VoteState, error) {
	var out model.VoteState
	if err := c.http.Do(ctx, http.MethodPost, fmt.Sprintf("/prompts/%d/%s/", id, action), nil, &out); err != nil {
		return model.VoteState{}, err
	}
	return out, nil
}

// ToggleBookmark flips the bookmark and returns the prompt's full updated
// representation.
func (c *Client) ToggleBookmark(ctx context.Context, id int64) (*model.Prompt, error) {
	var p model.Prompt
	if err := c.http.Do(ctx, http.MethodPost, fmt.Sprintf("/prompts/%d/bookmark/", id), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// History returns the prompt's version timeline, newest first, exactly as the
// server ordered it.
func (c *Client) History(ctx context.Context, id int64) ([]model.Version, error) {
	var out []model.Version
	if err := c.http.Do(ctx, http.MethodGet, fmt.Sprintf("/prompts/%d/history/", id), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Revert asks the server to create a new version equal to the target's
// content. Status-only contract; the timeline is refetched on next open.
func (c *Client) Revert(ctx context.Context, promptID, versionID int64) error {
	return c.http.Do(ctx, http.MethodPost, fmt.Sprintf("/prompts/%d/revert/%d/", promptID, versionID), nil, nil)
}

// Approve marks a pending prompt approved (admin).
func (c *Client) Approve(ctx context.Context, id int64) (*model.Prompt, error) {
	return c.moderate(ctx, id, "approve")
}

// Reject marks a pending prompt rejected (admin).
func (c *Client) Reject(ctx context.Context, id int64) (*model.Prompt, error) {
	return c.moderate(ctx, id, "reject")
}

func (c *Client) moderate(ctx context.Context, id int64, action string) (*model.Prompt, error) {
	var p model.Prompt
	if err := c.http.Do(ctx, http.MethodPost, fmt.Sprintf("/prompts/%d/%s/", id, action), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Category is one selectable prompt category.
type Category struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Categories lists the server-defined categories.
func (c *Client) Categories(ctx context.Context) ([]Category, error) {
	var out []Category
	if err := c.http.Do(ctx, http.MethodGet, "/categories/", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
