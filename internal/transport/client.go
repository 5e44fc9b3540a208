// Package transport is the authenticated request pipeline. Every outbound
// call goes through it: it attaches the current access credential, renews it
// at most once per failing request, serializes concurrent renewals behind a
// single in-flight refresh call, and signals session termination when
// renewal is no longer possible.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/promptdeck/promptdeck/internal/credstore"
	"github.com/promptdeck/promptdeck/internal/errs"
	"github.com/promptdeck/promptdeck/internal/model"
)

const (
	refreshPath = "/token/refresh/"
	profilePath = "/auth/user/"
)

// Client wraps an HTTP client with bearer attachment and 401 recovery.
type Client struct {
	base  string
	http  *http.Client
	creds credstore.Store
	log   *zap.Logger

	// renew collapses concurrent refresh attempts into one outbound call.
	// Two renewals racing can invalidate each other's refresh credential.
	renew singleflight.Group

	mu         sync.Mutex
	terminated []func()
}

// New builds a pipeline for the given API base URL (including any /api
// prefix). Pass zap.NewNop() to silence logging.
func New(baseURL string, creds credstore.Store, timeout time.Duration, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		base:  strings.TrimRight(baseURL, "/"),
		http:  &http.Client{Timeout: timeout},
		creds: creds,
		log:   log,
	}
}

// OnSessionTerminated subscribes to terminal renewal failure. The navigation
// layer uses this to route to the login surface; the pipeline itself never
// navigates.
func (c *Client) OnSessionTerminated(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.terminated = append(c.terminated, fn)
}

func (c *Client) notifyTerminated() {
	c.mu.Lock()
	subs := append([]func(){}, c.terminated...)
	c.mu.Unlock()
	for _, fn := range subs {
		fn()
	}
}

// pendingRequest is a captured outbound call. The retried flag is an explicit
// value here, not a side channel on a shared request object: a given original
// call is retried at most once.
type pendingRequest struct {
	method  string
	path    string
	payload []byte
	retried bool
}

// Do issues method path with body marshaled as JSON (nil for none) and
// decodes a 2xx response into out (nil to discard). 401s are resolved
// internally per the renewal protocol; callers only observe the outcome.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}
	req := pendingRequest{method: method, path: path, payload: payload}

	for {
		access := c.creds.Pair().Access
		status, respBody, statusText, err := c.send(ctx, req, access)
		if err != nil {
			// transport failure: no response, no credential changes
			return fmt.Errorf("%s %s: %w", method, path, err)
		}

		if status != http.StatusUnauthorized {
			return c.finish(status, statusText, respBody, out)
		}

		// A 401 from the profile endpoint is not recoverable by renewal:
		// the profile call is how sessions are validated, so renewing here
		// would only loop.
		if req.path == profilePath {
			_ = c.creds.Clear()
			c.log.Warn("profile endpoint rejected session", zap.String("path", path))
			return fmt.Errorf("%s %s: %w", method, path, errs.ErrSessionExpired)
		}

		if req.retried {
			// second 401 after a successful renewal is terminal, not retried
			return c.finish(status, statusText, respBody, out)
		}
		req.retried = true

		if err := c.renewAccess(access); err != nil {
			_ = c.creds.Clear()
			_ = c.creds.ClearUsername()
			c.log.Warn("credential renewal failed, terminating session", zap.Error(err))
			c.notifyTerminated()
			return fmt.Errorf("%s %s: %w", method, path, errs.ErrSessionExpired)
		}
		// loop resends exactly once with the renewed credential
	}
}

// send performs one HTTP round trip carrying the given access token (""
// sends unauthenticated). Returns the status, raw body and status text, or a
// transport error when no response was obtained.
func (c *Client) send(ctx context.Context, req pendingRequest, access string) (int, []byte, string, error) {
	var rd io.Reader
	if req.payload != nil {
		rd = bytes.NewReader(req.payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.base+req.path, rd)
	if err != nil {
		return 0, nil, "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if reqID, err := uuid.NewV4(); err == nil {
		httpReq.Header.Set("X-Request-ID", reqID.String())
	}
	if access != "" {
		httpReq.Header.Set("Authorization", "Bearer "+access)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return 0, nil, "", err
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, "", err
	}

	c.log.Debug("http",
		zap.String("method", req.method),
		zap.String("path", req.path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("dur", time.Since(start)),
		zap.Bool("retried", req.retried),
	)
	return resp.StatusCode, respBody, http.StatusText(resp.StatusCode), nil
}

// finish decodes a success body or shapes an APIError from a failure body.
func (c *Client) finish(status int, statusText string, body []byte, out any) error {
	if status >= 200 && status < 300 {
		if out == nil || len(body) == 0 {
			return nil
		}
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}

	apiErr := &APIError{Status: status, StatusText: statusText}
	var payload struct {
		Detail  string `json:"detail"`
		ErrText string `json:"error"`
		Message string `json:"message"`
	}
	if len(body) > 0 && json.Unmarshal(body, &payload) == nil {
		apiErr.Detail = payload.Detail
		apiErr.ErrText = payload.ErrText
		apiErr.Message = payload.Message
	}
	return apiErr
}

// renewAccess obtains a fresh access token, deduplicating concurrent callers
// behind one outbound refresh call. Requests that hit a 401 while a renewal
// is in flight wait for that renewal's outcome instead of issuing their own.
// staleAccess is the token the failing request carried: when the store
// already holds a different one, some other caller renewed in the meantime
// and no refresh call is needed.
func (c *Client) renewAccess(staleAccess string) error {
	_, err, _ := c.renew.Do("refresh", func() (any, error) {
		pair := c.creds.Pair()
		if pair.Refresh == "" {
			return nil, errs.ErrNoCredentials
		}
		if pair.Access != "" && pair.Access != staleAccess {
			return nil, nil
		}

		// The refresh call is deliberately detached from any caller's
		// context: its result is shared by every waiter.
		ctx, cancel := context.WithTimeout(context.Background(), c.http.Timeout)
		defer cancel()

		body, _ := json.Marshal(map[string]string{"refresh": pair.Refresh})
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+refreshPath, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(httpReq)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			return nil, c.finish(resp.StatusCode, http.StatusText(resp.StatusCode), respBody, nil)
		}

		var tokens struct {
			Access  string `json:"access"`
			Refresh string `json:"refresh"`
		}
		if err := json.Unmarshal(respBody, &tokens); err != nil {
			return nil, fmt.Errorf("decode refresh response: %w", err)
		}
		if tokens.Access == "" {
			return nil, fmt.Errorf("refresh response missing access token")
		}

		// Whole-pair replacement: access is renewed, refresh kept unless
		// the server rotated it.
		next := model.CredentialPair{Access: tokens.Access, Refresh: pair.Refresh}
		if tokens.Refresh != "" {
			next.Refresh = tokens.Refresh
		}
		if err := c.creds.Save(next); err != nil {
			return nil, err
		}
		c.log.Info("access credential renewed")
		return nil, nil
	})
	return err
}

// DoUnauthenticated issues a call that never carries credentials and never
// triggers renewal (login, register).
func (c *Client) DoUnauthenticated(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}
	var rd io.Reader
	if payload != nil {
		rd = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	return c.finish(resp.StatusCode, http.StatusText(resp.StatusCode), respBody, out)
}
