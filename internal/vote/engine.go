// Package vote is the optimistic mutation engine for votes and bookmarks:
// compute a speculative next state, show it immediately, issue the server
// call, then reconcile with the authoritative response or roll back to the
// exact pre-press snapshot.
package vote

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/promptdeck/promptdeck/internal/errs"
	"github.com/promptdeck/promptdeck/internal/model"
)

// Caller issues the mutation endpoints. *api.Client satisfies this.
type Caller interface {
	Upvote(ctx context.Context, id int64) (model.VoteState, error)
	Downvote(ctx context.Context, id int64) (model.VoteState, error)
	ToggleBookmark(ctx context.Context, id int64) (*model.Prompt, error)
}

// Transition computes the speculative vote state for a press of value
// (+1 or -1) given the current state:
//   - same direction again toggles the vote off;
//   - opposite direction flips it, moving the count by two;
//   - from neutral it simply applies.
func Transition(cur model.VoteState, value int) model.VoteState {
	switch {
	case cur.UserVote == value:
		return model.VoteState{UserVote: 0, VoteCount: cur.VoteCount - value}
	case cur.UserVote == -value:
		return model.VoteState{UserVote: value, VoteCount: cur.VoteCount + 2*value}
	default:
		return model.VoteState{UserVote: value, VoteCount: cur.VoteCount + value}
	}
}

// Engine applies optimistic mutations to prompts. One mutation may be
// outstanding per entity; further presses on the same entity are ignored
// until it resolves. Mutations on different entities are independent.
type Engine struct {
	api Caller
	log *zap.Logger

	mu       sync.Mutex
	inflight map[int64]bool
}

func NewEngine(api Caller, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{api: api, log: log, inflight: make(map[int64]bool)}
}

func (e *Engine) acquire(id int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inflight[id] {
		return false
	}
	e.inflight[id] = true
	return true
}

func (e *Engine) release(id int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.inflight, id)
}

// Vote applies a press of value (+1 or -1) to p. The speculative state is
// visible on p for the duration of the call; on return p holds either the
// server-confirmed state or, on failure, exactly the pre-press snapshot.
func (e *Engine) Vote(ctx context.Context, p *model.Prompt, value int) (model.VoteState, error) {
	if value != 1 && value != -1 {
		return model.VoteState{}, fmt.Errorf("vote value must be +1 or -1, got %d", value)
	}
	if !e.acquire(p.ID) {
		return model.VoteState{}, errs.ErrMutationInFlight
	}
	defer e.release(p.ID)

	snapshot := model.VoteState{UserVote: p.UserVote, VoteCount: p.VoteCount}
	next := Transition(snapshot, value)
	p.UserVote, p.VoteCount = next.UserVote, next.VoteCount

	var confirmed model.VoteState
	var err error
	if value == 1 {
		confirmed, err = e.api.Upvote(ctx, p.ID)
	} else {
		confirmed, err = e.api.Downvote(ctx, p.ID)
	}
	if err != nil {
		// full rollback: vote and count together, never one without the other
		p.UserVote, p.VoteCount = snapshot.UserVote, snapshot.VoteCount
		e.log.Warn("vote failed, rolled back",
			zap.Int64("prompt", p.ID),
			zap.Int("value", value),
			zap.Error(err),
		)
		return model.VoteState{}, err
	}

	// Server wins verbatim, even when it matches the speculative guess.
	p.UserVote, p.VoteCount = confirmed.UserVote, confirmed.VoteCount
	return confirmed, nil
}

// Bookmark toggles p's bookmark with the same optimistic shape as Vote, as a
// plain boolean flip. Success reconciles from the prompt's full updated
// representation.
func (e *Engine) Bookmark(ctx context.Context, p *model.Prompt) (bool, error) {
	if !e.acquire(p.ID) {
		return false, errs.ErrMutationInFlight
	}
	defer e.release(p.ID)

	snapshot := p.IsBookmarked
	p.IsBookmarked = !snapshot

	updated, err := e.api.ToggleBookmark(ctx, p.ID)
	if err != nil {
		p.IsBookmarked = snapshot
		e.log.Warn("bookmark failed, rolled back", zap.Int64("prompt", p.ID), zap.Error(err))
		return false, err
	}

	p.IsBookmarked = updated.IsBookmarked
	p.UserVote = updated.UserVote
	p.VoteCount = updated.VoteCount
	p.LikeCount = updated.LikeCount
	p.DislikeCount = updated.DislikeCount
	return p.IsBookmarked, nil
}
