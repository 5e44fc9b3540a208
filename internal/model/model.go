// Package model defines domain entities shared by the transport, session,
// mutation and history layers.
package model

import (
	"encoding/json"
	"time"
)

// CredentialPair collects the access/refresh tokens issued on login or renewal.
// Both fields present or both absent; a lone access token is useless for
// renewal and is treated as no credentials at all.
type CredentialPair struct {
	Access  string `json:"access_token"`
	Refresh string `json:"refresh_token"`
}

// Complete reports whether the pair can both authorize calls and renew itself.
func (p CredentialPair) Complete() bool {
	return p.Access != "" && p.Refresh != ""
}

// Empty reports whether no credentials are held.
func (p CredentialPair) Empty() bool {
	return p.Access == "" && p.Refresh == ""
}

// Role is the normalized permission level derived from a profile exactly once
// at fetch time. Consumers never re-inspect profile flags.
type Role int

const (
	RoleMember Role = iota
	RoleAdmin
)

func (r Role) String() string {
	if r == RoleAdmin {
		return "admin"
	}
	return "member"
}

// UserProfile is the authenticated user's record as returned by the profile
// endpoint. The profile endpoint is the sole source of truth for session
// validity.
type UserProfile struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	IsStaff  bool   `json:"is_staff"`
}

// RoleOf maps a profile to its role variant. This is the only place the
// staff flag is inspected.
func RoleOf(u *UserProfile) Role {
	if u != nil && u.IsStaff {
		return RoleAdmin
	}
	return RoleMember
}

// SessionState distinguishes the window between process start (with persisted
// credentials) and profile confirmation from both signed states.
type SessionState int

const (
	// SessionLoading: persisted credentials exist but the profile has not
	// been confirmed yet. Neither signed-in nor signed-out UI applies.
	SessionLoading SessionState = iota
	SessionSignedIn
	SessionSignedOut
)

func (s SessionState) String() string {
	switch s {
	case SessionLoading:
		return "loading"
	case SessionSignedIn:
		return "signed-in"
	default:
		return "signed-out"
	}
}

// Session is the derived authentication state owned by the session controller.
// Role is a pure derivation of User, never stored independently.
type Session struct {
	State SessionState
	User  *UserProfile
	Role  Role
}

// Authenticated reports a confirmed signed-in session.
func (s Session) Authenticated() bool { return s.State == SessionSignedIn }

// Admin reports a confirmed admin session.
func (s Session) Admin() bool { return s.State == SessionSignedIn && s.Role == RoleAdmin }

// VoteState is the server-authoritative vote of the current user on a prompt
// together with the aggregate count. The server emits either snake_case or
// camelCase keys depending on the serializer path; both are accepted.
type VoteState struct {
	UserVote  int
	VoteCount int
}

// UnmarshalJSON accepts user_vote/userVote and vote_count/voteCount/vote.
func (v *VoteState) UnmarshalJSON(data []byte) error {
	var raw struct {
		UserVote       *int `json:"user_vote"`
		UserVoteCamel  *int `json:"userVote"`
		VoteCount      *int `json:"vote_count"`
		VoteCountCamel *int `json:"voteCount"`
		Vote           *int `json:"vote"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v.UserVote = firstInt(raw.UserVote, raw.UserVoteCamel)
	v.VoteCount = firstInt(raw.VoteCount, raw.VoteCountCamel, raw.Vote)
	return nil
}

func firstInt(ps ...*int) int {
	for _, p := range ps {
		if p != nil {
			return *p
		}
	}
	return 0
}

// Prompt statuses as reported by the server.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Prompt is a shared artifact subject to voting, bookmarking and versioning.
// Vote and bookmark fields are server-confirmed values; speculative UI state
// lives in the mutation engine, never here.
type Prompt struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"prompt_description"`
	Text         string `json:"prompt_text"`
	Guidance     string `json:"guidance"`
	Category     string `json:"category"`
	TaskType     string `json:"task_type"`
	OutputFormat string `json:"output_format"`
	Author       string `json:"user_username"`
	Status       string `json:"status"`

	UserVote     int  `json:"user_vote"`
	VoteCount    int  `json:"vote_count"`
	LikeCount    int  `json:"like_count"`
	DislikeCount int  `json:"dislike_count"`
	IsBookmarked bool `json:"is_bookmarked"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Version is an immutable snapshot of an artifact's content at one point in
// its edit history. Versions are created only by the server (approved edit or
// revert); the client reads them newest first and never reorders or mutates.
type Version struct {
	ID                int64     `json:"id"`
	PromptID          int64     `json:"prompt"`
	EditedByUsername  string    `json:"edited_by_username"`
	CreatedAt         time.Time `json:"version_created_at"`
	Title             string    `json:"title"`
	Description       string    `json:"prompt_description"`
	Text              string    `json:"prompt_text"`
	Guidance          string    `json:"guidance"`
	Category          string    `json:"category"`
	TaskType          string    `json:"task_type"`
	TaskTypeLabel     string    `json:"task_type_label"`
	OutputFormat      string    `json:"output_format"`
	OutputFormatLabel string    `json:"output_format_label"`
}
