// Package domain contains core domain types for the deduction room service.
package domain

import (
	"time"
)

// Role identifies the author of a turn in a session transcript.
type Role string

const (
	// RoleUser is a question asked by a player.
	RoleUser Role = "user"
	// RoleAssistant is an answer from the automated host.
	RoleAssistant Role = "assistant"
)

// Turn is a single message in a session transcript.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Session is one shared game room: a riddle reference plus its ordered
// transcript. The transcript is append-only; its order is the game.
type Session struct {
	ID        string    `json:"id"`
	SoupID    string    `json:"soupId"`
	CreatedAt time.Time `json:"createdAt"`
	History   []Turn    `json:"history"`

	// Version increments on every persisted write and backs the
	// store's conditional append. Not part of the wire payload.
	Version int64 `json:"-"`
}

// TurnCount returns the number of turns in the transcript.
func (s *Session) TurnCount() int {
	return len(s.History)
}

// Paired reports whether the transcript is in a committed state: one
// assistant greeting followed by complete (user, assistant) pairs. A
// session must never be persisted with a question missing its answer.
func (s *Session) Paired() bool {
	if len(s.History) == 0 || s.History[0].Role != RoleAssistant {
		return false
	}
	rest := s.History[1:]
	if len(rest)%2 != 0 {
		return false
	}
	for i, turn := range rest {
		want := RoleUser
		if i%2 == 1 {
			want = RoleAssistant
		}
		if turn.Role != want {
			return false
		}
	}
	return true
}

// LastTurn returns the most recent turn, or nil for an empty transcript.
func (s *Session) LastTurn() *Turn {
	if len(s.History) == 0 {
		return nil
	}
	return &s.History[len(s.History)-1]
}

// ExpiresAt returns the moment the session becomes eligible for cleanup.
func (s *Session) ExpiresAt(ttl time.Duration) time.Time {
	return s.CreatedAt.Add(ttl)
}
