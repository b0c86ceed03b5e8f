package domain

import (
	"testing"
	"time"
)

func TestPaired(t *testing.T) {
	tests := []struct {
		name    string
		history []Turn
		want    bool
	}{
		{"empty", nil, false},
		{"greeting only", []Turn{
			{Role: RoleAssistant, Content: "welcome"},
		}, true},
		{"greeting plus one pair", []Turn{
			{Role: RoleAssistant, Content: "welcome"},
			{Role: RoleUser, Content: "is it night?"},
			{Role: RoleAssistant, Content: "yes"},
		}, true},
		{"dangling question", []Turn{
			{Role: RoleAssistant, Content: "welcome"},
			{Role: RoleUser, Content: "is it night?"},
		}, false},
		{"starts with user", []Turn{
			{Role: RoleUser, Content: "hello?"},
		}, false},
		{"two answers in a row", []Turn{
			{Role: RoleAssistant, Content: "welcome"},
			{Role: RoleUser, Content: "is it night?"},
			{Role: RoleAssistant, Content: "yes"},
			{Role: RoleAssistant, Content: "definitely"},
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Session{History: tt.history}
			if got := s.Paired(); got != tt.want {
				t.Errorf("Paired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLastTurn(t *testing.T) {
	s := &Session{}
	if s.LastTurn() != nil {
		t.Fatal("LastTurn() on empty history should be nil")
	}

	s.History = []Turn{
		{Role: RoleAssistant, Content: "welcome"},
		{Role: RoleUser, Content: "why?"},
	}
	last := s.LastTurn()
	if last == nil || last.Content != "why?" {
		t.Fatalf("LastTurn() = %+v, want the user question", last)
	}
}

func TestExpiresAt(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := &Session{CreatedAt: created}

	want := created.Add(24 * time.Hour)
	if got := s.ExpiresAt(24 * time.Hour); !got.Equal(want) {
		t.Errorf("ExpiresAt() = %v, want %v", got, want)
	}
}
