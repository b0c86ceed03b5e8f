// Package host implements the turn orchestrator: it turns a raw player
// question into a model call and a persisted question/answer pair.
package host

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/soupnight/souproom/internal/domain"
	"github.com/soupnight/souproom/internal/llm"
	"github.com/soupnight/souproom/internal/soups"
	"github.com/soupnight/souproom/internal/store"
)

var (
	// ErrEmptyQuestion is returned when the question is empty after trimming.
	ErrEmptyQuestion = errors.New("question is empty")

	// ErrSoupMissing is returned when a session references a riddle the
	// catalog no longer knows. Create-time validation makes this a data
	// integrity failure, not a user error.
	ErrSoupMissing = errors.New("session references unknown soup")

	// ErrCompletion wraps transport/provider failures from the model call.
	ErrCompletion = errors.New("completion failed")

	// ErrConflict is returned when the append still conflicts after the
	// bounded retry budget.
	ErrConflict = errors.New("session busy, append conflicted")
)

// appendAttempts bounds the load-modify-save retry loop on version
// conflicts. Two concurrent writers resolve within one extra round.
const appendAttempts = 3

// Host orchestrates game sessions against the store, catalog and model.
type Host struct {
	repo            store.Repository
	catalog         *soups.Catalog
	client          llm.Client
	temperature     float64
	progressKeyword string
}

// New creates a Host. Temperature applies to every completion call.
func New(repo store.Repository, catalog *soups.Catalog, client llm.Client, temperature float64, progressKeyword string) *Host {
	if progressKeyword == "" {
		progressKeyword = "progress"
	}
	return &Host{
		repo:            repo,
		catalog:         catalog,
		client:          client,
		temperature:     temperature,
		progressKeyword: progressKeyword,
	}
}

// CreateSession allocates a new room for the given riddle, seeding the
// transcript with the host greeting. An empty or unknown soupID falls
// back to a random riddle.
func (h *Host) CreateSession(ctx context.Context, soupID string) (*domain.Session, *domain.Soup, error) {
	soup := h.catalog.ByID(soupID)
	if soup == nil {
		soup = h.catalog.Random()
	}
	if soup == nil {
		return nil, nil, fmt.Errorf("%w: catalog is empty", ErrSoupMissing)
	}

	session := &domain.Session{
		ID:        uuid.NewString(),
		SoupID:    soup.ID,
		CreatedAt: time.Now(),
		History: []domain.Turn{
			{Role: domain.RoleAssistant, Content: greeting},
		},
	}

	if err := h.repo.CreateSession(ctx, session); err != nil {
		return nil, nil, fmt.Errorf("create session: %w", err)
	}
	return session, soup, nil
}

// Load returns the session and its riddle.
func (h *Host) Load(ctx context.Context, sessionID string) (*domain.Session, *domain.Soup, error) {
	session, err := h.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	soup := h.catalog.ByID(session.SoupID)
	if soup == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrSoupMissing, session.SoupID)
	}
	return session, soup, nil
}

// Ask runs one full turn: load the session, call the model with the
// assembled context, and atomically append the question/answer pair.
// Exactly one append happens on success; none on any failure, so a
// question is never persisted without its answer.
func (h *Host) Ask(ctx context.Context, sessionID, rawQuestion string) (string, []domain.Turn, error) {
	question := strings.TrimSpace(rawQuestion)
	if question == "" {
		return "", nil, ErrEmptyQuestion
	}

	session, soup, err := h.Load(ctx, sessionID)
	if err != nil {
		return "", nil, err
	}

	messages := h.buildMessages(soup, session.History, question)

	answer, err := h.client.Complete(ctx, messages, llm.Options{Temperature: &h.temperature})
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrCompletion, err)
	}

	pair := []domain.Turn{
		{Role: domain.RoleUser, Content: question},
		{Role: domain.RoleAssistant, Content: answer},
	}

	// Conditional append with a bounded reload loop: a concurrent
	// writer bumps the version, we reload and append after their pair
	// instead of overwriting it.
	for attempt := 0; attempt < appendAttempts; attempt++ {
		err = h.repo.AppendTurns(ctx, sessionID, session.Version, pair)
		if err == nil {
			history := append(append([]domain.Turn(nil), session.History...), pair...)
			return answer, history, nil
		}
		if !errors.Is(err, store.ErrVersionConflict) {
			return "", nil, fmt.Errorf("append turns: %w", err)
		}
		session, err = h.repo.GetSession(ctx, sessionID)
		if err != nil {
			return "", nil, err
		}
	}
	return "", nil, ErrConflict
}

// IsProgressQuestion reports whether the trimmed question is the
// reserved progress query.
func (h *Host) IsProgressQuestion(question string) bool {
	return strings.EqualFold(strings.TrimSpace(question), h.progressKeyword)
}

// buildMessages assembles the ordered model input: system contract, a
// hidden-context message carrying the truth and opening (never sent to
// clients), the full transcript, then the directive for the new turn.
func (h *Host) buildMessages(soup *domain.Soup, history []domain.Turn, question string) []llm.Message {
	messages := make([]llm.Message, 0, len(history)+3)

	messages = append(messages, llm.Message{
		Role:    llm.RoleSystem,
		Content: systemPrompt,
	})
	messages = append(messages, llm.Message{
		Role: llm.RoleUser,
		Content: strings.Join([]string{
			"Here are this riddle's TRUTH and OPENING (for your eyes only, players cannot see this):",
			"",
			"TRUTH:\n" + soup.Truth,
			"",
			"OPENING:\n" + soup.Opening,
			"",
			"Below is the conversation so far (if any):",
		}, "\n"),
	})

	for _, turn := range history {
		messages = append(messages, llm.Message{
			Role:    string(turn.Role),
			Content: turn.Content,
		})
	}

	directive := "The player's new question or request is: " + question
	if h.IsProgressQuestion(question) {
		directive = progressDirective
	}
	messages = append(messages, llm.Message{
		Role:    llm.RoleUser,
		Content: directive,
	})

	return messages
}
