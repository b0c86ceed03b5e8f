package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/soupnight/souproom/internal/domain"
)

func TestGetSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sessions/room-1" {
			t.Errorf("path = %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(SessionInfo{
			SessionID: "room-1",
			Soup:      domain.SoupSummary{ID: "p1", Title: "The Salted Soup"},
			History:   []domain.Turn{{Role: domain.RoleAssistant, Content: "welcome"}},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	info, err := c.GetSession(context.Background(), "room-1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if info.SessionID != "room-1" || info.Soup.ID != "p1" || len(info.History) != 1 {
		t.Fatalf("info = %+v", info)
	}
}

func TestGetSessionETagCache(t *testing.T) {
	var hits int32
	payload := `{"sessionId":"room-1","soup":{"id":"p1"},"history":[]}`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if r.Header.Get("If-None-Match") == `"room-1-1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"room-1-1"`)
		w.Write([]byte(payload))
	}))
	defer srv.Close()

	c := New(srv.URL, nil)

	first, err := c.GetSession(context.Background(), "room-1")
	if err != nil {
		t.Fatalf("first GetSession: %v", err)
	}

	// Second fetch answers 304; the body comes from the cache.
	second, err := c.GetSession(context.Background(), "room-1")
	if err != nil {
		t.Fatalf("second GetSession: %v", err)
	}
	if second.SessionID != first.SessionID {
		t.Fatalf("cached body mismatch: %+v vs %+v", second, first)
	}
	if got := atomic.LoadInt32(&hits); got != 2 {
		t.Fatalf("server hits = %d, want 2", got)
	}
}

func TestGetCoalescesConcurrentCalls(t *testing.T) {
	var hits int32
	release := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		<-release
		w.Write([]byte(`{"sessionId":"room-1","soup":{"id":"p1"},"history":[]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, nil)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.GetSession(context.Background(), "room-1")
		}(i)
	}

	// Give the goroutines time to pile onto the in-flight call.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("caller %d: %v", i, err)
		}
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Fatalf("server hits = %d, want 1 coalesced round trip", got)
	}
}

func TestAskPostsQuestion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/sessions/room-1/ask" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body["question"] != "is it night?" {
			t.Errorf("question = %q", body["question"])
		}
		json.NewEncoder(w).Encode(AskResult{
			Answer:  "yes",
			History: []domain.Turn{{Role: domain.RoleAssistant, Content: "welcome"}},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	result, err := c.Ask(context.Background(), "room-1", "is it night?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if result.Answer != "yes" {
		t.Fatalf("answer = %q", result.Answer)
	}
}

func TestAPIErrorDecoding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"NOT_FOUND"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	_, err := c.GetSession(context.Background(), "ghost")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Status != http.StatusNotFound || apiErr.Code != "NOT_FOUND" {
		t.Fatalf("apiErr = %+v", apiErr)
	}
	if !IsNotFound(err) {
		t.Fatal("IsNotFound should report true")
	}
	if IsRateLimited(err) {
		t.Fatal("IsRateLimited should report false for a 404")
	}
}

func TestIsRateLimited(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"429 status", &APIError{Status: http.StatusTooManyRequests}, true},
		{"code", &APIError{Status: http.StatusOK, Code: "RATE_LIMITED"}, true},
		{"message", &APIError{Status: http.StatusBadGateway, Message: "provider rate limit hit"}, true},
		{"wrapped", fmt.Errorf("get session: %w", &APIError{Status: http.StatusTooManyRequests}), true},
		{"plain 500", &APIError{Status: http.StatusInternalServerError, Code: "COMPLETION_ERROR"}, false},
		{"non-api error", errors.New("dial tcp: connection refused"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRateLimited(tt.err); got != tt.want {
				t.Errorf("IsRateLimited(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestSoups(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/turtle-soups" {
			t.Errorf("path = %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode([]domain.SoupSummary{
			{ID: "p1", Title: "The Salted Soup"},
			{ID: "p2", Title: "The Unlit Lighthouse"},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	list, err := c.Soups(context.Background())
	if err != nil {
		t.Fatalf("Soups: %v", err)
	}
	if len(list) != 2 || list[0].ID != "p1" {
		t.Fatalf("list = %+v", list)
	}
}
