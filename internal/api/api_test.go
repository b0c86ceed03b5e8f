package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/soupnight/souproom/internal/api"
	"github.com/soupnight/souproom/internal/domain"
	"github.com/soupnight/souproom/internal/host"
	"github.com/soupnight/souproom/internal/llm"
	"github.com/soupnight/souproom/internal/soups"
	"github.com/soupnight/souproom/internal/store"
)

type sessionPayload struct {
	SessionID string             `json:"sessionId"`
	Soup      domain.SoupSummary `json:"soup"`
	History   []domain.Turn      `json:"history"`
}

type askPayload struct {
	Answer  string        `json:"answer"`
	History []domain.Turn `json:"history"`
}

func newTestServer(t *testing.T, responses ...llm.MockResponse) (*httptest.Server, *host.Host) {
	t.Helper()

	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	catalog := soups.NewCatalog()
	gameHost := host.New(repo, catalog, llm.NewMockClient(responses...), 0.6, "progress")
	handler := api.NewHandler(gameHost, catalog, repo)

	r := chi.NewRouter()
	r.MethodNotAllowed(api.MethodNotAllowed)
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", api.Health)
		handler.RegisterSoupRoutes(r)
		handler.RegisterSessionRoutes(r)
	})
	handler.RegisterWatchRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, gameHost
}

func postJSON(t *testing.T, url string, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewReader([]byte(body)))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func errorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body map[string]string
	decodeBody(t, resp, &body)
	return body["error"]
}

func createRoom(t *testing.T, srv *httptest.Server, soupID string) sessionPayload {
	t.Helper()
	resp := postJSON(t, srv.URL+"/api/sessions", `{"soupId":"`+soupID+`"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", resp.StatusCode)
	}
	var payload sessionPayload
	decodeBody(t, resp, &payload)
	return payload
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestCreateSession(t *testing.T) {
	srv, _ := newTestServer(t)

	payload := createRoom(t, srv, "p1")
	if payload.SessionID == "" {
		t.Fatal("sessionId is empty")
	}
	if payload.Soup.ID != "p1" {
		t.Fatalf("soup.id = %q, want p1", payload.Soup.ID)
	}
	if len(payload.History) != 1 || payload.History[0].Role != domain.RoleAssistant {
		t.Fatalf("history = %+v, want the single greeting turn", payload.History)
	}
}

func TestCreateSessionWithoutBody(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/sessions", "")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (missing body means random riddle)", resp.StatusCode)
	}
	var payload sessionPayload
	decodeBody(t, resp, &payload)
	if payload.Soup.ID == "" {
		t.Fatal("expected a randomly chosen riddle")
	}
}

func TestGetSessionETag(t *testing.T) {
	srv, _ := newTestServer(t)
	room := createRoom(t, srv, "p2")

	resp, err := http.Get(srv.URL + "/api/sessions/" + room.SessionID)
	if err != nil {
		t.Fatalf("GET session: %v", err)
	}
	etag := resp.Header.Get("ETag")
	if etag == "" {
		t.Fatal("response has no ETag")
	}
	var payload sessionPayload
	decodeBody(t, resp, &payload)
	if payload.SessionID != room.SessionID {
		t.Fatalf("sessionId = %q, want %q", payload.SessionID, room.SessionID)
	}

	// Conditional re-fetch short-circuits to 304 with no body.
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/sessions/"+room.SessionID, nil)
	req.Header.Set("If-None-Match", etag)
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("conditional GET: %v", err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusNotModified {
		t.Fatalf("conditional status = %d, want 304", resp2.StatusCode)
	}
	body, _ := io.ReadAll(resp2.Body)
	if len(bytes.TrimSpace(body)) != 0 {
		t.Fatalf("304 carried a body: %q", body)
	}
}

func TestGetSessionNotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/sessions/no-such-room")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	if code := errorCode(t, resp); code != api.CodeNotFound {
		t.Fatalf("error code = %q, want %q", code, api.CodeNotFound)
	}
}

func TestAskFlow(t *testing.T) {
	srv, _ := newTestServer(t, llm.MockResponse{Content: "yes. Think about the sea."})
	room := createRoom(t, srv, "p1")

	resp := postJSON(t, srv.URL+"/api/sessions/"+room.SessionID+"/ask", `{"question":"Had he eaten turtle soup before?"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ask status = %d, want 200", resp.StatusCode)
	}
	var result askPayload
	decodeBody(t, resp, &result)
	if result.Answer != "yes. Think about the sea." {
		t.Fatalf("answer = %q", result.Answer)
	}
	if len(result.History) != 3 {
		t.Fatalf("history length = %d, want 3", len(result.History))
	}

	// A fresh GET sees the appended pair and a new ETag.
	getResp, err := http.Get(srv.URL + "/api/sessions/" + room.SessionID)
	if err != nil {
		t.Fatalf("GET after ask: %v", err)
	}
	if !strings.Contains(getResp.Header.Get("ETag"), "-2") {
		t.Fatalf("ETag = %q, want version 2", getResp.Header.Get("ETag"))
	}
	var payload sessionPayload
	decodeBody(t, getResp, &payload)
	if len(payload.History) != 3 {
		t.Fatalf("history length after ask = %d, want 3", len(payload.History))
	}
}

func TestAskValidation(t *testing.T) {
	srv, _ := newTestServer(t, llm.MockResponse{Content: "yes"})
	room := createRoom(t, srv, "p3")

	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"invalid json", room.SessionID, `{not json`, http.StatusBadRequest, api.CodeInvalidJSON},
		{"missing question field", room.SessionID, `{}`, http.StatusBadRequest, api.CodeInvalidQuestion},
		{"blank question", room.SessionID, `{"question":"   "}`, http.StatusBadRequest, api.CodeEmptyQuestion},
		{"unknown session", "no-such-room", `{"question":"why?"}`, http.StatusNotFound, api.CodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, srv.URL+"/api/sessions/"+tt.path+"/ask", tt.body)
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if code := errorCode(t, resp); code != tt.wantCode {
				t.Fatalf("error code = %q, want %q", code, tt.wantCode)
			}
		})
	}
}

func TestAskCompletionError(t *testing.T) {
	srv, _ := newTestServer(t, llm.MockResponse{Error: errors.New("provider down")})
	room := createRoom(t, srv, "p4")

	resp := postJSON(t, srv.URL+"/api/sessions/"+room.SessionID+"/ask", `{"question":"Was it a stranger?"}`)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
	var body map[string]string
	decodeBody(t, resp, &body)
	if body["error"] != api.CodeCompletionError {
		t.Fatalf("error code = %q, want %q", body["error"], api.CodeCompletionError)
	}
	if body["message"] == "" {
		t.Fatal("completion errors should carry a message")
	}

	// The failed turn must not have touched the transcript.
	getResp, _ := http.Get(srv.URL + "/api/sessions/" + room.SessionID)
	var payload sessionPayload
	decodeBody(t, getResp, &payload)
	if len(payload.History) != 1 {
		t.Fatalf("history length = %d, want 1 after failed ask", len(payload.History))
	}
}

func TestListSoupsHidesTruth(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/turtle-soups")
	if err != nil {
		t.Fatalf("GET soups: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var list []map[string]interface{}
	if err := json.Unmarshal(body, &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != soups.NewCatalog().Len() {
		t.Fatalf("list length = %d, want %d", len(list), soups.NewCatalog().Len())
	}
	for _, item := range list {
		if _, ok := item["truth"]; ok {
			t.Fatalf("catalog listing leaked a truth: %v", item)
		}
	}
}

func TestGetSoupTruthGate(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, _ := http.Get(srv.URL + "/api/turtle-soups/p1")
	var summary map[string]interface{}
	decodeBody(t, resp, &summary)
	if _, ok := summary["truth"]; ok {
		t.Fatal("truth returned without includeTruth")
	}

	resp, _ = http.Get(srv.URL + "/api/turtle-soups/p1?includeTruth=1")
	var full map[string]interface{}
	decodeBody(t, resp, &full)
	if truth, _ := full["truth"].(string); truth == "" {
		t.Fatal("includeTruth=1 should return the truth")
	}

	resp, _ = http.Get(srv.URL + "/api/turtle-soups/nope")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status for unknown soup = %d, want 404", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestMethodNotAllowedIsJSON(t *testing.T) {
	srv, _ := newTestServer(t)
	room := createRoom(t, srv, "p5")

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/sessions/"+room.SessionID, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", resp.StatusCode)
	}
	if code := errorCode(t, resp); code != api.CodeMethodNotAllowed {
		t.Fatalf("error code = %q, want %q", code, api.CodeMethodNotAllowed)
	}
}

func TestWatchSessionPushesOnChange(t *testing.T) {
	srv, gameHost := newTestServer(t, llm.MockResponse{Content: "no"})
	room := createRoom(t, srv, "p2")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, srv.URL+"/ws/sessions/"+room.SessionID, nil)
	if err != nil {
		t.Fatalf("websocket dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	readPayload := func() sessionPayload {
		t.Helper()
		_, data, err := conn.Read(ctx)
		if err != nil {
			t.Fatalf("websocket read: %v", err)
		}
		var payload sessionPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			t.Fatalf("decode push: %v", err)
		}
		return payload
	}

	initial := readPayload()
	if len(initial.History) != 1 {
		t.Fatalf("initial push history = %d turns, want 1", len(initial.History))
	}

	if _, _, err := gameHost.Ask(context.Background(), room.SessionID, "Was the lamp off?"); err != nil {
		t.Fatalf("Ask: %v", err)
	}

	updated := readPayload()
	if len(updated.History) != 3 {
		t.Fatalf("pushed history = %d turns, want 3", len(updated.History))
	}
}

func TestWatchUnknownSession(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/ws/sessions/no-such-room")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}
