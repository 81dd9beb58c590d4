//go:build e2e

package e2e

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/cloo-solutions/signmaker/internal/chatclient"
	"github.com/cloo-solutions/signmaker/internal/cli/admin"
	"github.com/cloo-solutions/signmaker/internal/config"
	"github.com/cloo-solutions/signmaker/internal/domain"
	"github.com/cloo-solutions/signmaker/internal/repository"
	"github.com/cloo-solutions/signmaker/internal/service"
	"github.com/cloo-solutions/signmaker/internal/testutil"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// FakeProvider is an OpenAI-compatible streaming endpoint returning a
// scripted list of content deltas.
type FakeProvider struct {
	mu       sync.Mutex
	deltas   []string
	status   int
	errBody  string
	requests []ProviderRequest
	server   *httptest.Server
}

// ProviderRequest is the part of a completion request the tests inspect.
type ProviderRequest struct {
	Model    string `json:"model"`
	Stream   bool   `json:"stream"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func newFakeProvider(t *testing.T) *FakeProvider {
	p := &FakeProvider{status: http.StatusOK}
	p.server = httptest.NewServer(http.HandlerFunc(p.serve))
	t.Cleanup(p.server.Close)
	return p
}

// Reply sets the deltas streamed by the next requests.
func (p *FakeProvider) Reply(deltas ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deltas, p.status, p.errBody = deltas, http.StatusOK, ""
}

// Fail makes the next requests fail with status and body.
func (p *FakeProvider) Fail(status int, body string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status, p.errBody = status, body
}

// Requests returns the completion requests received so far.
func (p *FakeProvider) Requests() []ProviderRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]ProviderRequest(nil), p.requests...)
}

func (p *FakeProvider) serve(w http.ResponseWriter, r *http.Request) {
	var req ProviderRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	p.mu.Lock()
	p.requests = append(p.requests, req)
	status, errBody, deltas := p.status, p.errBody, p.deltas
	p.mu.Unlock()

	if status != http.StatusOK {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, errBody)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	flusher, _ := w.(http.Flusher)
	for _, d := range deltas {
		b, _ := json.Marshal(d)
		_, _ = io.WriteString(w, `data: {"choices":[{"delta":{"content":`+string(b)+`}}]}`+"\n\n")
		if flusher != nil {
			flusher.Flush()
		}
	}
	_, _ = io.WriteString(w, "data: [DONE]\n\n")
}

// E2ETestEnv holds a Postgres container, a fake provider and the chat
// server wired the way signmakerd serve wires it.
type E2ETestEnv struct {
	T         *testing.T
	Ctx       context.Context
	PostgresC *testutil.PostgresContainer
	Pool      *pgxpool.Pool
	Store     *repository.Store
	Provider  *FakeProvider
	Server    *httptest.Server
	Admin     *service.AdminService
	Identity  *service.IdentityService
}

// SetupE2EEnv starts all dependencies; they are released by t.Cleanup.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pgC)
	store := repository.NewPostgresStore(pool)
	t.Cleanup(store.Close)

	provider := newFakeProvider(t)

	cfg := &config.Config{
		Store:           config.StorePostgres,
		DatabaseURL:     pgC.ConnectionString(),
		ProviderAPIKey:  "e2e-key",
		ProviderBaseURL: provider.server.URL,
		CORSOrigin:      "*",
	}
	app, err := admin.NewServer(cfg, store, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to wire server: %v", err)
	}
	srv := httptest.NewServer(app.Handler)
	t.Cleanup(srv.Close)

	uuids := &service.DefaultUUIDGenerator{}
	return &E2ETestEnv{
		T:         t,
		Ctx:       ctx,
		PostgresC: pgC,
		Pool:      pool,
		Store:     store,
		Provider:  provider,
		Server:    srv,
		Admin:     service.NewAdminService(store.Orgs, store.Memberships, store.Memories, uuids),
		Identity:  service.NewIdentityService(store.Tokens, uuids),
	}
}

// Reset empties all tables between scenarios.
func (e *E2ETestEnv) Reset() {
	if err := testutil.TruncateAll(e.Ctx, e.Pool); err != nil {
		e.T.Fatalf("failed to truncate: %v", err)
	}
}

// IssueToken creates an access token for userID.
func (e *E2ETestEnv) IssueToken(userID string) string {
	token, _, err := e.Identity.IssueToken(e.Ctx, userID, "e2e", 0)
	if err != nil {
		e.T.Fatalf("failed to issue token: %v", err)
	}
	return token
}

// AddMemory stores a personal memory.
func (e *E2ETestEnv) AddMemory(userID, content string, confidence domain.Confidence) *domain.Memory {
	m, err := e.Admin.AddPersonalMemory(e.Ctx, service.PersonalMemoryInput{
		UserID:     userID,
		Content:    content,
		Type:       domain.MemoryTypePreference,
		Confidence: confidence,
	})
	if err != nil {
		e.T.Fatalf("failed to add memory: %v", err)
	}
	return m
}

// Client returns a chat client for the server, optionally with a token.
func (e *E2ETestEnv) Client(token string) *chatclient.Client {
	return chatclient.New(e.Server.URL+"/chat", token, e.Server.Client())
}

// Post sends a raw chat request and returns status and body.
func (e *E2ETestEnv) Post(body, token string) (int, string) {
	req, err := http.NewRequestWithContext(e.Ctx, http.MethodPost, e.Server.URL+"/chat", strings.NewReader(body))
	if err != nil {
		e.T.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.Server.Client().Do(req)
	if err != nil {
		e.T.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(data)
}
