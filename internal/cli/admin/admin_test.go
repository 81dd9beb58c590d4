package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cloo-solutions/signmaker/internal/config"
	"github.com/cloo-solutions/signmaker/internal/repository"
)

const fakeProviderStream = "data: {\"choices\":[{\"delta\":{\"content\":\"Use 5in depth.\"}}]}\n\n" +
	"data: {\"choices\":[{\"delta\":{\"content\":\" <!-- memory:MEM-ref -->\"}}]}\n\n" +
	"data: [DONE]\n\n"

// useSQLite points the daemon configuration at a fresh SQLite file.
func useSQLite(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "signmaker.db")
	t.Setenv("SIGNMAKER_STORE", config.StoreSQLite)
	t.Setenv("SIGNMAKER_SQLITE_PATH", path)
	t.Setenv("SIGNMAKER_DEBUG", "false")
	return path
}

func newRoot() *cobra.Command {
	root := &cobra.Command{Use: "signmakerd", SilenceUsage: true, SilenceErrors: true}
	root.AddCommand(MigrateCmd(), OrgCmd(), MemberCmd(), TokenCmd(), MemoryCmd(), KnowledgeCmd())
	return root
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRoot()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func runJSON(t *testing.T, args ...string) map[string]any {
	t.Helper()
	out, err := run(t, append(args, "--output", "json")...)
	require.NoError(t, err)
	var data map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &data), out)
	return data
}

func TestMigrateCmd_SQLite(t *testing.T) {
	useSQLite(t)

	_, err := run(t, "migrate")
	require.NoError(t, err)
	_, err = run(t, "migrate")
	require.NoError(t, err)
}

func TestOrgCommands(t *testing.T) {
	useSQLite(t)

	out, err := run(t, "org", "list")
	require.NoError(t, err)
	assert.Equal(t, "No organizations found\n", out)

	created := runJSON(t, "org", "create", "Acme Signs")
	assert.Equal(t, "Acme Signs", created["name"])
	assert.NotEmpty(t, created["id"])

	out, err = run(t, "org", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Acme Signs")

	_, err = run(t, "org", "create", "Acme Signs")
	assert.Error(t, err)
}

func TestMemberAndKnowledgeCommands(t *testing.T) {
	useSQLite(t)
	runJSON(t, "org", "create", "Acme Signs")

	member := runJSON(t, "member", "add", "--org", "Acme Signs", "--user", "user-1")
	assert.Equal(t, "user-1", member["user_id"])

	knowledge := runJSON(t, "knowledge", "add", "--org", "Acme Signs", "--content", "Use 3M film", "--tags", "vinyl,film")
	assert.Equal(t, "company", knowledge["scope"])
	assert.Equal(t, "approved", knowledge["status"])
	assert.Equal(t, []any{"vinyl", "film"}, knowledge["tags"])

	_, err := run(t, "knowledge", "add", "--org", "Nope", "--content", "x")
	assert.Error(t, err)

	out, err := run(t, "member", "remove", "user-1")
	require.NoError(t, err)
	assert.Contains(t, out, "removed")
	_, err = run(t, "member", "remove", "user-1")
	assert.Error(t, err)
}

func TestMemoryAddCmd(t *testing.T) {
	useSQLite(t)

	out, err := run(t, "memory", "add", "--user", "user-1", "--content", "Always use 5in depth", "--confidence", "STRICT")
	require.NoError(t, err)
	assert.Contains(t, out, "Saved personal memory [MEM-")
	assert.Contains(t, out, "Confidence: strict")

	_, err = run(t, "memory", "add", "--user", "user-1", "--content", "x", "--confidence", "maybe")
	assert.Error(t, err)

	_, err = run(t, "memory", "add", "--user", "user-1")
	assert.Error(t, err)
}

func TestTokenCommands(t *testing.T) {
	useSQLite(t)

	created := runJSON(t, "token", "create", "--user", "user-1", "--name", "laptop")
	token, _ := created["token"].(string)
	assert.True(t, strings.HasPrefix(token, "smk_"))
	id, _ := created["id"].(string)
	require.NotEmpty(t, id)

	listed := runJSON(t, "token", "list", "--user", "user-1")
	items, _ := listed["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "active", items[0].(map[string]any)["status"])
	assert.NotContains(t, listed, "token")

	out, err := run(t, "token", "revoke", id)
	require.NoError(t, err)
	assert.Contains(t, out, "revoked successfully")

	out, err = run(t, "token", "list", "--user", "user-1")
	require.NoError(t, err)
	assert.Contains(t, out, "(revoked,")
}

func newTestServer(t *testing.T, providerURL string) (*Server, *repository.Store) {
	t.Helper()
	path := useSQLite(t)
	t.Setenv("SIGNMAKER_PROVIDER_API_KEY", "test-key")
	t.Setenv("SIGNMAKER_PROVIDER_BASE_URL", providerURL)
	t.Setenv("SIGNMAKER_RATE_LIMIT_RPS", "0")

	cfg, err := config.Load()
	require.NoError(t, err)

	store, err := repository.OpenSQLite(context.Background(), path, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(store.Close)

	srv, err := NewServer(cfg, store, zap.NewNop())
	require.NoError(t, err)
	return srv, store
}

func TestNewServer_StreamsWithMemories(t *testing.T) {
	var systemPrompt string
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if len(req.Messages) > 0 {
			systemPrompt = req.Messages[0].Content
		}
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, fakeProviderStream)
	}))
	defer provider.Close()

	srv, _ := newTestServer(t, provider.URL)

	memory := runJSON(t, "memory", "add", "--user", "user-1", "--content", "Always use 5in depth", "--confidence", "strict")
	token := runJSON(t, "token", "create", "--user", "user-1", "--name", "test")["token"].(string)

	api := httptest.NewServer(srv.Handler)
	defer api.Close()

	req, _ := http.NewRequest(http.MethodPost, api.URL+"/chat", strings.NewReader(`{"message":"What depth for channel letters?","conversationHistory":[]}`))
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	assert.True(t, strings.HasPrefix(string(body), `data: {"type":"memory_context","memories":[{"id":"`+memory["id"].(string)+`"`), string(body))
	assert.True(t, strings.HasSuffix(string(body), fakeProviderStream))
	assert.Contains(t, systemPrompt, "[MEM-"+memory["id"].(string)+"] [STRICT] (preference) Always use 5in depth")

	metricsResp, err := http.Get(api.URL + "/metrics")
	require.NoError(t, err)
	defer metricsResp.Body.Close()
	scrape, _ := io.ReadAll(metricsResp.Body)
	assert.Contains(t, string(scrape), `signmaker_chat_requests_total{outcome="completed"} 1`)
}

func TestNewServer_Health(t *testing.T) {
	srv, _ := newTestServer(t, "http://127.0.0.1:1")

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNewServer_RequiresProviderKey(t *testing.T) {
	path := useSQLite(t)
	store, err := repository.OpenSQLite(context.Background(), path, zap.NewNop())
	require.NoError(t, err)
	defer store.Close()

	_, err = NewServer(&config.Config{Store: config.StoreSQLite, SQLitePath: path}, store, zap.NewNop())
	assert.Error(t, err)
}

func TestNewServer_SweeperLifecycle(t *testing.T) {
	srv, _ := newTestServer(t, "http://127.0.0.1:1")
	require.NotNil(t, srv.sweeper)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv.StartBackground(ctx)
	srv.StopBackground()
}
