package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/fyrsmithlabs/docledger/internal/documents"
	"github.com/fyrsmithlabs/docledger/internal/ledger"
	"github.com/fyrsmithlabs/docledger/internal/resolver"
	"github.com/fyrsmithlabs/docledger/internal/vectorindex"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const actor = "user42"

type memIndex struct {
	mu      sync.Mutex
	entries map[string]vectorindex.Entry
}

func (m *memIndex) Add(_ context.Context, _ string, entry vectorindex.Entry, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[entry.DocID] = entry
	return nil
}

func (m *memIndex) Remove(_ context.Context, _, docID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, docID)
	return nil
}

type testEnv struct {
	server *Server
	root   string
	ledger *ledger.Ledger
	index  *memIndex
}

func setupTestServer(t *testing.T) *testEnv {
	t.Helper()
	return setupTestServerWithConfig(t, nil)
}

func setupTestServerWithConfig(t *testing.T, cfg *Config) *testEnv {
	t.Helper()
	root := t.TempDir()
	store, err := ledger.OpenSQLite(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	l := ledger.New(store, zap.NewNop())
	t.Cleanup(func() { l.Close() })

	index := &memIndex{entries: map[string]vectorindex.Entry{}}
	svc, err := documents.NewService(documents.Deps{
		DocumentsRoot: root,
		Ledger:        l,
		Resolver:      resolver.NewFileResolver(root, nil),
		Index:         index,
	}, zap.NewNop())
	require.NoError(t, err)

	server, err := NewServer(svc, l, zap.NewNop(), cfg)
	require.NoError(t, err)
	return &testEnv{server: server, root: root, ledger: l, index: index}
}

// writeDoc stores a parsed document in the actor's tree.
func (e *testEnv) writeDoc(t *testing.T, rel, title, body string) {
	t.Helper()
	path := filepath.Join(e.root, actor, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	raw, err := json.Marshal(map[string]any{
		"title":       title,
		"pageContent": body,
		"chunkSource": "localfile://" + rel,
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw, 0o600))
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(HeaderActorID, actor)
	rec := httptest.NewRecorder()
	e.server.echo.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestNewServer(t *testing.T) {
	env := setupTestServer(t)

	t.Run("uses defaults when config is nil", func(t *testing.T) {
		assert.Equal(t, "localhost", env.server.config.Host)
		assert.Equal(t, 9090, env.server.config.Port)
	})

	t.Run("returns error when logger is nil", func(t *testing.T) {
		_, err := NewServer(env.server.docs, env.ledger, nil, nil)
		assert.ErrorContains(t, err, "logger is required")
	})

	t.Run("returns error when documents service is nil", func(t *testing.T) {
		_, err := NewServer(nil, env.ledger, zap.NewNop(), nil)
		assert.ErrorContains(t, err, "documents service cannot be nil")
	})
}

func TestHandleHealth(t *testing.T) {
	env := setupTestServer(t)
	rec := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[HealthResponse](t, rec).Status)
}

func TestMetricsEndpoint(t *testing.T) {
	env := setupTestServer(t)
	rec := env.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "docledger_documents_embedded_total")
}

func TestCreateWorkspace(t *testing.T) {
	env := setupTestServer(t)

	rec := env.do(t, http.MethodPost, "/api/v1/workspaces", CreateWorkspaceRequest{Slug: "eng", Name: "Engineering"})
	require.Equal(t, http.StatusCreated, rec.Code)
	ws := decode[WorkspaceResponse](t, rec).Workspace
	require.NotNil(t, ws)
	assert.Equal(t, "eng", ws.Slug)
	assert.NotZero(t, ws.ID)

	rec = env.do(t, http.MethodPost, "/api/v1/workspaces", CreateWorkspaceRequest{Slug: "eng"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/workspaces", CreateWorkspaceRequest{Name: "No slug"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDocumentLifecycle(t *testing.T) {
	env := setupTestServer(t)
	_, err := env.ledger.CreateWorkspace(context.Background(), "eng", "Engineering")
	require.NoError(t, err)
	env.writeDoc(t, "custom-documents/a.json", "Runbook", "restart the service")

	rec := env.do(t, http.MethodPost, "/api/v1/workspaces/eng/documents", UpdateEmbeddingsRequest{
		Adds: []string{"custom-documents/a.json", "custom-documents/missing.json"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	added := decode[UpdateEmbeddingsResponse](t, rec)
	assert.Equal(t, []string{"custom-documents/a.json"}, added.Result.Embedded)
	assert.Equal(t, "eng", added.Workspace.Slug)

	rec = env.do(t, http.MethodGet, "/api/v1/workspaces/eng/documents", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	docs := decode[DocumentsResponse](t, rec).Documents
	require.Len(t, docs, 1)
	doc := docs[0]
	assert.Equal(t, "custom-documents/a.json", doc.DocPath)

	t.Run("allow-listed update", func(t *testing.T) {
		rec := env.do(t, http.MethodPatch, "/api/v1/documents/"+strconv.FormatInt(doc.ID, 10), map[string]any{
			"pinned":  true,
			"docpath": "elsewhere.json",
		})
		require.Equal(t, http.StatusOK, rec.Code)
		res := decode[ledger.UpdateResult](t, rec)
		require.NotNil(t, res.Document)
		assert.True(t, res.Document.Pinned)
		assert.Equal(t, "custom-documents/a.json", res.Document.DocPath)

		rec = env.do(t, http.MethodPatch, "/api/v1/documents/"+strconv.FormatInt(doc.ID, 10), map[string]any{"docId": "x"})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, ledger.MsgNoValidFields, decode[ledger.UpdateResult](t, rec).Message)

		rec = env.do(t, http.MethodPatch, "/api/v1/documents/abc", map[string]any{"pinned": true})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("content", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/v1/documents/"+doc.DocID+"/content", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "restart the service", decode[ContentResponse](t, rec).Content)

		rec = env.do(t, http.MethodGet, "/api/v1/documents/unknown/content", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("embedded file cannot move", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/v1/files/move", MoveRequest{Files: []documents.Move{
			{From: "custom-documents/a.json", To: "archive/a.json"},
		}})
		require.Equal(t, http.StatusOK, rec.Code)
		res := decode[documents.MoveResult](t, rec)
		assert.Len(t, res.Skipped, 1)
		assert.FileExists(t, filepath.Join(env.root, actor, "custom-documents", "a.json"))
	})

	rec = env.do(t, http.MethodDelete, "/api/v1/workspaces/eng/documents", RemoveDocumentsRequest{
		Paths: []string{"custom-documents/a.json"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[SuccessResponse](t, rec).Success)

	rec = env.do(t, http.MethodGet, "/api/v1/workspaces/eng/documents", nil)
	assert.Empty(t, decode[DocumentsResponse](t, rec).Documents)
	assert.Empty(t, env.index.entries)
}

func TestUnknownWorkspace(t *testing.T) {
	env := setupTestServer(t)
	for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodDelete} {
		rec := env.do(t, method, "/api/v1/workspaces/nope/documents", map[string]any{})
		assert.Equal(t, http.StatusNotFound, rec.Code, method)
	}
}

func TestUpload(t *testing.T) {
	env := setupTestServer(t)
	for _, slug := range []string{"eng", "ops"} {
		_, err := env.ledger.CreateWorkspace(context.Background(), slug, "")
		require.NoError(t, err)
	}
	env.writeDoc(t, "custom-documents/a.json", "A", "alpha")

	rec := env.do(t, http.MethodPost, "/api/v1/documents/upload", UploadRequest{
		Slugs:    []string{"eng", "ops"},
		Location: "custom-documents/a.json",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[documents.UploadResult](t, rec)
	assert.Len(t, res.Workspaces, 2)
	assert.Len(t, env.index.entries, 2)

	rec = env.do(t, http.MethodPost, "/api/v1/documents/upload", UploadRequest{Slugs: []string{"eng"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFolderAndMove(t *testing.T) {
	env := setupTestServer(t)

	rec := env.do(t, http.MethodPost, "/api/v1/files/folder", CreateFolderRequest{Name: "archive"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "archive", decode[CreateFolderResponse](t, rec).Path)

	rec = env.do(t, http.MethodPost, "/api/v1/files/folder", CreateFolderRequest{Name: "archive"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/files/folder", CreateFolderRequest{Name: "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	env.writeDoc(t, "custom-documents/b.json", "B", "beta")
	rec = env.do(t, http.MethodPost, "/api/v1/files/move", MoveRequest{Files: []documents.Move{
		{From: "custom-documents/b.json", To: "archive/b.json"},
	}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[documents.MoveResult](t, rec).Success)
	assert.FileExists(t, filepath.Join(env.root, actor, "archive", "b.json"))

	rec = env.do(t, http.MethodPost, "/api/v1/files/move", MoveRequest{Files: []documents.Move{
		{From: "archive/b.json", To: "../../escape.json"},
	}})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	res := decode[documents.MoveResult](t, rec)
	assert.False(t, res.Success)
	assert.Len(t, res.Failed, 1)
	assert.FileExists(t, filepath.Join(env.root, actor, "archive", "b.json"))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{documents.ErrInvalidInput, http.StatusBadRequest},
		{ledger.ErrMissingID, http.StatusBadRequest},
		{documents.ErrPathTraversal, http.StatusForbidden},
		{documents.ErrCollision, http.StatusConflict},
		{ledger.ErrWorkspaceExists, http.StatusConflict},
		{documents.ErrNotFound, http.StatusNotFound},
		{documents.ErrRelocationFailed, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
