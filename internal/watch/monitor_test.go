package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/fyrsmithlabs/docledger/internal/ignore"
	"github.com/fyrsmithlabs/docledger/internal/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMonitor_Candidates(t *testing.T) {
	m := &Monitor{root: "/docs"}
	assert.Equal(t, []string{"user42/custom/a.json", "custom/a.json"}, m.candidates("/docs/user42/custom/a.json"))
	assert.Equal(t, []string{"a.json"}, m.candidates("/docs/a.json"))
	assert.Nil(t, m.candidates("/elsewhere/a.json"))
	assert.Nil(t, m.candidates("/docs"))
}

func TestMonitor_CandidatesShareActorRelativePath(t *testing.T) {
	m := &Monitor{root: "/docs"}
	a := m.candidates("/docs/userA/custom/a.json")
	b := m.candidates("/docs/userB/custom/a.json")
	assert.Equal(t, a[1], b[1], "rows carry no actor, so both writes match the same docpath")
	assert.NotEqual(t, a[0], b[0])
}

func TestMonitor_BumpsWatchedRows(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "user42", "custom-documents")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	file := filepath.Join(dir, "a.json")
	require.NoError(t, os.WriteFile(file, []byte(`{}`), 0o600))

	store, err := ledger.OpenSQLite(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	l := ledger.New(store, zap.NewNop())
	t.Cleanup(func() { l.Close() })

	ctx := context.Background()
	ws, err := l.CreateWorkspace(ctx, "engineering", "")
	require.NoError(t, err)
	watchedDoc, err := l.Create(ctx, ledger.Document{DocID: "w", DocPath: "custom-documents/a.json", WorkspaceID: ws.ID})
	require.NoError(t, err)
	_, err = l.Update(ctx, watchedDoc.ID, ledger.Attrs{"watched": true})
	require.NoError(t, err)
	plain, err := l.Create(ctx, ledger.Document{DocID: "p", DocPath: "custom-documents/a.json", WorkspaceID: ws.ID})
	require.NoError(t, err)

	m, err := NewMonitor(root, l, 20*time.Millisecond, nil)
	require.NoError(t, err)
	bumped := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return bumped }

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- m.Run(runCtx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	require.Eventually(t, func() bool {
		_ = os.WriteFile(file, []byte(`{"title":"changed"}`), 0o600)
		got := l.Get(ctx, ledger.Filter{DocID: "w"})
		return got != nil && got.LastUpdatedAt.Equal(bumped)
	}, 5*time.Second, 50*time.Millisecond)

	got := l.Get(ctx, ledger.Filter{DocID: "p"})
	require.NotNil(t, got)
	assert.True(t, got.LastUpdatedAt.Equal(plain.LastUpdatedAt), "unwatched rows are untouched")
}

func TestMonitor_WatchesNewDirectories(t *testing.T) {
	root := t.TempDir()
	m, err := NewMonitor(root, nopLedger{}, 10*time.Millisecond, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	sub := filepath.Join(root, "user42", "new")
	require.Eventually(t, func() bool {
		_ = os.MkdirAll(sub, 0o755)
		for _, w := range m.watcher.WatchList() {
			if w == sub {
				return true
			}
		}
		return false
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

type nopLedger struct{}

func (nopLedger) UpdateAll(context.Context, ledger.Filter, ledger.Attrs) int64 { return 0 }

func TestMonitor_SkipsIgnoredPaths(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git", "objects"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "user42"), 0o755))

	m, err := NewMonitor(root, nopLedger{}, 0, nil, WithIgnore(ignore.New(ignore.DefaultPatterns)))
	require.NoError(t, err)
	t.Cleanup(func() { m.watcher.Close() })

	require.NoError(t, m.addTree(root))
	watched := m.watcher.WatchList()
	assert.Contains(t, watched, filepath.Join(root, "user42"))
	assert.NotContains(t, watched, filepath.Join(root, ".git"))
	assert.NotContains(t, watched, filepath.Join(root, ".git", "objects"))

	m.handle(fsnotify.Event{Name: filepath.Join(root, "user42", ".a.json.swp"), Op: fsnotify.Write})
	m.handle(fsnotify.Event{Name: filepath.Join(root, "user42", "a.json"), Op: fsnotify.Write})
	assert.Len(t, m.pending, 1)
	assert.Contains(t, m.pending, filepath.Join(root, "user42", "a.json"))
}
