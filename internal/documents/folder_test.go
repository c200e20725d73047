package documents

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateFolder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("creates scoped root and folder", func(t *testing.T) {
		rel, err := f.svc.CreateFolder(ctx, actor, "  reports  ")
		require.NoError(t, err)
		assert.Equal(t, "reports", rel)
		assert.DirExists(t, filepath.Join(f.scoped, "reports"))
	})

	t.Run("nested", func(t *testing.T) {
		rel, err := f.svc.CreateFolder(ctx, actor, "a/b/c")
		require.NoError(t, err)
		assert.Equal(t, "a/b/c", rel)
	})

	t.Run("collision", func(t *testing.T) {
		_, err := f.svc.CreateFolder(ctx, actor, "reports")
		assert.ErrorIs(t, err, ErrCollision)
		assert.Contains(t, err.Error(), MsgFolderExists)
	})

	t.Run("collision with a file", func(t *testing.T) {
		f.writeDoc(t, "notes.json", "N", "n")
		_, err := f.svc.CreateFolder(ctx, actor, "notes.json")
		assert.ErrorIs(t, err, ErrCollision)
	})

	t.Run("name required", func(t *testing.T) {
		for _, name := range []string{"", "   ", ".", "a/.."} {
			_, err := f.svc.CreateFolder(ctx, actor, name)
			assert.ErrorIs(t, err, ErrInvalidInput, "name %q", name)
			assert.Contains(t, err.Error(), MsgFolderNameRequired)
		}
	})

	t.Run("containment", func(t *testing.T) {
		_, err := f.svc.CreateFolder(ctx, actor, "../escaped")
		assert.ErrorIs(t, err, ErrPathTraversal)
		assert.NoDirExists(t, filepath.Join(f.root, "escaped"))

		_, err = f.svc.CreateFolder(ctx, actor, "/etc/evil")
		assert.ErrorIs(t, err, ErrPathTraversal)
	})

	t.Run("actor without id uses documents root", func(t *testing.T) {
		rel, err := f.svc.CreateFolder(ctx, "", "shared")
		require.NoError(t, err)
		assert.Equal(t, "shared", rel)
		_, statErr := os.Stat(filepath.Join(f.root, "shared"))
		assert.NoError(t, statErr)
	})
}
