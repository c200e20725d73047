package ignore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		want pattern
		ok   bool
	}{
		{"empty line", "", pattern{}, false},
		{"whitespace only", "   ", pattern{}, false},
		{"comment", "# notes", pattern{}, false},
		{"negation dropped", "!keep.json", pattern{}, false},
		{"file glob", "*.swp", pattern{glob: "*.swp"}, true},
		{"directory", ".git/", pattern{glob: ".git", dirOnly: true}, true},
		{"anchored", "/drafts", pattern{glob: "drafts", anchored: true}, true},
		{"nested", "user42/tmp/", pattern{glob: "user42/tmp", dirOnly: true, anchored: true}, true},
		{"bad glob", "[", pattern{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseLine(tt.line)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMatcher_Match(t *testing.T) {
	m := New([]string{"*.swp", ".git/", "/drafts", "user42/tmp/", "*.swp"})
	assert.Equal(t, 4, m.Len())

	tests := []struct {
		rel   string
		isDir bool
		want  bool
	}{
		{"user42/custom-documents/a.json", false, false},
		{"user42/custom-documents/.a.json.swp", false, true},
		{".git", true, true},
		{".git", false, false},
		{"user42/.git/HEAD", false, true},
		{"drafts/a.json", false, true},
		{"user42/drafts/a.json", false, false},
		{"user42/tmp/a.json", false, true},
		{"user7/tmp/a.json", false, false},
		{"", true, false},
	}
	for _, tt := range tests {
		t.Run(tt.rel, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Match(tt.rel, tt.isDir))
		})
	}
}

func TestMatcher_Nil(t *testing.T) {
	var m *Matcher
	assert.False(t, m.Match("a.json", false))
	assert.Zero(t, m.Len())
}

func TestLoad(t *testing.T) {
	t.Run("combines files", func(t *testing.T) {
		root := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(root, ".docledgerignore"), []byte("# local\n*.bak\n\n"), 0o600))
		require.NoError(t, os.WriteFile(filepath.Join(root, ".gitignore"), []byte("*.bak\nbuild/\n"), 0o600))

		m, err := Load(root, []string{".docledgerignore", ".gitignore"}, DefaultPatterns)
		require.NoError(t, err)
		assert.Equal(t, 2, m.Len())
		assert.True(t, m.Match("a.bak", false))
		assert.True(t, m.Match("build/out.json", false))
		assert.False(t, m.Match("a.swp", false))
	})

	t.Run("falls back without files", func(t *testing.T) {
		m, err := Load(t.TempDir(), []string{".docledgerignore"}, DefaultPatterns)
		require.NoError(t, err)
		assert.Equal(t, len(DefaultPatterns), m.Len())
		assert.True(t, m.Match("notes/.a.swp", false))
	})

	t.Run("unreadable file", func(t *testing.T) {
		root := t.TempDir()
		require.NoError(t, os.Mkdir(filepath.Join(root, ".docledgerignore"), 0o755))
		_, err := Load(root, []string{".docledgerignore"}, nil)
		assert.Error(t, err)
	})
}
