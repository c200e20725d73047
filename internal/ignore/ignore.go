// Package ignore matches paths under the documents root against
// gitignore-style patterns.
//
// Supported syntax: blank lines and # comments are skipped, a trailing "/"
// restricts a pattern to directories, and a pattern containing "/" is
// anchored to the root. Negation ("!") is not supported and such lines are
// dropped.
package ignore

import (
	"bufio"
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// DefaultPatterns are used when the root holds no ignore file.
var DefaultPatterns = []string{".git/", "*.swp", "*.tmp", "*~", ".DS_Store"}

type pattern struct {
	glob     string
	dirOnly  bool
	anchored bool
}

// Matcher reports whether a root-relative path is ignored.
type Matcher struct {
	patterns []pattern
}

// New compiles lines into a Matcher. Invalid globs are dropped.
func New(lines []string) *Matcher {
	m := &Matcher{}
	seen := make(map[pattern]bool)
	for _, line := range lines {
		p, ok := parseLine(line)
		if !ok || seen[p] {
			continue
		}
		seen[p] = true
		m.patterns = append(m.patterns, p)
	}
	return m
}

// Load reads every file in names that exists under root and compiles their
// combined patterns. When none exists, fallback is compiled instead.
func Load(root string, names []string, fallback []string) (*Matcher, error) {
	var lines []string
	found := false
	for _, name := range names {
		fileLines, err := readLines(filepath.Join(root, name))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, err
		}
		lines = append(lines, fileLines...)
		found = true
	}
	if !found {
		lines = fallback
	}
	return New(lines), nil
}

// Len returns the number of compiled patterns.
func (m *Matcher) Len() int {
	if m == nil {
		return 0
	}
	return len(m.patterns)
}

// Match reports whether rel, a slash or OS separated path relative to the
// root, is ignored. A path is ignored when it or any parent directory
// matches.
func (m *Matcher) Match(rel string, isDir bool) bool {
	if m == nil {
		return false
	}
	rel = strings.Trim(filepath.ToSlash(rel), "/")
	if rel == "" || rel == "." {
		return false
	}
	segs := strings.Split(rel, "/")
	for _, p := range m.patterns {
		if p.matches(segs, isDir) {
			return true
		}
	}
	return false
}

func (p pattern) matches(segs []string, isDir bool) bool {
	for i := range segs {
		// Every segment but the last names a directory.
		dir := i < len(segs)-1 || isDir
		if p.dirOnly && !dir {
			continue
		}
		subject := segs[i]
		if p.anchored {
			subject = strings.Join(segs[:i+1], "/")
		}
		if ok, _ := path.Match(p.glob, subject); ok {
			return true
		}
	}
	return false
}

func readLines(name string) ([]string, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}

func parseLine(line string) (pattern, bool) {
	line = strings.TrimRight(line, " \t")
	if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
		return pattern{}, false
	}

	var p pattern
	if strings.HasSuffix(line, "/") {
		p.dirOnly = true
		line = strings.TrimRight(line, "/")
	}
	p.anchored = strings.Contains(line, "/")
	p.glob = strings.TrimPrefix(line, "/")
	if p.glob == "" {
		return pattern{}, false
	}
	if _, err := path.Match(p.glob, ""); err != nil {
		return pattern{}, false
	}
	return p, true
}
