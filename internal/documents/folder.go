package documents

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fyrsmithlabs/docledger/internal/sanitize"
	"go.uber.org/zap"
)

// Folder creation messages.
const (
	MsgFolderNameRequired = "Folder name is required"
	MsgFolderExists       = "Folder by that name already exists"
)

// CreateFolder creates name under the actor's scoped root and returns its
// path relative to that root.
func (s *Service) CreateFolder(ctx context.Context, actorID, name string) (string, error) {
	root, err := sanitize.ScopedRoot(s.root, actorID)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", fmt.Errorf("creating scoped root: %w", err)
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: %s", ErrInvalidInput, MsgFolderNameRequired)
	}
	path, err := sanitize.Join(root, name)
	if err != nil {
		if errors.Is(err, sanitize.ErrEmptyPath) {
			return "", fmt.Errorf("%w: %s", ErrInvalidInput, MsgFolderNameRequired)
		}
		return "", err
	}

	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("%w: %s", ErrCollision, MsgFolderExists)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("checking folder: %w", err)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", fmt.Errorf("creating folder: %w", err)
	}

	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", fmt.Errorf("relativizing folder: %w", err)
	}
	rel = filepath.ToSlash(rel)
	s.log(ctx).Info("folder created", zap.String("path", rel))
	return rel, nil
}
