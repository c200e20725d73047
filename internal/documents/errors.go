package documents

import (
	"errors"

	"github.com/fyrsmithlabs/docledger/internal/ledger"
	"github.com/fyrsmithlabs/docledger/internal/resolver"
	"github.com/fyrsmithlabs/docledger/internal/sanitize"
	"github.com/fyrsmithlabs/docledger/internal/vectorindex"
)

var (
	// ErrInvalidInput indicates a malformed call.
	ErrInvalidInput = errors.New("invalid input")

	// ErrCollision indicates the target already exists.
	ErrCollision = errors.New("already exists")

	// ErrNotFound indicates no ledger row or workspace matched.
	ErrNotFound = errors.New("not found")

	// ErrRelocationFailed indicates at least one file could not be moved.
	ErrRelocationFailed = errors.New("relocation failed")
)

// Errors raised by the collaborating packages, re-exported so callers can
// match everything through this package.
var (
	ErrPathTraversal = sanitize.ErrPathTraversal
	ErrUnreadable    = resolver.ErrUnreadable
	ErrVectorization = vectorindex.ErrVectorization
	ErrPersistence   = ledger.ErrPersistence
	ErrMissingID     = ledger.ErrMissingID
)
