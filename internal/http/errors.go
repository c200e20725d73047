package http

import (
	"errors"
	"net/http"

	"github.com/fyrsmithlabs/docledger/internal/documents"
	"github.com/fyrsmithlabs/docledger/internal/ledger"
	"github.com/fyrsmithlabs/docledger/internal/sanitize"
	"github.com/labstack/echo/v4"
)

// statusFor maps an orchestrator error to an HTTP status. Order matters:
// a failed batch that also carries a containment violation is a 403.
func statusFor(err error) int {
	switch {
	case errors.Is(err, documents.ErrInvalidInput),
		errors.Is(err, sanitize.ErrInvalidActorID),
		errors.Is(err, sanitize.ErrEmptyPath),
		errors.Is(err, ledger.ErrMissingID):
		return http.StatusBadRequest
	case errors.Is(err, documents.ErrPathTraversal):
		return http.StatusForbidden
	case errors.Is(err, documents.ErrCollision),
		errors.Is(err, ledger.ErrWorkspaceExists):
		return http.StatusConflict
	case errors.Is(err, documents.ErrNotFound),
		errors.Is(err, ledger.ErrWorkspaceNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// httpError keeps err as the internal cause so metrics can label it.
func httpError(err error) *echo.HTTPError {
	he := echo.NewHTTPError(statusFor(err), err.Error())
	he.Internal = err
	return he
}
