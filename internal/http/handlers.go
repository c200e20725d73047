package http

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/fyrsmithlabs/docledger/internal/ledger"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

func actorOf(c echo.Context) string {
	return strings.TrimSpace(c.Request().Header.Get(HeaderActorID))
}

// workspace resolves the :slug path parameter.
func (s *Server) workspace(c echo.Context) (*ledger.Workspace, error) {
	slug := c.Param("slug")
	ws := s.ledger.WorkspaceBySlug(c.Request().Context(), slug)
	if ws == nil {
		return nil, httpError(fmt.Errorf("%w: %s", ledger.ErrWorkspaceNotFound, slug))
	}
	return ws, nil
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleCreateWorkspace(c echo.Context) error {
	var req CreateWorkspaceRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid workspace request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Slug) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "slug field is required")
	}

	ws, err := s.ledger.CreateWorkspace(c.Request().Context(), req.Slug, req.Name)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, WorkspaceResponse{Workspace: ws})
}

func (s *Server) handleListDocuments(c echo.Context) error {
	ws, err := s.workspace(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, DocumentsResponse{
		Documents: s.ledger.ForWorkspace(c.Request().Context(), ws.ID),
	})
}

func (s *Server) handleUpdateEmbeddings(c echo.Context) error {
	var req UpdateEmbeddingsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ws, err := s.workspace(c)
	if err != nil {
		return err
	}

	result, err := s.docs.UpdateEmbeddings(c.Request().Context(), ws, req.Adds, req.Deletes, actorOf(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, UpdateEmbeddingsResponse{Workspace: ws, Result: result})
}

func (s *Server) handleRemoveDocuments(c echo.Context) error {
	var req RemoveDocumentsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ws, err := s.workspace(c)
	if err != nil {
		return err
	}

	if !s.docs.RemoveDocuments(c.Request().Context(), ws, req.Paths, actorOf(c)) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid removal request")
	}
	return c.JSON(http.StatusOK, SuccessResponse{Success: true})
}

func (s *Server) handleUpdateDocument(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid document id")
	}
	var attrs ledger.Attrs
	if err := c.Bind(&attrs); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	res, err := s.ledger.Update(c.Request().Context(), id, attrs)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) handleContent(c echo.Context) error {
	docID := c.Param("docId")
	content, err := s.docs.Content(c.Request().Context(), docID, actorOf(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, ContentResponse{DocID: docID, Content: content})
}

func (s *Server) handleUpload(c echo.Context) error {
	var req UploadRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Location == "" || len(req.Slugs) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "slugs and location are required")
	}

	result, err := s.docs.UploadToWorkspaces(c.Request().Context(), req.Slugs, req.Location, actorOf(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleCreateFolder(c echo.Context) error {
	var req CreateFolderRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	path, err := s.docs.CreateFolder(c.Request().Context(), actorOf(c), req.Name)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, CreateFolderResponse{Success: true, Path: path})
}

// handleMove reports a failed batch with the move result as the body so
// callers can see which entries were skipped or failed.
func (s *Server) handleMove(c echo.Context) error {
	var req MoveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	ctx := c.Request().Context()
	result, err := s.docs.MoveEntries(ctx, actorOf(c), req.Files)
	s.metrics.RecordMoveFaults(ctx, result.Failed)
	if err != nil {
		if len(result.Moved)+len(result.Skipped)+len(result.Failed) == 0 {
			return httpError(err)
		}
		c.Set(failureKey, err)
		return c.JSON(statusFor(err), result)
	}
	return c.JSON(http.StatusOK, result)
}
