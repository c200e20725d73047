package http

import (
	"github.com/fyrsmithlabs/docledger/internal/documents"
	"github.com/fyrsmithlabs/docledger/internal/ledger"
)

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// CreateWorkspaceRequest is the request body for POST /api/v1/workspaces.
type CreateWorkspaceRequest struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
}

// WorkspaceResponse wraps a single workspace.
type WorkspaceResponse struct {
	Workspace *ledger.Workspace `json:"workspace"`
}

// DocumentsResponse is the response body for GET /api/v1/workspaces/:slug/documents.
type DocumentsResponse struct {
	Documents []ledger.Document `json:"documents"`
}

// UpdateEmbeddingsRequest is the request body for
// POST /api/v1/workspaces/:slug/documents. Deletes are applied before adds.
type UpdateEmbeddingsRequest struct {
	Adds    []string `json:"adds"`
	Deletes []string `json:"deletes"`
}

// UpdateEmbeddingsResponse reports the workspace and the ingestion outcome.
type UpdateEmbeddingsResponse struct {
	Workspace *ledger.Workspace   `json:"workspace"`
	Result    documents.AddResult `json:"result"`
}

// RemoveDocumentsRequest is the request body for
// DELETE /api/v1/workspaces/:slug/documents.
type RemoveDocumentsRequest struct {
	Paths []string `json:"paths"`
}

// SuccessResponse reports a boolean outcome.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// ContentResponse is the response body for GET /api/v1/documents/:docId/content.
type ContentResponse struct {
	DocID   string `json:"docId"`
	Content string `json:"content"`
}

// UploadRequest is the request body for POST /api/v1/documents/upload.
type UploadRequest struct {
	Slugs    []string `json:"slugs"`
	Location string   `json:"location"`
}

// CreateFolderRequest is the request body for POST /api/v1/files/folder.
type CreateFolderRequest struct {
	Name string `json:"name"`
}

// CreateFolderResponse reports the created folder relative to the actor's root.
type CreateFolderResponse struct {
	Success bool   `json:"success"`
	Path    string `json:"path"`
}

// MoveRequest is the request body for POST /api/v1/files/move.
type MoveRequest struct {
	Files []documents.Move `json:"files"`
}
