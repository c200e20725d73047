package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docledger/internal/documents"
)

// instrumented wraps a tool handler with invocation metrics and error logging.
func instrumented[In, Out any](s *Server, name string, h mcp.ToolHandlerFor[In, Out]) mcp.ToolHandlerFor[In, Out] {
	return func(ctx context.Context, req *mcp.CallToolRequest, in In) (*mcp.CallToolResult, Out, error) {
		start := time.Now()
		s.metrics.IncrementActive(ctx, name)
		res, out, err := h(ctx, req, in)
		s.metrics.DecrementActive(ctx, name)
		s.metrics.RecordInvocation(ctx, name, time.Since(start), err)
		if err != nil {
			s.logger.Warn("tool failed", zap.String("tool", name), zap.Error(err))
		}
		return res, out, err
	}
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "documents_add",
		Description: "Embed documents from the actor's file tree into a workspace. Deletes are applied before adds.",
	}, instrumented(s, "documents_add", s.handleDocumentsAdd))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "documents_remove",
		Description: "Remove documents from a workspace and delete their vectors",
	}, instrumented(s, "documents_remove", s.handleDocumentsRemove))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "documents_content",
		Description: "Read the text of an embedded document by docId or docpath",
	}, instrumented(s, "documents_content", s.handleDocumentsContent))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "files_move",
		Description: "Move files within the actor's file tree. Files embedded in any workspace are skipped.",
	}, instrumented(s, "files_move", s.handleFilesMove))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "folder_create",
		Description: "Create a folder in the actor's file tree",
	}, instrumented(s, "folder_create", s.handleFolderCreate))
}

// ===== DOCUMENT TOOLS =====

type documentsAddInput struct {
	Workspace string   `json:"workspace" jsonschema:"workspace slug"`
	Adds      []string `json:"adds" jsonschema:"document paths relative to the actor's tree"`
	Deletes   []string `json:"deletes,omitempty" jsonschema:"document paths to remove first"`
	ActorID   string   `json:"actor_id,omitempty" jsonschema:"actor whose tree the paths are in"`
}

type documentsAddOutput struct {
	Workspace     string   `json:"workspace"`
	Embedded      []string `json:"embedded"`
	FailedToEmbed []string `json:"failed_to_embed"`
	Errors        []string `json:"errors"`
	Skipped       []string `json:"skipped,omitempty"`
	Orphaned      []string `json:"orphaned,omitempty"`
}

func (s *Server) handleDocumentsAdd(ctx context.Context, _ *mcp.CallToolRequest, in documentsAddInput) (*mcp.CallToolResult, documentsAddOutput, error) {
	ws, err := s.workspace(ctx, in.Workspace)
	if err != nil {
		return nil, documentsAddOutput{}, err
	}
	res, err := s.docs.UpdateEmbeddings(ctx, ws, in.Adds, in.Deletes, s.actor(in.ActorID))
	if err != nil {
		return nil, documentsAddOutput{}, err
	}
	out := documentsAddOutput{
		Workspace:     ws.Slug,
		Embedded:      res.Embedded,
		FailedToEmbed: res.FailedToEmbed,
		Errors:        res.Errors,
		Skipped:       res.Skipped,
		Orphaned:      res.Orphaned,
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("Embedded %d of %d documents into %s", len(out.Embedded), len(in.Adds), ws.Slug)},
		},
	}, out, nil
}

type documentsRemoveInput struct {
	Workspace string   `json:"workspace" jsonschema:"workspace slug"`
	Paths     []string `json:"paths" jsonschema:"document paths to remove"`
	ActorID   string   `json:"actor_id,omitempty" jsonschema:"actor performing the removal"`
}

type documentsRemoveOutput struct {
	Success bool `json:"success"`
}

func (s *Server) handleDocumentsRemove(ctx context.Context, _ *mcp.CallToolRequest, in documentsRemoveInput) (*mcp.CallToolResult, documentsRemoveOutput, error) {
	ws, err := s.workspace(ctx, in.Workspace)
	if err != nil {
		return nil, documentsRemoveOutput{}, err
	}
	ok := s.docs.RemoveDocuments(ctx, ws, in.Paths, s.actor(in.ActorID))
	return nil, documentsRemoveOutput{Success: ok}, nil
}

type documentsContentInput struct {
	DocID   string `json:"doc_id,omitempty" jsonschema:"docId of an embedded document"`
	DocPath string `json:"docpath,omitempty" jsonschema:"docpath of an embedded document, used when doc_id is empty"`
	ActorID string `json:"actor_id,omitempty" jsonschema:"actor whose tree holds the document"`
}

type documentsContentOutput struct {
	Content string `json:"content"`
}

func (s *Server) handleDocumentsContent(ctx context.Context, _ *mcp.CallToolRequest, in documentsContentInput) (*mcp.CallToolResult, documentsContentOutput, error) {
	var (
		content string
		err     error
	)
	if in.DocID != "" {
		content, err = s.docs.Content(ctx, in.DocID, s.actor(in.ActorID))
	} else {
		content, err = s.docs.ContentByDocPath(ctx, in.DocPath, s.actor(in.ActorID))
	}
	if err != nil {
		return nil, documentsContentOutput{}, err
	}
	return nil, documentsContentOutput{Content: content}, nil
}

// ===== FILE TOOLS =====

type moveEntry struct {
	From string `json:"from" jsonschema:"source path"`
	To   string `json:"to" jsonschema:"destination path"`
}

type moveFailure struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Error string `json:"error"`
}

type filesMoveInput struct {
	Files   []moveEntry `json:"files" jsonschema:"moves relative to the actor's tree"`
	ActorID string      `json:"actor_id,omitempty" jsonschema:"actor whose tree the files are in"`
}

type filesMoveOutput struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Moved   []moveEntry   `json:"moved"`
	Skipped []moveEntry   `json:"skipped"`
	Failed  []moveFailure `json:"failed"`
}

func toEntries(moves []documents.Move) []moveEntry {
	out := make([]moveEntry, len(moves))
	for i, m := range moves {
		out[i] = moveEntry{From: m.From, To: m.To}
	}
	return out
}

// handleFilesMove returns the move result even when the batch fails so the
// client sees per-file outcomes; the failure is flagged with IsError.
func (s *Server) handleFilesMove(ctx context.Context, _ *mcp.CallToolRequest, in filesMoveInput) (*mcp.CallToolResult, filesMoveOutput, error) {
	moves := make([]documents.Move, len(in.Files))
	for i, f := range in.Files {
		moves[i] = documents.Move{From: f.From, To: f.To}
	}

	res, err := s.docs.MoveEntries(ctx, s.actor(in.ActorID), moves)
	if err != nil && len(res.Moved)+len(res.Skipped)+len(res.Failed) == 0 {
		return nil, filesMoveOutput{}, err
	}

	out := filesMoveOutput{
		Success: res.Success,
		Message: res.Message,
		Moved:   toEntries(res.Moved),
		Skipped: toEntries(res.Skipped),
		Failed:  make([]moveFailure, len(res.Failed)),
	}
	for i, f := range res.Failed {
		out.Failed[i] = moveFailure{From: f.From, To: f.To, Error: f.Error}
	}

	text := res.Message
	if text == "" {
		text = fmt.Sprintf("Moved %d files", len(res.Moved))
	}
	return &mcp.CallToolResult{
		IsError: err != nil,
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, out, nil
}

type folderCreateInput struct {
	Name    string `json:"name" jsonschema:"folder name relative to the actor's tree"`
	ActorID string `json:"actor_id,omitempty" jsonschema:"actor whose tree receives the folder"`
}

type folderCreateOutput struct {
	Path string `json:"path"`
}

func (s *Server) handleFolderCreate(ctx context.Context, _ *mcp.CallToolRequest, in folderCreateInput) (*mcp.CallToolResult, folderCreateOutput, error) {
	path, err := s.docs.CreateFolder(ctx, s.actor(in.ActorID), in.Name)
	if err != nil {
		return nil, folderCreateOutput{}, err
	}
	return nil, folderCreateOutput{Path: path}, nil
}
