package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docledger/internal/documents"
	"github.com/fyrsmithlabs/docledger/internal/ledger"
)

// Documents is the orchestrator surface the tools call.
type Documents interface {
	UpdateEmbeddings(ctx context.Context, workspace *ledger.Workspace, adds, deletes []string, actorID string) (documents.AddResult, error)
	RemoveDocuments(ctx context.Context, workspace *ledger.Workspace, paths []string, actorID string) bool
	Content(ctx context.Context, docID, actorID string) (string, error)
	ContentByDocPath(ctx context.Context, docpath, actorID string) (string, error)
	CreateFolder(ctx context.Context, actorID, name string) (string, error)
	MoveEntries(ctx context.Context, actorID string, moves []documents.Move) (documents.MoveResult, error)
}

// Workspaces resolves workspace slugs.
type Workspaces interface {
	WorkspaceBySlug(ctx context.Context, slug string) *ledger.Workspace
}

// Server is the MCP server for docledger.
type Server struct {
	mcp        *mcp.Server
	docs       Documents
	workspaces Workspaces
	metrics    *Metrics
	logger     *zap.Logger
	actorID    string
}

// Config configures the MCP server.
type Config struct {
	// Name is the server implementation name (default: "docledger")
	Name string

	// Version is the server version (default: "dev")
	Version string

	// DefaultActorID scopes tool calls that omit actor_id.
	DefaultActorID string

	// Logger for structured logging
	Logger *zap.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:    "docledger",
		Version: "dev",
		Logger:  zap.NewNop(),
	}
}

// NewServer creates a new MCP server over docs.
func NewServer(cfg *Config, docs Documents, workspaces Workspaces) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if docs == nil {
		return nil, fmt.Errorf("documents service is required")
	}
	if workspaces == nil {
		return nil, fmt.Errorf("workspace lookup is required")
	}

	s := &Server{
		mcp: mcp.NewServer(&mcp.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		}, nil),
		docs:       docs,
		workspaces: workspaces,
		metrics:    NewMetrics(cfg.Logger),
		logger:     cfg.Logger,
		actorID:    cfg.DefaultActorID,
	}
	s.registerTools()
	return s, nil
}

// Run starts the MCP server on the stdio transport.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server on stdio transport")
	if err := s.mcp.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("server run failed: %w", err)
	}
	return nil
}

// Connect serves a single session over t. Used with in-memory transports.
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.mcp.Connect(ctx, t, nil)
}

func (s *Server) actor(requested string) string {
	if requested != "" {
		return requested
	}
	return s.actorID
}

func (s *Server) workspace(ctx context.Context, slug string) (*ledger.Workspace, error) {
	if slug == "" {
		return nil, fmt.Errorf("%w: workspace is required", documents.ErrInvalidInput)
	}
	ws := s.workspaces.WorkspaceBySlug(ctx, slug)
	if ws == nil {
		return nil, fmt.Errorf("%w: workspace %s", documents.ErrNotFound, slug)
	}
	return ws, nil
}
