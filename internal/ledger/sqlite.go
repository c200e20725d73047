package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/fyrsmithlabs/docledger/internal/ledger/migrations"
)

const timeLayout = time.RFC3339Nano

// SQLiteStore is the Store backed by a single SQLite database file.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (creating if needed) the ledger database at path and
// applies pending migrations.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("ledger path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating ledger directory: %w", err)
	}

	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening ledger database: %w", err)
	}
	// SQLite serializes writers; a single connection avoids SQLITE_BUSY
	// under the concurrent schedules.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, path: path}
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running ledger migrations: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

func (s *SQLiteStore) migrate(fsys fs.FS) error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var current int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations: %w", err)
	}
	var ups []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".up.sql") {
			ups = append(ups, e.Name())
		}
	}
	sort.Strings(ups)

	for _, name := range ups {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= current {
			continue
		}
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)",
			version, time.Now().UTC().Format(timeLayout)); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %s: %w", name, err)
		}
	}
	return nil
}

// ==================== Documents ====================

// FindDocuments returns rows matching filter, shaped by query.
func (s *SQLiteStore) FindDocuments(ctx context.Context, filter Filter, query Query) ([]Document, error) {
	fields := query.Fields
	if len(fields) == 0 {
		fields = AllFields()
	}
	var cols []string
	var selected []Field
	for _, f := range fields {
		if col, ok := f.Column(); ok {
			cols = append(cols, col)
			selected = append(selected, f)
		}
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("no known fields selected")
	}

	where, args := filter.where()
	q := "SELECT " + strings.Join(cols, ", ") + " FROM workspace_documents WHERE " + where

	var orders []string
	for _, o := range query.Order {
		col, ok := o.Field.Column()
		if !ok {
			continue
		}
		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}
		orders = append(orders, col+" "+dir)
	}
	if len(orders) > 0 {
		q += " ORDER BY " + strings.Join(orders, ", ")
	} else {
		q += " ORDER BY id ASC"
	}
	if query.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, query.Limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var r documentRow
		targets := make([]any, len(selected))
		for i, f := range selected {
			targets[i] = r.target(f)
		}
		if err := rows.Scan(targets...); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		doc, err := r.document()
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// CountDocuments counts rows matching filter.
func (s *SQLiteStore) CountDocuments(ctx context.Context, filter Filter) (int, error) {
	where, args := filter.where()
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM workspace_documents WHERE "+where, args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return n, nil
}

// InsertDocument writes doc and fills in its row id.
func (s *SQLiteStore) InsertDocument(ctx context.Context, doc *Document) error {
	meta, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshalling metadata: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO workspace_documents
			(doc_id, filename, docpath, workspace_id, metadata, pinned, watched, created_at, last_updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, doc.DocID, doc.Filename, doc.DocPath, doc.WorkspaceID, string(meta),
		doc.Pinned, doc.Watched,
		doc.CreatedAt.UTC().Format(timeLayout), doc.LastUpdatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("inserting document: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading document id: %w", err)
	}
	doc.ID = id
	return nil
}

// UpdateDocuments applies set to every row matching filter.
func (s *SQLiteStore) UpdateDocuments(ctx context.Context, filter Filter, set map[Field]any) (int64, error) {
	if len(set) == 0 {
		return 0, nil
	}
	var (
		assigns []string
		args    []any
	)
	// Column order follows the schema so statements are stable.
	for _, c := range columns {
		v, ok := set[c.field]
		if !ok {
			continue
		}
		if t, isTime := v.(time.Time); isTime {
			v = t.UTC().Format(timeLayout)
		}
		assigns = append(assigns, c.column+" = ?")
		args = append(args, v)
	}
	if len(assigns) == 0 {
		return 0, fmt.Errorf("no known fields to update")
	}

	where, whereArgs := filter.where()
	res, err := s.db.ExecContext(ctx,
		"UPDATE workspace_documents SET "+strings.Join(assigns, ", ")+" WHERE "+where,
		append(args, whereArgs...)...)
	if err != nil {
		return 0, fmt.Errorf("updating documents: %w", err)
	}
	return res.RowsAffected()
}

// DeleteDocuments removes every row matching filter.
func (s *SQLiteStore) DeleteDocuments(ctx context.Context, filter Filter) (int64, error) {
	where, args := filter.where()
	res, err := s.db.ExecContext(ctx, "DELETE FROM workspace_documents WHERE "+where, args...)
	if err != nil {
		return 0, fmt.Errorf("deleting documents: %w", err)
	}
	return res.RowsAffected()
}

// PurgeDocument deletes the row and its vector associations in one transaction.
func (s *SQLiteStore) PurgeDocument(ctx context.Context, id int64, docID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning purge: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM document_vectors WHERE doc_id = ?", docID); err != nil {
		return fmt.Errorf("deleting vector associations: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM workspace_documents WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	return tx.Commit()
}

// ==================== Vector associations ====================

// InsertVectors records the vector ids stored for docID.
func (s *SQLiteStore) InsertVectors(ctx context.Context, docID string, vectorIDs []string) error {
	if len(vectorIDs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO document_vectors (doc_id, vector_id, created_at) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("preparing vector insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(timeLayout)
	for _, vid := range vectorIDs {
		if _, err := stmt.ExecContext(ctx, docID, vid, now); err != nil {
			return fmt.Errorf("inserting vector association: %w", err)
		}
	}
	return tx.Commit()
}

// VectorIDs lists the vector ids recorded for docID.
func (s *SQLiteStore) VectorIDs(ctx context.Context, docID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT vector_id FROM document_vectors WHERE doc_id = ? ORDER BY id", docID)
	if err != nil {
		return nil, fmt.Errorf("querying vector associations: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ==================== Workspaces ====================

// CreateWorkspace inserts ws and fills in its id.
func (s *SQLiteStore) CreateWorkspace(ctx context.Context, ws *Workspace) error {
	if ws.CreatedAt.IsZero() {
		ws.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO workspaces (slug, name, created_at) VALUES (?, ?, ?)",
		ws.Slug, ws.Name, ws.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: %s", ErrWorkspaceExists, ws.Slug)
		}
		return fmt.Errorf("inserting workspace: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	ws.ID = id
	return nil
}

// FindWorkspaces returns the workspaces whose slug is in slugs.
func (s *SQLiteStore) FindWorkspaces(ctx context.Context, slugs []string) ([]Workspace, error) {
	if len(slugs) == 0 {
		return nil, nil
	}
	args := make([]any, len(slugs))
	for i, slug := range slugs {
		args[i] = slug
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, slug, name, created_at FROM workspaces WHERE slug IN ("+placeholders(len(slugs))+") ORDER BY id",
		args...)
	if err != nil {
		return nil, fmt.Errorf("querying workspaces: %w", err)
	}
	defer rows.Close()

	var out []Workspace
	for rows.Next() {
		ws, err := scanWorkspace(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ws)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanWorkspace(row scanner) (*Workspace, error) {
	var (
		ws      Workspace
		created string
	)
	if err := row.Scan(&ws.ID, &ws.Slug, &ws.Name, &created); err != nil {
		return nil, err
	}
	t, err := time.Parse(timeLayout, created)
	if err != nil {
		return nil, fmt.Errorf("parsing workspace created_at: %w", err)
	}
	ws.CreatedAt = t
	return &ws, nil
}

// documentRow holds nullable scan targets for a projected document row.
type documentRow struct {
	id            sql.NullInt64
	docID         sql.NullString
	filename      sql.NullString
	docpath       sql.NullString
	workspaceID   sql.NullInt64
	metadata      sql.NullString
	pinned        sql.NullBool
	watched       sql.NullBool
	createdAt     sql.NullString
	lastUpdatedAt sql.NullString
}

func (r *documentRow) target(f Field) any {
	switch f {
	case FieldID:
		return &r.id
	case FieldDocID:
		return &r.docID
	case FieldFilename:
		return &r.filename
	case FieldDocPath:
		return &r.docpath
	case FieldWorkspaceID:
		return &r.workspaceID
	case FieldMetadata:
		return &r.metadata
	case FieldPinned:
		return &r.pinned
	case FieldWatched:
		return &r.watched
	case FieldCreatedAt:
		return &r.createdAt
	case FieldLastUpdatedAt:
		return &r.lastUpdatedAt
	}
	return new(any)
}

func (r *documentRow) document() (Document, error) {
	d := Document{
		ID:          r.id.Int64,
		DocID:       r.docID.String,
		Filename:    r.filename.String,
		DocPath:     r.docpath.String,
		WorkspaceID: r.workspaceID.Int64,
		Pinned:      r.pinned.Bool,
		Watched:     r.watched.Bool,
	}
	if r.metadata.Valid && r.metadata.String != "" && r.metadata.String != "null" {
		if err := json.Unmarshal([]byte(r.metadata.String), &d.Metadata); err != nil {
			return Document{}, fmt.Errorf("decoding metadata: %w", err)
		}
	}
	var err error
	if r.createdAt.Valid {
		if d.CreatedAt, err = time.Parse(timeLayout, r.createdAt.String); err != nil {
			return Document{}, fmt.Errorf("parsing created_at: %w", err)
		}
	}
	if r.lastUpdatedAt.Valid {
		if d.LastUpdatedAt, err = time.Parse(timeLayout, r.lastUpdatedAt.String); err != nil {
			return Document{}, fmt.Errorf("parsing last_updated_at: %w", err)
		}
	}
	return d, nil
}
