package ledger

import (
	"strings"
)

// Filter selects ledger rows. Zero-valued fields do not constrain the query.
// A non-nil, empty DocPaths matches nothing.
type Filter struct {
	ID          int64
	DocID       string
	DocPath     string
	DocPaths    []string
	WorkspaceID int64
	Watched     *bool
}

// IsEmpty reports whether the filter constrains nothing.
func (f Filter) IsEmpty() bool {
	return f.ID == 0 && f.DocID == "" && f.DocPath == "" && f.DocPaths == nil &&
		f.WorkspaceID == 0 && f.Watched == nil
}

// where renders the filter as a SQL WHERE clause (without the keyword).
func (f Filter) where() (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if f.ID != 0 {
		clauses = append(clauses, "id = ?")
		args = append(args, f.ID)
	}
	if f.DocID != "" {
		clauses = append(clauses, "doc_id = ?")
		args = append(args, f.DocID)
	}
	if f.DocPath != "" {
		clauses = append(clauses, "docpath = ?")
		args = append(args, f.DocPath)
	}
	if f.DocPaths != nil {
		if len(f.DocPaths) == 0 {
			clauses = append(clauses, "0")
		} else {
			clauses = append(clauses, "docpath IN ("+placeholders(len(f.DocPaths))+")")
			for _, p := range f.DocPaths {
				args = append(args, p)
			}
		}
	}
	if f.WorkspaceID != 0 {
		clauses = append(clauses, "workspace_id = ?")
		args = append(args, f.WorkspaceID)
	}
	if f.Watched != nil {
		clauses = append(clauses, "watched = ?")
		args = append(args, *f.Watched)
	}

	if len(clauses) == 0 {
		return "1", nil
	}
	return strings.Join(clauses, " AND "), args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// Order sorts query results by a ledger field.
type Order struct {
	Field Field
	Desc  bool
}

// Query carries the optional shaping of a Where call.
type Query struct {
	Limit  int
	Order  []Order
	Fields []Field
}

// QueryOption shapes a Where call.
type QueryOption func(*Query)

// WithLimit caps the number of rows returned.
func WithLimit(n int) QueryOption {
	return func(q *Query) { q.Limit = n }
}

// WithOrder appends a sort key. Unknown fields are ignored.
func WithOrder(field Field, desc bool) QueryOption {
	return func(q *Query) { q.Order = append(q.Order, Order{Field: field, Desc: desc}) }
}

// WithFields projects the result onto the named fields; others are left zero.
// Unknown fields are ignored.
func WithFields(fields ...Field) QueryOption {
	return func(q *Query) { q.Fields = append(q.Fields, fields...) }
}
