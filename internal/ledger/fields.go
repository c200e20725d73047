package ledger

import (
	"time"
)

// Field names a ledger column by its API name.
type Field string

const (
	FieldID            Field = "id"
	FieldDocID         Field = "docId"
	FieldFilename      Field = "filename"
	FieldDocPath       Field = "docpath"
	FieldWorkspaceID   Field = "workspaceId"
	FieldMetadata      Field = "metadata"
	FieldPinned        Field = "pinned"
	FieldWatched       Field = "watched"
	FieldCreatedAt     Field = "createdAt"
	FieldLastUpdatedAt Field = "lastUpdatedAt"
)

// columns maps every known field to its SQL column, in select order.
var columns = []struct {
	field  Field
	column string
}{
	{FieldID, "id"},
	{FieldDocID, "doc_id"},
	{FieldFilename, "filename"},
	{FieldDocPath, "docpath"},
	{FieldWorkspaceID, "workspace_id"},
	{FieldMetadata, "metadata"},
	{FieldPinned, "pinned"},
	{FieldWatched, "watched"},
	{FieldCreatedAt, "created_at"},
	{FieldLastUpdatedAt, "last_updated_at"},
}

// Column returns the SQL column for f, or false if f is not a ledger field.
func (f Field) Column() (string, bool) {
	for _, c := range columns {
		if c.field == f {
			return c.column, true
		}
	}
	return "", false
}

// AllFields returns every ledger field in select order.
func AllFields() []Field {
	out := make([]Field, len(columns))
	for i, c := range columns {
		out[i] = c.field
	}
	return out
}

// MutableFields is the closed set of fields that may change after creation.
var MutableFields = map[Field]bool{
	FieldPinned:        true,
	FieldWatched:       true,
	FieldLastUpdatedAt: true,
}

// Attrs is a partial update keyed by API field name.
type Attrs map[string]any

// Mutable returns the subset of attrs that names a mutable field with a value
// of the right type. Everything else is dropped.
func (a Attrs) Mutable() map[Field]any {
	out := make(map[Field]any, len(a))
	for k, v := range a {
		f := Field(k)
		if !MutableFields[f] {
			continue
		}
		if coerced, ok := coerce(f, v); ok {
			out[f] = coerced
		}
	}
	return out
}

func coerce(f Field, v any) (any, bool) {
	switch f {
	case FieldPinned, FieldWatched:
		b, ok := v.(bool)
		return b, ok
	case FieldLastUpdatedAt:
		switch t := v.(type) {
		case time.Time:
			return t.UTC(), !t.IsZero()
		case string:
			parsed, err := time.Parse(time.RFC3339Nano, t)
			return parsed.UTC(), err == nil
		}
	}
	return nil, false
}
