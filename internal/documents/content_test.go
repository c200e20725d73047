package documents

import (
	"context"
	"testing"

	"github.com/fyrsmithlabs/docledger/internal/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	loc := "custom-documents/a.json"
	f.writeDoc(t, loc, "A", "the body text")
	_, err := f.svc.AddDocuments(ctx, f.ws, []string{loc}, actor)
	require.NoError(t, err)
	row := f.ledger.Get(ctx, ledger.Filter{DocPath: loc})
	require.NotNil(t, row)

	body, err := f.svc.Content(ctx, row.DocID, actor)
	require.NoError(t, err)
	assert.Equal(t, "the body text", body)

	body, err = f.svc.ContentByDocPath(ctx, loc, actor)
	require.NoError(t, err)
	assert.Equal(t, "the body text", body)

	_, err = f.svc.Content(ctx, "unknown", actor)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.Content(ctx, "", actor)
	assert.ErrorIs(t, err, ErrInvalidInput)

	f.writeDoc(t, "unembedded.json", "U", "u")
	_, err = f.svc.ContentByDocPath(ctx, "unembedded.json", actor)
	assert.ErrorIs(t, err, ErrNotFound, "only embedded documents are served")
}
