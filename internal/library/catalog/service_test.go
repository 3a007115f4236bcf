package catalog

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"librarium-backend/internal/platform/blob"
	"librarium-backend/internal/platform/db"
	"librarium-backend/internal/platform/httpapi"
)

type fakeResult struct{}

func (fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (fakeResult) RowsAffected() (int64, error) { return 1, nil }

// purgeTx records the tables the ledger cascade deletes from, in order, and
// can be armed to fail on one of them.
type purgeTx struct {
	deleted []string
	failOn  string
}

func tableOf(query string) string {
	fields := strings.Fields(query)
	for i, f := range fields {
		if strings.EqualFold(f, "FROM") && i+1 < len(fields) {
			return fields[i+1]
		}
	}
	return ""
}

func (t *purgeTx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	table := tableOf(query)
	if table == t.failOn {
		return nil, errors.New("exec failed")
	}
	t.deleted = append(t.deleted, table)
	return fakeResult{}, nil
}

func (t *purgeTx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return nil, errors.New("not supported")
}

func (t *purgeTx) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return nil
}

type memShelf struct {
	seq            int64
	books          map[int64]*Book
	setPathErr     error
	purgeFailOn    string
	lastPurge      []string
	deletedViaComp []int64
}

func newMemShelf() *memShelf {
	return &memShelf{books: make(map[int64]*Book)}
}

func (m *memShelf) Search(ctx context.Context, f SearchFilter) ([]BookItem, error) {
	return nil, nil
}

func (m *memShelf) GetByID(ctx context.Context, id int64) (*Book, error) {
	if b, ok := m.books[id]; ok {
		cp := *b
		return &cp, nil
	}
	return nil, httpapi.ErrNotFound("book not found")
}

func (m *memShelf) Insert(ctx context.Context, b *Book) (int64, error) {
	m.seq++
	cp := *b
	cp.ID = m.seq
	m.books[m.seq] = &cp
	return m.seq, nil
}

func (m *memShelf) SetPDFPath(ctx context.Context, id int64, path string) error {
	if m.setPathErr != nil {
		return m.setPathErr
	}
	m.books[id].PDFPath = sql.NullString{String: path, Valid: true}
	return nil
}

func (m *memShelf) Delete(ctx context.Context, id int64) error {
	delete(m.books, id)
	m.deletedViaComp = append(m.deletedViaComp, id)
	return nil
}

// DeleteCascade mirrors the production transaction: purge first, then the
// parent row, nothing deleted when purge fails.
func (m *memShelf) DeleteCascade(ctx context.Context, id int64, purge func(ctx context.Context, tx db.DBTX) error) error {
	tx := &purgeTx{failOn: m.purgeFailOn}
	if err := purge(ctx, tx); err != nil {
		return err
	}
	m.lastPurge = tx.deleted
	delete(m.books, id)
	return nil
}

func TestNFCNormalization(t *testing.T) {
	// e + combining acute must normalize to the precomposed form.
	assert.Equal(t, "Caf\u00e9", nfc("Cafe\u0301"))
	assert.Equal(t, "Dune", nfc("  Dune  "))
	assert.Equal(t, "", nfc("   "))
}

func validAddBookIn() AddBookIn {
	return AddBookIn{
		Title:       "Dune",
		Author:      "Frank Herbert",
		Genre:       "sci-fi",
		Publisher:   "Chilton",
		Description: "spice",
		CoverURL:    "http://example.com/dune.jpg",
	}
}

func TestAddBookStoresRowAndBlob(t *testing.T) {
	shelf := newMemShelf()
	blobs, err := blob.NewStore(t.TempDir())
	require.NoError(t, err)
	svc := NewService(shelf, blobs, zap.NewNop())

	id, err := svc.AddBook(context.Background(), validAddBookIn(), strings.NewReader("%PDF"))
	require.NoError(t, err)

	b := shelf.books[id]
	require.NotNil(t, b)
	assert.True(t, b.PDFPath.Valid)
	assert.True(t, blobs.Exists(b.PDFPath.String))
}

func TestAddBookCompensatesOnPDFPathFailure(t *testing.T) {
	shelf := newMemShelf()
	shelf.setPathErr = errors.New("update failed")
	blobs, err := blob.NewStore(t.TempDir())
	require.NoError(t, err)
	svc := NewService(shelf, blobs, zap.NewNop())

	_, err = svc.AddBook(context.Background(), validAddBookIn(), strings.NewReader("%PDF"))
	require.Error(t, err)

	// Neither the half-initialized row nor the blob may survive.
	assert.Empty(t, shelf.books)
	require.Len(t, shelf.deletedViaComp, 1)
	assert.False(t, blobs.Exists(blobs.Path(shelf.deletedViaComp[0])))
}

func TestDeleteBookCascadesDependentsFirst(t *testing.T) {
	shelf := newMemShelf()
	blobs, err := blob.NewStore(t.TempDir())
	require.NoError(t, err)
	svc := NewService(shelf, blobs, zap.NewNop())

	id, err := svc.AddBook(context.Background(), validAddBookIn(), strings.NewReader("%PDF"))
	require.NoError(t, err)
	path := blobs.Path(id)
	require.True(t, blobs.Exists(path))

	require.NoError(t, svc.DeleteBook(context.Background(), id))

	assert.Empty(t, shelf.books)
	assert.Equal(t, []string{"comments", "requests", "rents"}, shelf.lastPurge)
	assert.False(t, blobs.Exists(path))
}

func TestDeleteBookRollsBackOnPurgeFailure(t *testing.T) {
	shelf := newMemShelf()
	blobs, err := blob.NewStore(t.TempDir())
	require.NoError(t, err)
	svc := NewService(shelf, blobs, zap.NewNop())

	id, err := svc.AddBook(context.Background(), validAddBookIn(), strings.NewReader("%PDF"))
	require.NoError(t, err)

	shelf.purgeFailOn = "rents"
	require.Error(t, svc.DeleteBook(context.Background(), id))

	// The row and the blob survive a failed cascade.
	assert.NotNil(t, shelf.books[id])
	assert.True(t, blobs.Exists(blobs.Path(id)))
}

func TestAddBookRequiresAllFields(t *testing.T) {
	svc := NewService(nil, nil, nil)

	in := AddBookIn{
		Title:       "Dune",
		Author:      "Frank Herbert",
		Genre:       "sci-fi",
		Publisher:   "Chilton",
		Description: "spice",
		CoverURL:    "http://example.com/dune.jpg",
	}

	for _, blank := range []func(*AddBookIn){
		func(b *AddBookIn) { b.Title = " " },
		func(b *AddBookIn) { b.Author = "" },
		func(b *AddBookIn) { b.Genre = "" },
		func(b *AddBookIn) { b.Publisher = "" },
		func(b *AddBookIn) { b.Description = "" },
		func(b *AddBookIn) { b.CoverURL = "" },
	} {
		bad := in
		blank(&bad)
		_, err := svc.AddBook(context.Background(), bad, strings.NewReader("%PDF"))
		require.Error(t, err)
		assert.Equal(t, httpapi.CodeInvalidArgument, err.(*httpapi.APIError).Code)
	}
}
