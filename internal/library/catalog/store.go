package catalog

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"librarium-backend/internal/platform/db"
	"librarium-backend/internal/platform/httpapi"
)

type Book struct {
	ID          int64
	Title       string
	Author      string
	Genre       string
	Publisher   string
	Description string
	CoverURL    string
	PDFPath     sql.NullString
}

// Shelf is what the service needs from book storage; tests run against an
// in-memory fake.
type Shelf interface {
	Search(ctx context.Context, f SearchFilter) ([]BookItem, error)
	GetByID(ctx context.Context, id int64) (*Book, error)
	Insert(ctx context.Context, b *Book) (int64, error)
	SetPDFPath(ctx context.Context, id int64, path string) error
	Delete(ctx context.Context, id int64) error
	DeleteCascade(ctx context.Context, id int64, purge func(ctx context.Context, tx db.DBTX) error) error
}

type Store struct{ db *sql.DB }

func NewStore(sdb *sql.DB) *Store { return &Store{db: sdb} }

func (s *Store) Search(ctx context.Context, f SearchFilter) ([]BookItem, error) {
	sb := strings.Builder{}
	sb.WriteString(`
	SELECT id, title, description, cover_url, author, genre, publisher
	FROM books
	WHERE 1=1`)

	args := []any{}
	if f.Query != "" {
		sb.WriteString(` AND (LOWER(title) LIKE ? OR LOWER(author) LIKE ? OR LOWER(genre) LIKE ? OR LOWER(publisher) LIKE ? OR LOWER(description) LIKE ?)`)
		needle := "%" + strings.ToLower(f.Query) + "%"
		args = append(args, needle, needle, needle, needle, needle)
	}
	if f.Author != "" {
		sb.WriteString(` AND LOWER(author) LIKE ?`)
		args = append(args, "%"+strings.ToLower(f.Author)+"%")
	}
	if f.Genre != "" {
		sb.WriteString(` AND LOWER(genre) LIKE ?`)
		args = append(args, "%"+strings.ToLower(f.Genre)+"%")
	}
	if f.Publisher != "" {
		sb.WriteString(` AND LOWER(publisher) LIKE ?`)
		args = append(args, "%"+strings.ToLower(f.Publisher)+"%")
	}
	sb.WriteString(` ORDER BY id`)

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BookItem
	for rows.Next() {
		var b BookItem
		if err := rows.Scan(&b.ID, &b.Title, &b.Description, &b.CoverURL, &b.Author, &b.Genre, &b.Publisher); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Store) GetByID(ctx context.Context, id int64) (*Book, error) {
	const q = `SELECT id, title, author, genre, publisher, description, cover_url, pdf_path FROM books WHERE id = ?`
	var b Book
	err := s.db.QueryRowContext(ctx, q, id).Scan(
		&b.ID, &b.Title, &b.Author, &b.Genre, &b.Publisher, &b.Description, &b.CoverURL, &b.PDFPath)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, httpapi.ErrNotFound("book not found")
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *Store) Insert(ctx context.Context, b *Book) (int64, error) {
	const q = `
	INSERT INTO books (title, author, genre, publisher, description, cover_url)
	VALUES (?, ?, ?, ?, ?, ?)`
	res, err := s.db.ExecContext(ctx, q, b.Title, b.Author, b.Genre, b.Publisher, b.Description, b.CoverURL)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) SetPDFPath(ctx context.Context, id int64, path string) error {
	const q = `UPDATE books SET pdf_path = ? WHERE id = ?`
	_, err := s.db.ExecContext(ctx, q, path, id)
	return err
}

func (s *Store) Delete(ctx context.Context, id int64) error {
	const q = `DELETE FROM books WHERE id = ?`
	_, err := s.db.ExecContext(ctx, q, id)
	return err
}

// DeleteCascade removes the book and its dependents in one transaction.
// purge runs first so no request/rent/comment row survives its book (the
// ledger owns those deletes).
func (s *Store) DeleteCascade(ctx context.Context, id int64, purge func(ctx context.Context, tx db.DBTX) error) error {
	return db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		if err := purge(ctx, tx); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM books WHERE id = ?`, id)
		return err
	})
}
