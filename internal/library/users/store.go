package users

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"librarium-backend/internal/platform/db"
)

type User struct {
	ID       int64
	Username string
	Role     string
	Email    string
}

type rentedBook struct {
	Book     ProfileBook
	RentedAt time.Time
}

// Directory is what the service needs from user storage; tests run against
// an in-memory fake.
type Directory interface {
	GetByUsername(ctx context.Context, username string) (*User, error)
	EmailTaken(ctx context.Context, email string, exceptID int64) (bool, error)
	List(ctx context.Context) ([]UserItem, error)
	Insert(ctx context.Context, username, passwordHash, role, email string) error
	UpdateFields(ctx context.Context, id int64, fields map[string]string) error
	DeleteCascade(ctx context.Context, id int64, purge func(ctx context.Context, tx db.DBTX) error) error
	RentedBooks(ctx context.Context, userID int64) ([]rentedBook, error)
}

type Store struct{ db *sql.DB }

func NewStore(sdb *sql.DB) *Store { return &Store{db: sdb} }

func (s *Store) GetByUsername(ctx context.Context, username string) (*User, error) {
	const q = `SELECT id, username, role, email FROM users WHERE username = ? LIMIT 1`
	var u User
	err := s.db.QueryRowContext(ctx, q, username).Scan(&u.ID, &u.Username, &u.Role, &u.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) EmailTaken(ctx context.Context, email string, exceptID int64) (bool, error) {
	const q = `SELECT COUNT(*) FROM users WHERE email = ? AND id <> ?`
	var n int
	if err := s.db.QueryRowContext(ctx, q, email, exceptID).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) List(ctx context.Context) ([]UserItem, error) {
	const q = `SELECT id, username, role, email FROM users ORDER BY id`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []UserItem
	for rows.Next() {
		var u UserItem
		if err := rows.Scan(&u.ID, &u.Username, &u.Role, &u.Email); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) Insert(ctx context.Context, username, passwordHash, role, email string) error {
	const q = `INSERT INTO users (username, password_hash, role, email, created_at) VALUES (?, ?, ?, ?, NOW(6))`
	_, err := s.db.ExecContext(ctx, q, username, passwordHash, role, email)
	return err
}

// UpdateFields applies only the provided columns.
func (s *Store) UpdateFields(ctx context.Context, id int64, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	sets := make([]string, 0, len(fields))
	args := make([]any, 0, len(fields)+1)
	for _, col := range []string{"username", "password_hash", "role", "email"} {
		if v, ok := fields[col]; ok {
			sets = append(sets, col+" = ?")
			args = append(args, v)
		}
	}
	args = append(args, id)
	q := "UPDATE users SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	_, err := s.db.ExecContext(ctx, q, args...)
	return err
}

// DeleteCascade removes the user and every dependent row in one transaction;
// purge (the ledger cascade) runs first.
func (s *Store) DeleteCascade(ctx context.Context, id int64, purge func(ctx context.Context, tx db.DBTX) error) error {
	return db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		if err := purge(ctx, tx); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
		return err
	})
}

func (s *Store) RentedBooks(ctx context.Context, userID int64) ([]rentedBook, error) {
	const q = `
	SELECT b.id, b.title, b.description, b.cover_url, b.author, b.genre, b.publisher, r.rented_at
	FROM rents r
	JOIN books b ON b.id = r.book_id
	WHERE r.user_id = ?`
	rows, err := s.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []rentedBook
	for rows.Next() {
		var rb rentedBook
		if err := rows.Scan(&rb.Book.ID, &rb.Book.Title, &rb.Book.Description, &rb.Book.CoverURL,
			&rb.Book.Author, &rb.Book.Genre, &rb.Book.Publisher, &rb.RentedAt); err != nil {
			return nil, err
		}
		out = append(out, rb)
	}
	return out, rows.Err()
}
