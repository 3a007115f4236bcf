package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"librarium-backend/internal/platform/db"
	"librarium-backend/internal/platform/httpapi"
)

type Account struct {
	ID           int64
	Username     string
	PasswordHash string
	Role         string
	Email        string
}

type AccountStore interface {
	GetByUsername(ctx context.Context, username string) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	Create(ctx context.Context, a *Account) error
	UpdatePassword(ctx context.Context, userID int64, hash string) error
	SaveResetToken(ctx context.Context, token string, userID int64, expiresAt time.Time) error
	ConsumeResetToken(ctx context.Context, token, newHash string, now time.Time) error
}

type Store struct{ db *sql.DB }

func NewStore(sdb *sql.DB) AccountStore { return &Store{db: sdb} }

func (s *Store) GetByUsername(ctx context.Context, username string) (*Account, error) {
	const q = `SELECT id, username, password_hash, role, email FROM users WHERE username = ? LIMIT 1`
	return s.scanAccount(s.db.QueryRowContext(ctx, q, username))
}

func (s *Store) GetByEmail(ctx context.Context, email string) (*Account, error) {
	const q = `SELECT id, username, password_hash, role, email FROM users WHERE email = ? LIMIT 1`
	return s.scanAccount(s.db.QueryRowContext(ctx, q, email))
}

func (s *Store) scanAccount(row *sql.Row) (*Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Username, &a.PasswordHash, &a.Role, &a.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) Create(ctx context.Context, a *Account) error {
	const q = `INSERT INTO users (username, password_hash, role, email, created_at) VALUES (?, ?, ?, ?, NOW(6))`
	res, err := s.db.ExecContext(ctx, q, a.Username, a.PasswordHash, a.Role, a.Email)
	if err != nil {
		return err
	}
	a.ID, _ = res.LastInsertId()
	return nil
}

func (s *Store) UpdatePassword(ctx context.Context, userID int64, hash string) error {
	const q = `UPDATE users SET password_hash = ? WHERE id = ?`
	_, err := s.db.ExecContext(ctx, q, hash, userID)
	return err
}

// SaveResetToken persists a token with its TTL and drops any entries that
// have already lapsed, so the table does not grow without bound.
func (s *Store) SaveResetToken(ctx context.Context, token string, userID int64, expiresAt time.Time) error {
	return db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM password_resets WHERE expires_at <= NOW(6)`); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO password_resets (token, user_id, expires_at) VALUES (?, ?, ?)`,
			token, userID, expiresAt)
		return err
	})
}

// ConsumeResetToken applies the new password hash and burns the token in one
// transaction. Unknown or expired tokens fail without touching anything.
func (s *Store) ConsumeResetToken(ctx context.Context, token, newHash string, now time.Time) error {
	return db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		var userID int64
		err := tx.QueryRowContext(ctx,
			`SELECT user_id FROM password_resets WHERE token = ? AND expires_at > ? FOR UPDATE`,
			token, now).Scan(&userID)
		if errors.Is(err, sql.ErrNoRows) {
			return httpapi.ErrInvalid("invalid or expired token")
		}
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE users SET password_hash = ? WHERE id = ?`, newHash, userID); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM password_resets WHERE token = ?`, token)
		return err
	})
}
