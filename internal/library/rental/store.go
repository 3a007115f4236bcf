package rental

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"librarium-backend/internal/platform/db"
	"librarium-backend/internal/platform/httpapi"
)

// LedgerStore is what the service needs from storage. The MySQL Store below
// is the production implementation; tests run against an in-memory fake.
type LedgerStore interface {
	InTx(ctx context.Context, fn func(ctx context.Context, ops Ops) error) error

	UserIDByUsername(ctx context.Context, username string) (int64, error)
	BookByID(ctx context.Context, id int64) (*BookRef, error)

	ListOpenRequests(ctx context.Context) ([]OpenRequestItem, error)
	ListUserRequests(ctx context.Context, userID int64) ([]UserRequestItem, error)
	ListComments(ctx context.Context, bookID int64) ([]CommentItem, error)
	ListActiveRents(ctx context.Context) ([]ActiveRentItem, error)
}

// Ops are the mutations and locking reads available inside one ledger
// transaction. Row reads named *ForUpdate / *ForPair take row locks so that
// racing check-then-act sequences on the same (user, book) serialize.
type Ops interface {
	// LockUser anchors the (user, book) critical section on the user row.
	// A plain FOR UPDATE on request/rent rows is not enough: when no row
	// exists yet there is nothing to lock and two inserts could both pass.
	LockUser(ctx context.Context, userID int64) error

	BookByID(ctx context.Context, id int64) (*BookRef, error)

	RequestForUpdate(ctx context.Context, id int64) (*Request, error)
	LiveRequestForPair(ctx context.Context, userID, bookID int64) (*Request, error)
	ApprovedRequestForPair(ctx context.Context, userID, bookID int64) (*Request, error)
	RentForUpdate(ctx context.Context, id int64) (*Rent, error)
	RentForPair(ctx context.Context, userID, bookID int64) (*Rent, error)

	InsertRequest(ctx context.Context, userID, bookID int64, status Status, createdAt time.Time) (int64, error)
	SetRequestStatus(ctx context.Context, id int64, status Status) error
	DeclineOtherPending(ctx context.Context, bookID, exceptID int64) error
	DeleteRequestsForPair(ctx context.Context, userID, bookID int64) error

	InsertRent(ctx context.Context, userID, bookID int64, rentedAt time.Time) (int64, error)
	SetRentedAt(ctx context.Context, id int64, rentedAt time.Time) error
	DeleteRent(ctx context.Context, id int64) error

	InsertComment(ctx context.Context, userID, bookID int64, text string, rating int, createdAt time.Time) (int64, error)
}

type Store struct {
	db *sql.DB
}

func NewStore(sdb *sql.DB) *Store { return &Store{db: sdb} }

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, ops Ops) error) error {
	return db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		return fn(ctx, txOps{tx: tx})
	})
}

func (s *Store) UserIDByUsername(ctx context.Context, username string) (int64, error) {
	const q = `SELECT id FROM users WHERE username = ?`
	var id int64
	if err := s.db.QueryRowContext(ctx, q, username).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, httpapi.ErrNotFound("user not found")
		}
		return 0, err
	}
	return id, nil
}

func (s *Store) BookByID(ctx context.Context, id int64) (*BookRef, error) {
	const q = `SELECT id, title FROM books WHERE id = ?`
	var b BookRef
	if err := s.db.QueryRowContext(ctx, q, id).Scan(&b.ID, &b.Title); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, httpapi.ErrNotFound("book not found")
		}
		return nil, err
	}
	return &b, nil
}

func (s *Store) ListOpenRequests(ctx context.Context) ([]OpenRequestItem, error) {
	const q = `
	SELECT r.id, u.username, b.id, b.title, r.status, r.created_at
	FROM requests r
	JOIN users u ON u.id = r.user_id
	JOIN books b ON b.id = r.book_id
	WHERE r.status IN ('pending', 'return_requested')
	ORDER BY r.created_at`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OpenRequestItem
	for rows.Next() {
		var it OpenRequestItem
		if err := rows.Scan(&it.ID, &it.Username, &it.BookID, &it.BookTitle, &it.Status, &it.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (s *Store) ListUserRequests(ctx context.Context, userID int64) ([]UserRequestItem, error) {
	const q = `
	SELECT r.id, b.id, b.title, r.status, r.created_at,
	       b.cover_url, b.author, b.genre, b.publisher, b.description
	FROM requests r
	JOIN books b ON b.id = r.book_id
	WHERE r.user_id = ?
	ORDER BY r.created_at`
	rows, err := s.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []UserRequestItem
	for rows.Next() {
		var it UserRequestItem
		if err := rows.Scan(&it.ID, &it.BookID, &it.BookTitle, &it.Status, &it.CreatedAt,
			&it.CoverURL, &it.Author, &it.Genre, &it.Publisher, &it.Description); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (s *Store) ListComments(ctx context.Context, bookID int64) ([]CommentItem, error) {
	const q = `
	SELECT u.username, c.text, c.rating, c.created_at
	FROM comments c
	JOIN users u ON u.id = c.user_id
	WHERE c.book_id = ?
	ORDER BY c.created_at DESC`
	rows, err := s.db.QueryContext(ctx, q, bookID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CommentItem
	for rows.Next() {
		var it CommentItem
		if err := rows.Scan(&it.Username, &it.Text, &it.Rating, &it.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (s *Store) ListActiveRents(ctx context.Context) ([]ActiveRentItem, error) {
	const q = `
	SELECT r.id, u.username, b.title, b.id, r.rented_at
	FROM rents r
	JOIN users u ON u.id = r.user_id
	JOIN books b ON b.id = r.book_id
	ORDER BY r.rented_at DESC`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ActiveRentItem
	for rows.Next() {
		var it ActiveRentItem
		if err := rows.Scan(&it.RentID, &it.Username, &it.BookTitle, &it.BookID, &it.RentedAt); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// ===== Tx-scoped ops =====

type txOps struct {
	tx db.DBTX
}

func (o txOps) LockUser(ctx context.Context, userID int64) error {
	const q = `SELECT id FROM users WHERE id = ? FOR UPDATE`
	var id int64
	if err := o.tx.QueryRowContext(ctx, q, userID).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return httpapi.ErrNotFound("user not found")
		}
		return err
	}
	return nil
}

func (o txOps) BookByID(ctx context.Context, id int64) (*BookRef, error) {
	const q = `SELECT id, title FROM books WHERE id = ?`
	var b BookRef
	if err := o.tx.QueryRowContext(ctx, q, id).Scan(&b.ID, &b.Title); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, httpapi.ErrNotFound("book not found")
		}
		return nil, err
	}
	return &b, nil
}

func (o txOps) scanRequest(row *sql.Row) (*Request, error) {
	var r Request
	err := row.Scan(&r.ID, &r.UserID, &r.BookID, &r.Status, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (o txOps) RequestForUpdate(ctx context.Context, id int64) (*Request, error) {
	const q = `SELECT id, user_id, book_id, status, created_at FROM requests WHERE id = ? FOR UPDATE`
	return o.scanRequest(o.tx.QueryRowContext(ctx, q, id))
}

func (o txOps) LiveRequestForPair(ctx context.Context, userID, bookID int64) (*Request, error) {
	const q = `
	SELECT id, user_id, book_id, status, created_at
	FROM requests
	WHERE user_id = ? AND book_id = ? AND status IN ('pending', 'approved', 'return_requested')
	LIMIT 1 FOR UPDATE`
	return o.scanRequest(o.tx.QueryRowContext(ctx, q, userID, bookID))
}

func (o txOps) ApprovedRequestForPair(ctx context.Context, userID, bookID int64) (*Request, error) {
	const q = `
	SELECT id, user_id, book_id, status, created_at
	FROM requests
	WHERE user_id = ? AND book_id = ? AND status = 'approved'
	LIMIT 1 FOR UPDATE`
	return o.scanRequest(o.tx.QueryRowContext(ctx, q, userID, bookID))
}

func (o txOps) scanRent(row *sql.Row) (*Rent, error) {
	var r Rent
	err := row.Scan(&r.ID, &r.UserID, &r.BookID, &r.RentedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (o txOps) RentForUpdate(ctx context.Context, id int64) (*Rent, error) {
	const q = `SELECT id, user_id, book_id, rented_at FROM rents WHERE id = ? FOR UPDATE`
	return o.scanRent(o.tx.QueryRowContext(ctx, q, id))
}

func (o txOps) RentForPair(ctx context.Context, userID, bookID int64) (*Rent, error) {
	const q = `SELECT id, user_id, book_id, rented_at FROM rents WHERE user_id = ? AND book_id = ? LIMIT 1 FOR UPDATE`
	return o.scanRent(o.tx.QueryRowContext(ctx, q, userID, bookID))
}

func (o txOps) InsertRequest(ctx context.Context, userID, bookID int64, status Status, createdAt time.Time) (int64, error) {
	const q = `INSERT INTO requests (user_id, book_id, status, created_at) VALUES (?, ?, ?, ?)`
	res, err := o.tx.ExecContext(ctx, q, userID, bookID, status, createdAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (o txOps) SetRequestStatus(ctx context.Context, id int64, status Status) error {
	const q = `UPDATE requests SET status = ? WHERE id = ?`
	_, err := o.tx.ExecContext(ctx, q, status, id)
	return err
}

func (o txOps) DeclineOtherPending(ctx context.Context, bookID, exceptID int64) error {
	const q = `UPDATE requests SET status = 'declined' WHERE book_id = ? AND status = 'pending' AND id <> ?`
	_, err := o.tx.ExecContext(ctx, q, bookID, exceptID)
	return err
}

func (o txOps) DeleteRequestsForPair(ctx context.Context, userID, bookID int64) error {
	const q = `DELETE FROM requests WHERE user_id = ? AND book_id = ?`
	_, err := o.tx.ExecContext(ctx, q, userID, bookID)
	return err
}

func (o txOps) InsertRent(ctx context.Context, userID, bookID int64, rentedAt time.Time) (int64, error) {
	const q = `INSERT INTO rents (user_id, book_id, rented_at) VALUES (?, ?, ?)`
	res, err := o.tx.ExecContext(ctx, q, userID, bookID, rentedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (o txOps) SetRentedAt(ctx context.Context, id int64, rentedAt time.Time) error {
	const q = `UPDATE rents SET rented_at = ? WHERE id = ?`
	_, err := o.tx.ExecContext(ctx, q, rentedAt, id)
	return err
}

func (o txOps) DeleteRent(ctx context.Context, id int64) error {
	const q = `DELETE FROM rents WHERE id = ?`
	_, err := o.tx.ExecContext(ctx, q, id)
	return err
}

func (o txOps) InsertComment(ctx context.Context, userID, bookID int64, text string, rating int, createdAt time.Time) (int64, error) {
	const q = `INSERT INTO comments (user_id, book_id, text, rating, created_at) VALUES (?, ?, ?, ?, ?)`
	res, err := o.tx.ExecContext(ctx, q, userID, bookID, text, rating, createdAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ===== Cascade helpers =====
//
// The ledger owns all writes to comments/requests/rents, including the
// cascades run when a user or book is deleted. Callers pass their own
// transaction so dependents and parent go in one commit. Order matters:
// dependents first, parent last (done by the caller after this returns).

func PurgeUserTx(ctx context.Context, tx db.DBTX, userID int64) error {
	for _, q := range []string{
		`DELETE FROM comments WHERE user_id = ?`,
		`DELETE FROM requests WHERE user_id = ?`,
		`DELETE FROM rents WHERE user_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, userID); err != nil {
			return err
		}
	}
	return nil
}

func PurgeBookTx(ctx context.Context, tx db.DBTX, bookID int64) error {
	for _, q := range []string{
		`DELETE FROM comments WHERE book_id = ?`,
		`DELETE FROM requests WHERE book_id = ?`,
		`DELETE FROM rents WHERE book_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, bookID); err != nil {
			return err
		}
	}
	return nil
}
