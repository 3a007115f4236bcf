package users

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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

type memDirectory struct {
	seq         int64
	users       map[string]*User
	rented      map[int64][]rentedBook
	updates     map[int64]map[string]string
	purgeFailOn string
	lastPurge   []string
}

func newMemDirectory() *memDirectory {
	return &memDirectory{
		users:   make(map[string]*User),
		rented:  make(map[int64][]rentedBook),
		updates: make(map[int64]map[string]string),
	}
}

func (m *memDirectory) addUser(username, role, email string) int64 {
	m.seq++
	m.users[username] = &User{ID: m.seq, Username: username, Role: role, Email: email}
	return m.seq
}

func (m *memDirectory) byID(id int64) *User {
	for _, u := range m.users {
		if u.ID == id {
			return u
		}
	}
	return nil
}

func (m *memDirectory) GetByUsername(ctx context.Context, username string) (*User, error) {
	if u, ok := m.users[username]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (m *memDirectory) EmailTaken(ctx context.Context, email string, exceptID int64) (bool, error) {
	for _, u := range m.users {
		if u.Email == email && u.ID != exceptID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memDirectory) List(ctx context.Context) ([]UserItem, error) {
	var out []UserItem
	for _, u := range m.users {
		out = append(out, UserItem{ID: u.ID, Username: u.Username, Role: u.Role, Email: u.Email})
	}
	return out, nil
}

func (m *memDirectory) Insert(ctx context.Context, username, passwordHash, role, email string) error {
	m.addUser(username, role, email)
	return nil
}

func (m *memDirectory) UpdateFields(ctx context.Context, id int64, fields map[string]string) error {
	m.updates[id] = fields
	if u := m.byID(id); u != nil {
		if v, ok := fields["role"]; ok {
			u.Role = v
		}
		if v, ok := fields["email"]; ok {
			u.Email = v
		}
	}
	return nil
}

// DeleteCascade mirrors the production transaction: purge first, then the
// parent row, nothing deleted when purge fails.
func (m *memDirectory) DeleteCascade(ctx context.Context, id int64, purge func(ctx context.Context, tx db.DBTX) error) error {
	tx := &purgeTx{failOn: m.purgeFailOn}
	if err := purge(ctx, tx); err != nil {
		return err
	}
	m.lastPurge = tx.deleted
	if u := m.byID(id); u != nil {
		delete(m.users, u.Username)
	}
	return nil
}

func (m *memDirectory) RentedBooks(ctx context.Context, userID int64) ([]rentedBook, error) {
	return m.rented[userID], nil
}

func TestDeleteUserCascadesDependentsFirst(t *testing.T) {
	ctx := context.Background()
	m := newMemDirectory()
	m.addUser("alice", "reader", "alice@example.com")
	svc := NewService(m)

	require.NoError(t, svc.DeleteUser(ctx, "alice"))

	assert.Nil(t, m.users["alice"])
	assert.Equal(t, []string{"comments", "requests", "rents"}, m.lastPurge)
}

func TestDeleteUserRollsBackOnPurgeFailure(t *testing.T) {
	ctx := context.Background()
	m := newMemDirectory()
	m.addUser("alice", "reader", "alice@example.com")
	m.purgeFailOn = "requests"
	svc := NewService(m)

	err := svc.DeleteUser(ctx, "alice")
	require.Error(t, err)

	// The user row survives a failed cascade.
	assert.NotNil(t, m.users["alice"])
	assert.Empty(t, m.lastPurge)
}

func TestDeleteUserUnknown(t *testing.T) {
	svc := NewService(newMemDirectory())
	err := svc.DeleteUser(context.Background(), "ghost")
	assert.Equal(t, httpapi.CodeNotFound, err.(*httpapi.APIError).Code)
}

func TestProfileFiltersExpiredRentals(t *testing.T) {
	ctx := context.Background()
	m := newMemDirectory()
	alice := m.addUser("alice", "reader", "alice@example.com")
	now := time.Now().UTC()
	m.rented[alice] = []rentedBook{
		{Book: ProfileBook{ID: 1, Title: "Dune"}, RentedAt: now.Add(-time.Hour)},
		{Book: ProfileBook{ID: 2, Title: "Solaris"}, RentedAt: now.Add(-49 * time.Hour)},
	}
	svc := NewService(m)

	out, err := svc.Profile(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", out.Username)
	require.Len(t, out.Books, 1)
	assert.Equal(t, "Dune", out.Books[0].Title)
}

func TestAddUserValidation(t *testing.T) {
	ctx := context.Background()
	m := newMemDirectory()
	m.addUser("alice", "reader", "alice@example.com")
	svc := NewService(m)

	err := svc.AddUser(ctx, AdminAddUserIn{Username: "bob", Password: "Str0ng!pass", Role: "owner", Email: "bob@example.com"})
	assert.Equal(t, httpapi.CodeInvalidArgument, err.(*httpapi.APIError).Code)

	err = svc.AddUser(ctx, AdminAddUserIn{Username: "alice", Password: "Str0ng!pass", Email: "new@example.com"})
	assert.Equal(t, httpapi.CodeConflict, err.(*httpapi.APIError).Code)

	err = svc.AddUser(ctx, AdminAddUserIn{Username: "bob", Password: "Str0ng!pass", Email: "alice@example.com"})
	assert.Equal(t, httpapi.CodeConflict, err.(*httpapi.APIError).Code)

	require.NoError(t, svc.AddUser(ctx, AdminAddUserIn{Username: "bob", Password: "Str0ng!pass", Email: "bob@example.com"}))
	assert.Equal(t, "reader", m.users["bob"].Role)
}

func TestChangeRole(t *testing.T) {
	ctx := context.Background()
	m := newMemDirectory()
	m.addUser("alice", "reader", "alice@example.com")
	svc := NewService(m)

	err := svc.ChangeRole(ctx, "alice", "owner")
	assert.Equal(t, httpapi.CodeInvalidArgument, err.(*httpapi.APIError).Code)

	require.NoError(t, svc.ChangeRole(ctx, "alice", "librarian"))
	assert.Equal(t, "librarian", m.users["alice"].Role)
}
