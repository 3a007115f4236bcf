package users

import (
	"context"
	"time"

	"librarium-backend/internal/library/rental"
	"librarium-backend/internal/platform/auth"
	"librarium-backend/internal/platform/db"
	"librarium-backend/internal/platform/httpapi"
)

type Service struct {
	store Directory
}

func NewService(store Directory) *Service { return &Service{store: store} }

func validRole(role string) bool {
	return role == auth.RoleReader || role == auth.RoleLibrarian || role == auth.RoleAdmin
}

// Profile lists the user's currently active rentals (the 48h predicate lives
// in the rental package, not here).
func (s *Service) Profile(ctx context.Context, username string) (*ProfileOut, error) {
	u, err := s.store.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, httpapi.ErrNotFound("user not found")
	}

	rented, err := s.store.RentedBooks(ctx, u.ID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	books := make([]ProfileBook, 0, len(rented))
	for _, rb := range rented {
		if (rental.Rent{RentedAt: rb.RentedAt}).ActiveAt(now) {
			books = append(books, rb.Book)
		}
	}
	return &ProfileOut{Username: u.Username, Books: books}, nil
}

func (s *Service) List(ctx context.Context) ([]UserItem, error) {
	return s.store.List(ctx)
}

func (s *Service) AddUser(ctx context.Context, in AdminAddUserIn) error {
	if err := auth.ValidateUsername(in.Username); err != nil {
		return err
	}
	if err := auth.ValidatePassword(in.Password); err != nil {
		return err
	}
	if err := auth.ValidateEmail(in.Email); err != nil {
		return err
	}
	role := in.Role
	if role == "" {
		role = auth.RoleReader
	}
	if !validRole(role) {
		return httpapi.ErrInvalid("role must be reader, librarian or admin")
	}

	existing, err := s.store.GetByUsername(ctx, in.Username)
	if err != nil {
		return err
	}
	if existing != nil {
		return httpapi.ErrConflict("a user with this name already exists")
	}
	taken, err := s.store.EmailTaken(ctx, in.Email, 0)
	if err != nil {
		return err
	}
	if taken {
		return httpapi.ErrConflict("a user with this email already exists")
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return err
	}
	return s.store.Insert(ctx, in.Username, hash, role, in.Email)
}

// DeleteUser cascades comments, requests and rents with the user row in one
// transaction, so no orphaned reference survives.
func (s *Service) DeleteUser(ctx context.Context, username string) error {
	u, err := s.store.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	if u == nil {
		return httpapi.ErrNotFound("user not found")
	}
	return s.store.DeleteCascade(ctx, u.ID, func(ctx context.Context, tx db.DBTX) error {
		return rental.PurgeUserTx(ctx, tx, u.ID)
	})
}

func (s *Service) EditUser(ctx context.Context, in AdminEditUserIn) error {
	u, err := s.store.GetByUsername(ctx, in.Username)
	if err != nil {
		return err
	}
	if u == nil {
		return httpapi.ErrNotFound("user not found")
	}

	fields := map[string]string{}
	if in.NewUsername != "" {
		if err := auth.ValidateUsername(in.NewUsername); err != nil {
			return err
		}
		fields["username"] = in.NewUsername
	}
	if in.NewPassword != "" {
		if err := auth.ValidatePassword(in.NewPassword); err != nil {
			return err
		}
		hash, err := auth.HashPassword(in.NewPassword)
		if err != nil {
			return err
		}
		fields["password_hash"] = hash
	}
	if in.NewRole != "" {
		if !validRole(in.NewRole) {
			return httpapi.ErrInvalid("role must be reader, librarian or admin")
		}
		fields["role"] = in.NewRole
	}
	if in.NewEmail != "" {
		if err := auth.ValidateEmail(in.NewEmail); err != nil {
			return err
		}
		taken, err := s.store.EmailTaken(ctx, in.NewEmail, u.ID)
		if err != nil {
			return err
		}
		if taken {
			return httpapi.ErrConflict("a user with this email already exists")
		}
		fields["email"] = in.NewEmail
	}
	return s.store.UpdateFields(ctx, u.ID, fields)
}

func (s *Service) ChangeRole(ctx context.Context, username, newRole string) error {
	if !validRole(newRole) {
		return httpapi.ErrInvalid("role must be reader, librarian or admin")
	}
	u, err := s.store.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	if u == nil {
		return httpapi.ErrNotFound("user not found")
	}
	return s.store.UpdateFields(ctx, u.ID, map[string]string{"role": newRole})
}
