package auth

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"regexp"
	"time"
	"unicode"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"golang.org/x/crypto/bcrypt"

	"librarium-backend/internal/platform/httpapi"
)

const (
	tokenTTL      = 24 * time.Hour
	resetTokenTTL = time.Hour
)

var (
	usernameRe = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	emailRe    = regexp.MustCompile(`^[^@]+@[^@]+\.[^@]+$`)
)

// Mailer is the email delivery collaborator, used only for reset links.
type Mailer interface {
	SendPasswordReset(ctx context.Context, to, link string) error
}

type IDGen interface {
	New() (string, error)
}

type ulidGen struct{}

func (ulidGen) New() (string, error) {
	t := time.Now().UTC()
	id, err := ulid.New(ulid.Timestamp(t), ulid.Monotonic(rand.Reader, 0))
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

type Service struct {
	store    AccountStore
	secret   []byte
	mailer   Mailer
	resetURL string // base URL the emailed reset link points at
	tokens   IDGen
}

func NewService(sdb *sql.DB, secret []byte, mailer Mailer, resetURL string) *Service {
	return &Service{
		store:    NewStore(sdb),
		secret:   secret,
		mailer:   mailer,
		resetURL: resetURL,
		tokens:   ulidGen{},
	}
}

// ValidateUsername enforces 3-12 chars of latin letters, digits and underscore.
func ValidateUsername(username string) error {
	if len(username) < 3 || len(username) > 12 || !usernameRe.MatchString(username) {
		return httpapi.ErrInvalid("username must be 3-12 characters: latin letters, digits and _")
	}
	return nil
}

// ValidatePassword enforces length plus one of each character class.
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return httpapi.ErrInvalid("password must be at least 8 characters")
	}
	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		default:
			special = true
		}
	}
	if !upper {
		return httpapi.ErrInvalid("password needs at least one uppercase letter")
	}
	if !lower {
		return httpapi.ErrInvalid("password needs at least one lowercase letter")
	}
	if !digit {
		return httpapi.ErrInvalid("password needs at least one digit")
	}
	if !special {
		return httpapi.ErrInvalid("password needs at least one special character")
	}
	return nil
}

func ValidateEmail(email string) error {
	if len(email) < 5 || len(email) > 64 || !emailRe.MatchString(email) {
		return httpapi.ErrInvalid("invalid email")
	}
	return nil
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Register creates a reader account after full credential validation.
func (s *Service) Register(ctx context.Context, username, password, email string) error {
	if err := ValidateUsername(username); err != nil {
		return err
	}
	if err := ValidatePassword(password); err != nil {
		return err
	}
	if err := ValidateEmail(email); err != nil {
		return err
	}

	existing, err := s.store.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	if existing != nil {
		return httpapi.ErrConflict("user already exists")
	}
	existing, err = s.store.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if existing != nil {
		return httpapi.ErrConflict("a user with this email already exists")
	}

	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	return s.store.Create(ctx, &Account{
		Username:     username,
		PasswordHash: hash,
		Role:         RoleReader,
		Email:        email,
	})
}

// Login exchanges credentials for a signed bearer token.
func (s *Service) Login(ctx context.Context, username, password string) (token, role string, err error) {
	acct, err := s.store.GetByUsername(ctx, username)
	if err != nil {
		return "", "", err
	}
	if acct == nil {
		return "", "", httpapi.ErrInvalid("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)); err != nil {
		return "", "", httpapi.ErrInvalid("invalid credentials")
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  acct.Username,
		"role": acct.Role,
		"exp":  time.Now().Add(tokenTTL).Unix(),
	})
	signed, err := t.SignedString(s.secret)
	if err != nil {
		return "", "", err
	}
	return signed, acct.Role, nil
}

func (s *Service) ChangePassword(ctx context.Context, username, oldPassword, newPassword string) error {
	acct, err := s.store.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	if acct == nil {
		return httpapi.ErrNotFound("user not found")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(oldPassword)); err != nil {
		return httpapi.ErrInvalid("old password is incorrect")
	}
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.store.UpdatePassword(ctx, acct.ID, hash)
}

// RequestPasswordReset persists an expiring token and mails the reset link.
// The token row is committed before the mail goes out, so a delivery failure
// leaves a usable token but no inconsistent state.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	acct, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if acct == nil {
		return httpapi.ErrNotFound("no user with this email")
	}

	token, err := s.tokens.New()
	if err != nil {
		return err
	}
	if err := s.store.SaveResetToken(ctx, token, acct.ID, time.Now().UTC().Add(resetTokenTTL)); err != nil {
		return err
	}

	link := fmt.Sprintf("%s/reset-password/%s", s.resetURL, token)
	if err := s.mailer.SendPasswordReset(ctx, acct.Email, link); err != nil {
		return httpapi.ErrInternal(fmt.Sprintf("failed to send email: %v", err))
	}
	return nil
}

func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.store.ConsumeResetToken(ctx, token, hash, time.Now().UTC())
}
