package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/joescharf/tracker/internal/models"
	"github.com/joescharf/tracker/internal/store"
)

const (
	minPasswordLength = 6
	defaultSessionTTL = 30 * 24 * time.Hour
)

// Directory holds accounts and issues session tokens. It keeps no
// per-client state and is safe for concurrent use, so the HTTP API shares
// one Directory across requests.
type Directory struct {
	store      store.Store
	hashCost   int
	sessionTTL time.Duration
	now        func() time.Time
}

// DirectoryOption configures a Directory.
type DirectoryOption func(*Directory)

// WithHashCost sets the bcrypt cost. Tests use bcrypt.MinCost.
func WithHashCost(cost int) DirectoryOption {
	return func(d *Directory) { d.hashCost = cost }
}

// WithSessionTTL sets how long issued tokens stay valid.
func WithSessionTTL(ttl time.Duration) DirectoryOption {
	return func(d *Directory) {
		if ttl > 0 {
			d.sessionTTL = ttl
		}
	}
}

// NewDirectory creates a Directory backed by s.
func NewDirectory(s store.Store, opts ...DirectoryOption) *Directory {
	d := &Directory{
		store:      s,
		hashCost:   bcrypt.DefaultCost,
		sessionTTL: defaultSessionTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func normalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}

// Register creates an account.
func (d *Directory) Register(ctx context.Context, email, password string) (*models.User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if len(password) < minPasswordLength {
		return nil, ErrWeakPassword
	}

	if _, err := d.store.GetUserByEmail(ctx, email); err == nil {
		return nil, ErrEmailInUse
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), d.hashCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &models.User{Email: email, PasswordHash: string(hash)}
	if err := d.store.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Verify checks an email/password pair.
func (d *Directory) Verify(ctx context.Context, email, password string) (*models.User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}

	u, err := d.store.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// IssueToken starts a session for u and returns its bearer token.
func (d *Directory) IssueToken(ctx context.Context, u *models.User) (string, error) {
	now := d.now().UTC()
	sess := &models.Session{
		Token:     uuid.NewString(),
		UserID:    u.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(d.sessionTTL),
	}
	if err := d.store.CreateSession(ctx, sess); err != nil {
		return "", err
	}
	return sess.Token, nil
}

// Resolve returns the user a token belongs to.
func (d *Directory) Resolve(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, ErrNotSignedIn
	}

	sess, err := d.store.GetSession(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrSessionInvalid
	}
	if err != nil {
		return nil, err
	}
	if !d.now().Before(sess.ExpiresAt) {
		_ = d.store.DeleteSession(ctx, token)
		return nil, ErrSessionInvalid
	}

	u, err := d.store.GetUser(ctx, sess.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrSessionInvalid
	}
	return u, err
}

// Revoke ends a session. Revoking an unknown token is not an error.
func (d *Directory) Revoke(ctx context.Context, token string) error {
	if err := d.store.DeleteSession(ctx, token); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return nil
}
