package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/joescharf/tracker/internal/models"
)

// Provider is the identity provider as a client sees it.
type Provider interface {
	SignIn(ctx context.Context, email, password string) (*models.User, error)
	SignUp(ctx context.Context, email, password string) (*models.User, error)
	SignOut(ctx context.Context) error
	CurrentUser() *models.User

	// OnAuthStateChanged registers fn to be called with the current user
	// right away and again after every sign-in or sign-out (nil when
	// signed out). The returned func unregisters it.
	OnAuthStateChanged(fn func(*models.User)) (unsubscribe func())
}

// LocalProvider implements Provider on top of a Directory. The session
// token is kept in a file so separate invocations share one sign-in.
type LocalProvider struct {
	dir       *Directory
	tokenPath string

	mu        sync.Mutex
	current   *models.User
	token     string
	listeners map[int]func(*models.User)
	nextID    int
}

// NewLocalProvider creates a provider and restores the session saved at
// tokenPath, if it is still valid. A stale token file is removed.
func NewLocalProvider(ctx context.Context, dir *Directory, tokenPath string) (*LocalProvider, error) {
	p := &LocalProvider{
		dir:       dir,
		tokenPath: tokenPath,
		listeners: make(map[int]func(*models.User)),
	}

	data, err := os.ReadFile(tokenPath)
	if errors.Is(err, os.ErrNotExist) {
		return p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}

	token := strings.TrimSpace(string(data))
	u, err := dir.Resolve(ctx, token)
	if err != nil {
		var authErr *Error
		if errors.As(err, &authErr) {
			_ = os.Remove(tokenPath)
			return p, nil
		}
		return nil, err
	}
	p.current = u
	p.token = token
	return p, nil
}

// SignIn verifies the credentials and starts a session.
func (p *LocalProvider) SignIn(ctx context.Context, email, password string) (*models.User, error) {
	u, err := p.dir.Verify(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return p.startSession(ctx, u)
}

// SignUp registers an account and signs it in.
func (p *LocalProvider) SignUp(ctx context.Context, email, password string) (*models.User, error) {
	u, err := p.dir.Register(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return p.startSession(ctx, u)
}

func (p *LocalProvider) startSession(ctx context.Context, u *models.User) (*models.User, error) {
	token, err := p.dir.IssueToken(ctx, u)
	if err != nil {
		return nil, err
	}
	if err := p.saveToken(token); err != nil {
		_ = p.dir.Revoke(ctx, token)
		return nil, err
	}

	p.mu.Lock()
	old := p.token
	p.current = u
	p.token = token
	p.mu.Unlock()

	if old != "" && old != token {
		_ = p.dir.Revoke(ctx, old)
	}
	p.emit(u)
	return u, nil
}

// SignOut ends the current session. Signing out while signed out is a no-op.
func (p *LocalProvider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	token := p.token
	wasSignedIn := p.current != nil
	p.current = nil
	p.token = ""
	p.mu.Unlock()

	if token != "" {
		if err := p.dir.Revoke(ctx, token); err != nil {
			return err
		}
	}
	if err := os.Remove(p.tokenPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	if wasSignedIn {
		p.emit(nil)
	}
	return nil
}

// CurrentUser returns the signed-in user or nil.
func (p *LocalProvider) CurrentUser() *models.User {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Token returns the bearer token of the current session.
func (p *LocalProvider) Token() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.token
}

// OnAuthStateChanged implements Provider.
func (p *LocalProvider) OnAuthStateChanged(fn func(*models.User)) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	current := p.current
	p.mu.Unlock()

	fn(current)

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.listeners, id)
	}
}

func (p *LocalProvider) emit(u *models.User) {
	p.mu.Lock()
	fns := make([]func(*models.User), 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(u)
	}
}

func (p *LocalProvider) saveToken(token string) error {
	if err := os.MkdirAll(filepath.Dir(p.tokenPath), 0o700); err != nil {
		return fmt.Errorf("create session directory: %w", err)
	}
	if err := os.WriteFile(p.tokenPath, []byte(token+"\n"), 0o600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	return nil
}
