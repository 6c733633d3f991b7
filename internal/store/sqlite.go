package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/oklog/ulid/v2"

	"github.com/joescharf/tracker/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	tableIssues   = "issues"
	tableUsers    = "users"
	tableSessions = "sessions"

	colID           = "id"
	colTitle        = "title"
	colDescription  = "description"
	colPriority     = "priority"
	colAssignedTo   = "assigned_to"
	colStatus       = "status"
	colCreatedBy    = "created_by"
	colCreatedAt    = "created_at"
	colEmail        = "email"
	colPasswordHash = "password_hash"
	colToken        = "token"
	colUserID       = "user_id"
	colExpiresAt    = "expires_at"

	defaultPollInterval = time.Second
)

var (
	dialect = goqu.Dialect("sqlite3")

	issueColumns = []any{colID, colTitle, colDescription, colPriority, colAssignedTo, colStatus, colCreatedBy, colCreatedAt}
	userColumns  = []any{colID, colEmail, colPasswordHash, colCreatedAt}
)

// Option configures a SQLiteStore.
type Option func(*SQLiteStore)

// WithPollInterval sets how often the store checks the database file for
// commits made by other processes while subscriptions are open.
func WithPollInterval(d time.Duration) Option {
	return func(s *SQLiteStore) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithLogger sets the logger for diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *SQLiteStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the source of the server timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *SQLiteStore) {
		if now != nil {
			s.now = now
		}
	}
}

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, no CGO).
type SQLiteStore struct {
	db           *sql.DB
	hub          *hub
	logger       *slog.Logger
	now          func() time.Time
	pollInterval time.Duration

	watchOnce   sync.Once
	watchCtx    context.Context
	watchCancel context.CancelFunc
	watchDone   chan struct{}
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
func NewSQLiteStore(dbPath string, opts ...Option) (*SQLiteStore, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite only supports one concurrent writer. Limiting to a single connection
	// serializes all DB access through Go's connection pool, preventing
	// "database is locked" errors from concurrent subscriptions and HTTP requests.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for concurrent reads from other processes
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	// Set busy timeout so concurrent writes wait instead of failing immediately
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:           db,
		hub:          newHub(),
		logger:       slog.Default(),
		now:          time.Now,
		pollInterval: defaultPollInterval,
		watchDone:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.watchCtx, s.watchCancel = context.WithCancel(context.Background())
	return s, nil
}

// newULID generates a new ULID string.
func newULID() string {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(entropy, 0)).String()
}

// Migrate runs all embedded SQL migration files in order.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()

		var count int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}

	return nil
}

// Close stops all live subscriptions and closes the database connection.
func (s *SQLiteStore) Close() error {
	s.watchCancel()
	s.watchOnce.Do(func() { close(s.watchDone) })
	<-s.watchDone
	for _, sub := range s.hub.all() {
		sub.Stop()
	}
	return s.db.Close()
}

// --- Issues ---

func (s *SQLiteStore) AddIssue(ctx context.Context, issue *models.Issue) error {
	if issue.ID == "" {
		issue.ID = newULID()
	}
	if issue.Status == "" {
		issue.Status = models.IssueStatusOpen
	}
	if issue.Priority == "" {
		issue.Priority = models.DefaultPriority
	}
	created := s.now().UTC()

	query, args, err := dialect.Insert(tableIssues).Rows(goqu.Record{
		colID:          issue.ID,
		colTitle:       issue.Title,
		colDescription: issue.Description,
		colPriority:    string(issue.Priority),
		colAssignedTo:  issue.AssignedTo,
		colStatus:      string(issue.Status),
		colCreatedBy:   issue.CreatedBy,
		colCreatedAt:   created.UnixNano(),
	}).Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("build insert issue: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("add issue: %w", err)
	}
	issue.CreatedAt = &created

	s.hub.notify()
	return nil
}

func (s *SQLiteStore) GetIssue(ctx context.Context, id string) (*models.Issue, error) {
	query, args, err := dialect.From(tableIssues).
		Select(issueColumns...).
		Where(goqu.C(colID).Eq(id)).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build get issue: %w", err)
	}

	issue, err := scanIssue(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("issue %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get issue: %w", err)
	}
	return issue, nil
}

// ListIssues returns the issues matching q, newest first. The zero query
// reads the whole collection.
func (s *SQLiteStore) ListIssues(ctx context.Context, q IssueQuery) ([]*models.Issue, error) {
	ds := dialect.From(tableIssues).Select(issueColumns...)
	if q.Status != "" {
		ds = ds.Where(goqu.C(colStatus).Eq(string(q.Status)))
	}
	query, args, err := ds.Order(goqu.C(colCreatedAt).Desc(), goqu.C(colID).Desc()).Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list issues: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}
	defer func() { _ = rows.Close() }()

	issues := []*models.Issue{}
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, fmt.Errorf("scan issue: %w", err)
		}
		issues = append(issues, issue)
	}
	return issues, rows.Err()
}

func (s *SQLiteStore) UpdateIssue(ctx context.Context, id string, patch IssuePatch) error {
	if patch.Empty() {
		return nil
	}

	rec := goqu.Record{}
	if patch.Title != nil {
		rec[colTitle] = *patch.Title
	}
	if patch.Description != nil {
		rec[colDescription] = *patch.Description
	}
	if patch.Priority != nil {
		rec[colPriority] = string(*patch.Priority)
	}
	if patch.AssignedTo != nil {
		rec[colAssignedTo] = *patch.AssignedTo
	}
	if patch.Status != nil {
		rec[colStatus] = string(*patch.Status)
	}

	query, args, err := dialect.Update(tableIssues).Set(rec).Where(goqu.C(colID).Eq(id)).Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("build update issue: %w", err)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update issue: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("issue %s: %w", id, ErrNotFound)
	}

	s.hub.notify()
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIssue(row rowScanner) (*models.Issue, error) {
	issue := &models.Issue{}
	var priority, status string
	var createdAt sql.NullInt64

	if err := row.Scan(&issue.ID, &issue.Title, &issue.Description, &priority, &issue.AssignedTo,
		&status, &issue.CreatedBy, &createdAt); err != nil {
		return nil, err
	}

	issue.Priority = models.IssuePriority(priority)
	issue.Status = models.IssueStatus(status)
	if createdAt.Valid {
		t := time.Unix(0, createdAt.Int64).UTC()
		issue.CreatedAt = &t
	}
	return issue, nil
}

// --- Users ---

func (s *SQLiteStore) CreateUser(ctx context.Context, u *models.User) error {
	if u.ID == "" {
		u.ID = newULID()
	}
	u.CreatedAt = s.now().UTC()

	query, args, err := dialect.Insert(tableUsers).Rows(goqu.Record{
		colID:           u.ID,
		colEmail:        u.Email,
		colPasswordHash: u.PasswordHash,
		colCreatedAt:    u.CreatedAt.UnixNano(),
	}).Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("build insert user: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	return s.getUserBy(ctx, goqu.C(colID).Eq(id), id)
}

// GetUserByEmail looks a user up by email, case-insensitively.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUserBy(ctx, goqu.C(colEmail).Eq(email), email)
}

func (s *SQLiteStore) getUserBy(ctx context.Context, cond goqu.Expression, ref string) (*models.User, error) {
	query, args, err := dialect.From(tableUsers).Select(userColumns...).Where(cond).Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build get user: %w", err)
	}

	u := &models.User{}
	var createdAt int64
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&u.ID, &u.Email, &u.PasswordHash, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", ref, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	u.CreatedAt = time.Unix(0, createdAt).UTC()
	return u, nil
}

// --- Sessions ---

func (s *SQLiteStore) CreateSession(ctx context.Context, sess *models.Session) error {
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = s.now().UTC()
	}

	query, args, err := dialect.Insert(tableSessions).Rows(goqu.Record{
		colToken:     sess.Token,
		colUserID:    sess.UserID,
		colCreatedAt: sess.CreatedAt.UnixNano(),
		colExpiresAt: sess.ExpiresAt.UnixNano(),
	}).Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("build insert session: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetSession(ctx context.Context, token string) (*models.Session, error) {
	query, args, err := dialect.From(tableSessions).
		Select(colToken, colUserID, colCreatedAt, colExpiresAt).
		Where(goqu.C(colToken).Eq(token)).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build get session: %w", err)
	}

	sess := &models.Session{}
	var createdAt, expiresAt int64
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&sess.Token, &sess.UserID, &createdAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	sess.CreatedAt = time.Unix(0, createdAt).UTC()
	sess.ExpiresAt = time.Unix(0, expiresAt).UTC()
	return sess, nil
}

func (s *SQLiteStore) DeleteSession(ctx context.Context, token string) error {
	query, args, err := dialect.Delete(tableSessions).Where(goqu.C(colToken).Eq(token)).Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("build delete session: %w", err)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("session: %w", ErrNotFound)
	}
	return nil
}
