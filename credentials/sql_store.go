package credentials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

// SQLStore is a Provider and Directory backed by a users table.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	logger  logrus.FieldLogger
}

// DBInfo describes the connected database.
type DBInfo struct {
	Version         string   `json:"database_version"`
	CurrentDatabase string   `json:"current_database"`
	Tables          []string `json:"tables"`
	TotalUsers      int      `json:"total_users"`
}

// OpenConfig controls Open.
type OpenConfig struct {
	Dialect         Dialect
	DSN             string
	ConnectAttempts int
	ConnectInterval time.Duration
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLStore wraps an open handle. A nil logger discards output.
func NewSQLStore(db *sql.DB, dialect Dialect, logger logrus.FieldLogger) *SQLStore {
	if logger == nil {
		discard := logrus.New()
		discard.Out = io.Discard
		logger = discard
	}
	return &SQLStore{
		db:      db,
		dialect: dialect,
		logger:  logger.WithField("component", "credentials"),
	}
}

// Open connects to the database, pinging up to cfg.ConnectAttempts times with
// cfg.ConnectInterval between attempts. It gives up early when ctx ends.
func Open(ctx context.Context, cfg OpenConfig, logger logrus.FieldLogger) (*SQLStore, error) {
	if cfg.ConnectAttempts <= 0 {
		cfg.ConnectAttempts = 1
	}

	db, err := sql.Open(cfg.Dialect.DriverName(), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Dialect, err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	store := NewSQLStore(db, cfg.Dialect, logger)
	if err := store.connect(ctx, cfg.ConnectAttempts, cfg.ConnectInterval); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLStore) connect(ctx context.Context, attempts int, interval time.Duration) error {
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		s.logger.WithFields(logrus.Fields{"attempt": attempt, "max_attempts": attempts}).Info("connecting to database")

		lastErr = s.db.PingContext(ctx)
		if lastErr == nil {
			s.logger.Info("database connected")
			return nil
		}
		s.logger.WithError(lastErr).Warn("database connection failed")

		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, ctx.Err())
		case <-time.After(interval):
		}
	}
	return fmt.Errorf("%w: giving up after %d attempts: %v", ErrStoreUnavailable, attempts, lastErr)
}

// DB exposes the underlying handle.
func (s *SQLStore) DB() *sql.DB { return s.db }

// Dialect reports the configured dialect.
func (s *SQLStore) Dialect() Dialect { return s.dialect }

// Close closes the underlying handle.
func (s *SQLStore) Close() error { return s.db.Close() }

// Migrate creates the users table if it does not exist.
func (s *SQLStore) Migrate(ctx context.Context) error {
	s.logger.Debug("migrate users table")
	if _, err := s.db.ExecContext(ctx, s.dialect.createUsersTable()); err != nil {
		return fmt.Errorf("%w: migrate: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Ping checks connectivity.
func (s *SQLStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Register inserts a new user. A taken username yields ErrUserExists.
func (s *SQLStore) Register(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return ErrInvalidInput
	}
	_, err := s.db.ExecContext(ctx,
		s.dialect.rebind(`INSERT INTO users (username, password) VALUES (?, ?)`),
		username, password,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrUserExists
		}
		return fmt.Errorf("%w: register: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// VerifyCredentials implements Provider.
func (s *SQLStore) VerifyCredentials(ctx context.Context, username, password string) (bool, error) {
	if username == "" || password == "" {
		return false, nil
	}
	var one int
	err := s.db.QueryRowContext(ctx,
		s.dialect.rebind(`SELECT 1 FROM users WHERE username = ? AND password = ?`),
		username, password,
	).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("%w: verify: %v", ErrStoreUnavailable, err)
	}
	return true, nil
}

// CountUsers implements Directory.
func (s *SQLStore) CountUsers(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count users: %v", ErrStoreUnavailable, err)
	}
	return n, nil
}

// ListUsernames implements Directory. Names are returned in registration order.
func (s *SQLStore) ListUsernames(ctx context.Context) ([]string, error) {
	names, err := s.queryStrings(ctx, `SELECT username FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("%w: list users: %v", ErrStoreUnavailable, err)
	}
	return names, nil
}

// Info collects the fields reported by the db-info endpoint.
func (s *SQLStore) Info(ctx context.Context) (*DBInfo, error) {
	info := &DBInfo{}
	if err := s.db.QueryRowContext(ctx, s.dialect.versionQuery()).Scan(&info.Version); err != nil {
		return nil, fmt.Errorf("%w: version: %v", ErrStoreUnavailable, err)
	}
	if err := s.db.QueryRowContext(ctx, s.dialect.currentDatabaseQuery()).Scan(&info.CurrentDatabase); err != nil {
		return nil, fmt.Errorf("%w: current database: %v", ErrStoreUnavailable, err)
	}
	tables, err := s.queryStrings(ctx, s.dialect.tablesQuery())
	if err != nil {
		return nil, fmt.Errorf("%w: tables: %v", ErrStoreUnavailable, err)
	}
	info.Tables = tables

	count, err := s.CountUsers(ctx)
	if err != nil {
		return nil, err
	}
	info.TotalUsers = count
	return info, nil
}

func (s *SQLStore) queryStrings(ctx context.Context, query string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
