package credentials

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

func newMockStore(t *testing.T, dialect Dialect) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewSQLStore(db, dialect, nil), mock
}

func TestSQLStoreVerifyBackendError(t *testing.T) {
	store, mock := newMockStore(t, DialectMySQL)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT 1 FROM users WHERE username = ? AND password = ?`)).
		WithArgs("alice", "secret").
		WillReturnError(errors.New("connection reset"))

	ok, err := store.VerifyCredentials(context.Background(), "alice", "secret")
	if ok || !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, ok=%v err=%v", ok, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSQLStorePostgresPlaceholders(t *testing.T) {
	store, mock := newMockStore(t, DialectPostgres)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT 1 FROM users WHERE username = $1 AND password = $2`)).
		WithArgs("alice", "secret").
		WillReturnRows(sqlmock.NewRows([]string{"one"}).AddRow(1))

	ok, err := store.VerifyCredentials(context.Background(), "alice", "secret")
	if err != nil || !ok {
		t.Fatalf("expected match, ok=%v err=%v", ok, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSQLStoreRegisterDriverDuplicates(t *testing.T) {
	cases := map[Dialect]error{
		DialectPostgres: &pq.Error{Code: "23505"},
		DialectMySQL:    &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"},
	}
	for dialect, driverErr := range cases {
		store, mock := newMockStore(t, dialect)
		mock.ExpectExec(`INSERT INTO users`).WillReturnError(driverErr)

		if err := store.Register(context.Background(), "alice", "secret"); !errors.Is(err, ErrUserExists) {
			t.Fatalf("%s: expected ErrUserExists, got %v", dialect, err)
		}
	}
}

func TestSQLStoreRegisterOtherFailure(t *testing.T) {
	store, mock := newMockStore(t, DialectMySQL)
	mock.ExpectExec(`INSERT INTO users`).WillReturnError(&mysql.MySQLError{Number: 1146, Message: "Table doesn't exist"})

	err := store.Register(context.Background(), "alice", "secret")
	if !errors.Is(err, ErrStoreUnavailable) || errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestSQLStoreCountAndListErrors(t *testing.T) {
	store, mock := newMockStore(t, DialectSQLite)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM users`)).WillReturnError(errors.New("disk I/O error"))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT username FROM users ORDER BY id`)).WillReturnError(errors.New("disk I/O error"))

	if _, err := store.CountUsers(context.Background()); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("count: expected ErrStoreUnavailable, got %v", err)
	}
	if _, err := store.ListUsernames(context.Background()); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("list: expected ErrStoreUnavailable, got %v", err)
	}
}

func TestSQLStoreInfoMySQL(t *testing.T) {
	store, mock := newMockStore(t, DialectMySQL)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT VERSION()`)).
		WillReturnRows(sqlmock.NewRows([]string{"v"}).AddRow("8.0.36"))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT DATABASE()`)).
		WillReturnRows(sqlmock.NewRows([]string{"db"}).AddRow("adminapp"))
	mock.ExpectQuery(`FROM information_schema.tables`).
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}).AddRow("users"))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM users`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	info, err := store.Info(context.Background())
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	if info.Version != "8.0.36" || info.CurrentDatabase != "adminapp" || info.TotalUsers != 4 {
		t.Fatalf("unexpected info %+v", info)
	}
	if len(info.Tables) != 1 || info.Tables[0] != "users" {
		t.Fatalf("unexpected tables %v", info.Tables)
	}
}

func TestSQLStoreConnectRetries(t *testing.T) {
	store, mock := newMockStore(t, DialectMySQL)
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	mock.ExpectPing()

	if err := store.connect(context.Background(), 5, time.Millisecond); err != nil {
		t.Fatalf("expected third attempt to succeed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSQLStoreConnectGivesUp(t *testing.T) {
	store, mock := newMockStore(t, DialectMySQL)
	for i := 0; i < 3; i++ {
		mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	}

	err := store.connect(context.Background(), 3, time.Millisecond)
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestSQLStoreConnectStopsOnContext(t *testing.T) {
	store, mock := newMockStore(t, DialectMySQL)
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := store.connect(ctx, 30, time.Hour)
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestParseDialect(t *testing.T) {
	for in, want := range map[string]Dialect{
		"sqlite": DialectSQLite, "SQLite3": DialectSQLite,
		"postgres": DialectPostgres, "postgresql": DialectPostgres, "pg": DialectPostgres,
		"mysql": DialectMySQL,
	} {
		got, err := ParseDialect(in)
		if err != nil || got != want {
			t.Fatalf("%s: expected %s, got %s err=%v", in, want, got, err)
		}
	}
	if _, err := ParseDialect("oracle"); err == nil {
		t.Fatal("expected unsupported dialect error")
	}
}
