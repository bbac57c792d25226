package credentials

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Dialect selects SQL flavour and driver.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
)

// ParseDialect normalizes a dialect name. "sqlite3", "postgresql" and
// "pg" are accepted as aliases.
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	case "postgres", "postgresql", "pg":
		return DialectPostgres, nil
	case "mysql":
		return DialectMySQL, nil
	default:
		return "", fmt.Errorf("unsupported database dialect %q", name)
	}
}

// DriverName returns the database/sql driver registered for d.
func (d Dialect) DriverName() string {
	return string(d)
}

// rebind rewrites ? placeholders into $n for PostgreSQL.
func (d Dialect) rebind(query string) string {
	if d != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func (d Dialect) createUsersTable() string {
	switch d {
	case DialectPostgres:
		return `CREATE TABLE IF NOT EXISTS users (
	id SERIAL PRIMARY KEY,
	username VARCHAR(80) NOT NULL UNIQUE,
	password VARCHAR(120) NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`
	case DialectMySQL:
		return `CREATE TABLE IF NOT EXISTS users (
	id INT AUTO_INCREMENT PRIMARY KEY,
	username VARCHAR(80) NOT NULL UNIQUE,
	password VARCHAR(120) NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`
	default:
		return `CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username VARCHAR(80) NOT NULL UNIQUE,
	password VARCHAR(120) NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`
	}
}

func (d Dialect) versionQuery() string {
	if d == DialectSQLite {
		return `SELECT sqlite_version()`
	}
	return `SELECT VERSION()`
}

func (d Dialect) currentDatabaseQuery() string {
	switch d {
	case DialectPostgres:
		return `SELECT current_database()`
	case DialectMySQL:
		return `SELECT DATABASE()`
	default:
		return `SELECT 'main'`
	}
}

func (d Dialect) tablesQuery() string {
	switch d {
	case DialectPostgres:
		return `SELECT table_name FROM information_schema.tables WHERE table_schema = current_schema() ORDER BY table_name`
	case DialectMySQL:
		return `SELECT table_name FROM information_schema.tables WHERE table_schema = DATABASE() ORDER BY table_name`
	default:
		return `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`
	}
}

// isUniqueViolation reports whether err is the driver's duplicate-key error.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}
