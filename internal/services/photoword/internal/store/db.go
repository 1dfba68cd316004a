package store

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/hiroshi75/photoword/internal/services/photoword/db"
	"github.com/lib/pq"
	sqlite "github.com/mattn/go-sqlite3"
)

type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

const errUniqueViolation pq.ErrorCode = "23505"

type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DB       string
	SSLMode  string
}

func (c PostgresConfig) DSN() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + c.Port,
		Path:     "/" + c.DB,
		RawQuery: "sslmode=" + url.QueryEscape(sslMode),
	}
	return u.String()
}

func NewPostgresDB(cfg PostgresConfig) (*sql.DB, error) {
	return OpenPostgres(cfg.DSN())
}

func OpenPostgres(dsn string) (*sql.DB, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return conn, nil
}

// NewSQLiteDB opens (creating if needed) the database file at path. SQLite
// allows a single writer, so the pool is limited to one connection.
func NewSQLiteDB(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return conn, nil
}

// Migrate applies all pending migrations for dialect. The migrator is not
// closed because that would close conn as well.
func Migrate(conn *sql.DB, dialect Dialect) error {
	var (
		driver database.Driver
		err    error
	)

	switch dialect {
	case Postgres:
		driver, err = postgres.WithInstance(conn, &postgres.Config{})
	case SQLite:
		driver, err = sqlite3.WithInstance(conn, &sqlite3.Config{})
	default:
		return fmt.Errorf("unknown dialect %q", dialect)
	}
	if err != nil {
		return fmt.Errorf("create %s migration driver: %w", dialect, err)
	}

	src, err := iofs.New(db.Migrations, "migrations/"+string(dialect))
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, string(dialect), driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == errUniqueViolation
	}

	var sqliteErr sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite.ErrConstraintUnique
	}

	return false
}
