package store

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

const (
	busyTimeoutMS = 5000

	defaultSQLiteMaxOpenConns = 1
	defaultRemoteMaxOpenConns = 4
	defaultConnMaxLifetime    = 5 * time.Minute

	maxOpenConnsEnvKey    = "FILERECON_DB_MAX_OPEN_CONNS"
	connMaxLifetimeEnvKey = "FILERECON_DB_CONN_MAX_LIFETIME"
)

// sqlitePragmas are applied by the driver on every connection it opens.
var sqlitePragmas = []string{
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"foreign_keys(1)",
	fmt.Sprintf("busy_timeout(%d)", busyTimeoutMS),
}

// Options selects the database backing the file and patient tables.
type Options struct {
	Driver string
	// Path is the SQLite database file. Ignored for other drivers.
	Path string
	// DSN is the postgres or mysql connection string.
	DSN string
}

// Store wraps the clinic database.
type Store struct {
	db      *sql.DB
	dialect dialect
}

// Open connects to the configured database. SQLite databases are migrated to
// the bundled schema; postgres and mysql tables belong to the clinic
// application and are used as they are.
func Open(opts Options) (*Store, error) {
	d, err := dialectFor(opts.Driver)
	if err != nil {
		return nil, err
	}

	dsn, err := d.dsn(opts)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(d.driverName, dsn)
	if err != nil {
		return nil, err
	}

	if err := configureDB(db, d); err != nil {
		_ = db.Close()
		return nil, err
	}
	if d.name == DriverSQLite {
		if err := runMigrations(db); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	return &Store{db: db, dialect: d}, nil
}

// Driver reports the driver name the store was opened with.
func (s *Store) Driver() string {
	return s.dialect.name
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func configureDB(db *sql.DB, d dialect) error {
	maxOpen := defaultRemoteMaxOpenConns
	if d.name == DriverSQLite {
		// Pragmas come from the DSN so every new connection gets them.
		maxOpen = defaultSQLiteMaxOpenConns
	} else {
		maxOpen = intFromEnv(maxOpenConnsEnvKey, maxOpen)
	}

	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen)
	db.SetConnMaxLifetime(durationFromEnv(connMaxLifetimeEnvKey, defaultConnMaxLifetime))

	return nil
}

func sqliteDSN(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("db path is required")
	}
	query := url.Values{}
	for _, pragma := range sqlitePragmas {
		query.Add("_pragma", pragma)
	}
	u := url.URL{Scheme: "file", Path: path, RawQuery: query.Encode()}
	return u.String(), nil
}

func intFromEnv(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func durationFromEnv(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	if seconds, err := strconv.Atoi(raw); err == nil {
		if seconds <= 0 {
			return fallback
		}
		return time.Duration(seconds) * time.Second
	}
	value, err := time.ParseDuration(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}
