package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Postgres driver ("pgx")
	_ "github.com/mattn/go-sqlite3"    // SQLite driver

	"github.com/kerala-agrisage/agrisage/internal/logger"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Store struct {
	db     *sql.DB
	driver string
	log    *logger.Logger
	now    func() time.Time
}

// New opens the database for driver ("sqlite" or "postgres") and makes sure the schema exists.
func New(ctx context.Context, driver, dataSourceName string, log *logger.Logger) (*Store, error) {
	var sqlDriver string
	switch driver {
	case DriverSQLite:
		sqlDriver = "sqlite3"
	case DriverPostgres:
		sqlDriver = "pgx"
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(sqlDriver, dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if driver == DriverSQLite {
		// One connection keeps ":memory:" databases alive and avoids SQLITE_BUSY on writes.
		db.SetMaxOpenConns(1)
	}
	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if log == nil {
		log = logger.NewNop()
	}
	s := &Store{db: db, driver: driver, log: log.With("component", "store"), now: func() time.Time { return time.Now().UTC() }}
	if err = s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// rebind rewrites "?" placeholders to "$n" for Postgres.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
        id TEXT PRIMARY KEY,
        email TEXT UNIQUE NOT NULL,
        password_hash TEXT NOT NULL,
        created_at TIMESTAMP NOT NULL
    )`,
	`CREATE TABLE IF NOT EXISTS profiles (
        user_id TEXT PRIMARY KEY REFERENCES users (id),
        full_name TEXT NOT NULL DEFAULT '',
        phone TEXT NOT NULL DEFAULT '',
        location TEXT NOT NULL DEFAULT '',
        primary_crop TEXT NOT NULL DEFAULT '',
        created_at TIMESTAMP NOT NULL,
        updated_at TIMESTAMP NOT NULL
    )`,
	`CREATE TABLE IF NOT EXISTS chat_history (
        id TEXT PRIMARY KEY,
        user_id TEXT NOT NULL,
        topic TEXT NOT NULL,
        messages TEXT NOT NULL, -- JSON array of {role, content}
        created_at TIMESTAMP NOT NULL,
        updated_at TIMESTAMP NOT NULL
    )`,
	`CREATE INDEX IF NOT EXISTS idx_chat_history_user ON chat_history (user_id, updated_at)`,
	`CREATE TABLE IF NOT EXISTS farmer_queries (
        id TEXT PRIMARY KEY,
        user_id TEXT NOT NULL,
        query TEXT NOT NULL,
        response TEXT NOT NULL,
        language TEXT NOT NULL,
        created_at TIMESTAMP NOT NULL
    )`,
	`CREATE INDEX IF NOT EXISTS idx_farmer_queries_user ON farmer_queries (user_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS disease_analysis (
        id TEXT PRIMARY KEY,
        user_id TEXT NOT NULL,
        image_url TEXT NOT NULL,
        detected_disease TEXT NOT NULL,
        confidence DOUBLE PRECISION NOT NULL,
        severity TEXT NOT NULL,
        treatment_recommendations TEXT NOT NULL,
        prevention TEXT NOT NULL DEFAULT '',
        created_at TIMESTAMP NOT NULL
    )`,
	`CREATE INDEX IF NOT EXISTS idx_disease_analysis_user ON disease_analysis (user_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS risk_predictions (
        id TEXT PRIMARY KEY,
        user_id TEXT NOT NULL,
        crop TEXT NOT NULL,
        location TEXT NOT NULL,
        season TEXT NOT NULL,
        temperature DOUBLE PRECISION NOT NULL,
        humidity DOUBLE PRECISION NOT NULL,
        ph_level DOUBLE PRECISION NOT NULL,
        overall_risk TEXT NOT NULL,
        weather_risk TEXT NOT NULL,
        disease_risk TEXT NOT NULL,
        soil_risk TEXT NOT NULL,
        recommendations TEXT NOT NULL,
        confidence DOUBLE PRECISION NOT NULL,
        created_at TIMESTAMP NOT NULL
    )`,
	`CREATE INDEX IF NOT EXISTS idx_risk_predictions_user ON risk_predictions (user_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS user_badges (
        user_id TEXT NOT NULL,
        badge_key TEXT NOT NULL,
        earned_at TIMESTAMP NOT NULL,
        PRIMARY KEY (user_id, badge_key)
    )`,
	`CREATE TABLE IF NOT EXISTS advisory_chunks (
        id TEXT PRIMARY KEY,
        content TEXT NOT NULL,
        embedding_json TEXT
    )`,
}

func (s *Store) initSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
