// Package sqlite persists cleaned shots in a local SQLite database so the
// dashboard and ad-hoc queries can read them without re-parsing sessions.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/couchcryptid/launch-monitor-etl/internal/domain"
)

// Store is a pipeline sink and shot source backed by one SQLite file.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open connects to the database at path and creates the schema if needed.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite allows one writer; a single connection avoids "database is locked".
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	var cols strings.Builder
	for _, f := range domain.OptionalFields() {
		fmt.Fprintf(&cols, "\n\t\t%s REAL,", f)
	}
	createShots := `CREATE TABLE IF NOT EXISTS shots (
		id TEXT PRIMARY KEY,
		club_raw TEXT,
		club TEXT NOT NULL,
		category TEXT,
		session_file TEXT,
		line INTEGER,
		shot_time TEXT,
		ball_speed REAL NOT NULL,
		carry REAL NOT NULL,` + cols.String() + `
		estimated TEXT,
		processed_at TEXT
	);`
	createClubIndex := `CREATE INDEX IF NOT EXISTS idx_shots_club ON shots (club);`

	if _, err := s.db.ExecContext(ctx, createShots); err != nil {
		return fmt.Errorf("create shots table: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, createClubIndex); err != nil {
		return fmt.Errorf("create club index: %w", err)
	}
	return nil
}

func columns() []string {
	cols := []string{"id", "club_raw", "club", "category", "session_file", "line", "shot_time", "ball_speed", "carry"}
	cols = append(cols, domain.OptionalFields()...)
	return append(cols, "estimated", "processed_at")
}

// Reset empties the table at the start of a pipeline run. The store mirrors
// the latest cleaned dataset, so shots from deleted session files go away.
func (s *Store) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM shots"); err != nil {
		return fmt.Errorf("clear shots: %w", err)
	}
	return nil
}

// Load upserts shots keyed by ID inside one transaction, so re-running the
// pipeline over the same sessions leaves one row per shot.
func (s *Store) Load(ctx context.Context, shots []domain.Shot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	cols := columns()
	query := fmt.Sprintf("INSERT OR REPLACE INTO shots (%s) VALUES (%s)",
		strings.Join(cols, ", "), strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "))
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, shot := range shots {
		if _, err := stmt.ExecContext(ctx, values(shot)...); err != nil {
			return fmt.Errorf("insert shot %s: %w", shot.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func values(shot domain.Shot) []any {
	var shotTime any
	if !shot.ShotTime.IsZero() {
		shotTime = shot.ShotTime.UTC().Format(time.RFC3339)
	}
	vals := []any{
		shot.ID, shot.ClubRaw, string(shot.Club), string(shot.Category),
		shot.SessionFile, shot.Line, shotTime, shot.BallSpeed, shot.Carry,
	}
	for _, f := range domain.OptionalFields() {
		if v, ok := shot.Metric(f); ok {
			vals = append(vals, v)
		} else {
			vals = append(vals, nil)
		}
	}
	return append(vals, strings.Join(shot.Estimated, ","), shot.ProcessedAt.UTC().Format(time.RFC3339Nano))
}

// Shots returns every stored shot ordered by session file and line.
func (s *Store) Shots(ctx context.Context) ([]domain.Shot, error) {
	query := fmt.Sprintf("SELECT %s FROM shots ORDER BY session_file, line", strings.Join(columns(), ", "))
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query shots: %w", err)
	}
	defer rows.Close()

	optional := domain.OptionalFields()
	var shots []domain.Shot
	for rows.Next() {
		var (
			shot        domain.Shot
			club, cat   string
			clubRaw     sql.NullString
			session     sql.NullString
			line        sql.NullInt64
			shotTime    sql.NullString
			estimated   sql.NullString
			processedAt sql.NullString
		)
		opts := make([]sql.NullFloat64, len(optional))
		dest := []any{&shot.ID, &clubRaw, &club, &cat, &session, &line, &shotTime, &shot.BallSpeed, &shot.Carry}
		for i := range opts {
			dest = append(dest, &opts[i])
		}
		dest = append(dest, &estimated, &processedAt)

		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan shot: %w", err)
		}

		shot.ClubRaw = clubRaw.String
		shot.Club = domain.Club(club)
		shot.Category = domain.Category(cat)
		shot.SessionFile = session.String
		shot.Line = int(line.Int64)
		if shotTime.Valid {
			if t, err := time.Parse(time.RFC3339, shotTime.String); err == nil {
				shot.ShotTime = t
			}
		}
		for i, f := range optional {
			if opts[i].Valid {
				shot.SetOptional(f, domain.Float(opts[i].Float64))
			}
		}
		if estimated.String != "" {
			shot.Estimated = strings.Split(estimated.String, ",")
		}
		if processedAt.Valid {
			if t, err := time.Parse(time.RFC3339Nano, processedAt.String); err == nil {
				shot.ProcessedAt = t
			}
		}
		shots = append(shots, shot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate shots: %w", err)
	}
	return shots, nil
}

// Refresh is a no-op: queries always read the current table.
func (s *Store) Refresh() {}

// Count returns the number of stored shots.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM shots").Scan(&n); err != nil {
		return 0, fmt.Errorf("count shots: %w", err)
	}
	return n, nil
}

// CheckReadiness pings the database.
func (s *Store) CheckReadiness(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
