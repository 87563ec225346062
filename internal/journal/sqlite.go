package journal

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/dhruthiaithal/Microlabs-Triage/internal/models"
)

type SQLiteDB struct {
	db *sql.DB
}

func NewSQLiteDB(dsn string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	// The in-memory DSN loses its schema once the pool drops the last
	// connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error while pinging database: %w", err)
	}

	s := &SQLiteDB{
		db: db,
	}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("error while migrating to database: %w", err)
	}

	return s, nil
}

func (s *SQLiteDB) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS triage_events (
			id TEXT PRIMARY KEY,
			patient_id TEXT,
			actor TEXT,
			kind TEXT NOT NULL,
			detail TEXT,
			created_at DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_triage_events_patient_id ON triage_events(patient_id);
		CREATE INDEX IF NOT EXISTS idx_triage_events_kind ON triage_events(kind);
		CREATE INDEX IF NOT EXISTS idx_triage_events_created_at ON triage_events(created_at);
  	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteDB) Add(ctx context.Context, e *models.TriageEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO triage_events (id, patient_id, actor, kind, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.PatientID, e.Actor, string(e.Kind), e.Detail, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("error inserting event: %w", err)
	}
	return nil
}

func (s *SQLiteDB) ListEvents(ctx context.Context, opts Filter) ([]models.TriageEvent, error) {
	query := `SELECT id, patient_id, actor, kind, detail, created_at FROM triage_events`
	args := []any{}
	where := ""

	if opts.PatientID != "" {
		where = " WHERE patient_id = ?"
		args = append(args, opts.PatientID)
	}
	if opts.Kind != "" {
		if where == "" {
			where = " WHERE kind = ?"
		} else {
			where += " AND kind = ?"
		}
		args = append(args, string(opts.Kind))
	}

	query += where + " ORDER BY created_at DESC, id"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying events: %w", err)
	}
	defer rows.Close()

	var events []models.TriageEvent
	for rows.Next() {
		var e models.TriageEvent
		var kind string
		if err := rows.Scan(&e.ID, &e.PatientID, &e.Actor, &kind, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning event: %w", err)
		}
		e.Kind = models.EventKind(kind)
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *SQLiteDB) Close() error {
	return s.db.Close()
}
