package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite" // registers "sqlite" driver
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Store persists transcript snapshots to SQLite. The underlying pool is safe
// for concurrent use by many sessions.
type Store struct {
	db *sql.DB
}

// Open connects to the SQLite database at path (":memory:" for tests) and
// applies pending migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store open: %w", err)
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store ping: %w", err)
	}
	if err = migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("store migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`)
	if err != nil {
		return err
	}

	var current int
	row := db.QueryRow(`SELECT COALESCE(MAX(version), -1) FROM schema_version`)
	if err = row.Scan(&current); err != nil {
		return err
	}

	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	for i := current + 1; i < len(entries); i++ {
		data, readErr := migrationFS.ReadFile("migrations/" + entries[i].Name())
		if readErr != nil {
			return fmt.Errorf("read migration %d: %w", i, readErr)
		}
		if _, execErr := db.Exec(string(data)); execErr != nil {
			return fmt.Errorf("migration %d: %w", i, execErr)
		}
		if _, execErr := db.Exec(`INSERT INTO schema_version (version) VALUES (?)`, i); execErr != nil {
			return fmt.Errorf("migration %d record: %w", i, execErr)
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveTranscription inserts one transcript snapshot and returns its id.
// Insights and questions are stored as JSON arrays, NULL when absent.
func (s *Store) SaveTranscription(ctx context.Context, text string, insights, questions []string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO transcriptions (transcription_text, ai_insights, ai_questions) VALUES (?, ?, ?)`,
		text, marshalList(insights), marshalList(questions),
	)
	if err != nil {
		return 0, fmt.Errorf("save transcription: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("save transcription id: %w", err)
	}
	return id, nil
}

// GetTranscription returns one record by id, or nil when it does not exist.
func (s *Store) GetTranscription(ctx context.Context, id int64) (*Transcription, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, timestamp, transcription_text, ai_insights, ai_questions
		 FROM transcriptions WHERE id = ?`, id,
	)
	rec, err := scanTranscription(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get transcription: %w", err)
	}
	return rec, nil
}

// ListTranscriptions returns records ordered newest first.
func (s *Store) ListTranscriptions(ctx context.Context, limit, offset int) ([]Transcription, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, timestamp, transcription_text, ai_insights, ai_questions
		 FROM transcriptions
		 ORDER BY timestamp DESC, id DESC
		 LIMIT ? OFFSET ?`, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list transcriptions: %w", err)
	}
	return collectTranscriptions(rows)
}

// SearchTranscriptions returns records whose text contains query, newest
// first.
func (s *Store) SearchTranscriptions(ctx context.Context, query string, limit, offset int) ([]Transcription, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, timestamp, transcription_text, ai_insights, ai_questions
		 FROM transcriptions
		 WHERE transcription_text LIKE '%' || ? || '%'
		 ORDER BY timestamp DESC, id DESC
		 LIMIT ? OFFSET ?`, query, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("search transcriptions: %w", err)
	}
	return collectTranscriptions(rows)
}

// DeleteTranscription removes one record. Reports whether it existed.
func (s *Store) DeleteTranscription(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM transcriptions WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete transcription: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete transcription count: %w", err)
	}
	return n > 0, nil
}

func collectTranscriptions(rows *sql.Rows) ([]Transcription, error) {
	defer rows.Close()

	var recs []Transcription
	for rows.Next() {
		rec, err := scanTranscription(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan transcription: %w", err)
		}
		recs = append(recs, *rec)
	}
	return recs, rows.Err()
}

func scanTranscription(scan func(dest ...any) error) (*Transcription, error) {
	var rec Transcription
	var insights, questions sql.NullString
	if err := scan(&rec.ID, &rec.Timestamp, &rec.Text, &insights, &questions); err != nil {
		return nil, err
	}
	rec.Insights = unmarshalList(insights)
	rec.Questions = unmarshalList(questions)
	return &rec, nil
}

// marshalList encodes a string list as JSON, NULL when empty, matching the
// persisted record contract (ai_insights: string[]|null).
func marshalList(items []string) any {
	if len(items) == 0 {
		return nil
	}
	data, err := json.Marshal(items)
	if err != nil {
		return nil
	}
	return string(data)
}

func unmarshalList(col sql.NullString) []string {
	if !col.Valid || col.String == "" {
		return nil
	}
	var items []string
	if err := json.Unmarshal([]byte(col.String), &items); err != nil {
		return nil
	}
	return items
}
