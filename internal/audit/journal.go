package audit

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// defaultRecentLimit caps Recent when no limit is given.
const defaultRecentLimit = 100

// ErrJournalClosed is returned after Close.
var ErrJournalClosed = errors.New("journal closed")

// Journal persists events in SQLite.
type Journal struct {
	db *sql.DB // db is the journal database
}

// OpenJournal opens or creates the journal at path.
func OpenJournal(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path+
		"?_pragma=journal_mode(WAL)"+
		"&_pragma=busy_timeout(5000)"+
		"&_pragma=synchronous(NORMAL)")
	if err != nil {
		return nil, fmt.Errorf("open journal:\n%w", err)
	}

	// SQLite serializes writers; one connection avoids SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema:\n%w", err)
	}

	return &Journal{db: db}, nil
}

// Emit appends ev to the journal.
func (j *Journal) Emit(ctx context.Context, ev Event) error {
	if j.db == nil {
		return ErrJournalClosed
	}

	attrs := ev.Attrs
	if attrs == nil {
		attrs = map[string]string{}
	}

	encoded, err := json.Marshal(attrs)
	if err != nil {
		return fmt.Errorf("encode attrs:\n%w", err)
	}

	_, err = j.db.ExecContext(ctx,
		`INSERT INTO events (kind, at, attrs) VALUES (?, ?, ?)`,
		string(ev.Kind), ev.At.UTC().Format(time.RFC3339Nano), string(encoded))
	if err != nil {
		return fmt.Errorf("insert event %s:\n%w", ev.Kind, err)
	}

	return nil
}

// Recent returns up to limit events, newest first. An empty kind matches all.
func (j *Journal) Recent(ctx context.Context, kind Kind, limit int) ([]Event, error) {
	if j.db == nil {
		return nil, ErrJournalClosed
	}

	if limit <= 0 {
		limit = defaultRecentLimit
	}

	query := `SELECT seq, kind, at, attrs FROM events ORDER BY seq DESC LIMIT ?`
	args := []any{limit}
	if kind != "" {
		query = `SELECT seq, kind, at, attrs FROM events WHERE kind = ? ORDER BY seq DESC LIMIT ?`
		args = []any{string(kind), limit}
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events:\n%w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			ev          Event
			kindStr, at string
			attrs       string
		)

		if err := rows.Scan(&ev.Seq, &kindStr, &at, &attrs); err != nil {
			return nil, fmt.Errorf("scan event:\n%w", err)
		}

		ev.Kind = Kind(kindStr)

		if ev.At, err = time.Parse(time.RFC3339Nano, at); err != nil {
			return nil, fmt.Errorf("parse event %d time:\n%w", ev.Seq, err)
		}

		if err := json.Unmarshal([]byte(attrs), &ev.Attrs); err != nil {
			return nil, fmt.Errorf("decode event %d attrs:\n%w", ev.Seq, err)
		}

		events = append(events, ev)
	}

	return events, rows.Err()
}

// Close closes the database. Further calls return ErrJournalClosed.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}

	err := j.db.Close()
	j.db = nil

	return err
}
