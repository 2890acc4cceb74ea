// Package journal records the decisions a faction controller makes
// (production requests, task outcomes, campaign phases) in SQLite so a
// match can be reviewed afterwards.
package journal

import (
	"fmt"
	"io"

	"github.com/gocarina/gocsv"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Entry is one journaled decision.
type Entry struct {
	ID      int64   `db:"id" csv:"id"`
	Match   string  `db:"match_id" csv:"match"`
	Faction string  `db:"faction" csv:"faction"`
	Elapsed float64 `db:"elapsed" csv:"elapsed"`
	Kind    string  `db:"kind" csv:"kind"`
	Subject string  `db:"subject" csv:"subject"`
	Target  int64   `db:"target" csv:"target"`
	Detail  string  `db:"detail" csv:"detail"`
}

// Store wraps the SQLite journal database.
type Store struct {
	conn *sqlx.DB
}

// Open opens or creates the journal at path. ":memory:" gives a private
// in-memory journal.
func Open(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	conn, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	// One writer; an in-memory database also lives on a single connection.
	conn.SetMaxOpenConns(1)

	s := &Store{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS decisions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		match_id TEXT NOT NULL,
		faction TEXT NOT NULL,
		elapsed REAL NOT NULL,
		kind TEXT NOT NULL,
		subject TEXT NOT NULL,
		target INTEGER NOT NULL,
		detail TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_decisions_match ON decisions(match_id, faction);
	`
	_, err := s.conn.Exec(schema)
	return err
}

// Append writes entries in one transaction.
func (s *Store) Append(entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareNamed(`INSERT INTO decisions
		(match_id, faction, elapsed, kind, subject, target, detail)
		VALUES (:match_id, :faction, :elapsed, :kind, :subject, :target, :detail)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.Exec(e); err != nil {
			return fmt.Errorf("insert %s decision: %w", e.Kind, err)
		}
	}
	return tx.Commit()
}

// Filter narrows a query. Empty fields match everything.
type Filter struct {
	Match   string
	Faction string
	Kind    string
}

// Entries returns the matching decisions in the order they were written.
func (s *Store) Entries(f Filter) ([]Entry, error) {
	query := `SELECT id, match_id, faction, elapsed, kind, subject, target, detail
		FROM decisions
		WHERE (:match = '' OR match_id = :match)
		  AND (:faction = '' OR faction = :faction)
		  AND (:kind = '' OR kind = :kind)
		ORDER BY id`
	args := map[string]any{"match": f.Match, "faction": f.Faction, "kind": f.Kind}
	q, qargs, err := sqlx.Named(query, args)
	if err != nil {
		return nil, err
	}
	var out []Entry
	if err := s.conn.Select(&out, s.conn.Rebind(q), qargs...); err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	return out, nil
}

// Matches lists the distinct match identifiers in the journal.
func (s *Store) Matches() ([]string, error) {
	var out []string
	if err := s.conn.Select(&out, "SELECT DISTINCT match_id FROM decisions ORDER BY match_id"); err != nil {
		return nil, fmt.Errorf("query matches: %w", err)
	}
	return out, nil
}

// ExportCSV writes entries as CSV with a header row.
func ExportCSV(w io.Writer, entries []Entry) error {
	if err := gocsv.Marshal(entries, w); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}
