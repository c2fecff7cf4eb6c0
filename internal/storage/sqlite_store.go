package storage

import (
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"
)

const seenTable = "seen_items"

// sqliteStore keeps ids in a single SQLite table.
type sqliteStore struct {
	db  *sql.DB
	now func() time.Time
}

func openSQLite(path string) (Store, error) {
	if path != ":memory:" {
		if err := ensureDir(path); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	// One connection keeps ":memory:" databases stable and avoids "database is locked".
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode=WAL",
		`CREATE TABLE IF NOT EXISTS ` + seenTable + ` (
			id      TEXT PRIMARY KEY,
			seen_at INTEGER NOT NULL
		)`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("init sqlite: %w", err)
		}
	}

	return &sqliteStore{db: db, now: time.Now}, nil
}

func (s *sqliteStore) SeenItem(id string) (bool, error) {
	query, args, err := sq.Select("1").From(seenTable).Where(sq.Eq{"id": id}).Limit(1).ToSql()
	if err != nil {
		return false, fmt.Errorf("build seen query: %w", err)
	}

	var one int
	switch err := s.db.QueryRow(query, args...).Scan(&one); err {
	case nil:
		return true, nil
	case sql.ErrNoRows:
		return false, nil
	default:
		return false, fmt.Errorf("query seen item: %w", err)
	}
}

func (s *sqliteStore) MarkItem(id string) error {
	if err := validID(id); err != nil {
		return err
	}
	query, args, err := sq.Insert(seenTable).
		Options("OR IGNORE").
		Columns("id", "seen_at").
		Values(id, s.now().Unix()).
		ToSql()
	if err != nil {
		return fmt.Errorf("build mark query: %w", err)
	}
	if _, err := s.db.Exec(query, args...); err != nil {
		return fmt.Errorf("insert seen item: %w", err)
	}
	return nil
}

func (s *sqliteStore) Flush() error { return nil }

func (s *sqliteStore) Count() (int, error) {
	query, args, err := sq.Select("COUNT(*)").From(seenTable).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count query: %w", err)
	}
	var n int
	if err := s.db.QueryRow(query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count seen items: %w", err)
	}
	return n, nil
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}
