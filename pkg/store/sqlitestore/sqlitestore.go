// Package sqlitestore implements store.Backend on a single SQLite file.
//
// All sheets share one records table. A row's key is its autoincrement
// sequence number, so scanning by sequence yields append order.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"

	_ "modernc.org/sqlite"

	"github.com/ryandielhenn/zephyrwiki/pkg/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS records (
	seq     INTEGER PRIMARY KEY AUTOINCREMENT,
	wiki_id TEXT NOT NULL,
	tbl     TEXT NOT NULL,
	data    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_records_sheet ON records (wiki_id, tbl, seq);
`

// Store wraps a SQLite database connection.
type Store struct {
	conn *sql.DB
	Path string
}

// Open opens path with WAL mode and ensures the schema exists.
func Open(path string) (*Store, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// SQLite allows one writer; a single connection avoids SQLITE_BUSY between
	// our own goroutines.
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &Store{conn: conn, Path: path}, nil
}

func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) Table(wikiID, name string) store.Table {
	return &table{conn: s.conn, wikiID: wikiID, name: name}
}

type table struct {
	conn   *sql.DB
	wikiID string
	name   string
}

func (t *table) Append(ctx context.Context, row store.Row) (string, error) {
	data, err := json.Marshal(row)
	if err != nil {
		return "", fmt.Errorf("encoding row: %w", err)
	}
	res, err := t.conn.ExecContext(ctx,
		`INSERT INTO records (wiki_id, tbl, data) VALUES (?, ?, ?)`,
		t.wikiID, t.name, string(data))
	if err != nil {
		return "", fmt.Errorf("appending to %s: %w", t.name, err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return "", fmt.Errorf("reading row id: %w", err)
	}
	return strconv.FormatInt(seq, 10), nil
}

func (t *table) Scan(ctx context.Context) ([]store.Record, error) {
	rows, err := t.conn.QueryContext(ctx,
		`SELECT seq, data FROM records WHERE wiki_id = ? AND tbl = ? ORDER BY seq`,
		t.wikiID, t.name)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", t.name, err)
	}
	defer rows.Close()

	var out []store.Record
	for rows.Next() {
		var (
			seq  int64
			data string
		)
		if err := rows.Scan(&seq, &data); err != nil {
			return nil, err
		}
		var row store.Row
		if err := json.Unmarshal([]byte(data), &row); err != nil {
			return nil, fmt.Errorf("decoding row %d of %s: %w", seq, t.name, err)
		}
		out = append(out, store.Record{Key: strconv.FormatInt(seq, 10), Row: row})
	}
	return out, rows.Err()
}

func (t *table) Update(ctx context.Context, key string, row store.Row) error {
	seq, err := strconv.ParseInt(key, 10, 64)
	if err != nil {
		return store.ErrRowNotFound
	}
	data, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("encoding row: %w", err)
	}
	res, err := t.conn.ExecContext(ctx,
		`UPDATE records SET data = ? WHERE seq = ? AND wiki_id = ? AND tbl = ?`,
		string(data), seq, t.wikiID, t.name)
	if err != nil {
		return fmt.Errorf("updating %s: %w", t.name, err)
	}
	return affectedOne(res)
}

func (t *table) Delete(ctx context.Context, key string) error {
	seq, err := strconv.ParseInt(key, 10, 64)
	if err != nil {
		return store.ErrRowNotFound
	}
	res, err := t.conn.ExecContext(ctx,
		`DELETE FROM records WHERE seq = ? AND wiki_id = ? AND tbl = ?`,
		seq, t.wikiID, t.name)
	if err != nil {
		return fmt.Errorf("deleting from %s: %w", t.name, err)
	}
	return affectedOne(res)
}

func affectedOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrRowNotFound
	}
	return nil
}
