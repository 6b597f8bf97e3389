// Package store defines the row-oriented record store that backs every wiki.
//
// A Backend hands out named tables scoped to a wiki id. Tables behave like
// spreadsheet sheets: rows are appended, scanned in append order, and updated
// or deleted by the key the backend assigned on append. Lookups by column value
// are linear scans performed by callers.
package store

import (
	"context"
	"errors"
)

// ErrRowNotFound is returned by Update and Delete when the row key is unknown.
var ErrRowNotFound = errors.New("store: row not found")

// Row is a set of named columns.
type Row map[string]string

// Clone returns a copy that shares no memory with r.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Record is a row together with the key it is stored under.
type Record struct {
	Key string
	Row Row
}

// Table is a single sheet of rows.
type Table interface {
	// Append stores row at the end of the table and returns its key.
	Append(ctx context.Context, row Row) (string, error)
	// Scan returns every row in append order.
	Scan(ctx context.Context) ([]Record, error)
	// Update replaces the row stored under key.
	Update(ctx context.Context, key string, row Row) error
	// Delete removes the row stored under key.
	Delete(ctx context.Context, key string) error
}

// Backend opens tables. Opening a table that was never written yields an
// empty table; it is created on first Append.
type Backend interface {
	Table(wikiID, name string) Table
	Close() error
}

// Find returns the first record for which match reports true.
func Find(ctx context.Context, t Table, match func(Row) bool) (*Record, error) {
	recs, err := t.Scan(ctx)
	if err != nil {
		return nil, err
	}
	for i := range recs {
		if match(recs[i].Row) {
			return &recs[i], nil
		}
	}
	return nil, nil
}

// ColumnEquals matches rows whose column col equals v.
func ColumnEquals(col, v string) func(Row) bool {
	return func(r Row) bool { return r[col] == v }
}
