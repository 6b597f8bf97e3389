package wiki

import (
	"context"
	"fmt"
	"time"

	"github.com/ryandielhenn/zephyrwiki/pkg/store"
)

// ExternalDirectory catalogs other wikis, keyed by access URL.
type ExternalDirectory struct {
	b   store.Backend
	now func() time.Time
}

func NewExternalDirectory(b store.Backend) *ExternalDirectory {
	return &ExternalDirectory{b: b, now: time.Now}
}

func (d *ExternalDirectory) table(sc Scope) store.Table {
	return d.b.Table(sc.WikiID, tableExternalWikis)
}

func (d *ExternalDirectory) GetExternalIndex(ctx context.Context, sc Scope) ([]ExternalWiki, error) {
	recs, err := d.table(sc).Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading external wikis: %w", err)
	}
	out := make([]ExternalWiki, 0, len(recs))
	for _, rec := range recs {
		out = append(out, externalFromRow(rec.Row))
	}
	return out, nil
}

// AddExternalWiki registers w. Registration is one-time: for a known access
// URL only updatedAt moves, the stored title, description and tags stay.
func (d *ExternalDirectory) AddExternalWiki(ctx context.Context, sc Scope, w ExternalWiki) (bool, error) {
	t := d.table(sc)
	now := d.now().UTC()

	rec, err := store.Find(ctx, t, store.ColumnEquals("accessUrl", w.AccessURL))
	if err != nil {
		return false, fmt.Errorf("reading external wikis: %w", err)
	}
	if rec != nil {
		row := rec.Row
		row["updatedAt"] = formatTime(now)
		if err := t.Update(ctx, rec.Key, row); err != nil {
			return false, fmt.Errorf("touching external wiki %s: %w", w.AccessURL, err)
		}
		return true, nil
	}

	w.RegisteredAt = now
	w.UpdatedAt = now
	if _, err := t.Append(ctx, externalRow(&w)); err != nil {
		return false, fmt.Errorf("adding external wiki %s: %w", w.AccessURL, err)
	}
	return true, nil
}

func (d *ExternalDirectory) RemoveExternalWiki(ctx context.Context, sc Scope, accessURL string) (bool, error) {
	t := d.table(sc)
	rec, err := store.Find(ctx, t, store.ColumnEquals("accessUrl", accessURL))
	if err != nil {
		return false, fmt.Errorf("reading external wikis: %w", err)
	}
	if rec == nil {
		return false, nil
	}
	if err := t.Delete(ctx, rec.Key); err != nil {
		return false, fmt.Errorf("removing external wiki %s: %w", accessURL, err)
	}
	return true, nil
}
