package wiki

import (
	"context"
	"fmt"

	"github.com/ryandielhenn/zephyrwiki/pkg/store"
)

// CacheRepository stores replicas received from peers, keyed by (id, origin).
type CacheRepository struct {
	b store.Backend
}

func NewCacheRepository(b store.Backend) *CacheRepository {
	return &CacheRepository{b: b}
}

func (r *CacheRepository) table(sc Scope) store.Table {
	return r.b.Table(sc.WikiID, tableCachedPages)
}

func (r *CacheRepository) GetAllCachedPages(ctx context.Context, sc Scope) ([]Page, error) {
	recs, err := r.table(sc).Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading cached pages: %w", err)
	}
	pages := make([]Page, 0, len(recs))
	for _, rec := range recs {
		pages = append(pages, pageFromCached(rec.Row))
	}
	return pages, nil
}

// UpsertCachedPage overwrites the row for (page.ID, page.Origin) or appends a
// new one. The incoming page always wins: timestamps are not compared, so a
// late delivery of an older revision replaces a newer one.
func (r *CacheRepository) UpsertCachedPage(ctx context.Context, sc Scope, page Page) (bool, error) {
	t := r.table(sc)
	rec, err := store.Find(ctx, t, func(row store.Row) bool {
		return row["id"] == page.ID && row["origin"] == page.Origin
	})
	if err != nil {
		return false, fmt.Errorf("reading cached pages: %w", err)
	}

	if rec == nil {
		page.Tags = normalizeTags(page.Tags)
		if _, err := t.Append(ctx, cachedRow(&page)); err != nil {
			return false, fmt.Errorf("caching page %s: %w", page.ID, err)
		}
		return true, nil
	}

	row := rec.Row
	row["title"] = page.Title
	row["content"] = page.Content
	row["createdAt"] = formatTime(page.CreatedAt)
	row["updatedAt"] = formatTime(page.UpdatedAt)
	row["author"] = page.Author
	if err := t.Update(ctx, rec.Key, row); err != nil {
		return false, fmt.Errorf("updating cached page %s: %w", page.ID, err)
	}
	return true, nil
}
