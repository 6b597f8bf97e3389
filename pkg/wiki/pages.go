package wiki

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ryandielhenn/zephyrwiki/pkg/store"
)

const (
	PolicyPublic = "public"
	PolicyAdmin  = "admin"
)

// PolicyForPath derives a page's access policy from its path.
func PolicyForPath(path string) string {
	if strings.HasPrefix(path, "admin/") {
		return PolicyAdmin
	}
	return PolicyPublic
}

// PartitionResolver maps a policy id to the table holding page bodies.
type PartitionResolver func(policyID string) string

// ContentPartition is the default resolver: one Content_<policy> table per policy.
func ContentPartition(policyID string) string {
	return "Content_" + policyID
}

// NewPage carries the caller-supplied fields of a page being created.
type NewPage struct {
	Title   string
	Content string
	Tags    []string
	Path    string
	Author  string
}

// PageRepository stores locally authored pages. Metadata lives in the Pages
// index table; bodies live in a content table chosen by the page's policy.
// Lookups are linear scans.
type PageRepository struct {
	b         store.Backend
	partition PartitionResolver
	now       func() time.Time
	newID     func() string
}

func NewPageRepository(b store.Backend, partition PartitionResolver) *PageRepository {
	if partition == nil {
		partition = ContentPartition
	}
	return &PageRepository{b: b, partition: partition, now: time.Now, newID: uuid.NewString}
}

func (r *PageRepository) index(sc Scope) store.Table {
	return r.b.Table(sc.WikiID, tablePages)
}

func (r *PageRepository) content(sc Scope, policyID string) store.Table {
	return r.b.Table(sc.WikiID, r.partition(policyID))
}

func (r *PageRepository) CreatePage(ctx context.Context, sc Scope, in NewPage) (*Page, error) {
	now := r.now().UTC()
	p := &Page{
		ID:        r.newID(),
		Path:      in.Path,
		Title:     in.Title,
		Content:   in.Content,
		Tags:      normalizeTags(in.Tags),
		CreatedAt: now,
		UpdatedAt: now,
		Author:    in.Author,
	}
	if p.Path == "" {
		p.Path = p.ID
	}
	p.PolicyID = PolicyForPath(p.Path)

	if _, err := r.index(sc).Append(ctx, indexRow(p)); err != nil {
		return nil, fmt.Errorf("writing page index: %w", err)
	}
	if _, err := r.content(sc, p.PolicyID).Append(ctx, store.Row{"id": p.ID, "content": p.Content}); err != nil {
		return nil, fmt.Errorf("writing page content: %w", err)
	}
	return p, nil
}

// GetAllPages joins every index row with its content row.
func (r *PageRepository) GetAllPages(ctx context.Context, sc Scope) ([]Page, error) {
	recs, err := r.index(sc).Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading page index: %w", err)
	}
	pages := make([]Page, 0, len(recs))
	for _, rec := range recs {
		p := pageFromIndex(rec.Row)
		if err := r.loadContent(ctx, sc, &p); err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	return pages, nil
}

// GetPageByID returns nil when id is unknown.
func (r *PageRepository) GetPageByID(ctx context.Context, sc Scope, id string) (*Page, error) {
	rec, err := store.Find(ctx, r.index(sc), store.ColumnEquals("id", id))
	if err != nil {
		return nil, fmt.Errorf("reading page index: %w", err)
	}
	if rec == nil {
		return nil, nil
	}
	p := pageFromIndex(rec.Row)
	if err := r.loadContent(ctx, sc, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdatePage overwrites title, content and tags. Path, policy, author and
// createdAt are kept. Returns nil when id is unknown.
func (r *PageRepository) UpdatePage(ctx context.Context, sc Scope, id, title, content string, tags []string) (*Page, error) {
	idx := r.index(sc)
	rec, err := store.Find(ctx, idx, store.ColumnEquals("id", id))
	if err != nil {
		return nil, fmt.Errorf("reading page index: %w", err)
	}
	if rec == nil {
		return nil, nil
	}

	p := pageFromIndex(rec.Row)
	p.Title = title
	p.Content = content
	p.Tags = normalizeTags(tags)
	p.UpdatedAt = r.now().UTC()

	if err := idx.Update(ctx, rec.Key, indexRow(&p)); err != nil {
		return nil, fmt.Errorf("updating page index: %w", err)
	}

	part := r.content(sc, p.PolicyID)
	crec, err := store.Find(ctx, part, store.ColumnEquals("id", id))
	if err != nil {
		return nil, fmt.Errorf("reading page content: %w", err)
	}
	row := store.Row{"id": p.ID, "content": p.Content}
	if crec == nil {
		_, err = part.Append(ctx, row)
	} else {
		err = part.Update(ctx, crec.Key, row)
	}
	if err != nil {
		return nil, fmt.Errorf("updating page content: %w", err)
	}
	return &p, nil
}

// DeletePage removes the content row and then the index row. It reports
// false when id is unknown.
func (r *PageRepository) DeletePage(ctx context.Context, sc Scope, id string) (bool, error) {
	idx := r.index(sc)
	rec, err := store.Find(ctx, idx, store.ColumnEquals("id", id))
	if err != nil {
		return false, fmt.Errorf("reading page index: %w", err)
	}
	if rec == nil {
		return false, nil
	}

	part := r.content(sc, rec.Row["policyId"])
	crec, err := store.Find(ctx, part, store.ColumnEquals("id", id))
	if err != nil {
		return false, fmt.Errorf("reading page content: %w", err)
	}
	if crec != nil {
		if err := part.Delete(ctx, crec.Key); err != nil {
			return false, fmt.Errorf("deleting page content: %w", err)
		}
	}
	if err := idx.Delete(ctx, rec.Key); err != nil {
		return false, fmt.Errorf("deleting page index: %w", err)
	}
	return true, nil
}

func (r *PageRepository) loadContent(ctx context.Context, sc Scope, p *Page) error {
	rec, err := store.Find(ctx, r.content(sc, p.PolicyID), store.ColumnEquals("id", p.ID))
	if err != nil {
		return fmt.Errorf("reading content of %s: %w", p.ID, err)
	}
	if rec != nil {
		p.Content = rec.Row["content"]
	}
	return nil
}
