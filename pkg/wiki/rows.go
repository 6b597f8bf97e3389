package wiki

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/ryandielhenn/zephyrwiki/pkg/store"
)

// Sheet names shared by every backend.
const (
	tablePages         = "Pages"
	tableCachedPages   = "CachedPages"
	tablePeers         = "Peers"
	tableExternalWikis = "ExternalWikis"
	tableMeta          = "WikiMeta"
)

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime treats unreadable cells as unset rather than failing the scan.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func formatTags(tags []string) string {
	if len(tags) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(tags)
	return string(b)
}

func parseTags(s string) []string {
	var tags []string
	if err := json.Unmarshal([]byte(s), &tags); err != nil || tags == nil {
		return []string{}
	}
	return tags
}

func indexRow(p *Page) store.Row {
	return store.Row{
		"id":        p.ID,
		"path":      p.Path,
		"policyId":  p.PolicyID,
		"title":     p.Title,
		"tags":      formatTags(p.Tags),
		"createdAt": formatTime(p.CreatedAt),
		"updatedAt": formatTime(p.UpdatedAt),
		"author":    p.Author,
	}
}

// pageFromIndex builds a page without content.
func pageFromIndex(r store.Row) Page {
	return Page{
		ID:        r["id"],
		Path:      r["path"],
		PolicyID:  r["policyId"],
		Title:     r["title"],
		Tags:      parseTags(r["tags"]),
		CreatedAt: parseTime(r["createdAt"]),
		UpdatedAt: parseTime(r["updatedAt"]),
		Author:    r["author"],
	}
}

func cachedRow(p *Page) store.Row {
	r := indexRow(p)
	r["content"] = p.Content
	r["origin"] = p.Origin
	return r
}

func pageFromCached(r store.Row) Page {
	p := pageFromIndex(r)
	p.Content = r["content"]
	p.Origin = r["origin"]
	return p
}

func peerRow(p *Peer) store.Row {
	return store.Row{
		"url":          p.URL,
		"name":         p.Name,
		"isActive":     strconv.FormatBool(p.IsActive),
		"lastSyncedAt": formatTime(p.LastSyncedAt),
	}
}

func peerFromRow(r store.Row) Peer {
	active, _ := strconv.ParseBool(r["isActive"])
	return Peer{
		URL:          r["url"],
		Name:         r["name"],
		IsActive:     active,
		LastSyncedAt: parseTime(r["lastSyncedAt"]),
	}
}

func externalRow(w *ExternalWiki) store.Row {
	return store.Row{
		"wikiId":       w.WikiID,
		"title":        w.Title,
		"description":  w.Description,
		"accessUrl":    w.AccessURL,
		"registeredAt": formatTime(w.RegisteredAt),
		"updatedAt":    formatTime(w.UpdatedAt),
		"tags":         w.Tags,
	}
}

func externalFromRow(r store.Row) ExternalWiki {
	return ExternalWiki{
		WikiID:       r["wikiId"],
		Title:        r["title"],
		Description:  r["description"],
		AccessURL:    r["accessUrl"],
		RegisteredAt: parseTime(r["registeredAt"]),
		UpdatedAt:    parseTime(r["updatedAt"]),
		Tags:         r["tags"],
	}
}
