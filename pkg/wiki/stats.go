package wiki

import (
	"context"
	"math"
	"sort"
	"unicode/utf8"
)

const recentLimit = 5

type Stats struct {
	TotalPages      int    `json:"totalPages"`
	LocalPages      int    `json:"localPages"`
	CachedPages     int    `json:"cachedPages"`
	TotalTags       int    `json:"totalTags"`
	AvgPageLength   int    `json:"avgPageLength"`
	RecentlyUpdated []Page `json:"recentlyUpdated"`
}

// Stats summarizes local and cached pages of a wiki.
func (s *Service) Stats(ctx context.Context, sc Scope) (*Stats, error) {
	pages, err := s.ListPages(ctx, sc)
	if err != nil {
		return nil, err
	}

	st := &Stats{TotalPages: len(pages)}
	tags := make(map[string]struct{})
	total := 0
	for _, p := range pages {
		if p.IsReplica() {
			st.CachedPages++
		} else {
			st.LocalPages++
		}
		for _, t := range p.Tags {
			tags[t] = struct{}{}
		}
		total += utf8.RuneCountInString(p.Content)
	}
	st.TotalTags = len(tags)
	if len(pages) > 0 {
		st.AvgPageLength = int(math.Round(float64(total) / float64(len(pages))))
	}

	recent := make([]Page, len(pages))
	copy(recent, pages)
	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].UpdatedAt.After(recent[j].UpdatedAt)
	})
	if len(recent) > recentLimit {
		recent = recent[:recentLimit]
	}
	st.RecentlyUpdated = recent
	return st, nil
}
