package memstore

import (
	"context"
	"testing"

	"github.com/ryandielhenn/zephyrwiki/pkg/store"
	"github.com/ryandielhenn/zephyrwiki/pkg/store/storetest"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, New())
}

func TestLenCountsAllTables(t *testing.T) {
	s := New()
	ctx := context.Background()

	s.Table("a", "t1").Append(ctx, store.Row{"k": "1"})
	s.Table("a", "t2").Append(ctx, store.Row{"k": "2"})
	key, _ := s.Table("b", "t1").Append(ctx, store.Row{"k": "3"})

	if got := s.Len(); got != 3 {
		t.Fatalf("Len = %d, want 3", got)
	}
	if err := s.Table("b", "t1").Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got := s.Len(); got != 2 {
		t.Fatalf("Len after delete = %d, want 2", got)
	}
}

func TestAppendCopiesInput(t *testing.T) {
	s := New()
	ctx := context.Background()
	row := store.Row{"v": "before"}
	s.Table("w", "t").Append(ctx, row)
	row["v"] = "after"

	recs, _ := s.Table("w", "t").Scan(ctx)
	if recs[0].Row["v"] != "before" {
		t.Fatalf("stored row changed with caller's map: %q", recs[0].Row["v"])
	}
}
