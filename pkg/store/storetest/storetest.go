// Package storetest holds a conformance suite every store.Backend must pass.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/ryandielhenn/zephyrwiki/pkg/store"
)

// Run exercises b. The backend must start empty.
func Run(t *testing.T, b store.Backend) {
	t.Helper()
	t.Run("AppendScanOrder", func(t *testing.T) { testAppendScanOrder(t, b) })
	t.Run("UpdateDelete", func(t *testing.T) { testUpdateDelete(t, b) })
	t.Run("UnknownKey", func(t *testing.T) { testUnknownKey(t, b) })
	t.Run("WikiIsolation", func(t *testing.T) { testWikiIsolation(t, b) })
	t.Run("ScanReturnsCopies", func(t *testing.T) { testScanReturnsCopies(t, b) })
	t.Run("ConcurrentAppend", func(t *testing.T) { testConcurrentAppend(t, b) })
}

func testAppendScanOrder(t *testing.T, b store.Backend) {
	ctx := context.Background()
	tbl := b.Table("w1", "order")

	recs, err := tbl.Scan(ctx)
	if err != nil {
		t.Fatalf("Scan on empty table: %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("empty table has %d rows", len(recs))
	}

	for _, v := range []string{"a", "b", "c"} {
		if _, err := tbl.Append(ctx, store.Row{"v": v}); err != nil {
			t.Fatalf("Append(%s): %v", v, err)
		}
	}
	recs, err = tbl.Scan(ctx)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("Scan len = %d, want 3", len(recs))
	}
	for i, want := range []string{"a", "b", "c"} {
		if got := recs[i].Row["v"]; got != want {
			t.Fatalf("row %d = %q, want %q", i, got, want)
		}
	}
}

func testUpdateDelete(t *testing.T, b store.Backend) {
	ctx := context.Background()
	tbl := b.Table("w1", "mutate")

	k1, err := tbl.Append(ctx, store.Row{"id": "1", "title": "one"})
	if err != nil {
		t.Fatal(err)
	}
	k2, err := tbl.Append(ctx, store.Row{"id": "2", "title": "two"})
	if err != nil {
		t.Fatal(err)
	}
	if k1 == k2 {
		t.Fatalf("Append returned duplicate key %q", k1)
	}

	if err := tbl.Update(ctx, k1, store.Row{"id": "1", "title": "uno"}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	rec, err := store.Find(ctx, tbl, store.ColumnEquals("id", "1"))
	if err != nil || rec == nil {
		t.Fatalf("Find(1) = %v, %v", rec, err)
	}
	if rec.Row["title"] != "uno" || rec.Key != k1 {
		t.Fatalf("after update got %+v", rec)
	}

	if err := tbl.Delete(ctx, k1); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	recs, _ := tbl.Scan(ctx)
	if len(recs) != 1 || recs[0].Key != k2 {
		t.Fatalf("after delete got %+v", recs)
	}
}

func testUnknownKey(t *testing.T, b store.Backend) {
	ctx := context.Background()
	tbl := b.Table("w1", "missing")
	if err := tbl.Update(ctx, "nope", store.Row{}); !errors.Is(err, store.ErrRowNotFound) {
		t.Fatalf("Update unknown = %v, want ErrRowNotFound", err)
	}
	if err := tbl.Delete(ctx, "nope"); !errors.Is(err, store.ErrRowNotFound) {
		t.Fatalf("Delete unknown = %v, want ErrRowNotFound", err)
	}
}

func testWikiIsolation(t *testing.T, b store.Backend) {
	ctx := context.Background()
	if _, err := b.Table("alpha", "Pages").Append(ctx, store.Row{"id": "x"}); err != nil {
		t.Fatal(err)
	}
	recs, err := b.Table("beta", "Pages").Scan(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 0 {
		t.Fatalf("wiki beta sees %d rows of wiki alpha", len(recs))
	}
	recs, _ = b.Table("alpha", "Other").Scan(ctx)
	if len(recs) != 0 {
		t.Fatalf("table Other sees %d rows of table Pages", len(recs))
	}
}

func testScanReturnsCopies(t *testing.T, b store.Backend) {
	ctx := context.Background()
	tbl := b.Table("w1", "copies")
	if _, err := tbl.Append(ctx, store.Row{"v": "orig"}); err != nil {
		t.Fatal(err)
	}
	recs, _ := tbl.Scan(ctx)
	recs[0].Row["v"] = "mutated"
	recs, _ = tbl.Scan(ctx)
	if recs[0].Row["v"] != "orig" {
		t.Fatalf("Scan result aliases stored row: %q", recs[0].Row["v"])
	}
}

func testConcurrentAppend(t *testing.T, b store.Backend) {
	ctx := context.Background()
	tbl := b.Table("w1", "concurrent")

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := tbl.Append(ctx, store.Row{"i": fmt.Sprint(i)}); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent Append: %v", err)
	}
	recs, err := tbl.Scan(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != n {
		t.Fatalf("Scan len = %d, want %d", len(recs), n)
	}
}
