package main

import (
	"context"
	"flag"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ryandielhenn/zephyrwiki/pkg/client"
	"github.com/ryandielhenn/zephyrwiki/pkg/node"
)

func main() {
	addr := flag.String("addr", "http://localhost:8080", "server address")
	wikiID := flag.String("wiki", "", "wiki id")
	n := flag.Int("n", 2000, "pages to create")
	conc := flag.Int("c", 32, "concurrency")
	size := flag.Int("size", 512, "content size bytes")
	flag.Parse()

	c := client.New(*addr, *wikiID, 10*time.Second)
	content := strings.Repeat("x", *size)
	ctx := context.Background()

	var (
		wg     sync.WaitGroup
		failed atomic.Int64
	)
	sem := make(chan struct{}, *conc)
	start := time.Now()

	for i := 0; i < *n; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			p, err := c.CreatePage(ctx, node.CreateRequest{
				Title:   fmt.Sprintf("bench-%d", i),
				Content: content,
				Tags:    []string{"bench"},
			})
			if err != nil {
				failed.Add(1)
				return
			}
			if _, err := c.Page(ctx, p.ID); err != nil {
				failed.Add(1)
			}
		}(i)
	}
	wg.Wait()
	dur := time.Since(start)
	ops := *n * 2
	fmt.Printf("Completed %d ops in %s (%.2f ops/s, %d failed)\n", ops, dur, float64(ops)/dur.Seconds(), failed.Load())
}
