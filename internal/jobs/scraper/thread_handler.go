package scraper

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"proxywarden/internal/domain"
)

// FetchAll fetches every source concurrently, one goroutine per source, and
// returns once all of them finished. A slow or broken source only costs its
// own timeout.
func (f *Fetcher) FetchAll(ctx context.Context, sources []domain.Source) domain.CandidateSet {
	candidates := make(domain.CandidateSet, len(sources))
	var mu sync.Mutex

	var g errgroup.Group
	for _, src := range sources {
		src := src
		g.Go(func() error {
			proxies := f.Fetch(ctx, src)

			mu.Lock()
			candidates.Add(src.URL, proxies)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	log.Info("Fetched sources", "sources", len(sources), "candidates", candidates.Total())
	return candidates
}
