// Package worker runs independent archive ingestions concurrently, bounded
// to a fixed number of in-flight archives at a time.
package worker

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/pkgdex/internal/core/ports/driving"
)

// Pool fans archive ingestion out across a bounded number of goroutines.
// A failure on one archive never aborts the others; each failure is logged
// and the source URL is returned to the caller for retry/reporting.
type Pool struct {
	ingestion   driving.IngestionService
	logger      *slog.Logger
	concurrency int
}

// Config holds Pool configuration.
type Config struct {
	Ingestion   driving.IngestionService
	Logger      *slog.Logger
	Concurrency int
}

// NewPool creates a Pool. Concurrency defaults to 4 if unset.
func NewPool(cfg Config) *Pool {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Pool{ingestion: cfg.Ingestion, logger: logger, concurrency: concurrency}
}

// IngestURLs ingests every url concurrently, bounded by the pool's
// concurrency limit, and returns the subset that failed.
func (p *Pool) IngestURLs(ctx context.Context, urls []string) (failed []string) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	var mu sync.Mutex
	for _, url := range urls {
		url := url
		g.Go(func() error {
			_, err := p.ingestion.IngestURL(ctx, url, "")
			if err != nil {
				p.logger.Error("archive ingestion failed", "url", url, "error", err)
				mu.Lock()
				failed = append(failed, url)
				mu.Unlock()
			} else {
				p.logger.Info("archive ingested", "url", url)
			}
			return nil
		})
	}
	_ = g.Wait()
	return failed
}
