package extract

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/grabtube/grabtube/internal/metrics"
)

// Chain composes a primary and a fallback strategy behind one Extractor and
// memoizes metadata per URL. The cache has no expiry; descriptors are cheap
// and re-probing the source for every progress poll would be worse than a
// stale size estimate.
type Chain struct {
	primary  Extractor
	fallback Extractor

	mu    sync.RWMutex
	cache map[string]*VideoMetadata
}

func NewChain(primary, fallback Extractor) *Chain {
	return &Chain{
		primary:  primary,
		fallback: fallback,
		cache:    make(map[string]*VideoMetadata),
	}
}

func (c *Chain) Name() string {
	return "chain"
}

func (c *Chain) Extract(ctx context.Context, url string) (*VideoMetadata, error) {
	c.mu.RLock()
	cached, ok := c.cache[url]
	c.mu.RUnlock()
	if ok {
		return cached, nil
	}

	meta, err := c.primary.Extract(ctx, url)
	if err != nil {
		metrics.ExtractionsTotal.WithLabelValues(c.primary.Name(), "error").Inc()
		if ctx.Err() != nil {
			return nil, err
		}
		log.Printf("Extraction via %s failed for %s: %v, trying %s", c.primary.Name(), url, err, c.fallback.Name())
		meta, err = c.fallback.Extract(ctx, url)
		if err != nil {
			metrics.ExtractionsTotal.WithLabelValues(c.fallback.Name(), "error").Inc()
			return nil, fmt.Errorf("all extraction strategies failed: %w", err)
		}
		metrics.ExtractionsTotal.WithLabelValues(c.fallback.Name(), "ok").Inc()
	} else {
		metrics.ExtractionsTotal.WithLabelValues(c.primary.Name(), "ok").Inc()
	}

	c.mu.Lock()
	c.cache[url] = meta
	c.mu.Unlock()
	return meta, nil
}

// Fetch tries the primary strategy and falls back once. Progress resets to
// zero when the fallback takes over; callers see a restart, not a gap.
func (c *Chain) Fetch(ctx context.Context, url string, sel Selection, dest string, progress ProgressFunc) error {
	err := c.primary.Fetch(ctx, url, sel, dest, progress)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return err
	}

	log.Printf("Fetch via %s failed for %s: %v, trying %s", c.primary.Name(), url, err, c.fallback.Name())
	if progress != nil {
		progress(0, 0)
	}
	if fbErr := c.fallback.Fetch(ctx, url, sel, dest, progress); fbErr != nil {
		return fmt.Errorf("all retrieval strategies failed: %w", fbErr)
	}
	return nil
}

// CachedMetadata returns the memoized metadata for a URL without probing.
func (c *Chain) CachedMetadata(url string) (*VideoMetadata, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	meta, ok := c.cache[url]
	return meta, ok
}
