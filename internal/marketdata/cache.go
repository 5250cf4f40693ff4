package marketdata

import (
	"sync"
	"time"
)

// DefaultQuoteTTL bounds how long a cached quote is served before the
// provider is asked again. Quotes are time-sensitive but not tick-critical
// for a dashboard, so five minutes keeps the call volume well under Yahoo's
// tolerance.
const DefaultQuoteTTL = 300 * time.Second

type quoteCacheEntry struct {
	quote     Quote
	fetchedAt time.Time
}

// quoteCache is a TTL map keyed by symbol. Entries are idempotent re-fetches
// of the same symbol, so last-write-wins is fine.
type quoteCache struct {
	mu  sync.Mutex
	ttl time.Duration
	m   map[string]quoteCacheEntry
}

func newQuoteCache(ttl time.Duration) *quoteCache {
	if ttl <= 0 {
		ttl = DefaultQuoteTTL
	}
	return &quoteCache{ttl: ttl, m: make(map[string]quoteCacheEntry)}
}

func (c *quoteCache) get(symbol string) (Quote, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.m[symbol]
	if !ok || time.Since(entry.fetchedAt) >= c.ttl {
		return Quote{}, false
	}
	return entry.quote, true
}

func (c *quoteCache) set(symbol string, q Quote) {
	c.mu.Lock()
	c.m[symbol] = quoteCacheEntry{quote: q, fetchedAt: time.Now()}
	c.mu.Unlock()
}

func (c *quoteCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.m)
}

func (c *quoteCache) clear() {
	c.mu.Lock()
	c.m = make(map[string]quoteCacheEntry)
	c.mu.Unlock()
}
