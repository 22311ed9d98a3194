package api

import (
	"github.com/dgraph-io/ristretto/v2"

	"github.com/gridtrack/gridtrack/pkg/config"
)

// responseCache memoizes rendered aggregation responses. Aggregation is
// deterministic over store contents, so a short TTL bounds staleness
// after new ingests without needing an invalidation protocol.
type responseCache struct {
	cache *ristretto.Cache[string, []byte]
}

func newResponseCache() (*responseCache, error) {
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: config.QueryCacheEntries * 10,
		MaxCost:     32 << 20, // 32MB of rendered JSON
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &responseCache{cache: c}, nil
}

func (rc *responseCache) get(key string) ([]byte, bool) {
	return rc.cache.Get(key)
}

func (rc *responseCache) put(key string, body []byte) {
	rc.cache.SetWithTTL(key, body, int64(len(body)), config.QueryCacheTTL)
}

func (rc *responseCache) close() {
	rc.cache.Close()
}
