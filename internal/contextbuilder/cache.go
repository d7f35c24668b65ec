package contextbuilder

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru"
)

// DefaultCacheSize bounds both caches below when New is given a cacheSize
// of 0. cmd/server passes 0, so config.Tunables.Performance.MaxCacheSize
// does not resize these caches.
const DefaultCacheSize = 500

// tokenCache memoizes EstimateTokens by a stable text key (spec §4.4:
// "Cached by a stable text key").
type tokenCache struct {
	cache *lru.Cache
}

func newTokenCache(size int) *tokenCache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, _ := lru.New(size) // only errors on size<=0, guarded above
	return &tokenCache{cache: c}
}

func (c *tokenCache) estimate(text string) int {
	if v, ok := c.cache.Get(text); ok {
		return v.(int)
	}
	n := EstimateTokens(text)
	c.cache.Add(text, n)
	return n
}

// promptCache memoizes the assembled [system, user] pair under the tuple
// (discussion id, model, round, message count), purged periodically by the
// orchestrator's cache-cleanup timer (spec §4.4).
type promptCache struct {
	cache *lru.Cache
}

func newPromptCache(size int) *promptCache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, _ := lru.New(size)
	return &promptCache{cache: c}
}

func promptCacheKey(discussionID, model string, round, messageCount int) string {
	return fmt.Sprintf("%s|%s|%d|%d", discussionID, model, round, messageCount)
}

func (c *promptCache) get(key string) ([]Turn, bool) {
	v, ok := c.cache.Get(key)
	if !ok {
		return nil, false
	}
	return v.([]Turn), true
}

func (c *promptCache) put(key string, turns []Turn) {
	c.cache.Add(key, turns)
}

// Purge discards every cached entry; called on the periodic cache-cleanup
// tick configured by config.Tunables.Performance.CacheCleanupInterval.
func (b *Builder) Purge() {
	b.tokens.cache.Purge()
	b.prompts.cache.Purge()
}
