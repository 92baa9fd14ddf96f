// Package cache はニュースレスポンスのインメモリTTLキャッシュを提供する。
// 上流RSSソースへの到達をリクエストごとに行わないための軽量キャッシュで、
// 外部ストアには依存しない。
package cache

import (
	"sync"
	"time"
)

type entry struct {
	val []byte
	at  time.Time
}

// TTLCache はキー付きのTTLキャッシュ。すべての操作は並行安全。
type TTLCache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
}

// NewTTLCache はTTLCacheを生成する。ttlが0以下の場合は5分を使用する。
func NewTTLCache(ttl time.Duration) *TTLCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &TTLCache{
		entries: make(map[string]entry),
		ttl:     ttl,
	}
}

// Get はキーに対応する値を返す。未登録またはTTL超過の場合は(nil, false)。
func (c *TTLCache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || time.Since(e.at) > c.ttl {
		return nil, false
	}
	return e.val, true
}

// Set はキーに値を登録し、TTLを現在時刻から再計測する。
func (c *TTLCache) Set(key string, val []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{val: val, at: time.Now()}
}

// Invalidate はキーの登録を削除する。
func (c *TTLCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Sweep はTTL超過したエントリを一括削除し、削除件数を返す。
// 定期的なバックグラウンド呼び出しを想定している。
func (c *TTLCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for k, e := range c.entries {
		if time.Since(e.at) > c.ttl {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}
