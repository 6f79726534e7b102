package tentacles

import (
	"container/list"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	DefaultCacheSize = 100
	DefaultCacheTTL  = 600 * time.Second
)

type cacheEntry struct {
	key       string
	value     *Response
	expiresAt time.Time
}

// CacheStats counts cache outcomes since construction or the last Clear.
type CacheStats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Size      int
}

// ResponseCache is a TTL-bounded LRU of read responses. Set stores a copy and
// Get hands out a copy, so callers may modify what they receive.
type ResponseCache struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	ll      *list.List
	items   map[string]*list.Element
	stats   CacheStats
	now     func() time.Time
}

// NewResponseCache returns a cache holding at most maxSize entries for ttl.
// A non-positive maxSize disables caching.
func NewResponseCache(maxSize int, ttl time.Duration) *ResponseCache {
	return &ResponseCache{
		maxSize: maxSize,
		ttl:     ttl,
		ll:      list.New(),
		items:   make(map[string]*list.Element),
		now:     time.Now,
	}
}

func (c *ResponseCache) Enabled() bool {
	return c != nil && c.maxSize > 0 && c.ttl > 0
}

// CacheKey builds the key for a request. encoding/json writes map keys in
// sorted order, so equal parameter sets always produce the same key. Params
// JSON cannot encode (NaN, Inf, channels) fall back to a sorted %#v rendering.
func CacheKey(method, endpoint string, params map[string]interface{}) string {
	var b strings.Builder
	b.WriteString(strings.ToUpper(method))
	b.WriteByte(' ')
	b.WriteString(endpoint)
	if len(params) > 0 {
		b.WriteByte('?')
		if raw, err := json.Marshal(params); err == nil {
			b.Write(raw)
		} else {
			b.WriteString(renderParams(params))
		}
	}
	return b.String()
}

func renderParams(params map[string]interface{}) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%q=%#v", k, params[k])
	}
	return strings.Join(parts, "&")
}

func (c *ResponseCache) Get(key string) (*Response, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		c.stats.Misses++
		return nil, false
	}
	entry := el.Value.(*cacheEntry)
	if !c.now().Before(entry.expiresAt) {
		c.removeElement(el)
		c.stats.Misses++
		return nil, false
	}
	c.ll.MoveToFront(el)
	c.stats.Hits++
	return entry.value.clone(), true
}

func (c *ResponseCache) Set(key string, value *Response) {
	if !c.Enabled() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	value = value.clone()
	expiresAt := c.now().Add(c.ttl)
	if el, ok := c.items[key]; ok {
		entry := el.Value.(*cacheEntry)
		entry.value = value
		entry.expiresAt = expiresAt
		c.ll.MoveToFront(el)
		return
	}
	c.items[key] = c.ll.PushFront(&cacheEntry{key: key, value: value, expiresAt: expiresAt})
	for c.ll.Len() > c.maxSize {
		c.removeElement(c.ll.Back())
		c.stats.Evictions++
	}
}

func (c *ResponseCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ll.Init()
	c.items = make(map[string]*list.Element)
	c.stats = CacheStats{}
}

func (c *ResponseCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Size = c.ll.Len()
	return s
}

func (c *ResponseCache) removeElement(el *list.Element) {
	c.ll.Remove(el)
	delete(c.items, el.Value.(*cacheEntry).key)
}
