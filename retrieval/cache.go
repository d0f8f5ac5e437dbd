package retrieval

import (
	"container/list"
	"sync"
)

// resultCache is a byte-budgeted LRU over final retrieval results. Gets
// return a copy so callers can't mutate cached entries.
type resultCache struct {
	mu       sync.Mutex
	maxBytes int64
	size     int64
	ll       *list.List
	entries  map[string]*list.Element
}

type cacheEntry struct {
	key     string
	results []Result
	bytes   int64
}

func newResultCache(maxBytes int64) *resultCache {
	return &resultCache{
		maxBytes: maxBytes,
		ll:       list.New(),
		entries:  make(map[string]*list.Element),
	}
}

func (c *resultCache) get(key string) ([]Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.ll.MoveToFront(el)
	cached := el.Value.(*cacheEntry).results
	out := make([]Result, len(cached))
	copy(out, cached)
	return out, true
}

func (c *resultCache) put(key string, results []Result) {
	size := resultBytes(results)
	if size > c.maxBytes {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		entry := el.Value.(*cacheEntry)
		c.size += size - entry.bytes
		entry.results = results
		entry.bytes = size
		c.ll.MoveToFront(el)
	} else {
		el := c.ll.PushFront(&cacheEntry{key: key, results: results, bytes: size})
		c.entries[key] = el
		c.size += size
	}

	for c.size > c.maxBytes {
		back := c.ll.Back()
		if back == nil {
			break
		}
		entry := back.Value.(*cacheEntry)
		c.ll.Remove(back)
		delete(c.entries, entry.key)
		c.size -= entry.bytes
	}
}

// resultBytes approximates the memory held by a result set: string payloads
// plus a fixed per-record overhead for the numeric fields.
func resultBytes(results []Result) int64 {
	const overhead = 128
	var n int64
	for _, r := range results {
		n += overhead
		n += int64(len(r.UnitID) + len(r.Title) + len(r.Content) +
			len(r.Citation) + len(r.Court) + len(r.Source) +
			len(r.InterpretsStatute) + len(r.InterpretationType))
	}
	return n
}
