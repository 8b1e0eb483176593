// Package lru provides a cost-bounded least-recently-used cache.
//
// Each entry carries a cost, typically its size in bytes. When the total
// cost exceeds the budget, the least recently used entries are evicted
// until it fits again. The most recently inserted entry is never evicted,
// so a single entry larger than the budget is still cached.
//
//	c := lru.New[string, *image.RGBA](64 << 20)
//	img, err := c.GetOrCreate(key, func() (*image.RGBA, int64, error) {
//	    img := render()
//	    return img, int64(len(img.Pix)), nil
//	})
//
// Cache is safe for concurrent use and must not be copied after creation.
package lru

import "sync"

// node is a node in the doubly-linked recency list. The head is the most
// recently used entry, the tail the least recently used.
type node[K comparable, V any] struct {
	key   K
	value V
	cost  int64
	prev  *node[K, V]
	next  *node[K, V]
}

// Cache is a cost-bounded LRU cache.
type Cache[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]*node[K, V]
	head    *node[K, V]
	tail    *node[K, V]
	cost    int64
	budget  int64
	onEvict func(K, V)

	hits, misses uint64
}

// New creates a cache holding entries up to a total cost of budget. A
// budget of 0 means unlimited.
func New[K comparable, V any](budget int64) *Cache[K, V] {
	return &Cache[K, V]{
		entries: make(map[K]*node[K, V]),
		budget:  max(budget, 0),
	}
}

// OnEvict registers fn to be called, without the lock held, for every entry
// evicted to make room. Entries removed with Delete or Clear are not
// reported.
func (c *Cache[K, V]) OnEvict(fn func(K, V)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onEvict = fn
}

// Get returns the value for key and marks it most recently used.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.entries[key]
	if !ok {
		c.misses++
		var zero V
		return zero, false
	}
	c.hits++
	c.moveToFront(n)
	return n.value, true
}

// Set stores value under key with the given cost, replacing any previous
// value, and evicts old entries if the budget is exceeded.
func (c *Cache[K, V]) Set(key K, value V, cost int64) {
	c.mu.Lock()
	evicted := c.set(key, value, cost)
	fn := c.onEvict
	c.mu.Unlock()

	c.report(fn, evicted)
}

// GetOrCreate returns the cached value for key, or calls create, caches its
// result and returns it. create runs without the lock held, so concurrent
// misses on the same key may create the value more than once; the last one
// stored wins. Errors from create are returned and nothing is cached.
func (c *Cache[K, V]) GetOrCreate(key K, create func() (V, int64, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, cost, err := create()
	if err != nil {
		var zero V
		return zero, err
	}
	c.Set(key, v, cost)
	return v, nil
}

// Delete removes key and reports whether it was present.
func (c *Cache[K, V]) Delete(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.entries[key]
	if !ok {
		return false
	}
	c.remove(n)
	return true
}

// Clear removes all entries.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[K]*node[K, V])
	c.head, c.tail = nil, nil
	c.cost = 0
}

// Len returns the number of entries.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats contains cache statistics.
type Stats struct {
	Len    int
	Cost   int64
	Budget int64
	Hits   uint64
	Misses uint64
}

// Stats returns a snapshot of the cache statistics.
func (c *Cache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Len:    len(c.entries),
		Cost:   c.cost,
		Budget: c.budget,
		Hits:   c.hits,
		Misses: c.misses,
	}
}

// set inserts or replaces an entry and returns the evicted ones.
// Caller must hold c.mu.
func (c *Cache[K, V]) set(key K, value V, cost int64) []*node[K, V] {
	cost = max(cost, 0)
	if n, ok := c.entries[key]; ok {
		c.cost += cost - n.cost
		n.value = value
		n.cost = cost
		c.moveToFront(n)
	} else {
		n := &node[K, V]{key: key, value: value, cost: cost}
		c.entries[key] = n
		c.pushFront(n)
		c.cost += cost
	}

	var evicted []*node[K, V]
	for c.budget > 0 && c.cost > c.budget && c.tail != c.head {
		n := c.tail
		c.remove(n)
		evicted = append(evicted, n)
	}
	return evicted
}

func (c *Cache[K, V]) report(fn func(K, V), evicted []*node[K, V]) {
	if fn == nil {
		return
	}
	for _, n := range evicted {
		fn(n.key, n.value)
	}
}

// remove unlinks n and deletes it from the map. Caller must hold c.mu.
func (c *Cache[K, V]) remove(n *node[K, V]) {
	c.unlink(n)
	delete(c.entries, n.key)
	c.cost -= n.cost
}

func (c *Cache[K, V]) pushFront(n *node[K, V]) {
	n.prev = nil
	n.next = c.head
	if c.head != nil {
		c.head.prev = n
	}
	c.head = n
	if c.tail == nil {
		c.tail = n
	}
}

func (c *Cache[K, V]) moveToFront(n *node[K, V]) {
	if n == c.head {
		return
	}
	c.unlink(n)
	c.pushFront(n)
}

// unlink removes n from the list without touching the map.
func (c *Cache[K, V]) unlink(n *node[K, V]) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		c.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		c.tail = n.prev
	}
	n.prev = nil
	n.next = nil
}
