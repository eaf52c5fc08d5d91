package compositor

import (
	"context"
	"encoding/hex"
	"fmt"
	"image"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/blake2b"
)

// Key identifies a cached resource: the BLAKE2b-256 digest of its reference.
type Key [blake2b.Size256]byte

// KeyOf returns the cache key for ref.
func KeyOf(ref string) Key {
	return blake2b.Sum256([]byte(ref))
}

// String returns a short hex form for logs.
func (k Key) String() string {
	return hex.EncodeToString(k[:8])
}

// Handle is a reference-counted lease on a decoded image.
type Handle struct {
	key   Key
	ref   string
	img   image.Image
	count int
}

// Image returns the decoded image.
func (h *Handle) Image() image.Image {
	return h.img
}

// Key returns the cache key of the handle.
func (h *Handle) Key() Key {
	return h.key
}

// Cache is a content-addressed image cache. Each distinct reference is
// decoded once and shared; an entry is evicted when its last handle is
// released. Dispose drops everything at session end.
type Cache struct {
	loader Loader

	mu       sync.Mutex
	entries  map[Key]*Handle
	disposed bool

	decodes atomic.Uint64
}

// NewCache creates a cache backed by loader. A nil loader uses a
// ResourceLoader.
func NewCache(loader Loader) *Cache {
	if loader == nil {
		loader = NewResourceLoader()
	}
	return &Cache{
		loader:  loader,
		entries: make(map[Key]*Handle),
	}
}

// Acquire returns a handle for ref, decoding it on first use.
func (c *Cache) Acquire(ctx context.Context, ref string) (*Handle, error) {
	key := KeyOf(ref)

	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return nil, ErrCacheDisposed
	}
	if h, ok := c.entries[key]; ok {
		h.count++
		c.mu.Unlock()
		return h, nil
	}
	c.mu.Unlock()

	img, err := c.loader.Load(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", describeRef(ref), err)
	}
	c.decodes.Add(1)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disposed {
		return nil, ErrCacheDisposed
	}
	// another caller may have loaded the same ref meanwhile
	if h, ok := c.entries[key]; ok {
		h.count++
		return h, nil
	}

	h := &Handle{key: key, ref: ref, img: img, count: 1}
	c.entries[key] = h

	logrus.WithFields(logrus.Fields{
		"function": "Cache.Acquire",
		"key":      key.String(),
		"ref":      describeRef(ref),
		"bounds":   img.Bounds().String(),
	}).Debug("Image cached")

	return h, nil
}

// Release drops one lease on h; the entry is evicted at zero.
func (c *Cache) Release(h *Handle) {
	if h == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	cur, ok := c.entries[h.key]
	if !ok || cur != h {
		return
	}
	cur.count--
	if cur.count <= 0 {
		delete(c.entries, h.key)
		logrus.WithFields(logrus.Fields{
			"function": "Cache.Release",
			"key":      h.key.String(),
		}).Debug("Image evicted")
	}
}

// Dispose evicts every entry. Later Acquire calls fail with
// ErrCacheDisposed.
func (c *Cache) Dispose() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disposed {
		return
	}

	logrus.WithFields(logrus.Fields{
		"function": "Cache.Dispose",
		"entries":  len(c.entries),
	}).Info("Disposing image cache")

	c.entries = make(map[Key]*Handle)
	c.disposed = true
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// RefCount returns the lease count for ref, 0 when not cached.
func (c *Cache) RefCount(ref string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if h, ok := c.entries[KeyOf(ref)]; ok {
		return h.count
	}
	return 0
}

// Decodes returns how many times the loader has been invoked successfully.
func (c *Cache) Decodes() uint64 {
	return c.decodes.Load()
}
