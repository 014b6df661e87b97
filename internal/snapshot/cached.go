package snapshot

import (
	"github.com/coocood/freecache"
	json "github.com/goccy/go-json"
	"github.com/huangsam/issuetrend/internal/contract"
	"github.com/huangsam/issuetrend/internal/iocache"
	"github.com/huangsam/issuetrend/schema"
)

// DefaultCacheSize is the in-memory budget of a CachedStore in bytes.
// A single entry may use at most 1/1024 of it, so entries are stored compressed.
const DefaultCacheSize = 64 * 1024 * 1024

// CachedStore keeps recently loaded documents in memory in front of another store.
// Writes through the store invalidate the entry.
type CachedStore struct {
	inner contract.SnapshotStore
	cache *freecache.Cache
	codec *iocache.ZstdCompressor
	ttl   int // Seconds, 0 means no expiry
}

var _ contract.SnapshotStore = &CachedStore{} // Compile-time check

// NewCachedStore wraps inner with a freecache of sizeBytes.
func NewCachedStore(inner contract.SnapshotStore, sizeBytes, ttlSeconds int) (*CachedStore, error) {
	if sizeBytes <= 0 {
		sizeBytes = DefaultCacheSize
	}
	codec, err := iocache.NewZstdCompressor()
	if err != nil {
		return nil, err
	}
	return &CachedStore{
		inner: inner,
		cache: freecache.NewCache(sizeBytes),
		codec: codec,
		ttl:   max(ttlSeconds, 0),
	}, nil
}

func cacheKey(repo schema.RepoID) []byte {
	return []byte(repo.String())
}

// Load serves the document from memory when possible.
func (c *CachedStore) Load(repo schema.RepoID) (*schema.PersistedTimeline, error) {
	if val, err := c.cache.Get(cacheKey(repo)); err == nil {
		if doc, err := c.decode(val); err == nil {
			return doc, nil
		}
		c.cache.Del(cacheKey(repo))
	}

	doc, err := c.inner.Load(repo)
	if err != nil || doc == nil {
		return doc, err
	}
	if val, err := json.Marshal(doc); err == nil {
		// Oversized entries are simply not cached
		_ = c.cache.Set(cacheKey(repo), c.codec.Compress(val), c.ttl)
	}
	return doc, nil
}

func (c *CachedStore) decode(val []byte) (*schema.PersistedTimeline, error) {
	raw, err := c.codec.Decompress(val)
	if err != nil {
		return nil, err
	}
	var doc schema.PersistedTimeline
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Save writes through and drops the cached entry.
func (c *CachedStore) Save(repo schema.RepoID, doc schema.PersistedTimeline) error {
	c.cache.Del(cacheKey(repo))
	return c.inner.Save(repo, doc)
}

// Quarantine forwards to the wrapped store and drops the cached entry.
func (c *CachedStore) Quarantine(repo schema.RepoID) (string, error) {
	c.cache.Del(cacheKey(repo))
	return c.inner.Quarantine(repo)
}

// List forwards to the wrapped store.
func (c *CachedStore) List() ([]schema.RepoID, error) {
	return c.inner.List()
}

// HitRate reports the cache hit ratio since creation.
func (c *CachedStore) HitRate() float64 {
	return c.cache.HitRate()
}

// Close releases the compressor.
func (c *CachedStore) Close() {
	c.codec.Close()
}
