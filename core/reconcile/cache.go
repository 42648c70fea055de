package reconcile

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// cacheEntry is one cached remote lookup. A nil record caches an absent id.
type cacheEntry struct {
	record *RemoteRecord
	built  time.Time
}

// CachingRemote serves Find and FetchMultiple from a per-type TTL cache.
// Concurrent misses for the same key share one upstream call.
// Writes through the cache invalidate the ids they touch.
type CachingRemote struct {
	Remote

	ttl    time.Duration
	mu     sync.RWMutex
	caches map[string]map[string]cacheEntry
	sf     singleflight.Group
	now    func() time.Time
}

// NewCachingRemote wraps remote. A zero ttl disables caching but keeps request collapsing.
func NewCachingRemote(remote Remote, ttl time.Duration) *CachingRemote {
	return &CachingRemote{
		Remote: remote,
		ttl:    ttl,
		caches: make(map[string]map[string]cacheEntry),
		now:    time.Now,
	}
}

func (c *CachingRemote) expired(e cacheEntry) bool {
	if c.ttl == 0 {
		return true
	}
	return c.now().Sub(e.built) > c.ttl
}

func (c *CachingRemote) lookup(recordType, id string) (cacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.caches[recordType][id]
	if !ok || c.expired(e) {
		return cacheEntry{}, false
	}
	return e, true
}

func (c *CachingRemote) store(recordType string, records map[string]*RemoteRecord) {
	if c.ttl == 0 {
		return
	}
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	cache, ok := c.caches[recordType]
	if !ok {
		cache = make(map[string]cacheEntry)
		c.caches[recordType] = cache
	}
	for id, rec := range records {
		cache[id] = cacheEntry{record: rec, built: now}
	}
}

// Find returns the cached record or loads it.
func (c *CachingRemote) Find(ctx context.Context, recordType, id string) (*RemoteRecord, error) {
	if e, ok := c.lookup(recordType, id); ok {
		return e.record, nil
	}

	v, err, _ := c.sf.Do("find:"+recordType+":"+id, func() (any, error) {
		if e, ok := c.lookup(recordType, id); ok {
			return e.record, nil
		}
		rec, err := c.Remote.Find(ctx, recordType, id)
		if err != nil {
			return nil, err
		}
		c.store(recordType, map[string]*RemoteRecord{id: rec})
		return rec, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*RemoteRecord), nil
}

// FetchMultiple returns cached records when every id is cached and otherwise
// loads the whole id set in one upstream call.
func (c *CachingRemote) FetchMultiple(ctx context.Context, recordType string, ids []string) ([]RemoteRecord, error) {
	if len(ids) == 0 {
		return []RemoteRecord{}, nil
	}
	if records, ok := c.cachedAll(recordType, ids); ok {
		return records, nil
	}

	key := append([]string(nil), ids...)
	sort.Strings(key)
	v, err, _ := c.sf.Do("fetch:"+recordType+":"+strings.Join(key, ","), func() (any, error) {
		records, err := c.Remote.FetchMultiple(ctx, recordType, ids)
		if err != nil {
			return nil, err
		}
		found := make(map[string]*RemoteRecord, len(ids))
		for _, id := range ids {
			found[id] = nil
		}
		for i := range records {
			rec := records[i]
			found[rec.ID] = &rec
		}
		c.store(recordType, found)
		return records, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]RemoteRecord), nil
}

func (c *CachingRemote) cachedAll(recordType string, ids []string) ([]RemoteRecord, bool) {
	records := make([]RemoteRecord, 0, len(ids))
	for _, id := range ids {
		e, ok := c.lookup(recordType, id)
		if !ok {
			return nil, false
		}
		if e.record != nil {
			records = append(records, *e.record)
		}
	}
	return records, true
}

// Create delegates and caches nothing.
func (c *CachingRemote) Create(ctx context.Context, recordType string, attrs Attributes) (string, error) {
	id, err := c.Remote.Create(ctx, recordType, attrs)
	if err == nil {
		c.Invalidate(recordType, id)
	}
	return id, err
}

// Update delegates and invalidates the record.
func (c *CachingRemote) Update(ctx context.Context, recordType, id string, attrs Attributes) error {
	defer c.Invalidate(recordType, id)
	return c.Remote.Update(ctx, recordType, id, attrs)
}

// Delete delegates and invalidates the record.
func (c *CachingRemote) Delete(ctx context.Context, recordType, id string) error {
	defer c.Invalidate(recordType, id)
	return c.Remote.Delete(ctx, recordType, id)
}

// Invalidate drops cached entries. With no ids the whole type is dropped.
func (c *CachingRemote) Invalidate(recordType string, ids ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(ids) == 0 {
		delete(c.caches, recordType)
		return
	}
	for _, id := range ids {
		delete(c.caches[recordType], id)
	}
}

// QueryIDsByStamp delegates when the wrapped remote supports stamp queries.
func (c *CachingRemote) QueryIDsByStamp(ctx context.Context, recordType, field string, start, end time.Time) ([]string, error) {
	q, ok := c.Remote.(StampQuerier)
	if !ok {
		return nil, fmt.Errorf("%w: remote does not support stamp queries", ErrUnknownMechanism)
	}
	return q.QueryIDsByStamp(ctx, recordType, field, start, end)
}

// Count delegates when the wrapped remote can count records.
func (c *CachingRemote) Count(ctx context.Context, recordType string) (int64, error) {
	counter, ok := c.Remote.(Counter)
	if !ok {
		return -1, nil
	}
	return counter.Count(ctx, recordType)
}
