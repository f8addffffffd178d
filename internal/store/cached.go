// internal/store/cached.go
//
// Read-through cache for form loads.
//
// Context
// -------
// Every public submission loads its form, so hot forms are kept in an LRU.
// Concurrent misses for the same id collapse into one repository call via
// singleflight.  Writes go straight through and evict the entry; nothing
// else writes forms, so there is no TTL.
//
// Callers always receive a private clone and may mutate it freely.
package store

import (
	"context"
	"errors"

	"golang.org/x/sync/singleflight"

	"github.com/yanizio/formforge/internal/cache"
	"github.com/yanizio/formforge/internal/form"
	"github.com/yanizio/formforge/internal/metrics"
)

// Cached decorates a form.Repository.
type Cached struct {
	form.Repository
	lru   *cache.LRU[string, *form.Form]
	group singleflight.Group
}

// NewCached wraps next with an LRU of the given size (minimum 1).
func NewCached(next form.Repository, size int) *Cached {
	if size < 1 {
		size = 1
	}
	return &Cached{Repository: next, lru: cache.New[string, *form.Form](size)}
}

// LoadForm serves from cache or loads once per concurrent miss.
func (c *Cached) LoadForm(ctx context.Context, id string) (*form.Form, error) {
	if f, ok := c.lru.Get(id); ok {
		metrics.SchemaCacheHits.Inc()
		return f.Clone(), nil
	}
	metrics.SchemaCacheMisses.Inc()

	v, err, _ := c.group.Do(id, func() (any, error) {
		f, err := c.Repository.LoadForm(ctx, id)
		if err != nil {
			return nil, err
		}
		c.lru.Add(id, f)
		return f, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*form.Form).Clone(), nil
}

// SaveForm writes through and evicts.
func (c *Cached) SaveForm(ctx context.Context, f *form.Form) error {
	defer c.lru.Remove(f.ID)
	return c.Repository.SaveForm(ctx, f)
}

// ListSubmissions forwards when the wrapped repository supports listing.
func (c *Cached) ListSubmissions(ctx context.Context, formID string, limit, offset int) ([]form.Submission, error) {
	l, ok := c.Repository.(Lister)
	if !ok {
		return nil, errors.New("store: repository cannot list submissions")
	}
	return l.ListSubmissions(ctx, formID, limit, offset)
}

// Lister is implemented by stores that can page through submissions.
type Lister interface {
	ListSubmissions(ctx context.Context, formID string, limit, offset int) ([]form.Submission, error)
}

var (
	_ form.Repository = (*SQLStore)(nil)
	_ form.Repository = (*Cached)(nil)
	_ Lister          = (*SQLStore)(nil)
	_ Lister          = (*Cached)(nil)
)
