package routine

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// FetchFunc retrieves the parameters of d from the catalog source.
type FetchFunc func(ctx context.Context, d *Descriptor) ([]Parameter, error)

// ParamCache memoizes the parameters of one descriptor.
//
// At most one fetch runs per generation: concurrent first callers share the
// same call and its result. The shared fetch runs detached from any one
// caller's cancellation; a cancelled caller stops waiting and the others keep
// the flight. Clear starts a new generation without cancelling a running
// fetch; that fetch's result is still returned to its callers but is not
// stored.
type ParamCache struct {
	mu         sync.Mutex
	params     []Parameter
	populated  bool
	generation uint64
	group      singleflight.Group
}

// Get returns the cached parameters, fetching them first if needed. A failed
// fetch leaves the cache empty so the next call retries. If ctx ends first,
// Get returns ctx.Err() and the fetch carries on for the remaining callers.
func (c *ParamCache) Get(ctx context.Context, d *Descriptor, fetch FetchFunc) ([]Parameter, error) {
	c.mu.Lock()
	if c.populated {
		params := c.params
		c.mu.Unlock()
		return params, nil
	}
	c.mu.Unlock()

	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan("params", func() (any, error) {
		c.mu.Lock()
		if c.populated {
			params := c.params
			c.mu.Unlock()
			return params, nil
		}
		gen := c.generation
		c.mu.Unlock()

		params, err := fetch(fetchCtx, d)
		if err != nil {
			return nil, &FetchError{Routine: d.FullyQualifiedName(), Err: err}
		}
		if params == nil {
			params = []Parameter{}
		}

		c.mu.Lock()
		if c.generation == gen {
			c.params = params
			c.populated = true
		}
		c.mu.Unlock()
		return params, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.([]Parameter), nil
	}
}

// Clear drops the cached parameters.
func (c *ParamCache) Clear() {
	c.mu.Lock()
	c.params = nil
	c.populated = false
	c.generation++
	c.mu.Unlock()
	c.group.Forget("params")
}

// Populated reports whether the cache currently holds parameters.
func (c *ParamCache) Populated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.populated
}
