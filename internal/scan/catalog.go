package scan

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/markb/routinecat/internal/catalog"
	"github.com/markb/routinecat/internal/log"
	"github.com/markb/routinecat/internal/observability"
	"github.com/markb/routinecat/internal/routine"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

// ErrRoutineNotFound is returned by Catalog.Routine.
var ErrRoutineNotFound = errors.New("routine not found")

// Catalog keeps the descriptors of every scanned container. Descriptors live
// until their container is refreshed; refreshing a routine only drops its
// parameter cache. A scan that was running when its container was refreshed
// still answers its callers but is not stored.
type Catalog struct {
	scanner *Scanner
	fetch   routine.FetchFunc
	tel     *observability.Telemetry

	mu      sync.RWMutex
	results map[string]*Result
	gens    map[string]uint64
	loads   singleflight.Group
}

// NewCatalog creates a Catalog that scans with scanner and loads parameters
// with fetch. tel may be nil.
func NewCatalog(scanner *Scanner, fetch routine.FetchFunc, tel *observability.Telemetry) *Catalog {
	return &Catalog{
		scanner: scanner,
		fetch:   fetch,
		tel:     tel,
		results: make(map[string]*Result),
		gens:    make(map[string]uint64),
	}
}

// Routines returns the scan result for container, scanning it on first use.
// Concurrent callers share one scan, which is not cancelled when one of
// them gives up.
func (c *Catalog) Routines(ctx context.Context, container catalog.Container) (*Result, error) {
	key := catalog.DisplayName(container)

	c.mu.RLock()
	res, ok := c.results[key]
	c.mu.RUnlock()
	if ok {
		return res, nil
	}

	scanCtx := context.WithoutCancel(ctx)
	ch := c.loads.DoChan(key, func() (any, error) {
		c.mu.RLock()
		res, ok := c.results[key]
		gen := c.gens[key]
		c.mu.RUnlock()
		if ok {
			return res, nil
		}

		res, err := c.scanner.Scan(scanCtx, container)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		if c.gens[key] == gen {
			c.results[key] = res
		}
		c.mu.Unlock()
		return res, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*Result), nil
	}
}

// Routine finds a routine of container by name or specific name. Names are
// matched exactly first, then as upper-case ordinary identifiers.
func (c *Catalog) Routine(ctx context.Context, container catalog.Container, name string) (*routine.Descriptor, error) {
	res, err := c.Routines(ctx, container)
	if err != nil {
		return nil, err
	}
	for _, candidate := range []string{name, strings.ToUpper(name)} {
		for _, d := range res.Routines {
			if d.Name == candidate || (d.SpecificName != nil && *d.SpecificName == candidate) {
				return d, nil
			}
		}
	}
	return nil, fmt.Errorf("%s.%s: %w", catalog.DisplayName(container), name, ErrRoutineNotFound)
}

// Parameters returns the parameters of d through its cache.
func (c *Catalog) Parameters(ctx context.Context, d *routine.Descriptor) ([]routine.Parameter, error) {
	return d.Parameters(ctx, c.instrumentedFetch)
}

func (c *Catalog) instrumentedFetch(ctx context.Context, d *routine.Descriptor) ([]routine.Parameter, error) {
	start := time.Now()
	ctx, span := c.scanner.tracer().Start(ctx, "catalog.parameters",
		trace.WithAttributes(observability.AttrRoutine.String(d.FullyQualifiedName())),
	)
	defer span.End()

	params, err := c.fetch(ctx, d)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch parameters")
	}

	log.Debug("fetched routine parameters",
		"routine", d.FullyQualifiedName(),
		"count", len(params),
		"duration_ms", time.Since(start).Milliseconds(),
		"error", err,
	)
	if c.tel != nil && c.tel.Metrics() != nil {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		c.tel.Metrics().ParamFetches.Add(ctx, 1, metric.WithAttributes(observability.AttrOutcome.String(outcome)))
	}
	return params, err
}

// RefreshContainer forgets the descriptors of container; the next lookup
// scans it again.
func (c *Catalog) RefreshContainer(container catalog.Container) {
	key := catalog.DisplayName(container)
	c.mu.Lock()
	delete(c.results, key)
	c.gens[key]++
	c.mu.Unlock()
	c.loads.Forget(key)
	log.Info("container refreshed", "container", key)
}

// RefreshRoutine drops the cached parameters of d.
func (c *Catalog) RefreshRoutine(ctx context.Context, d *routine.Descriptor) error {
	if _, err := d.Refresh(ctx); err != nil {
		return err
	}
	log.Info("routine refreshed", "routine", d.FullyQualifiedName())
	return nil
}
