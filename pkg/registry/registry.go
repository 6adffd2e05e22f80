// Package registry caches decoded line maps per module. A module's resource
// is fetched and decoded at most once, no matter how many goroutines ask for
// it at the same time.
package registry

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/lo"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/grafana/linemap/pkg/linemap"
	"github.com/grafana/linemap/pkg/resource"
)

// ErrNotAvailable is returned when a module has no usable line map: the
// resource is absent or cannot be decoded. The cause is wrapped alongside.
var ErrNotAvailable = errors.New("line map not available")

// Source supplies the encoded resource of a module.
type Source interface {
	Get(ctx context.Context, module linemap.ModuleID) ([]byte, error)
}

// Decoder turns an encoded resource back into a line map.
type Decoder interface {
	Decode(b []byte) (*linemap.LineMap, error)
}

type Registry struct {
	logger  log.Logger
	cfg     Config
	source  Source
	decoder Decoder
	metrics *metrics

	mu   sync.RWMutex
	maps map[linemap.ModuleID]*linemap.LineMap
	// nil when negative caching is disabled
	missing *expirable.LRU[linemap.ModuleID, error]

	group singleflight.Group
	// bumped by Clear so that loads started before it are not cached
	generation atomic.Uint64
	loads      atomic.Int64
}

func New(logger log.Logger, cfg Config, source Source, decoder Decoder, reg prometheus.Registerer) (*Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &Registry{
		logger:  log.With(logger, "component", "linemap-registry"),
		cfg:     cfg,
		source:  source,
		decoder: decoder,
		metrics: newMetrics(reg),
		maps:    make(map[linemap.ModuleID]*linemap.LineMap),
	}
	if cfg.NotFoundTTL > 0 {
		r.missing = expirable.NewLRU[linemap.ModuleID, error](cfg.NotFoundCacheSize, nil, cfg.NotFoundTTL)
	}
	return r, nil
}

// Get returns the line map of module, loading it on first use. A module
// without a usable line map yields an error matching ErrNotAvailable. The
// returned map is shared and must not be modified.
func (r *Registry) Get(ctx context.Context, module linemap.ModuleID) (*linemap.LineMap, error) {
	if m, ok := r.cached(module); ok {
		r.metrics.lookups.WithLabelValues(resultHit).Inc()
		return m, nil
	}
	if r.missing != nil {
		if cause, ok := r.missing.Get(module); ok {
			r.metrics.lookups.WithLabelValues(resultNegativeHit).Inc()
			return nil, notAvailable(module, cause)
		}
	}
	r.metrics.lookups.WithLabelValues(resultMiss).Inc()

	// The load outlives a canceled caller: other callers may be waiting on it.
	loadCtx := context.WithoutCancel(ctx)
	ch := r.group.DoChan(string(module), func() (any, error) {
		return r.load(loadCtx, module)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*linemap.LineMap), nil
	}
}

func (r *Registry) cached(module linemap.ModuleID) (*linemap.LineMap, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.maps[module]
	return m, ok
}

func (r *Registry) load(ctx context.Context, module linemap.ModuleID) (*linemap.LineMap, error) {
	// A concurrent load may have finished between the lookup and the flight.
	if m, ok := r.cached(module); ok {
		return m, nil
	}
	gen := r.generation.Load()
	r.loads.Inc()

	start := time.Now()
	status := statusSuccess
	defer func() {
		r.metrics.loads.WithLabelValues(status).Inc()
		r.metrics.loadDuration.Observe(time.Since(start).Seconds())
	}()

	blob, err := r.source.Get(ctx, module)
	if err != nil {
		if errors.Is(err, resource.ErrNotFound) {
			status = statusNotFound
			level.Debug(r.logger).Log("msg", "no line map resource", "module", module)
			r.remember(gen, module, err)
		} else {
			status = statusStore
			level.Warn(r.logger).Log("msg", "failed to fetch line map resource", "module", module, "err", err)
		}
		return nil, notAvailable(module, err)
	}
	r.metrics.blobSize.Observe(float64(len(blob)))

	m, err := r.decoder.Decode(blob)
	if err != nil {
		status = decodeStatus(err)
		level.Warn(r.logger).Log("msg", "failed to decode line map resource", "module", module, "size", len(blob), "err", err)
		r.remember(gen, module, err)
		return nil, notAvailable(module, err)
	}

	r.mu.Lock()
	if gen == r.generation.Load() {
		r.maps[module] = m
		r.metrics.cachedModules.Set(float64(len(r.maps)))
	}
	r.mu.Unlock()
	level.Debug(r.logger).Log("msg", "line map loaded", "module", module,
		"symbols", len(m.Symbols), "lines", len(m.AddressToLine), "names", m.Names.Len())
	return m, nil
}

func (r *Registry) remember(gen uint64, module linemap.ModuleID, cause error) {
	if r.missing == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if gen != r.generation.Load() {
		return
	}
	r.missing.Add(module, cause)
	r.metrics.missingModules.Set(float64(r.missing.Len()))
}

// Install caches a map built in process, replacing any cached entry.
func (r *Registry) Install(module linemap.ModuleID, m *linemap.LineMap) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.maps[module] = m
	r.metrics.cachedModules.Set(float64(len(r.maps)))
	if r.missing != nil {
		r.missing.Remove(module)
		r.metrics.missingModules.Set(float64(r.missing.Len()))
	}
}

// Clear drops every cached map and every remembered miss. Loads in flight
// when Clear is called do not populate the cache.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generation.Inc()
	clear(r.maps)
	r.metrics.cachedModules.Set(0)
	if r.missing != nil {
		r.missing.Purge()
		r.metrics.missingModules.Set(0)
	}
}

// Modules returns the modules with a cached map, sorted.
func (r *Registry) Modules() []linemap.ModuleID {
	r.mu.RLock()
	ids := lo.Keys(r.maps)
	r.mu.RUnlock()
	slices.Sort(ids)
	return ids
}

// Loads reports how many resource loads have been started.
func (r *Registry) Loads() int64 { return r.loads.Load() }

// Preload loads the given modules concurrently. Modules without a usable
// line map do not stop the others; their errors are returned together.
func (r *Registry) Preload(ctx context.Context, modules ...linemap.ModuleID) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.PreloadConcurrency)

	var (
		mu     sync.Mutex
		result *multierror.Error
	)
	for _, module := range lo.Uniq(modules) {
		module := module
		g.Go(func() error {
			_, err := r.Get(ctx, module)
			switch {
			case err == nil:
			case errors.Is(err, ErrNotAvailable):
				mu.Lock()
				result = multierror.Append(result, err)
				mu.Unlock()
			default:
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return result.ErrorOrNil()
}

func notAvailable(module linemap.ModuleID, cause error) error {
	return fmt.Errorf("%w: %s: %w", ErrNotAvailable, module, cause)
}
