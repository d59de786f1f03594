package screening

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/RyanBlaney/sonido-screen/classifier"
	"github.com/RyanBlaney/sonido-screen/dataset"
	"github.com/RyanBlaney/sonido-screen/logging"
	"github.com/RyanBlaney/sonido-screen/storage"
)

// Loader produces a freshly parsed reference dataset
type Loader func(ctx context.Context) (*dataset.Dataset, error)

// DatasetLoader loads path from src with the given parse options
func DatasetLoader(src storage.Source, path string, opts dataset.ParseOptions) Loader {
	return func(ctx context.Context) (*dataset.Dataset, error) {
		return dataset.Load(ctx, src, path, opts)
	}
}

// modelSnapshot is an immutable view of the cache. Adding metadata for a new
// k replaces the snapshot.
type modelSnapshot struct {
	generation uint64
	model      *classifier.KNN
	meta       map[int]*classifier.ModelMetadata
}

// ModelCache lazily loads the reference dataset once and memoizes model
// metadata (including leave-one-out accuracy) per k. Concurrent first calls
// share a single load. Reads of a populated cache take no locks.
type ModelCache struct {
	load        Loader
	opts        classifier.Options
	loadTimeout time.Duration

	group      singleflight.Group
	snapshot   atomic.Pointer[modelSnapshot]
	generation atomic.Uint64
	mu         sync.Mutex // Serializes snapshot replacement

	logger logging.Logger
}

// NewModelCache creates an empty cache. loadTimeout bounds each dataset
// load; 0 means no bound beyond the loader's own.
func NewModelCache(load Loader, opts classifier.Options, loadTimeout time.Duration) *ModelCache {
	return &ModelCache{
		load:        load,
		opts:        opts,
		loadTimeout: loadTimeout,
		logger: logging.WithFields(logging.Fields{
			"component": "model_cache",
		}),
	}
}

// Ensure returns the model and its metadata for k, loading the dataset and
// evaluating the model on first use. A failed load leaves the cache empty.
// ctx bounds only this caller's wait; an in-flight load keeps running for
// the other callers.
func (c *ModelCache) Ensure(ctx context.Context, k int) (*classifier.KNN, *classifier.ModelMetadata, error) {
	if snap := c.snapshot.Load(); snap != nil {
		if meta, ok := snap.meta[k]; ok {
			return snap.model, meta, nil
		}
	}

	gen := c.generation.Load()
	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(fmt.Sprintf("%d/meta/%d", gen, k), func() (any, error) {
		return c.evaluate(detached, gen, k)
	})

	select {
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, nil, res.Err
		}
		snap := res.Val.(*modelSnapshot)
		return snap.model, snap.meta[k], nil
	}
}

// Model returns the loaded model without loading it. It fails with
// classifier.ErrModelNotReady when the cache is empty.
func (c *ModelCache) Model() (*classifier.KNN, error) {
	snap := c.snapshot.Load()
	if snap == nil {
		return nil, classifier.ErrModelNotReady
	}
	return snap.model, nil
}

// Metadata returns memoized metadata for k, if evaluated
func (c *ModelCache) Metadata(k int) (*classifier.ModelMetadata, bool) {
	snap := c.snapshot.Load()
	if snap == nil {
		return nil, false
	}
	meta, ok := snap.meta[k]
	return meta, ok
}

// Reset empties the cache. The next Ensure reloads from the source; a load
// already in flight is not installed.
func (c *ModelCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation.Add(1)
	c.snapshot.Store(nil)
	c.logger.Info("Model cache reset")
}

// evaluate computes metadata for k and installs it next to the model
func (c *ModelCache) evaluate(ctx context.Context, gen uint64, k int) (*modelSnapshot, error) {
	model, err := c.ensureModel(ctx, gen)
	if err != nil {
		return nil, err
	}

	meta, err := model.Metadata(k)
	if err != nil {
		return nil, err
	}
	result := &modelSnapshot{
		generation: gen,
		model:      model,
		meta:       map[int]*classifier.ModelMetadata{k: meta},
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	cur := c.snapshot.Load()
	if cur == nil || cur.generation != gen || cur.model != model {
		// reset while evaluating
		return result, nil
	}
	next := &modelSnapshot{
		generation: gen,
		model:      model,
		meta:       make(map[int]*classifier.ModelMetadata, len(cur.meta)+1),
	}
	maps.Copy(next.meta, cur.meta)
	next.meta[k] = meta
	c.snapshot.Store(next)

	return result, nil
}

// ensureModel returns the model of generation gen, loading the dataset once
func (c *ModelCache) ensureModel(ctx context.Context, gen uint64) (*classifier.KNN, error) {
	if snap := c.snapshot.Load(); snap != nil && snap.generation == gen {
		return snap.model, nil
	}

	v, err, _ := c.group.Do(fmt.Sprintf("%d/dataset", gen), func() (any, error) {
		return c.loadModel(ctx, gen)
	})
	if err != nil {
		return nil, err
	}
	return v.(*classifier.KNN), nil
}

func (c *ModelCache) loadModel(ctx context.Context, gen uint64) (*classifier.KNN, error) {
	if c.loadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.loadTimeout)
		defer cancel()
	}

	start := time.Now()
	ds, err := c.load(ctx)
	if err != nil {
		c.logger.Error(err, "Failed to load model")
		return nil, err
	}
	model := classifier.NewKNN(ds, c.opts)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generation.Load() != gen {
		c.logger.Debug("Discarding model loaded before reset")
		return model, nil
	}
	if cur := c.snapshot.Load(); cur != nil && cur.generation == gen {
		return cur.model, nil
	}
	c.snapshot.Store(&modelSnapshot{
		generation: gen,
		model:      model,
		meta:       map[int]*classifier.ModelMetadata{},
	})

	c.logger.Info("Model loaded", logging.Fields{
		"samples":   ds.Len(),
		"load_time": time.Since(start).Seconds(),
	})

	return model, nil
}
