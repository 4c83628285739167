package hips

import (
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"

	"github.com/gogpu/hips/asset"
	"github.com/gogpu/hips/cache"
	"github.com/gogpu/hips/internal/worker"
)

// Engine owns the state shared by surveys: the tile cache, the request
// facade and the decoding workers.
//
// Engine methods, and the methods of its surveys, must be called from a
// single goroutine. Decoding runs on worker goroutines and is published on
// the next frame.
type Engine struct {
	opts    options
	fetcher asset.Fetcher
	cache   *cache.Cache[*tile]
	pool    *worker.Pool
	log     *slog.Logger

	mu      sync.Mutex
	surveys map[int]*Survey
	nextID  int
	closed  bool

	stats engineStats
}

type engineStats struct {
	fetchOK        atomic.Uint64
	fetchMissing   atomic.Uint64
	fetchTransient atomic.Uint64
	decodes        atomic.Uint64
	decodeErrors   atomic.Uint64
}

// NewEngine creates an engine that fetches through f.
func NewEngine(f asset.Fetcher, opts ...Option) *Engine {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	e := &Engine{
		opts:    o,
		fetcher: f,
		cache: cache.New[*tile](o.capacity,
			cache.WithGracePeriod(o.grace),
			cache.WithClock(o.now)),
		log:     o.logger,
		surveys: make(map[int]*Survey),
	}
	if e.log == nil {
		e.log = Logger()
	}
	if o.workers > 0 {
		e.pool = worker.NewPool(o.workers)
	}
	return e
}

// NewSurvey registers a survey rooted at url. Its properties are fetched
// by the first Update. Surveys sharing a URL have separate tiles.
func (e *Engine) NewSurvey(url string, opts ...SurveyOption) *Survey {
	s := newSurvey(e, url, opts)

	e.mu.Lock()
	e.nextID++
	s.id = e.nextID
	for n := 1; e.hashInUse(s.hash); n++ {
		// Another live survey has the same URL: derive a distinct key
		// prefix so that the two never share tiles.
		s.hash = uint32(xxhash.Sum64String(s.url + "#" + strconv.Itoa(n)))
	}
	e.surveys[s.id] = s
	e.mu.Unlock()

	e.log.Debug("hips: survey created", "url", s.url, "hash", s.hash)
	return s
}

// Surveys returns the registered surveys.
func (e *Engine) Surveys() []*Survey {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*Survey, 0, len(e.surveys))
	for _, s := range e.surveys {
		out = append(out, s)
	}
	return out
}

// hashInUse reports whether a registered survey uses hash. e.mu is held.
func (e *Engine) hashInUse(hash uint32) bool {
	for _, s := range e.surveys {
		if s.hash == hash {
			return true
		}
	}
	return false
}

func (e *Engine) survey(id int) *Survey {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.surveys[id]
}

func (e *Engine) unregister(s *Survey) {
	e.mu.Lock()
	delete(e.surveys, s.id)
	e.mu.Unlock()
}

// EndFrame reconciles the cache with its capacity. Call it once per frame
// after rendering.
func (e *Engine) EndFrame() {
	e.cache.Cleanup()
}

// CacheSize returns the total cost of the cached tiles.
func (e *Engine) CacheSize() int64 {
	return e.cache.CurrentSize()
}

// CacheStats returns the statistics of the tile cache.
func (e *Engine) CacheStats() cache.Stats {
	return e.cache.Stats()
}

// Close stops the workers and drops every cached tile. Tiles whose
// loader is still running finish on the closed pool first.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	surveys := e.surveys
	e.surveys = make(map[int]*Survey)
	e.mu.Unlock()

	if e.pool != nil {
		e.pool.Close()
	}
	for _, s := range surveys {
		s.closed = true
	}
	e.cache.Purge(func([]byte, *tile) bool { return true })
	return nil
}

// releaseTile is the delete function of cached tiles.
func (e *Engine) releaseTile(t *tile) cache.Release {
	if t.loader != nil && t.loader.Running() {
		return cache.Keep
	}
	if t.payload != nil && t.payload.release() == cache.Keep {
		return cache.Keep
	}
	if s := e.survey(t.survey); s != nil {
		s.tiles.Add(-1)
	}
	e.log.Debug("hips: tile freed", "survey", t.survey, "order", t.order, "pix", t.pix)
	return cache.Free
}
