package hips

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector exports the statistics of an Engine to Prometheus. It is safe
// to register while the engine is rendering.
type Collector struct {
	engine *Engine

	cacheEntries   *prometheus.Desc
	cacheSize      *prometheus.Desc
	cacheCapacity  *prometheus.Desc
	cacheHits      *prometheus.Desc
	cacheMisses    *prometheus.Desc
	cacheEvictions *prometheus.Desc
	cacheKeeps     *prometheus.Desc

	fetches      *prometheus.Desc
	decodes      *prometheus.Desc
	decodeErrors *prometheus.Desc
	queued       *prometheus.Desc
	workers      *prometheus.Desc

	surveyTiles *prometheus.Desc
}

// NewCollector returns a collector for e.
func NewCollector(e *Engine) *Collector {
	return &Collector{
		engine: e,

		cacheEntries: prometheus.NewDesc(
			"hips_cache_entries",
			"Number of tiles in the cache",
			nil, nil,
		),
		cacheSize: prometheus.NewDesc(
			"hips_cache_size_bytes",
			"Total cost of the cached tiles",
			nil, nil,
		),
		cacheCapacity: prometheus.NewDesc(
			"hips_cache_capacity_bytes",
			"Capacity of the tile cache",
			nil, nil,
		),
		cacheHits: prometheus.NewDesc(
			"hips_cache_hits_total",
			"Total number of cache lookups that found a tile",
			nil, nil,
		),
		cacheMisses: prometheus.NewDesc(
			"hips_cache_misses_total",
			"Total number of cache lookups that found no tile",
			nil, nil,
		),
		cacheEvictions: prometheus.NewDesc(
			"hips_cache_evictions_total",
			"Total number of tiles freed by the cache",
			nil, nil,
		),
		cacheKeeps: prometheus.NewDesc(
			"hips_cache_keeps_total",
			"Total number of evictions refused by a tile",
			nil, nil,
		),
		fetches: prometheus.NewDesc(
			"hips_tile_fetches_total",
			"Total number of settled tile fetches by result",
			[]string{"result"}, nil,
		),
		decodes: prometheus.NewDesc(
			"hips_tile_decodes_total",
			"Total number of decoded tiles",
			nil, nil,
		),
		decodeErrors: prometheus.NewDesc(
			"hips_tile_decode_errors_total",
			"Total number of tiles that failed to decode",
			nil, nil,
		),
		queued: prometheus.NewDesc(
			"hips_worker_queued",
			"Number of decoding tasks waiting for a worker",
			nil, nil,
		),
		workers: prometheus.NewDesc(
			"hips_workers",
			"Number of decoding workers, 0 when tiles decode inline",
			nil, nil,
		),
		surveyTiles: prometheus.NewDesc(
			"hips_survey_tiles",
			"Number of cached tiles per survey",
			[]string{"survey", "id"}, nil,
		),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.cacheEntries
	ch <- c.cacheSize
	ch <- c.cacheCapacity
	ch <- c.cacheHits
	ch <- c.cacheMisses
	ch <- c.cacheEvictions
	ch <- c.cacheKeeps

	ch <- c.fetches
	ch <- c.decodes
	ch <- c.decodeErrors
	ch <- c.queued
	ch <- c.workers

	ch <- c.surveyTiles
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	e := c.engine
	stats := e.cache.Stats()

	// Cache metrics
	ch <- prometheus.MustNewConstMetric(c.cacheEntries, prometheus.GaugeValue, float64(stats.Entries))
	ch <- prometheus.MustNewConstMetric(c.cacheSize, prometheus.GaugeValue, float64(stats.Size))
	ch <- prometheus.MustNewConstMetric(c.cacheCapacity, prometheus.GaugeValue, float64(stats.Capacity))
	ch <- prometheus.MustNewConstMetric(c.cacheHits, prometheus.CounterValue, float64(stats.Hits))
	ch <- prometheus.MustNewConstMetric(c.cacheMisses, prometheus.CounterValue, float64(stats.Misses))
	ch <- prometheus.MustNewConstMetric(c.cacheEvictions, prometheus.CounterValue, float64(stats.Evictions))
	ch <- prometheus.MustNewConstMetric(c.cacheKeeps, prometheus.CounterValue, float64(stats.Keeps))

	// Tile metrics
	ch <- prometheus.MustNewConstMetric(c.fetches, prometheus.CounterValue,
		float64(e.stats.fetchOK.Load()), "ok")
	ch <- prometheus.MustNewConstMetric(c.fetches, prometheus.CounterValue,
		float64(e.stats.fetchMissing.Load()), "missing")
	ch <- prometheus.MustNewConstMetric(c.fetches, prometheus.CounterValue,
		float64(e.stats.fetchTransient.Load()), "transient")
	ch <- prometheus.MustNewConstMetric(c.decodes, prometheus.CounterValue, float64(e.stats.decodes.Load()))
	ch <- prometheus.MustNewConstMetric(c.decodeErrors, prometheus.CounterValue, float64(e.stats.decodeErrors.Load()))

	queued, workers := 0, 0
	if e.pool != nil {
		queued, workers = e.pool.Queued(), e.pool.Workers()
	}
	ch <- prometheus.MustNewConstMetric(c.queued, prometheus.GaugeValue, float64(queued))
	ch <- prometheus.MustNewConstMetric(c.workers, prometheus.GaugeValue, float64(workers))

	for _, s := range e.Surveys() {
		ch <- prometheus.MustNewConstMetric(c.surveyTiles, prometheus.GaugeValue, float64(s.TileCount()), s.url, strconv.Itoa(s.id))
	}
}
