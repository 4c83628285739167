package hips

import (
	"bytes"
	"fmt"
	"image"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"

	"github.com/gogpu/hips/asset"
	"github.com/gogpu/hips/frames"
	"github.com/gogpu/hips/healpix"
	"github.com/gogpu/hips/internal/tileimg"
	"github.com/gogpu/hips/internal/worker"
)

// SurveyOption configures a Survey.
type SurveyOption func(*surveyOptions)

type surveyOptions struct {
	releaseDate float64
	frame       *frames.Frame
	label       string
	factory     TileFactory
	onError     func(*Survey, error)
	fillColor   *[4]float64
}

// WithReleaseDate sets the release date (MJD) used to version tile URLs.
// A hips_release_date property overrides it.
func WithReleaseDate(mjd float64) SurveyOption {
	return func(o *surveyOptions) {
		o.releaseDate = mjd
	}
}

// WithFrame sets the frame of the survey, overriding hips_frame.
func WithFrame(f frames.Frame) SurveyOption {
	return func(o *surveyOptions) {
		o.frame = &f
	}
}

// WithLabel sets the label reported to the progress facility.
func WithLabel(label string) SurveyOption {
	return func(o *surveyOptions) {
		o.label = label
	}
}

// WithTileFactory replaces the default decoder of the tile format.
func WithTileFactory(f TileFactory) SurveyOption {
	return func(o *surveyOptions) {
		o.factory = f
	}
}

// WithErrorHandler sets a function called once if the survey fails.
func WithErrorHandler(fn func(*Survey, error)) SurveyOption {
	return func(o *surveyOptions) {
		o.onError = fn
	}
}

// WithFillColor makes Render draw an untextured quad of color c where no
// texture is available.
func WithFillColor(c [4]float64) SurveyOption {
	return func(o *surveyOptions) {
		o.fillColor = &c
	}
}

type allskyState uint8

const (
	allskyPending allskyState = iota
	allskyReady
	allskyUnavailable
)

// Survey is a HiPS survey registered on an Engine.
type Survey struct {
	engine *Engine
	opts   surveyOptions

	id   int
	url  string
	hash uint32

	props       *Properties
	err         error
	closed      bool
	label       string
	frame       frames.Frame
	format      string
	minOrder    int
	maxOrder    int
	tileWidth   int
	releaseDate float64
	factory     TileFactory

	// missing memoizes absent tiles at the minimum order, which have no
	// parent to record them.
	missing map[int]struct{}

	allsky struct {
		state allskyState
		task  *worker.Task[*image.NRGBA]
		img   *image.NRGBA
		tex   [12]*Texture
	}

	// tiles is the number of cached tiles created by the survey.
	tiles atomic.Int64
}

func newSurvey(e *Engine, url string, opts []SurveyOption) *Survey {
	var o surveyOptions
	for _, opt := range opts {
		opt(&o)
	}
	url = strings.TrimRight(url, "/")
	s := &Survey{
		engine:      e,
		opts:        o,
		url:         url,
		hash:        uint32(xxhash.Sum64String(url)),
		format:      DefaultFormat,
		minOrder:    DefaultMinOrder,
		tileWidth:   DefaultTileWidth,
		releaseDate: o.releaseDate,
		missing:     make(map[int]struct{}),
	}
	if o.frame != nil {
		s.frame = *o.frame
	}
	return s
}

// URL returns the base URL of the survey.
func (s *Survey) URL() string { return s.url }

// Hash returns the 32-bit hash of the URL that prefixes the cache keys.
func (s *Survey) Hash() uint32 { return s.hash }

// Label returns the label of the survey: WithLabel, obs_collection,
// obs_title or the URL.
func (s *Survey) Label() string {
	if s.label != "" {
		return s.label
	}
	return s.url
}

// Frame returns the frame of the survey.
func (s *Survey) Frame() frames.Frame { return s.frame }

// Format returns the tile format extension.
func (s *Survey) Format() string { return s.format }

// MinOrder returns the minimum order of the tiles.
func (s *Survey) MinOrder() int { return s.minOrder }

// MaxOrder returns the maximum order of the tiles, 0 if unknown.
func (s *Survey) MaxOrder() int { return s.maxOrder }

// TileWidth returns the width of a tile in pixels.
func (s *Survey) TileWidth() int { return s.tileWidth }

// Properties returns the parsed properties file, or nil before it is
// loaded.
func (s *Survey) Properties() *Properties { return s.props }

// Err returns the fatal error of the survey, if any.
func (s *Survey) Err() error { return s.err }

// TileCount returns the number of cached tiles created by the survey.
func (s *Survey) TileCount() int { return int(s.tiles.Load()) }

// HasAllsky reports whether the allsky image is loaded.
func (s *Survey) HasAllsky() bool { return s.allsky.state == allskyReady }

// urlFor returns the URL of a file of the survey. Online surveys with a
// release date get a ?v=<mjd> suffix for cache control.
func (s *Survey) urlFor(path string) string {
	u := s.url + "/" + path
	if s.releaseDate != 0 && asset.IsHTTP(s.url) {
		u += "?v=" + strconv.Itoa(int(s.releaseDate))
	}
	return u
}

// TileURL returns the URL of a tile.
func (s *Survey) TileURL(order, pix int) string {
	return s.urlFor(fmt.Sprintf("Norder%d/Dir%d/Npix%d.%s", order, (pix/10000)*10000, pix, s.format))
}

func (s *Survey) allskyURL() string {
	return s.urlFor(fmt.Sprintf("Norder%d/Allsky.%s", s.minOrder, s.format))
}

// IsReady updates the survey and reports whether it can render.
func (s *Survey) IsReady() bool {
	return s.Update()
}

// Update makes progress on the properties file, then on the allsky image,
// and reports whether the survey is ready. Tiles are never requested
// before the properties are loaded.
func (s *Survey) Update() bool {
	if s.err != nil || s.closed {
		return false
	}
	if s.props == nil && !s.loadProperties() {
		return false
	}
	return s.updateAllsky()
}

func (s *Survey) loadProperties() bool {
	url := s.urlFor("properties")
	data, code := s.engine.fetcher.Fetch(url, 0)
	switch {
	case code == asset.StatusPending:
		return false
	case code == asset.StatusTransient:
		return false
	case code != asset.StatusOK:
		s.fail(fmt.Errorf("%w: %s: status %d", ErrProperties, url, code))
		return false
	}
	props, err := ParseProperties(data)
	s.engine.fetcher.Release(url)
	if err != nil {
		s.fail(fmt.Errorf("%s: %w", url, err))
		return false
	}
	if err := s.setProperties(props); err != nil {
		s.fail(err)
		return false
	}
	s.engine.log.Info("hips: survey ready",
		"url", s.url, "label", s.Label(), "format", s.format,
		"order_min", s.minOrder, "order", s.maxOrder)
	return true
}

func (s *Survey) setProperties(p *Properties) error {
	s.props = p
	s.minOrder = p.MinOrder
	s.maxOrder = p.MaxOrder
	s.tileWidth = p.TileWidth
	if p.ReleaseDate != 0 {
		s.releaseDate = p.ReleaseDate
	}
	if s.opts.frame == nil {
		s.frame = p.Frame
	}
	s.format = p.Format
	if s.format == "" {
		// A tenant factory may decode formats the engine does not know.
		v, _ := p.Get("hips_tile_format")
		if s.opts.factory == nil || len(strings.Fields(v)) == 0 {
			return fmt.Errorf("%w: %s: %q", ErrUnknownFormat, s.url, v)
		}
		s.format = strings.Fields(v)[0]
	}

	switch {
	case s.opts.label != "":
		s.label = s.opts.label
	default:
		for _, key := range []string{"obs_collection", "obs_title"} {
			if v, ok := p.Get(key); ok && v != "" {
				s.label = v
				break
			}
		}
	}

	s.factory = s.opts.factory
	if s.factory == nil {
		f, err := factoryFor(s.format)
		if err != nil {
			return fmt.Errorf("%s: %w", s.url, err)
		}
		s.factory = f
	}
	if s.minOrder != 0 || s.format == "eph" {
		s.allsky.state = allskyUnavailable
	}
	return nil
}

func (s *Survey) fail(err error) {
	s.err = err
	s.engine.log.Error("hips: survey failed", "url", s.url, "err", err)
	if s.opts.onError != nil {
		s.opts.onError(s, err)
	}
}

// updateAllsky fetches and decodes the allsky image. It returns false on
// every call that issues work, including the one that settles the image.
func (s *Survey) updateAllsky() bool {
	if s.allsky.state != allskyPending {
		return true
	}
	if s.allsky.task == nil {
		url := s.allskyURL()
		data, code := s.engine.fetcher.Fetch(url, asset.Accept404|asset.UsedOnce)
		switch {
		case code == asset.StatusPending:
			return false
		case code != asset.StatusOK || len(data) == 0:
			s.allsky.state = allskyUnavailable
			s.engine.log.Debug("hips: no allsky", "url", url, "status", code)
			return false
		}
		buf := bytes.Clone(data)
		s.allsky.task = worker.Spawn(s.engine.pool, func() (*image.NRGBA, error) {
			img, _, err := tileimg.Decode(buf)
			return img, err
		})
	}
	if !s.allsky.task.Poll() {
		return false
	}
	img, err := s.allsky.task.Result()
	s.allsky.task = nil
	if err != nil {
		s.allsky.state = allskyUnavailable
		s.engine.log.Warn("hips: cannot decode allsky", "url", s.url, "err", err)
		return false
	}
	s.allsky.img = img
	s.allsky.state = allskyReady
	s.engine.log.Info("hips: allsky loaded", "url", s.url,
		"width", img.Bounds().Dx(), "height", img.Bounds().Dy())
	return false
}

// allskyTexture returns the texture of a base pixel carved out of the
// allsky image, creating it on first use.
func (s *Survey) allskyTexture(pix int) *Texture {
	if s.allsky.img == nil || pix < 0 || pix >= healpix.NPix(0) {
		return nil
	}
	if tex := s.allsky.tex[pix]; tex != nil {
		return tex
	}
	img, err := tileimg.Carve(s.allsky.img, 0, pix)
	if err != nil {
		s.engine.log.Warn("hips: cannot carve allsky", "url", s.url, "pix", pix, "err", err)
		return nil
	}
	s.allsky.tex[pix] = newTexture(img)
	return s.allsky.tex[pix]
}

// Close unregisters the survey and drops its cached tiles. Tiles whose
// loader is running are freed by a later cleanup.
func (s *Survey) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.engine.unregister(s)
	id := s.id
	s.engine.cache.Purge(func(_ []byte, t *tile) bool { return t.survey == id })
	s.allsky.img = nil
	s.allsky.tex = [12]*Texture{}
	return nil
}
