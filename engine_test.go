package hips

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/hips/asset"
	"github.com/gogpu/hips/cache"
	"github.com/gogpu/hips/projection"
)

const testBase = "http://example/survey"

// fakeClock is a manually advanced clock.
type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func pngImage(t testing.TB, w, h int, c color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func opaqueTile(t testing.TB) []byte {
	return pngImage(t, 16, 16, color.NRGBA{R: 200, G: 100, B: 50, A: 255})
}

func testProperties(minOrder, maxOrder int, extra ...string) []byte {
	s := fmt.Sprintf("hips_order = %d\nhips_order_min = %d\nhips_tile_format = jpeg\n", maxOrder, minOrder)
	for _, e := range extra {
		s += e + "\n"
	}
	return []byte(s)
}

func tileURL(order, pix int) string {
	return fmt.Sprintf("%s/Norder%d/Dir%d/Npix%d.jpg", testBase, order, (pix/10000)*10000, pix)
}

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *asset.Memory) {
	t.Helper()
	m := asset.NewMemory()
	clk := &fakeClock{t: time.Unix(1000, 0)}
	opts = append([]Option{WithWorkers(0), WithClock(clk.Now)}, opts...)
	e := NewEngine(m, opts...)
	t.Cleanup(func() { _ = e.Close() })
	return e, m
}

// readySurvey returns a survey whose properties are loaded.
func readySurvey(t *testing.T, e *Engine, m *asset.Memory, minOrder, maxOrder int, opts ...SurveyOption) *Survey {
	t.Helper()
	m.SetOK(testBase+"/properties", testProperties(minOrder, maxOrder))
	s := e.NewSurvey(testBase, opts...)
	for range 3 {
		if s.Update() {
			return s
		}
	}
	t.Fatalf("survey not ready: %v", s.Err())
	return nil
}

func fullSky(t *testing.T) projection.Projection {
	t.Helper()
	p, err := projection.New(projection.KindMollweide, 2*math.Pi, 800, 400)
	require.NoError(t, err)
	return p
}

type recordPainter struct{ quads []Quad }

func (p *recordPainter) PaintQuad(q Quad) error {
	p.quads = append(p.quads, q)
	return nil
}

func TestPropertiesPending(t *testing.T) {
	e, m := newTestEngine(t)
	m.SetPending(testBase + "/properties")
	s := e.NewSurvey(testBase)

	painter := &recordPainter{}
	rc := &RenderContext{Projection: fullSky(t), Painter: painter}
	for range 3 {
		n, err := s.Render(rc)
		require.NoError(t, err)
		if n != 0 {
			t.Errorf("Render() = %d, want 0", n)
		}
	}
	if p, code := s.GetTile(3, 0, 0); p != nil || code != StatusPending {
		t.Errorf("GetTile = %v, %d, want nil, 0", p, code)
	}
	assert.Equal(t, []string{testBase + "/properties"}, m.Issued())
	assert.Equal(t, 0, e.CacheStats().Entries)
	assert.Empty(t, painter.quads)
}

func TestColdStartWithAllsky(t *testing.T) {
	e, m := newTestEngine(t)
	m.SetOK(testBase+"/properties", testProperties(0, 3))
	m.SetOK(testBase+"/Norder0/Allsky.jpg", pngImage(t, 24, 32, color.NRGBA{G: 255, A: 255}))
	for pix := range 12 {
		m.SetOK(tileURL(0, pix), opaqueTile(t))
	}
	s := e.NewSurvey(testBase)
	painter := &recordPainter{}
	rc := &RenderContext{Projection: fullSky(t), Painter: painter}

	// Frame 1: properties, then the allsky image.
	n, err := s.Render(rc)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, []string{testBase + "/properties", testBase + "/Norder0/Allsky.jpg"}, m.Issued())
	require.True(t, s.HasAllsky())

	// Frame 2: the base pixels render from the allsky image while their
	// own tiles are queued for decoding.
	n, err = s.Render(rc)
	require.NoError(t, err)
	assert.Equal(t, 12, n)
	for _, q := range painter.quads {
		require.NotNil(t, q.Texture)
		assert.Same(t, s.allsky.tex[q.Pix], q.Texture)
		assert.Equal(t, IdentityUV, q.UV)
	}
	for pix := range 12 {
		assert.Equal(t, 1, m.Requests(tileURL(0, pix)), "pix %d", pix)
		tl, ok := e.cache.Get(tileKey(s.hash, 0, pix))
		require.True(t, ok)
		assert.NotNil(t, tl.loader, "pix %d loader", pix)
	}
	assert.Zero(t, e.stats.decodes.Load())

	// Frame 3: the tiles decode inline on their first poll.
	painter.quads = nil
	_, err = s.Render(rc)
	require.NoError(t, err)
	assert.Equal(t, uint64(12), e.stats.decodes.Load())
	for _, q := range painter.quads {
		_, isAllsky := findTexture(s.allsky.tex[:], q.Texture)
		assert.False(t, isAllsky, "pix %d still uses the allsky", q.Pix)
	}
}

func findTexture(list []*Texture, tex *Texture) (int, bool) {
	for i, t := range list {
		if t == tex {
			return i, true
		}
	}
	return 0, false
}

func TestNotFoundPropagation(t *testing.T) {
	e, m := newTestEngine(t)
	s := readySurvey(t, e, m, 2, 5)
	m.SetOK(tileURL(2, 4), opaqueTile(t))

	p, code := s.GetTile(3, 17, 0)
	assert.Nil(t, p)
	assert.Equal(t, StatusNotFound, code)
	assert.Equal(t, 1, m.Requests(tileURL(3, 17)))
	before := m.TotalRequests()

	p, code = s.GetTile(3, 17, 0)
	assert.Nil(t, p)
	assert.Equal(t, StatusNotFound, code)

	p, code = s.GetTile(4, 68, 0)
	assert.Nil(t, p)
	assert.Equal(t, StatusNotFound, code)

	assert.Equal(t, before, m.TotalRequests())
	assert.Zero(t, m.Requests(tileURL(4, 68)))
	assert.Equal(t, 1, m.Requests(tileURL(3, 17)))

	// The parent itself is unaffected.
	p, code = s.GetTile(2, 4, 0)
	assert.IsType(t, &ImageTile{}, p)
	assert.Equal(t, StatusOK, code)
}

func TestMissingAtMinOrder(t *testing.T) {
	e, m := newTestEngine(t)
	s := readySurvey(t, e, m, 3, 5)
	for range 3 {
		_, code := s.GetTile(3, 7, 0)
		assert.Equal(t, StatusNotFound, code)
	}
	assert.Equal(t, 1, m.Requests(tileURL(3, 7)))
	_, code := s.GetTile(4, 28, 0)
	assert.Equal(t, StatusNotFound, code)
	assert.Zero(t, m.Requests(tileURL(4, 28)))
}

func TestTransientIsRetried(t *testing.T) {
	e, m := newTestEngine(t)
	s := readySurvey(t, e, m, 3, 5)
	m.Set(tileURL(3, 1), nil, asset.StatusTransient)
	for range 2 {
		_, code := s.GetTile(3, 1, 0)
		assert.Equal(t, StatusTransient, code)
	}
	assert.Equal(t, 2, m.Requests(tileURL(3, 1)))

	m.SetOK(tileURL(3, 1), opaqueTile(t))
	p, code := s.GetTile(3, 1, 0)
	assert.Equal(t, StatusOK, code)
	assert.NotNil(t, p)
}

func TestOrderOutOfRange(t *testing.T) {
	e, m := newTestEngine(t)
	s := readySurvey(t, e, m, 3, 5)
	for _, order := range []int{2, 6} {
		_, code := s.GetTile(order, 0, 0)
		assert.Equal(t, StatusNotFound, code, "order %d", order)
	}
	assert.Equal(t, 1, m.TotalRequests())
}

func TestTransparentQuadrants(t *testing.T) {
	e, m := newTestEngine(t)
	s := readySurvey(t, e, m, 3, 5)
	m.SetOK(tileURL(3, 0), pngImage(t, 16, 16, color.NRGBA{}))

	_, code := s.GetTile(3, 0, 0)
	require.Equal(t, StatusOK, code)
	for i := range 4 {
		_, code := s.GetTile(4, i, 0)
		assert.Equal(t, StatusNotFound, code)
	}
	assert.Equal(t, 2, m.TotalRequests())
}

func TestDecodeError(t *testing.T) {
	e, m := newTestEngine(t)
	s := readySurvey(t, e, m, 3, 5)
	m.SetOK(tileURL(3, 2), []byte("not an image"))

	p, code := s.GetTile(3, 2, 0)
	assert.Nil(t, p)
	assert.Equal(t, StatusError, code)
	_, code = s.GetTile(3, 2, 0)
	assert.Equal(t, StatusError, code)
	assert.Equal(t, 1, m.Requests(tileURL(3, 2)))
	assert.Equal(t, uint64(1), e.stats.decodeErrors.Load())
}

func TestCachedOnly(t *testing.T) {
	e, m := newTestEngine(t)
	s := readySurvey(t, e, m, 3, 5)
	m.SetOK(tileURL(3, 3), opaqueTile(t))

	_, code := s.GetTile(3, 3, CachedOnly)
	assert.Equal(t, StatusPending, code)
	assert.Zero(t, m.Requests(tileURL(3, 3)))

	_, code = s.GetTile(3, 3, 0)
	assert.Equal(t, StatusOK, code)
	p, code := s.GetTile(3, 3, CachedOnly)
	assert.Equal(t, StatusOK, code)
	assert.NotNil(t, p)
}

func TestParentFallback(t *testing.T) {
	e, m := newTestEngine(t)
	s := readySurvey(t, e, m, 4, 6)
	const pix = 10
	m.SetOK(tileURL(4, pix), opaqueTile(t))
	m.SetOK(tileURL(5, pix*4), opaqueTile(t))

	parent, code := s.GetTile(4, pix, 0)
	require.Equal(t, StatusOK, code)

	res := s.TileTexture(5, pix*4, LoadInThread)
	require.NotNil(t, res.Texture)
	assert.Same(t, parent.(*ImageTile).Texture(), res.Texture)
	assert.Equal(t, UVRect{Scale: 0.5, Offset: [2]float64{0, 0}}, res.UV)
	assert.False(t, res.Complete)
	assert.Equal(t, 4, res.Order)
	assert.Equal(t, pix, res.Pix)

	// The child is decoding.
	tl, ok := e.cache.Get(tileKey(s.hash, 5, pix*4))
	require.True(t, ok)
	assert.NotNil(t, tl.loader)

	// Next frame: the child decodes inline and is final.
	res = s.TileTexture(5, pix*4, LoadInThread)
	assert.True(t, res.Complete)
	assert.Equal(t, IdentityUV, res.UV)
	assert.Equal(t, 5, res.Order)
}

func TestTileTextureNotFound(t *testing.T) {
	e, m := newTestEngine(t)
	s := readySurvey(t, e, m, 3, 5)
	res := s.TileTexture(3, 5, 0)
	assert.Nil(t, res.Texture)
	assert.True(t, res.Complete)

	res = s.TileTexture(1, 0, 0)
	assert.Nil(t, res.Texture)
	assert.True(t, res.Complete)
}

func TestUVRectParent(t *testing.T) {
	tests := []struct {
		children []int
		want     UVRect
	}{
		{nil, IdentityUV},
		{[]int{0}, UVRect{Scale: 0.5}},
		{[]int{3}, UVRect{Scale: 0.5, Offset: [2]float64{0.5, 0.5}}},
		{[]int{1, 2}, UVRect{Scale: 0.25, Offset: [2]float64{0.5, 0.25}}},
	}
	for _, tt := range tests {
		r := IdentityUV
		for _, c := range tt.children {
			r = r.Parent(c)
		}
		if r != tt.want {
			t.Errorf("Parent(%v) = %+v, want %+v", tt.children, r, tt.want)
		}
	}
	r := IdentityUV.Parent(3)
	if got := r.Apply([2]float64{1, 1}); got != [2]float64{1, 1} {
		t.Errorf("Apply(1, 1) = %v, want [1 1]", got)
	}
}

func TestTenantKeep(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1000, 0)}
	m := asset.NewMemory()
	e := NewEngine(m, WithWorkers(1), WithClock(clk.Now),
		WithCacheCapacity(1), WithGracePeriod(time.Second))
	t.Cleanup(func() { _ = e.Close() })

	block := make(chan struct{})
	factory := func(order, pix int, data []byte) (Decoded, error) {
		<-block
		return ImageFactory(order, pix, data)
	}
	s := readySurvey(t, e, m, 3, 5, WithTileFactory(factory))
	m.SetOK(tileURL(3, 0), opaqueTile(t))

	_, code := s.GetTile(3, 0, LoadInThread)
	require.Equal(t, StatusPending, code)
	tl, ok := e.cache.Get(tileKey(s.hash, 3, 0))
	require.True(t, ok)
	require.True(t, tl.loader.Running())

	e.EndFrame()
	clk.Advance(2 * time.Second)
	e.EndFrame()
	assert.Equal(t, 1, e.CacheStats().Entries)
	assert.Equal(t, uint64(1), e.CacheStats().Keeps)

	close(block)
	require.Eventually(t, func() bool { return !tl.loader.Running() }, 5*time.Second, time.Millisecond)

	e.EndFrame()
	clk.Advance(2 * time.Second)
	e.EndFrame()
	assert.Equal(t, 0, e.CacheStats().Entries)
	assert.Equal(t, 0, s.TileCount())
}

func TestOpaqueTileKeep(t *testing.T) {
	e, m := newTestEngine(t)
	keep := true
	factory := func(order, pix int, data []byte) (Decoded, error) {
		return Decoded{
			Payload: &OpaqueTile{Value: pix, Delete: func(any) cache.Release {
				if keep {
					return cache.Keep
				}
				return cache.Free
			}},
			Cost: 10,
		}, nil
	}
	s := readySurvey(t, e, m, 3, 5, WithTileFactory(factory))
	m.SetOK(tileURL(3, 0), []byte("x"))
	p, code := s.GetTile(3, 0, 0)
	require.Equal(t, StatusOK, code)
	assert.Equal(t, 0, p.(*OpaqueTile).Value)

	require.NoError(t, s.Close())
	assert.Equal(t, 1, e.CacheStats().Entries)
	keep = false
	e.cache.Purge(func([]byte, *tile) bool { return true })
	assert.Equal(t, 0, e.CacheStats().Entries)
}

func TestSurveysSharingURL(t *testing.T) {
	e, m := newTestEngine(t)
	factory := func(order, pix int, data []byte) (Decoded, error) {
		return Decoded{Payload: &OpaqueTile{Value: pix}}, nil
	}
	s1 := readySurvey(t, e, m, 3, 5, WithTileFactory(factory))
	s2 := readySurvey(t, e, m, 3, 5)
	if s1.Hash() == s2.Hash() {
		t.Fatalf("Hash() = %#x for both surveys, want distinct", s1.Hash())
	}
	m.SetOK(tileURL(3, 0), opaqueTile(t))

	p1, code := s1.GetTile(3, 0, 0)
	require.Equal(t, StatusOK, code)
	p2, code := s2.GetTile(3, 0, 0)
	require.Equal(t, StatusOK, code)
	if _, ok := p1.(*OpaqueTile); !ok {
		t.Errorf("s1 payload = %T, want *OpaqueTile", p1)
	}
	if _, ok := p2.(*ImageTile); !ok {
		t.Errorf("s2 payload = %T, want *ImageTile", p2)
	}
	assert.Equal(t, 1, s1.TileCount())
	assert.Equal(t, 1, s2.TileCount())

	// A closed survey frees its prefix for the next one.
	require.NoError(t, s1.Close())
	s3 := e.NewSurvey(testBase)
	assert.Equal(t, s1.Hash(), s3.Hash())
}

func TestAddManualTile(t *testing.T) {
	e, m := newTestEngine(t)
	s := readySurvey(t, e, m, 3, 5)
	p, err := s.AddManualTile(3, 9, opaqueTile(t))
	require.NoError(t, err)
	assert.IsType(t, &ImageTile{}, p)

	got, code := s.GetTile(3, 9, 0)
	assert.Equal(t, StatusOK, code)
	assert.Same(t, p, got)
	assert.Zero(t, m.Requests(tileURL(3, 9)))

	_, err = s.AddManualTile(3, 9, opaqueTile(t))
	assert.ErrorIs(t, err, ErrTileExists)
	_, err = s.AddManualTile(3, 10, []byte("bad"))
	assert.Error(t, err)
}

func TestCacheCost(t *testing.T) {
	e, m := newTestEngine(t, WithTileCostOverhead(100))
	s := readySurvey(t, e, m, 3, 5)
	m.SetOK(tileURL(3, 0), opaqueTile(t))
	_, code := s.GetTile(3, 0, 0)
	require.Equal(t, StatusOK, code)
	assert.Equal(t, int64(100+16*16*4), e.CacheSize())
}

func TestEngineClose(t *testing.T) {
	e, m := newTestEngine(t)
	s := readySurvey(t, e, m, 3, 5)
	m.SetOK(tileURL(3, 0), opaqueTile(t))
	_, code := s.GetTile(3, 0, 0)
	require.Equal(t, StatusOK, code)

	require.NoError(t, e.Close())
	assert.Equal(t, 0, e.CacheStats().Entries)
	assert.Empty(t, e.Surveys())
	assert.False(t, s.Update())
	require.NoError(t, e.Close())
}
