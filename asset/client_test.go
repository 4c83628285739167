package asset

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// poll fetches url until the result is not pending.
func poll(t *testing.T, c *Client, url string, flags Flags) ([]byte, int) {
	t.Helper()
	var (
		data []byte
		code int
	)
	require.Eventually(t, func() bool {
		data, code = c.Fetch(url, flags)
		return code != StatusPending
	}, 5*time.Second, time.Millisecond)
	return data, code
}

func newServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/ok":
			_, _ = w.Write([]byte("hello"))
		case "/slow":
			time.Sleep(200 * time.Millisecond)
			_, _ = w.Write([]byte("late"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClientHTTP(t *testing.T) {
	var hits atomic.Int32
	srv := newServer(t, &hits)
	c := NewClient()
	defer c.Close()

	data, code := poll(t, c, srv.URL+"/ok", 0)
	require.Equal(t, StatusOK, code)
	assert.Equal(t, "hello", string(data))

	// Completed responses are served from memory.
	_, code = c.Fetch(srv.URL+"/ok", 0)
	assert.Equal(t, StatusOK, code)
	assert.EqualValues(t, 1, hits.Load())

	_, code = poll(t, c, srv.URL+"/missing", Accept404)
	assert.Equal(t, StatusNotFound, code)
	_, code = c.Fetch(srv.URL+"/missing", Accept404)
	assert.Equal(t, StatusNotFound, code)
	assert.EqualValues(t, 2, hits.Load())
}

func TestClientFirstFetchIsPending(t *testing.T) {
	var hits atomic.Int32
	srv := newServer(t, &hits)
	c := NewClient()
	defer c.Close()

	data, code := c.Fetch(srv.URL+"/slow", 0)
	assert.Nil(t, data)
	assert.Equal(t, StatusPending, code)
	assert.Equal(t, 1, c.InFlight())
	_, code = poll(t, c, srv.URL+"/slow", 0)
	assert.Equal(t, StatusOK, code)
	assert.Equal(t, 0, c.InFlight())
}

func TestClientTransientRetried(t *testing.T) {
	c := NewClient(WithMaxTransientRetries(1))
	defer c.Close()
	// Nothing listens on this port.
	url := "http://127.0.0.1:1/tile"

	_, code := poll(t, c, url, 0)
	require.Equal(t, StatusTransient, code)
	// The failure was forgotten: the next fetch issues a new request.
	_, code = c.Fetch(url, 0)
	assert.Equal(t, StatusPending, code)

	_, code = poll(t, c, url, 0)
	require.Equal(t, StatusTransient, code)
	// Past the retry limit the failure sticks.
	_, code = c.Fetch(url, 0)
	assert.Equal(t, StatusTransient, code)
}

func TestClientUsedOnce(t *testing.T) {
	var hits atomic.Int32
	srv := newServer(t, &hits)
	c := NewClient()
	defer c.Close()

	_, code := poll(t, c, srv.URL+"/ok", UsedOnce)
	require.Equal(t, StatusOK, code)
	_, code = c.Fetch(srv.URL+"/ok", UsedOnce)
	assert.Equal(t, StatusPending, code)
	_, _ = poll(t, c, srv.URL+"/ok", 0)
	assert.EqualValues(t, 2, hits.Load())
}

func TestClientDelay(t *testing.T) {
	var hits atomic.Int32
	srv := newServer(t, &hits)
	c := NewClient(WithDelay(3))
	defer c.Close()

	for range 3 {
		_, code := c.Fetch(srv.URL+"/ok", Delay)
		require.Equal(t, StatusPending, code)
	}
	assert.EqualValues(t, 0, hits.Load())
	_, code := poll(t, c, srv.URL+"/ok", Delay)
	assert.Equal(t, StatusOK, code)
}

func TestClientLocalFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "properties")
	require.NoError(t, os.WriteFile(path, []byte("hips_order = 3\n"), 0o600))
	c := NewClient()
	defer c.Close()

	data, code := c.Fetch(path, 0)
	require.Equal(t, StatusOK, code)
	assert.Equal(t, "hips_order = 3\n", string(data))

	_, code = c.Fetch("file://"+path, 0)
	assert.Equal(t, StatusOK, code)

	_, code = c.Fetch(filepath.Join(dir, "nope"), Accept404)
	assert.Equal(t, StatusNotFound, code)
}

func TestClientAliasAndStatic(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "Norder3"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Norder3", "Npix1.jpg"), []byte("local"), 0o600))

	c := NewClient()
	defer c.Close()
	c.SetAlias("https://example.org/survey", dir)
	data, code := c.Fetch("https://example.org/survey/Norder3/Npix1.jpg?v=59000", 0)
	require.Equal(t, StatusOK, code)
	assert.Equal(t, "local", string(data))

	c.Register("asset://stars", []byte("static"))
	data, code = c.Fetch("asset://stars", 0)
	require.Equal(t, StatusOK, code)
	assert.Equal(t, "static", string(data))
}

func TestClientRetentionEvicts(t *testing.T) {
	var hits atomic.Int32
	srv := newServer(t, &hits)
	c := NewClient(WithRetention(1))
	defer c.Close()

	_, _ = poll(t, c, srv.URL+"/ok", 0)
	_, _ = poll(t, c, srv.URL+"/missing", 0)
	// /ok was evicted by /missing and must be requested again.
	_, code := c.Fetch(srv.URL+"/ok", 0)
	assert.Equal(t, StatusPending, code)
}
