package asset

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/puzpuzpuz/xsync/v3"
)

const (
	defaultMaxConcurrent = 16
	defaultRetention     = 4096
	defaultTimeout       = 30 * time.Second
	defaultDelay         = 60

	// DefaultMaxTransientRetries is the number of transient failures
	// reported for a url before the failure becomes permanent.
	DefaultMaxTransientRetries = 8
)

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	logger        *slog.Logger
	httpClient    *http.Client
	timeout       time.Duration
	maxConcurrent int
	retention     int
	maxRetries    int
	delay         int
}

// WithLogger sets the logger used to report failed requests.
func WithLogger(l *slog.Logger) Option {
	return func(o *clientOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithHTTPClient sets the HTTP client used for remote urls.
func WithHTTPClient(c *http.Client) Option {
	return func(o *clientOptions) {
		o.httpClient = c
	}
}

// WithTimeout sets the timeout of a single request. Timeouts are reported
// as StatusTransient.
func WithTimeout(d time.Duration) Option {
	return func(o *clientOptions) {
		o.timeout = d
	}
}

// WithMaxConcurrent bounds the number of requests in flight.
func WithMaxConcurrent(n int) Option {
	return func(o *clientOptions) {
		if n > 0 {
			o.maxConcurrent = n
		}
	}
}

// WithRetention bounds the number of completed responses kept in memory.
func WithRetention(n int) Option {
	return func(o *clientOptions) {
		if n > 0 {
			o.retention = n
		}
	}
}

// WithMaxTransientRetries sets how many transient failures of a url are
// forgotten, and thus retried, before the failure sticks.
func WithMaxTransientRetries(n int) Option {
	return func(o *clientOptions) {
		o.maxRetries = n
	}
}

// WithDelay sets the number of polls a request flagged with Delay waits
// before being issued.
func WithDelay(polls int) Option {
	return func(o *clientOptions) {
		o.delay = polls
	}
}

type entry struct {
	mu      sync.Mutex
	flags   Flags
	delay   int
	started bool
	done    bool
	data    []byte
	code    int
	logged  bool
}

type alias struct {
	base, target string
}

// Client is a non blocking Fetcher backed by net/http for remote urls and
// the file system for file:// urls and bare paths.
//
// Completed responses are retained in a bounded LRU set; the least recently
// polled ones are dropped first and will be requested again if needed.
type Client struct {
	opts clientOptions

	ctx    context.Context
	cancel context.CancelFunc
	sem    chan struct{}
	wg     sync.WaitGroup

	entries   *xsync.MapOf[string, *entry]
	done      *lru.Cache[string, *entry]
	static    *xsync.MapOf[string, []byte]
	transient *xsync.MapOf[string, int]

	aliasMu sync.RWMutex
	aliases []alias
}

// NewClient returns a Client ready to use.
func NewClient(opts ...Option) *Client {
	o := clientOptions{
		logger:        slog.New(slog.DiscardHandler),
		timeout:       defaultTimeout,
		maxConcurrent: defaultMaxConcurrent,
		retention:     defaultRetention,
		maxRetries:    DefaultMaxTransientRetries,
		delay:         defaultDelay,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{Timeout: o.timeout}
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		opts:      o,
		ctx:       ctx,
		cancel:    cancel,
		sem:       make(chan struct{}, o.maxConcurrent),
		entries:   xsync.NewMapOf[string, *entry](),
		static:    xsync.NewMapOf[string, []byte](),
		transient: xsync.NewMapOf[string, int](),
	}
	// Evicting a completed response forgets it entirely.
	c.done, _ = lru.NewWithEvict(o.retention, func(url string, e *entry) {
		c.entries.Compute(url, func(cur *entry, loaded bool) (*entry, bool) {
			return cur, !loaded || cur == e
		})
	})
	return c
}

// Register installs static data for url. Static data is never evicted.
func (c *Client) Register(url string, data []byte) {
	c.static.Store(url, data)
}

// SetAlias makes requests whose url starts with base look first under
// target, typically a local mirror. The query string is not forwarded.
func (c *Client) SetAlias(base, target string) {
	c.aliasMu.Lock()
	defer c.aliasMu.Unlock()
	c.aliases = append(c.aliases, alias{
		base:   strings.TrimSuffix(base, "/"),
		target: strings.TrimSuffix(target, "/"),
	})
}

// Fetch implements Fetcher.
func (c *Client) Fetch(url string, flags Flags) ([]byte, int) {
	if data, ok := c.static.Load(url); ok {
		return data, StatusOK
	}
	if data, code, ok := c.fetchAlias(url, flags); ok {
		return data, code
	}
	return c.fetch(url, flags)
}

func (c *Client) fetchAlias(url string, flags Flags) ([]byte, int, bool) {
	c.aliasMu.RLock()
	defer c.aliasMu.RUnlock()
	for _, a := range c.aliases {
		if !strings.HasPrefix(url, a.base) {
			continue
		}
		target := a.target + strings.TrimPrefix(url, a.base)
		if i := strings.IndexByte(target, '?'); i >= 0 {
			target = target[:i]
		}
		if data, code := c.fetch(target, flags|Accept404); code == StatusOK {
			return data, code, true
		}
	}
	return nil, 0, false
}

func (c *Client) fetch(url string, flags Flags) ([]byte, int) {
	e, _ := c.entries.LoadOrCompute(url, func() *entry {
		e := &entry{flags: flags}
		if flags&Delay != 0 {
			e.delay = c.opts.delay
		}
		return e
	})

	e.mu.Lock()
	if !e.started {
		if e.delay > 0 {
			e.delay--
			e.mu.Unlock()
			return nil, StatusPending
		}
		e.started = true
		if isLocal(url) {
			e.data, e.code = readLocal(url)
			e.done = true
		} else {
			c.wg.Add(1)
			go c.do(url, e)
		}
	}
	if !e.done {
		e.mu.Unlock()
		return nil, StatusPending
	}
	data, code := e.data, e.code
	c.logResult(e, url, flags)
	e.mu.Unlock()

	switch {
	case code == StatusTransient && c.forgetTransient(url, flags):
		c.forget(url, e)
	case flags&UsedOnce != 0:
		c.forget(url, e)
	default:
		// Touch so that the response stays among the recent ones.
		if _, ok := c.done.Get(url); !ok {
			c.done.Add(url, e)
		}
	}
	return data, code
}

// forgetTransient reports whether a transient failure of url should be
// forgotten so that the next Fetch issues a new request.
func (c *Client) forgetTransient(url string, flags Flags) bool {
	if flags&Retry != 0 {
		return true
	}
	n, _ := c.transient.Compute(url, func(old int, _ bool) (int, bool) {
		return old + 1, false
	})
	return n <= c.opts.maxRetries
}

func (c *Client) forget(url string, e *entry) {
	c.entries.Compute(url, func(cur *entry, loaded bool) (*entry, bool) {
		return cur, !loaded || cur == e
	})
	c.done.Remove(url)
}

func (c *Client) logResult(e *entry, url string, flags Flags) {
	limit := 400
	if flags&Accept404 != 0 {
		limit = 500
	}
	if e.code < limit || e.logged {
		return
	}
	e.logged = true
	c.opts.logger.Warn("asset: request failed", "url", url, "code", e.code)
}

func (c *Client) do(url string, e *entry) {
	defer c.wg.Done()

	select {
	case c.sem <- struct{}{}:
	case <-c.ctx.Done():
		c.finish(url, e, nil, StatusTransient)
		return
	}
	defer func() { <-c.sem }()

	data, code := c.get(url)
	c.finish(url, e, data, code)
}

func (c *Client) get(url string) ([]byte, int) {
	ctx, cancel := context.WithTimeout(c.ctx, c.opts.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, StatusError
	}
	resp, err := c.opts.httpClient.Do(req)
	if err != nil {
		c.opts.logger.Debug("asset: transport error", "url", url, "err", err)
		return nil, StatusTransient
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, StatusTransient
	}
	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode
	}
	return data, StatusOK
}

func (c *Client) finish(url string, e *entry, data []byte, code int) {
	e.mu.Lock()
	e.data, e.code, e.done = data, code, true
	e.mu.Unlock()
	c.opts.logger.Debug("asset: request done", "url", url, "code", code, "size", len(data))
}

// Release implements Fetcher.
func (c *Client) Release(url string) {
	if e, ok := c.entries.Load(url); ok {
		e.mu.Lock()
		done := e.done
		e.mu.Unlock()
		// In flight requests complete into an entry nobody references.
		if done || !e.started {
			c.forget(url, e)
		}
	}
}

// InFlight returns the number of urls requested but not yet complete.
func (c *Client) InFlight() int {
	n := 0
	c.entries.Range(func(_ string, e *entry) bool {
		e.mu.Lock()
		if e.started && !e.done {
			n++
		}
		e.mu.Unlock()
		return true
	})
	return n
}

// Close cancels the requests in flight and waits for them to return.
func (c *Client) Close() error {
	c.cancel()
	c.wg.Wait()
	return nil
}

func isLocal(url string) bool {
	return strings.HasPrefix(url, "file://") || !strings.Contains(url, "://")
}

func readLocal(url string) ([]byte, int) {
	data, err := os.ReadFile(strings.TrimPrefix(url, "file://"))
	switch {
	case err == nil:
		return data, StatusOK
	case errors.Is(err, fs.ErrNotExist):
		return nil, StatusNotFound
	case errors.Is(err, fs.ErrPermission):
		return nil, 403
	}
	return nil, StatusError
}
