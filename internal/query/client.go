// Package query is the page data cache. Entries are served immediately
// while fresh, served and silently refetched once stale, and fetched at
// most once at a time per key.
package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"attendance/internal/metrics"
)

var ErrDisabled = errors.New("query: disabled")

// FetchFunc loads the value for a key.
type FetchFunc func(ctx context.Context) (any, error)

type Options struct {
	StaleTime  time.Duration
	GCTime     time.Duration
	MaxEntries int
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
	Now        func() time.Time
}

type Client struct {
	staleTime time.Duration
	gcTime    time.Duration
	logger    *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time

	group singleflight.Group

	mu      sync.Mutex
	entries *lru.Cache[string, *entry]
	seq     uint64
	closed  bool
	bg      sync.WaitGroup
}

type entry struct {
	key        Key
	state      State
	gen        uint64
	lastAccess time.Time
}

func New(opts Options) (*Client, error) {
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = 1024
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	entries, err := lru.New[string, *entry](opts.MaxEntries)
	if err != nil {
		return nil, fmt.Errorf("query.New: %w", err)
	}
	return &Client{
		staleTime: opts.StaleTime,
		gcTime:    opts.GCTime,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		now:       opts.Now,
		entries:   entries,
	}, nil
}

type fetchConfig struct {
	enabled bool
}

type FetchOption func(*fetchConfig)

// Enabled gates a query; a disabled query never calls its FetchFunc.
func Enabled(enabled bool) FetchOption {
	return func(c *fetchConfig) { c.enabled = enabled }
}

// Fetch returns the cached value for key when there is one, refetching it
// in the background if it is stale. Otherwise it calls fn, sharing the call
// with concurrent callers for the same key, and waits for the result.
func (c *Client) Fetch(ctx context.Context, key Key, fn FetchFunc, opts ...FetchOption) (any, error) {
	cfg := fetchConfig{enabled: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	if !cfg.enabled {
		return nil, ErrDisabled
	}

	c.mu.Lock()
	if e, ok := c.entries.Get(key.String()); ok && e.state.HasData() {
		e.lastAccess = c.now()
		data := e.state.Data
		stale := c.isStale(e.state)
		fetching := e.state.Fetching
		c.mu.Unlock()

		if stale {
			c.lookup("stale")
			if !fetching {
				c.refetch(ctx, key, fn)
			}
		} else {
			c.lookup("fresh")
		}
		return data, nil
	}
	c.mu.Unlock()

	c.lookup("miss")
	return c.load(ctx, key, fn)
}

// Get is the typed form of Client.Fetch.
func Get[T any](ctx context.Context, c *Client, key Key, fn func(context.Context) (T, error), opts ...FetchOption) (T, error) {
	var zero T
	v, err := c.Fetch(ctx, key, func(ctx context.Context) (any, error) {
		return fn(ctx)
	}, opts...)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("query: cached value for %q has type %T", key, v)
	}
	return t, nil
}

// Prefetch starts a background fetch unless key holds fresh data or is
// already being fetched.
func (c *Client) Prefetch(ctx context.Context, key Key, fn FetchFunc) {
	c.mu.Lock()
	e, ok := c.entries.Get(key.String())
	skip := ok && (e.state.Fetching || (e.state.HasData() && !c.isStale(e.state)))
	c.mu.Unlock()
	if !skip {
		c.refetch(ctx, key, fn)
	}
}

// Peek returns the state of key without fetching.
func (c *Client) Peek(key Key) (State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries.Get(key.String())
	if !ok {
		return State{}, false
	}
	e.lastAccess = c.now()
	return e.state, true
}

// Invalidate drops every entry under prefix. Fetches already in flight for
// those keys still complete, but their results are discarded.
func (c *Client) Invalidate(prefix Key) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, k := range c.entries.Keys() {
		e, ok := c.entries.Peek(k)
		if !ok || !e.key.HasPrefix(prefix) {
			continue
		}
		c.entries.Remove(k)
		c.group.Forget(k)
		n++
	}
	c.gauge()
	return n
}

// Sweep removes entries that nobody read for the GC time and that are not
// being fetched. It returns the number of removed entries.
func (c *Client) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	n := 0
	for _, k := range c.entries.Keys() {
		e, ok := c.entries.Peek(k)
		if !ok || e.state.Fetching || now.Sub(e.lastAccess) < c.gcTime {
			continue
		}
		c.entries.Remove(k)
		n++
	}
	c.gauge()
	return n
}

func (c *Client) Len() int {
	return c.entries.Len()
}

// Close stops new background refetches and waits for running fetches.
func (c *Client) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.bg.Wait()
}

// load runs fn once per key no matter how many callers wait for it. The
// shared call is detached from the caller's cancellation, so a caller that
// gives up only stops waiting and the others still get the result.
func (c *Client) load(ctx context.Context, key Key, fn FetchFunc) (any, error) {
	k := key.String()
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(k, func() (any, error) {
		if c.track() {
			defer c.bg.Done()
		}
		// Another call may have filled the entry since the caller looked.
		if v, ok := c.fresh(k); ok {
			return v, nil
		}
		gen := c.begin(key)
		v, err := fn(fetchCtx)
		c.settle(k, gen, v, err)
		return v, err
	})

	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// track registers a running fetch with Close unless the client is closed.
func (c *Client) track() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.bg.Add(1)
	return true
}

func (c *Client) refetch(ctx context.Context, key Key, fn FetchFunc) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.bg.Add(1)
	c.mu.Unlock()

	ctx = context.WithoutCancel(ctx)
	go func() {
		defer c.bg.Done()
		if _, err := c.load(ctx, key, fn); err != nil {
			c.logger.WarnContext(ctx, "background refetch failed", "key", key, "error", err)
		}
	}()
}

// begin marks key as fetching and returns the generation of this fetch.
func (c *Client) begin(key Key) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := key.String()
	e, ok := c.entries.Get(k)
	if !ok {
		e = &entry{key: append(Key(nil), key...), lastAccess: c.now()}
		c.entries.Add(k, e)
		c.gauge()
	}
	c.seq++
	e.gen = c.seq
	e.state.Fetching = true
	if !e.state.HasData() {
		e.state.Status = StatusLoading
	}
	return e.gen
}

// settle stores a fetch result unless a newer fetch started or the entry
// was removed in the meantime.
func (c *Client) settle(k string, gen uint64, v any, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries.Peek(k)
	if !ok || e.gen != gen {
		if c.metrics != nil {
			c.metrics.QueryDiscarded.Inc()
		}
		return
	}
	e.state.Fetching = false
	if err != nil {
		e.state.Err = err
		e.state.Status = StatusError
		return
	}
	e.state.Data = v
	e.state.Err = nil
	e.state.Status = StatusSuccess
	e.state.UpdatedAt = c.now()
}

func (c *Client) fresh(k string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries.Peek(k)
	if !ok || !e.state.HasData() || c.isStale(e.state) {
		return nil, false
	}
	return e.state.Data, true
}

func (c *Client) isStale(s State) bool {
	return c.now().Sub(s.UpdatedAt) >= c.staleTime
}

func (c *Client) lookup(result string) {
	if c.metrics != nil {
		c.metrics.QueryLookups.WithLabelValues(result).Inc()
	}
}

// gauge must be called with mu held.
func (c *Client) gauge() {
	if c.metrics != nil {
		c.metrics.QueryEntries.Set(float64(c.entries.Len()))
	}
}
