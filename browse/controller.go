// Package browse implements the movie list controller: it turns query edits,
// genre picks and "load more" requests into catalog calls and keeps the
// accumulated result list.
//
// Query edits are debounced. A change of query or genre resets the list to
// page one; a page continuation appends. Responses that arrive after the
// filter has moved on are dropped.
package browse

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/s0up4200/cinescope/metrics"
	"github.com/s0up4200/cinescope/tmdb"
)

// DefaultDebounce is the quiet period after the last query edit.
const DefaultDebounce = 300 * time.Millisecond

var (
	// ErrClosed is returned by every operation after Close
	ErrClosed = errors.New("list controller is closed")
	// ErrAlreadyMounted is returned by a second Mount
	ErrAlreadyMounted = errors.New("list controller already mounted")
	// ErrNotMounted is returned by filter and paging operations before Mount
	ErrNotMounted = errors.New("list controller is not mounted")
	// ErrLoadMoreUnavailable is returned when the list is empty or a fetch is in flight
	ErrLoadMoreUnavailable = errors.New("load more requires a loaded, idle list")
	// ErrNothingToRetry is returned by Retry when the last fetch did not fail
	ErrNothingToRetry = errors.New("nothing to retry")
)

// State is a snapshot of the controller's visible state.
type State struct {
	Filter       Filter       `json:"filter"`
	Results      []tmdb.Movie `json:"results"`
	Loading      bool         `json:"loading"`
	LastError    string       `json:"last_error,omitempty"`
	ResetPending bool         `json:"reset_pending"`
	HeaderLabel  string       `json:"header_label"`

	version uint64
}

type fetchMode int

const (
	modeReplace fetchMode = iota
	modeAppend
)

// fetchTag identifies one dispatched fetch.
type fetchTag struct {
	seq    uint64
	filter Filter
	mode   fetchMode
}

// Option configures a Controller.
type Option func(*Controller)

// WithDebounce overrides the query debounce period.
func WithDebounce(d time.Duration) Option {
	return func(c *Controller) {
		if d >= 0 {
			c.debounce = d
		}
	}
}

// WithGenres supplies genre names for the header label.
func WithGenres(genres []tmdb.Genre) Option {
	return func(c *Controller) {
		c.setGenresLocked(genres)
	}
}

// Controller owns the filter and the accumulated list for one view.
// It is safe for concurrent use.
type Controller struct {
	catalog  Catalog
	logger   zerolog.Logger
	debounce time.Duration

	mu           sync.Mutex
	ctx          context.Context
	cancel       context.CancelFunc
	mounted      bool
	closed       bool
	filter       Filter
	results      []tmdb.Movie
	loading      bool
	idle         chan struct{}
	lastErr      string
	failed       *fetchTag
	resetPending bool
	genreNames   map[string]string
	seq          uint64
	timer        *time.Timer
	debounceGen  uint64
	version      uint64

	subsMu    sync.Mutex
	subs      map[int]func(State)
	nextSub   int
	delivered uint64
}

// NewController creates a list controller. Nothing is fetched until Mount.
func NewController(catalog Catalog, logger zerolog.Logger, opts ...Option) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	idle := make(chan struct{})
	close(idle)

	c := &Controller{
		catalog:    catalog,
		logger:     logger,
		debounce:   DefaultDebounce,
		ctx:        ctx,
		cancel:     cancel,
		filter:     Filter{Page: 1},
		idle:       idle,
		genreNames: make(map[string]string),
		subs:       make(map[int]func(State)),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Mount starts the controller with the popular list, page one. The controller
// closes itself when ctx is done.
func (c *Controller) Mount(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.mounted {
		c.mu.Unlock()
		return ErrAlreadyMounted
	}
	c.mounted = true
	context.AfterFunc(ctx, c.Close)

	c.dispatchLocked(c.filter, modeReplace)
	state := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(state)
	return nil
}

// SetQuery records a query edit. When the query changes the list resets to page
// one and a fetch is scheduled after the debounce period; a newer edit cancels
// the pending one. A selected genre is kept.
func (c *Controller) SetQuery(query string) error {
	return c.editQuery(query, false)
}

// Search is SetQuery for a search box that replaces the genre filter: the
// query is set and the genre cleared in one debounced edit.
func (c *Controller) Search(query string) error {
	return c.editQuery(query, true)
}

func (c *Controller) editQuery(query string, clearGenre bool) error {
	c.mu.Lock()
	if err := c.usableLocked(); err != nil {
		c.mu.Unlock()
		return err
	}

	next := c.filter
	next.Query = query
	if clearGenre {
		next.GenreID = ""
	}
	if next.SameIdentity(c.filter) {
		c.filter = next
		c.mu.Unlock()
		return nil
	}

	c.filter = next
	c.resetLocked()
	c.scheduleLocked()
	state := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(state)
	return nil
}

// SetGenre selects a genre filter; an empty id clears it. The fetch is issued
// immediately and any pending debounced query fetch is cancelled.
func (c *Controller) SetGenre(genreID string) error {
	c.mu.Lock()
	if err := c.usableLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	if genreID == c.filter.GenreID {
		c.mu.Unlock()
		return nil
	}

	c.filter.GenreID = genreID
	c.resetLocked()
	c.cancelDebounceLocked()
	c.dispatchLocked(c.filter, modeReplace)
	state := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(state)
	return nil
}

// LoadMore requests the page after the last loaded one and appends it to the
// list. Filter.Page advances only once that page has arrived.
func (c *Controller) LoadMore() error {
	c.mu.Lock()
	if err := c.usableLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	if len(c.results) == 0 || c.loading {
		c.mu.Unlock()
		return ErrLoadMoreUnavailable
	}

	next := c.filter
	next.Page++
	c.dispatchLocked(next, modeAppend)
	state := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(state)
	return nil
}

// Retry re-issues the last fetch if it failed.
func (c *Controller) Retry() error {
	c.mu.Lock()
	if err := c.usableLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.failed == nil || c.loading {
		c.mu.Unlock()
		return ErrNothingToRetry
	}

	next := c.filter
	next.Page = c.failed.filter.Page
	c.dispatchLocked(next, c.failed.mode)
	state := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(state)
	return nil
}

// SetGenres updates the genre names used in the header label.
func (c *Controller) SetGenres(genres []tmdb.Genre) {
	c.mu.Lock()
	c.setGenresLocked(genres)
	state := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(state)
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// WaitIdle blocks until no fetch is pending or in flight, then returns the state.
func (c *Controller) WaitIdle(ctx context.Context) (State, error) {
	c.mu.Lock()
	idle := c.idle
	c.mu.Unlock()

	select {
	case <-idle:
		return c.Snapshot(), nil
	case <-ctx.Done():
		return c.Snapshot(), ctx.Err()
	}
}

// Subscribe registers fn to receive the state after every change and returns a
// function that removes it. fn must not call back into the controller
// synchronously.
func (c *Controller) Subscribe(fn func(State)) (unsubscribe func()) {
	c.subsMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.subsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.subsMu.Lock()
			delete(c.subs, id)
			c.subsMu.Unlock()
		})
	}
}

// Close stops pending timers and in-flight fetches. Late responses are dropped.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.cancelDebounceLocked()
	c.setLoadingLocked(false)
	c.cancel()
	c.mu.Unlock()

	c.subsMu.Lock()
	c.subs = make(map[int]func(State))
	c.subsMu.Unlock()
}

func (c *Controller) usableLocked() error {
	if c.closed {
		return ErrClosed
	}
	if !c.mounted {
		return ErrNotMounted
	}
	return nil
}

// resetLocked starts a new list identity: page one, no results, and any
// in-flight fetch becomes stale.
func (c *Controller) resetLocked() {
	c.filter.Page = 1
	c.results = nil
	c.resetPending = true
	c.lastErr = ""
	c.failed = nil
	c.seq++
	c.setLoadingLocked(true)
}

func (c *Controller) scheduleLocked() {
	c.cancelDebounceLocked()
	gen := c.debounceGen
	c.timer = time.AfterFunc(c.debounce, func() {
		c.fire(gen)
	})
}

func (c *Controller) cancelDebounceLocked() {
	c.debounceGen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// fire runs when a debounce timer expires. A timer superseded by a newer edit is a no-op.
func (c *Controller) fire(gen uint64) {
	c.mu.Lock()
	if c.closed || gen != c.debounceGen {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.dispatchLocked(c.filter, modeReplace)
	state := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(state)
}

// dispatchLocked fetches f. f differs from c.filter only in Page, for a continuation.
func (c *Controller) dispatchLocked(f Filter, mode fetchMode) {
	c.seq++
	tag := fetchTag{seq: c.seq, filter: f, mode: mode}
	c.lastErr = ""
	c.failed = nil
	c.setLoadingLocked(true)

	metrics.ListDispatches.WithLabelValues(string(tag.filter.Source())).Inc()
	c.logger.Debug().
		Str("source", string(tag.filter.Source())).
		Str("query", tag.filter.TrimmedQuery()).
		Str("genre", tag.filter.GenreID).
		Int("page", tag.filter.Page).
		Uint64("seq", tag.seq).
		Msg("Dispatching list fetch")

	go c.run(c.ctx, tag)
}

func (c *Controller) run(ctx context.Context, tag fetchTag) {
	movies, source, err := Fetch(ctx, c.catalog, tag.filter)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if tag.seq != c.seq || !tag.filter.SameIdentity(c.filter) {
		c.mu.Unlock()
		metrics.StaleResponses.Inc()
		c.logger.Debug().
			Uint64("seq", tag.seq).
			Str("source", string(source)).
			Msg("Discarding stale list response")
		return
	}

	c.setLoadingLocked(false)
	switch {
	case err != nil:
		c.lastErr = errorMessage(source, err)
		failed := tag
		c.failed = &failed
		c.logger.Warn().
			Err(err).
			Str("source", string(source)).
			Int("page", tag.filter.Page).
			Msg("List fetch failed")
	case tag.mode == modeAppend:
		c.results = append(c.results, movies...)
		c.filter.Page = tag.filter.Page
	default:
		c.results = append([]tmdb.Movie(nil), movies...)
		c.resetPending = false
	}
	state := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(state)
}

func (c *Controller) setLoadingLocked(loading bool) {
	if loading == c.loading {
		return
	}
	c.loading = loading
	if loading {
		c.idle = make(chan struct{})
	} else {
		close(c.idle)
	}
}

func (c *Controller) setGenresLocked(genres []tmdb.Genre) {
	for _, g := range genres {
		c.genreNames[g.GenreID()] = g.Name
	}
}

func (c *Controller) snapshotLocked() State {
	c.version++
	return State{
		Filter:       c.filter,
		Results:      append([]tmdb.Movie(nil), c.results...),
		Loading:      c.loading,
		LastError:    c.lastErr,
		ResetPending: c.resetPending,
		HeaderLabel:  HeaderLabel(c.filter, c.genreNames[c.filter.GenreID]),
		version:      c.version,
	}
}

// notify delivers state to subscribers unless a newer state was already delivered.
func (c *Controller) notify(state State) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()

	if state.version <= c.delivered {
		return
	}
	c.delivered = state.version
	for _, fn := range c.subs {
		fn(state)
	}
}

func errorMessage(source Source, err error) string {
	if errors.Is(err, tmdb.ErrCircuitOpen) {
		return "The movie catalog is temporarily unavailable. Please try again shortly."
	}
	switch source {
	case SourceSearch:
		return fmt.Sprintf("Search failed: %v", err)
	case SourceGenre:
		return fmt.Sprintf("Failed to load movies for this genre: %v", err)
	default:
		return fmt.Sprintf("Failed to load popular movies: %v", err)
	}
}
