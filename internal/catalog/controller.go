package catalog

import (
	"context"
	"errors"
	"sync"
	"time"

	pkgerrors "github.com/angelmondragon/productfeed/pkg/errors"
	"github.com/angelmondragon/productfeed/pkg/logger"
	"github.com/angelmondragon/productfeed/pkg/metrics"
	"github.com/angelmondragon/productfeed/pkg/productsapi"
)

const (
	DefaultPageTimeout  = 10 * time.Second
	DefaultFullTimeout  = 15 * time.Second
	DefaultMaxRetries   = 2
	DefaultRetryBackoff = time.Second

	offlineMessage     = "No internet connection. Please check your network and try again."
	noValidProductsMsg = "No valid products found"
)

// Transport is the upstream products API.
type Transport interface {
	FetchPage(ctx context.Context, offset, limit int, timeout time.Duration) (*productsapi.Payload, error)
	FetchAll(ctx context.Context, timeout time.Duration) (*productsapi.Payload, error)
}

type RenderMode string

const (
	RenderPaged  RenderMode = "paged"
	RenderSorted RenderMode = "sorted"
)

// Snapshot is a read-only copy of the controller state handed to the render layer.
type Snapshot struct {
	Phase       Phase
	Items       []Item
	Loading     bool
	LoadingMore bool
	Sorting     bool
	Error       string
	ErrorCode   pkgerrors.Code
	HasMore     bool
	TotalCount  int
	LoadedCount int
	Page        int
	RetryCount  int
	Sort        SortDescriptor
	RenderMode  RenderMode
}

// ControllerParams wires a browsing controller.
type ControllerParams struct {
	Transport    Transport
	Logger       *logger.Logger
	Metrics      *metrics.CatalogMetrics
	Scheduler    Scheduler
	Connectivity Connectivity

	PageTimeout  time.Duration
	FullTimeout  time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
}

// Controller owns the browsing state of one session. Events may arrive from
// any goroutine; upstream calls are made without holding the state lock.
type Controller struct {
	transport    Transport
	logg         *logger.Logger
	metrics      *metrics.CatalogMetrics
	scheduler    Scheduler
	connectivity Connectivity

	pageTimeout  time.Duration
	fullTimeout  time.Duration
	maxRetries   int
	retryBackoff time.Duration

	mu         sync.Mutex
	generation uint64
	closed     bool
	pager      pager
	full       *fullLoader
	sort       SortDescriptor
	render     RenderMode
	sorting    int
	err        error

	listeners    map[int]func(Snapshot)
	nextListener int
}

// NewController validates params and returns an idle controller.
func NewController(params ControllerParams) (*Controller, error) {
	if params.Transport == nil {
		return nil, errors.New("transport required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.MaxRetries < 0 {
		return nil, errors.New("max retries must not be negative")
	}
	if params.RetryBackoff < 0 {
		return nil, errors.New("retry backoff must not be negative")
	}
	if params.PageTimeout <= 0 {
		params.PageTimeout = DefaultPageTimeout
	}
	if params.FullTimeout <= 0 {
		params.FullTimeout = DefaultFullTimeout
	}
	if params.Scheduler == nil {
		params.Scheduler = NewTimeScheduler()
	}
	if params.Connectivity == nil {
		params.Connectivity = alwaysOnline{}
	}

	c := &Controller{
		transport:    params.Transport,
		logg:         params.Logger,
		metrics:      params.Metrics,
		scheduler:    params.Scheduler,
		connectivity: params.Connectivity,
		pageTimeout:  params.PageTimeout,
		fullTimeout:  params.FullTimeout,
		maxRetries:   params.MaxRetries,
		retryBackoff: params.RetryBackoff,
		listeners:    map[int]func(Snapshot){},
	}
	c.resetLocked(false)
	return c, nil
}

// resetLocked restores the initial state. A refresh reset also makes the next
// full fetch bypass shared caches.
func (c *Controller) resetLocked(refresh bool) {
	c.pager = newPager()
	c.full = newFullLoader(c.transport, c.fullTimeout, c.metrics, refresh)
	c.sort = DefaultSort()
	c.render = RenderPaged
	c.sorting = 0
	c.err = nil
}

// Start performs the initial page load. It reports false when the initial
// page is already loaded or in flight, or an error is pending.
func (c *Controller) Start(ctx context.Context) bool {
	ctx = context.WithoutCancel(ctx)

	c.mu.Lock()
	if c.closed || c.err != nil || !c.pager.canStart() {
		c.mu.Unlock()
		return false
	}
	c.pager.begin(0)
	gen := c.generation
	c.unlockAndPublish()

	c.loadPage(ctx, gen, 0, 0, false)
	return true
}

// NeedMore loads the next page. It is the near-end callback of the
// proximity trigger and reports whether a load was started.
func (c *Controller) NeedMore(ctx context.Context) bool {
	ctx = context.WithoutCancel(ctx)

	c.mu.Lock()
	if c.closed || c.render != RenderPaged || c.err != nil || !c.pager.canLoadMore() {
		c.mu.Unlock()
		return false
	}
	next := c.pager.page + 1
	c.pager.begin(next)
	gen := c.generation
	c.unlockAndPublish()

	c.loadPage(ctx, gen, next, 0, true)
	return true
}

// Sort switches to whole-collection sorting by mode, fetching the full
// collection on first use. Repeating the current mode flips direction.
func (c *Controller) Sort(ctx context.Context, mode SortMode) error {
	if mode != SortRating && mode != SortPrice {
		return pkgerrors.New(pkgerrors.CodeValidation, "sort mode must be rating or price")
	}
	ctx = context.WithoutCancel(ctx)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return pkgerrors.New(pkgerrors.CodeNotFound, "session closed")
	}
	gen := c.generation
	full := c.full
	c.sorting++
	c.unlockAndPublish()

	items, dropped, err := full.EnsureLoaded(ctx)

	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		c.logg.Debug(ctx, "catalog.sort_discarded")
		return pkgerrors.New(pkgerrors.CodeConflict, "session was reset while sorting")
	}
	c.sorting--
	if err != nil {
		c.err = err
		c.unlockAndPublish()
		c.logg.Error(ctx, "catalog.sort_fetch_failed", err)
		return err
	}
	c.pager.setDeclaredTotal(len(items))
	c.sort = c.sort.Apply(mode)
	c.render = RenderSorted
	descriptor := c.sort
	c.unlockAndPublish()

	logCtx := c.logg.WithSort(ctx, string(descriptor.Mode), string(descriptor.Direction))
	logCtx = c.logg.WithItemCounts(logCtx, len(items), dropped)
	c.logg.Info(logCtx, "catalog.sorted")
	return nil
}

// ClearSort returns to fetch order and paged rendering. The full collection
// stays cached.
func (c *Controller) ClearSort() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.sort = DefaultSort()
	c.render = RenderPaged
	c.unlockAndPublish()
}

// Retry discards all state and performs the initial load again. Completions
// and scheduled retries from before the reset are dropped.
func (c *Controller) Retry(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.generation++
	c.resetLocked(true)
	c.pager.begin(0)
	gen := c.generation
	c.unlockAndPublish()

	c.logg.Info(ctx, "catalog.reset")
	c.loadPage(ctx, gen, 0, 0, false)
}

// Close stops the controller; pending retries become no-ops.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.generation++
	c.listeners = map[int]func(Snapshot){}
}

// Subscribe registers fn to receive a snapshot after every state change.
func (c *Controller) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	c.mu.Lock()
	id := c.nextListener
	c.nextListener++
	c.listeners[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.listeners, id)
			c.mu.Unlock()
		})
	}
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{
		Phase:       c.pager.phase,
		Loading:     c.pager.phase == PhaseLoading,
		LoadingMore: c.pager.phase == PhaseLoadingMore,
		Sorting:     c.sorting > 0,
		HasMore:     c.pager.hasMore,
		TotalCount:  c.pager.declaredTotal,
		LoadedCount: len(c.pager.items),
		Page:        c.pager.page,
		RetryCount:  c.pager.retryCount,
		Sort:        c.sort,
		RenderMode:  c.render,
	}

	switch {
	case c.render == RenderSorted && c.sort.Mode != SortNone:
		full, _ := c.full.cached()
		snap.Items = SortItems(full, c.sort)
	case c.sort.Mode != SortNone:
		snap.Items = SortItems(c.pager.items, c.sort)
	default:
		snap.Items = append([]Item(nil), c.pager.items...)
	}
	if snap.Items == nil {
		snap.Items = []Item{}
	}

	if c.render == RenderSorted {
		snap.Phase = PhaseSorted
	}
	if c.err != nil {
		snap.Phase = PhaseError
		snap.Error = c.err.Error()
		snap.ErrorCode = pkgerrors.CodeOf(c.err)
		if typed := pkgerrors.As(c.err); typed != nil {
			snap.Error = typed.Message()
		}
	}
	return snap
}

// unlockAndPublish releases the lock and notifies listeners with a snapshot
// taken while it was held.
func (c *Controller) unlockAndPublish() {
	snap := c.snapshotLocked()
	listeners := make([]func(Snapshot), 0, len(c.listeners))
	for _, fn := range c.listeners {
		listeners = append(listeners, fn)
	}
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
}

func (c *Controller) loadPage(ctx context.Context, gen uint64, pageIndex, attempt int, appendItems bool) {
	logCtx := c.logg.WithPage(ctx, pageIndex, attempt)

	payload, err := c.transport.FetchPage(ctx, pageIndex*PageSize, PageSize, c.pageTimeout)

	var (
		items   []Item
		dropped int
		offline bool
	)
	switch {
	case err == nil:
		items, dropped = ParseItems(payload.Products)
		if len(items) == 0 && pageIndex == 0 {
			err = pkgerrors.New(pkgerrors.CodeNoValidProducts, noValidProductsMsg)
		}
	case pkgerrors.CodeOf(err) != pkgerrors.CodeTimeout:
		offline = !c.connectivity.Online(ctx)
	}

	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		c.logg.Debug(logCtx, "catalog.stale_page_discarded")
		return
	}

	if err == nil {
		c.pager.apply(pageIndex, items, payload.Total, appendItems)
		loaded, total := len(c.pager.items), c.pager.declaredTotal
		c.unlockAndPublish()

		logCtx = c.logg.WithItemCounts(logCtx, len(items), dropped)
		c.logg.Info(c.logg.WithFields(logCtx, map[string]any{
			"loaded": loaded,
			"total":  total,
		}), "catalog.page_loaded")
		return
	}

	code := pkgerrors.CodeOf(err)
	switch {
	case code == pkgerrors.CodeTimeout && attempt > 0:
		c.pager.fail()
		c.unlockAndPublish()
		c.logg.Warn(logCtx, "catalog.retry_timed_out")
		return
	case code == pkgerrors.CodeTimeout, code == pkgerrors.CodeNoValidProducts:
		c.pager.fail()
		c.err = err
	case offline:
		c.pager.fail()
		c.err = pkgerrors.Wrap(pkgerrors.CodeOffline, err, offlineMessage)
	case isRetryable(err) && attempt < c.maxRetries:
		next := attempt + 1
		c.pager.retryCount = next
		delay := c.retryBackoff * time.Duration(next)
		c.scheduler.AfterFunc(delay, func() {
			c.fireRetry(ctx, gen, pageIndex, next, appendItems)
		})
		c.unlockAndPublish()

		c.metrics.IncRetry()
		c.logg.Warn(c.logg.WithFields(logCtx, map[string]any{
			"delay": delay.String(),
			"error": err.Error(),
		}), "catalog.page_retry_scheduled")
		return
	default:
		c.pager.fail()
		c.err = err
	}
	c.unlockAndPublish()
	c.logg.Error(logCtx, "catalog.page_load_failed", err)
}

func (c *Controller) fireRetry(ctx context.Context, gen uint64, pageIndex, attempt int, appendItems bool) {
	c.mu.Lock()
	stale := gen != c.generation
	c.mu.Unlock()
	if stale {
		c.logg.Debug(ctx, "catalog.stale_retry_discarded")
		return
	}
	c.loadPage(ctx, gen, pageIndex, attempt, appendItems)
}
