// Package listctl implements the paged list controller shared by the user,
// document and image views.
//
// A Controller owns the search term, sort option, page and selection of one
// list view, loads pages through a Fetcher and runs the add/edit/delete/bulk
// delete flows, notifying the user and reloading afterwards.
//
// Every load takes a generation number; a response that is not the latest
// issued is discarded. After each successful load the selection is
// intersected with the ids on the new page.
package listctl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	portal "github.com/chimerakang/portal-go"
	"github.com/chimerakang/portal-go/metrics"
	"github.com/chimerakang/portal-go/notify"
)

var (
	// ErrStale is returned by a load whose response was superseded by a newer load.
	ErrStale = errors.New("portal/listctl: response superseded")

	// ErrLoad is returned when the server answered a load with a non-2xx status.
	ErrLoad = errors.New("portal/listctl: load failed")

	// ErrClosed is returned by loads on a closed controller.
	ErrClosed = errors.New("portal/listctl: controller closed")
)

// Fetcher loads one page. It matches the List method of the resource services.
type Fetcher[T any] func(ctx context.Context, q portal.ListQuery) (*portal.Response, portal.PagedList[T], error)

// Timer is a pending debounce. *time.Timer satisfies it.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d.
type AfterFunc func(d time.Duration, f func()) Timer

func timeAfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// Modal identifies the dialog a view has open.
type Modal int

const (
	ModalNone Modal = iota
	ModalAdd
	ModalEdit
	ModalDelete
	ModalDetails
)

// Config configures a Controller. Fetch and IDOf are required.
type Config[T any, ID comparable] struct {
	// Name labels metrics and log lines (e.g. "users").
	Name string

	Fetch Fetcher[T]
	IDOf  func(T) ID

	// SortOptions lists the selectable sorts; the first is the initial one.
	SortOptions []portal.SortOption

	// PageSize defaults to portal.DefaultPageSize.
	PageSize int

	// Debounce defaults to portal.DefaultDebounce.
	Debounce time.Duration

	// Base is copied into every query. Page, PageSize, Search and Sort are
	// always overwritten by the controller.
	Base portal.ListQuery

	// EditFields receive the "unchanged" error when Edit finds nothing to save.
	EditFields []string

	Messages Messages

	// Notifier receives toasts. When nil the notifier stored in the call's
	// context is used, falling back to logging.
	Notifier portal.Notifier

	Metrics   *metrics.Metrics
	Logger    *slog.Logger
	AfterFunc AfterFunc
}

// State is a snapshot of a controller.
type State[T any, ID comparable] struct {
	List      portal.PagedList[T]
	Search    string
	Sort      *portal.SortOption
	Page      int
	ReloadKey int
	Selected  []ID
	Loading   bool
	Modal     Modal
	Target    *T
}

// AllSelected reports whether every item on the page is selected.
func (s State[T, ID]) AllSelected() bool {
	return len(s.List.Items) > 0 && len(s.Selected) == len(s.List.Items)
}

// Controller drives one paged list view. It is safe for concurrent use.
type Controller[T any, ID comparable] struct {
	cfg       Config[T, ID]
	msgs      Messages
	logger    *slog.Logger
	afterFunc AfterFunc

	// base is the context of debounced loads; Close cancels it.
	base   context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	list        portal.PagedList[T]
	search      string
	sort        *portal.SortOption
	page        int
	reloadKey   int
	selected    map[ID]struct{}
	loading     bool
	modal       Modal
	target      *T
	gen         uint64
	debounce    Timer
	debounceSeq uint64
	closed      bool
	subs        []func(State[T, ID])
}

// New returns a controller on page 1 with the first sort option. It does not
// load; call Reload once the view is ready.
func New[T any, ID comparable](cfg Config[T, ID]) (*Controller[T, ID], error) {
	if cfg.Fetch == nil || cfg.IDOf == nil {
		return nil, fmt.Errorf("portal/listctl: Fetch and IDOf are required")
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = portal.DefaultPageSize
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = portal.DefaultDebounce
	}
	if cfg.Name == "" {
		cfg.Name = "list"
	}
	c := &Controller[T, ID]{
		cfg:       cfg,
		msgs:      cfg.Messages.withDefaults(),
		logger:    cfg.Logger,
		afterFunc: cfg.AfterFunc,
		page:      1,
		selected:  make(map[ID]struct{}),
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.afterFunc == nil {
		c.afterFunc = timeAfterFunc
	}
	c.sort = c.firstSort()
	c.list = portal.PagedList[T]{Page: 1, PageSize: cfg.PageSize}
	c.base, c.cancel = context.WithCancel(context.Background())
	return c, nil
}

// OnChange registers fn to receive a snapshot after every state change.
func (c *Controller[T, ID]) OnChange(fn func(State[T, ID])) {
	c.mu.Lock()
	c.subs = append(c.subs, fn)
	c.mu.Unlock()
}

// State returns a snapshot of the controller.
func (c *Controller[T, ID]) State() State[T, ID] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Close stops any pending debounced search and cancels its load.
func (c *Controller[T, ID]) Close() error {
	c.mu.Lock()
	c.closed = true
	c.stopDebounceLocked()
	c.mu.Unlock()
	c.cancel()
	return nil
}

// --- loading ---

// Reload loads the current page with the current search and sort.
func (c *Controller[T, ID]) Reload(ctx context.Context) error {
	return c.load(ctx)
}

// Bump increments the reload key and reloads.
func (c *Controller[T, ID]) Bump(ctx context.Context) error {
	c.mu.Lock()
	c.reloadKey++
	c.mu.Unlock()
	return c.load(ctx)
}

// SetPage moves to page p and reloads. Setting the current page is a no-op.
func (c *Controller[T, ID]) SetPage(ctx context.Context, p int) error {
	if p < 1 {
		p = 1
	}
	c.mu.Lock()
	if p == c.page {
		c.mu.Unlock()
		return nil
	}
	c.page = p
	c.mu.Unlock()
	return c.load(ctx)
}

// SetSort selects opt and reloads.
func (c *Controller[T, ID]) SetSort(ctx context.Context, opt portal.SortOption) error {
	c.mu.Lock()
	c.sort = &opt
	c.mu.Unlock()
	return c.load(ctx)
}

// SortBy selects the configured option with key, keeping its default direction.
func (c *Controller[T, ID]) SortBy(ctx context.Context, key string) error {
	for _, opt := range c.cfg.SortOptions {
		if opt.Key == key {
			return c.SetSort(ctx, opt)
		}
	}
	return fmt.Errorf("portal/listctl: unknown sort key %q", key)
}

// ToggleSortDirection flips the direction of the current sort and reloads.
func (c *Controller[T, ID]) ToggleSortDirection(ctx context.Context) error {
	c.mu.Lock()
	if c.sort == nil {
		c.mu.Unlock()
		return nil
	}
	flipped := c.sort.Toggle()
	c.sort = &flipped
	c.mu.Unlock()
	return c.load(ctx)
}

// SetSearch records term and restarts the debounce window. Only a non-blank
// term that stays unchanged for the whole window triggers a load.
func (c *Controller[T, ID]) SetSearch(term string) {
	c.mu.Lock()
	c.search = term
	c.stopDebounceLocked()
	if strings.TrimSpace(term) != "" && !c.closed {
		seq := c.debounceSeq
		c.debounce = c.afterFunc(c.cfg.Debounce, func() { c.fireSearch(seq) })
	}
	c.mu.Unlock()
	c.emit()
}

// ClearSearch drops the term and any pending debounce, then reloads the
// unfiltered list immediately.
func (c *Controller[T, ID]) ClearSearch(ctx context.Context) error {
	c.mu.Lock()
	c.stopDebounceLocked()
	c.search = ""
	c.reloadKey++
	c.mu.Unlock()
	return c.load(ctx)
}

// ClearAndReload resets search, sort and page, then reloads.
func (c *Controller[T, ID]) ClearAndReload(ctx context.Context) error {
	c.mu.Lock()
	c.stopDebounceLocked()
	c.search = ""
	c.sort = c.firstSort()
	c.page = 1
	c.reloadKey++
	c.mu.Unlock()
	return c.load(ctx)
}

func (c *Controller[T, ID]) fireSearch(seq uint64) {
	c.mu.Lock()
	if seq != c.debounceSeq || c.closed {
		c.mu.Unlock()
		return
	}
	c.debounce = nil
	c.mu.Unlock()
	// Errors are already reported through the notifier.
	_ = c.load(c.base)
}

// stopDebounceLocked cancels the pending timer. Bumping the sequence also
// neutralizes a timer that already fired but has not taken the lock yet.
func (c *Controller[T, ID]) stopDebounceLocked() {
	if c.debounce != nil {
		c.debounce.Stop()
		c.debounce = nil
	}
	c.debounceSeq++
}

func (c *Controller[T, ID]) load(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.gen++
	gen := c.gen
	q := c.queryLocked()
	c.loading = true
	c.mu.Unlock()
	c.emit()

	resp, page, err := c.cfg.Fetch(ctx, q)

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		c.cfg.Metrics.RecordListLoad(c.cfg.Name, metrics.LoadStale)
		c.logger.Debug("portal/listctl: discarded stale response", "list", c.cfg.Name, "generation", gen)
		return ErrStale
	}
	c.loading = false
	ok := err == nil && resp.OK()
	if ok {
		page.Normalize()
		c.list = page
		c.intersectLocked()
	}
	c.mu.Unlock()

	if ok {
		c.cfg.Metrics.RecordListLoad(c.cfg.Name, metrics.LoadOK)
		c.emit()
		return nil
	}

	c.cfg.Metrics.RecordListLoad(c.cfg.Name, metrics.LoadError)
	msg := c.msgs.LoadFailed
	if err == nil {
		msg = messageOr(resp, msg)
	}
	c.notify(ctx, portal.SeverityError, msg)
	c.emit()
	if err != nil {
		c.logger.Warn("portal/listctl: load", "list", c.cfg.Name, "error", err)
		return fmt.Errorf("portal/listctl: load %s: %w", c.cfg.Name, err)
	}
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	c.logger.Warn("portal/listctl: load", "list", c.cfg.Name, "status", status)
	return fmt.Errorf("%w: %s: status %d", ErrLoad, c.cfg.Name, status)
}

func (c *Controller[T, ID]) queryLocked() portal.ListQuery {
	q := c.cfg.Base
	q.Page = c.page
	q.PageSize = c.cfg.PageSize
	q.Search = strings.TrimSpace(c.search)
	q.Sort = nil
	if c.sort != nil {
		s := *c.sort
		q.Sort = &s
	}
	return q
}

func (c *Controller[T, ID]) firstSort() *portal.SortOption {
	if len(c.cfg.SortOptions) == 0 {
		return nil
	}
	s := c.cfg.SortOptions[0]
	return &s
}

// --- selection ---

// Toggle adds or removes id from the selection and reports whether it is
// now selected. Ids not on the current page are ignored.
func (c *Controller[T, ID]) Toggle(id ID) bool {
	c.mu.Lock()
	if !c.onPageLocked(id) {
		c.mu.Unlock()
		return false
	}
	_, was := c.selected[id]
	if was {
		delete(c.selected, id)
	} else {
		c.selected[id] = struct{}{}
	}
	c.mu.Unlock()
	c.emit()
	return !was
}

// SelectAll selects every item on the page, or clears the selection when
// every item is already selected.
func (c *Controller[T, ID]) SelectAll() {
	c.mu.Lock()
	all := len(c.list.Items) > 0
	for _, it := range c.list.Items {
		if _, ok := c.selected[c.cfg.IDOf(it)]; !ok {
			all = false
			break
		}
	}
	c.selected = make(map[ID]struct{}, len(c.list.Items))
	if !all {
		for _, it := range c.list.Items {
			c.selected[c.cfg.IDOf(it)] = struct{}{}
		}
	}
	c.mu.Unlock()
	c.emit()
}

// ClearSelection empties the selection.
func (c *Controller[T, ID]) ClearSelection() {
	c.mu.Lock()
	c.selected = make(map[ID]struct{})
	c.mu.Unlock()
	c.emit()
}

// Selected returns the selected ids in page order.
func (c *Controller[T, ID]) Selected() []ID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selectedLocked()
}

// IsSelected reports whether id is selected.
func (c *Controller[T, ID]) IsSelected(id ID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.selected[id]
	return ok
}

func (c *Controller[T, ID]) selectedLocked() []ID {
	out := make([]ID, 0, len(c.selected))
	for _, it := range c.list.Items {
		if id := c.cfg.IDOf(it); c.has(id) {
			out = append(out, id)
		}
	}
	return out
}

func (c *Controller[T, ID]) has(id ID) bool {
	_, ok := c.selected[id]
	return ok
}

func (c *Controller[T, ID]) onPageLocked(id ID) bool {
	for _, it := range c.list.Items {
		if c.cfg.IDOf(it) == id {
			return true
		}
	}
	return false
}

func (c *Controller[T, ID]) intersectLocked() {
	keep := make(map[ID]struct{}, len(c.selected))
	for _, it := range c.list.Items {
		if id := c.cfg.IDOf(it); c.has(id) {
			keep[id] = struct{}{}
		}
	}
	c.selected = keep
}

// --- modals ---

// Open records the open dialog and the item it acts on. target may be nil.
func (c *Controller[T, ID]) Open(m Modal, target *T) {
	c.mu.Lock()
	c.modal = m
	c.target = nil
	if target != nil {
		t := *target
		c.target = &t
	}
	c.mu.Unlock()
	c.emit()
}

// CloseModal closes the open dialog and clears its target.
func (c *Controller[T, ID]) CloseModal() {
	c.mu.Lock()
	c.modal = ModalNone
	c.target = nil
	c.mu.Unlock()
	c.emit()
}

// Target returns the item the open dialog acts on.
func (c *Controller[T, ID]) Target() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.target == nil {
		var zero T
		return zero, false
	}
	return *c.target, true
}

// --- mutations ---

// Add runs call and reloads the list. On 200 or 201 it notifies success and
// closes the dialog. Otherwise it notifies the error and routes field errors
// to sink, leaving the dialog open.
func (c *Controller[T, ID]) Add(ctx context.Context, call func(context.Context) *portal.Response, sink portal.FieldErrorSink) bool {
	resp := call(ctx)
	if !statusIn(resp, http.StatusOK, http.StatusCreated) {
		c.fail(ctx, resp, c.msgs.AddFailed, sink)
		_ = c.load(ctx)
		return false
	}
	c.notify(ctx, portal.SeveritySuccess, c.msgs.Added)
	_ = c.load(ctx)
	c.CloseModal()
	return true
}

// Edit applies call to the current target. When unchanged reports true
// nothing is sent: a warning is shown and every EditField gets an error.
// Otherwise the list is reloaded and the dialog closed whatever the outcome.
func (c *Controller[T, ID]) Edit(ctx context.Context, unchanged func(T) bool, call func(context.Context, T) *portal.Response, sink portal.FieldErrorSink) bool {
	target, ok := c.Target()
	if !ok {
		return false
	}
	if unchanged != nil && unchanged(target) {
		c.notify(ctx, portal.SeverityWarning, c.msgs.Unchanged)
		if sink != nil {
			for _, f := range c.cfg.EditFields {
				sink.SetFieldError(f, c.msgs.Unchanged)
			}
		}
		return false
	}

	resp := call(ctx, target)
	ok = statusIn(resp, http.StatusOK, http.StatusNoContent)
	if ok {
		c.notify(ctx, portal.SeveritySuccess, c.msgs.Saved)
	} else {
		c.fail(ctx, resp, c.msgs.SaveFailed, sink)
	}
	_ = c.load(ctx)
	c.CloseModal()
	return ok
}

// Delete applies call to the current target, then reloads and closes the dialog.
func (c *Controller[T, ID]) Delete(ctx context.Context, call func(context.Context, T) *portal.Response) bool {
	target, ok := c.Target()
	if !ok {
		return false
	}
	resp := call(ctx, target)
	ok = statusIn(resp, http.StatusOK, http.StatusNoContent)
	if ok {
		c.notify(ctx, portal.SeveritySuccess, c.msgs.Deleted)
	} else {
		c.fail(ctx, resp, c.msgs.DeleteFailed, nil)
	}
	_ = c.load(ctx)
	c.CloseModal()
	return ok
}

// Download fetches the current target through call and closes the dialog.
// On failure the error is notified and a nil body returned; otherwise the
// caller must close the body.
func (c *Controller[T, ID]) Download(ctx context.Context, call func(context.Context, T) (io.ReadCloser, *portal.Response, error)) io.ReadCloser {
	target, ok := c.Target()
	if !ok {
		return nil
	}
	defer c.CloseModal()

	body, resp, err := call(ctx, target)
	if err != nil {
		c.logger.Warn("portal/listctl: download", "list", c.cfg.Name, "error", err)
		c.notify(ctx, portal.SeverityError, c.msgs.DownloadFailed)
		return nil
	}
	if body == nil {
		c.notify(ctx, portal.SeverityError, messageOr(resp, c.msgs.DownloadFailed))
		return nil
	}
	return body
}

// BulkDelete passes the selection to call. An empty selection does nothing.
// The list is reloaded and the selection cleared whatever the outcome.
func (c *Controller[T, ID]) BulkDelete(ctx context.Context, call func(context.Context, []ID) *portal.Response) bool {
	ids := c.Selected()
	if len(ids) == 0 {
		return false
	}
	resp := call(ctx, ids)
	ok := resp.OK()
	if ok {
		c.reportBulk(ctx, resp)
	} else {
		c.fail(ctx, resp, c.msgs.BulkFailed, nil)
	}
	_ = c.load(ctx)
	c.ClearSelection()
	return ok
}

// reportBulk distinguishes a full delete from a partial one. Servers that
// do not report per-id results get a single generic success.
func (c *Controller[T, ID]) reportBulk(ctx context.Context, resp *portal.Response) {
	var res struct {
		Deleted    []any `json:"deletedIds"`
		NotDeleted []any `json:"notDeletedIds"`
	}
	if err := resp.Decode(&res); err != nil || res.Deleted == nil {
		c.notify(ctx, portal.SeveritySuccess, c.msgs.BulkDeleted)
		return
	}
	if n := len(res.NotDeleted); n > 0 {
		c.notify(ctx, portal.SeverityWarning, c.msgs.notDeleted(n))
	}
	c.notify(ctx, portal.SeveritySuccess, c.msgs.deleted(len(res.Deleted)))
}

func (c *Controller[T, ID]) fail(ctx context.Context, resp *portal.Response, fallback string, sink portal.FieldErrorSink) {
	c.notify(ctx, portal.SeverityError, messageOr(resp, fallback))
	if sink == nil || resp == nil {
		return
	}
	for _, fe := range resp.FieldErrors {
		sink.SetFieldError(fe.Field, fe.Message)
	}
}

func (c *Controller[T, ID]) notify(ctx context.Context, sev portal.Severity, msg string) {
	n := c.cfg.Notifier
	if n == nil {
		n = portal.NotifierFromContext(ctx)
	}
	if n == nil {
		n = notify.NewLog(c.logger)
	}
	n.Notify(ctx, sev, msg)
}

func (c *Controller[T, ID]) emit() {
	c.mu.Lock()
	if len(c.subs) == 0 {
		c.mu.Unlock()
		return
	}
	s := c.snapshotLocked()
	subs := append([]func(State[T, ID]){}, c.subs...)
	c.mu.Unlock()
	for _, fn := range subs {
		fn(s)
	}
}

func (c *Controller[T, ID]) snapshotLocked() State[T, ID] {
	s := State[T, ID]{
		List:      c.list,
		Search:    c.search,
		Page:      c.page,
		ReloadKey: c.reloadKey,
		Selected:  c.selectedLocked(),
		Loading:   c.loading,
		Modal:     c.modal,
	}
	s.List.Items = append([]T(nil), c.list.Items...)
	if c.sort != nil {
		v := *c.sort
		s.Sort = &v
	}
	if c.target != nil {
		t := *c.target
		s.Target = &t
	}
	return s
}

func statusIn(resp *portal.Response, codes ...int) bool {
	if resp == nil {
		return false
	}
	for _, code := range codes {
		if resp.StatusCode == code {
			return true
		}
	}
	return false
}

func messageOr(resp *portal.Response, fallback string) string {
	if resp != nil && resp.Message != "" {
		return resp.Message
	}
	return fallback
}
