package sync

import (
	"context"
	"fmt"
	stdsync "sync"
	"time"

	"github.com/goliatone/go-backoffice/core"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

const (
	messageLoadFailed    = "Não conseguimos carregar os eventos. Tente novamente em alguns instantes."
	messageRefreshFailed = "Não foi possível atualizar os eventos."
	messageBusy          = "Aguarde a operação anterior terminar."
)

var mutationMessages = map[core.MutationKind]struct{ success, failure string }{
	core.MutationAdd:    {success: "Evento adicionado com sucesso!", failure: "Falha ao adicionar evento. Tente novamente."},
	core.MutationEdit:   {success: "Evento atualizado com sucesso!", failure: "Falha ao atualizar evento. O evento pode não existir mais."},
	core.MutationDelete: {success: "Evento excluído com sucesso!", failure: "Falha ao excluir evento. O evento pode não existir mais."},
}

// CalendarService is the subset of calendar.Service the coordinator drives.
type CalendarService interface {
	FetchEvents(ctx context.Context, category core.Category, filter core.DateFilter) ([]core.CalendarEvent, error)
	RefreshEventsViaPost(ctx context.Context, category core.Category, filter core.DateFilter) ([]core.CalendarEvent, error)
	AddEvent(ctx context.Context, form core.EventForm, category core.Category) core.MutationResult
	EditEvent(ctx context.Context, id string, form core.EventForm, category core.Category) core.MutationResult
	DeleteEvent(ctx context.Context, id string, category core.Category) core.MutationResult
}

type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateLoaded  State = "loaded"
	StateFailed  State = "failed"
)

// Snapshot is a copy of the coordinator's view at one point in time.
type Snapshot struct {
	Category   core.Category        `json:"category"`
	Filter     core.DateFilter      `json:"filter"`
	Events     []core.CalendarEvent `json:"events"`
	State      State                `json:"state"`
	LastRead   time.Time            `json:"last_read,omitempty"`
	Loading    bool                 `json:"loading"`
	Submitting bool                 `json:"submitting"`
	LastError  string               `json:"last_error,omitempty"`
}

// generation identifies the view a read was issued for. A result is applied
// only while its view is still current and no newer read has been applied.
type generation struct {
	view     uint64
	read     uint64
	category core.Category
	filter   core.DateFilter
}

type Coordinator struct {
	calendar CalendarService
	notifier core.Notifier
	poller   *Poller
	logger   core.Logger
	metrics  core.MetricsRecorder
	observer *core.Observer
	now      func() time.Time

	mu          stdsync.Mutex
	category    core.Category
	filter      core.DateFilter
	events      []core.CalendarEvent
	state       State
	lastRead    time.Time
	lastErr     error
	viewSeq     uint64
	readSeq     uint64
	appliedRead uint64
	submitting  bool
	runCtx      context.Context

	// pollMu orders subscription changes against Stop. It is never held
	// while mu is wanted by a poll.
	pollMu   stdsync.Mutex
	polling  bool
	stopPoll func()
}

type Option func(*Coordinator)

func WithNotifier(notifier core.Notifier) Option {
	return func(c *Coordinator) {
		if notifier != nil {
			c.notifier = notifier
		}
	}
}

func WithPoller(poller *Poller) Option {
	return func(c *Coordinator) {
		c.poller = poller
	}
}

func WithLogger(logger core.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithMetricsRecorder(recorder core.MetricsRecorder) Option {
	return func(c *Coordinator) {
		c.metrics = recorder
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

func WithCategory(category core.Category) Option {
	return func(c *Coordinator) {
		if category.Valid() {
			c.category = category
		}
	}
}

func NewCoordinator(calendar CalendarService, opts ...Option) *Coordinator {
	c := &Coordinator{
		calendar: calendar,
		notifier: core.NopNotifier{},
		logger:   glog.Nop(),
		now:      time.Now,
		category: core.DefaultCategory,
		state:    StateIdle,
		events:   []core.CalendarEvent{},
		runCtx:   context.Background(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	c.observer = core.NewObserver(c.logger, c.metrics, "sync")
	return c
}

// Start performs the initial load and subscribes the poller. ctx bounds the
// lifetime of the polling subscription.
func (c *Coordinator) Start(ctx context.Context) Snapshot {
	if ctx == nil {
		ctx = context.Background()
	}
	c.mu.Lock()
	c.runCtx = ctx
	c.mu.Unlock()
	c.pollMu.Lock()
	c.polling = c.poller != nil
	c.pollMu.Unlock()
	c.resubscribe()
	if done := ctx.Done(); done != nil {
		go func() {
			<-done
			c.Stop()
		}()
	}
	return c.load(ctx)
}

// Stop cancels the polling subscription. View changes after Stop no longer
// subscribe.
func (c *Coordinator) Stop() {
	c.pollMu.Lock()
	defer c.pollMu.Unlock()
	c.polling = false
	if c.stopPoll != nil {
		c.stopPoll()
		c.stopPoll = nil
	}
}

// SetCategory switches agendas. The previous category's events and error are
// cleared before the new read so they never show under the new category.
func (c *Coordinator) SetCategory(ctx context.Context, category core.Category) (Snapshot, error) {
	if !category.Valid() {
		return c.Snapshot(), core.NewError("sync: unknown category "+string(category), goerrors.CategoryBadInput, core.ErrorBadInput, nil)
	}
	c.mu.Lock()
	c.category = category
	c.events = []core.CalendarEvent{}
	c.lastErr = nil
	c.lastRead = time.Time{}
	c.state = StateIdle
	c.viewSeq++
	c.mu.Unlock()

	c.resubscribe()
	return c.load(ctx), nil
}

// SetDateFilter changes the day restriction and reloads. The zero filter
// shows every event.
func (c *Coordinator) SetDateFilter(ctx context.Context, filter core.DateFilter) Snapshot {
	c.mu.Lock()
	c.filter = filter
	c.viewSeq++
	c.mu.Unlock()

	c.resubscribe()
	return c.load(ctx)
}

// Refresh is the explicit GET reload, with the same POST fallback as the
// initial load.
func (c *Coordinator) Refresh(ctx context.Context) Snapshot {
	return c.load(ctx)
}

// RefreshViaPost reloads through the POST channel only.
func (c *Coordinator) RefreshViaPost(ctx context.Context) Snapshot {
	startedAt := time.Now()
	tag := c.beginRead(true)
	events, err := c.calendar.RefreshEventsViaPost(ctx, tag.category, tag.filter)
	c.observer.Observe(ctx, startedAt, "refresh_post", err, map[string]any{"category": string(tag.category)})
	if err != nil {
		if c.fail(tag, err) {
			c.notify(ctx, core.NotificationError, messageRefreshFailed, tag.category)
		}
		return c.Snapshot()
	}
	c.apply(tag, events)
	return c.Snapshot()
}

// Poll is the silent GET run by the poller. Failures are logged and leave the
// view untouched.
func (c *Coordinator) Poll(ctx context.Context) {
	tag := c.beginRead(false)
	events, err := c.calendar.FetchEvents(ctx, tag.category, tag.filter)
	if err != nil {
		c.logger.Warn("agenda poll failed", "category", string(tag.category), "filter", tag.filter.String(), "error", err)
		c.observer.Count(ctx, "poll.total", 1, map[string]string{"status": "failure", "category": string(tag.category)})
		return
	}
	c.observer.Count(ctx, "poll.total", 1, map[string]string{"status": "success", "category": string(tag.category)})
	c.apply(tag, events)
}

// AddEvent adds form to category. An empty category means the viewed agenda.
func (c *Coordinator) AddEvent(ctx context.Context, category core.Category, form core.EventForm) core.MutationResult {
	return c.mutate(ctx, core.MutationAdd, category, func(category core.Category) core.MutationResult {
		return c.calendar.AddEvent(ctx, form, category)
	})
}

func (c *Coordinator) EditEvent(ctx context.Context, category core.Category, id string, form core.EventForm) core.MutationResult {
	return c.mutate(ctx, core.MutationEdit, category, func(category core.Category) core.MutationResult {
		return c.calendar.EditEvent(ctx, id, form, category)
	})
}

func (c *Coordinator) DeleteEvent(ctx context.Context, category core.Category, id string) core.MutationResult {
	return c.mutate(ctx, core.MutationDelete, category, func(category core.Category) core.MutationResult {
		return c.calendar.DeleteEvent(ctx, id, category)
	})
}

// mutate runs one mutation at a time against target, or the viewed category
// when target is empty. A successful mutation is followed by a reconciling
// read; a failed edit or delete is too, since the target may already be gone.
// The read only happens while target is still the viewed category. Every
// outcome yields exactly one notification.
func (c *Coordinator) mutate(ctx context.Context, kind core.MutationKind, target core.Category, run func(core.Category) core.MutationResult) core.MutationResult {
	c.mu.Lock()
	category := target
	if category == "" {
		category = c.category
	}
	if c.submitting {
		c.mu.Unlock()
		c.notify(ctx, core.NotificationError, messageBusy, category)
		return core.MutationResult{
			Kind:     kind,
			Status:   core.MutationFailed,
			Category: category,
			Err: core.NewError("sync: another mutation is in progress", goerrors.CategoryConflict, core.ErrorSyncMutationInProgress, map[string]any{
				"kind": string(kind),
			}),
		}
	}
	c.submitting = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.submitting = false
		c.mu.Unlock()
	}()

	result := run(category)
	messages := mutationMessages[kind]
	if result.OK() {
		c.reconcile(ctx, category)
		c.notify(ctx, core.NotificationSuccess, messages.success, category)
		return result
	}
	if kind != core.MutationAdd {
		c.reconcile(ctx, category)
	}
	c.notify(ctx, core.NotificationError, messages.failure, category)
	return result
}

func (c *Coordinator) reconcile(ctx context.Context, category core.Category) {
	c.mu.Lock()
	viewed := c.category == category
	c.mu.Unlock()
	if viewed {
		c.load(ctx)
	}
}

// load issues a GET for the current view. When it fails and nothing is shown
// yet, one POST read is attempted; if that also fails the operator is told.
// When events are already shown they are kept.
func (c *Coordinator) load(ctx context.Context) Snapshot {
	startedAt := time.Now()
	tag := c.beginRead(true)
	events, err := c.calendar.FetchEvents(ctx, tag.category, tag.filter)
	c.observer.Observe(ctx, startedAt, "load", err, map[string]any{
		"category": string(tag.category),
		"filter":   tag.filter.String(),
	})
	if err == nil {
		c.apply(tag, events)
		return c.Snapshot()
	}

	if !c.fail(tag, err) {
		return c.Snapshot()
	}
	if !c.showsNothing(tag) {
		c.logger.Warn("agenda read failed, keeping current events", "category", string(tag.category), "error", err)
		return c.Snapshot()
	}

	c.logger.Warn("agenda read failed, trying post refresh", "category", string(tag.category), "error", err)
	fallbackTag := c.beginRead(true)
	events, err = c.calendar.RefreshEventsViaPost(ctx, fallbackTag.category, fallbackTag.filter)
	if err == nil {
		c.apply(fallbackTag, events)
		return c.Snapshot()
	}
	if c.fail(fallbackTag, err) {
		c.logger.Error("agenda post refresh failed", "category", string(fallbackTag.category), "error", err)
		c.notify(ctx, core.NotificationError, messageLoadFailed, fallbackTag.category)
	}
	return c.Snapshot()
}

func (c *Coordinator) beginRead(visible bool) generation {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readSeq++
	if visible {
		c.state = StateLoading
	}
	return generation{view: c.viewSeq, read: c.readSeq, category: c.category, filter: c.filter}
}

func (c *Coordinator) currentLocked(tag generation) bool {
	return tag.view == c.viewSeq && tag.read > c.appliedRead
}

// apply replaces the event list wholesale if tag is still current.
func (c *Coordinator) apply(tag generation, events []core.CalendarEvent) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.currentLocked(tag) {
		c.logger.Debug("discarding stale agenda read", "category", string(tag.category), "filter", tag.filter.String())
		return false
	}
	if events == nil {
		events = []core.CalendarEvent{}
	}
	c.events = core.CloneEvents(events)
	c.appliedRead = tag.read
	c.lastRead = c.now()
	c.lastErr = nil
	c.state = StateLoaded
	return true
}

// fail records err if tag is still current and reports whether it did.
func (c *Coordinator) fail(tag generation, err error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.currentLocked(tag) {
		return false
	}
	c.lastErr = err
	c.state = StateFailed
	return true
}

func (c *Coordinator) showsNothing(tag generation) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return tag.view == c.viewSeq && len(c.events) == 0
}

func (c *Coordinator) notify(ctx context.Context, level core.NotificationLevel, message string, category core.Category) {
	c.notifier.Notify(ctx, core.Notification{
		Level:    level,
		Message:  message,
		Category: category,
		At:       c.now(),
	})
}

func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	snapshot := Snapshot{
		Category:   c.category,
		Filter:     c.filter,
		Events:     core.CloneEvents(c.events),
		State:      c.state,
		LastRead:   c.lastRead,
		Loading:    c.state == StateLoading,
		Submitting: c.submitting,
	}
	if c.lastErr != nil {
		snapshot.LastError = c.lastErr.Error()
	}
	return snapshot
}

// resubscribe replaces the polling subscription with one for the current
// view. The previous subscription is cancelled first.
func (c *Coordinator) resubscribe() {
	c.pollMu.Lock()
	defer c.pollMu.Unlock()
	if !c.polling {
		return
	}
	c.mu.Lock()
	runCtx := c.runCtx
	key := fmt.Sprintf("%s|%s", c.category, c.filter.String())
	c.mu.Unlock()
	if c.stopPoll != nil {
		c.stopPoll()
	}
	c.stopPoll = c.poller.Subscribe(key, func() {
		c.Poll(runCtx)
	})
}
