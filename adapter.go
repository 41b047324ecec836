package sentryadapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"
	"golang.org/x/time/rate"
)

// Extra keys set on every captured event.
const (
	ExtraFormatted = "log.formatted"
	ExtraChannel   = "log.channel"
	ExtraLevel     = "log.level"
)

const (
	defaultFlushTimeout   = 2 * time.Second
	defaultMaxBreadcrumbs = 100
	notAvailable          = "N/A"
)

var (
	// ErrBatchInProgress is returned when SubmitBatch is re-entered on an
	// adapter that is still capturing a previous batch.
	ErrBatchInProgress = errors.New("sentryadapter: batch already in progress")
	// ErrFlushTimeout is returned by FlushAction when the hub did not drain in time.
	ErrFlushTimeout = errors.New("sentryadapter: flush did not complete")
)

// Hub is the subset of *sentry.Hub used by the adapter.
type Hub interface {
	WithScope(f func(scope *sentry.Scope))
	CaptureEvent(event *sentry.Event) *sentry.EventID
	Flush(timeout time.Duration) bool
}

// ScopeDecorator runs inside the capture scope right before the event is
// submitted. It may add tags, contexts or extras to scope.
type ScopeDecorator func(ctx context.Context, scope *sentry.Scope, record Record, event *sentry.Event)

// PostCaptureAction runs after the capture scope is released.
type PostCaptureAction func(ctx context.Context, hub Hub) error

// DropReason explains why a batch produced no event.
type DropReason string

const (
	DropBelowLevel  DropReason = "below_level"
	DropRateLimited DropReason = "rate_limited"
)

// Observer receives adapter outcomes. Implementations must be cheap and must
// not log through a handler bound to the same adapter.
type Observer interface {
	BatchDropped(reason DropReason)
	EventCaptured(level sentry.Level, breadcrumbs int)
	Flushed(err error)
}

// Adapter turns batches of log records into Sentry events with breadcrumbs.
//
// An Adapter is not safe for concurrent use; callers serialize access or use
// one Adapter per goroutine. Handler and Logger do this for you.
type Adapter struct {
	hub            Hub
	minLevel       slog.Leveler
	sendContext    bool
	formatter      Formatter
	mapLevel       func(slog.Level) sentry.Level
	decorate       ScopeDecorator
	afterCapture   PostCaptureAction
	maxBreadcrumbs int
	exceptionKey   string
	observer       Observer
	limiter        *rate.Limiter

	breadcrumbs []*sentry.Breadcrumb
	busy        atomic.Bool
}

type adapterConfig struct {
	minLevel       slog.Leveler
	sendContext    bool
	formatter      Formatter
	levelMapper    func(slog.Level) sentry.Level
	decorator      ScopeDecorator
	afterCapture   PostCaptureAction
	flushTimeout   time.Duration
	maxBreadcrumbs int
	exceptionKey   string
	observer       Observer
	limiter        *rate.Limiter
}

// Option customizes adapter construction.
type Option func(*adapterConfig)

// New creates an adapter that captures through hub. When hub is nil the
// current global hub is used; until sentry.Init binds a client to it, events
// are discarded and the default flush reports success.
//
// Example:
//
//	adapter := sentryadapter.New(sentry.CurrentHub(),
//		sentryadapter.WithMinLevel(sentryadapter.LevelWarning),
//	)
//	logger := slog.New(sentryadapter.NewHandler(adapter))
func New(hub Hub, opts ...Option) *Adapter {
	cfg := adapterConfig{
		minLevel:       LevelDebug,
		sendContext:    true,
		levelMapper:    defaultLevelMapper,
		flushTimeout:   defaultFlushTimeout,
		maxBreadcrumbs: defaultMaxBreadcrumbs,
		exceptionKey:   DefaultExceptionKey,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	if hub == nil {
		hub = sentry.CurrentHub()
	}
	if cfg.formatter == nil {
		cfg.formatter = LineFormatter{Pattern: DefaultLinePattern}
	}
	if cfg.levelMapper == nil {
		cfg.levelMapper = defaultLevelMapper
	}
	if cfg.afterCapture == nil {
		cfg.afterCapture = FlushAction(cfg.flushTimeout)
	}
	if cfg.maxBreadcrumbs <= 0 {
		cfg.maxBreadcrumbs = defaultMaxBreadcrumbs
	}

	return &Adapter{
		hub:            hub,
		minLevel:       cfg.minLevel,
		sendContext:    cfg.sendContext,
		formatter:      cfg.formatter,
		mapLevel:       cfg.levelMapper,
		decorate:       cfg.decorator,
		afterCapture:   cfg.afterCapture,
		maxBreadcrumbs: cfg.maxBreadcrumbs,
		exceptionKey:   cfg.exceptionKey,
		observer:       cfg.observer,
		limiter:        cfg.limiter,
	}
}

// WithMinLevel sets the lowest level that reaches Sentry. Pass a *slog.LevelVar
// to change it at runtime.
func WithMinLevel(level slog.Leveler) Option {
	return func(cfg *adapterConfig) {
		if level != nil {
			cfg.minLevel = level
		}
	}
}

// WithSendContext controls whether the primary record's context is copied
// into the event extras. It defaults to true.
func WithSendContext(send bool) Option {
	return func(cfg *adapterConfig) {
		cfg.sendContext = send
	}
}

// WithFormatter sets the formatter used for the log.formatted extra.
func WithFormatter(f Formatter) Option {
	return func(cfg *adapterConfig) {
		if f != nil {
			cfg.formatter = f
		}
	}
}

// WithLevelMapper customizes how slog levels map to Sentry levels for both
// the event and its breadcrumbs.
func WithLevelMapper(mapper func(slog.Level) sentry.Level) Option {
	return func(cfg *adapterConfig) {
		if mapper != nil {
			cfg.levelMapper = mapper
		}
	}
}

// WithScopeDecorator installs a hook that runs inside the capture scope.
func WithScopeDecorator(d ScopeDecorator) Option {
	return func(cfg *adapterConfig) {
		cfg.decorator = d
	}
}

// WithPostCaptureAction replaces the default flush that follows each capture.
func WithPostCaptureAction(action PostCaptureAction) Option {
	return func(cfg *adapterConfig) {
		if action != nil {
			cfg.afterCapture = action
		}
	}
}

// WithFlushTimeout sets the timeout of the default post-capture flush.
func WithFlushTimeout(timeout time.Duration) Option {
	return func(cfg *adapterConfig) {
		if timeout > 0 {
			cfg.flushTimeout = timeout
		}
	}
}

// WithMaxBreadcrumbs bounds the breadcrumbs attached to one event. Older
// breadcrumbs are dropped first.
func WithMaxBreadcrumbs(n int) Option {
	return func(cfg *adapterConfig) {
		cfg.maxBreadcrumbs = n
	}
}

// WithExceptionKey changes the context key inspected for an attached error.
func WithExceptionKey(key string) Option {
	return func(cfg *adapterConfig) {
		if key != "" {
			cfg.exceptionKey = key
		}
	}
}

// WithObserver reports batch outcomes to o.
func WithObserver(o Observer) Option {
	return func(cfg *adapterConfig) {
		cfg.observer = o
	}
}

// WithRateLimit drops batches the limiter does not allow. Dropped batches make
// no hub calls.
func WithRateLimit(limiter *rate.Limiter) Option {
	return func(cfg *adapterConfig) {
		cfg.limiter = limiter
	}
}

// FlushAction returns a PostCaptureAction that flushes the hub, waiting at most
// timeout or until ctx is done, whichever comes first. A *sentry.Hub without a
// client has nothing queued and counts as flushed.
func FlushAction(timeout time.Duration) PostCaptureAction {
	return func(ctx context.Context, hub Hub) error {
		if h, ok := hub.(interface{ Client() *sentry.Client }); ok && h.Client() == nil {
			return nil
		}
		wait := timeout
		if deadline, ok := ctx.Deadline(); ok {
			if left := time.Until(deadline); left < wait {
				wait = left
			}
		}
		if wait < 0 {
			wait = 0
		}
		if !hub.Flush(wait) {
			return fmt.Errorf("%w within %s", ErrFlushTimeout, wait)
		}
		return nil
	}
}

// NoFlush is a PostCaptureAction that leaves delivery to the hub's transport.
func NoFlush(context.Context, Hub) error { return nil }

// Enabled reports whether records at level pass the minimum level.
func (a *Adapter) Enabled(level slog.Level) bool {
	if a == nil {
		return false
	}
	return level >= a.minLevel.Level()
}

// Submit captures a single record. It is equivalent to SubmitBatch with one
// record.
func (a *Adapter) Submit(ctx context.Context, record Record) error {
	return a.SubmitBatch(ctx, []Record{record})
}

// SubmitBatch captures one Sentry event for records. The most severe record
// becomes the event (the earliest wins on ties) and every record at or above
// the minimum level becomes a breadcrumb, in order. Batches with nothing at or
// above the minimum level make no hub calls.
func (a *Adapter) SubmitBatch(ctx context.Context, records []Record) error {
	if a == nil || a.hub == nil {
		return nil
	}

	threshold := a.minLevel.Level()
	kept := make([]Record, 0, len(records))
	for _, r := range records {
		if r.Level >= threshold {
			kept = append(kept, r)
		}
	}
	if len(kept) == 0 {
		if len(records) > 0 {
			a.dropped(DropBelowLevel)
		}
		return nil
	}

	if !a.busy.CompareAndSwap(false, true) {
		return ErrBatchInProgress
	}
	defer a.busy.Store(false)

	if a.limiter != nil && !a.limiter.Allow() {
		a.dropped(DropRateLimited)
		return nil
	}

	defer func() { a.breadcrumbs = nil }()

	primary := kept[0]
	for _, r := range kept[1:] {
		if r.Level > primary.Level {
			primary = r
		}
	}

	for _, r := range kept {
		a.breadcrumbs = append(a.breadcrumbs, a.breadcrumb(r))
	}

	event := a.event(primary)
	level := event.Level

	a.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(level)
		scope.SetExtra(ExtraFormatted, a.formatter.Format(primary))
		scope.SetExtra(ExtraChannel, primary.Channel)
		scope.SetExtra(ExtraLevel, LevelName(primary.Level))
		if a.sendContext {
			for k, v := range primary.Context {
				if s, ok := scalar(v); ok {
					scope.SetExtra(k, s)
				}
			}
		}
		for _, b := range a.breadcrumbs {
			scope.AddBreadcrumb(b, a.maxBreadcrumbs)
		}
		if a.decorate != nil {
			a.decorate(ctx, scope, primary, event)
		}
		a.hub.CaptureEvent(event)
	})

	if a.observer != nil {
		a.observer.EventCaptured(level, len(a.breadcrumbs))
	}

	err := a.afterCapture(ctx, a.hub)
	if a.observer != nil {
		a.observer.Flushed(err)
	}
	return err
}

func (a *Adapter) dropped(reason DropReason) {
	if a.observer != nil {
		a.observer.BatchDropped(reason)
	}
}

// breadcrumb renders r for the breadcrumb trail.
func (a *Adapter) breadcrumb(r Record) *sentry.Breadcrumb {
	category := r.Channel
	if category == "" {
		category = notAvailable
	}
	message := r.Message
	if message == "" {
		message = notAvailable
	}
	return &sentry.Breadcrumb{
		Type:      breadcrumbType(r.Level),
		Category:  category,
		Message:   message,
		Data:      r.scalarData(),
		Level:     a.mapLevel(r.Level),
		Timestamp: r.Time,
	}
}

// event builds the Sentry event for the primary record.
func (a *Adapter) event(r Record) *sentry.Event {
	event := sentry.NewEvent()
	event.Level = a.mapLevel(r.Level)
	event.Message = LineFormatter{Pattern: eventMessagePattern}.Format(r)
	event.Logger = r.Channel
	if !r.Time.IsZero() {
		event.Timestamp = r.Time
	}

	if err := r.errorAt(a.exceptionKey); err != nil {
		event.Exception = []sentry.Exception{{
			Type:       reflect.TypeOf(err).String(),
			Value:      err.Error(),
			Stacktrace: sentry.ExtractStacktrace(err),
		}}
	}
	return event
}
