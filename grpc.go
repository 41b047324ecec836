package sentryadapter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	middleware "github.com/grpc-ecosystem/go-grpc-middleware/v2"
	grpc_logging "github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	"google.golang.org/grpc"
)

// DefaultGRPCChannel is the channel reported for records logged by the gRPC
// interceptors.
const DefaultGRPCChannel = "grpc"

// Logger implements go-grpc-middleware's logging.Logger on top of an Adapter.
// Interceptors created from the same Logger share its lock, so one Logger can
// serve every interceptor of a server or client.
type Logger struct {
	mu       sync.Mutex
	adapter  *Adapter
	channel  string
	mapLevel func(grpc_logging.Level) slog.Level
}

type loggerConfig struct {
	channel     string
	levelMapper func(grpc_logging.Level) slog.Level
}

// LoggerOption customizes Logger construction.
type LoggerOption func(*loggerConfig)

// NewLogger creates a go-grpc-middleware logger that reports through adapter.
//
// Example:
//
//	logger := sentryadapter.NewLogger(adapter)
//	server := grpc.NewServer(
//		grpc.ChainUnaryInterceptor(logger.UnaryServerInterceptor()),
//		grpc.ChainStreamInterceptor(logger.StreamServerInterceptor()),
//	)
func NewLogger(adapter *Adapter, opts ...LoggerOption) *Logger {
	cfg := loggerConfig{
		channel:     DefaultGRPCChannel,
		levelMapper: defaultGRPCLevelMapper,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	if cfg.levelMapper == nil {
		cfg.levelMapper = defaultGRPCLevelMapper
	}

	return &Logger{
		adapter:  adapter,
		channel:  cfg.channel,
		mapLevel: cfg.levelMapper,
	}
}

// WithGRPCChannel overrides the channel reported for gRPC records.
func WithGRPCChannel(name string) LoggerOption {
	return func(cfg *loggerConfig) {
		if name != "" {
			cfg.channel = name
		}
	}
}

// WithGRPCLevelMapper customizes how go-grpc-middleware logging levels map to slog levels.
func WithGRPCLevelMapper(mapper func(grpc_logging.Level) slog.Level) LoggerOption {
	return func(cfg *loggerConfig) {
		if mapper != nil {
			cfg.levelMapper = mapper
		}
	}
}

// Log satisfies the go-grpc-middleware logging.Logger interface. Inside a call
// wrapped by one of the Logger's interceptors the record joins the call's
// batch; otherwise it is captured right away.
func (l *Logger) Log(ctx context.Context, level grpc_logging.Level, msg string, fields ...any) {
	if l == nil || l.adapter == nil {
		return
	}
	rec := Record{
		Time:    time.Now(),
		Channel: l.channel,
		Level:   l.mapLevel(level),
		Message: msg,
		Context: buildContext(fields),
	}

	if b := batchFromContext(ctx); b != nil {
		b.add(rec)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	_ = l.adapter.Submit(ctx, rec)
}

// submit captures the records collected for one call.
func (l *Logger) submit(ctx context.Context, b *callBatch) {
	records := b.drain()
	if len(records) == 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	_ = l.adapter.SubmitBatch(context.WithoutCancel(ctx), records)
}

// UnaryServerInterceptor logs each call with go-grpc-middleware and captures
// the call's records as one Sentry event when the handler returns.
func (l *Logger) UnaryServerInterceptor(opts ...grpc_logging.Option) grpc.UnaryServerInterceptor {
	inner := grpc_logging.UnaryServerInterceptor(l, opts...)
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx, b := withCallBatch(ctx)
		defer l.submit(ctx, b)
		return inner(ctx, req, info, handler)
	}
}

// StreamServerInterceptor is the streaming counterpart of UnaryServerInterceptor.
func (l *Logger) StreamServerInterceptor(opts ...grpc_logging.Option) grpc.StreamServerInterceptor {
	inner := grpc_logging.StreamServerInterceptor(l, opts...)
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx, b := withCallBatch(ss.Context())
		defer l.submit(ctx, b)
		wrapped := middleware.WrapServerStream(ss)
		wrapped.WrappedContext = ctx
		return inner(srv, wrapped, info, handler)
	}
}

// UnaryClientInterceptor captures each outgoing call's records as one event.
func (l *Logger) UnaryClientInterceptor(opts ...grpc_logging.Option) grpc.UnaryClientInterceptor {
	inner := grpc_logging.UnaryClientInterceptor(l, opts...)
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, callOpts ...grpc.CallOption) error {
		ctx, b := withCallBatch(ctx)
		defer l.submit(ctx, b)
		return inner(ctx, method, req, reply, cc, invoker, callOpts...)
	}
}

// StreamClientInterceptor captures client stream records as they are logged;
// client streams have no single point where a batch could be closed.
func (l *Logger) StreamClientInterceptor(opts ...grpc_logging.Option) grpc.StreamClientInterceptor {
	return grpc_logging.StreamClientInterceptor(l, opts...)
}

// UnaryServerInterceptor returns a grpc.UnaryServerInterceptor that reports to Sentry.
//
// Example:
//
//	server := grpc.NewServer(
//		grpc.ChainUnaryInterceptor(sentryadapter.UnaryServerInterceptor(adapter)),
//	)
func UnaryServerInterceptor(adapter *Adapter, opts ...grpc_logging.Option) grpc.UnaryServerInterceptor {
	return NewLogger(adapter).UnaryServerInterceptor(opts...)
}

// StreamServerInterceptor returns a grpc.StreamServerInterceptor that reports to Sentry.
func StreamServerInterceptor(adapter *Adapter, opts ...grpc_logging.Option) grpc.StreamServerInterceptor {
	return NewLogger(adapter).StreamServerInterceptor(opts...)
}

// UnaryClientInterceptor returns a grpc.UnaryClientInterceptor that reports to Sentry.
func UnaryClientInterceptor(adapter *Adapter, opts ...grpc_logging.Option) grpc.UnaryClientInterceptor {
	return NewLogger(adapter).UnaryClientInterceptor(opts...)
}

// StreamClientInterceptor returns a grpc.StreamClientInterceptor that reports to Sentry.
func StreamClientInterceptor(adapter *Adapter, opts ...grpc_logging.Option) grpc.StreamClientInterceptor {
	return NewLogger(adapter).StreamClientInterceptor(opts...)
}

// defaultGRPCLevelMapper converts go-grpc-middleware levels into slog levels.
func defaultGRPCLevelMapper(level grpc_logging.Level) slog.Level {
	switch level {
	case grpc_logging.LevelDebug:
		return slog.LevelDebug
	case grpc_logging.LevelInfo:
		return slog.LevelInfo
	case grpc_logging.LevelWarn:
		return slog.LevelWarn
	case grpc_logging.LevelError:
		return slog.LevelError
	default:
		return slog.LevelError
	}
}

// buildContext pairs go-grpc-middleware fields into record context. A trailing
// key gets a nil value and slog.LogValuer values are resolved, so request
// types can control what reaches Sentry.
func buildContext(fields []any) map[string]any {
	if len(fields) == 0 {
		return nil
	}

	out := make(map[string]any, (len(fields)+1)/2)
	for i := 0; i < len(fields); i += 2 {
		var val any
		if i+1 < len(fields) {
			val = fields[i+1]
		}
		if lv, ok := val.(slog.LogValuer); ok {
			val = slog.AnyValue(lv).Resolve().Any()
		}
		out[fmt.Sprint(fields[i])] = val
	}
	return out
}

type callBatchKey struct{}

// callBatch collects the records logged during one RPC. Streams may log from
// several goroutines, hence the lock.
type callBatch struct {
	mu      sync.Mutex
	records []Record
}

func withCallBatch(ctx context.Context) (context.Context, *callBatch) {
	b := &callBatch{}
	return context.WithValue(ctx, callBatchKey{}, b), b
}

func batchFromContext(ctx context.Context) *callBatch {
	if ctx == nil {
		return nil
	}
	b, _ := ctx.Value(callBatchKey{}).(*callBatch)
	return b
}

func (b *callBatch) add(r Record) {
	b.mu.Lock()
	b.records = append(b.records, r)
	b.mu.Unlock()
}

func (b *callBatch) drain() []Record {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.records
	b.records = nil
	return out
}
