package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gitlab.com/yelinaung/split-ledger/internal/cache"
	"gitlab.com/yelinaung/split-ledger/internal/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "gitlab.com/yelinaung/split-ledger/internal/ledger"

// Service exposes the ledger operations. Every mutating call takes the id of
// the user making the request; the service authorizes but never authenticates.
type Service struct {
	store         Store
	cache         *cache.Cache
	notifier      Notifier
	notifyTimeout time.Duration
	locks         *keyedMutex

	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	tracer         trace.Tracer
	mutations      metric.Int64Counter
	splitChanges   metric.Int64Counter
	failures       metric.Int64Counter

	notifications sync.WaitGroup
}

// Option configures a Service.
type Option func(*Service)

// WithCache sets the read-through cache. The default keeps entries for five minutes.
func WithCache(c *cache.Cache) Option {
	return func(s *Service) { s.cache = c }
}

// WithNotifier sets the collaborator used for invitations.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithNotifyTimeout bounds each background notification.
func WithNotifyTimeout(d time.Duration) Option {
	return func(s *Service) { s.notifyTimeout = d }
}

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) { s.tracerProvider = tp }
}

// WithMeterProvider overrides the global meter provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Service) { s.meterProvider = mp }
}

// NewService creates a Service backed by store.
func NewService(store Store, opts ...Option) (*Service, error) {
	s := &Service{
		store:         store,
		notifyTimeout: 5 * time.Second,
		locks:         newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cache == nil {
		s.cache = cache.New(5 * time.Minute)
	}
	if s.tracerProvider == nil {
		s.tracerProvider = otel.GetTracerProvider()
	}
	if s.meterProvider == nil {
		s.meterProvider = otel.GetMeterProvider()
	}

	s.tracer = s.tracerProvider.Tracer(instrumentationName)
	meter := s.meterProvider.Meter(instrumentationName)

	var err error
	s.mutations, err = meter.Int64Counter("ledger.mutations",
		metric.WithDescription("Committed ledger writes by operation"))
	if err != nil {
		return nil, fmt.Errorf("failed to create mutations counter: %w", err)
	}
	s.splitChanges, err = meter.Int64Counter("ledger.split.changes",
		metric.WithDescription("Split rows created, updated or deleted by reconciliation"))
	if err != nil {
		return nil, fmt.Errorf("failed to create split changes counter: %w", err)
	}
	s.failures, err = meter.Int64Counter("ledger.failures",
		metric.WithDescription("Failed ledger operations by error kind"))
	if err != nil {
		return nil, fmt.Errorf("failed to create failures counter: %w", err)
	}
	return s, nil
}

// Wait blocks until background notifications have finished.
func (s *Service) Wait() {
	s.notifications.Wait()
}

func (s *Service) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "ledger."+op, trace.WithAttributes(attrs...))
}

// end closes span and records err, if any, on the span and the failures counter.
func (s *Service) end(ctx context.Context, span trace.Span, op string, err error) {
	defer span.End()
	if err == nil {
		span.SetStatus(codes.Ok, "")
		return
	}
	kind := Kind(err)
	if kind == "" {
		kind = "Internal"
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, kind)
	s.failures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("kind", kind),
	))
}

func (s *Service) committed(ctx context.Context, op string) {
	s.mutations.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", op)))
}

func (s *Service) recordPlan(ctx context.Context, p Plan) {
	for action, n := range map[string]int{"create": len(p.Create), "update": len(p.Update), "delete": len(p.Delete)} {
		if n > 0 {
			s.splitChanges.Add(ctx, int64(n), metric.WithAttributes(attribute.String("action", action)))
		}
	}
}

// inTx runs fn as one unit of work per lock key, in process and in the store.
func (s *Service) inTx(ctx context.Context, lockKey string, fn func(ctx context.Context, tx Tx) error) error {
	unlock := s.locks.Lock(lockKey)
	defer unlock()
	return storeErr(s.store.InTx(ctx, lockKey, fn))
}

// notify runs fn in the background. Failures are logged and dropped.
func (s *Service) notify(ctx context.Context, op string, fn func(ctx context.Context, n Notifier) error) {
	if s.notifier == nil {
		return
	}
	s.notifications.Add(1)
	go func() {
		defer s.notifications.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
		defer cancel()
		if err := fn(ctx, s.notifier); err != nil {
			logger.Log.Warn().Err(err).Str("notification", op).Msg("Failed to send notification")
		}
	}()
}

func expenseLockKey(id string) string { return "expense:" + id }
func groupLockKey(id string) string { return "group:" + id }
func userLockKey(id string) string { return "user:" + id }
func emailLockKey(email string) string {
	return "email:" + normalizeEmail(email)
}
