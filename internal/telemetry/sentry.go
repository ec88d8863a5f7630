// Package telemetry wraps Sentry tracing and event capture for claimd.
package telemetry

import (
	"context"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"
)

const serverName = "claimd"

// quietRoutes are polled by load balancers and scrapers and never traced.
var quietRoutes = []string{"/health", "/metrics"}

type Config struct {
	DSN         string
	Environment string
	Release     string
	// SampleRate is the fraction of root transactions kept. Zero keeps all.
	SampleRate float64
	Debug      bool
	Logger     *zap.Logger
}

// Init configures the global Sentry client and returns a flush function.
// Without a DSN, or when the client cannot be created, it returns a no-op
// flush and the service runs untraced.
func Init(cfg Config) (func(), error) {
	noop := func() {}
	if cfg.DSN == "" {
		return noop, nil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("telemetry")

	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.SampleRate <= 0 || cfg.SampleRate > 1 {
		cfg.SampleRate = 1.0
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:           cfg.DSN,
		Environment:   cfg.Environment,
		Release:       cfg.Release,
		EnableTracing: true,
		Debug:         cfg.Debug,
		ServerName:    serverName,
		TracesSampler: func(sc sentry.SamplingContext) float64 {
			return sampleRate(sc.Span, cfg.SampleRate)
		},
	})
	if err != nil {
		logger.Warn("sentry unavailable, continuing without tracing", zap.Error(err))
		return noop, nil
	}

	logger.Info("sentry initialized",
		zap.String("environment", cfg.Environment),
		zap.Float64("sample_rate", cfg.SampleRate))
	return func() { sentry.Flush(5 * time.Second) }, nil
}

// sampleRate keeps child spans consistent with their parent and drops
// transactions for quiet routes.
func sampleRate(span *sentry.Span, base float64) float64 {
	if span == nil {
		return base
	}
	var root sentry.SpanID
	if span.ParentSpanID != root {
		if span.Sampled.Bool() {
			return 1.0
		}
		return 0.0
	}
	for _, route := range quietRoutes {
		if strings.HasSuffix(span.Name, " "+route) {
			return 0.0
		}
	}
	return base
}

// Fields tag a span with the caller and the ticket it concerns.
type Fields struct {
	UserID     string
	Role       string
	TicketID   string
	Collection string
	Operation  string
}

func (f Fields) apply(span *sentry.Span) {
	tags := map[string]string{
		"user_id":    f.UserID,
		"role":       f.Role,
		"ticket_id":  f.TicketID,
		"collection": f.Collection,
	}
	for k, v := range tags {
		if v != "" {
			span.SetTag(k, v)
		}
	}
	if f.Operation != "" {
		span.SetData("operation", f.Operation)
	}
}

// Span is a started Sentry span. A nil *Span is valid and does nothing.
type Span struct {
	inner *sentry.Span
}

// StartSpan starts a child of the span in ctx, or a new transaction when
// ctx carries none.
func StartSpan(ctx context.Context, name string, f Fields) (context.Context, *Span) {
	var span *sentry.Span
	if parent := sentry.SpanFromContext(ctx); parent != nil {
		span = parent.StartChild(name)
	} else {
		span = sentry.StartSpan(ctx, name, sentry.WithTransactionName(name))
	}
	f.apply(span)
	return span.Context(), &Span{inner: span}
}

func (s *Span) End() {
	if s != nil && s.inner != nil {
		s.inner.Finish()
	}
}

// Record attaches a measurement such as a result count to the span.
func (s *Span) Record(key string, value any) {
	if s != nil && s.inner != nil {
		s.inner.SetData(key, value)
	}
}

// Fail marks the span as errored and reports err on the span's hub.
func (s *Span) Fail(err error) {
	if s == nil || s.inner == nil || err == nil {
		return
	}
	s.inner.Status = sentry.SpanStatusInternalError
	CaptureError(s.inner.Context(), err)
}

func hubFrom(ctx context.Context) *sentry.Hub {
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		return hub
	}
	return sentry.CurrentHub()
}

// CaptureError reports err on the request hub when there is one.
func CaptureError(ctx context.Context, err error) {
	hubFrom(ctx).CaptureException(err)
}

// CaptureAuditViolation reports result rows that passed the vector store's
// tenant filter but failed the in-process access audit. It is always sent at
// error level since it means the pre-filter is broken.
func CaptureAuditViolation(ctx context.Context, role string, rejected int) {
	hub := hubFrom(ctx)
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentry.LevelError)
		scope.SetTag("role", role)
		scope.SetTag("defect", "tenant_prefilter")
		scope.SetExtra("rejected", rejected)
		hub.CaptureMessage("access audit rejected pre-filtered results")
	})
}
