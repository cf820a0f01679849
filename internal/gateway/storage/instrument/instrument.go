// Package instrument decorates a repo.Backend with latency metrics, CAS
// outcome counters and one OpenTelemetry span per call.
package instrument

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-arcade/modelgate/internal/gateway/model"
	"github.com/go-arcade/modelgate/internal/gateway/repo"
	"github.com/go-arcade/modelgate/pkg/metrics"
)

const tracerName = "github.com/go-arcade/modelgate/internal/gateway/storage"

// Backend wraps another backend. Lifecycle calls pass through untraced.
type Backend struct {
	next    repo.Backend
	metrics *metrics.Registry
	tracer  trace.Tracer
}

var _ repo.Backend = (*Backend)(nil)

// Wrap uses the global tracer provider, so tracing follows whatever the
// process installed at startup.
func Wrap(next repo.Backend, reg *metrics.Registry) *Backend {
	return &Backend{next: next, metrics: reg, tracer: otel.Tracer(tracerName)}
}

// Unwrap returns the decorated backend.
func (b *Backend) Unwrap() repo.Backend { return b.next }

func (b *Backend) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	provider := b.next.Provider()
	attrs = append(attrs, attribute.String("db.system", provider))
	ctx, span := b.tracer.Start(ctx, "repo."+op, trace.WithAttributes(attrs...), trace.WithSpanKind(trace.SpanKindClient))
	began := time.Now()
	return ctx, func(err error) {
		b.metrics.ObserveOp(provider, op, time.Since(began))
		if err != nil && !errors.Is(err, repo.ErrNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

func scopeAttrs(scope model.ProjectScope) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("modelgate.tenant_id", scope.TenantID),
		attribute.String("modelgate.project_id", scope.ProjectID),
	}
}

func workspaceAttr(id string) attribute.KeyValue {
	return attribute.String("modelgate.workspace_id", id)
}

func accountAttr(id string) attribute.KeyValue {
	return attribute.String("modelgate.account_id", id)
}

func (b *Backend) Provider() string { return b.next.Provider() }

func (b *Backend) Ping(ctx context.Context) error { return b.next.Ping(ctx) }

func (b *Backend) Migrate(ctx context.Context) ([]string, error) { return b.next.Migrate(ctx) }

func (b *Backend) Close() error { return b.next.Close() }

func (b *Backend) Find(ctx context.Context, scope model.ProjectScope) (_ *model.ProjectRecord, err error) {
	ctx, done := b.start(ctx, "Find", scopeAttrs(scope)...)
	defer func() { done(err) }()
	return b.next.Find(ctx, scope)
}

func (b *Backend) ListByScopePrefix(ctx context.Context, scope model.ProjectScope) (_ []model.ProjectRecord, err error) {
	ctx, done := b.start(ctx, "ListByScopePrefix", scopeAttrs(scope)...)
	defer func() { done(err) }()
	return b.next.ListByScopePrefix(ctx, scope)
}

func (b *Backend) Save(ctx context.Context, record model.ProjectRecord) (err error) {
	ctx, done := b.start(ctx, "Save", scopeAttrs(record.Scope)...)
	defer func() { done(err) }()
	return b.next.Save(ctx, record)
}

func (b *Backend) SaveIfRevision(ctx context.Context, record model.ProjectRecord, expected *string) (ok bool, err error) {
	ctx, done := b.start(ctx, "SaveIfRevision", append(scopeAttrs(record.Scope),
		attribute.Bool("modelgate.create", expected == nil))...)
	defer func() {
		b.metrics.ObserveCAS(b.next.Provider(), ok, err)
		trace.SpanFromContext(ctx).SetAttributes(attribute.Bool("modelgate.cas_won", ok))
		done(err)
	}()
	return b.next.SaveIfRevision(ctx, record, expected)
}

func (b *Backend) Remove(ctx context.Context, scope model.ProjectScope) (err error) {
	ctx, done := b.start(ctx, "Remove", scopeAttrs(scope)...)
	defer func() { done(err) }()
	return b.next.Remove(ctx, scope)
}
