package observability

import (
	"context"
	"os"
	"sync"

	"github.com/bkohler93/match-engine/internal/shared/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/bkohler93/match-engine"

var (
	otelOnce     sync.Once
	otelShutdown = func(context.Context) error { return nil }
)

// InitTracing installs a tracer provider writing spans to stdout. When disabled the global
// no-op provider stays in place. The returned func flushes on shutdown.
func InitTracing(ctx context.Context, log *logger.Logger, serviceName string, enabled bool) func(context.Context) error {
	otelOnce.Do(func() {
		if !enabled {
			return
		}
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(os.Stdout))
		if err != nil {
			log.Warn("otel exporter init failed (continuing)", "error", err)
			return
		}
		res, err := resource.New(ctx, resource.WithAttributes(
			attribute.String("service.name", serviceName),
		))
		if err != nil {
			log.Warn("otel resource init failed (continuing)", "error", err)
		}
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
		)
		otel.SetTracerProvider(tp)
		otelShutdown = tp.Shutdown
		log.Info("otel tracing initialized", "service", serviceName)
	})
	return otelShutdown
}

func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}
