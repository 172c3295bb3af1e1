package telemetry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const (
	// EnvExporter selects the exporter: none, stdout, otlp-grpc or otlp-http.
	EnvExporter = "SHAPECHANGE_OTEL_EXPORTER"
	// EnvInstanceID overrides the host name as the source of the instance id.
	EnvInstanceID = "SHAPECHANGE_INSTANCE_ID"

	serviceName = "shapechange"
)

// ShutdownTimeout bounds how long exporters may flush on exit.
const ShutdownTimeout = 5 * time.Second

var (
	stdoutTracerFactory = func(w io.Writer) (sdktrace.SpanExporter, error) {
		return stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	}
	stdoutMeterFactory = func(w io.Writer) (sdkmetric.Exporter, error) {
		return stdoutmetric.New(stdoutmetric.WithWriter(w))
	}
	otlpGRPCFactory = func(ctx context.Context) (sdktrace.SpanExporter, error) {
		return otlptrace.New(ctx, otlptracegrpc.NewClient())
	}
	otlpHTTPFactory = func(ctx context.Context) (sdktrace.SpanExporter, error) {
		return otlptrace.New(ctx, otlptracehttp.NewClient())
	}
)

// Options selects and describes the telemetry exporter.
type Options struct {
	Exporter   string
	Version    string
	InstanceID string
	// Output receives stdout exporter data. Defaults to os.Stderr so that
	// spans never mix with command output.
	Output io.Writer
}

// OptionsFromEnv reads the exporter selection and instance id from the environment.
func OptionsFromEnv(version string) Options {
	return Options{
		Exporter:   os.Getenv(EnvExporter),
		Version:    version,
		InstanceID: os.Getenv(EnvInstanceID),
	}
}

// InitProvider configures global OpenTelemetry providers. Unknown exporter
// names leave the no-op providers in place.
func InitProvider(ctx context.Context, opts Options) (func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	switch strings.ToLower(strings.TrimSpace(opts.Exporter)) {
	case "", "none":
		return noop, nil
	case "stdout":
		tracer, err := stdoutTracerFactory(out)
		if err != nil {
			return nil, fmt.Errorf("stdout trace exporter: %w", err)
		}
		meter, err := stdoutMeterFactory(out)
		if err != nil {
			return nil, fmt.Errorf("stdout metric exporter: %w", err)
		}
		return installProvider(ctx, opts, tracer, meter)
	case "otlp-grpc":
		tracer, err := otlpGRPCFactory(ctx)
		if err != nil {
			return nil, fmt.Errorf("otlp grpc exporter: %w", err)
		}
		return installProvider(ctx, opts, tracer, nil)
	case "otlp-http":
		tracer, err := otlpHTTPFactory(ctx)
		if err != nil {
			return nil, fmt.Errorf("otlp http exporter: %w", err)
		}
		return installProvider(ctx, opts, tracer, nil)
	default:
		return noop, nil
	}
}

func installProvider(ctx context.Context, opts Options, tracer sdktrace.SpanExporter, meter sdkmetric.Exporter) (func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(versionOrDev(opts.Version)),
			semconv.ServiceInstanceIDKey.String(hashInstanceID(opts.InstanceID)),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(tracer),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	var mp *sdkmetric.MeterProvider
	if meter != nil {
		mp = sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(meter)),
			sdkmetric.WithResource(res),
		)
		otel.SetMeterProvider(mp)
	}

	return func(ctx context.Context) error {
		if mp != nil {
			if err := mp.Shutdown(ctx); err != nil {
				return err
			}
		}
		return tp.Shutdown(ctx)
	}, nil
}

func versionOrDev(v string) string {
	if strings.TrimSpace(v) == "" {
		return "dev"
	}
	return v
}

// hashInstanceID hashes the configured id, or the host name, so that no host
// identity leaves the machine in clear text.
func hashInstanceID(input string) string {
	if input == "" {
		if host, err := os.Hostname(); err == nil {
			input = host
		}
	}
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}
