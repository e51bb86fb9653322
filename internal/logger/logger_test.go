package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestParseEnv(t *testing.T) {
	cases := map[string]Env{
		"":            EnvDev,
		"dev":         EnvDev,
		"Staging":     EnvStage,
		" preprod ":   EnvStage,
		"production":  EnvProd,
		"prod":        EnvProd,
		"unknown-env": EnvDev,
	}
	for raw, want := range cases {
		if got := ParseEnv(raw); got != want {
			t.Fatalf("ParseEnv(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestDetectEnv(t *testing.T) {
	t.Setenv("APP_ENV", "")
	if got := DetectEnv(); got != EnvDev {
		t.Fatalf("default should be dev, got %q", got)
	}

	t.Setenv("APP_ENV", "prod")
	if got := DetectEnv(); got != EnvProd {
		t.Fatalf("expected prod, got %q", got)
	}
}

func TestInit_DevStd_TextOutput(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{
		Service: "meet-test",
		Version: "v0.0.1",
		Env:     EnvDev,
		Backend: BackendStd,
		Level:   slog.LevelDebug,
		Output:  &buf,
	})
	slog.Info("room created", "room", "abcd1234")

	out := buf.String()
	if strings.HasPrefix(strings.TrimSpace(out), "{") {
		t.Fatalf("expected text output in dev/std, got JSON: %s", out)
	}
	for _, want := range []string{"room created", "service=meet-test", "env=dev", "room=abcd1234"} {
		if !strings.Contains(out, want) {
			t.Fatalf("%q missing: %s", want, out)
		}
	}
}

func TestInit_DebugFlagLowersLevel(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Env: EnvDev, Backend: BackendStd, Debug: true, Output: &buf})
	slog.Debug("peer joined")
	if !strings.Contains(buf.String(), "peer joined") {
		t.Fatalf("debug record dropped: %s", buf.String())
	}
}

func TestInit_ProdZap_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{
		Service:          "meet-test",
		Version:          "1.2.3",
		Env:              EnvProd,
		Level:            slog.LevelInfo,
		SampleInitial:    100000,
		SampleThereafter: 100000,
		Output:           &buf,
	})
	slog.Info("booted", slog.String("k", "v"))

	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("expected JSON line, got %s, err=%v", buf.String(), err)
	}
	if m["msg"] != "booted" {
		t.Fatalf("msg mismatch: %v", m["msg"])
	}
	if m["service"] != "meet-test" || m["env"] != "prod" || m["version"] != "1.2.3" {
		t.Fatalf("attrs missing: %v", m)
	}
	if m["level"] != "INFO" {
		t.Fatalf("level mismatch: %v", m["level"])
	}
	if m["k"] != "v" {
		t.Fatalf("custom field missing: %v", m["k"])
	}
}

func TestCtx_PropagatesTraceIDs(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{
		Env:              EnvProd,
		Backend:          BackendZap,
		SampleInitial:    100000,
		SampleThereafter: 100000,
		Output:           &buf,
	})

	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()
	otel.SetTracerProvider(tp)

	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	Ctx(ctx).Info("with trace")
	span.End()

	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("expected JSON, got: %s, err=%v", buf.String(), err)
	}
	if m["trace_id"] == nil || m["span_id"] == nil {
		t.Fatalf("trace_id/span_id missing in log: %v", m)
	}
	if m["msg"] != "with trace" {
		t.Fatalf("msg mismatch: %v", m["msg"])
	}
}

func TestAttrsFromCtx_NoSpan(t *testing.T) {
	if attrs := AttrsFromCtx(context.Background()); attrs != nil {
		t.Fatalf("expected no attrs, got %v", attrs)
	}
}
