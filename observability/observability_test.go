package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNopTracer(t *testing.T) {
	tracer := NopTracer()
	ctx := context.Background()
	ctx2, span := tracer.StartSpan(ctx, "test")
	if ctx2 != ctx {
		t.Fatalf("nop tracer should return same context")
	}
	span.SetTag("key", "value")
	span.SetError(nil)
	span.Finish()
}

func TestZerologFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(LogConfig{Level: "debug", Format: "json", Output: &buf, Service: "scrub"})
	log.With(String("doc", "a.pdf")).Info("redacted",
		Int("runs", 3),
		Int64("bytes", 1024),
		Float64("scale", 1.8),
		Bool("cached", false),
		Duration("took", 2*time.Second),
		Error("error", errors.New("boom")),
	)

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	checks := map[string]interface{}{
		"message": "redacted",
		"service": "scrub",
		"doc":     "a.pdf",
		"runs":    float64(3),
		"bytes":   float64(1024),
		"scale":   1.8,
		"cached":  false,
		"error":   "boom",
	}
	for k, want := range checks {
		if entry[k] != want {
			t.Fatalf("field %s: got %v want %v", k, entry[k], want)
		}
	}
}

func TestZerologLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(LogConfig{Level: "warn", Output: &buf})
	log.Info("hidden")
	log.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected info to be filtered, got %q", buf.String())
	}
	log.Warn("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Fatalf("expected warn entry, got %q", buf.String())
	}
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.ObserveStage(StageRender, time.Second)
	m.DocumentDone("ok")
	m.AddRedaction(1, 2, 3)
	m.AddBleached(4)
	m.CacheLookup("hit")
}

func TestMetricsRecord(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.AddRedaction(2, 1, 0)
	m.AddBleached(10)
	m.DocumentDone("ok")
	m.DocumentDone("ok")
	if got := testutil.ToFloat64(m.RunsBlanked); got != 2 {
		t.Fatalf("runs blanked: got %v", got)
	}
	if got := testutil.ToFloat64(m.PixelsBleached); got != 10 {
		t.Fatalf("pixels bleached: got %v", got)
	}
	if got := testutil.ToFloat64(m.Documents.WithLabelValues("ok")); got != 2 {
		t.Fatalf("documents ok: got %v", got)
	}
}
