package middleware

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/sockframe-dev/sockframe/pkg/broker"
	"github.com/sockframe-dev/sockframe/pkg/protocol"
	"github.com/sockframe-dev/sockframe/pkg/session"
)

type nopConn struct{}

func (nopConn) WriteFrame(context.Context, []byte) error { return nil }
func (nopConn) Close(int) error                          { return nil }

func testInvocation() *session.Invocation {
	sess := session.New(session.Options{
		Conn:   nopConn{},
		Broker: broker.NewMemoryBroker(),
	})
	return &session.Invocation{
		Session:   sess,
		Namespace: session.NamespaceAPI,
		Method:    "ping",
	}
}

func TestPrometheus(t *testing.T) {
	registry := prometheus.NewRegistry()
	mw := Prometheus(WithRegistry(registry))
	inv := testInvocation()

	result, err := mw(context.Background(), inv, func(context.Context) (any, error) {
		return "ok", nil
	})
	if err != nil || result != "ok" {
		t.Fatalf("middleware = (%v, %v), want (ok, nil)", result, err)
	}

	_, err = mw(context.Background(), inv, func(context.Context) (any, error) {
		return nil, protocol.NewAccessError("denied")
	})
	if err == nil {
		t.Fatal("middleware swallowed the handler error")
	}

	m := collected(t)
	if got := testutil.ToFloat64(m.callsTotal.WithLabelValues("api", "ping", "success")); got != 1 {
		t.Errorf("calls_total{success} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.callsTotal.WithLabelValues("api", "ping", "error")); got != 1 {
		t.Errorf("calls_total{error} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.callErrors.WithLabelValues("api", "ping", "access_error")); got != 1 {
		t.Errorf("call_errors_total{access_error} = %v, want 1", got)
	}
}

func TestPrometheus_SingletonCollectors(t *testing.T) {
	Prometheus(WithRegistry(prometheus.NewRegistry()))
	first := collected(t)

	// Later calls reuse the collectors created first; their options are
	// ignored.
	Prometheus(WithRegistry(prometheus.NewRegistry()), WithNamespace("other"))
	if got := collected(t); got != first {
		t.Error("a later Prometheus() call replaced the shared collectors")
	}
}

// collected returns the process-wide metrics instance.
func collected(t *testing.T) *metrics {
	t.Helper()
	globalMetricsMu.Lock()
	defer globalMetricsMu.Unlock()
	if globalMetrics == nil {
		t.Fatal("metrics not initialized")
	}
	return globalMetrics
}

func TestErrorTypeLabel(t *testing.T) {
	if got := errorTypeLabel(protocol.NewTypeError("bad")); got != "type_error" {
		t.Errorf("errorTypeLabel(type_error) = %q", got)
	}
	if got := errorTypeLabel(errors.New("boom")); got != "internal" {
		t.Errorf("errorTypeLabel(plain) = %q", got)
	}
}

func TestOpenTelemetry_PassThrough(t *testing.T) {
	mw := OpenTelemetry()
	inv := testInvocation()

	result, err := mw(context.Background(), inv, func(context.Context) (any, error) {
		return 42, nil
	})
	if err != nil || result != 42 {
		t.Fatalf("middleware = (%v, %v), want (42, nil)", result, err)
	}

	wantErr := errors.New("handler failed")
	_, err = mw(context.Background(), inv, func(context.Context) (any, error) {
		return nil, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("error = %v, want %v", err, wantErr)
	}
}

func TestOpenTelemetry_Filter(t *testing.T) {
	var traced bool
	mw := OpenTelemetry(WithFilter(func(inv *session.Invocation) bool {
		traced = true
		return false
	}))

	result, err := mw(context.Background(), testInvocation(), func(context.Context) (any, error) {
		return "ok", nil
	})
	if err != nil || result != "ok" {
		t.Fatalf("middleware = (%v, %v)", result, err)
	}
	if !traced {
		t.Error("filter was not consulted")
	}
}
