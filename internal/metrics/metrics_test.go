package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(framesReceived)
	FrameReceived()
	FrameReceived()
	if got := testutil.ToFloat64(framesReceived) - before; got != 2 {
		t.Fatalf("frames_received delta = %v, want 2", got)
	}

	HandlerError("STREAM")
	if got := testutil.ToFloat64(handlerErrors.WithLabelValues("STREAM")); got < 1 {
		t.Fatalf("handler_errors{STREAM} = %v, want >= 1", got)
	}
}

func TestRegisterMetricsIsIdempotent(t *testing.T) {
	RegisterMetrics()
	RegisterMetrics()
	if Handler() == nil {
		t.Fatalf("expected metrics handler")
	}
}
