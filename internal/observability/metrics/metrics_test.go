package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestWorkflowMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWorkflowMetrics(reg)
	m.ObserveGatewayRequest("create_booking", "201", 0.2)
	m.ObserveGatewayRequest("create_booking", "201", 0.1)
	m.ObserveBookingSubmission("succeeded")
	m.ObservePaymentConfirmation("failed")
	m.ObserveDraftWrite(nil)
	m.ObserveDraftWrite(errors.New("redis down"))
	m.ObserveDistanceLookup(nil)

	if got := testutil.ToFloat64(m.gatewayRequests.WithLabelValues("create_booking", "201")); got != 2 {
		t.Fatalf("expected 2 gateway requests, got %v", got)
	}
	if got := testutil.ToFloat64(m.draftWrites.WithLabelValues("error")); got != 1 {
		t.Fatalf("expected 1 failed draft write, got %v", got)
	}
	if got := testutil.ToFloat64(m.draftWrites.WithLabelValues("ok")); got != 1 {
		t.Fatalf("expected 1 ok draft write, got %v", got)
	}
}

func TestWorkflowMetricsNilSafe(t *testing.T) {
	var m *WorkflowMetrics
	m.ObserveGatewayRequest("health", "200", 0.1)
	m.ObserveBookingSubmission("invalid")
	m.ObservePaymentConfirmation("succeeded")
	m.ObserveDraftWrite(nil)
	m.ObserveDistanceLookup(errors.New("x"))
}
