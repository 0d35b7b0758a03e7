package metrics

import "github.com/prometheus/client_golang/prometheus"

// WorkflowMetrics exposes counters/histograms for the booking and payment flows.
type WorkflowMetrics struct {
	gatewayRequests      *prometheus.CounterVec
	gatewayLatency       *prometheus.HistogramVec
	bookingSubmissions   *prometheus.CounterVec
	paymentConfirmations *prometheus.CounterVec
	draftWrites          *prometheus.CounterVec
	distanceLookups      *prometheus.CounterVec
}

func NewWorkflowMetrics(reg prometheus.Registerer) *WorkflowMetrics {
	m := &WorkflowMetrics{
		gatewayRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chauffeur",
			Subsystem: "gateway",
			Name:      "requests_total",
			Help:      "Total calls to the booking API",
		}, []string{"operation", "status"}),
		gatewayLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "chauffeur",
			Subsystem: "gateway",
			Name:      "request_seconds",
			Help:      "Latency of booking API calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		bookingSubmissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chauffeur",
			Subsystem: "booking",
			Name:      "submissions_total",
			Help:      "Booking form submissions by outcome",
		}, []string{"outcome"}),
		paymentConfirmations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chauffeur",
			Subsystem: "payments",
			Name:      "confirmations_total",
			Help:      "Card confirmations by outcome",
		}, []string{"outcome"}),
		draftWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chauffeur",
			Subsystem: "booking",
			Name:      "draft_writes_total",
			Help:      "Debounced draft writes to local storage",
		}, []string{"result"}),
		distanceLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chauffeur",
			Subsystem: "places",
			Name:      "distance_lookups_total",
			Help:      "Drive duration lookups between pickup and destination",
		}, []string{"result"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.gatewayRequests, m.gatewayLatency, m.bookingSubmissions,
		m.paymentConfirmations, m.draftWrites, m.distanceLookups)
	return m
}

func (m *WorkflowMetrics) ObserveGatewayRequest(operation, status string, seconds float64) {
	if m == nil {
		return
	}
	m.gatewayRequests.WithLabelValues(operation, status).Inc()
	m.gatewayLatency.WithLabelValues(operation).Observe(seconds)
}

func (m *WorkflowMetrics) ObserveBookingSubmission(outcome string) {
	if m == nil {
		return
	}
	m.bookingSubmissions.WithLabelValues(outcome).Inc()
}

func (m *WorkflowMetrics) ObservePaymentConfirmation(outcome string) {
	if m == nil {
		return
	}
	m.paymentConfirmations.WithLabelValues(outcome).Inc()
}

func (m *WorkflowMetrics) ObserveDraftWrite(err error) {
	if m == nil {
		return
	}
	m.draftWrites.WithLabelValues(resultLabel(err)).Inc()
}

func (m *WorkflowMetrics) ObserveDistanceLookup(err error) {
	if m == nil {
		return
	}
	m.distanceLookups.WithLabelValues(resultLabel(err)).Inc()
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
