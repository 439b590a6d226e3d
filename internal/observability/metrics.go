package observability

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce sync.Once

	connectAttempts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "wslogon",
		Subsystem: "session",
		Name:      "connect_attempts_total",
		Help:      "Transport dials started.",
	})
	reconnects = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "wslogon",
		Subsystem: "session",
		Name:      "reconnects_total",
		Help:      "Unexpected transport closes that scheduled a redial.",
	})
	logonResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wslogon",
			Subsystem: "session",
			Name:      "logon_results_total",
			Help:      "Logon responses by outcome.",
		},
		[]string{"accepted"},
	)
	framesIn = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "wslogon",
		Subsystem: "session",
		Name:      "frames_received_total",
		Help:      "Inbound frames read from the transport.",
	})
	framesOut = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "wslogon",
		Subsystem: "session",
		Name:      "frames_sent_total",
		Help:      "Outbound frames written to the transport.",
	})
	decodeFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "wslogon",
		Subsystem: "session",
		Name:      "decode_failures_total",
		Help:      "Inbound frames dropped because they did not decode.",
	})
	queued = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "wslogon",
			Subsystem: "session",
			Name:      "queued_messages",
			Help:      "Messages waiting for authentication, per session.",
		},
		[]string{"session"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(connectAttempts, reconnects, logonResults, framesIn, framesOut, decodeFailures, queued)
	})
}

// MetricsHandler serves the default registry.
func MetricsHandler() http.Handler {
	RegisterMetrics()
	return promhttp.Handler()
}

func RecordConnectAttempt() {
	RegisterMetrics()
	connectAttempts.Inc()
}

func RecordReconnect() {
	RegisterMetrics()
	reconnects.Inc()
}

func RecordLogonResult(accepted bool) {
	RegisterMetrics()
	logonResults.WithLabelValues(strconv.FormatBool(accepted)).Inc()
}

func RecordFrameIn() {
	RegisterMetrics()
	framesIn.Inc()
}

func RecordFrameOut() {
	RegisterMetrics()
	framesOut.Inc()
}

func RecordDecodeFailure() {
	RegisterMetrics()
	decodeFailures.Inc()
}

// SetQueued reports the outbox length of one session.
func SetQueued(session string, n int) {
	RegisterMetrics()
	queued.WithLabelValues(session).Set(float64(n))
}

// ForgetSession drops the per-session series of a session that has shut down.
func ForgetSession(session string) {
	RegisterMetrics()
	queued.DeleteLabelValues(session)
}
