package obs

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	initOnce sync.Once

	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	readyGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "samaj_ready",
		Help: "1 when the last readiness probe succeeded.",
	})

	verificationTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "samaj_verification_transitions_total",
			Help: "Organization verification status transitions by target status and outcome.",
		},
		[]string{"to", "outcome"},
	)

	registrations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "samaj_registrations_total",
			Help: "Registration attempts by requested role and outcome.",
		},
		[]string{"role", "outcome"},
	)

	foodDonations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "samaj_food_donations_total",
			Help: "Food donation listings written, split by whether an image was attached.",
		},
		[]string{"image"},
	)

	sessionResolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "samaj_session_resolutions_total",
			Help: "Session role resolutions by outcome (anonymous, profile, cached, missing, failed).",
		},
		[]string{"outcome"},
	)
)

// Init registers all collectors in the default registry. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			httpInFlight, httpRequestsTotal, httpRequestDuration,
			readyGauge, verificationTransitions, registrations,
			foodDonations, sessionResolutions,
		)
	})
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// SetReady records the outcome of the latest readiness check.
func SetReady(ok bool) {
	if ok {
		readyGauge.Set(1)
		return
	}
	readyGauge.Set(0)
}

func ObserveTransition(to, outcome string) {
	verificationTransitions.WithLabelValues(to, outcome).Inc()
}

func ObserveRegistration(role, outcome string) {
	if role == "" {
		role = "unknown"
	}
	registrations.WithLabelValues(role, outcome).Inc()
}

func ObserveFoodDonation(withImage bool) {
	foodDonations.WithLabelValues(strconv.FormatBool(withImage)).Inc()
}

func ObserveSession(outcome string) {
	sessionResolutions.WithLabelValues(outcome).Inc()
}

// Instrument records request count, latency and in-flight gauge.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		defer httpInFlight.Dec()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		status := strconv.Itoa(sw.code)
		httpRequestDuration.WithLabelValues(method, path, status).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	})
}

// CanonicalPath collapses identifiers and file names so label cardinality stays bounded.
func CanonicalPath(raw string) string {
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		raw = raw[:i]
	}
	if raw == "" {
		return "/"
	}
	if strings.HasPrefix(raw, "/uploads/") {
		return "/uploads/*"
	}
	const ngos = "/v1/admin/ngos/"
	if strings.HasPrefix(raw, ngos) {
		parts := strings.Split(strings.TrimPrefix(raw, ngos), "/")
		if len(parts) == 2 {
			switch parts[1] {
			case "approve", "reject", "revoke":
				return ngos + ":id/" + parts[1]
			}
		}
	}
	return raw
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// Flush keeps streaming handlers working behind the instrumentation wrapper.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack lets websocket upgrades pass through the instrumentation wrapper.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("obs: hijack not supported")
	}
	return h.Hijack()
}
