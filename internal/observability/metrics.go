package observability

import (
	"net/http"
	"time"

	"github.com/ariefcatur/go-order-intake/internal/orders"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRegistry returns a registry with the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Metrics records order placement outcomes.
type Metrics struct {
	placed       prometheus.Counter
	rejected     *prometheus.CounterVec
	reservation  prometheus.Histogram
	ledgerFailed prometheus.Counter
}

var _ orders.Recorder = (*Metrics)(nil)

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		placed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "orders",
			Name:      "placed_total",
			Help:      "Orders recorded in the ledger.",
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orders",
			Name:      "rejected_total",
			Help:      "Order placements that failed, by error kind.",
		}, []string{"kind"}),
		reservation: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "orders",
			Name:      "reservation_duration_seconds",
			Help:      "Time spent reserving stock for one order.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),
		ledgerFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "orders",
			Name:      "ledger_write_failed_total",
			Help:      "Orders whose stock was reserved but could not be recorded.",
		}),
	}
	reg.MustRegister(m.placed, m.rejected, m.reservation, m.ledgerFailed)
	return m
}

func (m *Metrics) OrderPlaced() { m.placed.Inc() }

func (m *Metrics) OrderRejected(kind orders.Kind) {
	label := string(kind)
	if label == "" {
		label = "internal"
	}
	m.rejected.WithLabelValues(label).Inc()
}

func (m *Metrics) ReservationObserved(d time.Duration) { m.reservation.Observe(d.Seconds()) }

func (m *Metrics) LedgerWriteFailed() { m.ledgerFailed.Inc() }
