package ledger

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/faultfs/faultfs/faultop"
)

// metrics mirrors a Ledger's counters onto a dedicated Prometheus
// registry. Grounded on the registry/collector/ServeMetrics pattern in
// octoreflex's internal/observability/metrics.go: a private registry
// rather than the global default, namespaced counters per subsystem, and
// a small HTTP server exposing /metrics and /healthz.
type metrics struct {
	registry *prometheus.Registry

	opCount    *prometheus.CounterVec
	bytesRead  prometheus.Counter
	bytesWritn prometheus.Counter
	uptime     prometheus.Gauge
}

const namespace = "faultfs"

func newMetrics() *metrics {
	reg := prometheus.NewRegistry()

	m := &metrics{
		registry: reg,
		opCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ops",
			Name:      "total",
			Help:      "Number of FUSE operations observed, by operation type.",
		}, []string{"op"}),
		bytesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "io",
			Name:      "bytes_read_total",
			Help:      "Bytes returned to callers by read operations.",
		}),
		bytesWritn: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "io",
			Name:      "bytes_written_total",
			Help:      "Bytes accepted from callers by write operations.",
		}),
		uptime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "process",
			Name:      "uptime_seconds",
			Help:      "Seconds since the mount was started.",
		}),
	}

	reg.MustRegister(m.opCount, m.bytesRead, m.bytesWritn, m.uptime)
	reg.MustRegister(prometheus.NewGoCollector())
	reg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	return m
}

func (m *metrics) observeCall(op faultop.Op) {
	m.opCount.WithLabelValues(op.String()).Inc()
}

func (m *metrics) observeBytes(op faultop.Op, n int) {
	switch op {
	case faultop.Read:
		m.bytesRead.Add(float64(n))
	case faultop.Write:
		m.bytesWritn.Add(float64(n))
	}
}

// EnableMetrics turns on Prometheus mirroring for l. It is idempotent;
// calling it twice is a no-op after the first call.
func (l *Ledger) EnableMetrics() {
	if l.metrics == nil {
		l.metrics = newMetrics()
	}
}

// ServeMetrics serves /metrics and /healthz on addr until ctx is
// cancelled, then shuts the server down gracefully. EnableMetrics must
// have been called first; otherwise ServeMetrics returns an error.
func (l *Ledger) ServeMetrics(ctx context.Context, addr string) error {
	if l.metrics == nil {
		return errors.New("ledger: ServeMetrics called before EnableMetrics")
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(l.metrics.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: addr, Handler: mux}

	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.metrics.uptime.Set(time.Since(l.startTime).Seconds())
			case <-stop:
				return
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		close(stop)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		close(stop)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
