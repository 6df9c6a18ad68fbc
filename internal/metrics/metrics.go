package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	MetricsNamespace = "taptree"
)

var (
	assertionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "assertions_total",
		Help:      "Count of reported assertion outcomes",
	}, []string{
		"result",
	})

	targetsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "targets_total",
		Help:      "Count of processed run targets",
	}, []string{
		"mode",
		"outcome",
	})

	nodesCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "nodes_created_total",
		Help:      "Count of persistent tree nodes created",
	}, []string{
		"kind",
	})

	targetDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: MetricsNamespace,
		Name:      "target_duration_seconds",
		Help:      "Duration of run targets",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
	}, []string{
		"mode",
	})
)

func RecordAssertion(passed bool) {
	result := "fail"
	if passed {
		result = "pass"
	}
	assertionsTotal.WithLabelValues(result).Inc()
}

// RecordTarget counts a finished run target. mode is "discover" or "run".
func RecordTarget(mode string, err error, duration time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	targetsTotal.WithLabelValues(mode, outcome).Inc()
	targetDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

func RecordNodeCreated(kind string) {
	nodesCreatedTotal.WithLabelValues(kind).Inc()
}

// Serve exposes the default registry on addr until ctx is done.
func Serve(ctx context.Context, addr string, logger log.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("starting metrics server", "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
