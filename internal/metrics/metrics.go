// Package metrics exports solver and balancer activity to Prometheus.
package metrics

import (
	"net/http"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/njchilds90/stoich/calcerr"
	"github.com/njchilds90/stoich/quantity"
)

const namespace = "stoich"

// Recorder implements solver.Observer and counts balancer and tool outcomes.
type Recorder struct {
	registry *prometheus.Registry

	rounds    prometheus.Histogram
	derived   *prometheus.CounterVec
	solves    *prometheus.CounterVec
	balances  *prometheus.CounterVec
	toolCalls *prometheus.CounterVec
}

// NewRecorder registers every collector on a fresh registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		rounds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "solve_rounds",
			Help:      "Fixpoint rounds run per solve.",
			Buckets:   prometheus.LinearBuckets(1, 1, 10),
		}),
		derived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "variables_derived_total",
			Help:      "Variables derived by fixpoint rounds, by variable.",
		}, []string{"variable"}),
		solves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "solves_total",
			Help:      "Finished solves by outcome.",
		}, []string{"outcome"}),
		balances: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "balances_total",
			Help:      "Reaction balancing attempts by outcome.",
		}, []string{"outcome"}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Tool calls by tool and outcome.",
		}, []string{"tool", "outcome"}),
	}
	r.registry.MustRegister(r.rounds, r.derived, r.solves, r.balances, r.toolCalls)
	return r
}

func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

func (r *Recorder) RoundCompleted(round int, derived []*quantity.Quantity) {
	for _, q := range derived {
		r.derived.WithLabelValues(q.Name()).Inc()
	}
}

func (r *Recorder) SolveFinished(target string, rounds int, err error) {
	r.rounds.Observe(float64(rounds))
	r.solves.WithLabelValues(Outcome(err)).Inc()
}

// BalanceFinished counts one balancing attempt.
func (r *Recorder) BalanceFinished(err error) {
	r.balances.WithLabelValues(Outcome(err)).Inc()
}

// ToolCalled counts one tool invocation.
func (r *Recorder) ToolCalled(tool string, err error) {
	r.toolCalls.WithLabelValues(tool, Outcome(err)).Inc()
}

// Outcome maps an error to a low-cardinality label value.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, calcerr.ErrSolutionNotFound):
		return "not_found"
	case errors.Is(err, calcerr.ErrCannotEquateReaction):
		return "unbalanceable"
	case errors.Is(err, calcerr.ErrIncompatibleUnits), errors.Is(err, calcerr.ErrInvalidQuantity),
		errors.Is(err, calcerr.ErrInvalidFormula), errors.Is(err, calcerr.ErrUnknownVariable):
		return "invalid_input"
	default:
		return "error"
	}
}

// Handler serves the recorder's registry.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Listen serves /metrics on addr in the background. The returned server is
// shut down by the caller.
func (r *Recorder) Listen(addr string, log logrus.FieldLogger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	server := &http.Server{Addr: addr, Handler: mux}
	go func() {
		log.WithField("metrics_address", addr).Info("Serving metrics")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("Metrics server failed")
		}
	}()
	return server
}
