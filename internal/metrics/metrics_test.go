package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/njchilds90/stoich/calcerr"
	"github.com/njchilds90/stoich/quantity"
	"github.com/njchilds90/stoich/solver"
)

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", Outcome(nil))
	assert.Equal(t, "not_found", Outcome(errors.Wrap(calcerr.ErrSolutionNotFound, "n")))
	assert.Equal(t, "unbalanceable", Outcome(calcerr.ErrCannotEquateReaction))
	assert.Equal(t, "invalid_input", Outcome(errors.WithMessage(calcerr.ErrIncompatibleUnits, "m")))
	assert.Equal(t, "error", Outcome(errors.New("boom")))
}

func TestRecorderObservesSolver(t *testing.T) {
	rec := NewRecorder()
	s, err := solver.NewDefault(solver.WithObserver(rec))
	require.NoError(t, err)
	require.NoError(t, s.Write(quantity.MustNew("m", 4, "g"), quantity.MustNew("M", 40, "g/mol")))
	require.NoError(t, s.SetTarget(quantity.MustNew("n", 0.01, "mol")))
	_, err = s.Solve(true, false)
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(rec.derived.WithLabelValues("n")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.solves.WithLabelValues("ok")))

	require.NoError(t, s.SetTarget(quantity.MustNew("rho", 0.01, "g/mL")))
	_, err = s.Solve(false, false)
	require.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.solves.WithLabelValues("not_found")))
}

func TestRecorderHandler(t *testing.T) {
	rec := NewRecorder()
	rec.BalanceFinished(nil)
	rec.BalanceFinished(calcerr.ErrCannotEquateReaction)
	rec.ToolCalled("balance", nil)

	w := httptest.NewRecorder()
	rec.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	body := w.Body.String()
	for _, line := range []string{
		`stoich_balances_total{outcome="ok"} 1`,
		`stoich_balances_total{outcome="unbalanceable"} 1`,
		`stoich_tool_calls_total{outcome="ok",tool="balance"} 1`,
	} {
		assert.True(t, strings.Contains(body, line), "missing %s", line)
	}
}
