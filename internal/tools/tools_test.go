package tools

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/njchilds90/stoich/bank"
	"github.com/njchilds90/stoich/internal/metrics"
)

func newDispatcher(t *testing.T, opts ...Option) *Dispatcher {
	t.Helper()
	b, err := bank.Default()
	require.NoError(t, err)
	return New(b, opts...)
}

func TestSolveTool(t *testing.T) {
	d := newDispatcher(t)
	resp := d.Handle(Request{Tool: "solve", Params: map[string]interface{}{
		"target":    "n",
		"given":     []interface{}{"m = 0.713 g", "M = 18 g/mol"},
		"unit":      "mmol",
		"precision": float64(3),
	}})
	require.Empty(t, resp.Error)
	assert.Equal(t, "n = 39.611 mmol", resp.String)
	_, err := uuid.Parse(resp.RequestID)
	assert.NoError(t, err)

	result := resp.Result.(map[string]interface{})
	assert.Equal(t, 39.611, result["magnitude"])
	assert.Equal(t, "mmol", result["unit"])
}

func TestSolveToolSemicolonLists(t *testing.T) {
	d := newDispatcher(t)
	resp := d.Handle(Request{Tool: "solve", Params: map[string]interface{}{
		"target":    "n",
		"given":     "Vpg = 48.9 L;",
		"assume":    "STP",
		"precision": float64(1),
	}})
	require.Empty(t, resp.Error)
	assert.Equal(t, "n = 2 mol", resp.String)
}

func TestSolveToolCallsAreIndependent(t *testing.T) {
	d := newDispatcher(t)
	req := Request{Tool: "solve", Params: map[string]interface{}{
		"target": "n",
		"given":  []interface{}{"m = 4 g", "M = 40 g/mol"},
	}}
	first := d.Handle(req)
	second := d.Handle(req)
	assert.Empty(t, first.Error)
	assert.Empty(t, second.Error, "a second call must not see the first call's values")
	assert.NotEqual(t, first.RequestID, second.RequestID)
}

func TestBalanceTool(t *testing.T) {
	rec := metrics.NewRecorder()
	d := newDispatcher(t, WithRecorder(rec))

	resp := d.Handle(Request{Tool: "balance", Params: map[string]interface{}{"reaction": "H2 + O2 -> H2O"}})
	require.Empty(t, resp.Error)
	assert.Equal(t, "2H2 + O2 -> 2H2O", resp.String)
	assert.Equal(t, map[string]int64{"H2": 2, "O2": 1, "H2O": 2}, resp.Result)

	resp = d.Handle(Request{Tool: "balance", Params: map[string]interface{}{"reaction": "H2 -> O2"}})
	assert.Contains(t, resp.Error, "cannot equate reaction")

	count, err := testutil.GatherAndCount(rec.Registry(), "stoich_balances_total", "stoich_tool_calls_total")
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestConvertTool(t *testing.T) {
	d := newDispatcher(t)
	resp := d.Handle(Request{Tool: "convert", Params: map[string]interface{}{"quantity": "m = 0.713 g", "unit": "mg"}})
	require.Empty(t, resp.Error)
	result := resp.Result.(map[string]interface{})
	assert.InDelta(t, 713, result["magnitude"], 1e-9)
	assert.Equal(t, "mg", result["unit"])

	resp = d.Handle(Request{Tool: "convert", Params: map[string]interface{}{"quantity": "m = 0.713 g", "unit": "L"}})
	assert.Contains(t, resp.Error, "incompatible units")
}

func TestListingTools(t *testing.T) {
	d := newDispatcher(t)

	resp := d.Handle(Request{Tool: "variables"})
	require.Empty(t, resp.Error)
	vars := resp.Result.([]map[string]interface{})
	assert.Len(t, vars, 15)
	assert.Contains(t, resp.String, "R (universal gas constant) [J/(mol*K)] = 8.314")

	resp = d.Handle(Request{Tool: "assumptions"})
	require.Empty(t, resp.Error)
	assert.Len(t, resp.Result, 2)
	assert.Contains(t, resp.String, "STP")
}

func TestParamErrors(t *testing.T) {
	d := newDispatcher(t)
	tests := []struct {
		req  Request
		want string
	}{
		{Request{Tool: "nope"}, "unknown tool: nope"},
		{Request{Tool: "solve"}, "missing param: target"},
		{Request{Tool: "solve", Params: map[string]interface{}{"target": 3.0}}, "param target must be a string"},
		{Request{Tool: "solve", Params: map[string]interface{}{"target": "n", "precision": 1.5}}, "param precision must be an integer"},
		{Request{Tool: "solve", Params: map[string]interface{}{"target": "n", "given": []interface{}{1.0}}}, "param given[0] must be string"},
		{Request{Tool: "convert", Params: map[string]interface{}{"quantity": "m = 1 g"}}, "missing param: unit"},
	}
	for _, tt := range tests {
		resp := d.Handle(tt.req)
		assert.Equal(t, tt.want, resp.Error)
		assert.NotEmpty(t, resp.RequestID)
	}
}

func TestSchema(t *testing.T) {
	var doc struct {
		Tools []struct {
			Name        string `json:"name"`
			InputSchema struct {
				Required []string `json:"required"`
			} `json:"inputSchema"`
		} `json:"tools"`
	}
	require.NoError(t, json.Unmarshal([]byte(Schema()), &doc))
	require.Len(t, doc.Tools, len(Specs()))
	assert.Equal(t, "solve", doc.Tools[0].Name)
	assert.Equal(t, []string{"target"}, doc.Tools[0].InputSchema.Required)
}
