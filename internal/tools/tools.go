// Package tools dispatches named tool calls to the stoichiometry engine. The
// same dispatcher backs the MCP server and the JSON schema it advertises.
package tools

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/njchilds90/stoich/balance"
	"github.com/njchilds90/stoich/bank"
	"github.com/njchilds90/stoich/equation"
	"github.com/njchilds90/stoich/internal/metrics"
	"github.com/njchilds90/stoich/internal/problem"
	"github.com/njchilds90/stoich/quantity"
	"github.com/njchilds90/stoich/solver"
)

type Request struct {
	Tool   string                 `json:"tool"`
	Params map[string]interface{} `json:"params"`
}

type Response struct {
	RequestID string      `json:"request_id,omitempty"`
	Result    interface{} `json:"result,omitempty"`
	String    string      `json:"string,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// Dispatcher runs tool calls. Every call gets its own solver, so calls do not
// share known values and a Dispatcher may serve concurrent callers.
type Dispatcher struct {
	bank            *bank.Bank
	assumptionsPath string
	recorder        *metrics.Recorder
	log             logrus.FieldLogger
}

type Option func(*Dispatcher)

func WithLogger(l logrus.FieldLogger) Option {
	return func(d *Dispatcher) { d.log = l }
}

// WithRecorder counts tool calls, solves and balances on r.
func WithRecorder(r *metrics.Recorder) Option {
	return func(d *Dispatcher) { d.recorder = r }
}

// WithAssumptionFile reads assumption bundles from path instead of the
// embedded resource.
func WithAssumptionFile(path string) Option {
	return func(d *Dispatcher) { d.assumptionsPath = path }
}

// New returns a dispatcher over b.
func New(b *bank.Bank, opts ...Option) *Dispatcher {
	l := logrus.New()
	l.SetOutput(io.Discard)
	d := &Dispatcher{bank: b, log: l}
	for _, o := range opts {
		o(d)
	}
	return d
}

func (d *Dispatcher) newSolver(log logrus.FieldLogger) *solver.Solver {
	opts := []solver.Option{solver.WithLogger(log)}
	if d.assumptionsPath != "" {
		opts = append(opts, solver.WithAssumptionFile(d.assumptionsPath))
	}
	if d.recorder != nil {
		opts = append(opts, solver.WithObserver(d.recorder))
	}
	return solver.New(equation.New(d.bank, equation.WithLogger(log)), opts...)
}

func (d *Dispatcher) assumptions() ([]*bank.Assumption, error) {
	if d.assumptionsPath != "" {
		return bank.LoadAssumptions(d.assumptionsPath)
	}
	return bank.DefaultAssumptions()
}

// Handle runs one tool call. Failures are reported in Response.Error.
func (d *Dispatcher) Handle(req Request) Response {
	id := uuid.New().String()
	log := d.log.WithFields(logrus.Fields{"request_id": id, "tool": req.Tool})
	log.Debug("Tool call received")

	resp, err := d.dispatch(req, log)
	if d.recorder != nil {
		d.recorder.ToolCalled(req.Tool, err)
	}
	if err != nil {
		log.WithError(err).Warn("Tool call failed")
		return Response{RequestID: id, Error: err.Error()}
	}
	log.WithField("result", resp.String).Info("Tool call completed")
	resp.RequestID = id
	return resp
}

func (d *Dispatcher) dispatch(req Request, log logrus.FieldLogger) (Response, error) {
	p := params(req.Params)
	switch req.Tool {
	case "solve":
		return d.solve(p, log)
	case "balance":
		reaction, err := p.str("reaction")
		if err != nil {
			return Response{}, err
		}
		return d.balance(reaction)
	case "convert":
		raw, err := p.str("quantity")
		if err != nil {
			return Response{}, err
		}
		unit, err := p.str("unit")
		if err != nil {
			return Response{}, err
		}
		q, err := quantity.Parse(raw)
		if err != nil {
			return Response{}, err
		}
		out, err := q.Convert(unit)
		if err != nil {
			return Response{}, err
		}
		return Response{Result: quantityResult(out), String: out.String()}, nil
	case "variables":
		vars := d.bank.Registry.Variables()
		result := make([]map[string]interface{}, len(vars))
		lines := make([]string, len(vars))
		for i, v := range vars {
			result[i] = map[string]interface{}{"symbol": v.Symbol, "name": v.Name, "unit": v.Unit.String()}
			lines[i] = fmt.Sprintf("%s (%s) [%s]", v.Symbol, v.Name, v.Unit)
			if v.HasDefault {
				result[i]["default"] = v.Default
				lines[i] += fmt.Sprintf(" = %g", v.Default)
			}
		}
		return Response{Result: result, String: strings.Join(lines, "\n")}, nil
	case "assumptions":
		as, err := d.assumptions()
		if err != nil {
			return Response{}, err
		}
		result := make([]map[string]string, len(as))
		lines := make([]string, len(as))
		for i, a := range as {
			result[i] = map[string]string{"symbol": a.Symbol, "name": a.Name, "description": a.String()}
			lines[i] = a.String()
		}
		return Response{Result: result, String: strings.Join(lines, "\n")}, nil
	case "schema":
		return Response{Result: Specs(), String: Schema()}, nil
	default:
		return Response{}, errors.Errorf("unknown tool: %s", req.Tool)
	}
}

func (d *Dispatcher) solve(p params, log logrus.FieldLogger) (Response, error) {
	target, err := p.str("target")
	if err != nil {
		return Response{}, err
	}
	given, err := p.list("given")
	if err != nil {
		return Response{}, err
	}
	assume, err := p.list("assume")
	if err != nil {
		return Response{}, err
	}
	unit, err := p.optStr("unit")
	if err != nil {
		return Response{}, err
	}
	precision, err := p.optInt("precision", -1)
	if err != nil {
		return Response{}, err
	}

	prob := problem.FromFlags(given, assume, target, unit, precision)
	if err := prob.Validate(); err != nil {
		return Response{}, err
	}
	q, err := prob.Solve(d.newSolver(log))
	if err != nil {
		return Response{}, err
	}
	return Response{Result: quantityResult(q), String: q.String()}, nil
}

func (d *Dispatcher) balance(reaction string) (Response, error) {
	res, err := func() (*balance.Result, error) {
		reagents, products, err := balance.ParseReaction(reaction)
		if err != nil {
			return nil, err
		}
		return balance.Balance(reagents, products)
	}()
	if d.recorder != nil {
		d.recorder.BalanceFinished(err)
	}
	if err != nil {
		return Response{}, err
	}
	return Response{Result: res.Map(), String: res.Equation()}, nil
}

func quantityResult(q *quantity.Quantity) map[string]interface{} {
	return map[string]interface{}{"name": q.Name(), "magnitude": q.Magnitude(), "unit": q.Unit().String()}
}

type params map[string]interface{}

func (p params) str(key string) (string, error) {
	v, ok := p[key]
	if !ok {
		return "", errors.Errorf("missing param: %s", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", errors.Errorf("param %s must be a string", key)
	}
	return s, nil
}

func (p params) optStr(key string) (string, error) {
	if _, ok := p[key]; !ok {
		return "", nil
	}
	return p.str(key)
}

func (p params) optInt(key string, def int) (int, error) {
	v, ok := p[key]
	if !ok {
		return def, nil
	}
	f, ok := v.(float64)
	if !ok || f != float64(int(f)) {
		return 0, errors.Errorf("param %s must be an integer", key)
	}
	return int(f), nil
}

// list accepts a JSON array of strings or a single string with entries
// separated by ';'. A missing key is an empty list.
func (p params) list(key string) ([]string, error) {
	v, ok := p[key]
	if !ok {
		return nil, nil
	}
	switch raw := v.(type) {
	case string:
		var out []string
		for _, s := range strings.Split(raw, ";") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out, nil
	case []interface{}:
		out := make([]string, len(raw))
		for i, r := range raw {
			s, ok := r.(string)
			if !ok {
				return nil, errors.Errorf("param %s[%d] must be string", key, i)
			}
			out[i] = s
		}
		return out, nil
	case []string:
		return raw, nil
	default:
		return nil, errors.Errorf("param %s must be array", key)
	}
}

// Param describes one tool argument.
type Param struct {
	Name        string
	Type        string
	Required    bool
	Description string
}

// Spec describes one tool.
type Spec struct {
	Name        string
	Description string
	Params      []Param
}

// Specs lists every tool the dispatcher handles.
func Specs() []Spec {
	return []Spec{
		{"solve", "Derive a target variable from given quantities and the formula bank", []Param{
			{"target", "string", true, "Variable symbol to solve for, such as n"},
			{"given", "string", false, `Known quantities separated by ';', such as "m = 0.713 g; M = 18 g/mol"`},
			{"assume", "string", false, "Assumption symbols separated by ';', such as STP"},
			{"unit", "string", false, "Answer unit; defaults to the declared unit"},
			{"precision", "integer", false, "Decimals to round the answer to"},
		}},
		{"balance", "Balance a chemical reaction with integer coefficients", []Param{
			{"reaction", "string", true, `Reaction such as "H2 + O2 -> H2O"`},
		}},
		{"convert", "Convert a quantity to another unit", []Param{
			{"quantity", "string", true, `Quantity such as "m = 0.713 g"`},
			{"unit", "string", true, "Target unit"},
		}},
		{"variables", "List the declared variables and their units", nil},
		{"assumptions", "List the available assumption bundles", nil},
		{"schema", "Return this tool schema", nil},
	}
}

// Schema renders Specs as a JSON tool schema.
func Schema() string {
	specs := Specs()
	tools := make([]map[string]interface{}, len(specs))
	for i, s := range specs {
		properties := map[string]interface{}{}
		required := []string{}
		for _, p := range s.Params {
			properties[p.Name] = map[string]interface{}{"type": p.Type, "description": p.Description}
			if p.Required {
				required = append(required, p.Name)
			}
		}
		tools[i] = map[string]interface{}{
			"name":        s.Name,
			"description": s.Description,
			"inputSchema": map[string]interface{}{
				"type":       "object",
				"properties": properties,
				"required":   required,
			},
		}
	}
	b, _ := json.MarshalIndent(map[string]interface{}{"tools": tools}, "", "  ")
	return string(b)
}
