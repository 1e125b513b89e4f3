package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types/ref"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	// FilterVar names the request variable holding a CEL predicate.
	FilterVar = "filter"
	// SelectVar names the request variable holding a CEL projection.
	SelectVar = "select"

	defaultCostLimit = 100_000
)

var routePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

var structValueType = reflect.TypeOf(&structpb.Value{})

// CELEngine compiles subscriptions into CEL programs over the event payload.
type CELEngine struct {
	env       *cel.Env
	fields    map[string]struct{}
	costLimit uint64
	now       func() time.Time
}

// CELOption configures a CELEngine.
type CELOption func(*CELEngine)

// WithFields restricts subscriptions to the listed routes.
func WithFields(fields ...string) CELOption {
	return func(e *CELEngine) {
		if len(fields) == 0 {
			return
		}
		e.fields = make(map[string]struct{}, len(fields))
		for _, f := range fields {
			e.fields[f] = struct{}{}
		}
	}
}

// WithCostLimit caps the evaluation cost of a single program run.
func WithCostLimit(limit uint64) CELOption {
	return func(e *CELEngine) { e.costLimit = limit }
}

// NewCELEngine builds the shared CEL environment.
func NewCELEngine(opts ...CELOption) (*CELEngine, error) {
	env, err := cel.NewEnv(
		// Decoded JSON payload of the published event
		cel.Variable("event", cel.DynType),
		cel.Variable("route", cel.StringType),
		// Request variables of the subscription
		cel.Variable("vars", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("now_ms", cel.IntType),
		// JSON numbers decode as double; allow comparisons against int literals
		cel.CrossTypeNumericComparisons(true),
	)
	if err != nil {
		return nil, err
	}
	e := &CELEngine{env: env, costLimit: defaultCostLimit, now: time.Now}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// Plan is the compiled form of one subscription.
type Plan struct {
	Route   string
	filter  cel.Program
	project cel.Program
	vars    map[string]interface{}
}

// CompileSubscription implements Compiler.
func (e *CELEngine) CompileSubscription(_ context.Context, req Request) (Compiled, error) {
	route := strings.TrimSpace(req.Query)
	if route == "" {
		return Compiled{}, &ValidationError{Reason: "subscription query is empty"}
	}
	if !routePattern.MatchString(route) {
		return Compiled{}, &ValidationError{Reason: fmt.Sprintf("invalid field route %q", route)}
	}
	if e.fields != nil {
		if _, ok := e.fields[route]; !ok {
			return Compiled{}, &ValidationError{Reason: fmt.Sprintf("unknown subscription field %q", route)}
		}
	}
	p := &Plan{Route: route, vars: req.Variables}
	if p.vars == nil {
		p.vars = map[string]interface{}{}
	}
	var err error
	if p.filter, err = e.compileVar(req.Variables, FilterVar, true); err != nil {
		return Compiled{}, err
	}
	if p.project, err = e.compileVar(req.Variables, SelectVar, false); err != nil {
		return Compiled{}, err
	}
	return Compiled{Route: route, Plan: p}, nil
}

func (e *CELEngine) compileVar(vars map[string]interface{}, name string, predicate bool) (cel.Program, error) {
	raw, ok := vars[name]
	if !ok || raw == nil {
		return nil, nil
	}
	expr, ok := raw.(string)
	if !ok {
		return nil, &ValidationError{Reason: fmt.Sprintf("variable %q must be a string", name)}
	}
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, nil
	}
	ast, iss := e.env.Parse(expr)
	if iss != nil && iss.Err() != nil {
		return nil, &ValidationError{Reason: "parse " + name, Err: iss.Err()}
	}
	checked, iss2 := e.env.Check(ast)
	if iss2 != nil && iss2.Err() != nil {
		return nil, &ValidationError{Reason: "check " + name, Err: iss2.Err()}
	}
	if predicate {
		if ot := checked.OutputType().String(); ot != "bool" && ot != "dyn" {
			return nil, &ValidationError{Reason: fmt.Sprintf("%s must evaluate to bool, got %s", name, ot)}
		}
	}
	prog, err := e.env.Program(checked, cel.CostLimit(e.costLimit))
	if err != nil {
		return nil, &ValidationError{Reason: "program " + name, Err: err}
	}
	return prog, nil
}

// ExecutePlan implements Executor. Evaluation is bounded by the program cost
// limit; the context is not consulted.
func (e *CELEngine) ExecutePlan(_ context.Context, plan any, payload json.RawMessage) (json.RawMessage, error) {
	p, ok := plan.(*Plan)
	if !ok {
		return nil, &ExecutionError{Err: fmt.Errorf("unexpected plan type %T", plan)}
	}
	if p.filter == nil && p.project == nil {
		if len(payload) == 0 {
			return json.RawMessage("null"), nil
		}
		return payload, nil
	}
	var event any
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &event); err != nil {
			event = string(payload)
		}
	}
	activation := map[string]any{
		"event":  event,
		"route":  p.Route,
		"vars":   p.vars,
		"now_ms": e.now().UnixMilli(),
	}
	if p.filter != nil {
		out, _, err := p.filter.Eval(activation)
		if err != nil {
			return nil, &ExecutionError{Route: p.Route, Err: err}
		}
		b, ok := out.Value().(bool)
		if !ok {
			return nil, &ExecutionError{Route: p.Route, Err: fmt.Errorf("filter returned %s", out.Type().TypeName())}
		}
		if !b {
			return nil, ErrSkip
		}
	}
	if p.project == nil {
		if len(payload) == 0 {
			return json.RawMessage("null"), nil
		}
		return payload, nil
	}
	out, _, err := p.project.Eval(activation)
	if err != nil {
		return nil, &ExecutionError{Route: p.Route, Err: err}
	}
	doc, err := toJSON(out)
	if err != nil {
		return nil, &ExecutionError{Route: p.Route, Err: err}
	}
	return doc, nil
}

func toJSON(v ref.Val) (json.RawMessage, error) {
	native, err := v.ConvertToNative(structValueType)
	if err != nil {
		return nil, fmt.Errorf("convert result: %w", err)
	}
	sv, ok := native.(*structpb.Value)
	if !ok {
		return nil, errors.New("convert result: unexpected native type")
	}
	return protojson.Marshal(sv)
}
