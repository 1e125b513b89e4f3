package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrSkip is returned by ExecutePlan when the plan filtered the event out.
var ErrSkip = errors.New("query: event filtered")

// Request is a subscription operation as sent by a client.
type Request struct {
	Query         string
	OperationName string
	Variables     map[string]interface{}
}

// Compiled is the result of a successful compilation.
type Compiled struct {
	// Route is the dotted field route the subscription listens on.
	Route string
	// Plan is reused for every matching event.
	Plan any
}

// Compiler validates subscription operations.
type Compiler interface {
	CompileSubscription(ctx context.Context, req Request) (Compiled, error)
}

// Executor runs compiled plans against event payloads.
type Executor interface {
	ExecutePlan(ctx context.Context, plan any, payload json.RawMessage) (json.RawMessage, error)
}

// Engine compiles and executes.
type Engine interface {
	Compiler
	Executor
}

// ValidationError reports a request that cannot become a subscription.
type ValidationError struct {
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *ValidationError) Unwrap() error { return e.Err }

// ExecutionError reports a plan that failed for one payload.
type ExecutionError struct {
	Route string
	Err   error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execute %s: %v", e.Route, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Funcs adapts plain functions to Engine.
type Funcs struct {
	Compile func(ctx context.Context, req Request) (Compiled, error)
	Execute func(ctx context.Context, plan any, payload json.RawMessage) (json.RawMessage, error)
}

// CompileSubscription implements Compiler.
func (f Funcs) CompileSubscription(ctx context.Context, req Request) (Compiled, error) {
	return f.Compile(ctx, req)
}

// ExecutePlan implements Executor. A nil Execute passes the payload through.
func (f Funcs) ExecutePlan(ctx context.Context, plan any, payload json.RawMessage) (json.RawMessage, error) {
	if f.Execute == nil {
		return payload, nil
	}
	return f.Execute(ctx, plan, payload)
}
