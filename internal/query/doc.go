// Package query is the seam between the subscription engine and whatever
// compiles and executes subscription operations.
//
// The engine only needs two calls: CompileSubscription turns a start request
// into a field route plus an opaque plan, and ExecutePlan runs that plan against
// one published payload. CELEngine is the built-in implementation used by the
// relay binary:
//
//	query:     "orders.created"                    // field route
//	variables: {"filter": "event.total > 100",      // optional CEL predicate
//	            "select": "{'id': event.id}"}       // optional CEL projection
//
// A filter that evaluates to false makes ExecutePlan return ErrSkip, which the
// supervisor treats as "nothing to deliver".
package query
