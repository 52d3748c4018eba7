// Package expressions hosts the expression engines used around the intent
// pipeline: CEL for history query predicates, Expr for the merge acceptance
// policy, and GoJQ for diagnostic transforms of pipeline context snapshots.
// All engines cache compiled programs and are safe for concurrent use.
package expressions

import "context"

// Engine evaluates an expression against a data environment.
type Engine interface {
	Name() string
	Evaluate(ctx context.Context, expression string, data map[string]any) (any, error)
}
