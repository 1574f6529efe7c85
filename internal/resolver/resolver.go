package resolver

import "context"

// Resolver computes the package → repository assignment for an Input.
type Resolver interface {
	Resolve(ctx context.Context, in Input) (Result, error)
}
