package resolver

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
)

// DefaultResolver is the default implementation wired into the controller, the gRPC server and the CLI.
//
// Every call works on a private clone of the input repository set, so one DefaultResolver can serve
// concurrent callers that share repository descriptors. The clone is returned in Result.Repositories.
type DefaultResolver struct {
	Logger logr.Logger
}

func NewDefault() *DefaultResolver {
	return &DefaultResolver{Logger: logr.Discard()}
}

func (r *DefaultResolver) Resolve(ctx context.Context, in Input) (Result, error) {
	if in.Set == nil {
		return Result{}, fmt.Errorf("%w: repository set is required", ErrConfiguration)
	}

	set, mapping := in.Set.Clone()
	requirements := make([]Requirement, 0, len(in.Requirements))
	for _, req := range in.Requirements {
		if req.Source != nil {
			cloned, ok := mapping[req.Source]
			if !ok {
				return Result{}, fmt.Errorf("%w: requirement %q pins %s, which is not part of the repository set", ErrConfiguration, req.Name, req.Source)
			}
			req.Source = cloned
		}
		requirements = append(requirements, req)
	}

	logger := r.Logger
	if logger.GetSink() == nil {
		logger = logr.Discard()
	}
	return New(set, requirements, WithMode(in.Mode), WithLogger(logger)).ResolveAll(ctx)
}
