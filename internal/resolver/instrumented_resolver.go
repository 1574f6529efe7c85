package resolver

import (
	"context"
	"time"
)

// InstrumentedResolver reports how long each resolution took, split by outcome.
type InstrumentedResolver struct {
	resolver              Resolver
	successMetricsEmitter func(time.Duration)
	failureMetricsEmitter func(time.Duration)
}

var _ Resolver = &InstrumentedResolver{}

func NewInstrumentedResolver(resolver Resolver, successMetricsEmitter, failureMetricsEmitter func(time.Duration)) *InstrumentedResolver {
	return &InstrumentedResolver{
		resolver:              resolver,
		successMetricsEmitter: successMetricsEmitter,
		failureMetricsEmitter: failureMetricsEmitter,
	}
}

func (ir *InstrumentedResolver) Resolve(ctx context.Context, in Input) (Result, error) {
	start := time.Now()
	result, err := ir.resolver.Resolve(ctx, in)
	if err != nil {
		ir.failureMetricsEmitter(time.Since(start))
	} else {
		ir.successMetricsEmitter(time.Since(start))
	}
	return result, err
}
