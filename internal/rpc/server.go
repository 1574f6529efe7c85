package rpc

import (
	"context"
	"errors"
	"time"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/anvil-platform/sourcemap/internal/report"
	"github.com/anvil-platform/sourcemap/internal/resolver"
)

// Server implements SourceResolverServer on top of a resolver.Resolver.
type Server struct {
	resolver resolver.Resolver
	logger   logr.Logger

	requests *prometheus.CounterVec
	duration prometheus.Histogram
}

// NewServer returns a Server and registers its collectors with reg. A nil reg skips registration.
func NewServer(r resolver.Resolver, logger logr.Logger, reg prometheus.Registerer) (*Server, error) {
	s := &Server{
		resolver: r,
		logger:   logger,
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sourcemap_rpc_resolve_requests_total",
				Help: "Number of Resolve calls by gRPC status code.",
			},
			[]string{"code"},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sourcemap_rpc_resolve_duration_seconds",
				Help:    "Time taken to serve Resolve calls.",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
	if reg != nil {
		for _, c := range []prometheus.Collector{s.requests, s.duration} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return s, nil
}

// Resolve decodes a document, resolves it and returns the report.
func (s *Server) Resolve(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	start := time.Now()
	resp, err := s.resolve(ctx, req)
	s.duration.Observe(time.Since(start).Seconds())
	s.requests.WithLabelValues(status.Code(err).String()).Inc()
	if err != nil {
		s.logger.V(1).Info("resolve failed", "code", status.Code(err).String(), "error", err.Error())
	}
	return resp, err
}

func (s *Server) resolve(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	doc, err := decodeDocument(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	in, err := doc.Build()
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	result, err := s.resolver.Resolve(ctx, in)
	switch {
	case err == nil:
	case errors.Is(err, resolver.ErrSourceAmbiguity):
		return nil, status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, resolver.ErrConfiguration):
		return nil, status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return nil, status.FromContextError(err).Err()
	default:
		return nil, status.Error(codes.Internal, err.Error())
	}

	rep := report.Build(doc, in, result)
	s.logger.Info("resolved", "summary", rep.Summary())
	out, err := toStruct(rep)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}
