package main

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/anvil-platform/sourcemap/internal/resolver"
	"github.com/anvil-platform/sourcemap/internal/rpc"
)

func main() {
	var listenAddr string
	var metricsAddr string
	flag.StringVar(&listenAddr, "listen", ":50051", "address to listen on")
	flag.StringVar(&metricsAddr, "metrics-bind-address", ":9090", "address the /metrics endpoint binds to; empty disables it")

	opts := zap.Options{}
	opts.BindFlags(flag.CommandLine)
	flag.Parse()

	logger := zap.New(zap.UseFlagOptions(&opts))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	core := &resolver.DefaultResolver{Logger: logger.WithName("resolver")}
	srv, err := rpc.NewServer(core, logger.WithName("rpc"), reg)
	if err != nil {
		panic(fmt.Errorf("create server: %w", err))
	}

	lis, err := net.Listen("tcp", listenAddr)
	if err != nil {
		panic(fmt.Errorf("listen %s: %w", listenAddr, err))
	}

	grpcServer := grpc.NewServer()
	rpc.RegisterSourceResolverServer(grpcServer, srv)

	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		metricsServer := &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error(err, "metrics server stopped")
			}
		}()
		defer metricsServer.Close()
	}

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		logger.Info("shutting down")
		grpcServer.GracefulStop()
	}()

	logger.Info("serving", "listen", listenAddr, "metrics", metricsAddr)
	if err := grpcServer.Serve(lis); err != nil {
		panic(fmt.Errorf("grpc serve: %w", err))
	}
}
