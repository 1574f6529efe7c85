package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/anvil-platform/sourcemap/internal/manifest"
	"github.com/anvil-platform/sourcemap/internal/report"
	"github.com/anvil-platform/sourcemap/internal/rpc"
)

func main() {
	var target string
	var file string
	var strict bool
	flag.StringVar(&target, "target", "127.0.0.1:50051", "gRPC server address")
	flag.StringVar(&file, "f", "", "manifest file to resolve")
	flag.BoolVar(&strict, "strict", false, "fail on source ambiguity")
	flag.Parse()

	if file == "" {
		fmt.Fprintln(os.Stderr, "-f is required")
		os.Exit(2)
	}
	doc, err := manifest.Load(file)
	if err != nil {
		panic(err)
	}
	if strict {
		doc.Strict = true
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		panic(fmt.Errorf("dial %s: %w", target, err))
	}
	defer conn.Close()

	rep, err := rpc.NewClient(conn).Resolve(ctx, doc)
	if err != nil {
		st := status.Convert(err)
		fmt.Printf("Resolve error: code=%s message=%q\n", st.Code(), st.Message())
		return
	}

	fmt.Printf("Resolve ok: %s\n", rep.Summary())
	if err := rep.Encode(os.Stdout, report.FormatYAML); err != nil {
		panic(err)
	}
}
