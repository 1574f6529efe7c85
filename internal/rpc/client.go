package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/anvil-platform/sourcemap/internal/manifest"
	"github.com/anvil-platform/sourcemap/internal/report"
)

// Client calls a remote SourceResolver.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Resolve sends doc and decodes the returned report. Server errors are returned as gRPC status errors.
func (c *Client) Resolve(ctx context.Context, doc manifest.Document, opts ...grpc.CallOption) (report.Report, error) {
	in, err := toStruct(doc)
	if err != nil {
		return report.Report{}, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, resolveFullMethod, in, out, opts...); err != nil {
		return report.Report{}, err
	}
	return decodeReport(out)
}
