package rpc

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/anvil-platform/sourcemap/internal/manifest"
	"github.com/anvil-platform/sourcemap/internal/report"
)

// toStruct converts v into a Struct through its JSON form.
func toStruct(v interface{}) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return s, nil
}

// decodeDocument reads a request. Unknown fields are rejected like they are in files.
func decodeDocument(s *structpb.Struct) (manifest.Document, error) {
	if s == nil {
		return manifest.Document{}, fmt.Errorf("request is nil")
	}
	data, err := json.Marshal(s.AsMap())
	if err != nil {
		return manifest.Document{}, fmt.Errorf("decode request: %w", err)
	}
	return manifest.Parse(data)
}

func decodeReport(s *structpb.Struct) (report.Report, error) {
	var r report.Report
	data, err := json.Marshal(s.AsMap())
	if err != nil {
		return r, fmt.Errorf("decode response: %w", err)
	}
	if err := json.Unmarshal(data, &r); err != nil {
		return r, fmt.Errorf("decode response: %w", err)
	}
	return r, nil
}
