package resolver

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestDefaultResolver_LeavesInputRepositoriesUntouched(t *testing.T) {
	def := NewRepository("rubygems", "rack")
	private := NewRepository("private", "a", "b")
	set := mustSet(t, def, []*Repository{private}, nil)

	in := Input{
		Set:          set,
		Requirements: []Requirement{{Name: "a", Source: private, SubDependencyNames: []string{"b"}}, {Name: "rack"}},
	}
	result, err := NewDefault().Resolve(context.Background(), in)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}

	if result.RepositoryFor("b") != "private" {
		t.Fatalf("expected b from private, got %q", result.RepositoryFor("b"))
	}
	if diff := cmp.Diff([]string{"a", "b", "rack"}, result.Names()); diff != "" {
		t.Fatalf("names mismatch (-want +got):\n%s", diff)
	}
	if len(private.RequestedNames()) != 0 || len(def.RequestedNames()) != 0 {
		t.Fatalf("expected input repositories to stay untouched")
	}

	cloned, ok := result.Repositories.Lookup("private")
	if !ok {
		t.Fatalf("expected private in the result's repository set")
	}
	if diff := cmp.Diff([]string{"a", "b"}, cloned.RequestedNames()); diff != "" {
		t.Fatalf("cloned requested names mismatch (-want +got):\n%s", diff)
	}
}

func TestDefaultResolver_ConcurrentCallsShareDescriptors(t *testing.T) {
	def := NewRepository("rubygems")
	alpha := NewRepository("alpha", "a", "c")
	beta := NewRepository("beta", "b", "c")
	in := Input{
		Set:          mustSet(t, def, []*Repository{alpha, beta}, nil),
		Mode:         ModeRelaxed,
		Requirements: []Requirement{{Name: "a", Source: alpha}, {Name: "b", Source: beta}},
	}

	r := NewDefault()
	var wg sync.WaitGroup
	results := make([]Result, 8)
	errs := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = r.Resolve(context.Background(), in)
		}(i)
	}
	wg.Wait()

	for i := range results {
		if errs[i] != nil {
			t.Fatalf("call %d: %v", i, errs[i])
		}
		if results[i].RepositoryFor("c") != "alpha" || len(results[i].Conflicts) != 1 {
			t.Fatalf("call %d: unexpected result %v / %+v", i, results[i].Names(), results[i].Conflicts)
		}
	}
}

func TestDefaultResolver_RejectsForeignSource(t *testing.T) {
	set := mustSet(t, NewRepository("rubygems"), nil, nil)

	_, err := NewDefault().Resolve(context.Background(), Input{
		Set:          set,
		Requirements: []Requirement{{Name: "a", Source: NewRepository("elsewhere")}},
	})
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}

	if _, err := NewDefault().Resolve(context.Background(), Input{}); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration without a set, got %v", err)
	}
}

type stubResolver struct {
	err error
}

func (s stubResolver) Resolve(context.Context, Input) (Result, error) {
	return Result{}, s.err
}

func TestInstrumentedResolver_EmitsByOutcome(t *testing.T) {
	var successes, failures int
	success := func(time.Duration) { successes++ }
	failure := func(time.Duration) { failures++ }

	if _, err := NewInstrumentedResolver(stubResolver{}, success, failure).Resolve(context.Background(), Input{}); err != nil {
		t.Fatalf("Resolve error: %v", err)
	}

	boom := errors.New("boom")
	if _, err := NewInstrumentedResolver(stubResolver{err: boom}, success, failure).Resolve(context.Background(), Input{}); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	if successes != 1 || failures != 1 {
		t.Fatalf("expected one success and one failure, got %d and %d", successes, failures)
	}
}

func TestInput_Graph(t *testing.T) {
	in := Input{Requirements: []Requirement{
		{Name: "rack", Version: "3.0.9", SubDependencyNames: []string{"rack-test"}},
		{Name: "acme-auth", SubDependencyNames: []string{"jwt", "rack-test"}},
	}}

	g := in.Graph()
	if len(g.Nodes) != 2 || g.Nodes[0].Name != "rack" || g.Nodes[0].Version != "3.0.9" {
		t.Fatalf("unexpected nodes: %+v", g.Nodes)
	}
	if diff := cmp.Diff([]string{"acme-auth", "jwt", "rack", "rack-test"}, g.Names()); diff != "" {
		t.Fatalf("names mismatch (-want +got):\n%s", diff)
	}
	if len(g.Edges()) != 3 {
		t.Fatalf("expected 3 edges, got %+v", g.Edges())
	}
}
