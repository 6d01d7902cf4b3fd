package graph

import (
	"reflect"
	"testing"

	"github.com/Masterminds/semver/v3"

	"github.com/freighter-dev/freighter/internal/errors"
	"github.com/freighter-dev/freighter/internal/manifest"
)

// desc builds a descriptor with the given name and internal deps.
func desc(name string, deps ...string) *manifest.Descriptor {
	return &manifest.Descriptor{
		Name:         name,
		Version:      semver.MustParse("1.0.0"),
		InternalDeps: deps,
		Registry:     manifest.RegistryDefault,
	}
}

func TestBuildTiers(t *testing.T) {
	g, err := Build([]*manifest.Descriptor{
		desc("app", "lib"),
		desc("lib", "core", "util"),
		desc("core"),
		desc("util"),
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	want := [][]string{
		{"core", "util"},
		{"lib"},
		{"app"},
	}
	if got := g.Tiers(); !reflect.DeepEqual(got, want) {
		t.Errorf("Tiers() = %v, want %v", got, want)
	}
}

func TestTierInvariant(t *testing.T) {
	// Diamond plus a long chain: every edge must cross tiers downward.
	descs := []*manifest.Descriptor{
		desc("a"),
		desc("b", "a"),
		desc("c", "a"),
		desc("d", "b", "c"),
		desc("e", "d", "a"),
	}
	g, err := Build(descs)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	for _, d := range descs {
		for _, dep := range d.InternalDeps {
			if g.Tier(d.Name) <= g.Tier(dep) {
				t.Errorf("tier(%s)=%d must be greater than tier(%s)=%d",
					d.Name, g.Tier(d.Name), dep, g.Tier(dep))
			}
		}
	}
}

func TestTiersDeterministic(t *testing.T) {
	build := func() [][]string {
		g, err := Build([]*manifest.Descriptor{
			desc("zeta"),
			desc("alpha"),
			desc("mid", "zeta", "alpha"),
		})
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		return g.Tiers()
	}

	first := build()
	for i := 0; i < 10; i++ {
		if got := build(); !reflect.DeepEqual(got, first) {
			t.Fatalf("plan is not deterministic: %v vs %v", got, first)
		}
	}
	if !reflect.DeepEqual(first[0], []string{"alpha", "zeta"}) {
		t.Errorf("ties must break by name: %v", first[0])
	}
}

func TestBuildRejectsCycle(t *testing.T) {
	_, err := Build([]*manifest.Descriptor{
		desc("a", "b"),
		desc("b", "c"),
		desc("c", "a"),
	})
	if !errors.Is(err, errors.ErrDependencyCycle) {
		t.Fatalf("expected ErrDependencyCycle, got %v", err)
	}

	var ge *errors.GraphError
	if !errors.As(err, &ge) {
		t.Fatal("expected a GraphError")
	}
	if len(ge.Cycle) < 4 {
		t.Fatalf("cycle should enumerate all members and close the loop, got %v", ge.Cycle)
	}
	members := map[string]bool{}
	for _, n := range ge.Cycle {
		members[n] = true
	}
	for _, n := range []string{"a", "b", "c"} {
		if !members[n] {
			t.Errorf("cycle should name %q, got %v", n, ge.Cycle)
		}
	}
	if ge.Cycle[0] != ge.Cycle[len(ge.Cycle)-1] {
		t.Errorf("cycle should close the loop: %v", ge.Cycle)
	}
}

func TestBuildRejectsUnknownDependency(t *testing.T) {
	_, err := Build([]*manifest.Descriptor{
		desc("app", "ghost"),
	})
	if !errors.Is(err, errors.ErrUnknownDependency) {
		t.Fatalf("expected ErrUnknownDependency, got %v", err)
	}

	var ge *errors.GraphError
	if !errors.As(err, &ge) {
		t.Fatal("expected a GraphError")
	}
	if ge.Package != "app" || ge.Dependency != "ghost" {
		t.Errorf("expected package/dependency context, got %+v", ge)
	}
}

func TestDependentsClosure(t *testing.T) {
	g, err := Build([]*manifest.Descriptor{
		desc("core"),
		desc("lib", "core"),
		desc("app", "lib"),
		desc("standalone"),
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	want := []string{"app", "lib"}
	if got := g.Dependents("core"); !reflect.DeepEqual(got, want) {
		t.Errorf("Dependents(core) = %v, want %v", got, want)
	}
	if got := g.Dependents("standalone"); len(got) != 0 {
		t.Errorf("Dependents(standalone) = %v, want empty", got)
	}
}

func TestValidatePasses(t *testing.T) {
	g, err := Build([]*manifest.Descriptor{desc("core"), desc("lib", "core")})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := g.Validate(); err != nil {
		t.Errorf("Validate on a good graph: %v", err)
	}
}
