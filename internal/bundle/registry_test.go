package bundle

import (
	"errors"
	"testing"

	"go.uber.org/zap"
)

func testBundle(name, target string) *Bundle {
	return &Bundle{
		Manifest: &Manifest{
			Name:   name,
			Target: target,
			dir:    "/tmp/" + name,
		},
	}
}

func TestRegistry_Register(t *testing.T) {
	registry := NewRegistry(zap.NewNop())

	if err := registry.Register(testBundle("questmind", TargetWASIP1)); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}

	if registry.Count() != 1 {
		t.Errorf("expected count 1, got %d", registry.Count())
	}
}

func TestRegistry_Duplicate(t *testing.T) {
	registry := NewRegistry(zap.NewNop())

	if err := registry.Register(testBundle("questmind", TargetWASIP1)); err != nil {
		t.Fatalf("first Register() failed: %v", err)
	}

	err := registry.Register(testBundle("questmind", TargetJS))
	var dup *AlreadyRegisteredError
	if !errors.As(err, &dup) {
		t.Fatalf("expected AlreadyRegisteredError, got %T", err)
	}
	if dup.BundleName != "questmind" {
		t.Errorf("BundleName = %s, want questmind", dup.BundleName)
	}

	if got := len(registry.LookupByTarget(TargetJS)); got != 0 {
		t.Errorf("rejected bundle must not be indexed, got %d js bundles", got)
	}
}

func TestRegistry_Get(t *testing.T) {
	registry := NewRegistry(zap.NewNop())
	b := testBundle("questmind", TargetWASIP1)
	_ = registry.Register(b)

	got, ok := registry.Get("questmind")
	if !ok {
		t.Fatal("Get() should find registered bundle")
	}
	if got != b {
		t.Error("Get() returned a different bundle")
	}

	if _, ok := registry.Get("missing"); ok {
		t.Error("Get() should not find unregistered bundle")
	}
}

func TestRegistry_LookupByTarget(t *testing.T) {
	registry := NewRegistry(zap.NewNop())
	_ = registry.Register(testBundle("questmind", TargetWASIP1))
	_ = registry.Register(testBundle("questmind-next", TargetWASIP1))
	_ = registry.Register(testBundle("questmind-js", TargetJS))

	if got := len(registry.LookupByTarget(TargetWASIP1)); got != 2 {
		t.Errorf("expected 2 wasip1 bundles, got %d", got)
	}
	if got := len(registry.LookupByTarget(TargetJS)); got != 1 {
		t.Errorf("expected 1 js bundle, got %d", got)
	}
	if got := registry.LookupByTarget("wasip2"); len(got) != 0 {
		t.Errorf("expected no bundles for unknown target, got %d", len(got))
	}

	// The returned slice is a copy.
	result := registry.LookupByTarget(TargetWASIP1)
	result[0] = nil
	if registry.LookupByTarget(TargetWASIP1)[0] == nil {
		t.Error("LookupByTarget() must not expose the index")
	}
}

func TestRegistry_List(t *testing.T) {
	registry := NewRegistry(zap.NewNop())
	_ = registry.Register(testBundle("zeta", TargetWASIP1))
	_ = registry.Register(testBundle("alpha", TargetJS))

	list := registry.List()
	if len(list) != 2 {
		t.Fatalf("expected 2 bundles, got %d", len(list))
	}
	if list[0].Name() != "alpha" || list[1].Name() != "zeta" {
		t.Errorf("List() not sorted by name: %s, %s", list[0].Name(), list[1].Name())
	}
}

func TestRegistry_Unregister(t *testing.T) {
	registry := NewRegistry(zap.NewNop())
	_ = registry.Register(testBundle("questmind", TargetWASIP1))
	_ = registry.Register(testBundle("other", TargetWASIP1))

	registry.Unregister("questmind")

	if registry.Count() != 1 {
		t.Errorf("expected count 1 after unregister, got %d", registry.Count())
	}
	if _, ok := registry.Get("questmind"); ok {
		t.Error("unregistered bundle still present")
	}
	wasip1 := registry.LookupByTarget(TargetWASIP1)
	if len(wasip1) != 1 || wasip1[0].Name() != "other" {
		t.Error("unregistered bundle still indexed by target")
	}

	// Unknown names are ignored.
	registry.Unregister("missing")
	if registry.Count() != 1 {
		t.Errorf("expected count 1, got %d", registry.Count())
	}
}
