package llmprovider_test

import (
	"context"
	"testing"

	"symposium/internal/llmprovider"
	"symposium/internal/llmprovider/testprovider"
)

func TestRegistryResolve(t *testing.T) {
	reg := llmprovider.NewRegistry()
	local := testprovider.New("local")
	remote := testprovider.New("remote")
	reg.Register(local)
	reg.Register(remote)

	p, route, err := reg.Resolve("local/llama3")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if p.Name() != "local" || route.Model != "llama3" {
		t.Errorf("got provider %s route %+v, want local/llama3", p.Name(), route)
	}

	if _, _, err := reg.Resolve("unknown/model-x"); err == nil {
		t.Error("Resolve with unregistered backend kind should error")
	}
}

func TestRegistryValidate(t *testing.T) {
	reg := llmprovider.NewRegistry()
	if err := reg.Validate(); err == nil {
		t.Error("Validate on empty registry should error")
	}
	reg.Register(testprovider.New("local"))
	if err := reg.Validate(); err != nil {
		t.Errorf("Validate with one provider: %v", err)
	}
}

func TestRegistryHealth(t *testing.T) {
	reg := llmprovider.NewRegistry()
	local := testprovider.New("local")
	reg.Register(local)

	health := reg.Health(context.Background())
	if err := health["local"]; err != nil {
		t.Errorf("expected healthy local provider, got %v", err)
	}
}
