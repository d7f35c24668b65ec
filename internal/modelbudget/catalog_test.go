package modelbudget_test

import (
	"testing"

	"symposium/internal/modelbudget"
)

func TestLoadHasDefault(t *testing.T) {
	c, err := modelbudget.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	b := c.For("completely-unknown-model-xyz")
	if b.MaxContextTokens == 0 {
		t.Error("unknown model should fall back to the default budget")
	}
}

func TestForStripsRoutingPrefix(t *testing.T) {
	c, err := modelbudget.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	withPrefix := c.For("remote/claude-opus-4-6")
	bare := c.For("claude-opus-4-6")
	if withPrefix != bare {
		t.Errorf("For with routing prefix = %+v, want same as bare %+v", withPrefix, bare)
	}
}

func TestSetOverridesBudget(t *testing.T) {
	c, err := modelbudget.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	c.Set("custom-model", modelbudget.Budget{MaxContextTokens: 42, MaxMessageTokens: 7})
	got := c.For("custom-model")
	if got.MaxContextTokens != 42 || got.MaxMessageTokens != 7 {
		t.Errorf("For(custom-model) = %+v, want {42 7}", got)
	}
}
