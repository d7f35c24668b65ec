package llmprovider

import "testing"

func TestParseModel(t *testing.T) {
	tests := []struct {
		name     string
		modelStr string
		wantKind string
		wantID   string
		wantErr  bool
	}{
		{name: "explicit local", modelStr: "local/llama3", wantKind: "local", wantID: "llama3"},
		{name: "explicit remote", modelStr: "remote/claude-sonnet-4-8", wantKind: "remote", wantID: "claude-sonnet-4-8"},
		{name: "inferred claude prefix", modelStr: "claude-haiku-4-5", wantKind: "remote", wantID: "claude-haiku-4-5"},
		{name: "inferred gpt prefix", modelStr: "gpt-5", wantKind: "remote", wantID: "gpt-5"},
		{name: "inferred local daemon model", modelStr: "llama3", wantKind: "local", wantID: "llama3"},
		{name: "empty string", modelStr: "", wantErr: true},
		{name: "unknown backend kind", modelStr: "bedrock/claude-haiku", wantErr: true},
		{name: "missing model after slash", modelStr: "local/", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			route, err := ParseModel(tt.modelStr)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseModel(%q) = nil error, want error", tt.modelStr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseModel(%q) unexpected error: %v", tt.modelStr, err)
			}
			if route.Kind != tt.wantKind || route.Model != tt.wantID {
				t.Errorf("ParseModel(%q) = %+v, want kind=%s model=%s", tt.modelStr, route, tt.wantKind, tt.wantID)
			}
		})
	}
}
