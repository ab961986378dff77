package sources

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/blackcoderx/mfp/internal/model"
)

func TestAppendCreatesAndExtends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config", "swaggers.yaml")

	if err := Append(path, model.SwaggerSource{Name: "weather", SwaggerURL: "https://example.com/openapi.json"}); err != nil {
		t.Fatalf("Append (create): %v", err)
	}
	if err := Append(path, model.SwaggerSource{Name: "hotel", SwaggerURL: "./specs/hotel.yaml", IsReadOnly: true}); err != nil {
		t.Fatalf("Append (extend): %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var list model.SourceList
	if err := yaml.Unmarshal(raw, &list); err != nil {
		t.Fatal(err)
	}
	if len(list.Servers) != 2 {
		t.Fatalf("expected 2 servers, got %d", len(list.Servers))
	}
	if !list.Servers[1].IsReadOnly {
		t.Fatal("expected second source to be read-only")
	}
}

func TestAppendRejectsDuplicateName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "swaggers.yaml")
	if err := Append(path, model.SwaggerSource{Name: "weather", SwaggerURL: "u"}); err != nil {
		t.Fatal(err)
	}
	if err := Append(path, model.SwaggerSource{Name: "weather", SwaggerURL: "v"}); err == nil {
		t.Fatal("expected duplicate name to be rejected")
	}
}

func TestValidateName(t *testing.T) {
	tests := []struct {
		name string
		ok   bool
	}{
		{"weather", true},
		{"hotel_v2", true},
		{"Weather", false},
		{"2fast", false},
		{"has-dash", false},
		{"", false},
	}
	for _, tt := range tests {
		err := ValidateName(tt.name)
		if tt.ok && err != nil {
			t.Errorf("ValidateName(%q) unexpectedly failed: %v", tt.name, err)
		}
		if !tt.ok && err == nil {
			t.Errorf("ValidateName(%q) unexpectedly passed", tt.name)
		}
	}
}
