package credentials

import (
	"context"
	"os"
	"testing"

	"github.com/blackcoderx/mfp/internal/config"
)

func TestResolveEnv(t *testing.T) {
	os.Setenv("MFP_TEST_TOKEN", "secret-value")
	defer os.Unsetenv("MFP_TEST_TOKEN")

	resolved, unresolved := ResolveEnv("Bearer ${MFP_TEST_TOKEN}")
	if resolved != "Bearer secret-value" {
		t.Fatalf("unexpected resolution: %q", resolved)
	}
	if len(unresolved) != 0 {
		t.Fatalf("expected no unresolved vars, got %v", unresolved)
	}
}

func TestResolveEnvUnresolvedLeftLiteral(t *testing.T) {
	resolved, unresolved := ResolveEnv("Bearer ${MFP_DOES_NOT_EXIST}")
	if resolved != "Bearer ${MFP_DOES_NOT_EXIST}" {
		t.Fatalf("expected literal passthrough, got %q", resolved)
	}
	if len(unresolved) != 1 || unresolved[0] != "MFP_DOES_NOT_EXIST" {
		t.Fatalf("expected one unresolved var, got %v", unresolved)
	}
}

func TestMaterialize(t *testing.T) {
	os.Setenv("MFP_TEST_AUTH_TOKEN", "tok123")
	defer os.Unsetenv("MFP_TEST_AUTH_TOKEN")

	cfg := &config.Config{}
	env, unresolved := Materialize(context.Background(), cfg, "weather", "https://api.example.com", "Bearer ${MFP_TEST_AUTH_TOKEN}")
	if env["MFP_WEATHER_BASE_URL"] != "https://api.example.com" {
		t.Fatalf("unexpected base url env: %v", env)
	}
	if env["MFP_WEATHER_AUTH"] != "Bearer tok123" {
		t.Fatalf("unexpected auth env: %v", env)
	}
	if len(unresolved) != 0 {
		t.Fatalf("unexpected unresolved: %v", unresolved)
	}
}

func TestMask(t *testing.T) {
	if Mask("short") != "****" {
		t.Fatal("short secret should fully mask")
	}
	if got := Mask("sk-1234567890abcdef"); got != "sk-1...cdef" {
		t.Fatalf("unexpected mask: %q", got)
	}
}

func TestIsOAuth2Spec(t *testing.T) {
	if !IsOAuth2Spec("oauth2:https://auth.example.com/token:CLIENT_ID_ENV:CLIENT_SECRET_ENV") {
		t.Fatal("expected oauth2 spec to be detected")
	}
	if IsOAuth2Spec("Bearer ${TOKEN}") {
		t.Fatal("did not expect oauth2 spec")
	}
}
