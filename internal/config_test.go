package internal

import (
	"strings"
	"testing"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestDefaultConfigValid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Mirror.Dir == "" {
		t.Error("default mirror dir is empty")
	}
	if cfg.Remote.BaseURL != "" {
		t.Errorf("default remote = %q, want unset", cfg.Remote.BaseURL)
	}
}

func TestMirrorConfig_DirFromEnv(t *testing.T) {
	t.Setenv("PRIMER_DIR", "/tmp/primer-elsewhere")
	if got := defaultMirrorDir(); got != "/tmp/primer-elsewhere" {
		t.Errorf("defaultMirrorDir() = %q", got)
	}
}

func TestRemoteConfig_RejectsRelativeURL(t *testing.T) {
	cfg := RemoteConfig{BaseURL: "not-a-url"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("relative base_url should fail validation")
	}
	cfg = RemoteConfig{BaseURL: "https://primers.example.com"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("absolute base_url should pass: %v", err)
	}
}

func TestRemoteConfig_TimeoutDefault(t *testing.T) {
	cfg := RemoteConfig{}
	if got := cfg.Timeout().Seconds(); got != 30 {
		t.Errorf("default timeout = %vs, want 30s", got)
	}
	cfg.TimeoutSeconds = 5
	if got := cfg.Timeout().Seconds(); got != 5 {
		t.Errorf("timeout = %vs, want 5s", got)
	}
}

func TestMirrorConfig_ConcurrencyBounds(t *testing.T) {
	cfg := MirrorConfig{Dir: "/tmp/m", Concurrency: 500}
	if err := cfg.Validate(); err == nil {
		t.Fatal("oversized concurrency should fail validation")
	}
	// Zero means "use the library default" and passes.
	cfg.Concurrency = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("zero concurrency should pass: %v", err)
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}
