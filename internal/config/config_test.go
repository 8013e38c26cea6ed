package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fibernet/central-cliente-bfa-go/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PORTAL_API_URL", "")
	t.Setenv("WS_RECONNECT_DELAY", "")

	cfg := config.Load()

	if cfg.PortalAPIURL != "https://api.centralfiber.online/api" {
		t.Errorf("unexpected default api url: %s", cfg.PortalAPIURL)
	}
	if cfg.DashboardCacheKey != "fiber_dashboard_cache_v5_forced" {
		t.Errorf("unexpected dashboard cache key: %s", cfg.DashboardCacheKey)
	}
	if cfg.StatusCacheTTL != 20*time.Minute {
		t.Errorf("expected 20m status ttl, got %s", cfg.StatusCacheTTL)
	}
	if cfg.WSReconnectDelay != 3*time.Second {
		t.Errorf("expected 3s reconnect delay, got %s", cfg.WSReconnectDelay)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("PORTAL_ROUTES", "legacy")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("SECURE_COOKIE", "true")
	t.Setenv("HTTP_TIMEOUT", "not-a-duration")

	cfg := config.Load()

	if cfg.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Port)
	}
	if cfg.PortalRoutes != "legacy" {
		t.Errorf("expected legacy routes, got %s", cfg.PortalRoutes)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("unexpected origins: %v", cfg.AllowedOrigins)
	}
	if !cfg.SecureCookie {
		t.Error("expected secure cookie")
	}
	if cfg.HTTPTimeout != 15*time.Second {
		t.Errorf("invalid duration should fall back, got %s", cfg.HTTPTimeout)
	}
}

func TestLoadDotEnv_DoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "# comentário\nexport FIBER_TEST_A=\"from-file\"\nFIBER_TEST_B='kept'\ninvalid-line\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FIBER_TEST_A", "from-env")
	os.Unsetenv("FIBER_TEST_B")
	t.Cleanup(func() { os.Unsetenv("FIBER_TEST_B") })

	if err := config.LoadDotEnv(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := os.Getenv("FIBER_TEST_A"); got != "from-env" {
		t.Errorf("env should win, got %q", got)
	}
	if got := os.Getenv("FIBER_TEST_B"); got != "kept" {
		t.Errorf("expected value from file, got %q", got)
	}
}

func TestLoadDotEnv_MissingFile(t *testing.T) {
	if err := config.LoadDotEnv(filepath.Join(t.TempDir(), "nope.env")); err == nil {
		t.Error("expected error for missing file")
	}
}
