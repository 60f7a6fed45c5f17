package portal

import (
	"testing"
	"time"

	"github.com/caarlos0/env/v6"
)

func TestLoadConfig_FromEnvironment(t *testing.T) {
	cfg, err := loadConfig(env.Options{
		Prefix: EnvPrefix,
		Environment: map[string]string{
			"PORTAL_API_URL":   "https://api.example.com",
			"PORTAL_DEBOUNCE":  "250ms",
			"PORTAL_PAGE_SIZE": "6",
			"PORTAL_METRICS":   "true",
		},
	})
	if err != nil {
		t.Fatalf("loadConfig() error: %v", err)
	}
	if cfg.APIURL != "https://api.example.com" {
		t.Errorf("APIURL = %q", cfg.APIURL)
	}
	if cfg.Debounce != 250*time.Millisecond {
		t.Errorf("Debounce = %v, want 250ms", cfg.Debounce)
	}
	if cfg.PageSize != 6 {
		t.Errorf("PageSize = %d, want 6", cfg.PageSize)
	}
	if !cfg.MetricsEnabled {
		t.Error("MetricsEnabled should be true")
	}
	if cfg.RequestTimeout != 30*time.Second {
		t.Errorf("RequestTimeout = %v, want envDefault 30s", cfg.RequestTimeout)
	}
	if cfg.TokenKey != DefaultTokenKey {
		t.Errorf("TokenKey = %q, want %q", cfg.TokenKey, DefaultTokenKey)
	}
}

func TestLoadConfig_InvalidDuration(t *testing.T) {
	_, err := loadConfig(env.Options{
		Prefix:      EnvPrefix,
		Environment: map[string]string{"PORTAL_DEBOUNCE": "soon"},
	})
	if err == nil {
		t.Fatal("loadConfig() expected error for invalid duration")
	}
}
