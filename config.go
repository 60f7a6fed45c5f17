package portal

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v6"
)

// Defaults applied by NewClient to zero-valued Config fields.
const (
	DefaultRequestTimeout = 30 * time.Second
	DefaultDebounce       = 600 * time.Millisecond
	DefaultTokenKey       = "authToken"
)

// EnvPrefix is the prefix of every environment variable read by LoadConfig.
const EnvPrefix = "PORTAL_"

// Config holds connection and behavior configuration.
type Config struct {
	// APIURL is the base URL of the REST API (e.g. "https://api.example.com").
	// When empty every request short-circuits with status 998.
	APIURL string `env:"API_URL"`

	// TokenFile is where the bearer token is persisted. Empty keeps it in memory.
	TokenFile string `env:"TOKEN_FILE"`

	// TokenKey is the well-known key the token is stored under.
	TokenKey string `env:"TOKEN_KEY" envDefault:"authToken"`

	// JWKSUrl enables signature-verified token decoding when set.
	JWKSUrl string `env:"JWKS_URL"`

	// RequestTimeout bounds every HTTP call. Default: 30s.
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`

	// Debounce is how long a search term must be stable before a list reloads.
	// Default: 600ms.
	Debounce time.Duration `env:"DEBOUNCE" envDefault:"600ms"`

	// PageSize is the default list page size. Default: 5.
	PageSize int `env:"PAGE_SIZE" envDefault:"5"`

	MetricsEnabled bool   `env:"METRICS" envDefault:"false"`
	LogLevel       string `env:"LOG_LEVEL" envDefault:"INFO"`
}

// LoadConfig reads Config from PORTAL_* environment variables.
func LoadConfig() (Config, error) {
	return loadConfig(env.Options{Prefix: EnvPrefix})
}

func loadConfig(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("portal: read config: %w", err)
	}
	return cfg, nil
}

// Resolved returns c with defaults applied, or an error for invalid values.
func (c Config) Resolved() (Config, error) {
	if err := c.validate(); err != nil {
		return Config{}, err
	}
	c.applyDefaults()
	return c, nil
}

func (c *Config) applyDefaults() {
	if c.RequestTimeout == 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.Debounce == 0 {
		c.Debounce = DefaultDebounce
	}
	if c.PageSize == 0 {
		c.PageSize = DefaultPageSize
	}
	if c.TokenKey == "" {
		c.TokenKey = DefaultTokenKey
	}
}

func (c Config) validate() error {
	if c.RequestTimeout < 0 {
		return fmt.Errorf("portal: RequestTimeout must not be negative")
	}
	if c.Debounce < 0 {
		return fmt.Errorf("portal: Debounce must not be negative")
	}
	if c.PageSize < 0 {
		return fmt.Errorf("portal: PageSize must not be negative")
	}
	return nil
}
