package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"

	"github.com/xenking/tripmarket-pricing/internal/issuance"
	"github.com/xenking/tripmarket-pricing/pkg/httpmiddleware"
)

const defaultAddr = "0.0.0.0:8080"

// Config is loaded from TRIP_* environment variables, flags and YAML files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (TRIP_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Coupons     CouponsConfig
	RateLimit   RateLimitConfig
	Graceful    GracefulConfig
}

// CouponsConfig shapes generated coupon codes.
type CouponsConfig struct {
	CodeLength       int     `default:"8" usage:"Length of generated coupon codes" flag:"code-length"`
	CodePrefix       string  `default:"" usage:"Prefix for generated coupon codes" flag:"code-prefix"`
	MaxIssueAttempts int     `default:"10" usage:"Attempts before giving up on a unique code" flag:"max-issue-attempts"`
	BloomCapacity    uint    `default:"1000000" usage:"Expected number of stored codes" flag:"bloom-capacity"`
	BloomFPR         float64 `default:"0.001" usage:"Bloom filter false positive rate" flag:"bloom-fpr"`
	HeldCodes        int     `default:"100000" usage:"Issued codes remembered exactly until stored" flag:"held-codes"`
}

// Issuance converts the coupon settings into an issuer config.
func (c CouponsConfig) Issuance() issuance.Config {
	return issuance.Config{
		Length:        c.CodeLength,
		Prefix:        c.CodePrefix,
		MaxAttempts:   c.MaxIssueAttempts,
		BloomCapacity: c.BloomCapacity,
		BloomFPR:      c.BloomFPR,
		HeldCapacity:  c.HeldCodes,
	}
}

// RateLimitConfig limits requests per client IP. A zero rate disables it.
type RateLimitConfig struct {
	Rate  float64 `default:"20" usage:"Sustained requests per second per client"`
	Burst int     `default:"40" usage:"Burst size per client"`
}

// Limiter builds the per-client limiter, or nil when disabled.
func (c RateLimitConfig) Limiter() *httpmiddleware.RateLimiter {
	if c.Rate <= 0 {
		return nil
	}
	return httpmiddleware.NewRateLimiter(httpmiddleware.RateLimitConfig{
		Rate:  c.Rate,
		Burst: c.Burst,
	})
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads and validates the configuration.
func LoadConfig() (*Config, error) {
	return loadConfig(aconfig.Config{
		EnvPrefix: "TRIP",
		Files:     []string{"config.yaml", "/etc/tripmarket/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
}

func loadConfig(ac aconfig.Config) (*Config, error) {
	var cfg Config
	if err := aconfig.LoaderFor(&cfg, ac).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL is required: set TRIP_DATABASE_URL or DATABASE_URL")
	}
	if c.Coupons.CodeLength < 3 || c.Coupons.CodeLength > 20 {
		return errors.Errorf("coupon code length must be within 3..20, got %d", c.Coupons.CodeLength)
	}
	if c.Coupons.BloomFPR <= 0 || c.Coupons.BloomFPR >= 1 {
		return errors.Errorf("bloom false positive rate must be within (0, 1), got %v", c.Coupons.BloomFPR)
	}
	return nil
}

// applyPlatformDefaults honours the DATABASE_URL and PORT variables that
// hosting platforms inject.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
