package app

import (
	"testing"

	"github.com/cristalhq/aconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLoader() aconfig.Config {
	return aconfig.Config{
		EnvPrefix: "TRIP",
		SkipFiles: true,
		SkipFlags: true,
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("TRIP_DATABASE_URL", "postgres://localhost/pricing")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PORT", "")

	cfg, err := loadConfig(testLoader())
	require.NoError(t, err)

	assert.Equal(t, defaultAddr, cfg.Addr)
	assert.Equal(t, "postgres://localhost/pricing", cfg.DatabaseURL)
	assert.Equal(t, 8, cfg.Coupons.CodeLength)
	assert.Equal(t, 10, cfg.Coupons.MaxIssueAttempts)
	assert.Equal(t, uint(1_000_000), cfg.Coupons.BloomCapacity)
	assert.InDelta(t, 0.001, cfg.Coupons.BloomFPR, 1e-12)
	assert.Equal(t, 100000, cfg.Coupons.HeldCodes)
	assert.InDelta(t, 20.0, cfg.RateLimit.Rate, 1e-12)
	assert.Equal(t, 40, cfg.RateLimit.Burst)
}

func TestLoadConfig_PlatformDefaults(t *testing.T) {
	t.Setenv("TRIP_DATABASE_URL", "")
	t.Setenv("DATABASE_URL", "postgres://platform/db")
	t.Setenv("PORT", "9090")

	cfg, err := loadConfig(testLoader())
	require.NoError(t, err)

	assert.Equal(t, "postgres://platform/db", cfg.DatabaseURL)
	assert.Equal(t, "0.0.0.0:9090", cfg.Addr)
}

func TestLoadConfig_ExplicitAddrWins(t *testing.T) {
	t.Setenv("TRIP_DATABASE_URL", "postgres://localhost/pricing")
	t.Setenv("TRIP_ADDR", "127.0.0.1:7000")
	t.Setenv("PORT", "9090")

	cfg, err := loadConfig(testLoader())
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7000", cfg.Addr)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "missing database",
			env:     map[string]string{"TRIP_DATABASE_URL": "", "DATABASE_URL": ""},
			wantErr: "database URL is required",
		},
		{
			name:    "code too long",
			env:     map[string]string{"TRIP_COUPONS_CODE_LENGTH": "21"},
			wantErr: "coupon code length",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TRIP_DATABASE_URL", "postgres://localhost/pricing")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := loadConfig(testLoader())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_ValidateBloomRate(t *testing.T) {
	for _, fpr := range []float64{0, 1, 1.5, -0.1} {
		cfg := Config{
			DatabaseURL: "postgres://localhost/pricing",
			Coupons:     CouponsConfig{CodeLength: 8, BloomFPR: fpr},
		}
		err := cfg.validate()
		require.Error(t, err, "fpr %v", fpr)
		assert.Contains(t, err.Error(), "bloom false positive rate")
	}
}

func TestCouponsConfig_Issuance(t *testing.T) {
	c := CouponsConfig{CodeLength: 12, CodePrefix: "SUMMER", MaxIssueAttempts: 5, BloomCapacity: 10, BloomFPR: 0.01, HeldCodes: 64}
	ic := c.Issuance()

	assert.Equal(t, 12, ic.Length)
	assert.Equal(t, "SUMMER", ic.Prefix)
	assert.Equal(t, 5, ic.MaxAttempts)
	assert.Equal(t, uint(10), ic.BloomCapacity)
	assert.Equal(t, 64, ic.HeldCapacity)
}

func TestRateLimitConfig_Limiter(t *testing.T) {
	assert.Nil(t, RateLimitConfig{}.Limiter())
	assert.NotNil(t, RateLimitConfig{Rate: 5, Burst: 10}.Limiter())
}
