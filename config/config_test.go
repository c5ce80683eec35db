package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func validConfig() *Config {
	return &Config{
		Server:   ServerConfig{RequestTimeout: 5 * time.Second},
		Database: DatabaseConfig{Driver: DriverSQLite, SQLitePath: ":memory:"},
		Identity: IdentityConfig{Secret: "identity-secret"},
		Payment: PaymentConfig{
			KeyID:     "rzp_test_key",
			KeySecret: "rzp_test_secret",
			Currency:  "INR",
			Timeout:   time.Second,
		},
	}
}

func TestLoad_FromFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  request_timeout: 20s
database:
  driver: sqlite
  sqlite_path: /tmp/test.db
payment:
  key_id: rzp_test_abc
  key_secret: shh
  timeout: 3s
identity:
  project_id: chat-app
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 20*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "rzp_test_abc", cfg.Payment.KeyID)
	assert.Equal(t, 3*time.Second, cfg.Payment.Timeout)
	// 未配置的字段使用默认值
	assert.Equal(t, "INR", cfg.Payment.Currency)
	assert.Equal(t, "https://api.razorpay.com/v1", cfg.Payment.BaseURL)
	assert.Equal(t, uint32(5), cfg.Payment.BreakerFailures)
	assert.Equal(t, 10*time.Second, cfg.Lock.TTL)
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeConfig(t, `
payment:
  key_id: from_file
`)
	t.Setenv("PAYMENT_KEY_ID", "from_env")
	t.Setenv("PAYMENT_KEY_SECRET", "secret_from_env")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from_env", cfg.Payment.KeyID)
	assert.Equal(t, "secret_from_env", cfg.Payment.KeySecret)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, DriverMySQL, cfg.Database.Driver)
	assert.Equal(t, 15*time.Second, cfg.Server.RequestTimeout)
}

func TestLoad_PrefersLocalConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 1111
`)
	local := filepath.Join(filepath.Dir(path), "config.local.yaml")
	require.NoError(t, os.WriteFile(local, []byte("server:\n  port: 2222\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2222, cfg.Server.Port)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing key id",
			mutate:  func(c *Config) { c.Payment.KeyID = "" },
			wantErr: "payment.key_id is required",
		},
		{
			name:    "missing key secret",
			mutate:  func(c *Config) { c.Payment.KeySecret = "" },
			wantErr: "payment.key_secret is required",
		},
		{
			name: "missing identity key",
			mutate: func(c *Config) {
				c.Identity.Secret = ""
				c.Identity.PublicKeysFile = ""
			},
			wantErr: "identity.secret or identity.public_keys_file is required",
		},
		{
			name: "public keys file is enough",
			mutate: func(c *Config) {
				c.Identity.Secret = ""
				c.Identity.PublicKeysFile = "keys.json"
			},
		},
		{
			name:    "mongo without uri",
			mutate:  func(c *Config) { c.Database.Driver = DriverMongo },
			wantErr: "mongo.uri is required",
		},
		{
			name:    "unknown driver",
			mutate:  func(c *Config) { c.Database.Driver = "oracle" },
			wantErr: `unsupported database.driver "oracle"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestIdentityIssuerAndAudience(t *testing.T) {
	c := IdentityConfig{ProjectID: "chat-app"}
	assert.Equal(t, "https://securetoken.google.com/chat-app", c.IdentityIssuer())
	assert.Equal(t, "chat-app", c.IdentityAudience())

	c = IdentityConfig{ProjectID: "chat-app", Issuer: "custom", Audience: "aud"}
	assert.Equal(t, "custom", c.IdentityIssuer())
	assert.Equal(t, "aud", c.IdentityAudience())

	assert.Empty(t, IdentityConfig{}.IdentityIssuer())
}
