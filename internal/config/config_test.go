//go:build !integration

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalConfig = `
database:
  url: postgres://localhost:5432/app
redis:
  url: localhost:6379
auth:
  jwt_secret: secret
stripe:
  secret_key: sk_test
  webhook_secret: whsec_test
`

func TestLoadConfig(t *testing.T) {
	t.Run("applies defaults", func(t *testing.T) {
		cfg, err := LoadConfig(writeConfig(t, minimalConfig), false)
		if err != nil {
			t.Fatalf("LoadConfig: %v", err)
		}
		if cfg.Server.Port != 8080 {
			t.Errorf("port = %d", cfg.Server.Port)
		}
		if cfg.Log.Level != "info" || cfg.Log.Format != "json" {
			t.Errorf("log = %+v", cfg.Log)
		}
		if cfg.Stripe.SignatureTolerance != 5*time.Minute {
			t.Errorf("tolerance = %v", cfg.Stripe.SignatureTolerance)
		}
		if cfg.Sync.Workers != 4 || cfg.Sync.MaxAttempts != 10 {
			t.Errorf("sync = %+v", cfg.Sync)
		}
		if cfg.RateLimit.CheckoutPerMinute != 10 {
			t.Errorf("rate limit = %+v", cfg.RateLimit)
		}
		if cfg.Runtime.Dev {
			t.Error("dev flag set")
		}
	})

	t.Run("reads explicit values", func(t *testing.T) {
		cfg, err := LoadConfig(writeConfig(t, minimalConfig+`
server:
  port: 9000
stripe_extra: ignored
sync:
  workers: 8
  retry_interval: 30s
`), true)
		if err != nil {
			t.Fatalf("LoadConfig: %v", err)
		}
		if cfg.Server.Port != 9000 {
			t.Errorf("port = %d", cfg.Server.Port)
		}
		if cfg.Sync.Workers != 8 || cfg.Sync.RetryInterval != 30*time.Second {
			t.Errorf("sync = %+v", cfg.Sync)
		}
		if !cfg.Runtime.Dev {
			t.Error("dev flag not set")
		}
	})

	t.Run("missing required fields", func(t *testing.T) {
		cases := map[string]string{
			"database": `
redis: {url: localhost:6379}
auth: {jwt_secret: s}
stripe: {secret_key: sk, webhook_secret: wh}
`,
			"jwt secret": `
database: {url: postgres://localhost/app}
redis: {url: localhost:6379}
stripe: {secret_key: sk, webhook_secret: wh}
`,
			"webhook secret": `
database: {url: postgres://localhost/app}
redis: {url: localhost:6379}
auth: {jwt_secret: s}
stripe: {secret_key: sk}
`,
		}
		for name, content := range cases {
			t.Run(name, func(t *testing.T) {
				if _, err := LoadConfig(writeConfig(t, content), false); err == nil {
					t.Error("expected validation error")
				}
			})
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"), false); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("invalid yaml", func(t *testing.T) {
		if _, err := LoadConfig(writeConfig(t, "a: [unclosed"), false); err == nil {
			t.Error("expected parse error")
		}
	})
}
