package stakerd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeYAML(t, "listen: \":9000\"\n")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, ":9000", cfg.ListenAddress)
	require.Equal(t, filepath.Join(filepath.Dir(path), "ledger.toml"), cfg.LedgerPath)
	require.Equal(t, "info", cfg.Log.Level)
	require.Contains(t, cfg.Limits, "write")
	require.Contains(t, cfg.Limits, "read")
	require.Empty(t, cfg.Journal.DSN)
}

func TestLoadConfigSecretIndirections(t *testing.T) {
	dir := t.TempDir()
	secretPath := filepath.Join(dir, "jwt.secret")
	require.NoError(t, os.WriteFile(secretPath, []byte("  from-file \n"), 0o600))
	t.Setenv("STAKERD_TEST_DSN", "file:journal.db")

	cfg, err := LoadConfig(writeYAML(t, `
auth:
  enabled: true
  hmac_secret_file: `+secretPath+`
  clock_skew: 30s
journal:
  dsn_env: STAKERD_TEST_DSN
`))
	require.NoError(t, err)
	require.Equal(t, "from-file", cfg.Auth.HMACSecret)
	require.Equal(t, 30*time.Second, cfg.Auth.ClockSkew.Duration)
	require.Equal(t, "file:journal.db", cfg.Journal.DSN)

	t.Setenv("STAKERD_TEST_SECRET", "from-env")
	cfg, err = LoadConfig(writeYAML(t, "auth:\n  enabled: true\n  hmac_secret_env: STAKERD_TEST_SECRET\n"))
	require.NoError(t, err)
	require.Equal(t, "from-env", cfg.Auth.HMACSecret)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"auth without secret": "auth:\n  enabled: true\n",
		"empty env secret":    "auth:\n  enabled: true\n  hmac_secret_env: STAKERD_TEST_UNSET\n",
		"unknown field":       "listen: \":1\"\nsurprise: true\n",
		"bad duration":        "auth:\n  clock_skew: soon\n",
		"negative limit":      "rate_limits:\n  write:\n    requests_per_minute: -1\n",
		"bad sample ratio":    "telemetry:\n  sample_ratio: 2\n",
	}
	for name, contents := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeYAML(t, contents))
			require.Error(t, err)
		})
	}
}
