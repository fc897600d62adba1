package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"IQ_SERVER_URL", "IQ_USERNAME", "IQ_PASSWORD", "ORGANIZATION_ID", "OUTPUT_DIR", "NUM_WORKERS"} {
		t.Setenv(key, "")
	}
}

func TestLoadYAMLFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
iq:
  url: https://iq.example.com
  username: scanner
  password: hunter2
  organizationId: org-42
export:
  outputDir: /tmp/reports
  workers: 4
  maxAttempts: 6
database:
  driver: postgres
  host: db.internal
  port: 5432
  user: iq
  password: pw
  name: exports
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://iq.example.com", cfg.IQ.URL)
	assert.Equal(t, "scanner", cfg.IQ.Username)
	assert.Equal(t, "org-42", cfg.IQ.OrganizationID)
	assert.Equal(t, "/tmp/reports", cfg.Export.OutputDir)
	assert.Equal(t, 4, cfg.Export.Workers)
	assert.Equal(t, 6, cfg.Export.MaxAttempts)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	require.NoError(t, cfg.Validate())
}

func TestLoadMissingFileIsEnvOnly(t *testing.T) {
	clearEnv(t)
	t.Setenv("IQ_SERVER_URL", "https://iq.example.com")
	t.Setenv("IQ_USERNAME", "scanner")
	t.Setenv("IQ_PASSWORD", "hunter2")

	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "https://iq.example.com", cfg.IQ.URL)
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
iq:
  url: https://file.example.com
  username: file-user
  password: file-pass
export:
  workers: 2
`)
	t.Setenv("IQ_SERVER_URL", "https://env.example.com")
	t.Setenv("OUTPUT_DIR", "/srv/out")
	t.Setenv("NUM_WORKERS", "16")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://env.example.com", cfg.IQ.URL)
	assert.Equal(t, "file-user", cfg.IQ.Username)
	assert.Equal(t, "/srv/out", cfg.Export.OutputDir)
	assert.Equal(t, 16, cfg.Export.Workers)
}

func TestDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("IQ_SERVER_URL", "https://iq.example.com/")
	t.Setenv("IQ_USERNAME", "u")
	t.Setenv("IQ_PASSWORD", "p")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	// trailing slash trimmed so path joins stay clean
	assert.Equal(t, "https://iq.example.com", cfg.IQ.URL)
	assert.Equal(t, 30, cfg.IQ.TimeoutSeconds)
	assert.Equal(t, "raw_reports", cfg.Export.OutputDir)
	assert.Equal(t, 8, cfg.Export.Workers)
	assert.Equal(t, 4, cfg.Export.MaxAttempts)
}

func TestInvalidWorkerCountIgnored(t *testing.T) {
	clearEnv(t)
	t.Setenv("NUM_WORKERS", "zero")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Export.Workers)

	t.Setenv("NUM_WORKERS", "0")
	cfg, err = Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Export.Workers)
}

func TestValidateRejectsMissingURL(t *testing.T) {
	var cfg Config
	cfg.IQ.Username = "u"
	cfg.IQ.Password = "p"
	assert.ErrorContains(t, cfg.Validate(), "url")
}

func TestValidateRejectsBlankCredentials(t *testing.T) {
	var cfg Config
	cfg.IQ.URL = "https://iq.example.com"
	cfg.IQ.Username = "   "
	cfg.IQ.Password = "p"
	assert.ErrorContains(t, cfg.Validate(), "credentials")
}

func TestValidateRejectsUnknownDriver(t *testing.T) {
	var cfg Config
	cfg.IQ.URL = "https://iq.example.com"
	cfg.IQ.Username = "u"
	cfg.IQ.Password = "p"
	cfg.Database.Driver = "oracle"
	assert.ErrorContains(t, cfg.Validate(), "oracle")
}

func TestMySQLDSN(t *testing.T) {
	var cfg Config
	cfg.Database.User = "iq"
	cfg.Database.Password = "pw"
	cfg.Database.Host = "db"
	cfg.Database.Port = 3306
	cfg.Database.Name = "exports"
	assert.Equal(t, "iq:pw@tcp(db:3306)/exports?parseTime=true&charset=utf8mb4&loc=UTC", cfg.MySQLDSN())
}

func TestPostgresDSNDefaultsSSLMode(t *testing.T) {
	var cfg Config
	cfg.Database.User = "iq"
	cfg.Database.Password = "pw"
	cfg.Database.Host = "db"
	cfg.Database.Port = 5432
	cfg.Database.Name = "exports"
	assert.Equal(t, "host=db port=5432 user=iq password=pw dbname=exports sslmode=disable", cfg.PostgresDSN())
}
