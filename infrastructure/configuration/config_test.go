package configuration

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	chdirTemp(t)
	t.Setenv("ENV", "unittest")
	t.Setenv("APP_PORT", "")
	t.Setenv("PORT", "")
	t.Setenv("DB_VENDOR", "")

	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 10001, c.App.Port)
	assert.Equal(t, "postgres", c.Database.Vendor)
	assert.Equal(t, DefaultPlatforms, c.Publish.Platforms)
	assert.Equal(t, 2*time.Minute, c.Publish.PlatformTimeout)
	assert.Equal(t, 5*time.Second, c.Publish.StoreTimeout)
	assert.Equal(t, 1, c.Publish.MaxParallel)
	assert.Equal(t, int64(256), c.Media.MaxSizeMB)
	assert.Equal(t, "http://localhost:10001/auth/youtube/callback", c.OAuth.YouTube.RedirectURI)
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	dir := chdirTemp(t)
	t.Setenv("ENV", "unittest")
	t.Setenv("PORT", "")
	t.Setenv("APP_PORT", "8088")
	t.Setenv("DB_VENDOR", "")
	t.Setenv("X_CLIENT_ID", "x-client")

	cfg := `{
  "app": {"port": 9000, "tlsEnabled": true},
  "database": {"vendor": "MySQL"},
  "publish": {"platforms": [" Instagram ", "X"], "platformTimeout": "45s", "maxParallel": 3},
  "webhooks": {"Threads": "https://hooks.example.com/threads"},
  "oauth": {"facebook": {"redirectURI": "http://localhost:9000/auth/facebook/callback"}}
}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config-unittest.json"), []byte(cfg), 0o644))

	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8088, c.App.Port, "APP_PORT wins over the config file")
	assert.True(t, c.App.TLSEnabled)
	assert.Equal(t, "mysql", c.Database.Vendor)
	assert.Equal(t, []string{"instagram", "x"}, c.Publish.Platforms)
	assert.Equal(t, 45*time.Second, c.Publish.PlatformTimeout)
	assert.Equal(t, 3, c.Publish.MaxParallel)
	assert.Equal(t, "https://hooks.example.com/threads", c.Webhooks["threads"])
	assert.Equal(t, "x-client", c.OAuth.X.ClientID)
	assert.Equal(t, "https://localhost:9000/auth/facebook/callback", c.OAuth.Facebook.RedirectURI)
}

func TestLoad_EnvFileDoesNotOverrideProcessEnv(t *testing.T) {
	dir := chdirTemp(t)
	t.Setenv("ENV", "unittest")
	t.Setenv("SECRET_KEY", "from-process")
	envFile := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("SECRET_KEY=from-file\n"), 0o644))

	c, err := Load(envFile)
	require.NoError(t, err)
	assert.Equal(t, "from-process", c.App.SecretKey)
}

func TestValidate(t *testing.T) {
	c := &Config{App: App{Port: 10001}, Database: Database{Vendor: "postgres"}, Publish: Publish{MaxParallel: 1}}
	require.NoError(t, c.Validate())

	bad := *c
	bad.Database.Vendor = "oracle"
	assert.Error(t, bad.Validate())

	bad = *c
	bad.App.Port = 0
	assert.Error(t, bad.Validate())

	bad = *c
	bad.Publish.MaxParallel = 0
	assert.Error(t, bad.Validate())
}
