package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"PORT", "ENVIRONMENT", "ALLOWED_ORIGINS", "MAX_UPLOAD_BYTES", "DATABASE_PATH",
	"JWT_SECRET", "ML_TYPE", "GOOGLE_PROJECT_ID", "GOOGLE_LOCATION",
	"GOOGLE_CREDENTIALS_FILE", "GEMINI_MODEL", "STATIC_PAYLOAD_FILE", "CLEANBITES_CONFIG",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "production", cfg.Server.Environment)
	assert.Equal(t, []string{"https://cleanbitesai.vercel.app", "http://localhost:3000"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, int64(10<<20), cfg.Server.MaxUploadBytes)
	assert.Equal(t, "cleanbites.db", cfg.Database.Path)
	assert.Equal(t, "google", cfg.ML.Type)
	assert.Equal(t, "us-central1", cfg.ML.Google.Location)
	assert.Equal(t, "gemini-1.5-flash", cfg.ML.Google.Model)
	assert.Empty(t, cfg.Auth.JWTSecret)
	assert.False(t, cfg.IsDevelopment())
}

func TestLoadConfig_File(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `{
		"server": {"port": "9000", "environment": "development", "allowed_origins": ["http://example.test"]},
		"database": {"path": "/tmp/test.db"},
		"ml": {"type": "static", "google": {"project_id": "proj"}},
		"auth": {"jwt_secret": "s3cret"}
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, []string{"http://example.test"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "/tmp/test.db", cfg.Database.Path)
	assert.Equal(t, "static", cfg.ML.Type)
	assert.Equal(t, "proj", cfg.ML.Google.ProjectID)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `{"server": {"port": "9000"}, "ml": {"type": "static"}}`)

	t.Setenv("PORT", "7000")
	t.Setenv("ML_TYPE", "Google")
	t.Setenv("GOOGLE_PROJECT_ID", "env-proj")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test, http://b.test,")
	t.Setenv("MAX_UPLOAD_BYTES", "1024")
	t.Setenv("JWT_SECRET", "env-secret")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "7000", cfg.Server.Port)
	assert.Equal(t, "google", cfg.ML.Type)
	assert.Equal(t, "env-proj", cfg.ML.Google.ProjectID)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, int64(1024), cfg.Server.MaxUploadBytes)
	assert.Equal(t, "env-secret", cfg.Auth.JWTSecret)
}

func TestLoadConfig_Errors(t *testing.T) {
	clearEnv(t)

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, `{"server": `))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, `{"server": {"port": "http"}}`))
	assert.Error(t, err)
}

func TestGetConfigPath(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	assert.Equal(t, "", GetConfigPath())

	require.NoError(t, os.WriteFile("config.json", []byte(`{}`), 0o600))
	assert.Equal(t, "config.json", GetConfigPath())

	require.NoError(t, os.Mkdir("config", 0o755))
	require.NoError(t, os.WriteFile(filepath.Join("config", "config.json"), []byte(`{}`), 0o600))
	assert.Equal(t, filepath.Join("config", "config.json"), GetConfigPath())

	t.Setenv("CLEANBITES_CONFIG", "/etc/cleanbites.json")
	assert.Equal(t, "/etc/cleanbites.json", GetConfigPath())
}

func TestLoadDotEnv_MissingFile(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	assert.NoError(t, LoadDotEnv())
}
