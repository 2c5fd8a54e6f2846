package config

import (
	"bytes"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validKey() string {
	return base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{1}, 32))
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func minimal(t *testing.T) string {
	t.Helper()
	body := `
app:
  env: development
  port: 9000
  read_timeout: 15s
mongo:
  uri: mongodb://localhost:27017
  database: testdb
cookie:
  key: ` + validKey() + `
security:
  hashSalt: salt
  grantKey: ` + validKey() + `
`
	return writeConfig(t, body)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(minimal(t))
	require.NoError(t, err)

	assert.Equal(t, "SWOB", cfg.Cookie.Name)
	assert.Equal(t, (2 * time.Hour).Milliseconds(), cfg.Cookie.MaxAge)
	assert.Equal(t, "Lax", cfg.Cookie.SameSite)
	assert.Equal(t, int64(5), cfg.Security.OTPAttemptLimit)
	assert.Equal(t, int64(5), cfg.Security.LoginAttemptLimit)
	assert.Equal(t, 15*time.Minute, cfg.Security.LoginAttemptWindow.Std())
	assert.Equal(t, 15*time.Second, cfg.App.ReadTimeout.Std())
}

func TestLoadRejectsMissingKeys(t *testing.T) {
	path := writeConfig(t, `
mongo:
  uri: mongodb://localhost:27017
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COOKIE_KEY")
}

func TestLoadRejectsShortKey(t *testing.T) {
	short := base64.StdEncoding.EncodeToString([]byte("too short"))
	path := writeConfig(t, `
mongo:
  uri: mongodb://localhost:27017
cookie:
  key: `+short+`
security:
  hashSalt: salt
  grantKey: `+validKey()+`
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "32 bytes")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MONGO_URI", "mongodb://override:27017")
	t.Setenv("COOKIE_NAME", "OTHER")
	t.Setenv("OTP_ATTEMPT_LIMIT", "3")

	cfg, err := Load(minimal(t))
	require.NoError(t, err)
	assert.Equal(t, "mongodb://override:27017", cfg.Mongo.URI)
	assert.Equal(t, "OTHER", cfg.Cookie.Name)
	assert.Equal(t, int64(3), cfg.Security.OTPAttemptLimit)
}

func TestRecaptchaRequiresSecret(t *testing.T) {
	path := writeConfig(t, `
mongo:
  uri: mongodb://localhost:27017
cookie:
  key: `+validKey()+`
security:
  hashSalt: salt
  grantKey: `+validKey()+`
  enableRecaptcha: true
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RECAPTCHA_SECRET")
}
