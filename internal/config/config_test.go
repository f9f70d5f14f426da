package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testPasetoKey     = "0123456789abcdef0123456789abcdef"
	testSessionSecret = "session-secret-session-secret-32b"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("PASETO_KEY", testPasetoKey)
	t.Setenv("SESSION_SECRET", testSessionSecret)
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.Server.Port)
	assert.True(t, cfg.Server.IsDevelopment())
	assert.Equal(t, 5*time.Second, cfg.Database.OperationTimeout)
	assert.Equal(t, 14*24*time.Hour, cfg.Session.MaxAge)
	assert.Equal(t, "local", cfg.Storage.Driver)
	assert.False(t, cfg.AccessLog.VerifyReferences)
	assert.False(t, cfg.MQTT.Enabled)
	assert.Equal(t, "localhost:6379", cfg.Redis.Address())
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("SESSION_MAX_AGE", "60")
	t.Setenv("MAIL_STRING", "@example.org")
	t.Setenv("ACCESSLOG_VERIFY_REFERENCES", "true")
	t.Setenv("TRUSTED_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("APP_URL", "https://locks.example/")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, time.Minute, cfg.Session.MaxAge)
	assert.Equal(t, "@example.org", cfg.Auth.RequiredEmailMarker)
	assert.True(t, cfg.AccessLog.VerifyReferences)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.TrustedOrigins)
	assert.Equal(t, "https://locks.example", cfg.Email.AppURL)
}

func TestLoad_RejectsShortKeys(t *testing.T) {
	t.Setenv("PASETO_KEY", "short")
	t.Setenv("SESSION_SECRET", testSessionSecret)

	_, err := Load()
	assert.ErrorContains(t, err, "PASETO_KEY")

	t.Setenv("PASETO_KEY", testPasetoKey)
	t.Setenv("SESSION_SECRET", "short")

	_, err = Load()
	assert.ErrorContains(t, err, "SESSION_SECRET")
}

func TestLoad_S3RequiresBucket(t *testing.T) {
	setRequired(t)
	t.Setenv("STORAGE_DRIVER", "s3")

	_, err := Load()
	assert.ErrorContains(t, err, "S3_BUCKET")
}

func TestConnectionString_ChannelBinding(t *testing.T) {
	c := DatabaseConfig{Host: "h", Port: "1", User: "u", Password: "p", DBName: "d", SSLMode: "require", ChannelBinding: "require"}
	assert.Equal(t, "host=h port=1 user=u password=p dbname=d sslmode=require channel_binding=require", c.ConnectionString())
}
