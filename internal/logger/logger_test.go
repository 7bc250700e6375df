package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSanitizeRedactsCredentials(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	log := FromZap(zap.New(core))

	log.Info("login",
		"email", "farmer@example.com",
		"access_token", "abc",
		"user_id", "8f0c1a",
		"route", "/api/auth/login",
	)

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "[REDACTED]", fields["email"])
	assert.Equal(t, "[REDACTED]", fields["access_token"])
	assert.Contains(t, fields["user_id"], "hash:")
	assert.NotContains(t, fields["user_id"], "8f0c1a")
	assert.Equal(t, "/api/auth/login", fields["route"])
}

func TestSanitizeRedactsJWTLookingValues(t *testing.T) {
	jwt := "eyJhbGciOiJIUzI1NiJ9.eyJzdWIiOiIxMjM0NTY3ODkwIn0.sig"
	got := sanitizeKVs([]interface{}{"header", jwt})
	assert.Equal(t, []interface{}{"header", "[REDACTED]"}, got)
}

func TestSanitizeKeepsOddTrailingValue(t *testing.T) {
	got := sanitizeKVs([]interface{}{"a", 1, "dangling"})
	assert.Equal(t, []interface{}{"a", 1, "dangling"}, got)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, "debug", parseLevel("debug").String())
	assert.Equal(t, "warn", parseLevel("WARNING").String())
	assert.Equal(t, "info", parseLevel("").String())
}
