// Copyright (C) 2025 Bering AI (dev@beringchat.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets every variable the config reads so t.Setenv calls in
// the test body fully control the environment. The t.Setenv call first
// registers restoration of any ambient value.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CHAT_PORT", "JWT_SECRET_KEY", "JWT_ALGORITHM", "JWT_EXPIRE_MINUTES",
		"LLM_API_KEY", "LLM_BASE_URL", "DEFAULT_MODEL", "DEFAULT_TEMPERATURE",
		"DEFAULT_MAX_TOKENS", "BOOTSTRAP_USER", "BOOTSTRAP_PASSWORD",
		"OTEL_EXPORTER_OTLP_ENDPOINT",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET_KEY", "test-secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.Port)
	assert.Equal(t, "HS256", cfg.JWTAlgorithm)
	assert.Equal(t, 30, cfg.JWTExpireMinutes)
	assert.Equal(t, "qwen3-max", cfg.DefaultModel)
	assert.InDelta(t, 0.7, float64(cfg.DefaultTemperature), 0.001)
	assert.Equal(t, 2000, cfg.DefaultMaxTokens)
	assert.Equal(t, "root", cfg.BootstrapUser)
	assert.Equal(t, 30*time.Minute, cfg.TokenTTL())
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET_KEY", "test-secret")
	t.Setenv("CHAT_PORT", "9100")
	t.Setenv("JWT_ALGORITHM", "HS512")
	t.Setenv("JWT_EXPIRE_MINUTES", "5")
	t.Setenv("DEFAULT_MODEL", "qwen-turbo")
	t.Setenv("DEFAULT_MAX_TOKENS", "512")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9100", cfg.Port)
	assert.Equal(t, "HS512", cfg.JWTAlgorithm)
	assert.Equal(t, "qwen-turbo", cfg.DefaultModel)
	assert.Equal(t, 512, cfg.DefaultMaxTokens)
	assert.Equal(t, 5*time.Minute, cfg.TokenTTL())
}

func TestLoad_MissingSecret(t *testing.T) {
	clearEnv(t)

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET_KEY")
}

func TestLoad_InvalidExpiry(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET_KEY", "test-secret")
	t.Setenv("JWT_EXPIRE_MINUTES", "-1")

	_, err := Load()
	assert.Error(t, err)
}
