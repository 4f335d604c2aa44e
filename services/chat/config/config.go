// Copyright (C) 2025 Bering AI (dev@beringchat.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config loads the chat service configuration from the environment.
//
// Every knob has a sane default so the service starts with only
// JWT_SECRET_KEY and LLM_API_KEY set. Configuration is read once at
// startup; there is no hot reload.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all environment-driven settings for the chat service.
//
// # Fields
//
//   - Port: TCP port the gin server listens on.
//   - JWTSecretKey: HMAC signing secret for session tokens. Required.
//   - JWTAlgorithm: Signing algorithm (HS256, HS384, HS512).
//   - JWTExpireMinutes: Session token lifetime in minutes.
//   - LLMAPIKey: API key for the upstream OpenAI-compatible provider. Required.
//   - LLMBaseURL: Base URL of the upstream provider. Empty means the
//     library default (api.openai.com).
//   - DefaultModel: Model used when the request does not name one.
//   - DefaultTemperature: Sampling temperature used when unset.
//   - DefaultMaxTokens: Completion token cap used when unset.
//   - BootstrapUser / BootstrapPassword: Seed account created at startup
//     so the service is usable before any signup.
//   - OTLPEndpoint: OTLP gRPC collector address. Empty disables tracing.
type Config struct {
	Port               string  `envconfig:"CHAT_PORT" default:"8000"`
	JWTSecretKey       string  `envconfig:"JWT_SECRET_KEY"`
	JWTAlgorithm       string  `envconfig:"JWT_ALGORITHM" default:"HS256"`
	JWTExpireMinutes   int     `envconfig:"JWT_EXPIRE_MINUTES" default:"30"`
	LLMAPIKey          string  `envconfig:"LLM_API_KEY"`
	LLMBaseURL         string  `envconfig:"LLM_BASE_URL"`
	DefaultModel       string  `envconfig:"DEFAULT_MODEL" default:"qwen3-max"`
	DefaultTemperature float32 `envconfig:"DEFAULT_TEMPERATURE" default:"0.7"`
	DefaultMaxTokens   int     `envconfig:"DEFAULT_MAX_TOKENS" default:"2000"`
	BootstrapUser      string  `envconfig:"BOOTSTRAP_USER" default:"root"`
	BootstrapPassword  string  `envconfig:"BOOTSTRAP_PASSWORD"`
	OTLPEndpoint       string  `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// TokenTTL returns the configured session token lifetime.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.JWTExpireMinutes) * time.Minute
}

// Load reads the configuration from the environment.
//
// Returns an error if a required field is missing or a value cannot be
// parsed into its field type.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}
	if cfg.JWTSecretKey == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY is required")
	}
	if cfg.JWTExpireMinutes <= 0 {
		return nil, fmt.Errorf("JWT_EXPIRE_MINUTES must be positive, got %d", cfg.JWTExpireMinutes)
	}
	return &cfg, nil
}
