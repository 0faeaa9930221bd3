// Package config provides application configuration loading from environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Telemetry exporters.
const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

// Config holds all configuration for the application.
type Config struct {
	DatabaseURL string
	LogLevel    string
	LogFormat   string
	ServiceName string
	CacheTTL    time.Duration

	SMTPHost         string
	SMTPPort         int
	SMTPEmail        string
	SMTPPassword     string
	InviteWebhookURL string
	NotifyTimeout    time.Duration
	FrontendBaseURL  string

	OTelExporter     string
	OTelEndpoint     string
	OTelOTLPProtocol string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		LogLevel:         os.Getenv("LOG_LEVEL"),
		LogFormat:        "console",
		ServiceName:      "split-ledger",
		CacheTTL:         5 * time.Minute,
		SMTPHost:         os.Getenv("SMTP_HOST"),
		SMTPPort:         587,
		SMTPEmail:        os.Getenv("SMTP_EMAIL"),
		SMTPPassword:     os.Getenv("SMTP_PASS"),
		InviteWebhookURL: strings.TrimSpace(os.Getenv("INVITE_WEBHOOK_URL")),
		NotifyTimeout:    5 * time.Second,
		FrontendBaseURL:  "http://localhost:3000",
		OTelExporter:     ExporterNone,
		OTelEndpoint:     os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OTelOTLPProtocol: "http",
	}

	if format := strings.ToLower(os.Getenv("LOG_FORMAT")); format == "json" {
		cfg.LogFormat = format
	}
	if name := strings.TrimSpace(os.Getenv("SERVICE_NAME")); name != "" {
		cfg.ServiceName = name
	}
	if ttl, err := time.ParseDuration(os.Getenv("CACHE_TTL")); err == nil && ttl > 0 {
		cfg.CacheTTL = ttl
	}
	if portStr := os.Getenv("SMTP_PORT"); portStr != "" {
		if p, err := strconv.Atoi(portStr); err == nil && p > 0 && p <= 65535 {
			cfg.SMTPPort = p
		}
	}
	if timeout, err := time.ParseDuration(os.Getenv("NOTIFY_TIMEOUT")); err == nil && timeout > 0 {
		cfg.NotifyTimeout = timeout
	}
	if base := strings.TrimRight(strings.TrimSpace(os.Getenv("FRONTEND_BASE_URL")), "/"); base != "" {
		cfg.FrontendBaseURL = base
	}
	if exporter := strings.ToLower(strings.TrimSpace(os.Getenv("OTEL_EXPORTER"))); exporter != "" {
		cfg.OTelExporter = exporter
	}
	if proto := strings.ToLower(strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_PROTOCOL"))); proto != "" {
		cfg.OTelOTLPProtocol = proto
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate checks that all required configuration is present.
func (c *Config) validate() error {
	var errs []string

	if c.DatabaseURL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}

	if c.SMTPHost != "" && c.SMTPEmail == "" {
		errs = append(errs, "SMTP_EMAIL is required when SMTP_HOST is set")
	}

	switch c.OTelExporter {
	case ExporterNone, ExporterStdout:
	case ExporterOTLP:
		if c.OTelEndpoint == "" {
			errs = append(errs, "OTEL_EXPORTER_OTLP_ENDPOINT is required when OTEL_EXPORTER=otlp")
		}
		if c.OTelOTLPProtocol != "grpc" && c.OTelOTLPProtocol != "http" {
			errs = append(errs, "OTEL_EXPORTER_OTLP_PROTOCOL must be grpc or http")
		}
	default:
		errs = append(errs, fmt.Sprintf("OTEL_EXPORTER %q is not one of none, stdout, otlp", c.OTelExporter))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// EmailEnabled reports whether invite emails can be sent over SMTP.
func (c *Config) EmailEnabled() bool {
	return c.SMTPHost != ""
}
