// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads modeltree settings from YAML with environment
// overrides.
//
// Priority is env > file > defaults. A missing file is not an error.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/modeltree/pkg/logging"
	"github.com/AleutianAI/modeltree/services/modeltree/checkpoint"
	"github.com/AleutianAI/modeltree/services/modeltree/telemetry"
	"github.com/AleutianAI/modeltree/services/modeltree/tree"
	"github.com/AleutianAI/modeltree/services/modeltree/watch"
)

// ErrInvalid is returned when a configuration fails validation.
var ErrInvalid = errors.New("invalid config")

// Config contains all modeltree settings.
//
// Thread Safety: Safe to read concurrently. Not safe to modify after creation.
type Config struct {
	Tree       TreeConfig       `yaml:"tree"`
	History    HistoryConfig    `yaml:"history"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
	Watch      WatchConfig      `yaml:"watch"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
}

// TreeConfig holds naming policy and output settings for loaded models.
type TreeConfig struct {
	UniqueNames          bool `yaml:"unique_names"`
	UniqueCompositeNames bool `yaml:"unique_composite_names"`
	CompactPaths         bool `yaml:"compact_paths"`
}

// HistoryConfig bounds the undo log.
type HistoryConfig struct {
	Capacity int `yaml:"capacity" validate:"min=1,max=100000"`
}

// CheckpointConfig configures the checkpoint store.
type CheckpointConfig struct {
	Dir            string        `yaml:"dir" validate:"required_unless=InMemory true"`
	InMemory       bool          `yaml:"in_memory"`
	SyncWrites     bool          `yaml:"sync_writes"`
	GCInterval     time.Duration `yaml:"gc_interval" validate:"min=0"`
	GCDiscardRatio float64       `yaml:"gc_discard_ratio" validate:"gt=0,lt=1"`
}

// WatchConfig configures the file watcher.
type WatchConfig struct {
	Debounce   time.Duration `yaml:"debounce" validate:"gt=0"`
	Extensions []string      `yaml:"extensions" validate:"dive,startswith=."`
}

// LoggingConfig configures pkg/logging.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `yaml:"json"`
	Dir   string `yaml:"dir"`
}

// MetricsConfig configures the Prometheus endpoint. An empty Listen
// disables it.
type MetricsConfig struct {
	Listen string `yaml:"listen" validate:"omitempty,hostname_port"`
}

// TelemetryConfig selects OpenTelemetry exporters.
type TelemetryConfig struct {
	TraceExporter  string `yaml:"trace_exporter" validate:"oneof=none stdout otlp"`
	MetricExporter string `yaml:"metric_exporter" validate:"oneof=none stdout prometheus"`
	OTLPEndpoint   string `yaml:"otlp_endpoint" validate:"required_if=TraceExporter otlp"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Tree: TreeConfig{
			UniqueNames: true,
		},
		History: HistoryConfig{
			Capacity: 100,
		},
		Checkpoint: CheckpointConfig{
			Dir:            ".modeltree/checkpoints",
			SyncWrites:     true,
			GCInterval:     5 * time.Minute,
			GCDiscardRatio: 0.5,
		},
		Watch: WatchConfig{
			Debounce:   100 * time.Millisecond,
			Extensions: []string{".mdl"},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Telemetry: TelemetryConfig{
			TraceExporter:  "none",
			MetricExporter: "prometheus",
			OTLPEndpoint:   "localhost:4317",
		},
	}
}

// Load reads the configuration with priority env > file > defaults.
//
// # Inputs
//
//   - path: YAML file. Empty or missing means defaults.
//
// # Outputs
//
//   - Config: The merged configuration.
//   - error: Non-nil if the file is unreadable, has unknown keys or
//     fails validation. Validation failures wrap ErrInvalid.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("read config: %w", err)
		default:
			if err := decode(bytes.NewReader(data), &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	applyEnv(&cfg, os.Getenv)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// applyEnv overrides fields from MODELTREE_* variables. Unparseable
// values are ignored.
func applyEnv(cfg *Config, getenv func(string) string) {
	if v := getenv("MODELTREE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := getenv("MODELTREE_LOG_JSON"); v != "" {
		cfg.Logging.JSON = v == "true" || v == "1"
	}
	if v := getenv("MODELTREE_LOG_DIR"); v != "" {
		cfg.Logging.Dir = v
	}
	if v := getenv("MODELTREE_CHECKPOINT_DIR"); v != "" {
		cfg.Checkpoint.Dir = v
	}
	if v := getenv("MODELTREE_HISTORY_CAPACITY"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.History.Capacity = i
		}
	}
	if v := getenv("MODELTREE_WATCH_DEBOUNCE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Watch.Debounce = d
		}
	}
	if v := getenv("MODELTREE_METRICS_LISTEN"); v != "" {
		cfg.Metrics.Listen = v
	}
	if v := getenv("OTEL_TRACES_EXPORTER"); v != "" {
		cfg.Telemetry.TraceExporter = v
	}
	if v := getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		cfg.Telemetry.OTLPEndpoint = v
	}
}

// =============================================================================
// Validation
// =============================================================================

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks field constraints and reports every failure.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
}

// describe renders one failure as "section.field: constraint".
func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "required_unless":
		return field + ": required"
	case "oneof":
		return fmt.Sprintf("%s: must be one of [%s]", field, fe.Param())
	case "hostname_port":
		return field + ": must be host:port"
	}
	if fe.Param() != "" {
		return fmt.Sprintf("%s: must satisfy %s=%s", field, fe.Tag(), fe.Param())
	}
	return fmt.Sprintf("%s: must satisfy %s", field, fe.Tag())
}

// =============================================================================
// Conversions
// =============================================================================

// Policy returns the naming policy for model lists.
func (c TreeConfig) Policy() tree.Policy {
	return tree.Policy{
		EnforceUniqueNames:          c.UniqueNames,
		EnforceUniqueCompositeNames: c.UniqueCompositeNames,
		CompactPaths:                c.CompactPaths,
	}
}

// StoreConfig converts to checkpoint.Config.
func (c CheckpointConfig) StoreConfig(logger *slog.Logger) checkpoint.Config {
	if c.InMemory {
		cfg := checkpoint.InMemoryConfig()
		cfg.Logger = logger
		return cfg
	}
	return checkpoint.Config{
		Path:           c.Dir,
		SyncWrites:     c.SyncWrites,
		Logger:         logger,
		GCInterval:     c.GCInterval,
		GCDiscardRatio: c.GCDiscardRatio,
	}
}

// Options converts to watch.Options.
func (c WatchConfig) Options(logger *slog.Logger) *watch.Options {
	return &watch.Options{
		Debounce:   c.Debounce,
		Extensions: c.Extensions,
		Logger:     logger,
	}
}

// SDKConfig converts to telemetry.Config for service.
func (c TelemetryConfig) SDKConfig(service, version string) telemetry.Config {
	return telemetry.Config{
		ServiceName:    service,
		ServiceVersion: version,
		TraceExporter:  c.TraceExporter,
		MetricExporter: c.MetricExporter,
		OTLPEndpoint:   c.OTLPEndpoint,
		OTLPInsecure:   true,
	}
}

// LoggerConfig converts to logging.Config for service.
func (c LoggingConfig) LoggerConfig(service string) logging.Config {
	level, _ := logging.ParseLevel(c.Level)
	return logging.Config{
		Level:   level,
		LogDir:  c.Dir,
		Service: service,
		JSON:    c.JSON,
	}
}
