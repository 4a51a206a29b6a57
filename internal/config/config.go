// Copyright (c) 2026 Railhound Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads configuration from config.yaml and environment
// variables. YAML values may reference environment variables with ${VAR};
// environment variables win over YAML for the non-secret knobs.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// KafkaConfig holds the broker connection for the consist topic. Username
// empty means an unauthenticated local broker; set it to enable SASL/PLAIN,
// optionally with a CA certificate for TLS.
type KafkaConfig struct {
	Brokers    []string
	Topic      string
	Group      string
	Username   string
	Password   string
	CACertPath string
}

// Config holds all configuration for the consist service.
type Config struct {
	Kafka KafkaConfig

	DatabaseURL string

	// Redis
	RedisURL     string
	UpdatesQueue string

	// Reprocessing
	ReprocessFetchBatch int
	ReprocessFlushEvery int
	ReprocessOnBoot     bool

	// Reporting views
	MVRefreshInterval time.Duration

	// Admin/health server
	AdminPort int
}

// rawConfig mirrors the YAML structure for unmarshalling.
type rawConfig struct {
	Kafka struct {
		Brokers  []string `yaml:"brokers"`
		Topic    string   `yaml:"topic"`
		Group    string   `yaml:"group"`
		Username string   `yaml:"username"`
		Password string   `yaml:"password"`
		CACert   string   `yaml:"ca_cert"`
	} `yaml:"kafka"`
	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`
	Redis struct {
		URL    string `yaml:"url"`
		Queues struct {
			Updates string `yaml:"updates"`
		} `yaml:"queues"`
	} `yaml:"redis"`
	Reprocess struct {
		FetchBatch int   `yaml:"fetch_batch"`
		FlushEvery int   `yaml:"flush_every"`
		RunOnBoot  *bool `yaml:"run_on_boot"`
	} `yaml:"reprocess"`
	Views struct {
		RefreshInterval string `yaml:"refresh_interval"`
	} `yaml:"views"`
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
}

// Load reads configuration from config.yaml (with env var expansion) and
// environment variables. A missing config file is not an error; everything
// can come from the environment.
func Load() (*Config, error) {
	configPath := envOrDefault("CONFIG_PATH", "/app/config/config.yaml")

	var raw rawConfig
	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
			return nil, fmt.Errorf("parse config YAML: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
		// Env-only configuration.
	default:
		return nil, fmt.Errorf("read config file %s: %w", configPath, err)
	}

	cfg := &Config{
		Kafka: KafkaConfig{
			Brokers:    raw.Kafka.Brokers,
			Topic:      firstNonEmpty(raw.Kafka.Topic, envOrDefault("KAFKA_TOPIC", "consist-messages")),
			Group:      firstNonEmpty(raw.Kafka.Group, envOrDefault("KAFKA_GROUP", "consist-ingestion")),
			Username:   firstNonEmpty(raw.Kafka.Username, os.Getenv("KAFKA_USERNAME")),
			Password:   firstNonEmpty(raw.Kafka.Password, os.Getenv("KAFKA_PASSWORD")),
			CACertPath: firstNonEmpty(raw.Kafka.CACert, os.Getenv("KAFKA_CA_CERT")),
		},
		DatabaseURL:         firstNonEmpty(raw.Database.URL, envOrDefault("DATABASE_URL", "postgres://localhost:5432/consist")),
		RedisURL:            firstNonEmpty(raw.Redis.URL, envOrDefault("REDIS_URL", "redis://localhost:6379/0")),
		UpdatesQueue:        firstNonEmpty(raw.Redis.Queues.Updates, envOrDefault("UPDATES_QUEUE", "service-updates")),
		ReprocessFetchBatch: firstPositive(raw.Reprocess.FetchBatch, envOrDefaultInt("REPROCESS_FETCH_BATCH", 500)),
		ReprocessFlushEvery: firstPositive(raw.Reprocess.FlushEvery, envOrDefaultInt("REPROCESS_FLUSH_EVERY", 2000)),
		ReprocessOnBoot:     envOrDefaultBool("REPROCESS_ON_BOOT", true),
		MVRefreshInterval:   envOrDefaultDuration("MV_REFRESH_INTERVAL", 30*time.Second),
		AdminPort:           firstPositive(raw.Server.Port, envOrDefaultInt("PORT", 8080)),
	}

	if raw.Reprocess.RunOnBoot != nil {
		cfg.ReprocessOnBoot = *raw.Reprocess.RunOnBoot
	}

	if raw.Views.RefreshInterval != "" {
		if d, err := time.ParseDuration(raw.Views.RefreshInterval); err == nil {
			cfg.MVRefreshInterval = d
		}
	}

	if len(cfg.Kafka.Brokers) == 0 {
		brokers := envOrDefault("KAFKA_BROKERS", "localhost:9092")
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.Kafka.Brokers = append(cfg.Kafka.Brokers, b)
			}
		}
	}
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, fmt.Errorf("no Kafka brokers configured")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envOrDefaultBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envOrDefaultDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
