package main

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds the API service tunables loaded from draftroom.yaml.
// Environment variables override nothing here; DB and NATS endpoints come
// from env separately.
type Config struct {
	Draft struct {
		// DefaultTimePerPickSec applies when a create request omits the
		// pick clock.
		DefaultTimePerPickSec int `yaml:"default_time_per_pick_sec"`
		// AutopickStrategy selects the fallback selector: "random" or
		// "position_need".
		AutopickStrategy string `yaml:"autopick_strategy"`
	} `yaml:"draft"`
	Nats struct {
		StreamName    string `yaml:"stream_name"`
		SubjectPrefix string `yaml:"subject_prefix"`
	} `yaml:"nats"`
}

func defaultConfig() *Config {
	var c Config
	c.Draft.DefaultTimePerPickSec = 60
	c.Draft.AutopickStrategy = "position_need"
	c.Nats.StreamName = "DRAFT_EVENTS"
	c.Nats.SubjectPrefix = "draft.events"
	return &c
}

func loadConfig(path string) (*Config, error) {
	config := defaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
