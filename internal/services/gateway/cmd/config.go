package main

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/verdra/garden-gateway/internal/storage"
)

// Config is the full gateway configuration, loaded from YAML with
// environment overrides on top so container deployments can patch
// single values without shipping a file.
type Config struct {
	Port string `yaml:"port"`

	Broker struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		ClientID string `yaml:"client_id"`
		UseTLS   bool   `yaml:"use_tls"`
	} `yaml:"broker"`

	Database storage.DatabaseConfig `yaml:"database"`
	Influx   storage.InfluxConfig   `yaml:"influx"`

	TraceSize       int `yaml:"trace_size"`
	DedupTTLSeconds int `yaml:"dedup_ttl_seconds"`
	DedupMaxEntries int `yaml:"dedup_max_entries"`
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func getenvInt(k string, d int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return d
}

// loadConfig reads the YAML file at path (optional) and applies the
// environment on top.
func loadConfig(path string) (*Config, error) {
	cfg := &Config{}
	cfg.Port = "5009"
	cfg.Broker.Host = "mosquitto"
	cfg.Broker.Port = 1883
	cfg.Broker.ClientID = "garden-gateway"
	cfg.Database.Driver = "postgres"
	cfg.TraceSize = 256
	cfg.DedupTTLSeconds = 600
	cfg.DedupMaxEntries = 10000

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.Port = getenv("PORT", cfg.Port)
	cfg.Broker.Host = getenv("MQTT_HOST", cfg.Broker.Host)
	cfg.Broker.Port = getenvInt("MQTT_PORT", cfg.Broker.Port)
	cfg.Broker.User = getenv("MQTT_USER", cfg.Broker.User)
	cfg.Broker.Password = getenv("MQTT_PASSWORD", cfg.Broker.Password)
	cfg.Broker.ClientID = getenv("MQTT_CLIENT_ID", cfg.Broker.ClientID)
	cfg.Database.Driver = getenv("DB_DRIVER", cfg.Database.Driver)
	cfg.Database.DSN = getenv("DB_DSN", cfg.Database.DSN)
	cfg.Influx.URL = getenv("INFLUX_URL", cfg.Influx.URL)
	cfg.Influx.Token = getenv("INFLUX_TOKEN", cfg.Influx.Token)
	cfg.Influx.Org = getenv("INFLUX_ORG", cfg.Influx.Org)
	cfg.Influx.Bucket = getenv("INFLUX_BUCKET", cfg.Influx.Bucket)
	cfg.Influx.Measurement = getenv("INFLUX_MEASUREMENT", cfg.Influx.Measurement)

	return cfg, nil
}
