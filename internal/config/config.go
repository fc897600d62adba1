package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	IQ struct {
		URL            string `yaml:"url"`
		Username       string `yaml:"username"`
		Password       string `yaml:"password"`
		OrganizationID string `yaml:"organizationId"`
		TimeoutSeconds int    `yaml:"timeoutSeconds"`
	} `yaml:"iq"`

	Export struct {
		OutputDir         string `yaml:"outputDir"`
		Workers           int    `yaml:"workers"`
		MaxAttempts       int    `yaml:"maxAttempts"`
		RequestsPerSecond int    `yaml:"requestsPerSecond"`
	} `yaml:"export"`

	// Status.Addr empty = no status server.
	Status struct {
		Addr string `yaml:"addr"`
	} `yaml:"status"`

	// Database.Driver empty = no run history. Supported: mysql, postgres.
	Database struct {
		Driver   string `yaml:"driver"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"sslMode"`
	} `yaml:"database"`

	// Minio.Endpoint empty = no artifact upload.
	Minio struct {
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	// AI.APIKey empty = no triage summary.
	AI struct {
		APIKey string `yaml:"apiKey"`
		Model  string `yaml:"model"`
	} `yaml:"ai"`
}

// Load baca file config.yaml; a missing file is fine, env vars can carry the
// whole config.
func Load(path string) (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	case os.IsNotExist(err):
		// env-only setup
	default:
		return nil, err
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	return &cfg, nil
}

// applyEnv layers env variables over the yaml file.
func (c *Config) applyEnv() {
	if v := os.Getenv("IQ_SERVER_URL"); v != "" {
		c.IQ.URL = v
	}
	if v := os.Getenv("IQ_USERNAME"); v != "" {
		c.IQ.Username = v
	}
	if v := os.Getenv("IQ_PASSWORD"); v != "" {
		c.IQ.Password = v
	}
	if v := os.Getenv("ORGANIZATION_ID"); v != "" {
		c.IQ.OrganizationID = v
	}
	if v := os.Getenv("OUTPUT_DIR"); v != "" {
		c.Export.OutputDir = v
	}
	if v := os.Getenv("NUM_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 {
			c.Export.Workers = n
		}
	}
}

func (c *Config) applyDefaults() {
	c.IQ.URL = strings.TrimRight(c.IQ.URL, "/")
	if c.IQ.TimeoutSeconds <= 0 {
		c.IQ.TimeoutSeconds = 30
	}
	if c.Export.OutputDir == "" {
		c.Export.OutputDir = "raw_reports"
	}
	if c.Export.Workers <= 0 {
		c.Export.Workers = 8
	}
	if c.Export.MaxAttempts <= 0 {
		c.Export.MaxAttempts = 4
	}
}

// Validate checks everything the core needs before a run starts.
func (c *Config) Validate() error {
	if c.IQ.URL == "" {
		return fmt.Errorf("iq server url is required")
	}
	if strings.TrimSpace(c.IQ.Username) == "" || strings.TrimSpace(c.IQ.Password) == "" {
		return fmt.Errorf("credentials must not be empty")
	}
	switch c.Database.Driver {
	case "", "mysql", "postgres":
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}
	return nil
}

// Helper untuk build DSN MySQL
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// Helper untuk build DSN Postgres
func (c *Config) PostgresDSN() string {
	ssl := c.Database.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		ssl,
	)
}
