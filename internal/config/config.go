package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/franckalain/foodrescue/internal/impact"
	"github.com/franckalain/foodrescue/internal/verification"
)

// Config holds all application configuration
type Config struct {
	Server struct {
		Port      string `json:"port" yaml:"port"`
		StaticDir string `json:"static_dir" yaml:"static_dir"`
		Debug     bool   `json:"debug" yaml:"debug"`
	} `json:"server" yaml:"server"`

	Database struct {
		Path string `json:"path" yaml:"path"`
	} `json:"database" yaml:"database"`

	ML struct {
		Type       string `json:"type" yaml:"type"` // "local" or "google"
		ConfigPath string `json:"config_path" yaml:"config_path"`
	} `json:"ml" yaml:"ml"`

	Analyzer struct {
		TimeoutSeconds int `json:"timeout_seconds" yaml:"timeout_seconds"`
		RatePerMinute  int `json:"rate_per_minute" yaml:"rate_per_minute"`
		Burst          int `json:"burst" yaml:"burst"`
	} `json:"analyzer" yaml:"analyzer"`

	Scoring struct {
		PublishThreshold float64                   `json:"publish_threshold" yaml:"publish_threshold"`
		Categories       map[string]impact.Factors `json:"categories" yaml:"categories"`
	} `json:"scoring" yaml:"scoring"`
}

// LoadConfig loads configuration from a JSON or YAML file, chosen by extension
func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	switch strings.ToLower(filepath.Ext(configPath)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &config)
	default:
		err = json.Unmarshal(data, &config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Handle missing values
	if config.Server.Port == "" {
		config.Server.Port = os.Getenv("PORT")
	}
	if config.Server.Port == "" {
		// Fail if port is not set
		return nil, fmt.Errorf("server port is not set in config file")
	}
	if config.Server.StaticDir == "" {
		config.Server.StaticDir = "./static"
	}
	if config.Database.Path == "" {
		config.Database.Path = "foodrescue.db"
	}
	if config.ML.Type == "" {
		config.ML.Type = "google"
	}
	if config.Analyzer.TimeoutSeconds <= 0 {
		config.Analyzer.TimeoutSeconds = 30
	}
	if config.Scoring.PublishThreshold == 0 {
		config.Scoring.PublishThreshold = verification.DefaultPublishThreshold
	}
	if config.Scoring.PublishThreshold < 0 || config.Scoring.PublishThreshold >= 100 {
		return nil, fmt.Errorf("publish threshold %v out of range", config.Scoring.PublishThreshold)
	}
	if _, err := config.CategoryTable(); err != nil {
		return nil, err
	}

	return &config, nil
}

// AnalyzerTimeout is the per-call analysis deadline
func (c *Config) AnalyzerTimeout() time.Duration {
	return time.Duration(c.Analyzer.TimeoutSeconds) * time.Second
}

// CategoryTable converts the configured category overrides into a table.
// Names are matched case-insensitively against the scoring categories.
func (c *Config) CategoryTable() (impact.Table, error) {
	table := impact.Table{}
	for name, f := range c.Scoring.Categories {
		cat := impact.NormalizeCategory(name)
		if !strings.EqualFold(string(cat), strings.TrimSpace(name)) {
			return nil, fmt.Errorf("unknown scoring category %q", name)
		}
		if f.EIS < 0 || f.CO2 < 0 || f.Water < 0 || f.Land < 0 {
			return nil, fmt.Errorf("negative factor for scoring category %q", name)
		}
		table[cat] = f
	}
	return table, nil
}

// GetConfigPath returns the path to the configuration file
func GetConfigPath() string {
	// First try environment variable
	if path := os.Getenv("FOODRESCUE_CONFIG"); path != "" {
		return path
	}

	// Then try config directory
	configDir := "config"
	if _, err := os.Stat(configDir); err == nil {
		for _, name := range []string{"config.yaml", "config.yml", "config.json"} {
			p := filepath.Join(configDir, name)
			if _, err := os.Stat(p); err == nil {
				return p
			}
		}
		return filepath.Join(configDir, "config.json")
	}

	// Finally, try current directory
	return "config.json"
}
