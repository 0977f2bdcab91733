package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	defaultConfigPath  = "~/.config/voidorchestra/config.json"
	defaultCommitEvery = 250
)

// Config holds user-editable settings for the pipeline.
type Config struct {
	Zooniverse     Zooniverse     `json:"zooniverse"`
	ActiveLearning ActiveLearning `json:"active_learning"`
	Sync           Sync           `json:"sync"`
	Logging        Logging        `json:"logging"`
	Paths          Paths          `json:"paths"`
	Server         Server         `json:"server"`
}

// Zooniverse identifies the remote platform and the credentials to use.
type Zooniverse struct {
	Endpoint   string `json:"endpoint"`
	Username   string `json:"username"`
	Password   string `json:"password"`
	ProjectID  int64  `json:"project_id"`
	WorkflowID int64  `json:"workflow_id"`
}

// ActiveLearning controls the weighted sampling scheme.
type ActiveLearning struct {
	NumPrioritySets    int    `json:"num_priority_sets"`
	SelectionWeighting string `json:"selection_weighting"` // comma separated floats, one per priority set
}

// Sync captures batching preferences for mirror updates.
type Sync struct {
	CommitEvery int `json:"commit_every"`
}

// Logging controls logging verbosity and destinations.
type Logging struct {
	Level      string `json:"level"`       // debug, info, warn, error
	Format     string `json:"format"`      // text, json
	FileOutput bool   `json:"file_output"` // Enable file logging
	LogDir     string `json:"log_dir"`     // Directory for log files
}

// Paths configures the local mirror and watched input locations.
type Paths struct {
	Database    string `json:"database"`
	IncomingDir string `json:"incoming_dir"`
}

// Server configures the read-only status server.
type Server struct {
	Addr string `json:"addr"`
}

// Load reads configuration from disk, falling back to sensible defaults.
func Load() (*Config, error) {
	cfg := defaultConfig()

	configPath := os.Getenv("VOIDORCHESTRA_CONFIG")
	if configPath == "" {
		configPath = defaultConfigPath
	}

	expanded, err := expandUser(configPath)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(expanded)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	if err := dec.Decode(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Zooniverse: Zooniverse{
			Endpoint: "https://www.zooniverse.org/api",
		},
		ActiveLearning: ActiveLearning{
			NumPrioritySets:    4,
			SelectionWeighting: "0.7, 0.2, 0.05, 0.05",
		},
		Sync: Sync{
			CommitEvery: defaultCommitEvery,
		},
		Logging: Logging{
			Level:      "info",
			Format:     "text",
			FileOutput: false,
			LogDir:     "./logs",
		},
		Paths: Paths{
			Database:    filepath.Join(os.TempDir(), "voidorchestra.db"),
			IncomingDir: "./incoming",
		},
		Server: Server{
			Addr: ":8710",
		},
	}
}

// ParseSelectionWeighting parses the comma separated weight list from the
// active learning section. A malformed entry is a configuration error.
func ParseSelectionWeighting(literal string) ([]float64, error) {
	parts := strings.Split(literal, ",")
	weights := make([]float64, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, fmt.Errorf("selection_weighting is not a comma separated list of numbers: %q", literal)
		}
		w, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, fmt.Errorf("selection_weighting entry %q is not a number", part)
		}
		weights = append(weights, w)
	}
	if len(weights) == 0 {
		return nil, fmt.Errorf("selection_weighting is empty")
	}
	return weights, nil
}

func expandUser(path string) (string, error) {
	if path == "" || path[0] != '~' {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	if path == "~" {
		return home, nil
	}

	return filepath.Join(home, path[2:]), nil
}
