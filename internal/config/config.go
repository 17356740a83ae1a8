package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Corpus  CorpusConfig  `yaml:"corpus"`
	Extract ExtractConfig `yaml:"extract"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// StorageConfig holds the location of the histogram files
type StorageConfig struct {
	DataDir       string `yaml:"data_dir"`
	IntensityFile string `yaml:"intensity_file"`
	ColorCodeFile string `yaml:"color_code_file"`
}

// CorpusConfig describes the image corpus
type CorpusConfig struct {
	Size      int    `yaml:"size"`
	ImagesDir string `yaml:"images_dir"`
	Extension string `yaml:"extension"`
}

// ExtractConfig holds histogram extraction settings
type ExtractConfig struct {
	Workers int `yaml:"workers"`
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Env   string `yaml:"env"`
	Level string `yaml:"level"`
}

// MetricsConfig holds metrics settings
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Output  string `yaml:"output"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			DataDir:       "./data",
			IntensityFile: "Intensity.txt",
			ColorCodeFile: "ColorCode.txt",
		},
		Corpus: CorpusConfig{
			Size:      100,
			ImagesDir: "./images",
			Extension: ".jpg",
		},
		Extract: ExtractConfig{
			Workers: 4,
		},
		Logging: LoggingConfig{
			Env:   "dev",
			Level: "info",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Output:  "cbir.prom",
		},
	}
}

// Validate checks the configuration for values the engine can't run with
func (c *Config) Validate() error {
	var errs []error
	if c.Corpus.Size < 1 {
		errs = append(errs, fmt.Errorf("corpus.size must be positive, got %d", c.Corpus.Size))
	}
	if c.Storage.DataDir == "" {
		errs = append(errs, errors.New("storage.data_dir is required"))
	}
	if c.Storage.IntensityFile == "" || c.Storage.ColorCodeFile == "" {
		errs = append(errs, errors.New("storage.intensity_file and storage.color_code_file are required"))
	}
	if c.Storage.IntensityFile != "" && c.Storage.IntensityFile == c.Storage.ColorCodeFile {
		errs = append(errs, errors.New("storage.intensity_file and storage.color_code_file must differ"))
	}
	if c.Extract.Workers < 1 {
		errs = append(errs, fmt.Errorf("extract.workers must be positive, got %d", c.Extract.Workers))
	}
	return errors.Join(errs...)
}

// LoadConfig loads the configuration from a file
func LoadConfig(path string) (*Config, error) {
	// Start with default config
	config := DefaultConfig()

	// Resolve absolute path
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	// Check if the file exists
	_, err = os.Stat(absPath)
	if os.IsNotExist(err) {
		return config, nil // Return default config if file doesn't exist
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file: %w", err)
	}
	return config, nil
}

// SaveConfig saves the configuration to a file
func SaveConfig(config *Config, path string) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
