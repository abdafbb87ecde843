package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Environment variables that override file values.
const (
	EnvAddr           = "PLANTCARE_ADDR"
	EnvPort           = "PORT"
	EnvModelPath      = "PLANTCARE_MODEL_PATH"
	EnvMetadataPath   = "PLANTCARE_METADATA_PATH"
	EnvORTLibrary     = "PLANTCARE_ORT_LIBRARY"
	EnvMaxUploadBytes = "PLANTCARE_MAX_UPLOAD_BYTES"
	EnvLogLevel       = "PLANTCARE_LOG_LEVEL"
	EnvLogFormat      = "PLANTCARE_LOG_FORMAT"
	EnvLogFile        = "PLANTCARE_LOG_FILE"
	EnvCORSOrigins    = "PLANTCARE_CORS_ORIGINS"
)

const (
	DefaultAddr           = ":8080"
	DefaultModelPath      = "models/trained_plant_disease_model.onnx"
	DefaultMetadataPath   = "models/model_metadata.json"
	DefaultMaxUploadBytes = 10 << 20
)

// Config holds runtime parameters for the service.
type Config struct {
	Addr           string   `json:"addr" yaml:"addr" toml:"addr"`
	ModelPath      string   `json:"model_path" yaml:"model_path" toml:"model_path"`
	MetadataPath   string   `json:"metadata_path" yaml:"metadata_path" toml:"metadata_path"`
	ORTLibraryPath string   `json:"ort_library_path" yaml:"ort_library_path" toml:"ort_library_path"`
	MaxUploadBytes int64    `json:"max_upload_bytes" yaml:"max_upload_bytes" toml:"max_upload_bytes"`
	LogLevel       string   `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat      string   `json:"log_format" yaml:"log_format" toml:"log_format"`
	LogFile        string   `json:"log_file" yaml:"log_file" toml:"log_file"`
	CORSOrigins    []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
}

// Default returns the configuration used when nothing else is set.
func Default() Config {
	return Config{
		Addr:           DefaultAddr,
		ModelPath:      DefaultModelPath,
		MetadataPath:   DefaultMetadataPath,
		MaxUploadBytes: DefaultMaxUploadBytes,
		LogLevel:       "info",
		LogFormat:      "console",
		CORSOrigins:    []string{"*"},
	}
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, errors.New("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &cfg)
	case ".json":
		err = json.Unmarshal(b, &cfg)
	case ".toml":
		err = toml.Unmarshal(b, &cfg)
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	if err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Merge returns c with every non-zero field of o applied on top.
func (c Config) Merge(o Config) Config {
	if o.Addr != "" {
		c.Addr = o.Addr
	}
	if o.ModelPath != "" {
		c.ModelPath = o.ModelPath
	}
	if o.MetadataPath != "" {
		c.MetadataPath = o.MetadataPath
	}
	if o.ORTLibraryPath != "" {
		c.ORTLibraryPath = o.ORTLibraryPath
	}
	if o.MaxUploadBytes != 0 {
		c.MaxUploadBytes = o.MaxUploadBytes
	}
	if o.LogLevel != "" {
		c.LogLevel = o.LogLevel
	}
	if o.LogFormat != "" {
		c.LogFormat = o.LogFormat
	}
	if o.LogFile != "" {
		c.LogFile = o.LogFile
	}
	if len(o.CORSOrigins) > 0 {
		c.CORSOrigins = append([]string(nil), o.CORSOrigins...)
	}
	return c
}

// ApplyEnv overlays environment variables. getenv is usually os.Getenv.
func (c Config) ApplyEnv(getenv func(string) string) (Config, error) {
	if v := getenv(EnvPort); v != "" {
		c.Addr = ":" + v
	}
	if v := getenv(EnvAddr); v != "" {
		c.Addr = v
	}
	if v := getenv(EnvModelPath); v != "" {
		c.ModelPath = v
	}
	if v := getenv(EnvMetadataPath); v != "" {
		c.MetadataPath = v
	}
	if v := getenv(EnvORTLibrary); v != "" {
		c.ORTLibraryPath = v
	}
	if v := getenv(EnvMaxUploadBytes); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return c, fmt.Errorf("%s: %w", EnvMaxUploadBytes, err)
		}
		c.MaxUploadBytes = n
	}
	if v := getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := getenv(EnvLogFormat); v != "" {
		c.LogFormat = v
	}
	if v := getenv(EnvLogFile); v != "" {
		c.LogFile = v
	}
	if v := getenv(EnvCORSOrigins); v != "" {
		c.CORSOrigins = SplitCSV(v)
	}
	return c, nil
}

func (c Config) Validate() error {
	if c.Addr == "" {
		return errors.New("addr is required")
	}
	if c.ModelPath == "" {
		return errors.New("model_path is required")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("max_upload_bytes must be positive, got %d", c.MaxUploadBytes)
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("unknown log_format %q", c.LogFormat)
	}
	return nil
}

// Resolve builds the effective config: defaults, then the file at path (if
// any), then the environment.
func Resolve(path string, getenv func(string) string) (Config, error) {
	cfg := Default()
	if path != "" {
		fileCfg, err := Load(path)
		if err != nil {
			return cfg, err
		}
		cfg = cfg.Merge(fileCfg)
	}
	cfg, err := cfg.ApplyEnv(getenv)
	if err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// SplitCSV splits a comma separated list, dropping blanks.
func SplitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
