// Package config loads server settings from flags, an optional YAML file,
// a .env file and POLYGLOT_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/dasmlab/polyglot/pkg/model"
)

// EnvPrefix prefixes every environment override, e.g. POLYGLOT_MODEL_NAME.
const EnvPrefix = "POLYGLOT"

// Config is the complete server configuration.
type Config struct {
	Paths     PathsConfig     `mapstructure:"paths"`
	Model     ModelConfig     `mapstructure:"model"`
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Jobs      JobsConfig      `mapstructure:"jobs"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// PathsConfig holds the on-disk layout.
type PathsConfig struct {
	ArtifactsDir string `mapstructure:"artifacts_dir"`
	ModelsDir    string `mapstructure:"models_dir"`
	CacheDir     string `mapstructure:"cache_dir"`
}

// ModelConfig selects the model, its generation settings and its backend.
type ModelConfig struct {
	Name             string        `mapstructure:"name"`
	MaxLength        int           `mapstructure:"max_length"`
	NumBeams         int           `mapstructure:"num_beams"`
	Backend          string        `mapstructure:"backend"`
	PythonPath       string        `mapstructure:"python_path"`
	BackendURL       string        `mapstructure:"backend_url"`
	Timeout          time.Duration `mapstructure:"timeout"`
	FailureThreshold uint32        `mapstructure:"failure_threshold"`
	OpenTimeout      time.Duration `mapstructure:"open_timeout"`
}

// ServerConfig holds listener ports.
type ServerConfig struct {
	HTTPPort int `mapstructure:"http_port"`
	GRPCPort int `mapstructure:"grpc_port"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// JobsConfig controls batch job retention.
type JobsConfig struct {
	MaxAge          time.Duration `mapstructure:"max_age"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

// TelemetryConfig configures tracing. An empty endpoint disables it.
type TelemetryConfig struct {
	ServiceName  string `mapstructure:"service_name"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

// SetDefaults registers every key with its default value.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("paths.artifacts_dir", "artifacts")
	v.SetDefault("paths.models_dir", filepath.Join("artifacts", "models"))
	v.SetDefault("paths.cache_dir", filepath.Join("artifacts", "cache"))

	v.SetDefault("model.name", "facebook/mbart-large-50-many-to-many-mmt")
	v.SetDefault("model.max_length", 512)
	v.SetDefault("model.num_beams", 5)
	v.SetDefault("model.backend", string(model.BackendSubprocess))
	v.SetDefault("model.python_path", "python3")
	v.SetDefault("model.backend_url", "http://localhost:5000")
	v.SetDefault("model.timeout", 5*time.Minute)
	v.SetDefault("model.failure_threshold", 5)
	v.SetDefault("model.open_timeout", 30*time.Second)

	v.SetDefault("server.http_port", 8000)
	v.SetDefault("server.grpc_port", 50051)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("jobs.max_age", time.Hour)
	v.SetDefault("jobs.cleanup_interval", 5*time.Minute)
	v.SetDefault("jobs.timeout", time.Hour)

	v.SetDefault("telemetry.service_name", "polyglot")
	v.SetDefault("telemetry.otlp_endpoint", "")
}

// BindFlags defines the command line flags on fs and binds them to their keys.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	fs.String("model", "facebook/mbart-large-50-many-to-many-mmt", "Pretrained model identifier")
	fs.String("backend", string(model.BackendSubprocess), "Model backend: subprocess or http")
	fs.String("backend-url", "http://localhost:5000", "Base URL of the inference server (http backend)")
	fs.String("python", "python3", "Python interpreter (subprocess backend)")
	fs.String("artifacts-dir", "artifacts", "Directory for the load manifest")
	fs.Int("http-port", 8000, "HTTP API and dashboard port")
	fs.Int("grpc-port", 50051, "gRPC server port")
	fs.String("log-level", "info", "Log level: debug, info, warn, error")
	fs.String("log-format", "text", "Log format: text or json")
	fs.String("otlp-endpoint", "", "OTLP/HTTP trace endpoint, empty disables tracing")

	bindings := map[string]string{
		"model.name":              "model",
		"model.backend":           "backend",
		"model.backend_url":       "backend-url",
		"model.python_path":       "python",
		"paths.artifacts_dir":     "artifacts-dir",
		"server.http_port":        "http-port",
		"server.grpc_port":        "grpc-port",
		"log.level":               "log-level",
		"log.format":              "log-format",
		"telemetry.otlp_endpoint": "otlp-endpoint",
	}
	for key, name := range bindings {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

// Load reads the optional .env file and config file, applies environment
// overrides and validates the result. cfgFile may be empty.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	// .env is optional; variables may come from the environment directly.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", cfgFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks ports, backend selection and generation settings.
func (c *Config) Validate() error {
	for name, port := range map[string]int{
		"server.http_port": c.Server.HTTPPort,
		"server.grpc_port": c.Server.GRPCPort,
	} {
		if port <= 0 || port > 65535 {
			return fmt.Errorf("config: %s must be between 1 and 65535, got %d", name, port)
		}
	}
	if c.Server.HTTPPort == c.Server.GRPCPort {
		return fmt.Errorf("config: http and grpc ports must differ, both are %d", c.Server.HTTPPort)
	}
	if strings.TrimSpace(c.Model.Name) == "" {
		return fmt.Errorf("config: model.name is required")
	}
	if c.Model.MaxLength <= 0 {
		return fmt.Errorf("config: model.max_length must be positive, got %d", c.Model.MaxLength)
	}
	if c.Model.NumBeams <= 0 {
		return fmt.Errorf("config: model.num_beams must be positive, got %d", c.Model.NumBeams)
	}
	backend, err := model.ParseBackendType(c.Model.Backend)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if backend == model.BackendHTTP && strings.TrimSpace(c.Model.BackendURL) == "" {
		return fmt.Errorf("config: model.backend_url is required for the http backend")
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("config: log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// LoaderConfig returns the model loader settings.
func (c *Config) LoaderConfig(logger *logrus.Logger) model.LoaderConfig {
	backend, _ := model.ParseBackendType(c.Model.Backend)
	return model.LoaderConfig{
		Backend: backend,
		Subprocess: model.SubprocessConfig{
			PythonPath: c.Model.PythonPath,
			ScriptDir:  c.Paths.CacheDir,
		},
		HTTP: model.HTTPConfig{
			BaseURL:          c.Model.BackendURL,
			Timeout:          c.Model.Timeout,
			FailureThreshold: c.Model.FailureThreshold,
			OpenTimeout:      c.Model.OpenTimeout,
		},
		Logger: logger,
	}
}

// ProviderConfig returns the model provider settings.
func (c *Config) ProviderConfig() model.ProviderConfig {
	return model.ProviderConfig{
		Artifact:     c.Model.Name,
		ArtifactsDir: c.Paths.ArtifactsDir,
		ModelsDir:    c.Paths.ModelsDir,
		CacheDir:     c.Paths.CacheDir,
	}
}

// JobsDir is where batch job results are snapshotted.
func (c *Config) JobsDir() string {
	return filepath.Join(c.Paths.CacheDir, "jobs")
}

// NewLogger builds the process logger. Invalid settings have already been
// rejected by Validate.
func (c LogConfig) NewLogger() *logrus.Logger {
	logger := logrus.New()
	if c.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
	}
	level, err := logrus.ParseLevel(c.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}
