package model

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// BackendType selects how the model is hosted.
type BackendType string

const (
	// BackendSubprocess runs the model in a local Python process.
	BackendSubprocess BackendType = "subprocess"
	// BackendHTTP calls a remote inference server.
	BackendHTTP BackendType = "http"
)

// LoaderConfig holds configuration for creating a Loader.
type LoaderConfig struct {
	Backend    BackendType
	Subprocess SubprocessConfig
	HTTP       HTTPConfig
	// Logger is the logger instance to use. If nil, a default logger is created.
	Logger *logrus.Logger
}

// NewLoader creates the Loader for the configured backend.
func NewLoader(cfg LoaderConfig) (Loader, error) {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	cfg.Logger.WithField("backend", cfg.Backend).Info("Creating model loader")

	switch cfg.Backend {
	case BackendSubprocess:
		return NewSubprocessLoader(cfg.Subprocess, cfg.Logger), nil
	case BackendHTTP:
		return NewHTTPLoader(cfg.HTTP, cfg.Logger), nil
	default:
		cfg.Logger.WithField("backend", cfg.Backend).Error("Unknown model backend")
		return nil, fmt.Errorf("unknown model backend: %s", cfg.Backend)
	}
}

// ParseBackendType parses a string into a BackendType, ignoring case.
func ParseBackendType(s string) (BackendType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "subprocess", "python":
		return BackendSubprocess, nil
	case "http", "remote":
		return BackendHTTP, nil
	default:
		return "", fmt.Errorf("unknown backend type: %s (supported: subprocess, http)", s)
	}
}
