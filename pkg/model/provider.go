package model

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	apperrors "github.com/dasmlab/polyglot/pkg/errors"
	"github.com/dasmlab/polyglot/pkg/metrics"
	"github.com/dasmlab/polyglot/pkg/storage"
)

// ManifestFile is written into the artifacts directory after a successful load.
const ManifestFile = "model_manifest.json"

// ProviderConfig describes where the model comes from and where it is cached.
type ProviderConfig struct {
	// Artifact is the pretrained model identifier.
	Artifact string
	// ArtifactsDir receives the load manifest.
	ArtifactsDir string
	// ModelsDir caches downloaded weights.
	ModelsDir string
	// CacheDir holds scratch files (worker script, job snapshots).
	CacheDir string
}

// Manifest records what was loaded and when.
type Manifest struct {
	Artifact string    `json:"artifact"`
	Backend  string    `json:"backend"`
	LoadedAt time.Time `json:"loaded_at"`
}

// Provider lazily constructs the model handle exactly once and hands the same
// handle to every caller. It is safe for concurrent use.
type Provider struct {
	cfg     ProviderConfig
	loader  Loader
	files   *storage.Files
	metrics *metrics.Collector
	logger  *logrus.Logger

	mu     sync.Mutex
	handle *Handle
	loads  int
}

// NewProvider creates a provider. Nothing is loaded until EnsureLoaded.
func NewProvider(cfg ProviderConfig, loader Loader, logger *logrus.Logger) *Provider {
	if logger == nil {
		logger = logrus.New()
	}
	return &Provider{
		cfg:     cfg,
		loader:  loader,
		files:   storage.NewFiles(logger),
		metrics: metrics.NewCollector(loader.Name()),
		logger:  logger,
	}
}

// EnsureLoaded constructs the model and tokenizer on first call. Subsequent
// calls return immediately. A failed load is not cached; the next call tries again.
func (p *Provider) EnsureLoaded(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.handle != nil {
		return nil
	}

	p.logger.WithFields(logrus.Fields{
		"artifact":   p.cfg.Artifact,
		"backend":    p.loader.Name(),
		"models_dir": p.cfg.ModelsDir,
	}).Info("Loading model")

	if err := p.files.CreateDirectories(p.cfg.ArtifactsDir, p.cfg.ModelsDir, p.cfg.CacheDir); err != nil {
		return err
	}

	start := time.Now()
	handle, err := p.loader.Load(ctx, p.cfg.Artifact, p.cfg.ModelsDir)
	p.loads++
	if err != nil {
		p.metrics.RecordModelLoad(time.Since(start), false)
		p.logger.WithError(err).WithField("artifact", p.cfg.Artifact).Error("Model load failed")
		return apperrors.Wrap("model.load", err)
	}
	p.metrics.RecordModelLoad(time.Since(start), true)
	p.handle = handle

	manifestPath := filepath.Join(p.cfg.ArtifactsDir, ManifestFile)
	manifest := Manifest{Artifact: handle.Artifact, Backend: handle.Backend, LoadedAt: handle.LoadedAt}
	if err := p.files.SaveJSON(manifestPath, manifest); err != nil {
		p.logger.WithError(err).Warn("Failed to write model manifest")
	}

	p.logger.WithFields(logrus.Fields{
		"artifact":    p.cfg.Artifact,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Model loaded")
	return nil
}

// ReadManifest returns the manifest left by the last successful load, which
// may come from a previous run.
func (p *Provider) ReadManifest() (Manifest, error) {
	var m Manifest
	err := p.files.LoadJSON(filepath.Join(p.cfg.ArtifactsDir, ManifestFile), &m)
	return m, err
}

// Get returns the loaded handle, or ErrNotLoaded before EnsureLoaded succeeded.
func (p *Provider) Get() (*Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.handle == nil {
		return nil, apperrors.Wrap("model.get", apperrors.ErrNotLoaded)
	}
	return p.handle, nil
}

// Handle loads the model if needed and returns it.
func (p *Provider) Handle(ctx context.Context) (*Handle, error) {
	if err := p.EnsureLoaded(ctx); err != nil {
		return nil, err
	}
	return p.Get()
}

// Loaded reports whether the handle exists.
func (p *Provider) Loaded() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.handle != nil
}

// Loads returns how many times the loader was invoked.
func (p *Provider) Loads() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loads
}

// Backend returns the loader name.
func (p *Provider) Backend() string {
	return p.loader.Name()
}

// Close releases the handle. It is meant for process shutdown only.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.handle == nil {
		return nil
	}
	err := p.handle.Close()
	p.handle = nil
	p.metrics.RecordModelUnload()
	p.logger.Info("Model released")
	return err
}
