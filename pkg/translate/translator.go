// Package translate turns text in one language into another by driving the
// shared model handle: resolve tags, encode, generate, decode.
package translate

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/dasmlab/polyglot/pkg/errors"
	"github.com/dasmlab/polyglot/pkg/languages"
	"github.com/dasmlab/polyglot/pkg/metrics"
	"github.com/dasmlab/polyglot/pkg/model"
)

const tracerName = "github.com/dasmlab/polyglot/pkg/translate"

// Translator defines the interface consumed by the pipelines, the batch
// processor and the transports.
type Translator interface {
	// Translate translates text from source language to target language.
	// Codes are short identifiers such as "en" or "fr"; unsupported codes fall
	// back to English (source) and Spanish (target).
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)

	// CheckHealth verifies that the model is loaded and usable.
	CheckHealth(ctx context.Context) error

	// SupportedLanguages returns the supported language codes.
	SupportedLanguages(ctx context.Context) ([]string, error)
}

// HandleSource hands out the shared model handle. *model.Provider implements it.
type HandleSource interface {
	Handle(ctx context.Context) (*model.Handle, error)
	Backend() string
}

// Options tunes generation.
type Options struct {
	// MaxLength caps both input truncation and generated length, in tokens.
	MaxLength int
	// NumBeams is the beam search width.
	NumBeams int
}

// DefaultOptions returns the generation settings used by the service.
func DefaultOptions() Options {
	return Options{MaxLength: 512, NumBeams: 5}
}

// ModelTranslator implements Translator on top of the shared model handle.
type ModelTranslator struct {
	source   HandleSource
	registry *languages.Registry
	opts     Options
	metrics  *metrics.Collector
	tracer   trace.Tracer
	logger   *logrus.Logger
}

// NewModelTranslator creates a translator. Zero option values take the defaults.
func NewModelTranslator(source HandleSource, registry *languages.Registry, opts Options, logger *logrus.Logger) *ModelTranslator {
	if logger == nil {
		logger = logrus.New()
	}
	if registry == nil {
		registry = languages.NewRegistry()
	}
	def := DefaultOptions()
	if opts.MaxLength <= 0 {
		opts.MaxLength = def.MaxLength
	}
	if opts.NumBeams <= 0 {
		opts.NumBeams = def.NumBeams
	}
	return &ModelTranslator{
		source:   source,
		registry: registry,
		opts:     opts,
		metrics:  metrics.NewCollector(source.Backend()),
		tracer:   otel.Tracer(tracerName),
		logger:   logger,
	}
}

// Translate implements Translator.
func (t *ModelTranslator) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	ctx, span := t.tracer.Start(ctx, "translate.Translate", trace.WithAttributes(
		attribute.String("source_lang", sourceLang),
		attribute.String("target_lang", targetLang),
		attribute.Int("text_length", len(text)),
	))
	defer span.End()

	start := time.Now()
	translated, err := t.translate(ctx, text, sourceLang, targetLang)
	t.metrics.RecordTranslationRequest(time.Since(start), err == nil, len(text), len(translated))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		t.logger.WithError(err).WithFields(logrus.Fields{
			"source_lang": sourceLang,
			"target_lang": targetLang,
		}).Error("Translation failed")
		return "", apperrors.Wrap("translate", err)
	}

	t.logger.WithFields(logrus.Fields{
		"source_lang": sourceLang,
		"target_lang": targetLang,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Translated")
	return translated, nil
}

func (t *ModelTranslator) translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	handle, err := t.source.Handle(ctx)
	if err != nil {
		return "", err
	}

	srcTag := t.registry.ResolveSource(sourceLang)
	tgtTag := t.registry.ResolveTarget(targetLang)

	enc, err := handle.Tokenizer.Encode(ctx, text, srcTag, t.opts.MaxLength)
	if err != nil {
		return "", err
	}

	forcedID, err := handle.Tokenizer.LangCodeToID(ctx, tgtTag)
	if err != nil {
		return "", err
	}

	sequences, err := handle.Model.Generate(ctx, enc, model.GenerateOptions{
		ForcedBOSTokenID: forcedID,
		MaxLength:        t.opts.MaxLength,
		NumBeams:         t.opts.NumBeams,
	})
	if err != nil {
		return "", err
	}
	if len(sequences) == 0 {
		return "", errors.New("model generated no sequences")
	}

	texts, err := handle.Tokenizer.Decode(ctx, sequences[:1], true)
	if err != nil {
		return "", err
	}
	if len(texts) == 0 {
		return "", errors.New("tokenizer decoded no text")
	}
	return texts[0], nil
}

// CheckHealth implements Translator by making sure the model is loaded and
// its backend still answers.
func (t *ModelTranslator) CheckHealth(ctx context.Context) error {
	handle, err := t.source.Handle(ctx)
	if err != nil {
		return apperrors.Wrap("translate.health", err)
	}
	if err := handle.Ping(ctx); err != nil {
		return apperrors.Wrap("translate.health", err)
	}
	return nil
}

// SupportedLanguages implements Translator.
func (t *ModelTranslator) SupportedLanguages(ctx context.Context) ([]string, error) {
	return t.registry.Supported(), nil
}

// Registry returns the language registry used for tag resolution.
func (t *ModelTranslator) Registry() *languages.Registry {
	return t.registry
}
