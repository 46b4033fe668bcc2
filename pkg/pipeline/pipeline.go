// Package pipeline wraps the translator and the localizer with the result
// envelope returned to API clients.
package pipeline

import (
	"context"

	"github.com/sirupsen/logrus"

	apperrors "github.com/dasmlab/polyglot/pkg/errors"
	"github.com/dasmlab/polyglot/pkg/localize"
	"github.com/dasmlab/polyglot/pkg/translate"
)

// TranslationResult is the response to a translation request.
type TranslationResult struct {
	Success    bool   `json:"success"`
	Original   string `json:"original"`
	Translated string `json:"translated"`
	SourceLang string `json:"source_lang"`
	TargetLang string `json:"target_lang"`
}

// LocalizationResult is the response to a localization request.
type LocalizationResult struct {
	Success bool `json:"success"`
	localize.Result
}

// TranslationPipeline serves translation requests.
type TranslationPipeline struct {
	translator translate.Translator
	logger     *logrus.Logger
}

// NewTranslationPipeline creates a translation pipeline.
func NewTranslationPipeline(translator translate.Translator, logger *logrus.Logger) *TranslationPipeline {
	if logger == nil {
		logger = logrus.New()
	}
	return &TranslationPipeline{translator: translator, logger: logger}
}

// Translate translates text and wraps the outcome. Errors are logged and
// returned as they are.
func (p *TranslationPipeline) Translate(ctx context.Context, text, sourceLang, targetLang string) (TranslationResult, error) {
	translated, err := p.translator.Translate(ctx, text, sourceLang, targetLang)
	if err != nil {
		p.logger.WithError(err).Error("Pipeline error")
		return TranslationResult{}, apperrors.Wrap("pipeline.translate", err)
	}
	return TranslationResult{
		Success:    true,
		Original:   text,
		Translated: translated,
		SourceLang: sourceLang,
		TargetLang: targetLang,
	}, nil
}

// LocalizationPipeline serves localization requests.
type LocalizationPipeline struct {
	localizer *localize.Localizer
	logger    *logrus.Logger
}

// NewLocalizationPipeline creates a localization pipeline.
func NewLocalizationPipeline(localizer *localize.Localizer, logger *logrus.Logger) *LocalizationPipeline {
	if logger == nil {
		logger = logrus.New()
	}
	return &LocalizationPipeline{localizer: localizer, logger: logger}
}

// Defaults applied by transports when a request omits currency or units.
const (
	DefaultCurrency = string(localize.USD)
	DefaultUnits    = string(localize.Metric)
)

// Localize translates and localizes text. currency and units are used as
// given: an empty currency keeps "$" and empty units convert nothing.
// Transports substitute DefaultCurrency and DefaultUnits for omitted fields.
func (p *LocalizationPipeline) Localize(ctx context.Context, text, sourceLang, targetLang, currency, units string) (LocalizationResult, error) {
	res, err := p.localizer.FullLocalization(ctx, text, sourceLang, targetLang, localize.Currency(currency), localize.UnitSystem(units))
	if err != nil {
		p.logger.WithError(err).Error("Localization error")
		return LocalizationResult{}, apperrors.Wrap("pipeline.localize", err)
	}
	return LocalizationResult{Success: true, Result: res}, nil
}
