// Package localize adapts translated text for a target market by rewriting
// currency symbols and converting imperial units.
package localize

import (
	"context"
	"regexp"
	"strconv"

	"github.com/sirupsen/logrus"

	apperrors "github.com/dasmlab/polyglot/pkg/errors"
	"github.com/dasmlab/polyglot/pkg/metrics"
	"github.com/dasmlab/polyglot/pkg/translate"
)

// Currency is an ISO 4217 code.
type Currency string

const (
	USD Currency = "USD"
	EUR Currency = "EUR"
	GBP Currency = "GBP"
	INR Currency = "INR"
	JPY Currency = "JPY"
)

var currencySymbols = map[Currency]string{
	USD: "$",
	EUR: "€",
	GBP: "£",
	INR: "₹",
	JPY: "¥",
}

// Currencies lists the currencies with a known symbol.
func Currencies() []Currency {
	return []Currency{USD, EUR, GBP, INR, JPY}
}

// Symbol returns the currency symbol; unknown codes get "$". Codes are
// case-sensitive.
func (c Currency) Symbol() string {
	if s, ok := currencySymbols[c]; ok {
		return s
	}
	return "$"
}

// UnitSystem selects the measurement system of the output.
type UnitSystem string

const (
	Metric   UnitSystem = "metric"
	Imperial UnitSystem = "imperial"
)

var (
	dollarAmount = regexp.MustCompile(`\$(\d+(?:\.\d{2})?)`)
	milesAmount  = regexp.MustCompile(`(\d+)\s*miles`)
	fahrenheit   = regexp.MustCompile(`(\d+)°F`)
)

// Result is the outcome of a full localization.
type Result struct {
	Original   string `json:"original"`
	Translated string `json:"translated"`
	SourceLang string `json:"source_lang"`
	TargetLang string `json:"target_lang"`
	Currency   string `json:"currency"`
	Units      string `json:"units"`
}

// Localizer translates and then localizes text.
type Localizer struct {
	translator translate.Translator
	logger     *logrus.Logger
}

// NewLocalizer creates a localizer that translates with translator.
func NewLocalizer(translator translate.Translator, logger *logrus.Logger) *Localizer {
	if logger == nil {
		logger = logrus.New()
	}
	return &Localizer{translator: translator, logger: logger}
}

// LocalizeCurrency replaces the "$" of every dollar amount with the symbol of
// currency. Amounts are left as they are.
func (l *Localizer) LocalizeCurrency(text string, currency Currency) string {
	symbol := currency.Symbol()
	n := 0
	out := dollarAmount.ReplaceAllStringFunc(text, func(m string) string {
		n++
		return symbol + m[1:]
	})
	metrics.RecordSubstitutions("currency", n)
	return out
}

// LocalizeUnits converts miles to kilometres and Fahrenheit to Celsius when
// system is Metric. Any other system returns text unchanged.
func (l *Localizer) LocalizeUnits(text string, system UnitSystem) string {
	if system != Metric {
		return text
	}

	miles := 0
	text = milesAmount.ReplaceAllStringFunc(text, func(m string) string {
		miles++
		v := leadingNumber(milesAmount, m)
		return oneDecimal(v*1.6) + " km"
	})
	metrics.RecordSubstitutions("miles", miles)

	degrees := 0
	text = fahrenheit.ReplaceAllStringFunc(text, func(m string) string {
		degrees++
		v := leadingNumber(fahrenheit, m)
		return oneDecimal((v-32)*5/9) + "°C"
	})
	metrics.RecordSubstitutions("fahrenheit", degrees)

	return text
}

// FullLocalization translates text, then localizes currency and units.
func (l *Localizer) FullLocalization(ctx context.Context, text, sourceLang, targetLang string, currency Currency, units UnitSystem) (Result, error) {
	translated, err := l.translator.Translate(ctx, text, sourceLang, targetLang)
	if err != nil {
		return Result{}, apperrors.Wrap("localize", err)
	}

	translated = l.LocalizeCurrency(translated, currency)
	translated = l.LocalizeUnits(translated, units)

	l.logger.WithFields(logrus.Fields{
		"source_lang": sourceLang,
		"target_lang": targetLang,
		"currency":    string(currency),
		"units":       string(units),
	}).Debug("Localized")

	return Result{
		Original:   text,
		Translated: translated,
		SourceLang: sourceLang,
		TargetLang: targetLang,
		Currency:   string(currency),
		Units:      string(units),
	}, nil
}

// leadingNumber parses the first capture group of m. Integers are converted
// exactly so that the arithmetic matches integer-first evaluation.
func leadingNumber(re *regexp.Regexp, m string) float64 {
	digits := re.FindStringSubmatch(m)[1]
	if i, err := strconv.ParseInt(digits, 10, 64); err == nil && i < 1<<53 {
		return float64(i)
	}
	f, _ := strconv.ParseFloat(digits, 64)
	return f
}

func oneDecimal(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}
