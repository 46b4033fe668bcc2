package localize

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"

	apperrors "github.com/dasmlab/polyglot/pkg/errors"
	"github.com/dasmlab/polyglot/pkg/translate/translatetest"
)

func newTestLocalizer(fake *translatetest.Fake) *Localizer {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewLocalizer(fake, logger)
}

func TestLocalizeCurrency(t *testing.T) {
	l := newTestLocalizer(&translatetest.Fake{})
	tests := []struct {
		name     string
		text     string
		currency Currency
		want     string
	}{
		{"euro with cents", "Price: $10.50", EUR, "Price: €10.50"},
		{"pound", "Only $5 today", GBP, "Only £5 today"},
		{"rupee and yen", "$1 and $2.99", INR, "₹1 and ₹2.99"},
		{"yen", "$300", JPY, "¥300"},
		{"usd is identity", "Price: $10.50", USD, "Price: $10.50"},
		{"unknown currency keeps dollar", "Price: $10.50", Currency("CHF"), "Price: $10.50"},
		{"lowercase code is unknown", "Price: $10.50", Currency("eur"), "Price: $10.50"},
		{"one decimal keeps the tail", "$10.5", EUR, "€10.5"},
		{"bare dollar sign untouched", "costs $ 10", EUR, "costs $ 10"},
		{"no amounts", "nothing to do", EUR, "nothing to do"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := l.LocalizeCurrency(tt.text, tt.currency); got != tt.want {
				t.Errorf("LocalizeCurrency(%q, %s) = %q, want %q", tt.text, tt.currency, got, tt.want)
			}
		})
	}
}

func TestLocalizeUnits(t *testing.T) {
	l := newTestLocalizer(&translatetest.Fake{})
	tests := []struct {
		name   string
		text   string
		system UnitSystem
		want   string
	}{
		{"miles and fahrenheit", "It is 50 miles and 32°F", Metric, "It is 80.0 km and 0.0°C"},
		{"no space before miles", "run 5miles", Metric, "run 8.0 km"},
		{"several occurrences", "3 miles, then 7 miles", Metric, "4.8 km, then 11.2 km"},
		{"hot day", "100°F outside", Metric, "37.8°C outside"},
		{"below freezing", "0°F", Metric, "-17.8°C"},
		{"imperial is identity", "It is 50 miles and 32°F", Imperial, "It is 50 miles and 32°F"},
		{"unknown system is identity", "It is 50 miles", UnitSystem("nautical"), "It is 50 miles"},
		{"singular mile untouched", "1 mile", Metric, "1 mile"},
		{"empty", "", Metric, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := l.LocalizeUnits(tt.text, tt.system); got != tt.want {
				t.Errorf("LocalizeUnits(%q, %s) = %q, want %q", tt.text, tt.system, got, tt.want)
			}
		})
	}
}

func TestCurrencySymbol(t *testing.T) {
	for _, c := range Currencies() {
		if c.Symbol() == "" {
			t.Errorf("%s has no symbol", c)
		}
	}
	if Currency("").Symbol() != "$" {
		t.Error("empty currency should map to $")
	}
}

func TestFullLocalization(t *testing.T) {
	fake := &translatetest.Fake{}
	l := newTestLocalizer(fake)

	res, err := l.FullLocalization(context.Background(), "Costs $5 for 10 miles at 212°F", "en", "es", EUR, Metric)
	if err != nil {
		t.Fatalf("FullLocalization: %v", err)
	}
	want := Result{
		Original:   "Costs $5 for 10 miles at 212°F",
		Translated: "[es] Costs €5 for 16.0 km at 100.0°C",
		SourceLang: "en",
		TargetLang: "es",
		Currency:   "EUR",
		Units:      "metric",
	}
	if res != want {
		t.Fatalf("FullLocalization = %+v, want %+v", res, want)
	}
	if calls := fake.Calls(); len(calls) != 1 || calls[0].SourceLang != "en" || calls[0].TargetLang != "es" {
		t.Fatalf("translator calls = %+v", calls)
	}
}

func TestFullLocalizationPropagatesTranslateError(t *testing.T) {
	cause := errors.New("model exploded")
	l := newTestLocalizer(&translatetest.Fake{Err: cause})

	_, err := l.FullLocalization(context.Background(), "x", "en", "fr", USD, Metric)
	if !apperrors.Is(err, cause) {
		t.Fatalf("error = %v, want cause", err)
	}
	var domainErr *apperrors.Error
	if !apperrors.As(err, &domainErr) {
		t.Fatalf("error %v is not a domain error", err)
	}
}
