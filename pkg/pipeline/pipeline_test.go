package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"

	apperrors "github.com/dasmlab/polyglot/pkg/errors"
	"github.com/dasmlab/polyglot/pkg/localize"
	"github.com/dasmlab/polyglot/pkg/translate/translatetest"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestTranslationPipeline(t *testing.T) {
	p := NewTranslationPipeline(&translatetest.Fake{}, quietLogger())

	res, err := p.Translate(context.Background(), "Hello", "en", "fr")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	want := TranslationResult{Success: true, Original: "Hello", Translated: "[fr] Hello", SourceLang: "en", TargetLang: "fr"}
	if res != want {
		t.Fatalf("Translate = %+v, want %+v", res, want)
	}
}

func TestTranslationPipelineReturnsSameError(t *testing.T) {
	cause := apperrors.Wrap("translate", errors.New("boom"))
	p := NewTranslationPipeline(&translatetest.Fake{Err: cause}, quietLogger())

	_, err := p.Translate(context.Background(), "Hello", "en", "fr")
	if err != cause {
		t.Fatalf("error = %v, want the translator's error unchanged", err)
	}
}

func TestLocalizationPipelineEmptySettings(t *testing.T) {
	fake := &translatetest.Fake{}
	p := NewLocalizationPipeline(localize.NewLocalizer(fake, quietLogger()), quietLogger())

	res, err := p.Localize(context.Background(), "$20 for 2 miles at 50°F", "en", "de", "", "")
	if err != nil {
		t.Fatalf("Localize: %v", err)
	}
	if !res.Success || res.Currency != "" || res.Units != "" {
		t.Fatalf("Localize = %+v, want settings echoed unchanged", res)
	}
	if res.Translated != "[de] $20 for 2 miles at 50°F" {
		t.Fatalf("Translated = %q, want no unit conversion", res.Translated)
	}

	res, err = p.Localize(context.Background(), "$20 for 2 miles", "en", "de", DefaultCurrency, DefaultUnits)
	if err != nil {
		t.Fatal(err)
	}
	if res.Translated != "[de] $20 for 3.2 km" {
		t.Fatalf("Translated = %q", res.Translated)
	}
}

func TestLocalizationResultJSON(t *testing.T) {
	p := NewLocalizationPipeline(localize.NewLocalizer(&translatetest.Fake{}, quietLogger()), quietLogger())
	res, err := p.Localize(context.Background(), "$1", "en", "ja", "JPY", "imperial")
	if err != nil {
		t.Fatal(err)
	}
	b, err := json.Marshal(res)
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatal(err)
	}
	for key, want := range map[string]any{
		"success":     true,
		"original":    "$1",
		"translated":  "[ja] ¥1",
		"source_lang": "en",
		"target_lang": "ja",
		"currency":    "JPY",
		"units":       "imperial",
	} {
		if got[key] != want {
			t.Errorf("%s = %v, want %v", key, got[key], want)
		}
	}
	if len(got) != 7 {
		t.Errorf("unexpected fields: %v", got)
	}
}

func TestLocalizationPipelineError(t *testing.T) {
	cause := errors.New("boom")
	p := NewLocalizationPipeline(localize.NewLocalizer(&translatetest.Fake{Err: cause}, quietLogger()), quietLogger())
	if _, err := p.Localize(context.Background(), "x", "en", "fr", "EUR", "metric"); !apperrors.Is(err, cause) {
		t.Fatalf("error = %v, want cause", err)
	}
}
