// Package translatetest provides a Translator double for tests of packages
// that sit on top of the translator.
package translatetest

import (
	"context"
	"fmt"
	"sync"
)

// Call is one recorded Translate invocation.
type Call struct {
	Text       string
	SourceLang string
	TargetLang string
}

// Fake is a deterministic Translator. By default it returns
// "[<target>] <text>". Set Err to fail every call, or FailOn to fail only
// calls whose text matches.
type Fake struct {
	Err    error
	FailOn string

	mu    sync.Mutex
	calls []Call
}

// Translate implements translate.Translator.
func (f *Fake) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, Call{Text: text, SourceLang: sourceLang, TargetLang: targetLang})
	f.mu.Unlock()

	if f.Err != nil {
		return "", f.Err
	}
	if f.FailOn != "" && text == f.FailOn {
		return "", fmt.Errorf("cannot translate %q", text)
	}
	return fmt.Sprintf("[%s] %s", targetLang, text), nil
}

// CheckHealth implements translate.Translator.
func (f *Fake) CheckHealth(ctx context.Context) error {
	return f.Err
}

// SupportedLanguages implements translate.Translator.
func (f *Fake) SupportedLanguages(ctx context.Context) ([]string, error) {
	return []string{"en", "es", "fr", "de", "hi", "zh", "ar", "ru", "ja", "te"}, nil
}

// Calls returns the recorded calls in order.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}
