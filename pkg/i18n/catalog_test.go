package i18n

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
)

func newTestCatalog() *Catalog {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewCatalog(logger)
}

func TestResolve(t *testing.T) {
	c := newTestCatalog()
	cases := []struct {
		explicit, accept, want string
	}{
		{"", "", "en"},
		{"es", "", "es"},
		{"", "es-MX,es;q=0.9,en;q=0.8", "es"},
		{"en", "es-ES", "en"},
		{"", "de-DE", "en"},
		{"not a tag!", "es", "es"},
	}
	for _, tc := range cases {
		if got := c.Resolve(tc.explicit, tc.accept); got != tc.want {
			t.Errorf("Resolve(%q, %q) = %q, want %q", tc.explicit, tc.accept, got, tc.want)
		}
	}
}

func TestT(t *testing.T) {
	c := newTestCatalog()

	if got := c.T("en", "tab_translate", nil); got != "Translate" {
		t.Errorf("en tab_translate = %q", got)
	}
	if got := c.T("es", "tab_translate", nil); got != "Traducir" {
		t.Errorf("es tab_translate = %q", got)
	}
	if got := c.T("es", "job_progress", map[string]any{"Done": 3, "Total": 10}); got != "3 de 10 filas" {
		t.Errorf("es job_progress = %q", got)
	}
	if got := c.T("fr", "label_text", nil); got != "Text" {
		t.Errorf("fr fallback = %q", got)
	}
	if got := c.T("en", "no_such_key", nil); got != "no_such_key" {
		t.Errorf("missing key = %q", got)
	}
}
