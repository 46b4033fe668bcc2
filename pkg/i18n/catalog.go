// Package i18n holds the user interface copy of the dashboard in English and
// Spanish, backed by go-i18n and embedded TOML message files.
package i18n

import (
	"embed"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/pelletier/go-toml/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/language"
)

//go:embed active.*.toml
var localeFS embed.FS

// Locales supported by the catalog, default first.
var Locales = []language.Tag{language.English, language.Spanish}

// Catalog renders UI messages.
type Catalog struct {
	bundle  *i18n.Bundle
	matcher language.Matcher
	logger  *logrus.Logger
}

// NewCatalog loads the embedded message files.
func NewCatalog(logger *logrus.Logger) *Catalog {
	if logger == nil {
		logger = logrus.New()
	}
	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	for _, file := range []string{"active.en.toml", "active.es.toml"} {
		if _, err := bundle.LoadMessageFileFS(localeFS, file); err != nil {
			logger.WithError(err).WithField("file", file).Error("Failed to load message file")
		}
	}

	return &Catalog{
		bundle:  bundle,
		matcher: language.NewMatcher(Locales),
		logger:  logger,
	}
}

// Resolve picks the UI locale from an explicit choice (e.g. a ?lang= query
// value) or, failing that, an Accept-Language header.
func (c *Catalog) Resolve(explicit, acceptLanguage string) string {
	var prefs []language.Tag
	if explicit != "" {
		if tag, err := language.Parse(explicit); err == nil {
			prefs = append(prefs, tag)
		}
	}
	if tags, _, err := language.ParseAcceptLanguage(acceptLanguage); err == nil {
		prefs = append(prefs, tags...)
	}
	_, idx, _ := c.matcher.Match(prefs...)
	base, _ := Locales[idx].Base()
	return base.String()
}

// T renders the message identified by key for locale, falling back to
// English and finally to the key itself.
func (c *Catalog) T(locale, key string, data map[string]any) string {
	if key == "" {
		return ""
	}
	localizer := i18n.NewLocalizer(c.bundle, locale, language.English.String())
	msg, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    key,
		TemplateData: data,
	})
	if err != nil {
		c.logger.WithError(err).WithFields(logrus.Fields{
			"key":    key,
			"locale": locale,
		}).Warn("Missing UI message")
		return key
	}
	return msg
}
