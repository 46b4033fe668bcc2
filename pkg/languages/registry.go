// Package languages maps the short language codes used by the API (e.g. "en")
// to the model's internal language tags (e.g. "en_XX").
package languages

import (
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

const (
	// DefaultSourceTag is used when the source code is not supported.
	DefaultSourceTag = "en_XX"
	// DefaultTargetTag is used when the target code is not supported.
	DefaultTargetTag = "es_XX"
)

// Language is one supported code and its model tag.
type Language struct {
	Code string
	Tag  string
}

// supported lists the codes in the order they are reported to clients.
var supported = []Language{
	{Code: "en", Tag: "en_XX"},
	{Code: "es", Tag: "es_XX"},
	{Code: "fr", Tag: "fr_XX"},
	{Code: "de", Tag: "de_DE"},
	{Code: "hi", Tag: "hi_IN"},
	{Code: "zh", Tag: "zh_CN"},
	{Code: "ar", Tag: "ar_AR"},
	{Code: "ru", Tag: "ru_RU"},
	{Code: "ja", Tag: "ja_XX"},
	{Code: "te", Tag: "te_IN"},
}

// Registry resolves language codes to model tags. The zero value is not
// usable; call NewRegistry. A Registry is immutable and safe for concurrent use.
type Registry struct {
	tags map[string]string
}

// NewRegistry creates the registry of supported languages.
func NewRegistry() *Registry {
	tags := make(map[string]string, len(supported))
	for _, l := range supported {
		tags[l.Code] = l.Tag
	}
	return &Registry{tags: tags}
}

// Lookup returns the model tag for code and whether code is supported.
// Codes match exactly: "FR" and "fr-CA" are not supported.
func (r *Registry) Lookup(code string) (string, bool) {
	tag, ok := r.tags[code]
	return tag, ok
}

// ResolveSource returns the tag for a source code, falling back to English.
func (r *Registry) ResolveSource(code string) string {
	if tag, ok := r.Lookup(code); ok {
		return tag
	}
	return DefaultSourceTag
}

// ResolveTarget returns the tag for a target code, falling back to Spanish.
func (r *Registry) ResolveTarget(code string) string {
	if tag, ok := r.Lookup(code); ok {
		return tag
	}
	return DefaultTargetTag
}

// Supported returns the supported codes.
func (r *Registry) Supported() []string {
	codes := make([]string, 0, len(supported))
	for _, l := range supported {
		codes = append(codes, l.Code)
	}
	return codes
}

// Languages returns the supported code/tag pairs.
func (r *Registry) Languages() []Language {
	out := make([]Language, len(supported))
	copy(out, supported)
	return out
}

// Name returns the English display name of a code, or the code itself when
// no name is known.
func (r *Registry) Name(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return code
}
