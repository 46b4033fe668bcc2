package languages

import (
	"reflect"
	"testing"
)

func TestResolveSupported(t *testing.T) {
	r := NewRegistry()
	tests := []struct {
		code string
		want string
	}{
		{"en", "en_XX"},
		{"es", "es_XX"},
		{"fr", "fr_XX"},
		{"de", "de_DE"},
		{"hi", "hi_IN"},
		{"zh", "zh_CN"},
		{"ar", "ar_AR"},
		{"ru", "ru_RU"},
		{"ja", "ja_XX"},
		{"te", "te_IN"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := r.ResolveSource(tt.code); got != tt.want {
				t.Fatalf("ResolveSource(%q) = %q, want %q", tt.code, got, tt.want)
			}
			if got := r.ResolveTarget(tt.code); got != tt.want {
				t.Fatalf("ResolveTarget(%q) = %q, want %q", tt.code, got, tt.want)
			}
		})
	}
}

func TestResolveUnknownFallsBack(t *testing.T) {
	r := NewRegistry()
	for _, code := range []string{"", "xx", "klingon", "pt", "it"} {
		if got := r.ResolveSource(code); got != DefaultSourceTag {
			t.Fatalf("ResolveSource(%q) = %q, want %q", code, got, DefaultSourceTag)
		}
		if got := r.ResolveTarget(code); got != DefaultTargetTag {
			t.Fatalf("ResolveTarget(%q) = %q, want %q", code, got, DefaultTargetTag)
		}
	}
}

func TestResolveIsExact(t *testing.T) {
	r := NewRegistry()
	tests := []struct {
		code       string
		wantSource string
		wantTarget string
	}{
		{"FR", DefaultSourceTag, DefaultTargetTag},
		{"fr-CA", DefaultSourceTag, DefaultTargetTag},
		{"De", DefaultSourceTag, DefaultTargetTag},
		{"zh_Hans", DefaultSourceTag, DefaultTargetTag},
		{" de ", DefaultSourceTag, DefaultTargetTag},
		{"en_XX", DefaultSourceTag, DefaultTargetTag},
		{"fr", "fr_XX", "fr_XX"},
	}
	for _, tt := range tests {
		if got := r.ResolveSource(tt.code); got != tt.wantSource {
			t.Errorf("ResolveSource(%q) = %q, want %q", tt.code, got, tt.wantSource)
		}
		if got := r.ResolveTarget(tt.code); got != tt.wantTarget {
			t.Errorf("ResolveTarget(%q) = %q, want %q", tt.code, got, tt.wantTarget)
		}
	}
	if _, ok := r.Lookup("FR"); ok {
		t.Error("Lookup(FR) reported supported")
	}
}

func TestSupported(t *testing.T) {
	want := []string{"en", "es", "fr", "de", "hi", "zh", "ar", "ru", "ja", "te"}
	got := NewRegistry().Supported()
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Supported() = %v, want %v", got, want)
	}
	got[0] = "mutated"
	if NewRegistry().Supported()[0] != "en" {
		t.Fatal("Supported() must return a copy")
	}
}

func TestName(t *testing.T) {
	r := NewRegistry()
	if got := r.Name("es"); got != "Spanish" {
		t.Fatalf("Name(es) = %q, want Spanish", got)
	}
	if got := r.Name("!!"); got != "!!" {
		t.Fatalf("Name(!!) = %q", got)
	}
}
