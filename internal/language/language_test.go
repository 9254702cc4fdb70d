package language_test

import (
	"testing"

	"curator/internal/language"
)

func TestToISO3(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"en", "eng"},
		{"eng", "eng"},
		{"English", "eng"},
		{"ENGLISH", "eng"},
		{"en-US", "eng"},
		{"fr", "fra"},
		{"French", "fra"},
		{"de", "deu"},
		{"Japanese", "jpn"},
		{"pt_BR", "por"},
		{"", "und"},
		{"klingon", "und"},
		{"xx", "und"},
	}
	for _, tc := range cases {
		if got := language.ToISO3(tc.input); got != tc.want {
			t.Errorf("ToISO3(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestDisplayName(t *testing.T) {
	if got := language.DisplayName("eng"); got != "English" {
		t.Fatalf("DisplayName(eng) = %q", got)
	}
	if got := language.DisplayName(""); got != "Unknown" {
		t.Fatalf("DisplayName(\"\") = %q", got)
	}
	if got := language.DisplayName("zz-unknown"); got != "ZZ-UNKNOWN" {
		t.Fatalf("DisplayName(zz-unknown) = %q", got)
	}
}

func TestExtractFromTags(t *testing.T) {
	if got := language.ExtractFromTags(map[string]string{"LANGUAGE": " ENG "}); got != "eng" {
		t.Fatalf("ExtractFromTags = %q", got)
	}
	if got := language.ExtractFromTags(nil); got != "" {
		t.Fatalf("expected empty result for nil tags, got %q", got)
	}
}
