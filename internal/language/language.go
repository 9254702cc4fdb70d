package language

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Undetermined is the ISO 639-2 code ffmpeg uses for unknown languages.
const Undetermined = "und"

// Full word forms that ISO parsing cannot resolve. Codes themselves go
// through x/text below.
var byWord = map[string]string{
	"english":    "en",
	"spanish":    "es",
	"french":     "fr",
	"german":     "de",
	"italian":    "it",
	"portuguese": "pt",
	"japanese":   "ja",
	"korean":     "ko",
	"chinese":    "zh",
	"russian":    "ru",
	"arabic":     "ar",
	"hindi":      "hi",
	"dutch":      "nl",
	"polish":     "pl",
	"swedish":    "sv",
	"danish":     "da",
	"norwegian":  "no",
	"finnish":    "fi",
	"czech":      "cs",
	"greek":      "el",
	"hebrew":     "he",
	"hungarian":  "hu",
	"turkish":    "tr",
	"ukrainian":  "uk",
	"vietnamese": "vi",
	"thai":       "th",
}

func parseBase(value string) (language.Base, bool) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return language.Base{}, false
	}
	if mapped, ok := byWord[value]; ok {
		value = mapped
	}
	if base, err := language.ParseBase(value); err == nil {
		return base, true
	}
	// Fall back to full-tag parsing for values like "en-US" or "pt_BR".
	if tag, err := language.Parse(value); err == nil {
		if base, conf := tag.Base(); conf > language.No {
			return base, true
		}
	}
	return language.Base{}, false
}

// ToISO3 converts any recognized language identifier to its ISO 639-2
// three-letter code. Unrecognized input yields Undetermined.
func ToISO3(value string) string {
	base, ok := parseBase(value)
	if !ok {
		return Undetermined
	}
	if code := base.ISO3(); code != "" {
		return code
	}
	return Undetermined
}

// DisplayName returns a human-readable English name for any recognized
// identifier. Returns "Unknown" for empty input and the uppercased input when
// unrecognized.
func DisplayName(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "Unknown"
	}
	base, ok := parseBase(trimmed)
	if !ok {
		return strings.ToUpper(trimmed)
	}
	if name := display.English.Languages().Name(language.MustParse(base.String())); name != "" {
		return name
	}
	return strings.ToUpper(trimmed)
}

// ExtractFromTags pulls a language value out of stream metadata tags,
// checking the tag keys ffprobe commonly emits.
func ExtractFromTags(tags map[string]string) string {
	if len(tags) == 0 {
		return ""
	}
	keys := []string{"language", "LANGUAGE", "Language", "language_ietf", "lang", "LANG"}
	for _, key := range keys {
		if value, ok := tags[key]; ok {
			value = strings.TrimSpace(strings.ReplaceAll(value, "\x00", ""))
			if value != "" {
				return strings.ToLower(value)
			}
		}
	}
	return ""
}
