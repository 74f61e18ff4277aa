package enrichment

import (
	"strings"

	"golang.org/x/text/language"
)

var (
	promptLanguages = []language.Tag{language.English, language.French}
	languageMatcher = language.NewMatcher(promptLanguages)
)

// ResolveLanguage maps a profile language ("fr-CA", "french"...) onto a
// supported prompt language, falling back to fallback then English.
func ResolveLanguage(pref, fallback string) string {
	for _, candidate := range []string{pref, fallback} {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		if strings.EqualFold(candidate, "french") || strings.EqualFold(candidate, "français") {
			return "fr"
		}

		tag, err := language.Parse(candidate)
		if err != nil {
			continue
		}
		_, index, confidence := languageMatcher.Match(tag)
		if confidence == language.No {
			continue
		}
		base, _ := promptLanguages[index].Base()
		return base.String()
	}
	return "en"
}
