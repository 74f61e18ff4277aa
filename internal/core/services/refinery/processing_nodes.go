package refinery

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	urlRe        = regexp.MustCompile(`(?i)\bhttps?://\S+`)
)

// ProcessingNodes contains reusable text processing methods.
// Each node is a no-op when its flag is off.
type ProcessingNodes struct {
	config *RefineryConfig
}

// NewProcessingNodes creates a new ProcessingNodes with the given config
func NewProcessingNodes(config *RefineryConfig) *ProcessingNodes {
	return &ProcessingNodes{config: config}
}

// NormalizeUnicode composes text into NFC so visually equal strings compare equal
func (p *ProcessingNodes) NormalizeUnicode(text string) string {
	if !p.config.NormalizeUnicode {
		return text
	}
	return norm.NFC.String(text)
}

// StripControlChars removes control and format characters, keeping newlines and tabs
func (p *ProcessingNodes) StripControlChars(text string) string {
	if !p.config.StripControlChars {
		return text
	}

	// zero-width joiner is kept so emoji sequences survive
	t := runes.Remove(runes.Predicate(func(r rune) bool {
		switch r {
		case '\n', '\t', '\u200d':
			return false
		}
		return unicode.Is(unicode.Cc, r) || unicode.Is(unicode.Cf, r)
	}))

	result, _, err := transform.String(t, text)
	if err != nil {
		return text
	}
	return result
}

// StripURLs drops links, which carry no sentiment and waste prompt tokens
func (p *ProcessingNodes) StripURLs(text string) string {
	if !p.config.StripURLs {
		return text
	}
	return urlRe.ReplaceAllString(text, "")
}

// CollapseWhitespace replaces whitespace runs with one space and trims the ends
func (p *ProcessingNodes) CollapseWhitespace(text string) string {
	if !p.config.CollapseWhitespace {
		return text
	}
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
}

// MakeUppercase upper-cases with Unicode rules (ß -> SS, é -> É)
func (p *ProcessingNodes) MakeUppercase(text string) string {
	if !p.config.MakeUppercase {
		return text
	}
	// Casers are stateful, so one per call keeps nodes safe for concurrent use
	return cases.Upper(language.Und).String(text)
}

// Truncate cuts text to MaxRunes runes
func (p *ProcessingNodes) Truncate(text string) string {
	if p.config.MaxRunes <= 0 {
		return text
	}

	count := 0
	for i := range text {
		if count == p.config.MaxRunes {
			return strings.TrimSpace(text[:i])
		}
		count++
	}
	return text
}
