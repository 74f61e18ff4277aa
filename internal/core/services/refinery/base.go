package refinery

// BaseRefinery defines the interface that all refinery implementations must follow
type BaseRefinery interface {
	// Process cleans a single text string through the refinery pipeline
	Process(text string) string

	// GetVersion returns the registry identifier (e.g., "review-text", "keyword")
	GetVersion() string

	// GetName returns a human-readable name
	GetName() string

	// GetDescription returns what this refinery does
	GetDescription() string

	// GetPipelineSteps returns the list of processing steps in order
	GetPipelineSteps() []string
}

// ProcessingStep represents a single text transformation function
type ProcessingStep func(string) string

// RefineryConfig holds configuration for a refinery
type RefineryConfig struct {
	// Processing flags
	NormalizeUnicode   bool `json:"normalize_unicode"`
	StripControlChars  bool `json:"strip_control_chars"`
	StripURLs          bool `json:"strip_urls"`
	CollapseWhitespace bool `json:"collapse_whitespace"`
	MakeUppercase      bool `json:"make_uppercase"`

	// MaxRunes truncates the result; 0 disables truncation
	MaxRunes int `json:"max_runes"`
}

// applyCustomConfig overrides config fields from a loosely typed map
func applyCustomConfig(config *RefineryConfig, custom map[string]interface{}) {
	flags := map[string]*bool{
		"normalize_unicode":   &config.NormalizeUnicode,
		"strip_control_chars": &config.StripControlChars,
		"strip_urls":          &config.StripURLs,
		"collapse_whitespace": &config.CollapseWhitespace,
		"make_uppercase":      &config.MakeUppercase,
	}
	for key, target := range flags {
		if v, ok := custom[key].(bool); ok {
			*target = v
		}
	}

	switch v := custom["max_runes"].(type) {
	case int:
		config.MaxRunes = v
	case float64:
		config.MaxRunes = int(v)
	}
}
