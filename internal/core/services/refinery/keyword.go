package refinery

// KeywordRefinery produces the dedup key of a keyword
type KeywordRefinery struct {
	nodes    *ProcessingNodes
	pipeline []ProcessingStep
}

// NewKeywordRefinery creates the keyword refinery
func NewKeywordRefinery(customConfig map[string]interface{}) *KeywordRefinery {
	config := &RefineryConfig{
		NormalizeUnicode:   true,
		StripControlChars:  true,
		CollapseWhitespace: true,
		MakeUppercase:      true,
		MaxRunes:           255,
	}
	if customConfig != nil {
		applyCustomConfig(config, customConfig)
	}

	nodes := NewProcessingNodes(config)

	return &KeywordRefinery{
		nodes: nodes,
		pipeline: []ProcessingStep{
			nodes.NormalizeUnicode,
			nodes.StripControlChars,
			nodes.CollapseWhitespace,
			nodes.MakeUppercase,
			nodes.Truncate,
		},
	}
}

// Process runs the pipeline
func (k *KeywordRefinery) Process(text string) string {
	for _, step := range k.pipeline {
		text = step(text)
	}
	return text
}

func (k *KeywordRefinery) GetVersion() string { return "keyword" }
func (k *KeywordRefinery) GetName() string    { return "Keyword key" }

func (k *KeywordRefinery) GetDescription() string {
	return "Trims, collapses whitespace and upper-cases keywords to build their dedup key"
}

func (k *KeywordRefinery) GetPipelineSteps() []string {
	return []string{"normalize_unicode", "strip_control_chars", "collapse_whitespace", "make_uppercase", "truncate"}
}
