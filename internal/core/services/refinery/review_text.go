package refinery

// DefaultReviewMaxRunes bounds review text sent to the LLM
const DefaultReviewMaxRunes = 4000

// ReviewTextRefinery cleans review bodies before they are placed in a prompt
type ReviewTextRefinery struct {
	config   *RefineryConfig
	nodes    *ProcessingNodes
	pipeline []ProcessingStep
	steps    []string
}

// NewReviewTextRefinery creates the review-text refinery
func NewReviewTextRefinery(customConfig map[string]interface{}) *ReviewTextRefinery {
	config := &RefineryConfig{
		NormalizeUnicode:   true,
		StripControlChars:  true,
		StripURLs:          true,
		CollapseWhitespace: true,
		MaxRunes:           DefaultReviewMaxRunes,
	}
	if customConfig != nil {
		applyCustomConfig(config, customConfig)
	}

	nodes := NewProcessingNodes(config)

	return &ReviewTextRefinery{
		config: config,
		nodes:  nodes,
		pipeline: []ProcessingStep{
			nodes.NormalizeUnicode,
			nodes.StripControlChars,
			nodes.StripURLs,
			nodes.CollapseWhitespace,
			nodes.Truncate,
		},
		steps: []string{
			"normalize_unicode",
			"strip_control_chars",
			"strip_urls",
			"collapse_whitespace",
			"truncate",
		},
	}
}

// Process runs the pipeline
func (r *ReviewTextRefinery) Process(text string) string {
	for _, step := range r.pipeline {
		text = step(text)
	}
	return text
}

func (r *ReviewTextRefinery) GetVersion() string { return "review-text" }
func (r *ReviewTextRefinery) GetName() string    { return "Review text" }

func (r *ReviewTextRefinery) GetDescription() string {
	return "NFC-normalizes review bodies, strips control characters and links, collapses whitespace and bounds length"
}

func (r *ReviewTextRefinery) GetPipelineSteps() []string { return r.steps }
