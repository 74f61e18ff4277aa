package refinery

import "fmt"

// Pipeline applies one refinery to review text or keywords
type Pipeline struct {
	refinery BaseRefinery
}

// NewPipeline resolves id (or an alias such as "content") and applies overrides
func NewPipeline(id string, overrides map[string]interface{}) (*Pipeline, error) {
	r, err := Create(id, overrides)
	if err != nil {
		return nil, fmt.Errorf("failed to create refinery: %w", err)
	}
	return &Pipeline{refinery: r}, nil
}

// MustPipeline is NewPipeline for the built-in refineries; it panics on unknown ids
func MustPipeline(id string) *Pipeline {
	p, err := NewPipeline(id, nil)
	if err != nil {
		panic(err)
	}
	return p
}

// CleanText processes a single text string
func (p *Pipeline) CleanText(text string) string {
	return p.refinery.Process(text)
}

// CleanBatch processes texts in order
func (p *Pipeline) CleanBatch(texts []string) []string {
	out := make([]string, len(texts))
	for i, text := range texts {
		out[i] = p.refinery.Process(text)
	}
	return out
}

// ID is the registry id of the underlying refinery
func (p *Pipeline) ID() string {
	return p.refinery.GetVersion()
}

// Steps lists the processing steps in order
func (p *Pipeline) Steps() []string {
	return p.refinery.GetPipelineSteps()
}
