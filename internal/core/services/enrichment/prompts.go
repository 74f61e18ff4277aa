package enrichment

import (
	"github.com/alejandroruanova/review-insights-service/internal/core/domain"
)

const singlePromptEN = `You analyze customer reviews of local businesses.
Return JSON only, following the schema.
- sentiment: one of positive, negative, neutral, mixed
- score: integer from 1 (very negative) to 100 (very positive), 50 is neutral
- emotions: up to 3 emoji that match the reviewer's feelings
- keywords: up to 8 short phrases taken from the review, each with a category
  (service, food, ambiance, price, quality, cleanliness, staff, other) and a relevance from 0 to 1
- topics: up to 4 broad themes, each with a relevance from 0 to 1 and the keywords it groups
Write keywords and topics in English.`

const singlePromptFR = `Tu analyses des avis clients sur des commerces locaux.
Réponds uniquement en JSON, selon le schéma.
- sentiment : positive, negative, neutral ou mixed
- score : entier de 1 (très négatif) à 100 (très positif), 50 est neutre
- emotions : jusqu'à 3 emoji correspondant au ressenti du client
- keywords : jusqu'à 8 expressions courtes tirées de l'avis, chacune avec une catégorie
  (service, food, ambiance, price, quality, cleanliness, staff, other) et une pertinence de 0 à 1
- topics : jusqu'à 4 thèmes généraux, chacun avec une pertinence de 0 à 1 et les mots-clés qu'il regroupe
Rédige les mots-clés et les thèmes en français.`

const batchSuffixEN = `
You receive {"reviews":[...]}. Answer {"results":[...]} with exactly one result per review,
and copy each review's reviewId into its result unchanged.`

const batchSuffixFR = `
Tu reçois {"reviews":[...]}. Réponds {"results":[...]} avec exactement un résultat par avis,
en recopiant le reviewId de chaque avis dans son résultat sans le modifier.`

func systemPrompt(lang string, batch bool) string {
	switch {
	case lang == "fr" && batch:
		return singlePromptFR + batchSuffixFR
	case lang == "fr":
		return singlePromptFR
	case batch:
		return singlePromptEN + batchSuffixEN
	default:
		return singlePromptEN
	}
}

func keywordCategories() []string {
	categories := domain.ValidKeywordCategories()
	out := make([]string, len(categories))
	for i, c := range categories {
		out[i] = string(c)
	}
	return out
}

func sentimentValues() []string {
	values := domain.ValidSentiments()
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}

// resultSchema describes one analysis; batch results also carry reviewId
func resultSchema(withID bool) map[string]interface{} {
	properties := map[string]interface{}{
		"sentiment": map[string]interface{}{"type": "string", "enum": sentimentValues()},
		"score":     map[string]interface{}{"type": "number"},
		"emotions":  map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
		"keywords": map[string]interface{}{
			"type": "array",
			"items": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"text":      map[string]interface{}{"type": "string"},
					"category":  map[string]interface{}{"type": "string", "enum": keywordCategories()},
					"relevance": map[string]interface{}{"type": "number"},
				},
				"required":             []string{"text", "category", "relevance"},
				"additionalProperties": false,
			},
		},
		"topics": map[string]interface{}{
			"type": "array",
			"items": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"name":      map[string]interface{}{"type": "string"},
					"relevance": map[string]interface{}{"type": "number"},
					"keywords":  map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
				},
				"required":             []string{"name", "relevance", "keywords"},
				"additionalProperties": false,
			},
		},
	}
	required := []string{"sentiment", "score", "emotions", "keywords", "topics"}
	if withID {
		properties["reviewId"] = map[string]interface{}{"type": "string"}
		required = append([]string{"reviewId"}, required...)
	}

	return map[string]interface{}{
		"type":                 "object",
		"properties":           properties,
		"required":             required,
		"additionalProperties": false,
	}
}

func batchSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"results": map[string]interface{}{"type": "array", "items": resultSchema(true)},
		},
		"required":             []string{"results"},
		"additionalProperties": false,
	}
}
