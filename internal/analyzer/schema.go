package analyzer

import (
	"encoding/json"

	"campaign-server/internal/domain"
)

const schemaName = "campaign_narrative"

// rawAnalysis - формат ответа модели.
type rawAnalysis struct {
	Essence   string     `json:"essence"`
	VisualDNA string     `json:"visual_dna"`
	Script    string     `json:"script"`
	Scenes    []rawScene `json:"scenes"`
	Social    rawSocial  `json:"social"`
}

type rawScene struct {
	Ordinal         int     `json:"ordinal"`
	DurationSeconds float64 `json:"duration_seconds"`
	VisualPrompt    string  `json:"visual_prompt"`
	Phase           string  `json:"phase"`
}

type rawSocial struct {
	Headline string   `json:"headline"`
	Body     string   `json:"body"`
	CTA      string   `json:"cta"`
	Hashtags []string `json:"hashtags"`
}

// BuildSchema возвращает JSON Schema ответа, требующую ровно n сцен.
func BuildSchema(n int) json.RawMessage {
	schema := map[string]interface{}{
		"type":                 "object",
		"description":          "Structured promotional video narrative.",
		"additionalProperties": false,
		"properties": map[string]interface{}{
			"essence":    map[string]interface{}{"type": "string", "description": "One sentence capturing the brand or event essence."},
			"visual_dna": map[string]interface{}{"type": "string", "description": "One short paragraph describing the visual style every scene must follow (palette, lighting, lens, texture). MUST be English."},
			"script":     map[string]interface{}{"type": "string", "description": "Full voice-over narration script for the whole video."},
			"scenes": map[string]interface{}{
				"type":        "array",
				"description": "Ordered scene list.",
				"minItems":    n,
				"maxItems":    n,
				"items": map[string]interface{}{
					"type":                 "object",
					"additionalProperties": false,
					"properties": map[string]interface{}{
						"ordinal":          map[string]interface{}{"type": "integer", "description": "1-based position of the scene."},
						"duration_seconds": map[string]interface{}{"type": "number", "description": "Target on-screen duration in seconds."},
						"visual_prompt":    map[string]interface{}{"type": "string", "description": "Image/video generation prompt for this scene only. MUST be English."},
						"phase": map[string]interface{}{
							"type": "string",
							"enum": []string{string(domain.ScenePhaseHook), string(domain.ScenePhaseBuild), string(domain.ScenePhaseClimax), string(domain.ScenePhaseCTA)},
						},
					},
					"required": []string{"ordinal", "duration_seconds", "visual_prompt", "phase"},
				},
			},
			"social": map[string]interface{}{
				"type":                 "object",
				"additionalProperties": false,
				"properties": map[string]interface{}{
					"headline": map[string]interface{}{"type": "string"},
					"body":     map[string]interface{}{"type": "string"},
					"cta":      map[string]interface{}{"type": "string"},
					"hashtags": map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
				},
				"required": []string{"headline", "body", "cta", "hashtags"},
			},
		},
		"required": []string{"essence", "visual_dna", "script", "scenes", "social"},
	}
	raw, _ := json.Marshal(schema)
	return raw
}
