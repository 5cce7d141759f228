package ml

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/franckalain/foodrescue/internal/impact"
	"github.com/franckalain/foodrescue/internal/models"
)

// analysisFields is the fixed field set of the model's answer
var analysisFields = []string{
	"isSafe", "isHalal", "halalScore", "halalReasoning", "reasoning", "allergens",
	"shelfLifePrediction", "hygieneScore", "qualityPercentage", "detectedItems",
	"detectedCategory", "storageTips",
}

// Types only: absent or null fields are allowed and defaulted after decoding.
const analysisSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"properties": {
		"isSafe": {"type": ["boolean", "null"]},
		"isHalal": {"type": ["boolean", "null"]},
		"halalScore": {"type": ["number", "null"]},
		"halalReasoning": {"type": ["string", "null"]},
		"reasoning": {"type": ["string", "null"]},
		"allergens": {"type": ["array", "null"], "items": {"type": "string"}},
		"shelfLifePrediction": {"type": ["string", "null"]},
		"hygieneScore": {"type": ["number", "null"]},
		"qualityPercentage": {"type": ["number", "null"]},
		"detectedItems": {
			"type": ["array", "null"],
			"items": {
				"type": "object",
				"properties": {
					"name": {"type": ["string", "null"]},
					"category": {"type": ["string", "null"]}
				}
			}
		},
		"detectedCategory": {"type": ["string", "null"]},
		"storageTips": {"type": ["array", "null"], "items": {"type": "string"}}
	}
}`

const analysisSchemaURL = "https://foodrescue.schemas.local/analysis.schema.json"

var compiledAnalysisSchema = mustCompileSchema()

func mustCompileSchema() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(analysisSchemaURL, strings.NewReader(analysisSchema)); err != nil {
		panic(fmt.Sprintf("analysis schema load failed: %v", err))
	}
	return c.MustCompile(analysisSchemaURL)
}

type wireItem struct {
	Name     *string `json:"name"`
	Category *string `json:"category"`
}

type wireAnalysis struct {
	IsSafe              *bool      `json:"isSafe"`
	IsHalal             *bool      `json:"isHalal"`
	HalalScore          *float64   `json:"halalScore"`
	HalalReasoning      *string    `json:"halalReasoning"`
	Reasoning           *string    `json:"reasoning"`
	Allergens           []string   `json:"allergens"`
	ShelfLifePrediction *string    `json:"shelfLifePrediction"`
	HygieneScore        *float64   `json:"hygieneScore"`
	QualityPercentage   *float64   `json:"qualityPercentage"`
	DetectedItems       []wireItem `json:"detectedItems"`
	DetectedCategory    *string    `json:"detectedCategory"`
	StorageTips         []string   `json:"storageTips"`
}

// ParseAnalysis decodes the model's answer into an AnalysisResult. Missing
// fields default conservatively; the category is normalized to the scoring
// vocabulary and scores are clamped to 0-100.
func ParseAnalysis(raw []byte) (models.AnalysisResult, error) {
	text := extractJSON(string(raw))
	if text == "" {
		return models.AnalysisResult{}, ErrEmptyResponse
	}

	var doc interface{}
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		return models.AnalysisResult{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if err := compiledAnalysisSchema.Validate(doc); err != nil {
		return models.AnalysisResult{}, fmt.Errorf("%w: %v", ErrSchemaViolation, err)
	}

	var w wireAnalysis
	if err := json.Unmarshal([]byte(text), &w); err != nil {
		return models.AnalysisResult{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	out := models.AnalysisResult{
		IsSafe:              deref(w.IsSafe),
		IsHalal:             deref(w.IsHalal),
		HalalScore:          clampScore(deref(w.HalalScore)),
		HalalReasoning:      deref(w.HalalReasoning),
		Reasoning:           deref(w.Reasoning),
		Allergens:           nonEmpty(w.Allergens),
		ShelfLifePrediction: deref(w.ShelfLifePrediction),
		HygieneScore:        clampScore(deref(w.HygieneScore)),
		QualityPercentage:   clampPercent(deref(w.QualityPercentage)),
		DetectedItems:       []models.DetectedItem{},
		DetectedCategory:    impact.NormalizeCategory(deref(w.DetectedCategory)),
		StorageTips:         nonEmpty(w.StorageTips),
	}
	for _, it := range w.DetectedItems {
		name := strings.TrimSpace(deref(it.Name))
		if name == "" {
			continue
		}
		out.DetectedItems = append(out.DetectedItems, models.DetectedItem{
			Name:     name,
			Category: models.NormalizeItemCategory(deref(it.Category)),
		})
	}
	return out, nil
}

// extractJSON strips Markdown fences and any prose around the object
func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if i := strings.IndexByte(s, '\n'); i >= 0 {
			s = s[i+1:]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return strings.TrimSpace(s)
	}
	return s[start : end+1]
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func clampPercent(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func clampScore(v float64) int {
	return int(math.Round(clampPercent(v)))
}
