package ml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franckalain/foodrescue/internal/models"
)

const fullAnswer = `{
	"isSafe": true,
	"isHalal": true,
	"halalScore": 92,
	"halalReasoning": "chicken and rice, no pork or alcohol visible",
	"reasoning": "fresh looking nasi ayam, matches declaration",
	"allergens": ["soy", " "],
	"shelfLifePrediction": "6 hours",
	"hygieneScore": 88.6,
	"qualityPercentage": 84.5,
	"detectedItems": [
		{"name": "rice", "category": "carb"},
		{"name": "fried chicken", "category": "Protein"},
		{"name": "", "category": "Other"},
		{"name": "sambal", "category": "Condiment"}
	],
	"detectedCategory": "rice",
	"storageTips": ["keep covered", "refrigerate after 4 hours"]
}`

func TestParseAnalysisFullAnswer(t *testing.T) {
	got, err := ParseAnalysis([]byte(fullAnswer))
	require.NoError(t, err)

	assert.True(t, got.IsSafe)
	assert.True(t, got.IsHalal)
	assert.Equal(t, 92, got.HalalScore)
	assert.Equal(t, 89, got.HygieneScore)
	assert.Equal(t, 84.5, got.QualityPercentage)
	assert.Equal(t, models.CategoryRice, got.DetectedCategory)
	assert.Equal(t, []string{"soy"}, got.Allergens)
	assert.Equal(t, []models.DetectedItem{
		{Name: "rice", Category: models.ItemCarb},
		{Name: "fried chicken", Category: models.ItemProtein},
		{Name: "sambal", Category: models.ItemOther},
	}, got.DetectedItems)
	assert.Len(t, got.StorageTips, 2)
}

func TestParseAnalysisDefaultsMissingFields(t *testing.T) {
	got, err := ParseAnalysis([]byte(`{"reasoning": "blurry photo", "isHalal": null}`))
	require.NoError(t, err)

	assert.False(t, got.IsSafe)
	assert.False(t, got.IsHalal)
	assert.Zero(t, got.HalalScore)
	assert.Zero(t, got.HygieneScore)
	assert.Zero(t, got.QualityPercentage)
	assert.Equal(t, models.CategoryMixed, got.DetectedCategory)
	assert.NotNil(t, got.Allergens)
	assert.Empty(t, got.Allergens)
	assert.NotNil(t, got.DetectedItems)
	assert.NotNil(t, got.StorageTips)
	assert.Equal(t, "blurry photo", got.Reasoning)
}

func TestParseAnalysisNormalization(t *testing.T) {
	t.Run("unknown category becomes Mixed", func(t *testing.T) {
		got, err := ParseAnalysis([]byte(`{"detectedCategory": "Seafood"}`))
		require.NoError(t, err)
		assert.Equal(t, models.CategoryMixed, got.DetectedCategory)
	})

	t.Run("scores are clamped", func(t *testing.T) {
		got, err := ParseAnalysis([]byte(`{"halalScore": 140, "hygieneScore": -5, "qualityPercentage": 101.5}`))
		require.NoError(t, err)
		assert.Equal(t, 100, got.HalalScore)
		assert.Equal(t, 0, got.HygieneScore)
		assert.Equal(t, 100.0, got.QualityPercentage)
	})
}

func TestParseAnalysisStripsFences(t *testing.T) {
	raw := "```json\n{\"qualityPercentage\": 75, \"detectedCategory\": \"Fruit\"}\n```"
	got, err := ParseAnalysis([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, 75.0, got.QualityPercentage)
	assert.Equal(t, models.CategoryFruit, got.DetectedCategory)

	got, err = ParseAnalysis([]byte("Here is the result: {\"isSafe\": true} hope it helps"))
	require.NoError(t, err)
	assert.True(t, got.IsSafe)
}

func TestParseAnalysisRejectsBadAnswers(t *testing.T) {
	cases := map[string]struct {
		raw  string
		want error
	}{
		"empty":            {"", ErrEmptyResponse},
		"whitespace":       {"  \n", ErrEmptyResponse},
		"not json":         {"the food looks fine", ErrMalformedResponse},
		"truncated":        {`{"isSafe": true, "hygieneScore": `, ErrMalformedResponse},
		"array":            {`[1, 2]`, ErrSchemaViolation},
		"wrong bool type":  {`{"isSafe": "yes"}`, ErrSchemaViolation},
		"wrong score type": {`{"qualityPercentage": "high"}`, ErrSchemaViolation},
		"wrong list items": {`{"allergens": [1, 2]}`, ErrSchemaViolation},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseAnalysis([]byte(tc.raw))
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}
