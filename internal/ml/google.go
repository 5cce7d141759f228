package ml

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/option"
)

const defaultGeminiModel = "gemini-1.5-flash-002"

// GoogleConfig holds configuration for the Google model
type GoogleConfig struct {
	BaseConfig
	ProjectID       string `json:"project_id"`
	Location        string `json:"location"`
	CredentialsFile string `json:"credentials_file"`
	ModelName       string `json:"model_name"`
}

// Load loads the Google configuration
func (c *GoogleConfig) Load() error {
	if err := c.LoadConfig(c.ConfigPath, "google", c); err != nil {
		return err
	}

	// Fall back to environment variables if not set
	if c.ProjectID == "" {
		c.ProjectID = os.Getenv("GOOGLE_PROJECT_ID")
	}
	if c.Location == "" {
		c.Location = os.Getenv("GOOGLE_LOCATION")
	}
	if c.CredentialsFile == "" {
		c.CredentialsFile = os.Getenv("GOOGLE_CREDENTIALS_FILE")
	}
	if c.ModelName == "" {
		c.ModelName = os.Getenv("GOOGLE_MODEL_NAME")
	}
	if c.ModelName == "" {
		c.ModelName = defaultGeminiModel
	}
	if c.ProjectID == "" || c.Location == "" {
		return fmt.Errorf("google project id and location are required")
	}

	return nil
}

// GoogleModel implements the Model interface for Gemini on Vertex AI
type GoogleModel struct {
	config GoogleConfig
	client *genai.Client
	model  *genai.GenerativeModel
}

// GoogleModelFactory implements ModelFactory for Google models
type GoogleModelFactory struct {
	config GoogleConfig
}

// NewGoogleModelFactory creates a new Google model factory
func NewGoogleModelFactory(config GoogleConfig) *GoogleModelFactory {
	return &GoogleModelFactory{config: config}
}

// CreateModel creates a new Google model instance
func (f *GoogleModelFactory) CreateModel() (Model, error) {
	return &GoogleModel{
		config: f.config,
	}, nil
}

// Load initializes the Vertex AI client and configures structured output
func (m *GoogleModel) Load(ctx context.Context) error {
	opts := []option.ClientOption{}

	if m.config.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(m.config.CredentialsFile))
	}

	client, err := genai.NewClient(ctx, m.config.ProjectID, m.config.Location, opts...)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	m.client = client
	m.model = client.GenerativeModel(m.config.ModelName)
	m.model.SetTemperature(0)
	m.model.ResponseMIMEType = "application/json"
	m.model.ResponseSchema = geminiResponseSchema()
	return nil
}

// Assess sends the prompt and photo to Gemini and returns the JSON text
func (m *GoogleModel) Assess(ctx context.Context, req Request) ([]byte, error) {
	if m.model == nil {
		return nil, ErrModelNotLoaded
	}

	img := genai.Blob{MIMEType: req.MIMEType, Data: req.Image}

	slog.Debug("calling gemini", "model", m.config.ModelName, "image_bytes", len(req.Image))
	resp, err := m.model.GenerateContent(ctx, genai.Text(req.Prompt), img)
	if err != nil {
		return nil, fmt.Errorf("failed to call ai: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, ErrEmptyResponse
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	if sb.Len() == 0 {
		return nil, ErrEmptyResponse
	}
	return []byte(sb.String()), nil
}

// Close releases the Vertex AI client
func (m *GoogleModel) Close() error {
	if m.client == nil {
		return nil
	}
	return m.client.Close()
}

// geminiResponseSchema mirrors analysisSchema for Gemini's structured output
func geminiResponseSchema() *genai.Schema {
	str := &genai.Schema{Type: genai.TypeString}
	num := &genai.Schema{Type: genai.TypeNumber}
	boolean := &genai.Schema{Type: genai.TypeBoolean}
	strList := &genai.Schema{Type: genai.TypeArray, Items: str}

	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"isSafe":              boolean,
			"isHalal":             boolean,
			"halalScore":          num,
			"halalReasoning":      str,
			"reasoning":           str,
			"allergens":           strList,
			"shelfLifePrediction": str,
			"hygieneScore":        num,
			"qualityPercentage":   num,
			"detectedItems": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"name":     str,
						"category": {Type: genai.TypeString, Enum: itemCategoryNames()},
					},
					Required: []string{"name", "category"},
				},
			},
			"detectedCategory": {Type: genai.TypeString, Enum: impactCategoryNames()},
			"storageTips":      strList,
		},
		Required: analysisFields,
	}
}
