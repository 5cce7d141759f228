package ml

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// LocalConfig holds configuration for a vision model served on the local
// network through an Ollama-compatible generate endpoint.
type LocalConfig struct {
	BaseConfig
	Endpoint       string `json:"endpoint"`
	ModelName      string `json:"model_name"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// Timeout returns the HTTP client timeout
func (c *LocalConfig) Timeout() time.Duration {
	if c.TimeoutSeconds > 0 {
		return time.Duration(c.TimeoutSeconds) * time.Second
	}
	return envDuration("LOCAL_MODEL_TIMEOUT", 60*time.Second)
}

// Load loads the local configuration
func (c *LocalConfig) Load() error {
	if err := c.LoadConfig(c.ConfigPath, "local", c); err != nil {
		return err
	}

	// Fall back to environment variables if not set
	if c.Endpoint == "" {
		c.Endpoint = os.Getenv("LOCAL_MODEL_ENDPOINT")
	}
	if c.Endpoint == "" {
		c.Endpoint = "http://127.0.0.1:11434/api/generate"
	}
	if c.ModelName == "" {
		c.ModelName = os.Getenv("LOCAL_MODEL_NAME")
	}
	if c.ModelName == "" {
		c.ModelName = "llava"
	}
	return nil
}

// LocalModel implements the Model interface for a locally served model
type LocalModel struct {
	config LocalConfig
	client *http.Client
}

// LocalModelFactory implements ModelFactory for local models
type LocalModelFactory struct {
	config LocalConfig
}

// NewLocalModelFactory creates a new local model factory
func NewLocalModelFactory(config LocalConfig) *LocalModelFactory {
	return &LocalModelFactory{config: config}
}

// CreateModel creates a new local model instance
func (f *LocalModelFactory) CreateModel() (Model, error) {
	return &LocalModel{
		config: f.config,
	}, nil
}

// Load prepares the HTTP client
func (m *LocalModel) Load(ctx context.Context) error {
	if m.config.Endpoint == "" {
		return fmt.Errorf("local model endpoint is not set")
	}
	m.client = &http.Client{Timeout: m.config.Timeout()}
	return nil
}

type generateRequest struct {
	Model  string   `json:"model"`
	Prompt string   `json:"prompt"`
	Images []string `json:"images"`
	Format string   `json:"format"`
	Stream bool     `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

// Assess posts the prompt and base64 photo to the endpoint
func (m *LocalModel) Assess(ctx context.Context, req Request) ([]byte, error) {
	if m.client == nil {
		return nil, ErrModelNotLoaded
	}

	body, err := json.Marshal(generateRequest{
		Model:  m.config.ModelName,
		Prompt: req.Prompt,
		Images: []string{base64.StdEncoding.EncodeToString(req.Image)},
		Format: "json",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to call local model: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read local model response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("local model returned status %d", resp.StatusCode)
	}

	var out generateResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("local model error: %s", out.Error)
	}
	if out.Response == "" {
		return nil, ErrEmptyResponse
	}
	return []byte(out.Response), nil
}

// Close is a no-op for the HTTP backend
func (m *LocalModel) Close() error {
	return nil
}
