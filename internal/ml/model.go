// Package ml assesses a donor's food photo with an external vision model
// and turns the model's answer into an AnalysisResult. The Analyzer never
// returns an error: every failure degrades to a fallback result that routes
// the submission to manual review.
package ml

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrModelNotLoaded    = errors.New("model not loaded")
	ErrEmptyImage        = errors.New("empty image")
	ErrEmptyResponse     = errors.New("model returned no content")
	ErrMalformedResponse = errors.New("malformed model response")
	ErrSchemaViolation   = errors.New("model response violates schema")
)

// Request is everything a backend needs to assess one photo
type Request struct {
	Prompt   string
	Image    []byte
	MIMEType string
}

// Model represents a vision model that can assess a food photo
type Model interface {
	// Load initializes the model with its configuration
	Load(ctx context.Context) error
	// Assess sends the request and returns the raw JSON answer
	Assess(ctx context.Context, req Request) ([]byte, error)
	// Close releases any client held by the model
	Close() error
}

// ModelFactory creates a new model instance based on configuration
type ModelFactory interface {
	// CreateModel creates a new model instance
	CreateModel() (Model, error)
}

// NewModel creates a new model instance based on the model type. configPath
// may be empty, in which case config/<type>.json and then the environment
// are consulted.
func NewModel(modelType, configPath string) (Model, error) {
	var factory ModelFactory

	switch modelType {
	case "google":
		config := GoogleConfig{
			BaseConfig: BaseConfig{
				ConfigPath: configPath,
			},
		}
		if err := config.Load(); err != nil {
			return nil, fmt.Errorf("failed to load Google config: %w", err)
		}
		factory = NewGoogleModelFactory(config)
	case "local":
		config := LocalConfig{
			BaseConfig: BaseConfig{
				ConfigPath: configPath,
			},
		}
		if err := config.Load(); err != nil {
			return nil, fmt.Errorf("failed to load local config: %w", err)
		}
		factory = NewLocalModelFactory(config)
	default:
		return nil, fmt.Errorf("unsupported model type: %s", modelType)
	}
	return factory.CreateModel()
}
