package reranker

import (
	"errors"
	"fmt"
	"time"

	"github.com/lk2023060901/rerank-gateway/internal/rerank/types"
)

var (
	ErrMissingEndpoint = errors.New("missing rerank endpoint")
	ErrMissingModel    = errors.New("missing rerank model")
)

// Config holds the settings of a single backend
type Config struct {
	ID types.BackendID `mapstructure:"-" json:"id"`

	// API settings
	Endpoint     string `mapstructure:"endpoint" json:"endpoint"`
	Model        string `mapstructure:"model" json:"model"`
	CustomModel  string `mapstructure:"custom_model" json:"custom_model,omitempty"`
	APIKey       string `mapstructure:"api_key" json:"-"`
	LegacyAPIKey string `mapstructure:"legacy_api_key" json:"-"`

	// Optional settings
	Timeout           int            `mapstructure:"timeout" json:"timeout,omitempty"` // seconds
	Template          TemplateConfig `mapstructure:"template" json:"template"`
	MaxDocumentTokens int            `mapstructure:"max_document_tokens" json:"max_document_tokens,omitempty"`
	TokenEncoding     string         `mapstructure:"token_encoding" json:"token_encoding,omitempty"`

	// Credentials overrides the bindings built from APIKey and LegacyAPIKey
	Credentials CredentialStore `mapstructure:"-" json:"-"`
}

// RequestTimeout returns the HTTP timeout, 30s when unset
func (c *Config) RequestTimeout() time.Duration {
	if c.Timeout <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Timeout) * time.Second
}

// Validate validates the backend configuration
func (c *Config) Validate() error {
	switch c.ID {
	case types.BackendOpenAICompatible:
		if c.Endpoint == "" {
			return ErrMissingEndpoint
		}
		if c.Model == "" {
			return ErrMissingModel
		}
		if c.MaxDocumentTokens < 0 {
			return fmt.Errorf("max_document_tokens must not be negative, got %d", c.MaxDocumentTokens)
		}
		return c.Template.Validate()
	case types.BackendCohere:
		_, err := ResolveCohereModel(c.Model, c.CustomModel)
		return err
	default:
		return fmt.Errorf("%w: %q", types.ErrUnknownBackend, c.ID)
	}
}
