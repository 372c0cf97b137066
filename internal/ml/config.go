package ml

import (
	"fmt"
	"strings"
)

// Model types accepted by NewModel.
const (
	TypeGoogle = "google"
	TypeStatic = "static"
)

const (
	defaultLocation    = "us-central1"
	defaultGeminiModel = "gemini-1.5-flash"
)

// Config selects and configures the analysis backend.
type Config struct {
	Type   string       `json:"type"` // "google" or "static"
	Google GoogleConfig `json:"google"`
	Static StaticConfig `json:"static"`
}

// GoogleConfig holds configuration for Gemini on Vertex AI.
type GoogleConfig struct {
	ProjectID       string `json:"project_id"`
	Location        string `json:"location"`
	CredentialsFile string `json:"credentials_file"`
	Model           string `json:"model"`
}

// StaticConfig configures the canned backend. PayloadFile, when set, replaces
// the built-in sample analysis.
type StaticConfig struct {
	PayloadFile string `json:"payload_file"`
}

// ApplyDefaults fills the optional settings that were left empty.
func (c *Config) ApplyDefaults() {
	c.Type = strings.ToLower(strings.TrimSpace(c.Type))
	if c.Type == "" {
		c.Type = TypeGoogle
	}
	if c.Google.Location == "" {
		c.Google.Location = defaultLocation
	}
	if c.Google.Model == "" {
		c.Google.Model = defaultGeminiModel
	}
}

// Validate reports settings the selected backend cannot start without.
func (c *Config) Validate() error {
	switch c.Type {
	case TypeGoogle:
		if c.Google.ProjectID == "" {
			return fmt.Errorf("google model requires a project id (GOOGLE_PROJECT_ID)")
		}
	case TypeStatic:
	default:
		return fmt.Errorf("unsupported model type: %s", c.Type)
	}
	return nil
}
