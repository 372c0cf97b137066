package ml

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/cleanbites/backend/internal/models"
)

// StaticModel implements the Model interface without calling out. It answers
// every analysis with the same payload, which makes it useful for local
// development and for exercising the rest of the pipeline.
type StaticModel struct {
	config  StaticConfig
	logger  *slog.Logger
	payload []byte
}

// StaticModelFactory implements ModelFactory for the static model
type StaticModelFactory struct {
	config StaticConfig
	logger *slog.Logger
}

func NewStaticModelFactory(config StaticConfig, logger *slog.Logger) *StaticModelFactory {
	return &StaticModelFactory{config: config, logger: logger}
}

func (f *StaticModelFactory) CreateModel() (Model, error) {
	return &StaticModel{config: f.config, logger: f.logger}, nil
}

// Load reads the configured payload file, or the built-in sample.
func (m *StaticModel) Load(ctx context.Context) error {
	var (
		data []byte
		err  error
	)
	if m.config.PayloadFile != "" {
		data, err = os.ReadFile(m.config.PayloadFile)
	} else {
		data, err = assets.ReadFile("samples/analysis.json")
	}
	if err != nil {
		return fmt.Errorf("failed to read static payload: %w", err)
	}

	payload, err := ParseAnalysis(string(data))
	if err != nil {
		return err
	}
	m.payload = payload
	m.logger.Info("Static model loaded", "payload_file", m.config.PayloadFile)
	return nil
}

func (m *StaticModel) ExtractText(ctx context.Context, image []byte, mimeType string) (string, error) {
	if m.payload == nil {
		return "", ErrModelNotLoaded
	}
	return fmt.Sprintf("label image (%s, %d bytes)", mimeType, len(image)), nil
}

func (m *StaticModel) ExtractFoodDetails(ctx context.Context, image []byte, mimeType string) (*models.FoodSubmission, error) {
	if m.payload == nil {
		return nil, ErrModelNotLoaded
	}
	// The product name is left blank so the one typed by the user is kept.
	return &models.FoodSubmission{
		Ingredients: fmt.Sprintf("Read from a %d byte label image", len(image)),
	}, nil
}

func (m *StaticModel) Analyze(ctx context.Context, food *models.FoodSubmission, user *models.UserDetails) ([]byte, error) {
	if m.payload == nil {
		return nil, ErrModelNotLoaded
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]byte, len(m.payload))
	copy(out, m.payload)
	return out, nil
}

func (m *StaticModel) Close() error {
	return nil
}
