package ml

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"github.com/cleanbites/backend/internal/models"
	"google.golang.org/api/option"
)

// Generation settings for the analysis call. A zero temperature and top-k of
// one keep repeated analyses of the same product stable.
const (
	analysisTemperature = 0
	analysisTopP        = 1
	analysisTopK        = 1
	analysisMaxTokens   = 8192
)

// GoogleModel implements the Model interface with Gemini on Vertex AI.
type GoogleModel struct {
	config GoogleConfig
	logger *slog.Logger

	client   *genai.Client
	analysis *genai.GenerativeModel
	vision   *genai.GenerativeModel
}

// GoogleModelFactory implements ModelFactory for Google models
type GoogleModelFactory struct {
	config GoogleConfig
	logger *slog.Logger
}

func NewGoogleModelFactory(config GoogleConfig, logger *slog.Logger) *GoogleModelFactory {
	return &GoogleModelFactory{config: config, logger: logger}
}

func (f *GoogleModelFactory) CreateModel() (Model, error) {
	return &GoogleModel{
		config: f.config,
		logger: f.logger,
	}, nil
}

// Load creates the Vertex AI client.
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
	m.analysis = client.GenerativeModel(m.config.Model)
	configureAnalysis(&m.analysis.GenerationConfig)

	m.vision = client.GenerativeModel(m.config.Model)
	m.vision.SetTemperature(0)

	m.logger.Info("Gemini model loaded",
		"model", m.config.Model,
		"project", m.config.ProjectID,
		"location", m.config.Location)
	return nil
}

func configureAnalysis(c *genai.GenerationConfig) {
	c.SetTemperature(analysisTemperature)
	c.SetTopP(analysisTopP)
	c.SetTopK(analysisTopK)
	c.SetMaxOutputTokens(analysisMaxTokens)
	c.ResponseMIMEType = "application/json"
}

func (m *GoogleModel) ExtractText(ctx context.Context, image []byte, mimeType string) (string, error) {
	if m.vision == nil {
		return "", ErrModelNotLoaded
	}

	resp, err := m.vision.GenerateContent(ctx, genai.ImageData(imageFormat(mimeType), image), genai.Text(prompt("image_text.txt")))
	if err != nil {
		return "", fmt.Errorf("failed to call ai: %w", err)
	}
	return responseText(resp)
}

func (m *GoogleModel) ExtractFoodDetails(ctx context.Context, image []byte, mimeType string) (*models.FoodSubmission, error) {
	if m.vision == nil {
		return nil, ErrModelNotLoaded
	}

	resp, err := m.vision.GenerateContent(ctx, genai.ImageData(imageFormat(mimeType), image), genai.Text(prompt("image_food.txt")))
	if err != nil {
		return nil, fmt.Errorf("failed to call ai: %w", err)
	}
	text, err := responseText(resp)
	if err != nil {
		return nil, err
	}
	return ParseFoodDetails(text)
}

func (m *GoogleModel) Analyze(ctx context.Context, food *models.FoodSubmission, user *models.UserDetails) ([]byte, error) {
	if m.analysis == nil {
		return nil, ErrModelNotLoaded
	}

	fullPrompt, err := AnalysisPrompt(food, user)
	if err != nil {
		return nil, err
	}

	m.logger.Debug("Calling Gemini for analysis", "user_id", user.UserID, "product", food.ProductName)
	resp, err := m.analysis.GenerateContent(ctx, genai.Text(fullPrompt))
	if err != nil {
		return nil, fmt.Errorf("failed to call ai: %w", err)
	}
	text, err := responseText(resp)
	if err != nil {
		return nil, err
	}
	return ParseAnalysis(text)
}

func (m *GoogleModel) Close() error {
	if m.client == nil {
		return nil
	}
	return m.client.Close()
}

// responseText joins the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no response generated")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("no content in response")
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("no text in response")
	}
	return sb.String(), nil
}

// imageFormat turns "image/png" into the "png" genai.ImageData expects.
func imageFormat(mimeType string) string {
	if format, ok := strings.CutPrefix(mimeType, "image/"); ok && format != "" {
		return format
	}
	return "jpeg"
}
