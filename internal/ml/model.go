package ml

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/buger/jsonparser"
	"github.com/cleanbites/backend/internal/models"
)

//go:embed prompts/*.txt samples/*.json
var assets embed.FS

// ErrModelNotLoaded is returned by a model used before Load succeeded.
var ErrModelNotLoaded = errors.New("model not loaded")

// Model is the analysis backend: it reads food labels and produces the raw
// analysis payload for a product and a user profile.
type Model interface {
	// Load initializes the model with its configuration
	Load(ctx context.Context) error
	// ExtractText transcribes the text printed on a label image.
	ExtractText(ctx context.Context, image []byte, mimeType string) (string, error)
	// ExtractFoodDetails reads product name, ingredients and nutrition table
	// from a label image.
	ExtractFoodDetails(ctx context.Context, image []byte, mimeType string) (*models.FoodSubmission, error)
	// Analyze returns the raw JSON analysis of food for user.
	Analyze(ctx context.Context, food *models.FoodSubmission, user *models.UserDetails) ([]byte, error)
	Close() error
}

// ModelFactory creates a new model instance based on configuration
type ModelFactory interface {
	CreateModel() (Model, error)
}

// NewModel creates the model selected by cfg.Type. The model still has to be
// loaded.
func NewModel(cfg Config, logger *slog.Logger) (Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var factory ModelFactory
	switch cfg.Type {
	case TypeGoogle:
		factory = NewGoogleModelFactory(cfg.Google, logger)
	case TypeStatic:
		factory = NewStaticModelFactory(cfg.Static, logger)
	default:
		return nil, fmt.Errorf("unsupported model type: %s", cfg.Type)
	}
	return factory.CreateModel()
}

func prompt(name string) string {
	data, err := assets.ReadFile("prompts/" + name)
	if err != nil {
		// Prompts are embedded at build time.
		panic(err)
	}
	return strings.TrimSpace(string(data))
}

// AnalysisPrompt combines the analysis instructions with the food submission
// and the user profile.
func AnalysisPrompt(food *models.FoodSubmission, user *models.UserDetails) (string, error) {
	foodJSON, err := json.MarshalIndent(food, "", "    ")
	if err != nil {
		return "", fmt.Errorf("encode food details: %w", err)
	}
	userJSON, err := json.MarshalIndent(user, "", "    ")
	if err != nil {
		return "", fmt.Errorf("encode user details: %w", err)
	}
	return fmt.Sprintf("%s\n\nFood Search Details:\n%s\n\nUser Details:\n%s",
		prompt("analysis.txt"), foodJSON, userJSON), nil
}

// StripCodeFence removes a Markdown code fence around a model response.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		// Drop the info string, e.g. "json".
		s = s[i+1:]
	} else {
		s = ""
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// ParseAnalysis checks that a model response holds a JSON document and returns
// it without any code fence.
func ParseAnalysis(text string) ([]byte, error) {
	body := []byte(StripCodeFence(text))
	if !json.Valid(body) {
		return nil, fmt.Errorf("model response is not valid JSON: %.80q", text)
	}
	return body, nil
}

// ParseFoodDetails reads the label extraction response. List values are
// joined with ", ".
func ParseFoodDetails(text string) (*models.FoodSubmission, error) {
	body, err := ParseAnalysis(text)
	if err != nil {
		return nil, err
	}
	if _, dataType, _, _ := jsonparser.Get(body); dataType != jsonparser.Object {
		return nil, fmt.Errorf("model response is not a JSON object")
	}

	return &models.FoodSubmission{
		ProductName:   textField(body, "productName"),
		Ingredients:   textField(body, "ingredients"),
		NutritionInfo: textField(body, "nutritionInfo"),
	}, nil
}

func textField(body []byte, key string) string {
	value, dataType, _, err := jsonparser.Get(body, key)
	if err != nil {
		return ""
	}
	switch dataType {
	case jsonparser.String:
		s, err := jsonparser.ParseString(value)
		if err != nil {
			return ""
		}
		return s
	case jsonparser.Number:
		return string(value)
	case jsonparser.Array:
		var parts []string
		_, _ = jsonparser.ArrayEach(value, func(item []byte, itemType jsonparser.ValueType, _ int, err error) {
			if err != nil {
				return
			}
			if itemType == jsonparser.String {
				if s, err := jsonparser.ParseString(item); err == nil && s != "" {
					parts = append(parts, s)
				}
			} else if itemType == jsonparser.Number {
				parts = append(parts, string(item))
			}
		})
		return strings.Join(parts, ", ")
	case jsonparser.Object:
		// Nutrition tables sometimes come back as {"Energy": "42kcal", ...}.
		var rows []string
		_ = jsonparser.ObjectEach(value, func(k, v []byte, t jsonparser.ValueType, _ int) error {
			row := string(v)
			if t == jsonparser.String {
				if s, err := jsonparser.ParseString(v); err == nil {
					row = s
				}
			}
			rows = append(rows, string(k)+": "+row)
			return nil
		})
		return strings.Join(rows, "\n")
	default:
		return ""
	}
}
