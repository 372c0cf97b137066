package ml

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cleanbites/backend/internal/analysis"
	"github.com/cleanbites/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewModel(t *testing.T) {
	logger := testLogger()

	m, err := NewModel(Config{Type: TypeStatic}, logger)
	require.NoError(t, err)
	assert.IsType(t, &StaticModel{}, m)

	m, err = NewModel(Config{Type: TypeGoogle, Google: GoogleConfig{ProjectID: "proj"}}, logger)
	require.NoError(t, err)
	assert.IsType(t, &GoogleModel{}, m)

	_, err = NewModel(Config{Type: TypeGoogle}, logger)
	assert.Error(t, err)

	_, err = NewModel(Config{Type: "local"}, logger)
	assert.Error(t, err)
}

func TestConfig_ApplyDefaults(t *testing.T) {
	cfg := Config{Type: " Static "}
	cfg.ApplyDefaults()
	assert.Equal(t, TypeStatic, cfg.Type)
	assert.Equal(t, "us-central1", cfg.Google.Location)
	assert.Equal(t, "gemini-1.5-flash", cfg.Google.Model)

	cfg = Config{}
	cfg.ApplyDefaults()
	assert.Equal(t, TypeGoogle, cfg.Type)
}

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "plain", input: `{"a": 1}`, expected: `{"a": 1}`},
		{name: "json fence", input: "```json\n{\"a\": 1}\n```", expected: `{"a": 1}`},
		{name: "bare fence", input: "```\n{\"a\": 1}\n```\n", expected: `{"a": 1}`},
		{name: "leading space", input: " ```json\n{\"a\": 1}\n```", expected: `{"a": 1}`},
		{name: "unterminated", input: "```json\n{\"a\": 1}", expected: `{"a": 1}`},
		{name: "fence only", input: "```", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, StripCodeFence(tt.input))
		})
	}
}

func TestParseAnalysis(t *testing.T) {
	body, err := ParseAnalysis("```json\n{\"processed\": \"Low\"}\n```")
	require.NoError(t, err)
	assert.JSONEq(t, `{"processed": "Low"}`, string(body))

	_, err = ParseAnalysis("Sorry, I cannot help with that.")
	assert.Error(t, err)
}

func TestParseFoodDetails(t *testing.T) {
	sub, err := ParseFoodDetails("```json\n" + `{
		"productName": "Choco Crunch",
		"ingredients": ["Wheat flour", "Sugar", "Cocoa"],
		"nutritionInfo": {"Energy": "480kcal", "Fat": 20}
	}` + "\n```")
	require.NoError(t, err)

	assert.Equal(t, "Choco Crunch", sub.ProductName)
	assert.Equal(t, "Wheat flour, Sugar, Cocoa", sub.Ingredients)
	assert.Equal(t, "Energy: 480kcal\nFat: 20", sub.NutritionInfo)

	_, err = ParseFoodDetails(`["not", "an", "object"]`)
	assert.Error(t, err)

	_, err = ParseFoodDetails("no json here")
	assert.Error(t, err)
}

func TestAnalysisPrompt(t *testing.T) {
	p, err := AnalysisPrompt(
		&models.FoodSubmission{ProductName: "Cola", Ingredients: "sugar, water"},
		&models.UserDetails{UserID: "user_1", HealthIssue: "Diabetes"},
	)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(p, "You are a nutrition analyst."))
	assert.Contains(t, p, "Food Search Details:\n{")
	assert.Contains(t, p, `"productName": "Cola"`)
	assert.Contains(t, p, "User Details:\n{")
	assert.Contains(t, p, `"healthIssue": "Diabetes"`)
}

func TestStaticModel(t *testing.T) {
	logger := testLogger()
	m, err := NewModel(Config{Type: TypeStatic}, logger)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = m.Analyze(ctx, &models.FoodSubmission{}, &models.UserDetails{})
	assert.True(t, errors.Is(err, ErrModelNotLoaded))

	require.NoError(t, m.Load(ctx))
	defer m.Close()

	raw, err := m.Analyze(ctx, &models.FoodSubmission{ProductName: "Cola"}, &models.UserDetails{UserID: "u"})
	require.NoError(t, err)

	vm, err := analysis.Analyze(raw)
	require.NoError(t, err)
	assert.Equal(t, analysis.ProcessingHigh, vm.Processing.Level)
	assert.Equal(t, analysis.RiskMedium, vm.Risk.Level)
	assert.Equal(t, []string{"Sodium", "Calcium", "Iron"}, vm.MicroChart.Labels)

	text, err := m.ExtractText(ctx, []byte("img"), "image/png")
	require.NoError(t, err)
	assert.Contains(t, text, "image/png")

	sub, err := m.ExtractFoodDetails(ctx, []byte("img"), "image/png")
	require.NoError(t, err)
	assert.Empty(t, sub.ProductName)
	assert.Contains(t, sub.Ingredients, "3 byte label image")

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = m.Analyze(cancelled, &models.FoodSubmission{}, &models.UserDetails{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStaticModel_PayloadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "payload.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"processed": "Low"}`), 0o600))

	logger := testLogger()
	m, err := NewModel(Config{Type: TypeStatic, Static: StaticConfig{PayloadFile: path}}, logger)
	require.NoError(t, err)
	require.NoError(t, m.Load(context.Background()))

	raw, err := m.Analyze(context.Background(), &models.FoodSubmission{}, &models.UserDetails{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"processed": "Low"}`, string(raw))

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`not json`), 0o600))
	m, err = NewModel(Config{Type: TypeStatic, Static: StaticConfig{PayloadFile: bad}}, logger)
	require.NoError(t, err)
	assert.Error(t, m.Load(context.Background()))
}

func TestImageFormat(t *testing.T) {
	assert.Equal(t, "png", imageFormat("image/png"))
	assert.Equal(t, "jpeg", imageFormat("image/jpeg"))
	assert.Equal(t, "jpeg", imageFormat("application/octet-stream"))
	assert.Equal(t, "jpeg", imageFormat(""))
}
