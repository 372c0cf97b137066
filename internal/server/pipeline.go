package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cleanbites/backend/internal/analysis"
	"github.com/cleanbites/backend/internal/database"
	"github.com/cleanbites/backend/internal/form"
	"github.com/cleanbites/backend/internal/models"
	"github.com/google/uuid"
)

// History page sizes.
const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
)

// ClampHistoryLimit maps a requested history size onto [1, MaxHistoryLimit].
// Zero and negative sizes select DefaultHistoryLimit.
func ClampHistoryLimit(n int) int {
	switch {
	case n <= 0:
		return DefaultHistoryLimit
	case n > MaxHistoryLimit:
		return MaxHistoryLimit
	default:
		return n
	}
}

var (
	errNoUserDetails    = errors.New("user details not found")
	errNoFoodSubmission = errors.New("food details not found")
)

// AnalysisResponse is a stored analysis together with its canonical record
// and view model.
type AnalysisResponse struct {
	ID          string                `json:"id"`
	ProductName string                `json:"productName"`
	CreatedAt   time.Time             `json:"createdAt"`
	Analysis    analysis.FoodAnalysis `json:"analysis"`
	View        analysis.ViewModel    `json:"view"`
}

// HistoryResponse lists the most recent analyses of a user, newest first.
type HistoryResponse struct {
	UserID string             `json:"userId"`
	Items  []AnalysisResponse `json:"items"`
}

func newAnalysisResponse(rec *models.AnalysisRecord) (AnalysisResponse, error) {
	fa, err := analysis.NormalizeJSON(rec.Payload)
	if err != nil {
		return AnalysisResponse{}, fmt.Errorf("analysis %s: %w", rec.ID, err)
	}
	return AnalysisResponse{
		ID:          rec.ID,
		ProductName: rec.ProductName,
		CreatedAt:   rec.CreatedAt,
		Analysis:    fa,
		View:        analysis.Classify(fa),
	}, nil
}

// runAnalysis sends the user's saved food submission and profile to the model
// and records the response. Nothing is stored when the model call fails.
func (s *Server) runAnalysis(ctx context.Context, userID string) (*models.AnalysisRecord, error) {
	user, err := s.db.GetUserDetails(ctx, userID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", errNoUserDetails, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("load user details: %w", err)
	}

	food, err := s.db.GetFoodSubmission(ctx, userID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", errNoFoodSubmission, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("load food details: %w", err)
	}

	start := time.Now()
	payload, err := s.model.Analyze(ctx, food, user)
	if err != nil {
		return nil, fmt.Errorf("analyze: %w", err)
	}
	s.log.Info("Analysis completed",
		"user_id", userID,
		"product", food.ProductName,
		"duration", time.Since(start))

	rec := &models.AnalysisRecord{
		ID:          uuid.New().String(),
		UserID:      userID,
		ProductName: food.ProductName,
		Payload:     payload,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.db.SaveAnalysis(ctx, rec); err != nil {
		return nil, fmt.Errorf("save analysis: %w", err)
	}
	return rec, nil
}

// analysisFailure maps a runAnalysis error to a status and client message.
func analysisFailure(err error, userID string) (int, string) {
	switch {
	case errors.Is(err, errNoUserDetails):
		return http.StatusNotFound, fmt.Sprintf("User details for %s not found.", userID)
	case errors.Is(err, errNoFoodSubmission):
		return http.StatusNotFound, "No food details found for this user ID."
	default:
		return http.StatusInternalServerError, "Failed to process Gemini call"
	}
}

// history returns the classified recent analyses of userID. Records whose
// payload can no longer be decoded are skipped.
func (s *Server) history(ctx context.Context, userID string, limit int) (HistoryResponse, error) {
	recs, err := s.db.GetRecentAnalyses(ctx, userID, limit)
	if err != nil {
		return HistoryResponse{}, err
	}
	resp := HistoryResponse{UserID: userID, Items: make([]AnalysisResponse, 0, len(recs))}
	for _, rec := range recs {
		item, err := newAnalysisResponse(rec)
		if err != nil {
			s.log.Warn("Skipping unreadable analysis", "id", rec.ID, "error", err)
			continue
		}
		resp.Items = append(resp.Items, item)
	}
	return resp, nil
}

// submitFood validates sub, reads the label image if there is one and stores
// the result as the user's current submission. Values read from the image
// take precedence over typed ones.
func (s *Server) submitFood(ctx context.Context, sub *models.FoodSubmission) error {
	if err := form.ValidateFood(*sub); err != nil {
		return err
	}

	if len(sub.InfoImage) > 0 {
		extracted, err := s.model.ExtractFoodDetails(ctx, sub.InfoImage, sub.ImageType)
		if err != nil {
			return fmt.Errorf("extract food details: %w", err)
		}
		mergeExtracted(sub, extracted)
	}

	sub.UpdatedAt = time.Now().UTC()
	if err := s.db.SaveFoodSubmission(ctx, sub); err != nil {
		return fmt.Errorf("save food details: %w", err)
	}
	s.log.Info("Food details saved",
		"user_id", sub.UserID,
		"product", sub.ProductName,
		"image_bytes", len(sub.InfoImage))
	return nil
}

func mergeExtracted(dst, extracted *models.FoodSubmission) {
	if extracted == nil {
		return
	}
	if v := strings.TrimSpace(extracted.ProductName); v != "" {
		dst.ProductName = v
	}
	if v := strings.TrimSpace(extracted.Ingredients); v != "" {
		dst.Ingredients = v
	}
	if v := strings.TrimSpace(extracted.NutritionInfo); v != "" {
		dst.NutritionInfo = v
	}
}
