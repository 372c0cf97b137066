package models

import (
	"encoding/json"
	"time"
)

// UserDetails is the health profile a user registers before asking for an
// analysis. Age, height and weight are kept as entered.
type UserDetails struct {
	UserID      string `json:"userId"`
	Name        string `json:"name"`
	Age         string `json:"age"`
	Height      string `json:"height"`
	Weight      string `json:"weight"`
	Gender      string `json:"gender"`
	HealthIssue string `json:"healthIssue"`
	Allergy     string `json:"allergy"`
	Goal        string `json:"goal"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// FoodSubmission is the product a user wants analysed. Only the latest
// submission of each user is kept.
type FoodSubmission struct {
	UserID        string `json:"userId,omitempty"`
	ProductName   string `json:"productName"`
	Ingredients   string `json:"ingredients"`
	NutritionInfo string `json:"nutritionInfo"`

	// InfoImage is the uploaded label photo, if any.
	InfoImage []byte `json:"-"`
	ImageType string `json:"-"`

	UpdatedAt time.Time `json:"-"`
}

// AnalysisRecord is one stored model response. Payload holds the raw JSON so
// the view model can be derived again later.
type AnalysisRecord struct {
	ID          string          `json:"id"`
	UserID      string          `json:"userId"`
	ProductName string          `json:"productName"`
	Payload     json.RawMessage `json:"payload"`
	CreatedAt   time.Time       `json:"createdAt"`
}
