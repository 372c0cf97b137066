package analysis

import (
	"cmp"
	"slices"
	"strings"
)

// Tier is the visual emphasis of a badge. It carries no meaning beyond display.
type Tier string

const (
	TierNeutral     Tier = "default"
	TierSuccess     Tier = "success"
	TierInfo        Tier = "info"
	TierWarning     Tier = "warning"
	TierDestructive Tier = "destructive"
	TierCritical    Tier = "critical"
	TierMuted       Tier = "muted"
)

// ProcessingLevel is how processed the product is. The zero value is Unknown.
type ProcessingLevel int

const (
	ProcessingUnknown ProcessingLevel = iota
	ProcessingNone
	ProcessingLow
	ProcessingMedium
	ProcessingHigh
)

var processingLevels = map[string]ProcessingLevel{
	"not processed":    ProcessingNone,
	"low":              ProcessingLow,
	"medium":           ProcessingMedium,
	"highly processed": ProcessingHigh,
}

// ClassifyProcessing matches s case-insensitively; anything unrecognised,
// including the empty string, is ProcessingUnknown.
func ClassifyProcessing(s string) ProcessingLevel {
	return processingLevels[strings.ToLower(strings.TrimSpace(s))]
}

// String returns the badge label.
func (p ProcessingLevel) String() string {
	switch p {
	case ProcessingNone:
		return "Not Processed"
	case ProcessingLow:
		return "Low"
	case ProcessingMedium:
		return "Medium"
	case ProcessingHigh:
		return "Highly Processed"
	default:
		return "Unknown"
	}
}

// Key is the stable machine name used on the wire.
func (p ProcessingLevel) Key() string {
	switch p {
	case ProcessingNone:
		return "not_processed"
	case ProcessingLow:
		return "low"
	case ProcessingMedium:
		return "medium"
	case ProcessingHigh:
		return "highly_processed"
	default:
		return "unknown"
	}
}

func (p ProcessingLevel) Tier() Tier {
	switch p {
	case ProcessingLow:
		return TierSuccess
	case ProcessingMedium:
		return TierWarning
	case ProcessingHigh:
		return TierDestructive
	default:
		return TierNeutral
	}
}

func (p ProcessingLevel) MarshalText() ([]byte, error) {
	return []byte(p.Key()), nil
}

// RiskLevel is the impact of the product on the user. RiskFree through
// RiskFatal form an ordered scale; RiskUnknown (the zero value) sits outside
// it.
type RiskLevel int

const (
	RiskUnknown RiskLevel = iota
	RiskFree
	RiskLow
	RiskMedium
	RiskHigh
	RiskFatal
)

var riskLevels = map[string]RiskLevel{
	"risk free":   RiskFree,
	"low risk":    RiskLow,
	"medium risk": RiskMedium,
	"high risk":   RiskHigh,
	"fatal":       RiskFatal,
}

// ClassifyRisk matches s case-insensitively; anything else is RiskUnknown.
func ClassifyRisk(s string) RiskLevel {
	return riskLevels[strings.ToLower(strings.TrimSpace(s))]
}

// Severity returns the position of r on the ordered scale, starting at 0 for
// RiskFree. ok is false for RiskUnknown.
func (r RiskLevel) Severity() (severity int, ok bool) {
	if r < RiskFree || r > RiskFatal {
		return 0, false
	}
	return int(r - RiskFree), true
}

// CompareRisk orders two risk levels by severity. ok is false when either
// level is unknown; the comparison result is then meaningless.
func CompareRisk(a, b RiskLevel) (c int, ok bool) {
	sa, okA := a.Severity()
	sb, okB := b.Severity()
	if !okA || !okB {
		return 0, false
	}
	return cmp.Compare(sa, sb), true
}

func (r RiskLevel) String() string {
	switch r {
	case RiskFree:
		return "Risk Free"
	case RiskLow:
		return "Low Risk"
	case RiskMedium:
		return "Medium Risk"
	case RiskHigh:
		return "High Risk"
	case RiskFatal:
		return "Fatal"
	default:
		return "Unknown Risk"
	}
}

func (r RiskLevel) Key() string {
	switch r {
	case RiskFree:
		return "risk_free"
	case RiskLow:
		return "low_risk"
	case RiskMedium:
		return "medium_risk"
	case RiskHigh:
		return "high_risk"
	case RiskFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

func (r RiskLevel) Tier() Tier {
	switch r {
	case RiskFree:
		return TierSuccess
	case RiskLow:
		return TierInfo
	case RiskMedium:
		return TierWarning
	case RiskHigh:
		return TierDestructive
	case RiskFatal:
		return TierCritical
	default:
		return TierMuted
	}
}

func (r RiskLevel) MarshalText() ([]byte, error) {
	return []byte(r.Key()), nil
}

// NoHarmfulMessage is the headline of the affirmative harmful-ingredients result.
const NoHarmfulMessage = "No harmful ingredients."

// HarmfulSummary is either the affirmative "nothing harmful" result (Safe) or
// a cautionary one with a headline and an optional detail line. Reported is
// false when the analysis did not name anything at all.
type HarmfulSummary struct {
	Safe     bool   `json:"safe"`
	Reported bool   `json:"reported"`
	Headline string `json:"headline"`
	Detail   string `json:"detail"`
}

// SummarizeHarmful applies the harmful-ingredients rule. "none" and the
// normalizer's "Unknown" default at index 0 both mean nothing was flagged.
func SummarizeHarmful(ingredients []string) HarmfulSummary {
	if len(ingredients) == 0 {
		return HarmfulSummary{Safe: true, Headline: NoHarmfulMessage}
	}
	switch strings.ToLower(strings.TrimSpace(ingredients[0])) {
	case "none":
		return HarmfulSummary{Safe: true, Reported: true, Headline: NoHarmfulMessage}
	case strings.ToLower(DefaultHarmful):
		return HarmfulSummary{Safe: true, Headline: NoHarmfulMessage}
	}
	summary := HarmfulSummary{Reported: true, Headline: ingredients[0]}
	if len(ingredients) > 1 {
		summary.Detail = ingredients[1]
	}
	return summary
}

// NutrientBar is one row of a nutrient score list.
type NutrientBar struct {
	Name       string `json:"name"`
	Score      string `json:"score"`
	Applicable bool   `json:"applicable"`
	Percent    int    `json:"percent"`
	Bucket     Bucket `json:"bucket"`
}

// ScoreBars renders every entry of scores, in order. Entries that are not
// applicable carry Score "N/A" and no bar.
func ScoreBars(scores Scores) []NutrientBar {
	bars := make([]NutrientBar, 0, len(scores))
	for _, e := range scores {
		s := ParseScore(e.Score)
		bar := NutrientBar{Name: e.Name, Score: NotApplicable}
		if s.Applicable {
			bar.Score = strings.TrimSpace(e.Score)
			bar.Applicable = true
			bar.Percent = s.Percent
			bar.Bucket = s.Bucket()
		}
		bars = append(bars, bar)
	}
	return bars
}

// NoDataMessage is shown in place of an empty chart.
const NoDataMessage = "No data available"

// Chart is a donut chart series. When NoData is set, Labels and Series are
// empty and Placeholder holds the text to show instead.
type Chart struct {
	Labels      []string  `json:"labels"`
	Series      []float64 `json:"series"`
	NoData      bool      `json:"noData"`
	Placeholder string    `json:"placeholder,omitempty"`
}

func emptyChart() Chart {
	return Chart{Labels: []string{}, Series: []float64{}, NoData: true, Placeholder: NoDataMessage}
}

// RankedNutrient is an entry of the top micronutrient list.
type RankedNutrient struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// TopMicronutrientCount is how many micronutrients the summary chart shows.
const TopMicronutrientCount = 3

// TopMicronutrients returns up to n entries with a positive numeric score,
// highest first. Equal scores keep their original order.
func TopMicronutrients(scores Scores, n int) []RankedNutrient {
	ranked := make([]RankedNutrient, 0, len(scores))
	for _, e := range scores {
		s := ParseScore(e.Score)
		if !s.Applicable || s.Value <= 0 {
			continue
		}
		ranked = append(ranked, RankedNutrient{Name: e.Name, Value: s.Value})
	}
	slices.SortStableFunc(ranked, func(a, b RankedNutrient) int {
		return cmp.Compare(b.Value, a.Value)
	})
	if n >= 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// MicronutrientChart charts the top three micronutrients.
func MicronutrientChart(scores Scores) Chart {
	top := TopMicronutrients(scores, TopMicronutrientCount)
	if len(top) == 0 {
		return emptyChart()
	}
	chart := Chart{
		Labels: make([]string, 0, len(top)),
		Series: make([]float64, 0, len(top)),
	}
	for _, r := range top {
		chart.Labels = append(chart.Labels, r.Name)
		chart.Series = append(chart.Series, r.Value)
	}
	return chart
}

// Macronutrients charted by MacronutrientChart, in series order.
var Macronutrients = []string{"Carbohydrates", "Proteins", "Fats"}

// MacronutrientChart charts carbohydrates, proteins and fats. Missing,
// non-numeric and negative scores count as 0; a zero total yields NoData.
func MacronutrientChart(scores Scores) Chart {
	series := make([]float64, 0, len(Macronutrients))
	var total float64
	for _, name := range Macronutrients {
		var v float64
		if raw, ok := scores.Get(name); ok {
			if s := ParseScore(raw); s.Applicable && s.Value > 0 {
				v = s.Value
			}
		}
		series = append(series, v)
		total += v
	}
	if total <= 0 {
		return emptyChart()
	}
	return Chart{
		Labels: append([]string{}, Macronutrients...),
		Series: series,
	}
}

// ProcessingView is the processing-level badge.
type ProcessingView struct {
	Level ProcessingLevel `json:"level"`
	Label string          `json:"label"`
	Tier  Tier            `json:"tier"`
}

// RiskView is the user-impact badge and its explanation.
type RiskView struct {
	Level  RiskLevel `json:"level"`
	Label  string    `json:"label"`
	Tier   Tier      `json:"tier"`
	Reason string    `json:"reason"`
}

// ViewModel is everything a client needs to render an analysis.
type ViewModel struct {
	Processing       ProcessingView `json:"processing"`
	Risk             RiskView       `json:"risk"`
	Harmful          HarmfulSummary `json:"harmfulIngredients"`
	SuitableDiets    []string       `json:"suitableDiets"`
	NotSuitableDiets []string       `json:"notSuitableDiets"`
	MacroScores      []NutrientBar  `json:"macronutrientScores"`
	MicroScores      []NutrientBar  `json:"micronutrientScores"`
	MacroChart       Chart          `json:"macronutrientChart"`
	MicroChart       Chart          `json:"micronutrientChart"`
	ActionableSteps  []string       `json:"actionableSteps"`
}

// Classify derives the view model from a canonical record.
func Classify(fa FoodAnalysis) ViewModel {
	processing := ClassifyProcessing(fa.Processed)
	risk := ClassifyRisk(fa.UserImpact)

	return ViewModel{
		Processing: ProcessingView{
			Level: processing,
			Label: processing.String(),
			Tier:  processing.Tier(),
		},
		Risk: RiskView{
			Level:  risk,
			Label:  risk.String(),
			Tier:   risk.Tier(),
			Reason: fa.UserImpactReason,
		},
		Harmful:          SummarizeHarmful(fa.HarmfulIngredients),
		SuitableDiets:    append([]string{}, fa.SuitableDiets...),
		NotSuitableDiets: append([]string{}, fa.NotSuitableDiets...),
		MacroScores:      ScoreBars(fa.MacronutrientsScore),
		MicroScores:      ScoreBars(fa.MicronutrientsScore),
		MacroChart:       MacronutrientChart(fa.MacronutrientsScore),
		MicroChart:       MicronutrientChart(fa.MicronutrientsScore),
		ActionableSteps:  append([]string{}, fa.ActionableSteps...),
	}
}

// Analyze decodes, normalizes and classifies a raw payload.
func Analyze(data []byte) (ViewModel, error) {
	fa, err := NormalizeJSON(data)
	if err != nil {
		return ViewModel{}, err
	}
	return Classify(fa), nil
}
