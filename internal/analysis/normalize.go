// Package analysis turns the nutrition analysis returned by the model into a
// canonical record and derives the display classifications from it.
//
// Everything in this package is pure: no I/O, no shared state, and the same
// input always yields the same output.
package analysis

import (
	"bytes"
	"encoding/json"
)

// Defaults applied by Normalize when the upstream leaves a field out.
const (
	DefaultProcessed        = "Unknown"
	DefaultHarmful          = "Unknown"
	DefaultUserImpact       = "Unknown"
	DefaultUserImpactReason = "No reason provided"
)

// NutrientScore is one entry of a nutrient score mapping.
type NutrientScore struct {
	Name  string
	Score string
}

// Scores is an insertion-ordered nutrient → score mapping. Score is either a
// numeric string or NotApplicable.
type Scores []NutrientScore

// Get returns the score recorded for name.
func (s Scores) Get(name string) (string, bool) {
	for _, e := range s {
		if e.Name == name {
			return e.Score, true
		}
	}
	return "", false
}

// Set replaces the score of an existing entry in place or appends a new one.
func (s Scores) Set(name, score string) Scores {
	for i := range s {
		if s[i].Name == name {
			s[i].Score = score
			return s
		}
	}
	return append(s, NutrientScore{Name: name, Score: score})
}

// MarshalJSON encodes the mapping as a JSON object, keeping entry order.
func (s Scores) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(e.Name)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(e.Score)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// FoodAnalysis is the canonical analysis record. Every field holds a concrete
// value once produced by Normalize.
type FoodAnalysis struct {
	Processed           string   `json:"processed"`
	HarmfulIngredients  []string `json:"harmfulIngredients"`
	SuitableDiets       []string `json:"suitableDiets"`
	NotSuitableDiets    []string `json:"notSuitableDiets"`
	MacronutrientsScore Scores   `json:"macronutrientsScore"`
	MicronutrientsScore Scores   `json:"micronutrientsScore"`
	UserImpact          string   `json:"userImpact"`
	UserImpactReason    string   `json:"userImpactReason"`
	ActionableSteps     []string `json:"actionableSteps"`
}

// Normalize fills every missing field of raw with its default. It never
// fails and never shares backing arrays with raw.
func Normalize(raw RawPayload) FoodAnalysis {
	fa := FoodAnalysis{
		Processed:           stringOr(raw.Processed, DefaultProcessed),
		HarmfulIngredients:  []string{DefaultHarmful},
		SuitableDiets:       uniqueStrings(raw.SuitableDiets),
		NotSuitableDiets:    uniqueStrings(raw.NotSuitableDiets),
		MacronutrientsScore: cloneScores(raw.MacroNutrients),
		MicronutrientsScore: cloneScores(raw.MicroNutrients),
		UserImpact:          stringOr(raw.UserRisk, DefaultUserImpact),
		UserImpactReason:    stringOr(raw.UserRiskReason, DefaultUserImpactReason),
		ActionableSteps:     append([]string{}, raw.ActionableSteps...),
	}
	if raw.HarmfulIngredients != nil {
		fa.HarmfulIngredients = append([]string{}, raw.HarmfulIngredients...)
	}
	return fa
}

// NormalizeJSON decodes and normalizes in one step.
func NormalizeJSON(data []byte) (FoodAnalysis, error) {
	raw, err := DecodePayload(data)
	if err != nil {
		return FoodAnalysis{}, err
	}
	return Normalize(raw), nil
}

func stringOr(s *string, def string) string {
	if s == nil || *s == "" {
		return def
	}
	return *s
}

// uniqueStrings drops repeated entries, keeping the first occurrence.
func uniqueStrings(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func cloneScores(in Scores) Scores {
	out := make(Scores, len(in))
	copy(out, in)
	return out
}
