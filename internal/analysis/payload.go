package analysis

import (
	"fmt"
	"strconv"

	"github.com/buger/jsonparser"
)

// RawPayload is the analysis response as sent by the upstream model. Every
// field is optional: a nil pointer or nil slice means the key was absent, null
// or of an unexpected JSON type.
type RawPayload struct {
	Processed          *string
	HarmfulIngredients []string
	SuitableDiets      []string
	NotSuitableDiets   []string
	MacroNutrients     Scores
	MicroNutrients     Scores
	UserRisk           *string
	UserRiskReason     *string
	ActionableSteps    []string
}

// DecodePayload reads a raw analysis response. Only syntactically broken JSON
// is reported as an error; a valid document of any shape decodes to a
// RawPayload with the recognised fields set.
func DecodePayload(data []byte) (RawPayload, error) {
	var raw RawPayload

	_, dataType, _, err := jsonparser.Get(data)
	if err != nil {
		return raw, fmt.Errorf("failed to decode analysis payload: %w", err)
	}
	if dataType != jsonparser.Object {
		return raw, nil
	}

	// The upstream spells the score keys macroNutrientsScore; the lower-case
	// spelling is accepted as a fallback.
	var macroAlt, microAlt Scores

	err = jsonparser.ObjectEach(data, func(key []byte, value []byte, dataType jsonparser.ValueType, _ int) error {
		switch string(key) {
		case "processed":
			raw.Processed = optionalString(value, dataType)
		case "harmfulIngredients":
			raw.HarmfulIngredients = stringList(value, dataType)
		case "suitableDiets":
			raw.SuitableDiets = stringList(value, dataType)
		case "notSuitableDiets":
			raw.NotSuitableDiets = stringList(value, dataType)
		case "macroNutrientsScore":
			raw.MacroNutrients = scoreMap(value, dataType)
		case "macronutrientsScore":
			macroAlt = scoreMap(value, dataType)
		case "microNutrientsScore":
			raw.MicroNutrients = scoreMap(value, dataType)
		case "micronutrientsScore":
			microAlt = scoreMap(value, dataType)
		case "userRisk":
			raw.UserRisk = optionalString(value, dataType)
		case "userRiskReason":
			raw.UserRiskReason = optionalString(value, dataType)
		case "actionableSteps":
			raw.ActionableSteps = stringList(value, dataType)
		}
		return nil
	})
	if err != nil {
		return RawPayload{}, fmt.Errorf("failed to decode analysis payload: %w", err)
	}

	if raw.MacroNutrients == nil {
		raw.MacroNutrients = macroAlt
	}
	if raw.MicroNutrients == nil {
		raw.MicroNutrients = microAlt
	}
	return raw, nil
}

// optionalString returns nil for anything but a non-empty JSON string.
func optionalString(value []byte, dataType jsonparser.ValueType) *string {
	if dataType != jsonparser.String {
		return nil
	}
	s, err := jsonparser.ParseString(value)
	if err != nil || s == "" {
		return nil
	}
	return &s
}

// stringList accepts either a single string or an array. Non-string array
// elements are skipped. The result is non-nil whenever the key held a usable
// value, so an empty array stays distinguishable from an absent key.
func stringList(value []byte, dataType jsonparser.ValueType) []string {
	switch dataType {
	case jsonparser.String:
		s, err := jsonparser.ParseString(value)
		if err != nil || s == "" {
			return nil
		}
		return []string{s}
	case jsonparser.Array:
		out := []string{}
		_, _ = jsonparser.ArrayEach(value, func(item []byte, itemType jsonparser.ValueType, _ int, err error) {
			if err != nil || itemType != jsonparser.String {
				return
			}
			if s, err := jsonparser.ParseString(item); err == nil {
				out = append(out, s)
			}
		})
		return out
	default:
		return nil
	}
}

// scoreMap decodes a nutrient → score object in document order. Numeric
// values are rendered as their shortest decimal form; any other non-string
// value becomes the N/A sentinel.
func scoreMap(value []byte, dataType jsonparser.ValueType) Scores {
	if dataType != jsonparser.Object {
		return nil
	}
	out := Scores{}
	_ = jsonparser.ObjectEach(value, func(key []byte, v []byte, t jsonparser.ValueType, _ int) error {
		name := string(key)
		score := NotApplicable
		switch t {
		case jsonparser.String:
			if s, err := jsonparser.ParseString(v); err == nil {
				score = s
			}
		case jsonparser.Number:
			if f, err := strconv.ParseFloat(string(v), 64); err == nil {
				score = strconv.FormatFloat(f, 'f', -1, 64)
			}
		}
		out = out.Set(name, score)
		return nil
	})
	return out
}
