package form

import (
	"strings"

	"github.com/cleanbites/backend/internal/models"
)

// Messages shown for a rejected food submission.
const (
	MsgProductNameRequired = "Please enter the Product Name."
	MsgFoodDetailsRequired = "Please provide either Ingredients/Allergens text, Nutritional Information text, or upload an image."
)

// FieldError is a rejected form field and the message to show next to it.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors lists every rejected field of a form, in form order.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	msgs := make([]string, 0, len(v))
	for _, fe := range v {
		msgs = append(msgs, fe.Message)
	}
	return strings.Join(msgs, " ")
}

// Fields maps each rejected field to its message.
func (v ValidationErrors) Fields() map[string]string {
	out := make(map[string]string, len(v))
	for _, fe := range v {
		out[fe.Field] = fe.Message
	}
	return out
}

func (v ValidationErrors) orNil() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

// ValidateFood checks that a product name is set and that there is something
// to analyse: ingredients text, nutrition text or a label image. Only the
// first failing rule is reported.
func ValidateFood(sub models.FoodSubmission) error {
	if blank(sub.ProductName) {
		return ValidationErrors{{Field: "productName", Message: MsgProductNameRequired}}
	}
	if blank(sub.Ingredients) && blank(sub.NutritionInfo) && len(sub.InfoImage) == 0 {
		return ValidationErrors{{Field: "details", Message: MsgFoodDetailsRequired}}
	}
	return nil
}

// UserDetailFields are the profile fields, in form order.
var UserDetailFields = []string{"name", "age", "height", "weight", "gender", "healthIssue", "allergy", "goal"}

// ValidateUserDetails requires every profile field to be filled in.
func ValidateUserDetails(d models.UserDetails) error {
	values := map[string]string{
		"name":        d.Name,
		"age":         d.Age,
		"height":      d.Height,
		"weight":      d.Weight,
		"gender":      d.Gender,
		"healthIssue": d.HealthIssue,
		"allergy":     d.Allergy,
		"goal":        d.Goal,
	}

	var errs ValidationErrors
	for _, field := range UserDetailFields {
		if blank(values[field]) {
			errs = append(errs, FieldError{Field: field, Message: requiredMessage(field)})
		}
	}
	return errs.orNil()
}

// requiredMessage capitalises the first letter of the field name only, so
// healthIssue reads "HealthIssue is required.".
func requiredMessage(field string) string {
	return strings.ToUpper(field[:1]) + field[1:] + " is required."
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
