package form

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/cleanbites/backend/internal/models"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/user_details.schema.json
var schemaFS embed.FS

const userDetailsSchema = "schemas/user_details.schema.json"

// SchemaError reports a request body that does not have the expected shape.
type SchemaError struct {
	Location string
	Message  string
}

func (e *SchemaError) Error() string {
	if e.Location == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Location, e.Message)
}

var compileUserDetails = sync.OnceValues(func() (*jsonschema.Schema, error) {
	data, err := schemaFS.ReadFile(userDetailsSchema)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(userDetailsSchema, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile(userDetailsSchema)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
})

// DecodeUserDetails checks a user-details body against its schema and maps it
// onto models.UserDetails. Numeric age, height and weight are kept in their
// JSON spelling. Unknown keys are ignored.
func DecodeUserDetails(data []byte) (models.UserDetails, error) {
	schema, err := compileUserDetails()
	if err != nil {
		return models.UserDetails{}, err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return models.UserDetails{}, &SchemaError{Message: "body is not valid JSON"}
	}

	if err := schema.Validate(doc); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			for len(ve.Causes) > 0 {
				ve = ve.Causes[0]
			}
			return models.UserDetails{}, &SchemaError{
				Location: strings.TrimPrefix(ve.InstanceLocation, "/"),
				Message:  ve.Message,
			}
		}
		return models.UserDetails{}, fmt.Errorf("validate user details: %w", err)
	}

	obj := doc.(map[string]any)
	field := func(key string) string {
		switch v := obj[key].(type) {
		case string:
			return v
		case json.Number:
			return v.String()
		default:
			return ""
		}
	}

	return models.UserDetails{
		UserID:      field("userId"),
		Name:        field("name"),
		Age:         field("age"),
		Height:      field("height"),
		Weight:      field("weight"),
		Gender:      field("gender"),
		HealthIssue: field("healthIssue"),
		Allergy:     field("allergy"),
		Goal:        field("goal"),
	}, nil
}
