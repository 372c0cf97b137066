package form

import (
	"errors"
	"testing"

	"github.com/cleanbites/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeUserDetails(t *testing.T) {
	d, err := DecodeUserDetails([]byte(`{
		"userId": "user_1",
		"name": "Ada",
		"age": 34,
		"height": "170",
		"weight": 60.5,
		"gender": "Female",
		"healthIssue": "Diabetes",
		"allergy": "None",
		"goal": "Weight Loss",
		"favouriteColour": "green"
	}`))
	require.NoError(t, err)

	assert.Equal(t, models.UserDetails{
		UserID:      "user_1",
		Name:        "Ada",
		Age:         "34",
		Height:      "170",
		Weight:      "60.5",
		Gender:      "Female",
		HealthIssue: "Diabetes",
		Allergy:     "None",
		Goal:        "Weight Loss",
	}, d)
}

func TestDecodeUserDetails_PartialBodyDecodes(t *testing.T) {
	d, err := DecodeUserDetails([]byte(`{"userId": "user_1", "name": "Ada"}`))
	require.NoError(t, err)
	assert.Equal(t, "Ada", d.Name)
	assert.Empty(t, d.Goal)
}

func TestDecodeUserDetails_Rejected(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		location string
		contains string
	}{
		{name: "missing user id", body: `{"name": "Ada"}`, contains: "userId"},
		{name: "empty user id", body: `{"userId": ""}`, location: "userId"},
		{name: "numeric user id", body: `{"userId": 12}`, location: "userId"},
		{name: "wrong field type", body: `{"userId": "u", "name": 3}`, location: "name"},
		{name: "array body", body: `[]`, contains: "object"},
		{name: "not json", body: `{"userId": `, contains: "not valid JSON"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeUserDetails([]byte(tt.body))
			require.Error(t, err)

			var serr *SchemaError
			require.True(t, errors.As(err, &serr))
			assert.Equal(t, tt.location, serr.Location)
			if tt.contains != "" {
				assert.Contains(t, serr.Error(), tt.contains)
			}
		})
	}
}
