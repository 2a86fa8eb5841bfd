package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testPayload struct {
	Rating string `json:"rating" validate:"required,oneof=DISLIKE_IT LIKE_IT LOVE_IT"`
	Body   string `json:"body" validate:"max=10"`
	Email  string `json:"email" validate:"omitempty,email"`
}

func TestValidate_Success(t *testing.T) {
	err := Validate(testPayload{Rating: "LIKE_IT", Body: "short"})
	assert.NoError(t, err)
}

func TestValidate_RequiredAndOneof(t *testing.T) {
	err := Validate(testPayload{})
	require.Error(t, err)

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	fields := valErr.Fields()
	assert.Equal(t, "is required", fields["Rating"])

	err = Validate(testPayload{Rating: "AMAZING"})
	require.ErrorAs(t, err, &valErr)
	assert.Contains(t, valErr.Fields()["Rating"], "must be one of")
}

func TestValidate_MaxLength(t *testing.T) {
	err := Validate(testPayload{Rating: "LIKE_IT", Body: "this body is far too long"})
	require.Error(t, err)

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Contains(t, valErr.Fields()["Body"], "at most 10")
}

func TestValidate_Email(t *testing.T) {
	err := Validate(testPayload{Rating: "LIKE_IT", Email: "not-an-email"})
	require.Error(t, err)

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "must be a valid email address", valErr.Fields()["Email"])
}
