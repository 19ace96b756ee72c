package response_test

import (
	"encoding/json"
	"testing"

	resp "account_service/internal/lib/api/response"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_OmitsData(t *testing.T) {
	raw, err := json.Marshal(resp.Error("boom"))
	require.NoError(t, err)

	assert.JSONEq(t, `{"status":"Failed","message":"boom"}`, string(raw))
}

func TestPending(t *testing.T) {
	r := resp.Pending("Verification email sent", map[string]string{"id": "1"})

	assert.Equal(t, resp.StatusPending, r.Status)
	assert.Equal(t, "Verification email sent", r.Message)
	assert.NotNil(t, r.Data)
}

func TestValidationError(t *testing.T) {
	type request struct {
		Email string `validate:"required,email"`
		Name  string `validate:"required"`
	}

	err := validator.New().Struct(request{Email: "nope"})
	require.Error(t, err)

	var verrs validator.ValidationErrors
	require.ErrorAs(t, err, &verrs)

	r := resp.ValidationError(verrs)

	assert.Equal(t, resp.StatusFailed, r.Status)
	assert.Contains(t, r.Message, "field Email is not a valid email")
	assert.Contains(t, r.Message, "field Name is a required field")
}
