package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenggwsx/SportChat/internal/apperr"
)

type signup struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required,min=6"`
	Sport    string `json:"sport" validate:"omitempty,sport"`
}

func TestValidate_Struct(t *testing.T) {
	v := New([]string{"futebol", "volei"})

	assert.Empty(t, v.Validate(signup{Username: "alice", Password: "secret1", Sport: "Futebol"}))

	violations := v.Validate(signup{Password: "abc", Sport: "cricket"})
	require.Len(t, violations, 3)
	assert.Equal(t, apperr.Violation{Field: "username", Rule: "required", Message: "username is required"}, violations[0])
	assert.Equal(t, "password", violations[1].Field)
	assert.Equal(t, "min", violations[1].Rule)
	assert.Equal(t, "password must have at least 6 characters", violations[1].Message)
	assert.Equal(t, "sport", violations[2].Rule)
}

func TestFields_Descriptor(t *testing.T) {
	v := New([]string{"futebol"})

	violations := v.Fields(
		Field{Name: "user_id", Value: int64(0), Rules: "gt=0"},
		Field{Name: "message", Value: "hello", Rules: "required,max=3"},
		Field{Name: "sport", Value: "futebol", Rules: "required,sport"},
	)
	require.Len(t, violations, 2)
	assert.Equal(t, "user_id", violations[0].Field)
	assert.Equal(t, "gt", violations[0].Rule)
	assert.Equal(t, "message must have at most 3 characters", violations[1].Message)

	err := v.CheckFields(Field{Name: "sport", Value: "", Rules: "required,sport"})
	assert.True(t, errors.Is(err, apperr.ErrInvalidInput))
	assert.NoError(t, v.CheckFields(Field{Name: "sport", Value: "futebol", Rules: "required,sport"}))
}

func TestSport_EmptySetAcceptsAll(t *testing.T) {
	assert.True(t, New(nil).Sport("anything"))
	assert.False(t, New([]string{"futsal"}).Sport("volei"))
	assert.True(t, New([]string{"futsal"}).Sport(" FUTSAL "))
}
