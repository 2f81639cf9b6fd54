package validate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashgrove/ecsruntime/internal/validate"
)

const positiveHealthScript = `
function validate_health(overrides)
  if overrides.hp ~= nil and overrides.hp < 0 then
    return false, {"hp must be non-negative"}
  end
  return true, nil
end
`

func TestLuaValidatorAccepts(t *testing.T) {
	v, err := validate.NewLuaValidator(positiveHealthScript, "validate_health", nil)
	require.NoError(t, err)
	defer v.Close()

	ok, errs := v.Validate(map[string]any{"hp": 10.0})
	assert.True(t, ok)
	assert.Empty(t, errs)
}

func TestLuaValidatorRejects(t *testing.T) {
	v, err := validate.NewLuaValidator(positiveHealthScript, "validate_health", nil)
	require.NoError(t, err)
	defer v.Close()

	ok, errs := v.Validate(map[string]any{"hp": -5.0})
	assert.False(t, ok)
	assert.Contains(t, errs, "hp must be non-negative")
}

func TestLuaValidatorMissingFunction(t *testing.T) {
	v, err := validate.NewLuaValidator(`x = 1`, "does_not_exist", nil)
	require.NoError(t, err)
	defer v.Close()

	ok, errs := v.Validate(map[string]any{})
	assert.False(t, ok)
	assert.NotEmpty(t, errs)
}

func TestNoneValidatorAcceptsEverything(t *testing.T) {
	ok, errs := validate.None{}.Validate(map[string]any{"anything": "goes"})
	assert.True(t, ok)
	assert.Nil(t, errs)
}
