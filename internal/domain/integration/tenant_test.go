package integration

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTenantContext(t *testing.T) {
	t.Run("nil tenant rejected", func(t *testing.T) {
		_, err := NewTenantContext(uuid.Nil, nil)
		assert.ErrorIs(t, err, ErrInvalidTenantID)
	})

	t.Run("params are copied", func(t *testing.T) {
		params := map[string]string{ParamClient: "100"}
		tc, err := NewTenantContext(uuid.New(), params)
		require.NoError(t, err)

		params[ParamClient] = "200"
		v, ok := tc.Param(ParamClient)
		assert.True(t, ok)
		assert.Equal(t, "100", v)

		copied := tc.Params()
		copied[ParamClient] = "300"
		assert.Equal(t, "100", tc.ParamOr(ParamClient, ""))
	})

	t.Run("param defaults", func(t *testing.T) {
		tc := MustTenantContext(uuid.New(), map[string]string{ParamBaseURL: ""})
		assert.Equal(t, "http://default", tc.ParamOr(ParamBaseURL, "http://default"))
		assert.Equal(t, []string{ParamBaseURL}, tc.ParamKeys())
	})
}

func TestTenantContext_SameTenant(t *testing.T) {
	id := uuid.New()
	a := MustTenantContext(id, nil)
	b := MustTenantContext(id, map[string]string{ParamClient: "1"})
	c := MustTenantContext(uuid.New(), nil)

	assert.True(t, a.SameTenant(b))
	assert.False(t, a.SameTenant(c))
	assert.False(t, a.SameTenant(nil))
	assert.Equal(t, id.String(), a.Key())
}
