package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrimString(t *testing.T) {
	assert.Equal(t, "raw_orders", trimString("  raw_orders\t"))
	assert.Equal(t, "", trimString("   "))
}

func TestExtractArrayParam(t *testing.T) {
	t.Run("native array", func(t *testing.T) {
		result, err := extractArrayParam(map[string]any{"cols": []any{"a", "b"}}, "cols", nil)
		require.NoError(t, err)
		assert.Equal(t, []any{"a", "b"}, result)
	})

	t.Run("stringified array", func(t *testing.T) {
		result, err := extractArrayParam(map[string]any{"cols": `["a","b"]`}, "cols", nil)
		require.NoError(t, err)
		assert.Equal(t, []any{"a", "b"}, result)
	})

	t.Run("unparsable string returns guidance", func(t *testing.T) {
		result, err := extractArrayParam(map[string]any{"cols": "a,b"}, "cols", nil)
		require.Error(t, err)
		assert.Nil(t, result)
		assert.Contains(t, err.Error(), `parameter "cols"`)
		assert.Contains(t, err.Error(), "native JSON array")
	})

	t.Run("missing uses default", func(t *testing.T) {
		result, err := extractArrayParam(map[string]any{}, "cols", []any{"x"})
		require.NoError(t, err)
		assert.Equal(t, []any{"x"}, result)
	})

	t.Run("wrong type", func(t *testing.T) {
		_, err := extractArrayParam(map[string]any{"cols": 3.0}, "cols", nil)
		assert.Error(t, err)
	})
}

func TestExtractStringSlice(t *testing.T) {
	got, err := extractStringSlice(map[string]any{"cols": []any{"id", "Order_No"}}, "cols")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "Order_No"}, got)

	_, err = extractStringSlice(map[string]any{"cols": []any{"id", 7.0}}, "cols")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "element 1")

	got, err = extractStringSlice(map[string]any{}, "cols")
	require.NoError(t, err)
	assert.Empty(t, got)
}
