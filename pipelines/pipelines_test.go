package pipelines

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datachat/pipeline"
)

func TestBuiltinRegisters(t *testing.T) {
	reg, err := pipeline.NewRegistry(nil, Builtin(nil, nil)...)
	require.NoError(t, err)
	assert.Equal(t, []string{"describe_data", "fetch_data", "fetch_more", "generate_chart", "transform_data"}, reg.Names())

	for _, d := range reg.Descriptors() {
		assert.NotEmpty(t, d.Description, d.Name)
	}
}

func TestCompareValues(t *testing.T) {
	assert.Equal(t, 0, compareValues(int64(2), 2.0))
	assert.Equal(t, 1, compareValues("10", int64(9)))
	assert.Equal(t, -1, compareValues("apple", "banana"))
	assert.Equal(t, 1, compareValues(true, false))
	assert.Equal(t, 0, compareValues(true, "true"))
	assert.Equal(t, -1, compareValues(nil, int64(1)))
}
