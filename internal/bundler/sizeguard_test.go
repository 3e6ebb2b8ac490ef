package bundler

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getjack-org/jack-sub003/internal/source"
)

func TestCheckSourceSizeAtLimit(t *testing.T) {
	store := source.NewStore(map[string]string{
		"big.ts": strings.Repeat("a", MaxSourceBytes),
	})
	assert.NoError(t, CheckSourceSize(store))
}

func TestCheckSourceSizeOverLimit(t *testing.T) {
	store := source.NewStore(map[string]string{
		"big.ts": strings.Repeat("a", MaxSourceBytes),
		"b.ts":   "x",
	})

	err := CheckSourceSize(store)
	require.Error(t, err)

	var sizeErr *SizeError
	require.True(t, errors.As(err, &sizeErr))
	assert.Equal(t, MaxSourceBytes+1, sizeErr.Size)
	assert.Equal(t, MaxSourceBytes, sizeErr.Limit)
	assert.Contains(t, err.Error(), "500001")
	assert.Contains(t, err.Error(), "500000")
}

func TestCheckBundleSize(t *testing.T) {
	assert.NoError(t, CheckBundleSize(strings.Repeat("a", MaxBundleBytes)))

	err := CheckBundleSize(strings.Repeat("a", MaxBundleBytes+1))
	require.Error(t, err)

	var sizeErr *SizeError
	require.True(t, errors.As(err, &sizeErr))
	assert.Equal(t, MaxBundleBytes, sizeErr.Limit)
}
