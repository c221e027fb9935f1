package loadersurvival

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLabelEncoderBijection(t *testing.T) {
	le, err := NewLabelEncoder(4)
	require.NoError(t, err)
	require.Equal(t, 8, le.NumClasses())

	seen := make(map[int]bool)
	for bin := 0; bin < 4; bin++ {
		for c := 0; c < 2; c++ {
			id, err := le.Encode(bin, c)
			require.NoError(t, err)
			assert.Equal(t, 2*bin+c, id)
			assert.False(t, seen[id])
			seen[id] = true

			b, cc, err := le.Decode(id)
			require.NoError(t, err)
			assert.Equal(t, bin, b)
			assert.Equal(t, c, cc)
		}
	}
}

func TestLabelEncoderScenario(t *testing.T) {
	le, err := NewLabelEncoder(2)
	require.NoError(t, err)

	ids := make([]int, 0)
	for i, bin := range []int{0, 0, 1, 1} {
		id, err := le.Encode(bin, []int{0, 1, 0, 1}[i])
		require.NoError(t, err)
		ids = append(ids, id)
	}
	assert.Equal(t, []int{0, 1, 2, 3}, ids)
}

func TestLabelEncoderErrors(t *testing.T) {
	_, err := NewLabelEncoder(0)
	assert.Equal(t, ErrInvalidBinCount, errors.Cause(err))

	le, err := NewLabelEncoder(2)
	require.NoError(t, err)

	_, err = le.Encode(2, 0)
	assert.Equal(t, ErrLabelRange, errors.Cause(err))
	_, err = le.Encode(0, 2)
	assert.Equal(t, ErrLabelRange, errors.Cause(err))
	_, _, err = le.Decode(4)
	assert.Equal(t, ErrLabelRange, errors.Cause(err))
	_, _, err = le.Decode(-1)
	assert.Equal(t, ErrLabelRange, errors.Cause(err))
}
