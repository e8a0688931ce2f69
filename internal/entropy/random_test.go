package entropy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceDeterministicForSeed(t *testing.T) {
	a := New(42)
	b := New(42)
	for i := 0; i < 100; i++ {
		require.Equal(t, a.Intn(1000), b.Intn(1000))
		require.Equal(t, a.Float64(), b.Float64())
	}

	xs := []int{1, 2, 3, 4, 5, 6, 7, 8}
	ys := append([]int(nil), xs...)
	a.Shuffle(len(xs), func(i, j int) { xs[i], xs[j] = xs[j], xs[i] })
	b.Shuffle(len(ys), func(i, j int) { ys[i], ys[j] = ys[j], ys[i] })
	assert.Equal(t, xs, ys)
	assert.ElementsMatch(t, []int{1, 2, 3, 4, 5, 6, 7, 8}, xs)
}

func TestSourceZeroSeed(t *testing.T) {
	s := New(0)
	assert.NotZero(t, s.Seed())
}

func TestSourceRanges(t *testing.T) {
	s := New(7)
	for i := 0; i < 500; i++ {
		v := s.IntRange(15, 65)
		require.GreaterOrEqual(t, v, 15)
		require.Less(t, v, 65)

		f := s.Uniform(40, 100)
		require.GreaterOrEqual(t, f, 40.0)
		require.Less(t, f, 100.0)
	}
	assert.Equal(t, 3, s.IntRange(3, 3))
	assert.True(t, s.Chance(1))
	assert.False(t, s.Chance(0))
}

func TestPick(t *testing.T) {
	s := New(3)
	_, ok := Pick(s, []string(nil))
	assert.False(t, ok)

	v, ok := Pick(s, []string{"only"})
	require.True(t, ok)
	assert.Equal(t, "only", v)
}
