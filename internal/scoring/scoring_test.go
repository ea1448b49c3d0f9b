package scoring

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSpeedFactorMonotonic(t *testing.T) {
	limit := int64(30000)
	prev := SpeedFactor(limit, 0)
	require.InDelta(t, MaxSpeedMultiplier, prev, 1e-9)

	for taken := int64(1000); taken <= limit; taken += 1000 {
		factor := SpeedFactor(limit, taken)
		require.LessOrEqual(t, factor, prev, "factor must not grow with time taken")
		require.GreaterOrEqual(t, factor, 1.0)
		prev = factor
	}
	require.Equal(t, 1.0, SpeedFactor(limit, limit))
	require.Equal(t, 1.0, SpeedFactor(limit, limit+5000))
}

func TestSpeedFactorDegenerateInputs(t *testing.T) {
	require.Equal(t, 1.0, SpeedFactor(0, 1000))
	require.Equal(t, 1.0, SpeedFactor(-1, 1000))
	require.InDelta(t, MaxSpeedMultiplier, SpeedFactor(30000, -50), 1e-9)
}

func TestSingleSelect(t *testing.T) {
	require.Equal(t, 0, SingleSelect(100, 30000, 1000, false))
	require.Equal(t, 0, SingleSelect(0, 30000, 1000, true))

	fast := SingleSelect(100, 30000, 3000, true)
	require.Greater(t, fast, 100, "fast correct answer earns a speed bonus")
	require.LessOrEqual(t, fast, 150)

	slow := SingleSelect(100, 30000, 30000, true)
	require.Equal(t, 100, slow, "correct answer never scores below base")
	require.GreaterOrEqual(t, fast, slow)
}

func TestMultiSelectAccuracy(t *testing.T) {
	correct := []string{"x", "y", "z"}

	// Exact set at the slowest bracket yields exactly base points.
	require.Equal(t, 90, MultiSelect(90, 30000, 30000, []string{"z", "x", "y"}, correct))

	// One hit cancelled by one miss: (1-1)/3 = 0.
	require.Equal(t, 0, MultiSelect(90, 30000, 1000, []string{"x", "w"}, correct))

	// Empty and disjoint sets score zero.
	require.Equal(t, 0, MultiSelect(90, 30000, 1000, nil, correct))
	require.Equal(t, 0, MultiSelect(90, 30000, 1000, []string{"a", "b"}, correct))

	// Partial credit: 2 of 3 correct, no wrong picks.
	partial := MultiSelect(90, 30000, 30000, []string{"x", "y"}, correct)
	require.Equal(t, 60, partial)

	// No correct answers configured: always zero.
	require.Equal(t, 0, MultiSelect(90, 30000, 1000, []string{"x"}, nil))
}

func TestFullyCorrect(t *testing.T) {
	correct := []string{"x", "y", "z"}
	require.True(t, FullyCorrect([]string{"z", "y", "x"}, correct))
	require.True(t, FullyCorrect([]string{"x", "x", "y", "z"}, correct), "duplicates collapse")
	require.False(t, FullyCorrect([]string{"x", "y"}, correct))
	require.False(t, FullyCorrect([]string{"x", "y", "z", "w"}, correct))
	require.False(t, FullyCorrect(nil, correct))
	require.True(t, FullyCorrect(nil, nil))
}
