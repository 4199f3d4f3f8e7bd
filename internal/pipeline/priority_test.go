package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecayPriority(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		score       int
		errorStreak int
		decayFactor int
		want        int
	}{
		{name: "first failure", score: 100, errorStreak: 1, decayFactor: 5, want: 95},
		{name: "steepens with streak", score: 95, errorStreak: 2, decayFactor: 5, want: 85},
		{name: "clamps at zero", score: 10, errorStreak: 4, decayFactor: 5, want: 0},
		{name: "already zero", score: 0, errorStreak: 9, decayFactor: 5, want: 0},
		{name: "zero factor is a no-op", score: 42, errorStreak: 3, decayFactor: 0, want: 42},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, DecayPriority(tc.score, tc.errorStreak, tc.decayFactor))
		})
	}
}
