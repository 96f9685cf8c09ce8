package rules

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVoteQuorum(t *testing.T) {
	cases := []struct {
		name     string
		audience int
		ratio    float64
		want     int
	}{
		{"thirty percent of ten", 10, 0.3, 3},
		{"rounds up", 7, 0.3, 3},
		{"single viewer needs one vote", 1, 0.3, 1},
		{"empty audience still needs one", 0, 0.3, 1},
		{"negative audience still needs one", -5, 0.3, 1},
		{"invalid ratio falls back to default", 10, 0, 3},
		{"ratio above one falls back to default", 10, 1.5, 3},
		{"full audience ratio", 4, 1, 4},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, VoteQuorum(tc.audience, tc.ratio))
		})
	}
}

func TestQuorumReached(t *testing.T) {
	require.False(t, QuorumReached(2, 10, 0.3))
	require.True(t, QuorumReached(3, 10, 0.3))
	require.True(t, QuorumReached(5, 10, 0.3))
	require.True(t, QuorumReached(1, 1, 0.3))
}
