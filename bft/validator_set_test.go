package bft

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidatorSet(t *testing.T) {
	tests := []struct {
		name      string
		detail    string
		ids       []uint64
		len       int
		maxFaulty int
		quorum    int
		leaders   []uint64
	}{
		{name: "one", detail: "a single validator is its own quorum", ids: []uint64{5}, len: 1, maxFaulty: 0, quorum: 1, leaders: []uint64{5, 5}},
		{name: "four", detail: "3f+1 with f=1", ids: []uint64{3, 1, 2, 0}, len: 4, maxFaulty: 1, quorum: 3, leaders: []uint64{0, 1, 2, 3, 0}},
		{name: "duplicates", detail: "duplicate ids are removed", ids: []uint64{1, 0, 1}, len: 2, maxFaulty: 0, quorum: 2, leaders: []uint64{0, 1}},
		{name: "identical", detail: "identical ids collapse to one validator", ids: make([]uint64, 20), len: 1, maxFaulty: 0, quorum: 1, leaders: []uint64{0}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			set, err := NewValidatorSet(test.ids)
			require.NoError(t, err)
			require.Equal(t, test.len, set.Len())
			require.Equal(t, test.maxFaulty, set.MaxFaulty())
			require.Equal(t, test.quorum, set.Quorum())
			for epoch, leader := range test.leaders {
				require.Equal(t, leader, set.Leader(uint64(epoch)))
			}
			for _, id := range test.ids {
				require.True(t, set.Contains(id))
			}
			require.False(t, set.Contains(99))
		})
	}
	_, err := NewValidatorSet[uint64](nil)
	require.Error(t, err)
}

func TestQuorumSizes(t *testing.T) {
	for n, expected := range map[int]int{1: 1, 2: 2, 3: 3, 4: 3, 7: 5, 10: 7, 20: 14} {
		ids := make([]uint64, n)
		for i := range ids {
			ids[i] = uint64(i)
		}
		set, err := NewValidatorSet(ids)
		require.NoError(t, err)
		require.Equal(t, expected, set.Quorum(), "n=%d", n)
	}
}
