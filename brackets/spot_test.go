package brackets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidSize(t *testing.T) {
	for _, size := range []int{4, 8, 16, 32, 64, 128, 256} {
		assert.True(t, ValidSize(size), "size %d should be valid", size)
	}
	for _, size := range []int{-4, 0, 1, 2, 3, 5, 6, 12, 100, 257, 512} {
		assert.False(t, ValidSize(size), "size %d should be invalid", size)
	}
}

func TestSpotCount(t *testing.T) {
	assert.Equal(t, 3, SpotCount(4))
	assert.Equal(t, 7, SpotCount(8))
	assert.Equal(t, 255, SpotCount(256))
}

func TestRounds(t *testing.T) {
	assert.Equal(t, 2, Rounds(4))
	assert.Equal(t, 3, Rounds(8))
	assert.Equal(t, 8, Rounds(256))
}

func TestRoundOf(t *testing.T) {
	// Size 8: spots 1-4 round 0, 5-6 round 1, 7 round 2.
	for spot := 1; spot <= 4; spot++ {
		round, err := RoundOf(8, spot)
		require.NoError(t, err)
		assert.Equal(t, 0, round, "spot %d", spot)
	}
	for spot := 5; spot <= 6; spot++ {
		round, err := RoundOf(8, spot)
		require.NoError(t, err)
		assert.Equal(t, 1, round, "spot %d", spot)
	}
	round, err := RoundOf(8, 7)
	require.NoError(t, err)
	assert.Equal(t, 2, round)

	_, err = RoundOf(8, 0)
	assert.Error(t, err)
	_, err = RoundOf(8, 8)
	assert.Error(t, err)
	_, err = RoundOf(6, 1)
	assert.ErrorIs(t, err, ErrInvalidBracketSize)
}

func TestDestinationFirstRound(t *testing.T) {
	// Size 8: spots 1,2 feed spot 5; spots 3,4 feed spot 6. Odd spots
	// take slot one, even spots slot two.
	cases := []struct {
		spot, dest, slot int
	}{
		{1, 5, 1},
		{2, 5, 2},
		{3, 6, 1},
		{4, 6, 2},
		{5, 7, 1},
		{6, 7, 2},
	}
	for _, tc := range cases {
		dest, slot, err := Destination(8, tc.spot)
		require.NoError(t, err, "spot %d", tc.spot)
		assert.Equal(t, tc.dest, dest, "spot %d destination", tc.spot)
		assert.Equal(t, tc.slot, slot, "spot %d slot", tc.spot)
	}
}

func TestDestinationFinalHasNone(t *testing.T) {
	for _, size := range []int{4, 8, 16, 32, 64, 128, 256} {
		dest, slot, err := Destination(size, SpotCount(size))
		require.NoError(t, err, "size %d", size)
		assert.Zero(t, dest, "size %d final spot", size)
		assert.Zero(t, slot, "size %d final spot", size)
	}
}

// TestDestinationTreeShape checks that the arithmetic produces a valid
// single-elimination tree for every supported size: every non-final
// spot feeds a spot exactly one round later, and every spot past the
// first round receives exactly one slot-one feeder and one slot-two
// feeder.
func TestDestinationTreeShape(t *testing.T) {
	for _, size := range []int{4, 8, 16, 32, 64, 128, 256} {
		type feeder struct{ one, two int }
		feeders := make(map[int]*feeder)

		for spot := 1; spot < SpotCount(size); spot++ {
			dest, slot, err := Destination(size, spot)
			require.NoError(t, err, "size %d spot %d", size, spot)

			fromRound, err := RoundOf(size, spot)
			require.NoError(t, err)
			destRound, err := RoundOf(size, dest)
			require.NoError(t, err)
			assert.Equal(t, fromRound+1, destRound, "size %d spot %d advances one round", size, spot)

			if feeders[dest] == nil {
				feeders[dest] = &feeder{}
			}
			switch slot {
			case 1:
				feeders[dest].one++
			case 2:
				feeders[dest].two++
			default:
				t.Fatalf("size %d spot %d: slot %d out of range", size, spot, slot)
			}
		}

		// Every spot beyond the first round is fed exactly twice.
		for spot := size/2 + 1; spot <= SpotCount(size); spot++ {
			f := feeders[spot]
			require.NotNil(t, f, "size %d spot %d has no feeders", size, spot)
			assert.Equal(t, 1, f.one, "size %d spot %d slot-one feeders", size, spot)
			assert.Equal(t, 1, f.two, "size %d spot %d slot-two feeders", size, spot)
		}
		assert.Len(t, feeders, SpotCount(size)-size/2)
	}
}

func TestDestinationRejectsBadInput(t *testing.T) {
	_, _, err := Destination(6, 1)
	assert.ErrorIs(t, err, ErrInvalidBracketSize)
	_, _, err = Destination(3, 1)
	assert.ErrorIs(t, err, ErrInvalidBracketSize)
	_, _, err = Destination(8, 0)
	assert.Error(t, err)
	_, _, err = Destination(8, 8)
	assert.Error(t, err)
	_, _, err = Destination(8, -1)
	assert.Error(t, err)
}
