// competition-system/brackets/spot.go
package brackets

import (
	"errors"
	"fmt"
)

// The bracket is a flat, 1-based array of match spots with no stored
// parent/child pointers. Round 0 holds spots 1..size/2, each following
// round half as many, numbered continuing where the previous round left
// off. The spot-to-destination mapping is recomputed arithmetically on
// every call; it must stay pure, because every existing bracket depends
// on the numbering never changing.

const (
	MinBracketSize = 4
	MaxBracketSize = 256
)

var ErrInvalidBracketSize = errors.New("bracket size must be a power of two between 4 and 256")

// ValidSize reports whether size is a supported bracket size
// (4, 8, 16, ... 256).
func ValidSize(size int) bool {
	if size < MinBracketSize || size > MaxBracketSize {
		return false
	}
	return size&(size-1) == 0
}

// SpotCount returns the total number of match spots in a bracket of the
// given size (size-1 for single elimination).
func SpotCount(size int) int {
	return size - 1
}

// Rounds returns the number of rounds in a bracket of the given size.
func Rounds(size int) int {
	n := 0
	for s := size; s > 1; s /= 2 {
		n++
	}
	return n
}

// RoundOf returns the 0-based round a spot belongs to.
func RoundOf(size, spot int) (int, error) {
	if !ValidSize(size) {
		return 0, ErrInvalidBracketSize
	}
	if spot < 1 || spot > SpotCount(size) {
		return 0, fmt.Errorf("spot %d out of range for bracket size %d", spot, size)
	}
	round := 0
	allocated := 0
	for roundSpots := size / 2; ; roundSpots /= 2 {
		if spot <= allocated+roundSpots {
			return round, nil
		}
		allocated += roundSpots
		round++
	}
}

// Destination returns the next-round spot the winner of the given spot
// advances to, and the slot (1 or 2) it occupies there. Odd spots feed
// slot one of their destination, even spots slot two. The final spot
// has no destination: dest is 0.
func Destination(size, spot int) (dest int, slot int, err error) {
	if !ValidSize(size) {
		return 0, 0, ErrInvalidBracketSize
	}
	if spot < 1 || spot > SpotCount(size) {
		return 0, 0, fmt.Errorf("spot %d out of range for bracket size %d", spot, size)
	}
	if spot == SpotCount(size) {
		return 0, 0, nil // final round, nowhere further to go
	}

	allocated := 0
	for roundSpots := size / 2; ; roundSpots /= 2 {
		if spot <= allocated+roundSpots {
			local := spot - allocated
			dest = allocated + roundSpots + (local+1)/2
			break
		}
		allocated += roundSpots
	}

	slot = 2
	if spot%2 == 1 {
		slot = 1
	}
	return dest, slot, nil
}
