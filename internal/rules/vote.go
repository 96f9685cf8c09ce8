package rules

import "math"

// VoteQuorum returns the number of deletion votes required for the given
// audience size. The audience is the real count of users matching the
// visibility predicate, never a placeholder constant.
func VoteQuorum(audienceSize int, ratio float64) int {
	if audienceSize <= 0 {
		return 1
	}
	if ratio <= 0 || ratio > 1 {
		ratio = 0.3
	}
	q := int(math.Ceil(float64(audienceSize) * ratio))
	if q < 1 {
		q = 1
	}
	return q
}

// QuorumReached reports whether the accumulated votes delete the assignment.
func QuorumReached(votes, audienceSize int, ratio float64) bool {
	return votes >= VoteQuorum(audienceSize, ratio)
}
