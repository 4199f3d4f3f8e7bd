package pipeline

// DecayPriority computes the new priority score after a failed cycle. The
// decay steepens with the consecutive-failure streak and the score never
// drops below zero. Successful cycles do not touch the score; they only
// reset the streak.
func DecayPriority(score, errorStreak, decayFactor int) int {
	next := score - decayFactor*errorStreak
	if next < 0 {
		return 0
	}
	return next
}
