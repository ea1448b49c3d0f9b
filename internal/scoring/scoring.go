// Package scoring computes points from correctness, answer overlap and how
// fast the answer arrived. Everything here is pure and deterministic.
package scoring

// MaxSpeedMultiplier is the bonus applied to an instant correct answer. The
// multiplier decays linearly to 1.0 at the time limit.
const MaxSpeedMultiplier = 1.5

// SpeedFactor returns the multiplier for an answer submitted timeTakenMs into
// a question with the given limit. It is monotonically non-increasing in
// timeTaken, never drops below 1.0 and never produces NaN.
func SpeedFactor(timeLimitMs, timeTakenMs int64) float64 {
	if timeLimitMs <= 0 {
		return 1.0
	}
	if timeTakenMs < 0 {
		timeTakenMs = 0
	}
	if timeTakenMs >= timeLimitMs {
		return 1.0
	}
	remaining := float64(timeLimitMs-timeTakenMs) / float64(timeLimitMs)
	return 1.0 + (MaxSpeedMultiplier-1.0)*remaining
}

// SingleSelect scores a single-choice answer. Incorrect answers score zero;
// correct answers earn at least basePoints and at most
// basePoints*MaxSpeedMultiplier.
func SingleSelect(basePoints int, timeLimitMs, timeTakenMs int64, correct bool) int {
	if !correct || basePoints <= 0 {
		return 0
	}
	return int(float64(basePoints) * SpeedFactor(timeLimitMs, timeTakenMs))
}

// MultiSelect scores a multi-choice answer by accuracy ratio
// (correctChosen - wrongChosen) / totalCorrect, clamped to [0, 1], then
// applies the speed factor. A question without correct answers scores zero.
func MultiSelect(basePoints int, timeLimitMs, timeTakenMs int64, chosen, correct []string) int {
	if basePoints <= 0 || len(correct) == 0 {
		return 0
	}
	correctSet := toSet(correct)
	hits, misses := 0, 0
	for id := range toSet(chosen) {
		if _, ok := correctSet[id]; ok {
			hits++
		} else {
			misses++
		}
	}
	ratio := float64(hits-misses) / float64(len(correctSet))
	if ratio <= 0 {
		return 0
	}
	if ratio > 1 {
		ratio = 1
	}
	return int(float64(basePoints) * ratio * SpeedFactor(timeLimitMs, timeTakenMs))
}

// FullyCorrect reports whether chosen matches the correct set exactly, with
// nothing extra and nothing missing. Duplicate ids collapse.
func FullyCorrect(chosen, correct []string) bool {
	chosenSet := toSet(chosen)
	correctSet := toSet(correct)
	if len(chosenSet) != len(correctSet) {
		return false
	}
	for id := range chosenSet {
		if _, ok := correctSet[id]; !ok {
			return false
		}
	}
	return true
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
