package calibration

// One-rep-max estimation from a submaximal set. Both classic formulas are
// computed and averaged; they diverge noticeably above ~10 reps, where
// neither is reliable anyway.

// Brzycki estimates 1RM as w * 36 / (37 - reps).
func Brzycki(weightKg float64, reps int) float64 {
	if reps <= 0 || reps >= 37 {
		return 0
	}
	return weightKg * 36.0 / (37.0 - float64(reps))
}

// Epley estimates 1RM as w * (1 + reps/30).
func Epley(weightKg float64, reps int) float64 {
	if reps <= 0 {
		return 0
	}
	return weightKg * (1.0 + float64(reps)/30.0)
}

// EstimateOneRepMax averages the Brzycki and Epley estimates. A single rep
// is its own 1RM.
func EstimateOneRepMax(weightKg float64, reps int) float64 {
	if reps == 1 {
		return weightKg
	}
	b, e := Brzycki(weightKg, reps), Epley(weightKg, reps)
	if b == 0 || e == 0 {
		return 0
	}
	return (b + e) / 2.0
}
