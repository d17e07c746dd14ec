package strain

// Modifier maps a strain value to the step multiplier applied in the
// intensity formula. Exactly one band applies for every value:
//
//	strain <= 85        → 1.00
//	85 < strain <= 95   → 0.95
//	strain > 95         → 0.85
func Modifier(strain float64) float64 {
	switch {
	case strain <= 85:
		return 1.0
	case strain <= 95:
		return 0.95
	default:
		return 0.85
	}
}
