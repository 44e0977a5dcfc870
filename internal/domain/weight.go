package domain

// WeightResult classifies a weight measurement against class limits.
type WeightResult string

const (
	WeightPass        WeightResult = "PASS"
	WeightUnderweight WeightResult = "UNDERWEIGHT"
	WeightOverweight  WeightResult = "OVERWEIGHT"
	WeightNoLimit     WeightResult = "NO_LIMIT"
)

// ClassifyWeight derives the pass/fail classification from a raw measurement
// and the class limits. It is a pure function so every writer derives the
// same result from the same measurement:
//
//	below min       -> UNDERWEIGHT
//	above max       -> OVERWEIGHT
//	within limits   -> PASS
//	no limit at all -> NO_LIMIT
func ClassifyWeight(measured float64, min, max *float64) WeightResult {
	if min == nil && max == nil {
		return WeightNoLimit
	}
	if min != nil && measured < *min {
		return WeightUnderweight
	}
	if max != nil && measured > *max {
		return WeightOverweight
	}
	return WeightPass
}
