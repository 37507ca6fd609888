package analytics

import "math"

// percent returns part/whole as a percentage, or 0 when whole is 0.
func percent(part, whole int) float64 {
	if whole <= 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}

// rate is percent rounded to one decimal place.
func rate(part, whole int) float64 {
	return math.Round(percent(part, whole)*10) / 10
}

// wholePercent is percent rounded to a whole number.
func wholePercent(part, whole int) int {
	return int(math.Round(percent(part, whole)))
}
