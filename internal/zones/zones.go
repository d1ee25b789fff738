// Package zones provides shared constants and classification for
// heart-rate training zones.
package zones

// Zone is a named heart-rate training zone.
type Zone string

// Zone constants, ordered from lightest to hardest effort.
const (
	Rest      Zone = "rest"
	VeryLight Zone = "very_light"
	Light     Zone = "light"
	Moderate  Zone = "moderate"
	Hard      Zone = "hard"
	Maximum   Zone = "maximum"
)

// Thresholds are the lower-bound percentages of maximum heart rate for
// each zone above Rest: VeryLight starts at 50%, Light at 60%,
// Moderate at 70%, Hard at 80% and Maximum at 90%.
var Thresholds = []float64{50, 60, 70, 80, 90}

// ValidZones contains all zone values, lightest first.
var ValidZones = []Zone{Rest, VeryLight, Light, Moderate, Hard, Maximum}

// IsValid checks if the given zone is in the list of valid zones.
func IsValid(z Zone) bool {
	for _, valid := range ValidZones {
		if z == valid {
			return true
		}
	}
	return false
}

// MaxHRForAge returns the conventional age-predicted maximum heart
// rate, 220 minus age. Ages outside a sane range fall back to the
// adult default of 190 (age 30).
func MaxHRForAge(age int) int {
	if age <= 0 || age > 120 {
		return 190
	}
	return 220 - age
}

// Classify maps a heart rate to its training zone given a maximum
// heart rate. A non-positive maxHR classifies everything as Rest.
func Classify(heartRate, maxHR int) Zone {
	if maxHR <= 0 || heartRate <= 0 {
		return Rest
	}
	percentage := float64(heartRate) / float64(maxHR) * 100
	zone := Rest
	for i, threshold := range Thresholds {
		if percentage >= threshold {
			zone = ValidZones[i+1]
		}
	}
	return zone
}
