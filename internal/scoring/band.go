// Package scoring converts raw objective scores and oracle rubrics into
// band scores, and folds the four section bands into the composite.
package scoring

import (
	"fmt"
	"math"

	"github.com/ielts-sim/exam-service/internal/models"
)

// ObjectiveTotal is the fixed question count the band table is defined
// over. Listening and reading both use the conventional 40-question scale.
const ObjectiveTotal = 40

// bandTable maps the minimum raw correct count (out of 40) to a band.
// Brackets are closed-open over raw counts and strictly descending.
var bandTable = []struct {
	minCorrect int
	band       float64
}{
	{39, 9.0},
	{37, 8.5},
	{35, 8.0},
	{33, 7.5},
	{30, 7.0},
	{27, 6.5},
	{23, 6.0},
	{20, 5.5},
	{16, 5.0},
	{13, 4.5},
	{10, 4.0},
	{8, 3.5},
	{6, 3.0},
	{4, 2.5},
	{3, 2.0},
	{2, 1.5},
	{1, 1.0},
}

// RawToBand converts a raw correct-answer count into a band score.
// The mapping is monotonically non-decreasing in correct; zero correct
// yields band 0 and a full score yields 9.0. Totals other than the
// standard 40 are projected onto the 40-question scale first.
func RawToBand(correct, total int) (float64, error) {
	if total <= 0 {
		return 0, fmt.Errorf("invalid raw total %d", total)
	}
	if correct < 0 || correct > total {
		return 0, fmt.Errorf("raw score %d out of range [0,%d]", correct, total)
	}
	scaled := correct
	if total != ObjectiveTotal {
		scaled = int(math.Round(float64(correct) / float64(total) * ObjectiveTotal))
	}
	for _, row := range bandTable {
		if scaled >= row.minCorrect {
			return row.band, nil
		}
	}
	return 0, nil
}

// Composite averages the four section bands and rounds half-up to the
// nearest 0.5 increment. Every section must be present; a missing
// section is a hard error, never a silent zero.
func Composite(bands map[models.Section]float64) (float64, error) {
	sum := 0.0
	for _, section := range models.SectionOrder {
		band, ok := bands[section]
		if !ok {
			return 0, fmt.Errorf("missing band for section %q", section)
		}
		if !IsValidBand(band) {
			return 0, fmt.Errorf("invalid band %.2f for section %q", band, section)
		}
		sum += band
	}
	mean := sum / float64(len(models.SectionOrder))
	return RoundToHalf(mean), nil
}

// RoundToHalf rounds to the nearest 0.5, with .25 and .75 remainders
// rounding up.
func RoundToHalf(v float64) float64 {
	return math.Floor(v*2+0.5) / 2
}

// IsValidBand reports whether v lies in the 0-9 range on a 0.5 step.
func IsValidBand(v float64) bool {
	if v < 0 || v > 9 {
		return false
	}
	doubled := v * 2
	return doubled == math.Trunc(doubled)
}
