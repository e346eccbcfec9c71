package scoring

import (
	"testing"

	"github.com/ielts-sim/exam-service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawToBand_PublishedBrackets(t *testing.T) {
	tests := []struct {
		correct int
		want    float64
	}{
		{0, 0},
		{1, 1.0},
		{9, 3.5},
		{22, 5.5},
		{23, 6.0},
		{26, 6.0},
		{27, 6.5},
		{30, 7.0},
		{38, 8.5},
		{39, 9.0},
		{40, 9.0},
	}
	for _, tt := range tests {
		got, err := RawToBand(tt.correct, 40)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "correct=%d", tt.correct)
	}
}

func TestRawToBand_MonotoneAndInBandSet(t *testing.T) {
	prev := -1.0
	for correct := 0; correct <= 40; correct++ {
		band, err := RawToBand(correct, 40)
		require.NoError(t, err)
		assert.True(t, IsValidBand(band), "correct=%d band=%v", correct, band)
		assert.GreaterOrEqual(t, band, prev, "band must not decrease at correct=%d", correct)
		prev = band
	}
}

func TestRawToBand_OutOfRange(t *testing.T) {
	_, err := RawToBand(-1, 40)
	assert.Error(t, err)
	_, err = RawToBand(41, 40)
	assert.Error(t, err)
	_, err = RawToBand(5, 0)
	assert.Error(t, err)
}

func TestComposite_RoundHalfUp(t *testing.T) {
	bands := map[models.Section]float64{
		models.SectionListening: 6.5,
		models.SectionReading:   7.0,
		models.SectionWriting:   6.0,
		models.SectionSpeaking:  7.5,
	}
	// Mean 6.75 rounds up to 7.0.
	got, err := Composite(bands)
	require.NoError(t, err)
	assert.Equal(t, 7.0, got)
}

func TestComposite_QuarterRemainderRoundsUp(t *testing.T) {
	bands := map[models.Section]float64{
		models.SectionListening: 6.0,
		models.SectionReading:   6.0,
		models.SectionWriting:   6.0,
		models.SectionSpeaking:  7.0,
	}
	// Mean 6.25 rounds up to 6.5.
	got, err := Composite(bands)
	require.NoError(t, err)
	assert.Equal(t, 6.5, got)
}

func TestComposite_MissingSectionIsHardError(t *testing.T) {
	bands := map[models.Section]float64{
		models.SectionListening: 6.0,
		models.SectionReading:   6.0,
		models.SectionWriting:   6.0,
	}
	_, err := Composite(bands)
	assert.Error(t, err)
}

func TestComposite_InvalidBandRejected(t *testing.T) {
	bands := map[models.Section]float64{
		models.SectionListening: 6.3,
		models.SectionReading:   6.0,
		models.SectionWriting:   6.0,
		models.SectionSpeaking:  6.0,
	}
	_, err := Composite(bands)
	assert.Error(t, err)
}
