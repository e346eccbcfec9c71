package oracle

import (
	"strings"
	"testing"

	"github.com/ielts-sim/exam-service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRubric_WellFormed(t *testing.T) {
	text := strings.Join([]string{
		"task_achievement: 6.5",
		"coherence_cohesion: 6.0",
		"lexical_resource: 7.0",
		"grammatical_range: 6.5",
		"overall: 6.5",
		"strengths: Clear position with relevant examples.",
		"improvements: Paragraph transitions could be smoother.",
	}, "\n")

	result, err := parseRubric(text, WritingCriteria)
	require.NoError(t, err)
	assert.Equal(t, 6.5, result.Criteria["task_achievement"])
	assert.Equal(t, 7.0, result.Criteria["lexical_resource"])
	assert.Equal(t, 6.5, result.OverallBand)
	assert.Equal(t, "Clear position with relevant examples.", result.Strengths)
	assert.NotEmpty(t, result.Improvements)
}

func TestParseRubric_ToleratesDecorationAndCommentary(t *testing.T) {
	text := strings.Join([]string{
		"- fluency_coherence: 7.0 (natural pace)",
		"* lexical_resource: 6.5",
		"grammatical_range: 6.0",
		"pronunciation: 7.5",
		"overall: 7.0",
	}, "\n")

	result, err := parseRubric(text, SpeakingCriteria)
	require.NoError(t, err)
	assert.Equal(t, 7.0, result.Criteria["fluency_coherence"])
	assert.Equal(t, 7.5, result.Criteria["pronunciation"])
}

func TestParseRubric_MissingCriterionFails(t *testing.T) {
	text := "task_achievement: 6.5\noverall: 6.5"
	_, err := parseRubric(text, WritingCriteria)
	assert.Error(t, err)
}

func TestParseRubric_NonNumericScoreFails(t *testing.T) {
	text := strings.Join([]string{
		"task_achievement: strong",
		"coherence_cohesion: 6.0",
		"lexical_resource: 7.0",
		"grammatical_range: 6.5",
		"overall: 6.5",
	}, "\n")
	_, err := parseRubric(text, WritingCriteria)
	assert.Error(t, err)
}

func TestParseScore_ClampsToBandScale(t *testing.T) {
	got, err := parseScore("9.7")
	require.NoError(t, err)
	assert.Equal(t, 9.0, got)

	got, err = parseScore("6.3")
	require.NoError(t, err)
	assert.Equal(t, 6.5, got, "scores snap to the nearest half band")

	got, err = parseScore("-1")
	require.NoError(t, err)
	assert.Equal(t, 0.0, got)
}

func TestCriteriaFor(t *testing.T) {
	assert.Equal(t, WritingCriteria, CriteriaFor(models.SectionWriting))
	assert.Equal(t, SpeakingCriteria, CriteriaFor(models.SectionSpeaking))
}
