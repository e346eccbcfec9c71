package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type QuestionType string

const (
	SingleChoice      QuestionType = "single_choice"
	MultiChoiceSet    QuestionType = "multi_choice_set"
	FillBlank         QuestionType = "fill_blank"
	TrueFalseNotGiven QuestionType = "true_false_not_given"
	Matching          QuestionType = "matching"
	FormField         QuestionType = "form_field"
)

// QuestionGroupKind discriminates the content payload of a question group.
// Rendering payloads differ per kind; the evaluation engine only dispatches
// on the per-question Type, never on payload shape.
type QuestionGroupKind string

const (
	GroupChoice      QuestionGroupKind = "choice"
	GroupFormFill    QuestionGroupKind = "form_fill"
	GroupStatement   QuestionGroupKind = "statement"
	GroupMatchPairs  QuestionGroupKind = "match_pairs"
	GroupWritingTask QuestionGroupKind = "writing_task"
	GroupSpeakingCue QuestionGroupKind = "speaking_cue"
)

// AnswerKey holds the acceptable answer(s) for a question.
// Exactly one of Text or List is set:
//   - Text: a single accepted string, optionally with '/'-delimited
//     alternatives ("near/beside/next to"), or the option index for
//     choice questions.
//   - List: multi-value answers; Ordered decides positional vs set matching.
type AnswerKey struct {
	Text    string   `json:"text,omitempty"`
	List    []string `json:"list,omitempty"`
	Ordered bool     `json:"ordered,omitempty"`
}

// MockTest is the authoring aggregate: one full four-section exam.
// Authored externally; read-only during a session.
type MockTest struct {
	ID          uint    `json:"id" gorm:"primaryKey"`
	Title       string  `json:"title" gorm:"not null;size:200;uniqueIndex"`
	Description *string `json:"description" gorm:"type:text"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	Sections []SectionDefinition `json:"sections,omitempty" gorm:"foreignKey:MockTestID"`
}

func (MockTest) TableName() string {
	return "mock_tests"
}

// SectionDefinition is the authored payload for one skill of a mock test.
type SectionDefinition struct {
	ID         uint    `json:"id" gorm:"primaryKey"`
	MockTestID uint    `json:"mock_test_id" gorm:"not null;index"`
	Section    Section `json:"section" gorm:"not null;index" validate:"required,section"`

	DurationSeconds int `json:"duration_seconds" gorm:"not null" validate:"required,min=60"`

	// Listening only: one-shot audio with its enforced pre-play warning.
	AudioURL       *string `json:"audio_url,omitempty" gorm:"size:500"`
	WarningSeconds int     `json:"warning_seconds" gorm:"default:5"`

	// Speaking only: per-part preparation window before the response timer.
	PreparationSeconds int `json:"preparation_seconds" gorm:"default:0"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	Groups []QuestionGroup `json:"groups,omitempty" gorm:"foreignKey:SectionDefinitionID"`
}

func (SectionDefinition) TableName() string {
	return "section_definitions"
}

// QuestionCount is the number of questions across all groups.
func (sd *SectionDefinition) QuestionCount() int {
	n := 0
	for _, g := range sd.Groups {
		n += len(g.Questions)
	}
	return n
}

// QuestionGroup bundles questions sharing an instruction and a content
// payload (passage, form layout, picture cue, task brief).
type QuestionGroup struct {
	ID                  uint              `json:"id" gorm:"primaryKey"`
	SectionDefinitionID uint              `json:"section_definition_id" gorm:"not null;index"`
	Kind                QuestionGroupKind `json:"kind" gorm:"not null"`
	Instruction         string            `json:"instruction" gorm:"type:text"`
	OrderInSection      int               `json:"order_in_section" gorm:"not null"`

	// Kind-specific rendering payload (reading passage, form rows,
	// match option pool, task prompt). Opaque to the core.
	Content datatypes.JSON `json:"content" gorm:"type:jsonb"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	Questions []Question `json:"questions,omitempty" gorm:"foreignKey:QuestionGroupID"`
}

func (QuestionGroup) TableName() string {
	return "question_groups"
}

// Question is one unit of assessment. Number is stable and unique within
// a mock test; every question carries exactly one type and at least one
// accepted answer.
type Question struct {
	ID              uint         `json:"id" gorm:"primaryKey"`
	QuestionGroupID uint         `json:"question_group_id" gorm:"not null;index"`
	Number          int          `json:"number" gorm:"not null"`
	Type            QuestionType `json:"type" gorm:"not null" validate:"required,question_type"`
	Prompt          *string      `json:"prompt,omitempty" gorm:"type:text"`

	// Choice types only: the rendered option texts, in display order.
	Options datatypes.JSON `json:"options,omitempty" gorm:"type:jsonb"`

	// Serialized AnswerKey.
	Accepted datatypes.JSON `json:"-" gorm:"type:jsonb;not null"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (Question) TableName() string {
	return "questions"
}

// Key decodes the stored accepted-answer payload.
func (q *Question) Key() (AnswerKey, error) {
	var key AnswerKey
	if err := json.Unmarshal(q.Accepted, &key); err != nil {
		return AnswerKey{}, fmt.Errorf("question %d has malformed answer key: %w", q.Number, err)
	}
	return key, nil
}
