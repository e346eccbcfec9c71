// Package matcher decides whether a submitted answer satisfies a
// question's accepted answer(s). Evaluation dispatches on the explicit
// question-type discriminator, never on value shape, and absorbs
// malformed input: a bad submission is incorrect, never an error.
package matcher

import (
	"strconv"
	"strings"

	"github.com/ielts-sim/exam-service/internal/models"
)

// Strategy evaluates one question type.
type Strategy interface {
	Match(submitted models.SubmittedAnswer, key models.AnswerKey) bool
}

// Engine routes by question type to the matching Strategy.
type Engine struct {
	strategies map[models.QuestionType]Strategy
}

// NewEngine installs the built-in strategies for the closed question-type set.
func NewEngine() *Engine {
	return &Engine{
		strategies: map[models.QuestionType]Strategy{
			models.SingleChoice:      indexStrategy{},
			models.MultiChoiceSet:    setStrategy{},
			models.FillBlank:         textStrategy{},
			models.TrueFalseNotGiven: textStrategy{},
			models.Matching:          orderedStrategy{},
			models.FormField:         textStrategy{},
		},
	}
}

// IsCorrect reports whether submitted satisfies key for the given type.
// Unknown types and empty submissions are incorrect.
func (e *Engine) IsCorrect(qt models.QuestionType, submitted models.SubmittedAnswer, key models.AnswerKey) bool {
	s, ok := e.strategies[qt]
	if !ok {
		return false
	}
	if submitted.IsEmpty() {
		return false
	}
	return s.Match(submitted, key)
}

// indexStrategy compares choice answers as parsed option indices.
// A non-numeric submission is incorrect.
type indexStrategy struct{}

func (indexStrategy) Match(submitted models.SubmittedAnswer, key models.AnswerKey) bool {
	got, err := strconv.Atoi(strings.TrimSpace(submitted.Text))
	if err != nil {
		return false
	}
	want, err := strconv.Atoi(strings.TrimSpace(key.Text))
	if err != nil {
		return false
	}
	return got == want
}

// textStrategy compares trimmed, casefolded text. The key may carry
// '/'-delimited alternatives; any alternative accepts the submission.
// Keys authored as a list fall back to positional matching so a
// multi-slot fill-blank key still evaluates.
type textStrategy struct{}

func (textStrategy) Match(submitted models.SubmittedAnswer, key models.AnswerKey) bool {
	if len(key.List) > 0 {
		return matchOrdered(submitted.List, key.List)
	}
	return matchesAny(submitted.Text, key.Text)
}

// orderedStrategy requires every position to match its expected value.
// A length mismatch is incorrect.
type orderedStrategy struct{}

func (orderedStrategy) Match(submitted models.SubmittedAnswer, key models.AnswerKey) bool {
	return matchOrdered(submitted.List, key.List)
}

func matchOrdered(got, want []string) bool {
	if len(want) == 0 || len(got) != len(want) {
		return false
	}
	for i := range want {
		if !matchesAny(got[i], want[i]) {
			return false
		}
	}
	return true
}

// setStrategy builds normalized sets from both sides; correct iff the
// sets have equal cardinality and every expected value was submitted.
type setStrategy struct{}

func (setStrategy) Match(submitted models.SubmittedAnswer, key models.AnswerKey) bool {
	want := key.List
	if len(want) == 0 {
		return false
	}
	got := make(map[string]struct{}, len(submitted.List))
	for _, v := range submitted.List {
		got[normalize(v)] = struct{}{}
	}
	expected := make(map[string]struct{}, len(want))
	for _, v := range want {
		expected[normalize(v)] = struct{}{}
	}
	if len(got) != len(expected) {
		return false
	}
	for v := range expected {
		if _, ok := got[v]; !ok {
			return false
		}
	}
	return true
}

// matchesAny checks a submission against a key that may contain
// '/'-delimited alternatives.
func matchesAny(submitted, key string) bool {
	got := normalize(submitted)
	if got == "" {
		return false
	}
	for _, alt := range strings.Split(key, "/") {
		if got == normalize(alt) {
			return true
		}
	}
	return false
}
