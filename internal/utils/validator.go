package utils

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/ielts-sim/exam-service/internal/errors"
	"github.com/ielts-sim/exam-service/internal/models"
	"github.com/ielts-sim/exam-service/internal/scoring"
)

// Validator wraps the struct validator with the exam-domain custom rules.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates the shared validator instance with custom rules
// registered once.
func NewValidator() *Validator {
	v := validator.New()

	v.RegisterValidation("question_type", validateQuestionType)
	v.RegisterValidation("section", validateSection)
	v.RegisterValidation("band", validateBand)

	// Report field names from json tags for readable error messages.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Validator{validate: v}
}

// Validate runs struct-tag validation and converts failures into the
// shared ValidationErrors type.
func (v *Validator) Validate(s interface{}) error {
	if err := v.validate.Struct(s); err != nil {
		if ve := apperrors.ToValidationErrors(err); len(ve) > 0 {
			return ve
		}
		return err
	}
	return nil
}

func validateQuestionType(fl validator.FieldLevel) bool {
	switch models.QuestionType(fl.Field().String()) {
	case models.SingleChoice, models.MultiChoiceSet, models.FillBlank,
		models.TrueFalseNotGiven, models.Matching, models.FormField:
		return true
	}
	return false
}

func validateSection(fl validator.FieldLevel) bool {
	return models.Section(fl.Field().String()).IsValid()
}

func validateBand(fl validator.FieldLevel) bool {
	return scoring.IsValidBand(fl.Field().Float())
}
