package services

import (
	"errors"
	"fmt"

	apperrors "github.com/ielts-sim/exam-service/internal/errors"
	"github.com/ielts-sim/exam-service/internal/models"
	"github.com/ielts-sim/exam-service/internal/session"
)

// ===== COMMON SERVICE ERRORS =====

var (
	// Generic errors
	ErrNotFound         = errors.New("resource not found")
	ErrValidationFailed = errors.New("validation failed")
	ErrInternalError    = errors.New("internal server error")
	ErrBadRequest       = errors.New("bad request")
	ErrConflict         = errors.New("resource conflict")

	// Session specific errors
	ErrSessionNotFound    = errors.New("exam session not found")
	ErrMockTestNotFound   = errors.New("mock test not found")
	ErrSectionNotInTest   = errors.New("section is not part of this mock test")
	ErrSectionNotEntered  = errors.New("section has not been entered")
	ErrSectionTimeExpired = errors.New("section time has expired")
	ErrAnswerSheetEmpty   = errors.New("answer sheet contains no answers")

	// Media errors
	ErrAnswersLocked    = errors.New("answers are locked until audio playback finishes")
	ErrNoMediaInSection = errors.New("current section has no audio")

	// Evaluation errors
	ErrEvaluationUnavailable = errors.New("evaluation service unavailable, submission kept for retry")
)

// Section ordering and lifecycle errors surface the state machine's
// sentinels so callers can errors.Is against a single set.
var (
	ErrSectionOutOfOrder      = session.ErrSectionOutOfOrder
	ErrSectionAlreadyRecorded = session.ErrSectionAlreadyRecorded
	ErrSessionCompleted       = session.ErrSessionCompleted
	ErrSessionNotComplete     = session.ErrSessionNotComplete
	ErrSectionNotRecorded     = session.ErrSectionNotRecorded
)

// ===== CUSTOM ERROR TYPES =====

// Use shared validation errors from errors package
type ValidationError = apperrors.ValidationError
type ValidationErrors = apperrors.ValidationErrors

// OutOfOrderError carries the section the candidate must be redirected
// to when they request one out of sequence.
type OutOfOrderError struct {
	Requested models.Section `json:"requested"`
	Expected  models.Section `json:"expected"`
}

func (e *OutOfOrderError) Error() string {
	return fmt.Sprintf("section %s requested out of order, current section is %s", e.Requested, e.Expected)
}

func (e *OutOfOrderError) Unwrap() error {
	return ErrSectionOutOfOrder
}

type BusinessRuleError struct {
	Rule    string                 `json:"rule"`
	Message string                 `json:"message"`
	Context map[string]interface{} `json:"context,omitempty"`
}

func (bre *BusinessRuleError) Error() string {
	return fmt.Sprintf("business rule violation (%s): %s", bre.Rule, bre.Message)
}

// ===== ERROR HELPERS =====

// NewValidationError creates a new validation error using the shared type
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return apperrors.NewValidationError(field, message, value)
}

func NewBusinessRuleError(rule, message string, context map[string]interface{}) *BusinessRuleError {
	return &BusinessRuleError{
		Rule:    rule,
		Message: message,
		Context: context,
	}
}

// IsNotFound checks if error represents a "not found" condition
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrMockTestNotFound)
}

// IsValidation checks if error represents a validation failure
func IsValidation(err error) bool {
	if errors.Is(err, ErrValidationFailed) || errors.Is(err, ErrBadRequest) {
		return true
	}
	var ve apperrors.ValidationErrors
	return errors.As(err, &ve)
}

// IsOutOfOrder checks if error represents an out-of-sequence section request
func IsOutOfOrder(err error) bool {
	return errors.Is(err, ErrSectionOutOfOrder)
}

// IsConflict checks if error represents a resource conflict
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrSectionAlreadyRecorded) ||
		errors.Is(err, ErrSessionCompleted) ||
		errors.Is(err, ErrSessionNotComplete)
}

// IsEvaluationUnavailable checks if error means the oracle could not be reached
func IsEvaluationUnavailable(err error) bool {
	return errors.Is(err, ErrEvaluationUnavailable)
}

// IsBusinessRule checks if error represents a business rule violation
func IsBusinessRule(err error) bool {
	var bre *BusinessRuleError
	return errors.As(err, &bre)
}
