package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/ielts-sim/exam-service/internal/errors"
	"github.com/ielts-sim/exam-service/internal/media"
	"github.com/ielts-sim/exam-service/internal/services"
	"github.com/ielts-sim/exam-service/internal/utils"
)

// ===== COMMON RESPONSE STRUCTURES =====

// ErrorResponse represents an error response
type ErrorResponse struct {
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// SuccessResponse represents a success response
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// SectionRedirect tells the client which section the candidate must be
// taken to after an out-of-sequence request.
type SectionRedirect struct {
	Requested  string `json:"requested"`
	RedirectTo string `json:"redirect_to"`
}

// ===== BASE HANDLER STRUCT =====

// BaseHandler provides common logging functionality for all handlers
type BaseHandler struct {
	logger utils.Logger
}

// NewBaseHandler creates a new base handler with logging capability
func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{
		logger: logger,
	}
}

// LogError logs error details with context information
func (h *BaseHandler) LogError(c *gin.Context, err error, message string, additionalFields ...interface{}) {
	fields := []interface{}{
		"request_id", c.GetHeader("X-Request-ID"),
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
	}
	fields = append(fields, additionalFields...)
	h.logger.LogError(err, message, fields...)
}

// RespondWithError sends a consistent error response and logs it
func (h *BaseHandler) RespondWithError(c *gin.Context, statusCode int, message string, err error, details ...interface{}) {
	errorResp := ErrorResponse{
		Message: message,
	}
	if len(details) > 0 {
		errorResp.Details = details[0]
	}
	if err != nil {
		h.LogError(c, err, message, "status_code", statusCode)
	}
	c.JSON(statusCode, errorResp)
}

// RespondWithSuccess sends a consistent success response
func (h *BaseHandler) RespondWithSuccess(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, SuccessResponse{
		Message: message,
		Data:    data,
	})
}

// HandleServiceError maps service errors onto HTTP status codes with a
// stable machine-readable code.
func (h *BaseHandler) HandleServiceError(c *gin.Context, err error) {
	var validationErrs apperrors.ValidationErrors
	if errors.As(err, &validationErrs) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "validation failed",
			Code:    "validation_failed",
			Details: validationErrs,
		})
		return
	}

	var outOfOrder *services.OutOfOrderError
	if errors.As(err, &outOfOrder) {
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: outOfOrder.Error(),
			Code:    "section_out_of_order",
			Details: SectionRedirect{
				Requested:  string(outOfOrder.Requested),
				RedirectTo: string(outOfOrder.Expected),
			},
		})
		return
	}

	switch {
	case services.IsNotFound(err):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: err.Error(), Code: "not_found"})
	case errors.Is(err, services.ErrSessionCompleted):
		// A completed session has nothing left to enter or submit; point
		// the client at the results view.
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: err.Error(),
			Code:    "session_completed",
			Details: gin.H{"redirect_to": "result"},
		})
	case errors.Is(err, services.ErrSessionNotComplete):
		c.JSON(http.StatusConflict, ErrorResponse{Message: err.Error(), Code: "session_not_complete"})
	case errors.Is(err, services.ErrAnswersLocked), errors.Is(err, media.ErrPlaybackLocked):
		c.JSON(http.StatusLocked, ErrorResponse{Message: err.Error(), Code: "playback_locked"})
	case errors.Is(err, media.ErrNotPlaying):
		c.JSON(http.StatusConflict, ErrorResponse{Message: err.Error(), Code: "media_not_playing"})
	case errors.Is(err, services.ErrSectionTimeExpired):
		c.JSON(http.StatusGone, ErrorResponse{Message: err.Error(), Code: "section_time_expired"})
	case services.IsEvaluationUnavailable(err):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Message: err.Error(), Code: "evaluation_unavailable"})
	case services.IsConflict(err):
		c.JSON(http.StatusConflict, ErrorResponse{Message: err.Error(), Code: "conflict"})
	case services.IsValidation(err), services.IsBusinessRule(err),
		errors.Is(err, services.ErrSectionNotEntered),
		errors.Is(err, services.ErrAnswerSheetEmpty):
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: err.Error(), Code: "bad_request"})
	default:
		h.LogError(c, err, "unhandled service error")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "internal server error", Code: "internal_error"})
	}
}
