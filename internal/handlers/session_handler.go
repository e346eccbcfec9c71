package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ielts-sim/exam-service/internal/media"
	"github.com/ielts-sim/exam-service/internal/models"
	"github.com/ielts-sim/exam-service/internal/repositories"
	"github.com/ielts-sim/exam-service/internal/services"
	"github.com/ielts-sim/exam-service/internal/utils"
)

// SessionHandler exposes the exam session lifecycle over HTTP.
type SessionHandler struct {
	BaseHandler
	service   services.ExamSessionService
	validator *utils.Validator
}

func NewSessionHandler(service services.ExamSessionService, validator *utils.Validator, logger utils.Logger) *SessionHandler {
	return &SessionHandler{
		BaseHandler: NewBaseHandler(logger),
		service:     service,
		validator:   validator,
	}
}

// CreateSession handles POST /sessions
func (h *SessionHandler) CreateSession(c *gin.Context) {
	var req services.StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "invalid request body", err)
		return
	}

	resp, err := h.service.Start(c.Request.Context(), &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusCreated, "session created", resp)
}

// GetSession handles GET /sessions/:id
func (h *SessionHandler) GetSession(c *gin.Context) {
	resp, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "session retrieved", resp)
}

// EnterSection handles GET /sessions/:id/sections/:section
func (h *SessionHandler) EnterSection(c *gin.Context) {
	section := models.Section(c.Param("section"))
	view, err := h.service.EnterSection(c.Request.Context(), c.Param("id"), section)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "section entered", view)
}

// SaveAnswer handles PUT /sessions/:id/sections/:section/answers
func (h *SessionHandler) SaveAnswer(c *gin.Context) {
	var req services.SaveAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "invalid request body", err)
		return
	}
	req.Section = models.Section(c.Param("section"))

	if err := h.service.SaveAnswer(c.Request.Context(), c.Param("id"), &req); err != nil {
		h.HandleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "answer saved", nil)
}

// SubmitSection handles POST /sessions/:id/sections/:section/submit
func (h *SessionHandler) SubmitSection(c *gin.Context) {
	var req services.SubmitSectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "invalid request body", err)
		return
	}
	req.Section = models.Section(c.Param("section"))

	resp, err := h.service.SubmitSection(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "section submitted", resp)
}

// RetakeSection handles POST /sessions/:id/sections/:section/retake
func (h *SessionHandler) RetakeSection(c *gin.Context) {
	section := models.Section(c.Param("section"))
	resp, err := h.service.RetakeSection(c.Request.Context(), c.Param("id"), section)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "section reopened", resp)
}

// RequestMediaPlay handles POST /sessions/:id/media/play
func (h *SessionHandler) RequestMediaPlay(c *gin.Context) {
	state, err := h.service.RequestMediaPlay(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "play requested", gin.H{"media_state": state})
}

// MediaFinished handles POST /sessions/:id/media/finished
func (h *SessionHandler) MediaFinished(c *gin.Context) {
	if err := h.service.MediaFinished(c.Request.Context(), c.Param("id")); err != nil {
		h.HandleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "media finished", nil)
}

// PauseMedia handles POST /sessions/:id/media/pause. One-shot audio
// always rejects this; the endpoint exists so clients get an explicit
// locked response instead of a 404.
func (h *SessionHandler) PauseMedia(c *gin.Context) {
	h.HandleServiceError(c, media.ErrPlaybackLocked)
}

// SeekMedia handles POST /sessions/:id/media/seek
func (h *SessionHandler) SeekMedia(c *gin.Context) {
	h.HandleServiceError(c, media.ErrPlaybackLocked)
}

// ReplayMedia handles POST /sessions/:id/media/replay
func (h *SessionHandler) ReplayMedia(c *gin.Context) {
	h.HandleServiceError(c, media.ErrPlaybackLocked)
}

// TimeRemaining handles GET /sessions/:id/time-remaining
func (h *SessionHandler) TimeRemaining(c *gin.Context) {
	status, err := h.service.TimeRemaining(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "timer status", status)
}

// GetResult handles GET /sessions/:id/result
func (h *SessionHandler) GetResult(c *gin.Context) {
	resp, err := h.service.Result(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "session result", resp)
}

// ListByCandidate handles GET /sessions/candidate/:candidate_id
func (h *SessionHandler) ListByCandidate(c *gin.Context) {
	candidateID, err := strconv.ParseUint(c.Param("candidate_id"), 10, 32)
	if err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "invalid candidate id", err)
		return
	}

	filters := repositories.SessionFilters{
		Limit:     parseIntQuery(c, "limit", 20),
		Offset:    parseIntQuery(c, "offset", 0),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}
	if status := c.Query("status"); status != "" {
		s := models.SessionStatus(status)
		filters.Status = &s
	}

	resp, err := h.service.ListByCandidate(c.Request.Context(), uint(candidateID), filters)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "sessions retrieved", resp)
}

func parseIntQuery(c *gin.Context, key string, fallback int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return fallback
	}
	return v
}
