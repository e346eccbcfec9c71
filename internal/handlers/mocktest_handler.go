package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ielts-sim/exam-service/internal/repositories"
	"github.com/ielts-sim/exam-service/internal/services"
	"github.com/ielts-sim/exam-service/internal/utils"
)

// MockTestHandler serves the read-only test catalogue.
type MockTestHandler struct {
	BaseHandler
	service services.MockTestService
}

func NewMockTestHandler(service services.MockTestService, logger utils.Logger) *MockTestHandler {
	return &MockTestHandler{
		BaseHandler: NewBaseHandler(logger),
		service:     service,
	}
}

// GetMockTest handles GET /mock-tests/:id
func (h *MockTestHandler) GetMockTest(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "invalid mock test id", err)
		return
	}

	test, err := h.service.Get(c.Request.Context(), uint(id))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "mock test retrieved", test)
}

// ListMockTests handles GET /mock-tests
func (h *MockTestHandler) ListMockTests(c *gin.Context) {
	filters := repositories.MockTestFilters{
		Limit:  parseIntQuery(c, "limit", 20),
		Offset: parseIntQuery(c, "offset", 0),
	}

	tests, total, err := h.service.List(c.Request.Context(), filters)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "mock tests retrieved", gin.H{
		"mock_tests": tests,
		"total":      total,
		"limit":      filters.Limit,
		"offset":     filters.Offset,
	})
}
