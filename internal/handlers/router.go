package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ielts-sim/exam-service/internal/services"
	"github.com/ielts-sim/exam-service/internal/utils"
)

type HandlerManager struct {
	sessionHandler  *SessionHandler
	mockTestHandler *MockTestHandler
}

func NewHandlerManager(
	sessionService services.ExamSessionService,
	mockTestService services.MockTestService,
	validator *utils.Validator,
	logger utils.Logger,
) *HandlerManager {
	return &HandlerManager{
		sessionHandler:  NewSessionHandler(sessionService, validator, logger),
		mockTestHandler: NewMockTestHandler(mockTestService, logger),
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "exam-service",
		})
	})

	v1 := router.Group("/api/v1")
	{
		sessions := v1.Group("/sessions")
		{
			sessions.POST("", hm.sessionHandler.CreateSession)
			sessions.GET("/:id", hm.sessionHandler.GetSession)
			sessions.GET("/:id/result", hm.sessionHandler.GetResult)
			sessions.GET("/:id/time-remaining", hm.sessionHandler.TimeRemaining)

			// Section flow
			sessions.GET("/:id/sections/:section", hm.sessionHandler.EnterSection)
			sessions.PUT("/:id/sections/:section/answers", hm.sessionHandler.SaveAnswer)
			sessions.POST("/:id/sections/:section/submit", hm.sessionHandler.SubmitSection)
			sessions.POST("/:id/sections/:section/retake", hm.sessionHandler.RetakeSection)

			// One-shot listening audio
			sessions.POST("/:id/media/play", hm.sessionHandler.RequestMediaPlay)
			sessions.POST("/:id/media/finished", hm.sessionHandler.MediaFinished)
			sessions.POST("/:id/media/pause", hm.sessionHandler.PauseMedia)
			sessions.POST("/:id/media/seek", hm.sessionHandler.SeekMedia)
			sessions.POST("/:id/media/replay", hm.sessionHandler.ReplayMedia)

			// Candidate history
			sessions.GET("/candidate/:candidate_id", hm.sessionHandler.ListByCandidate)
		}

		mockTests := v1.Group("/mock-tests")
		{
			mockTests.GET("", hm.mockTestHandler.ListMockTests)
			mockTests.GET("/:id", hm.mockTestHandler.GetMockTest)
		}
	}
}
