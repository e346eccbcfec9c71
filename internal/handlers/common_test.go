package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ielts-sim/exam-service/internal/models"
	"github.com/ielts-sim/exam-service/internal/services"
	"github.com/ielts-sim/exam-service/internal/utils"
)

func newErrorContext(t *testing.T) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/sessions/sess-1/sections/reading", nil)
	return c, w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHandleServiceError_CompletedSessionPointsToResult(t *testing.T) {
	c, w := newErrorContext(t)
	h := NewBaseHandler(utils.NewDevelopmentLogger())

	h.HandleServiceError(c, services.ErrSessionCompleted)

	assert.Equal(t, http.StatusConflict, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, "session_completed", resp.Code)

	details, ok := resp.Details.(map[string]interface{})
	require.True(t, ok, "completed session must carry a redirect payload")
	assert.Equal(t, "result", details["redirect_to"])
}

func TestHandleServiceError_OutOfOrderCarriesRedirect(t *testing.T) {
	c, w := newErrorContext(t)
	h := NewBaseHandler(utils.NewDevelopmentLogger())

	h.HandleServiceError(c, &services.OutOfOrderError{
		Requested: models.SectionWriting,
		Expected:  models.SectionReading,
	})

	assert.Equal(t, http.StatusConflict, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, "section_out_of_order", resp.Code)

	details, ok := resp.Details.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "writing", details["requested"])
	assert.Equal(t, "reading", details["redirect_to"])
}
