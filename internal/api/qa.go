package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

type questionRequest struct {
	Question string `json:"question"`
	// UseContext defaults to true: the latest diet recommendation grounds the answer.
	UseContext *bool `json:"use_context"`
}

// AskQuestion answers a follow-up question under the session's profile and logs the exchange.
func (h *Handler) AskQuestion(c *gin.Context) {
	var req questionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, badRequest("invalid body: %s", err))
		return
	}
	ctx := c.Request.Context()
	sess := currentSession(c)

	prof, err := h.currentProfile(ctx, sess.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	var dietContext string
	if req.UseContext == nil || *req.UseContext {
		dietContext = sess.DietContext()
	}

	ans, err := h.QA.Answer(ctx, req.Question, prof, dietContext)
	if err != nil {
		h.fail(c, err)
		return
	}
	sess.AppendExchange(ans)
	c.JSON(http.StatusOK, ans)
}

// QAHistory returns the session's Q&A log in order.
func (h *Handler) QAHistory(c *gin.Context) {
	c.JSON(http.StatusOK, currentSession(c).History())
}

// QATranscript returns the Q&A log as a downloadable text file.
func (h *Handler) QATranscript(c *gin.Context) {
	filename := fmt.Sprintf("nutrition_qa_%s.txt", h.now().Format("20060102_1504"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.String(http.StatusOK, currentSession(c).Transcript())
}
