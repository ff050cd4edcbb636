package api

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"dietchain/internal/export"
	"dietchain/internal/pipeline"
	"dietchain/internal/report"
	"dietchain/internal/session"
)

type textRequest struct {
	Text string `json:"text"`
}

type runResponse struct {
	*pipeline.PipelineContext
	ReportID  int64              `json:"report_id,omitempty"`
	FoodTable []pipeline.FoodRow `json:"food_table"`
	Error     string             `json:"error,omitempty"`
}

// RunPipeline runs the chain over report text sent as JSON.
func (h *Handler) RunPipeline(c *gin.Context) {
	var req textRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, badRequest("invalid body: %s", err))
		return
	}
	h.run(c, req.Text)
}

// UploadAndRun extracts text from an uploaded report and runs the chain over it.
func (h *Handler) UploadAndRun(c *gin.Context) {
	name, data, err := readUpload(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	text, err := h.Extractor.Extract(c.Request.Context(), name, data)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.run(c, text)
}

func (h *Handler) run(c *gin.Context, text string) {
	ctx := c.Request.Context()
	sess := currentSession(c)
	log := requestLogger(c)

	prof, err := h.currentProfile(ctx, sess.ID)
	if err != nil {
		h.fail(c, err)
		return
	}

	pc, err := h.Pipeline.Run(ctx, text, prof)
	if err != nil {
		if pc == nil {
			h.fail(c, err)
			return
		}
		// Partial run: report which stage failed, never the stages after it.
		c.JSON(http.StatusBadGateway, runResponse{PipelineContext: pc, FoodTable: []pipeline.FoodRow{}, Error: err.Error()})
		return
	}

	rep := report.New(sess.ID, pc.RawInput,
		pc.Output(pipeline.StageTranslate), pc.Output(pipeline.StageRecommendDiet), pc.Output(pipeline.StageMealPlan), h.now())
	id, err := h.Reports.Save(ctx, rep)
	if err != nil {
		log.Warn().Err(err).Msg("failed to save report")
		id = 0
	}
	sess.SetLastRun(pc, id)

	log.Info().Int64("report_id", id).Int("violations", len(pc.Violations)).Msg("pipeline completed")
	c.JSON(http.StatusOK, runResponse{PipelineContext: pc, ReportID: id, FoodTable: pc.FoodList().Table()})
}

func lastRun(sess *session.Session) (*pipeline.PipelineContext, int64, error) {
	pc, id := sess.LastRun()
	if pc == nil {
		return nil, 0, notFound("no pipeline run in this session")
	}
	return pc, id, nil
}

// LastRun returns the session's most recent successful run.
func (h *Handler) LastRun(c *gin.Context) {
	pc, id, err := lastRun(currentSession(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, runResponse{PipelineContext: pc, ReportID: id, FoodTable: pc.FoodList().Table()})
}

// LastRunPDF exports the session's most recent run.
func (h *Handler) LastRunPDF(c *gin.Context) {
	pc, _, err := lastRun(currentSession(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	now := h.now()
	h.writePDF(c, fmt.Sprintf("diet_plan_%s.pdf", now.Format("20060102_1504")), func(buf *bytes.Buffer) error {
		return export.RunPDF(buf, "Personalized Diet Plan", now, export.RunSections(pc), pc.FoodList())
	})
}

func (h *Handler) writePDF(c *gin.Context, filename string, build func(*bytes.Buffer) error) {
	var buf bytes.Buffer
	if err := build(&buf); err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}

// Extract returns the text of an uploaded report without running the chain.
func (h *Handler) Extract(c *gin.Context) {
	name, data, err := readUpload(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	text, err := h.Extractor.Extract(c.Request.Context(), name, data)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"filename": name, "text": text, "chars": len([]rune(text))})
}

type foodsResponse struct {
	pipeline.FoodList
	Table []pipeline.FoodRow `json:"table"`
	Empty bool               `json:"empty"`
}

func newFoodsResponse(f pipeline.FoodList) foodsResponse {
	return foodsResponse{FoodList: f, Table: f.Table(), Empty: f.Empty()}
}

// LastFoods returns the eat / avoid lists of the session's latest diet recommendation.
func (h *Handler) LastFoods(c *gin.Context) {
	pc, _, err := lastRun(currentSession(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newFoodsResponse(pc.FoodList()))
}

// ParseFoods extracts eat / avoid lists from arbitrary diet text.
func (h *Handler) ParseFoods(c *gin.Context) {
	var req textRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, badRequest("invalid body: %s", err))
		return
	}
	c.JSON(http.StatusOK, newFoodsResponse(pipeline.ExtractFoodLists(req.Text)))
}
