package api

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"dietchain/internal/export"
	"dietchain/internal/pipeline"
	"dietchain/internal/report"
)

// ListReports returns the session's report history, newest first.
func (h *Handler) ListReports(c *gin.Context) {
	reports, err := h.Reports.List(c.Request.Context(), currentSession(c).ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	if reports == nil {
		reports = []*report.Report{}
	}
	c.JSON(http.StatusOK, reports)
}

// ReportStats summarizes the session's report history.
func (h *Handler) ReportStats(c *gin.Context) {
	reports, err := h.Reports.List(c.Request.Context(), currentSession(c).ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report.ComputeStats(reports))
}

// ownReport loads a report, hiding reports of other sessions.
func (h *Handler) ownReport(c *gin.Context) (*report.Report, error) {
	id, err := reportID(c)
	if err != nil {
		return nil, err
	}
	r, err := h.Reports.Get(c.Request.Context(), id)
	if err != nil {
		return nil, err
	}
	if r.SessionID != currentSession(c).ID {
		return nil, report.ErrNotFound
	}
	return r, nil
}

// GetReport returns one report.
func (h *Handler) GetReport(c *gin.Context) {
	r, err := h.ownReport(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// DeleteReport removes one report.
func (h *Handler) DeleteReport(c *gin.Context) {
	r, err := h.ownReport(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.Reports.Delete(c.Request.Context(), r.ID); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ReportPDF exports a stored report.
func (h *Handler) ReportPDF(c *gin.Context) {
	r, err := h.ownReport(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.writePDF(c, fmt.Sprintf("report_%d.pdf", r.ID), func(buf *bytes.Buffer) error {
		return export.RunPDF(buf, "Medical Report Summary", r.CreatedAt, export.ReportSections(r), pipeline.ExtractFoodLists(r.DietRecommendation))
	})
}
