package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"dietchain/internal/document"
	"dietchain/internal/pipeline"
	"dietchain/internal/profile"
	"dietchain/internal/report"
	"dietchain/internal/session"
)

// MaxUploadBytes bounds uploaded report files.
const MaxUploadBytes = 10 << 20

// PipelineRunner runs the translate → recommend_diet → meal_plan chain.
type PipelineRunner interface {
	Run(ctx context.Context, rawInput string, prof profile.UserProfile) (*pipeline.PipelineContext, error)
}

// QuestionAnswerer answers follow-up questions.
type QuestionAnswerer interface {
	Answer(ctx context.Context, question string, prof profile.UserProfile, dietContext string) (pipeline.Answer, error)
}

// TextExtractor turns an uploaded file into report text.
type TextExtractor interface {
	Extract(ctx context.Context, filename string, data []byte) (string, error)
}

// SessionStore resolves the session of a request.
type SessionStore interface {
	GetOrCreate(id string) (*session.Session, bool)
	Len() int
}

// Handler handles HTTP requests.
type Handler struct {
	Pipeline  PipelineRunner
	QA        QuestionAnswerer
	Extractor TextExtractor
	Profiles  profile.Store
	Reports   report.Store
	Sessions  SessionStore

	now func() time.Time
}

// NewHandler creates a new Handler.
func NewHandler(p PipelineRunner, qa QuestionAnswerer, extractor TextExtractor, profiles profile.Store, reports report.Store, sessions SessionStore) *Handler {
	return &Handler{
		Pipeline:  p,
		QA:        qa,
		Extractor: extractor,
		Profiles:  profiles,
		Reports:   reports,
		Sessions:  sessions,
		now:       time.Now,
	}
}

// Register mounts every route on r.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/health", h.Health)

	r.GET("/profile", h.GetProfile)
	r.PUT("/profile", h.SaveProfile)
	r.DELETE("/profile", h.DeleteProfile)

	r.POST("/pipeline", h.RunPipeline)
	r.POST("/pipeline/upload", h.UploadAndRun)
	r.GET("/pipeline/last", h.LastRun)
	r.GET("/pipeline/last/pdf", h.LastRunPDF)

	r.POST("/extract", h.Extract)

	r.GET("/foods", h.LastFoods)
	r.POST("/foods", h.ParseFoods)

	r.POST("/qa", h.AskQuestion)
	r.GET("/qa/history", h.QAHistory)
	r.GET("/qa/transcript", h.QATranscript)

	r.GET("/reports", h.ListReports)
	r.GET("/reports/stats", h.ReportStats)
	r.GET("/reports/:id", h.GetReport)
	r.DELETE("/reports/:id", h.DeleteReport)
	r.GET("/reports/:id/pdf", h.ReportPDF)
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": h.Sessions.Len()})
}

// fail maps an error onto a status code and writes it.
func (h *Handler) fail(c *gin.Context, err error) {
	var (
		status = http.StatusInternalServerError
		body   = gin.H{"error": err.Error()}
		se     *pipeline.StageError
		xe     *document.ExtractionError
	)
	switch {
	case errors.Is(err, pipeline.ErrTrivialInput),
		errors.Is(err, profile.ErrInvalidProfile),
		errors.Is(err, document.ErrUnsupportedFormat),
		errors.Is(err, errBadRequest):
		status = http.StatusBadRequest
	case errors.As(err, &xe):
		status = http.StatusUnprocessableEntity
	case errors.As(err, &se):
		status = http.StatusBadGateway
		body["failed_stage"] = se.Stage
		if se.Last != nil {
			body["error_detail"] = se.Last.Error()
		}
	case errors.Is(err, report.ErrNotFound), errors.Is(err, errNotFound):
		status = http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusRequestTimeout
	}
	if status >= http.StatusInternalServerError {
		requestLogger(c).Error().Err(err).Msg("request failed")
	}
	c.AbortWithStatusJSON(status, body)
}

var (
	errBadRequest = errors.New("bad request")
	errNotFound   = errors.New("not found")
)

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

func notFound(what string) error {
	return fmt.Errorf("%s: %w", what, errNotFound)
}

// currentProfile loads the session's profile, or the zero profile when none is saved.
func (h *Handler) currentProfile(ctx context.Context, sessionID string) (profile.UserProfile, error) {
	p, err := h.Profiles.Get(ctx, sessionID)
	if err != nil {
		return profile.UserProfile{}, fmt.Errorf("failed to load profile: %w", err)
	}
	if p == nil {
		return profile.UserProfile{}, nil
	}
	return *p, nil
}

// readUpload reads the multipart "file" field.
func readUpload(c *gin.Context) (string, []byte, error) {
	file, err := c.FormFile("file")
	if err != nil {
		return "", nil, badRequest("get form err: %s", err)
	}
	if file.Size > MaxUploadBytes {
		return "", nil, badRequest("file too large: %d bytes (max %d)", file.Size, MaxUploadBytes)
	}
	src, err := file.Open()
	if err != nil {
		return "", nil, fmt.Errorf("open file err: %w", err)
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, MaxUploadBytes+1))
	if err != nil {
		return "", nil, fmt.Errorf("read file err: %w", err)
	}
	return file.Filename, data, nil
}

func reportID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, badRequest("invalid report id %q", c.Param("id"))
	}
	return id, nil
}
