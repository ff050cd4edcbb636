package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dietchain/internal/api"
	"dietchain/internal/completion"
	"dietchain/internal/config"
	"dietchain/internal/document"
	"dietchain/internal/pipeline"
	"dietchain/internal/profile"
	"dietchain/internal/report"
	"dietchain/internal/session"
)

const (
	translation = "**What Your Report Shows:**\nYour blood sugar is high."
	diet        = "## FOODS TO INCLUDE\n- Steel-cut oats\n- Lentils\n## FOODS TO AVOID\n- Peanuts\n- White bread"
	mealPlan    = "### DAY 1\n- Breakfast: Steel-cut oats"
	labText     = "Fasting glucose 186 mg/dL, HbA1c 8.2%"
)

// mockLLM answers by stage, recognizing the role named in each prompt.
type mockLLM struct {
	mu      sync.Mutex
	prompts []string
	fail    map[string]error
}

func (m *mockLLM) Complete(ctx context.Context, req completion.Request) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, req.Prompt)

	roles := []struct{ role, reply string }{
		{"medical translator", translation},
		{"clinical nutritionist", diet},
		{"meal planner", mealPlan},
		{"nutrition advisor", "Oats and beans help lower cholesterol."},
	}
	for _, r := range roles {
		if strings.Contains(req.Prompt, r.role) {
			if err := m.fail[r.role]; err != nil {
				return "", err
			}
			return r.reply, nil
		}
	}
	return "", errors.New("unexpected prompt")
}

func (m *mockLLM) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

// mockExtractor returns fixed text or error.
type mockExtractor struct {
	text string
	err  error
}

func (m *mockExtractor) Extract(ctx context.Context, filename string, data []byte) (string, error) {
	if m.err != nil {
		return "", &document.ExtractionError{Filename: filename, Format: document.Format(filename), Err: m.err}
	}
	return m.text, nil
}

type testServer struct {
	router    *gin.Engine
	llm       *mockLLM
	extractor *mockExtractor
	reports   *report.MemoryStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Default()
	llm := &mockLLM{fail: map[string]error{}}
	runner := pipeline.NewRunner(llm, cfg.Timeout(), zerolog.Nop())
	chain := pipeline.New(runner, cfg.Stages(), cfg.MinInputChars, zerolog.Nop())
	qa := pipeline.NewQA(runner, cfg.QA.Stage(), cfg.MinQuestionChars, cfg.QAContextChars)

	sessions, err := session.NewStore(16, nil)
	require.NoError(t, err)
	extractor := &mockExtractor{text: labText}
	reports := report.NewMemoryStore()

	handler := api.NewHandler(chain, qa, extractor, profile.NewMemoryStore(), reports, sessions)
	return &testServer{
		router:    newRouter(cfg, handler, sessions, zerolog.Nop()),
		llm:       llm,
		extractor: extractor,
		reports:   reports,
	}
}

func (s *testServer) do(t *testing.T, method, path, sessionID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if sessionID != "" {
		req.Header.Set(api.HeaderSessionID, sessionID)
	}
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func (s *testServer) upload(t *testing.T, path, sessionID, filename string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set(api.HeaderSessionID, sessionID)
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

type runBody struct {
	Success     bool   `json:"success"`
	ReportID    int64  `json:"report_id"`
	FailedStage string `json:"failed_stage"`
	Outputs     []struct {
		Stage string `json:"stage"`
		Text  string `json:"text"`
	} `json:"stage_outputs"`
	FoodTable []pipeline.FoodRow `json:"food_table"`
	Error     string             `json:"error"`
}

func TestSessionHeader(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Header().Get(api.HeaderSessionID))
	assert.NotEmpty(t, rr.Header().Get(api.HeaderRequestID))

	rr = s.do(t, http.MethodGet, "/health", "mine", nil)
	assert.Equal(t, "mine", rr.Header().Get(api.HeaderSessionID))
}

func TestRunPipeline(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(t, http.MethodPost, "/pipeline", "alice", map[string]string{"text": labText})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	body := decode[runBody](t, rr)
	assert.True(t, body.Success)
	assert.NotZero(t, body.ReportID)
	require.Len(t, body.Outputs, 3)
	assert.Equal(t, "translate", body.Outputs[0].Stage)
	assert.Equal(t, "meal_plan", body.Outputs[2].Stage)
	assert.Equal(t, pipeline.FoodRow{Eat: "Steel-cut oats", Avoid: "Peanuts"}, body.FoodTable[0])
	assert.Equal(t, 3, s.llm.calls())

	// The run is kept per session.
	rr = s.do(t, http.MethodGet, "/pipeline/last", "alice", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	rr = s.do(t, http.MethodGet, "/pipeline/last", "bob", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRunPipeline_TrivialInput(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(t, http.MethodPost, "/pipeline", "alice", map[string]string{"text": "hi"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, 0, s.llm.calls())
}

func TestRunPipeline_StageFailure(t *testing.T) {
	s := newTestServer(t)
	s.llm.fail["clinical nutritionist"] = errors.New("rate limited")

	rr := s.do(t, http.MethodPost, "/pipeline", "alice", map[string]string{"text": labText})
	require.Equal(t, http.StatusBadGateway, rr.Code)

	var body struct {
		runBody
		Skipped []string `json:"skipped_stages"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "recommend_diet", body.FailedStage)
	assert.Equal(t, []string{"meal_plan"}, body.Skipped)
	assert.Contains(t, body.Error, "rate limited")
	require.Len(t, body.Outputs, 1)

	// Failed runs are not stored.
	list, err := s.reports.List(context.Background(), "alice")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestProfileLifecycle(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(t, http.MethodGet, "/profile", "alice", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = s.do(t, http.MethodPut, "/profile", "alice", map[string]any{"diet_type": "Carnivore"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = s.do(t, http.MethodPut, "/profile", "alice", map[string]any{
		"name":      "Alice",
		"diet_type": "Vegetarian",
		"allergies": []string{" Peanuts ", "peanuts", "Sesame"},
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	saved := decode[profile.UserProfile](t, s.do(t, http.MethodGet, "/profile", "alice", nil))
	assert.Equal(t, profile.Vegetarian, saved.DietType)
	assert.Len(t, saved.Allergies, 2)

	// Every stage prompt carries the saved allergens.
	rr = s.do(t, http.MethodPost, "/pipeline", "alice", map[string]string{"text": labText})
	require.Equal(t, http.StatusOK, rr.Code)
	for _, p := range s.llm.prompts {
		assert.Contains(t, p, "Peanuts")
		assert.Contains(t, p, "Sesame")
	}

	rr = s.do(t, http.MethodDelete, "/profile", "alice", nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	rr = s.do(t, http.MethodGet, "/profile", "alice", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestQA(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodPost, "/pipeline", "alice", map[string]string{"text": labText})

	rr := s.do(t, http.MethodPost, "/qa", "alice", map[string]string{"question": "What foods help lower cholesterol?"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	ans := decode[pipeline.Answer](t, rr)
	assert.Equal(t, "Oats and beans help lower cholesterol.", ans.Text)
	assert.Equal(t, config.Default().QA.Models[0], ans.Model)

	// The latest diet recommendation grounds the answer.
	last := s.llm.prompts[len(s.llm.prompts)-1]
	assert.Contains(t, last, "Steel-cut oats")

	rr = s.do(t, http.MethodPost, "/qa", "alice", map[string]string{"question": "why?"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	history := decode[[]pipeline.Answer](t, s.do(t, http.MethodGet, "/qa/history", "alice", nil))
	require.Len(t, history, 1)
	assert.Equal(t, "What foods help lower cholesterol?", history[0].Question)

	rr = s.do(t, http.MethodGet, "/qa/transcript", "alice", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Q: What foods help lower cholesterol?")
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "attachment")

	assert.Empty(t, decode[[]pipeline.Answer](t, s.do(t, http.MethodGet, "/qa/history", "bob", nil)))
}

func TestUploadAndRun(t *testing.T) {
	s := newTestServer(t)

	rr := s.upload(t, "/pipeline/upload", "alice", "labs.pdf", []byte("%PDF-1.4"))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.True(t, decode[runBody](t, rr).Success)

	rr = s.upload(t, "/extract", "alice", "labs.pdf", []byte("%PDF-1.4"))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Fasting glucose")

	s.extractor.err = errors.New("malformed xref table")
	rr = s.upload(t, "/pipeline/upload", "alice", "labs.pdf", []byte("%PDF-1.4"))
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Body.String(), "malformed xref table")

	s.extractor.err = document.ErrUnsupportedFormat
	rr = s.upload(t, "/extract", "alice", "labs.doc", []byte("binary"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestFoods(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(t, http.MethodGet, "/foods", "alice", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = s.do(t, http.MethodPost, "/foods", "alice", map[string]string{"text": "Nothing structured here."})
	require.Equal(t, http.StatusOK, rr.Code)
	var empty struct {
		Eat   []string `json:"eat_items"`
		Avoid []string `json:"avoid_items"`
		Empty bool     `json:"empty"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &empty))
	assert.True(t, empty.Empty)
	assert.NotNil(t, empty.Eat)

	s.do(t, http.MethodPost, "/pipeline", "alice", map[string]string{"text": labText})
	rr = s.do(t, http.MethodGet, "/foods", "alice", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "White bread")
}

func TestReports(t *testing.T) {
	s := newTestServer(t)

	first := decode[runBody](t, s.do(t, http.MethodPost, "/pipeline", "alice", map[string]string{"text": labText}))
	second := decode[runBody](t, s.do(t, http.MethodPost, "/pipeline", "alice", map[string]string{"text": labText + " repeat"}))
	require.NotEqual(t, first.ReportID, second.ReportID)

	list := decode[[]report.Report](t, s.do(t, http.MethodGet, "/reports", "alice", nil))
	require.Len(t, list, 2)
	assert.Equal(t, second.ReportID, list[0].ID)
	assert.Contains(t, list[0].Conditions, "Diabetes")

	stats := decode[report.Stats](t, s.do(t, http.MethodGet, "/reports/stats", "alice", nil))
	assert.Equal(t, 2, stats.TotalReports)
	assert.Equal(t, "Diabetes", stats.MostCommonCondition)

	path := "/reports/" + strconv.FormatInt(first.ReportID, 10)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, path, "bob", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, path, "alice", nil).Code)

	rr := s.do(t, http.MethodGet, path+"/pdf", "alice", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/pdf", rr.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rr.Body.Bytes(), []byte("%PDF-")))

	assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodDelete, path, "alice", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, path, "alice", nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/reports/abc", "alice", nil).Code)
}

func TestLastRunPDF(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/pipeline/last/pdf", "alice", nil).Code)

	s.do(t, http.MethodPost, "/pipeline", "alice", map[string]string{"text": labText})
	rr := s.do(t, http.MethodGet, "/pipeline/last/pdf", "alice", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, bytes.HasPrefix(rr.Body.Bytes(), []byte("%PDF-")))
}
