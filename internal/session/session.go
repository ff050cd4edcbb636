package session

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"dietchain/internal/pipeline"
)

// Session is the state of one user. Each HTTP request resolves exactly one
// Session; nothing is shared between sessions.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu           sync.RWMutex
	lastRun      *pipeline.PipelineContext
	lastReportID int64
	qa           []pipeline.Answer
}

func newSession(id string, now time.Time) *Session {
	return &Session{ID: id, CreatedAt: now}
}

// SetLastRun records the most recent pipeline run and the report saved for it (0 if none).
func (s *Session) SetLastRun(pc *pipeline.PipelineContext, reportID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRun = pc
	s.lastReportID = reportID
}

// LastRun returns the most recent pipeline run, or nil.
func (s *Session) LastRun() (*pipeline.PipelineContext, int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRun, s.lastReportID
}

// DietContext returns the latest diet recommendation, or "" when there is none.
func (s *Session) DietContext() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastRun == nil {
		return ""
	}
	return s.lastRun.Output(pipeline.StageRecommendDiet)
}

// AppendExchange adds a Q&A exchange to the end of the log. The log is never pruned.
func (s *Session) AppendExchange(a pipeline.Answer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.qa = append(s.qa, a)
}

// History returns a copy of the Q&A log in the order it was recorded.
func (s *Session) History() []pipeline.Answer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]pipeline.Answer{}, s.qa...)
}

// Transcript renders the Q&A log as plain text.
func (s *Session) Transcript() string {
	history := s.History()

	var b strings.Builder
	fmt.Fprintf(&b, "NUTRITION Q&A TRANSCRIPT\nSession: %s\nQuestions: %d\n", s.ID, len(history))
	for i, a := range history {
		fmt.Fprintf(&b, "\n[%d] %s\nQ: %s\nA: %s\n(model: %s)\n",
			i+1, a.At.Format("2006-01-02 15:04"), a.Question, a.Text, a.Model)
	}
	return b.String()
}
