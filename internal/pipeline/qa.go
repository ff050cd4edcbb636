package pipeline

import (
	"context"
	"time"

	"dietchain/internal/profile"
)

const (
	DefaultMinQuestionChars = 5
	DefaultQAContextChars   = 1500
)

// Answer is one completed Q&A exchange.
type Answer struct {
	Question string    `json:"question"`
	Text     string    `json:"answer"`
	Model    string    `json:"model_used"`
	At       time.Time `json:"timestamp"`
}

// QA answers ad hoc questions under the same profile rules as the main chain.
type QA struct {
	runner       *Runner
	stage        Stage
	minQuestion  int
	contextChars int
	now          func() time.Time
}

// NewQA creates a QA stage. settings supplies models, temperature and token limit.
func NewQA(runner *Runner, settings Stage, minQuestionChars, contextChars int) *QA {
	settings.Name, settings.Prompt = StageQA, QAPrompt
	if minQuestionChars <= 0 {
		minQuestionChars = DefaultMinQuestionChars
	}
	if contextChars <= 0 {
		contextChars = DefaultQAContextChars
	}
	return &QA{runner: runner, stage: settings, minQuestion: minQuestionChars, contextChars: contextChars, now: time.Now}
}

// Answer answers one question. dietContext is the latest diet recommendation,
// or empty; it is truncated before being embedded. The profile is always passed
// to the prompt, even for general questions.
func (q *QA) Answer(ctx context.Context, question string, prof profile.UserProfile, dietContext string) (Answer, error) {
	if err := CheckInput("question", question, q.minQuestion); err != nil {
		return Answer{}, err
	}

	in := PromptInput{RawInput: question, Profile: prof.Clone()}
	if dietContext != "" {
		in.Upstream = []StageOutput{{Stage: StageRecommendDiet, Text: truncate(dietContext, q.contextChars)}}
	}

	res := q.runner.Run(ctx, q.stage, in)
	if !res.Succeeded() {
		return Answer{}, res.Err
	}
	return Answer{Question: question, Text: res.Output, Model: res.ModelUsed, At: q.now()}, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
