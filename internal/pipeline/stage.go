package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"dietchain/internal/completion"
	"dietchain/internal/profile"
)

// StageName identifies one LLM-backed step.
type StageName string

const (
	StageTranslate     StageName = "translate"
	StageRecommendDiet StageName = "recommend_diet"
	StageMealPlan      StageName = "meal_plan"
	StageQA            StageName = "qa"
)

// StageStatus is the outcome of a stage within a run.
type StageStatus string

const (
	StatusCompleted StageStatus = "completed"
	StatusFailed    StageStatus = "failed"
	StatusSkipped   StageStatus = "skipped"
)

// StageOutput is the text produced by one completed stage.
type StageOutput struct {
	Stage StageName `json:"stage"`
	Text  string    `json:"text"`
}

// PromptInput is everything a prompt may reference: the run's raw input,
// the outputs of stages that already ran (in execution order) and the profile.
type PromptInput struct {
	RawInput string
	Upstream []StageOutput
	Profile  profile.UserProfile
}

// Output returns the upstream text of the named stage.
func (in PromptInput) Output(name StageName) (string, bool) {
	for _, o := range in.Upstream {
		if o.Stage == name {
			return o.Text, true
		}
	}
	return "", false
}

// PromptFunc builds a stage prompt.
type PromptFunc func(in PromptInput) string

// Stage describes one pipeline step.
type Stage struct {
	Name            StageName
	Prompt          PromptFunc
	Models          []string // tried in order until one succeeds
	Temperature     float32
	MaxOutputTokens int32
}

// StageResult is the outcome of running one stage. Exactly one of Output and Err is set.
type StageResult struct {
	Stage     StageName     `json:"stage"`
	Status    StageStatus   `json:"status"`
	Output    string        `json:"output,omitempty"`
	ModelUsed string        `json:"model_used,omitempty"`
	Attempts  int           `json:"attempts"`
	Duration  time.Duration `json:"duration_ns"`
	Detail    string        `json:"error_detail,omitempty"`
	Err       error         `json:"-"`
}

// Succeeded reports whether the stage produced output.
func (r StageResult) Succeeded() bool { return r.Err == nil }

// Runner executes single stages against a completion client, falling back
// through the stage's model list on any error.
type Runner struct {
	client  completion.Client
	timeout time.Duration
	logger  zerolog.Logger
}

// NewRunner creates a Runner. A zero timeout leaves calls bounded only by ctx.
func NewRunner(client completion.Client, timeout time.Duration, logger zerolog.Logger) *Runner {
	return &Runner{client: client, timeout: timeout, logger: logger}
}

// Run builds the stage prompt once and tries each model strictly in order.
func (r *Runner) Run(ctx context.Context, stage Stage, in PromptInput) StageResult {
	start := time.Now()
	res := StageResult{Stage: stage.Name}
	log := r.logger.With().Str("stage", string(stage.Name)).Logger()

	if len(stage.Models) == 0 {
		res.Status = StatusFailed
		res.Err = &StageError{Stage: stage.Name, Last: ErrNoModels}
		res.Detail = res.Err.Error()
		return res
	}

	prompt := stage.Prompt(in)
	var lastErr error
	for _, model := range stage.Models {
		if err := ctx.Err(); err != nil {
			// The caller gave up; further models cannot help.
			lastErr = err
			break
		}
		res.Attempts++

		text, err := r.call(ctx, stage, model, prompt)
		if err == nil {
			res.Status = StatusCompleted
			res.Output = text
			res.ModelUsed = model
			res.Duration = time.Since(start)
			log.Info().Str("model", model).Int("attempt", res.Attempts).Dur("took", res.Duration).Msg("stage completed")
			return res
		}
		lastErr = err
		log.Warn().Err(err).Str("model", model).Int("attempt", res.Attempts).Msg("model call failed, trying next candidate")
	}

	res.Status = StatusFailed
	res.Duration = time.Since(start)
	res.Err = &StageError{Stage: stage.Name, Attempts: res.Attempts, Last: lastErr}
	res.Detail = res.Err.Error()
	log.Error().Err(res.Err).Msg("stage exhausted all models")
	return res
}

func (r *Runner) call(ctx context.Context, stage Stage, model, prompt string) (string, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	text, err := r.client.Complete(ctx, completion.Request{
		Model:           model,
		Prompt:          prompt,
		Temperature:     stage.Temperature,
		MaxOutputTokens: stage.MaxOutputTokens,
	})
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("model %s timed out: %w", model, err)
		}
		return "", fmt.Errorf("model %s: %w", model, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("model %s returned no text", model)
	}
	return text, nil
}
