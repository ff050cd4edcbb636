package pipeline

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"dietchain/internal/profile"
)

// DefaultMinInputChars is the length raw input must exceed.
const DefaultMinInputChars = 10

// PipelineContext is the accumulated state of one run. Outputs are in execution order.
type PipelineContext struct {
	RawInput    string              `json:"raw_input"`
	Outputs     []StageOutput       `json:"stage_outputs"`
	Results     []StageResult       `json:"stage_results"`
	Skipped     []StageName         `json:"skipped_stages,omitempty"`
	Profile     profile.UserProfile `json:"profile"`
	Succeeded   bool                `json:"success"`
	FailedStage StageName           `json:"failed_stage,omitempty"`
	Violations  []Violation         `json:"violations,omitempty"`
}

// Output returns the text of a completed stage.
func (pc *PipelineContext) Output(name StageName) string {
	for _, o := range pc.Outputs {
		if o.Stage == name {
			return o.Text
		}
	}
	return ""
}

// Failure returns the result of the failed stage, if any.
func (pc *PipelineContext) Failure() (StageResult, bool) {
	for _, r := range pc.Results {
		if !r.Succeeded() {
			return r, true
		}
	}
	return StageResult{}, false
}

// FoodList extracts the eat / avoid lists from the diet recommendation.
func (pc *PipelineContext) FoodList() FoodList {
	return ExtractFoodLists(pc.Output(StageRecommendDiet))
}

// Pipeline runs the fixed translate → recommend_diet → meal_plan chain.
type Pipeline struct {
	runner   *Runner
	stages   []Stage
	minInput int
	logger   zerolog.Logger
}

// New creates a Pipeline over the given stages, run in slice order.
func New(runner *Runner, stages []Stage, minInputChars int, logger zerolog.Logger) *Pipeline {
	if minInputChars <= 0 {
		minInputChars = DefaultMinInputChars
	}
	return &Pipeline{runner: runner, stages: stages, minInput: minInputChars, logger: logger}
}

// DefaultStages wires the standard prompts to the given per-stage settings.
// Each settings value supplies models, temperature and token limit; its Prompt is replaced.
func DefaultStages(translate, recommend, mealPlan Stage) []Stage {
	translate.Name, translate.Prompt = StageTranslate, TranslatePrompt
	recommend.Name, recommend.Prompt = StageRecommendDiet, RecommendDietPrompt
	mealPlan.Name, mealPlan.Prompt = StageMealPlan, MealPlanPrompt
	return []Stage{translate, recommend, mealPlan}
}

// CheckInput rejects trivial input before any model is called.
func CheckInput(what, text string, min int) error {
	n := utf8.RuneCountInString(strings.TrimSpace(text))
	if n <= min {
		return &TrivialInputError{What: what, Got: n, Min: min}
	}
	return nil
}

// Run executes every stage in order, threading each output into the next prompt.
// The first failed stage halts the run: later stages are reported as skipped and
// the returned error is that stage's *StageError. The profile is copied, so
// concurrent profile edits never reach an in-flight run.
func (p *Pipeline) Run(ctx context.Context, rawInput string, prof profile.UserProfile) (*PipelineContext, error) {
	if err := CheckInput("input", rawInput, p.minInput); err != nil {
		return nil, err
	}

	pc := &PipelineContext{
		RawInput: rawInput,
		Outputs:  []StageOutput{},
		Profile:  prof.Clone(),
	}

	for i, stage := range p.stages {
		in := PromptInput{
			RawInput: pc.RawInput,
			Upstream: append([]StageOutput(nil), pc.Outputs...),
			Profile:  pc.Profile,
		}
		res := p.runner.Run(ctx, stage, in)
		pc.Results = append(pc.Results, res)

		if !res.Succeeded() {
			pc.FailedStage = stage.Name
			for _, rest := range p.stages[i+1:] {
				pc.Skipped = append(pc.Skipped, rest.Name)
			}
			p.logger.Error().Err(res.Err).Str("stage", string(stage.Name)).Strs("skipped", stageNames(pc.Skipped)).Msg("pipeline halted")
			return pc, res.Err
		}

		pc.Outputs = append(pc.Outputs, StageOutput{Stage: stage.Name, Text: res.Output})
		if v := CheckOutput(stage.Name, res.Output, pc.Profile); len(v) > 0 {
			pc.Violations = append(pc.Violations, v...)
			p.logger.Warn().Str("stage", string(stage.Name)).Int("violations", len(v)).Msg("stage output mentions excluded foods")
		}
	}

	pc.Succeeded = true
	return pc, nil
}

func stageNames(names []StageName) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = string(n)
	}
	return out
}
