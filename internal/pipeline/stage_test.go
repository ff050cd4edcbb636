package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dietchain/internal/completion"
	"dietchain/internal/profile"
)

func testStage(models ...string) Stage {
	return Stage{
		Name:            StageTranslate,
		Prompt:          TranslatePrompt,
		Models:          models,
		Temperature:     0.7,
		MaxOutputTokens: 1000,
	}
}

func TestRunner_FallbackExhaustion(t *testing.T) {
	client := newFakeClient()
	client.respond = func(req completion.Request) (string, error) {
		return "", errors.New("503 from " + req.Model)
	}
	r := NewRunner(client, 0, zerolog.Nop())

	res := r.Run(context.Background(), testStage("a", "b", "c"), PromptInput{RawInput: "Fasting glucose 186 mg/dL"})

	assert.False(t, res.Succeeded())
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, 3, client.callCount())
	assert.Equal(t, []string{"a", "b", "c"}, client.models())
	assert.Equal(t, 3, res.Attempts)
	assert.Empty(t, res.Output)
	assert.Contains(t, res.Detail, "503 from c")
	assert.ErrorIs(t, res.Err, ErrStageFailed)

	var se *StageError
	require.True(t, errors.As(res.Err, &se))
	assert.Equal(t, StageTranslate, se.Stage)
}

func TestRunner_FallbackShortCircuit(t *testing.T) {
	client := newFakeClient()
	client.replies["a"] = "plain explanation"
	r := NewRunner(client, 0, zerolog.Nop())

	res := r.Run(context.Background(), testStage("a", "b", "c"), PromptInput{RawInput: "LDL 190"})

	require.True(t, res.Succeeded())
	assert.Equal(t, 1, client.callCount())
	assert.Equal(t, "a", res.ModelUsed)
	assert.Equal(t, "plain explanation", res.Output)
	assert.Empty(t, res.Detail)
}

func TestRunner_FallsBackToSecondModel(t *testing.T) {
	client := newFakeClient()
	client.errs["a"] = errors.New("rate limited")
	client.replies["b"] = "ok"
	r := NewRunner(client, 0, zerolog.Nop())

	res := r.Run(context.Background(), testStage("a", "b", "c"), PromptInput{RawInput: "LDL 190"})

	require.True(t, res.Succeeded())
	assert.Equal(t, "b", res.ModelUsed)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, []string{"a", "b"}, client.models())
}

func TestRunner_EmptyTextIsFailure(t *testing.T) {
	client := newFakeClient()
	client.replies["a"] = "   "
	client.replies["b"] = "real answer"
	r := NewRunner(client, 0, zerolog.Nop())

	res := r.Run(context.Background(), testStage("a", "b"), PromptInput{})
	require.True(t, res.Succeeded())
	assert.Equal(t, "b", res.ModelUsed)
}

func TestRunner_TimeoutTriggersFallback(t *testing.T) {
	client := newFakeClient()
	r := NewRunner(completion.ClientFunc(func(ctx context.Context, req completion.Request) (string, error) {
		client.Complete(ctx, req)
		if req.Model == "slow" {
			<-ctx.Done()
			return "", ctx.Err()
		}
		return "fast answer", nil
	}), 20*time.Millisecond, zerolog.Nop())

	res := r.Run(context.Background(), testStage("slow", "fast"), PromptInput{})

	require.True(t, res.Succeeded())
	assert.Equal(t, "fast", res.ModelUsed)
	assert.Equal(t, []string{"slow", "fast"}, client.models())
}

func TestRunner_NoModels(t *testing.T) {
	client := newFakeClient()
	r := NewRunner(client, 0, zerolog.Nop())

	res := r.Run(context.Background(), testStage(), PromptInput{})
	assert.ErrorIs(t, res.Err, ErrNoModels)
	assert.ErrorIs(t, res.Err, ErrStageFailed)
	assert.Equal(t, 0, client.callCount())
}

func TestRunner_CanceledContextStopsFallback(t *testing.T) {
	client := newFakeClient()
	ctx, cancel := context.WithCancel(context.Background())
	client.respond = func(req completion.Request) (string, error) {
		cancel()
		return "", context.Canceled
	}
	r := NewRunner(client, 0, zerolog.Nop())

	res := r.Run(ctx, testStage("a", "b", "c"), PromptInput{})
	assert.False(t, res.Succeeded())
	assert.Equal(t, 1, client.callCount())
}

func TestRunner_PassesCallParameters(t *testing.T) {
	client := newFakeClient()
	client.replies["m"] = "text"
	r := NewRunner(client, 0, zerolog.Nop())

	r.Run(context.Background(), testStage("m"), PromptInput{RawInput: "report", Profile: profile.UserProfile{Allergies: []string{"Peanuts"}}})

	require.Len(t, client.calls, 1)
	assert.Equal(t, float32(0.7), client.calls[0].Temperature)
	assert.Equal(t, int32(1000), client.calls[0].MaxOutputTokens)
	assert.Contains(t, client.calls[0].Prompt, "Peanuts")
}
