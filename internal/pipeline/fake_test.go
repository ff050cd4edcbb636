package pipeline

import (
	"context"
	"sync"

	"dietchain/internal/completion"
)

// fakeClient records every call and answers from a script keyed by model id.
type fakeClient struct {
	mu      sync.Mutex
	calls   []completion.Request
	replies map[string]string
	errs    map[string]error
	// respond overrides the scripted replies when set.
	respond func(req completion.Request) (string, error)
}

func newFakeClient() *fakeClient {
	return &fakeClient{replies: map[string]string{}, errs: map[string]error{}}
}

func (f *fakeClient) Complete(ctx context.Context, req completion.Request) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()

	if f.respond != nil {
		return f.respond(req)
	}
	if err, ok := f.errs[req.Model]; ok {
		return "", err
	}
	return f.replies[req.Model], nil
}

func (f *fakeClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeClient) models() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.Model
	}
	return out
}

func (f *fakeClient) prompts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.Prompt
	}
	return out
}
