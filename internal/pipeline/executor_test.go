package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	units map[uuid.UUID]Unit
}

func newFakeStore(units ...Unit) *fakeStore {
	s := &fakeStore{units: make(map[uuid.UUID]Unit)}
	for _, u := range units {
		s.units[u.ID] = u
	}
	return s
}

func (s *fakeStore) Unit(_ context.Context, id uuid.UUID) (Unit, error) {
	u, ok := s.units[id]
	if !ok {
		return Unit{}, ErrUnitNotFound
	}
	return u, nil
}

type completerFunc func(ctx context.Context, systemPrompt, userPrompt, model string) (string, error)

func (f completerFunc) Complete(ctx context.Context, systemPrompt, userPrompt, model string) (string, error) {
	return f(ctx, systemPrompt, userPrompt, model)
}

type recordedCall struct {
	system string
	user   string
	model  string
}

func recordingCompleter(calls *[]recordedCall, reply func(n int) string) completerFunc {
	return func(_ context.Context, systemPrompt, userPrompt, model string) (string, error) {
		*calls = append(*calls, recordedCall{system: systemPrompt, user: userPrompt, model: model})
		return reply(len(*calls)), nil
	}
}

func referencingPipeline(name string, units ...Unit) Pipeline {
	p := NewPipeline(name)
	for _, u := range units {
		p.Append(u.ID, true)
	}
	return p
}

func TestExecuteDisabledPipelineIsIdentity(t *testing.T) {
	t.Parallel()

	unit := promptUnit("noop", "openai", "gpt-4")
	p := referencingPipeline("disabled", unit)
	p.Enabled = false

	called := false
	exec := NewExecutor(newFakeStore(unit), completerFunc(func(context.Context, string, string, string) (string, error) {
		called = true
		return "", nil
	}), nil)

	result, err := exec.Execute(context.Background(), p, "untouched input")
	require.NoError(t, err)
	require.False(t, called)
	require.Equal(t, "untouched input", result.Output)
	require.Empty(t, result.Entries)
	require.Zero(t, result.TotalDuration)
}

func TestExecuteEmptyPipelineIsIdentity(t *testing.T) {
	t.Parallel()

	exec := NewExecutor(newFakeStore(), completerFunc(func(context.Context, string, string, string) (string, error) {
		t.Fatal("completer must not be called")
		return "", nil
	}), nil)

	result, err := exec.Execute(context.Background(), NewPipeline("empty"), "hello")
	require.NoError(t, err)
	require.Equal(t, "hello", result.Output)
	require.Empty(t, result.Entries)
}

func TestExecuteMergesOptimizableBatchIntoOneCall(t *testing.T) {
	t.Parallel()

	grammar := promptUnit("grammar", "openai", "gpt-4")
	tone := promptUnit("tone", "openai", "gpt-4")
	strip := replacementUnit("strip", ReplacementSpec{Find: "draft:", Replace: "", CaseSensitive: true})
	summarize := promptUnit("summarize", "openai", "gpt-4")

	var calls []recordedCall
	client := recordingCompleter(&calls, func(n int) string { return fmt.Sprintf("draft:step-%d", n) })

	exec := NewExecutor(newFakeStore(grammar, tone, strip, summarize), client, nil)
	p := referencingPipeline("post", grammar, tone, strip, summarize)

	result, err := exec.Execute(context.Background(), p, "raw text")
	require.NoError(t, err)

	// Two prompt calls total: one merged chain, one singleton.
	require.Len(t, calls, 2)
	require.Contains(t, calls[0].system, "## Step 1: grammar")
	require.Contains(t, calls[0].system, "## Step 2: tone")
	require.Contains(t, calls[0].user, "raw text")
	require.Equal(t, "gpt-4", calls[0].model)

	require.Len(t, result.Entries, 3)
	require.True(t, result.Entries[0].Optimized)
	require.Equal(t, "optimized chain (2 units)", result.Entries[0].Label)
	require.False(t, result.Entries[1].Optimized)
	require.Equal(t, "strip", result.Entries[1].Label)
	require.False(t, result.Entries[2].Optimized)

	// Text threads batch to batch: chain output, then replacement, then
	// the final prompt sees the replaced text.
	require.Equal(t, "draft:step-1", result.Entries[0].Output)
	require.Equal(t, "step-1", result.Entries[1].Output)
	require.Contains(t, calls[1].user, "step-1")
	require.Equal(t, "draft:step-2", result.Output)
}

func TestExecuteWithOptimizationDisabledRunsPerUnit(t *testing.T) {
	t.Parallel()

	first := promptUnit("first", "openai", "gpt-4")
	second := promptUnit("second", "openai", "gpt-4")

	var calls []recordedCall
	client := recordingCompleter(&calls, func(n int) string { return fmt.Sprintf("out-%d", n) })

	exec := NewExecutor(newFakeStore(first, second), client, nil).WithOptimization(false)
	p := referencingPipeline("sequential", first, second)

	result, err := exec.Execute(context.Background(), p, "start")
	require.NoError(t, err)

	require.Len(t, calls, 2)
	require.NotContains(t, calls[0].system, "chained processing pipeline")
	require.Contains(t, calls[1].user, "out-1")

	require.Len(t, result.Entries, 2)
	for _, entry := range result.Entries {
		require.False(t, entry.Optimized)
	}
	require.Equal(t, "out-2", result.Output)
}

func TestExecuteSkipsDanglingReference(t *testing.T) {
	t.Parallel()

	keep := replacementUnit("keep", ReplacementSpec{Find: "a", Replace: "b", CaseSensitive: true})
	p := referencingPipeline("partial", keep)
	p.Append(uuid.New(), true) // reference to a deleted unit

	exec := NewExecutor(newFakeStore(keep), completerFunc(func(context.Context, string, string, string) (string, error) {
		t.Fatal("completer must not be called")
		return "", nil
	}), nil)

	result, err := exec.Execute(context.Background(), p, "aaa")
	require.NoError(t, err)
	require.Equal(t, "bbb", result.Output)
	require.Len(t, result.Entries, 1)
	require.Len(t, result.Warnings, 1)
	require.Contains(t, result.Warnings[0], "dangling")
}

func TestExecuteSkipsDisabledReferences(t *testing.T) {
	t.Parallel()

	active := replacementUnit("active", ReplacementSpec{Find: "x", Replace: "y", CaseSensitive: true})
	dormant := replacementUnit("dormant", ReplacementSpec{Find: "y", Replace: "z", CaseSensitive: true})

	p := NewPipeline("partial")
	p.Append(active.ID, true)
	p.Append(dormant.ID, false)

	exec := NewExecutor(newFakeStore(active, dormant), nil, nil)

	result, err := exec.Execute(context.Background(), p, "xx")
	require.NoError(t, err)
	require.Equal(t, "yy", result.Output)
	require.Len(t, result.Entries, 1)
}

func TestExecuteAbortsOnCompletionFailure(t *testing.T) {
	t.Parallel()

	first := promptUnit("first", "openai", "gpt-4")
	second := replacementUnit("after", ReplacementSpec{Find: "a", Replace: "b"})

	callErr := errors.New("rate limited")
	calls := 0
	exec := NewExecutor(newFakeStore(first, second), completerFunc(func(context.Context, string, string, string) (string, error) {
		calls++
		return "", callErr
	}), nil)

	result, err := exec.Execute(context.Background(), referencingPipeline("failing", first, second), "input")
	require.Nil(t, result)
	require.ErrorIs(t, err, callErr)

	var ce *CallError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, "first", ce.Step)
	require.Equal(t, 1, calls)
}

func TestExecuteMalformedPatternIsConfigError(t *testing.T) {
	t.Parallel()

	broken := replacementUnit("broken", ReplacementSpec{Find: "(", Replace: "x", Regex: true})
	exec := NewExecutor(newFakeStore(broken), nil, nil)

	result, err := exec.Execute(context.Background(), referencingPipeline("bad", broken), "input")
	require.Nil(t, result)

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	require.Equal(t, "broken", cfgErr.Unit)
}

func TestExecuteRejectsPromptWithoutModel(t *testing.T) {
	t.Parallel()

	unit := NewPromptUnit("incomplete", PromptSpec{Provider: "openai"})
	exec := NewExecutor(newFakeStore(unit), completerFunc(func(context.Context, string, string, string) (string, error) {
		t.Fatal("completer must not be called")
		return "", nil
	}), nil)

	_, err := exec.Execute(context.Background(), referencingPipeline("bad", unit), "input")

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	require.Contains(t, cfgErr.Reason, "provider or model")
}

func TestExecutePlaceholderSubstitution(t *testing.T) {
	t.Parallel()

	unit := NewPromptUnit("echo", PromptSpec{
		Provider:           "openai",
		Model:              "gpt-4",
		SystemPrompt:       "Echo the input.",
		UserPromptTemplate: "Before {{input}} after {{input}}",
	})

	var calls []recordedCall
	exec := NewExecutor(newFakeStore(unit), recordingCompleter(&calls, func(int) string { return "done" }), nil)

	_, err := exec.Execute(context.Background(), referencingPipeline("echo", unit), "MID")
	require.NoError(t, err)
	require.Len(t, calls, 1)
	require.Equal(t, "Before MID after MID", calls[0].user)
	require.False(t, strings.Contains(calls[0].user, InputPlaceholder))
}
