package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func promptUnit(name, provider, model string) Unit {
	return NewPromptUnit(name, PromptSpec{
		Provider:           provider,
		Model:              model,
		SystemPrompt:       "You are a text editor.",
		UserPromptTemplate: "Process: {{input}}",
	})
}

func replacementUnit(name string, spec ReplacementSpec) Unit {
	return NewReplacementUnit(name, spec)
}

func flattenBatches(batches []Batch) []Unit {
	var units []Unit
	for _, b := range batches {
		units = append(units, b.Units...)
	}
	return units
}

func TestPlanMergesConsecutiveSameModelPrompts(t *testing.T) {
	t.Parallel()

	units := []Unit{
		promptUnit("fix grammar", "openai", "gpt-4"),
		promptUnit("tone", "openai", "gpt-4"),
		replacementUnit("strip filler", ReplacementSpec{Find: "um", Replace: "", CaseSensitive: true}),
		promptUnit("summarize", "openai", "gpt-4"),
	}

	batches := Plan(units)

	require.Len(t, batches, 3)

	require.True(t, batches[0].Optimizable)
	require.Len(t, batches[0].Units, 2)
	require.Equal(t, "openai", batches[0].Provider)
	require.Equal(t, "gpt-4", batches[0].Model)

	require.False(t, batches[1].Optimizable)
	require.Equal(t, KindReplacement, batches[1].Units[0].Kind)

	require.False(t, batches[2].Optimizable)
	require.Len(t, batches[2].Units, 1)

	require.Equal(t, units, flattenBatches(batches))
}

func TestPlanFlushesOnModelMismatch(t *testing.T) {
	t.Parallel()

	units := []Unit{
		promptUnit("a", "openai", "gpt-4"),
		promptUnit("b", "openai", "gpt-4o-mini"),
		promptUnit("c", "openai", "gpt-4o-mini"),
	}

	batches := Plan(units)

	require.Len(t, batches, 2)
	require.False(t, batches[0].Optimizable)
	require.True(t, batches[1].Optimizable)
	require.Equal(t, "gpt-4o-mini", batches[1].Model)
	require.Equal(t, units, flattenBatches(batches))
}

func TestPlanFlushesOnProviderMismatch(t *testing.T) {
	t.Parallel()

	units := []Unit{
		promptUnit("a", "openai", "gpt-4"),
		promptUnit("b", "openwebui", "gpt-4"),
	}

	batches := Plan(units)

	require.Len(t, batches, 2)
	require.False(t, batches[0].Optimizable)
	require.False(t, batches[1].Optimizable)
}

func TestPlanReplacementsAreAlwaysBoundaries(t *testing.T) {
	t.Parallel()

	units := []Unit{
		replacementUnit("r1", ReplacementSpec{Find: "a", Replace: "b"}),
		replacementUnit("r2", ReplacementSpec{Find: "c", Replace: "d"}),
	}

	batches := Plan(units)

	require.Len(t, batches, 2)
	for _, b := range batches {
		require.False(t, b.Optimizable)
		require.Len(t, b.Units, 1)
	}
}

func TestPlanSinglePromptIsNotOptimizable(t *testing.T) {
	t.Parallel()

	batches := Plan([]Unit{promptUnit("solo", "openai", "gpt-4")})

	require.Len(t, batches, 1)
	require.False(t, batches[0].Optimizable)
}

func TestPlanEmptyInput(t *testing.T) {
	t.Parallel()

	require.Empty(t, Plan(nil))
	require.Empty(t, PlanSingletons(nil))
}

func TestPlanSingletonsDisablesMerging(t *testing.T) {
	t.Parallel()

	units := []Unit{
		promptUnit("a", "openai", "gpt-4"),
		promptUnit("b", "openai", "gpt-4"),
		replacementUnit("r", ReplacementSpec{Find: "x", Replace: "y"}),
	}

	batches := PlanSingletons(units)

	require.Len(t, batches, len(units))
	for _, b := range batches {
		require.False(t, b.Optimizable)
		require.Len(t, b.Units, 1)
	}
	require.Equal(t, units, flattenBatches(batches))
}
