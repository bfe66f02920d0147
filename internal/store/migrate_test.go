package store

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/fmueller/voxpipe/internal/pipeline"
)

const legacyExportJSON = `{
  "pipelines": [
    {
      "id": "11111111-1111-1111-1111-111111111111",
      "name": "cleanup",
      "units": [
        {
          "type": "Prompt",
          "id": "22222222-2222-2222-2222-222222222222",
          "name": "fix grammar",
          "provider": "OpenAI",
          "model": "gpt-4",
          "system_prompt": "Fix grammar.",
          "user_prompt_template": "Text: {{input}}"
        },
        {
          "type": "TextReplacement",
          "id": "33333333-3333-3333-3333-333333333333",
          "name": "strip filler",
          "find": "um",
          "replace": "",
          "regex": false,
          "case_sensitive": false
        }
      ]
    },
    {
      "id": "44444444-4444-4444-4444-444444444444",
      "name": "reuse",
      "enabled": false,
      "units": [
        {
          "type": "Prompt",
          "id": "22222222-2222-2222-2222-222222222222",
          "name": "fix grammar",
          "provider": "OpenAI",
          "model": "gpt-4",
          "system_prompt": "Fix grammar.",
          "user_prompt_template": "Text: {{input}}"
        }
      ]
    }
  ]
}`

func TestImportLegacyMigratesInlineUnits(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	unitCount, pipelineCount, err := s.ImportLegacy(ctx, strings.NewReader(legacyExportJSON))
	require.NoError(t, err)
	require.Equal(t, 2, unitCount) // shared unit imported once
	require.Equal(t, 2, pipelineCount)

	promptID := uuid.MustParse("22222222-2222-2222-2222-222222222222")
	prompt, err := s.Unit(ctx, promptID)
	require.NoError(t, err)
	require.Equal(t, pipeline.KindPrompt, prompt.Kind)
	require.Equal(t, "openai", prompt.Prompt.Provider)
	require.Equal(t, "gpt-4", prompt.Prompt.Model)

	first, err := s.PipelineByName(ctx, "cleanup")
	require.NoError(t, err)
	require.True(t, first.Enabled)
	require.Len(t, first.Units, 2)
	require.Equal(t, promptID, first.Units[0].UnitID)
	require.Equal(t, uuid.MustParse("33333333-3333-3333-3333-333333333333"), first.Units[1].UnitID)
	require.True(t, first.Units[0].Enabled)

	second, err := s.PipelineByName(ctx, "reuse")
	require.NoError(t, err)
	require.False(t, second.Enabled)
	require.Len(t, second.Units, 1)
	require.Equal(t, promptID, second.Units[0].UnitID)
}

func TestImportLegacyRejectsUnknownUnitType(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)

	_, _, err := s.ImportLegacy(context.Background(), strings.NewReader(`{
		"pipelines": [{"name": "bad", "units": [{"type": "TextToSpeech", "name": "x"}]}]
	}`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown type")
}

func TestImportLegacyRejectsMalformedJSON(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)

	_, _, err := s.ImportLegacy(context.Background(), strings.NewReader("{not json"))
	require.Error(t, err)
}
