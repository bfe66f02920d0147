package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fmueller/voxpipe/internal/pipeline"
)

// Legacy exports carry pipelines with inline unit definitions instead of
// library references. ImportLegacy is the one-time migration path: each
// inline unit becomes a library unit (keyed by its original id, so a
// unit shared across pipelines is imported once) and each pipeline
// becomes an ordered reference list.

type legacyExport struct {
	Pipelines []legacyPipeline `json:"pipelines"`
}

type legacyPipeline struct {
	ID      uuid.UUID    `json:"id"`
	Name    string       `json:"name"`
	Enabled *bool        `json:"enabled,omitempty"`
	Units   []legacyUnit `json:"units"`
}

type legacyUnit struct {
	Type               string    `json:"type"`
	ID                 uuid.UUID `json:"id"`
	Name               string    `json:"name"`
	Provider           string    `json:"provider,omitempty"`
	Model              string    `json:"model,omitempty"`
	SystemPrompt       string    `json:"system_prompt,omitempty"`
	UserPromptTemplate string    `json:"user_prompt_template,omitempty"`
	Find               string    `json:"find,omitempty"`
	Replace            string    `json:"replace,omitempty"`
	Regex              bool      `json:"regex,omitempty"`
	CaseSensitive      bool      `json:"case_sensitive,omitempty"`
}

// ImportLegacy reads a legacy JSON export and stores its contents in the
// reference-based model. It returns how many units and pipelines were
// written.
func (s *Store) ImportLegacy(ctx context.Context, r io.Reader) (unitCount, pipelineCount int, err error) {
	var export legacyExport
	if err := json.NewDecoder(r).Decode(&export); err != nil {
		return 0, 0, fmt.Errorf("decode legacy export: %w", err)
	}

	now := time.Now().UTC()
	seen := make(map[uuid.UUID]bool)

	for _, lp := range export.Pipelines {
		p := pipeline.Pipeline{
			ID:        lp.ID,
			Name:      lp.Name,
			Enabled:   lp.Enabled == nil || *lp.Enabled,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}

		for _, lu := range lp.Units {
			unit, err := lu.toUnit(now)
			if err != nil {
				return 0, 0, fmt.Errorf("pipeline %q: %w", lp.Name, err)
			}
			if !seen[unit.ID] {
				if err := s.SaveUnit(ctx, unit); err != nil {
					return 0, 0, err
				}
				seen[unit.ID] = true
				unitCount++
			}
			p.Units = append(p.Units, pipeline.UnitRef{UnitID: unit.ID, Enabled: true})
		}

		if err := s.SavePipeline(ctx, p); err != nil {
			return 0, 0, err
		}
		pipelineCount++
	}

	return unitCount, pipelineCount, nil
}

func (lu legacyUnit) toUnit(now time.Time) (pipeline.Unit, error) {
	id := lu.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	unit := pipeline.Unit{
		ID:        id,
		Name:      lu.Name,
		CreatedAt: now,
		UpdatedAt: now,
	}

	switch lu.Type {
	case "Prompt":
		unit.Kind = pipeline.KindPrompt
		unit.Prompt = &pipeline.PromptSpec{
			Provider:           strings.ToLower(lu.Provider),
			Model:              lu.Model,
			SystemPrompt:       lu.SystemPrompt,
			UserPromptTemplate: lu.UserPromptTemplate,
		}
	case "TextReplacement":
		unit.Kind = pipeline.KindReplacement
		unit.Replacement = &pipeline.ReplacementSpec{
			Find:          lu.Find,
			Replace:       lu.Replace,
			Regex:         lu.Regex,
			CaseSensitive: lu.CaseSensitive,
		}
	default:
		return pipeline.Unit{}, fmt.Errorf("unit %q has unknown type %q", lu.Name, lu.Type)
	}

	return unit, nil
}
