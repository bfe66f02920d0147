// Package pipeline implements the text post-processing engine: a library
// of processing units (LLM prompts and text replacements), pipelines that
// reference them in execution order, a batch planner that merges
// consecutive same-model prompt units into one completion call, and the
// executor that drives a run.
package pipeline

import (
	"time"

	"github.com/google/uuid"
)

// Kind discriminates the unit variants.
type Kind string

const (
	KindPrompt      Kind = "prompt"
	KindReplacement Kind = "replacement"
)

// PromptSpec sends the running text through a chat model.
type PromptSpec struct {
	Provider           string `json:"provider"`
	Model              string `json:"model"`
	SystemPrompt       string `json:"system_prompt"`
	UserPromptTemplate string `json:"user_prompt_template"`
}

// ReplacementSpec rewrites the running text without a model call. When
// Regex is false, Find is always treated literally, even in the
// case-insensitive mode.
type ReplacementSpec struct {
	Find          string `json:"find"`
	Replace       string `json:"replace"`
	Regex         bool   `json:"regex"`
	CaseSensitive bool   `json:"case_sensitive"`
}

// Unit is one reusable step in the library. Exactly one of Prompt or
// Replacement is set, matching Kind.
type Unit struct {
	ID          uuid.UUID        `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Kind        Kind             `json:"type"`
	Prompt      *PromptSpec      `json:"prompt,omitempty"`
	Replacement *ReplacementSpec `json:"replacement,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// NewPromptUnit builds a prompt unit with a fresh id.
func NewPromptUnit(name string, spec PromptSpec) Unit {
	now := time.Now().UTC()
	return Unit{
		ID:        uuid.New(),
		Name:      name,
		Kind:      KindPrompt,
		Prompt:    &spec,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewReplacementUnit builds a text replacement unit with a fresh id.
func NewReplacementUnit(name string, spec ReplacementSpec) Unit {
	now := time.Now().UTC()
	return Unit{
		ID:          uuid.New(),
		Name:        name,
		Kind:        KindReplacement,
		Replacement: &spec,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// UnitRef points at a library unit from within a pipeline. Disabled
// references stay in place but are skipped at execution time.
type UnitRef struct {
	UnitID  uuid.UUID `json:"unit_id"`
	Enabled bool      `json:"enabled"`
}

// Pipeline is an ordered sequence of unit references. Slice order is
// execution order.
type Pipeline struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Enabled   bool      `json:"enabled"`
	Units     []UnitRef `json:"units"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewPipeline builds an enabled, empty pipeline with a fresh id.
func NewPipeline(name string) Pipeline {
	now := time.Now().UTC()
	return Pipeline{
		ID:        uuid.New(),
		Name:      name,
		Enabled:   true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Append adds a reference to the end of the pipeline.
func (p *Pipeline) Append(unitID uuid.UUID, enabled bool) {
	p.Units = append(p.Units, UnitRef{UnitID: unitID, Enabled: enabled})
	p.UpdatedAt = time.Now().UTC()
}
