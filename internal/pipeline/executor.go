package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrUnitNotFound is returned by a Resolver when a referenced unit no
// longer exists. The executor skips such references instead of failing
// the run.
var ErrUnitNotFound = errors.New("processing unit not found")

// Completer makes a single chat completion call. Implementations own
// transport, auth, and timeouts; the executor only awaits the result.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt, model string) (string, error)
}

// Resolver looks up library units by id.
type Resolver interface {
	Unit(ctx context.Context, id uuid.UUID) (Unit, error)
}

// LogEntry records one executed step of a run.
type LogEntry struct {
	Timestamp time.Time
	Label     string
	Input     string
	Output    string
	Duration  time.Duration
	Optimized bool
}

// Result is the outcome of a completed run. Warnings carry recovered
// data-integrity issues such as dangling unit references.
type Result struct {
	Output        string
	Entries       []LogEntry
	Warnings      []string
	TotalDuration time.Duration
}

// Executor runs pipelines against a unit store and a completion service.
// Batches execute strictly in order; each batch's input is the previous
// batch's output. Independent runs may proceed concurrently.
type Executor struct {
	store    Resolver
	client   Completer
	optimize bool
	logger   *zap.Logger
	now      func() time.Time
}

// NewExecutor builds an executor with call merging enabled.
func NewExecutor(store Resolver, client Completer, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		store:    store,
		client:   client,
		optimize: true,
		logger:   logger,
		now:      time.Now,
	}
}

// WithOptimization toggles the merging of consecutive same-model prompt
// units into single completion calls.
func (e *Executor) WithOptimization(enabled bool) *Executor {
	e.optimize = enabled
	return e
}

// Execute runs the pipeline over the input text. A disabled pipeline, or
// one that resolves to no enabled units, returns the input unchanged
// with an empty log. Any completion failure aborts the run: the partial
// log is discarded and only the error is returned.
func (e *Executor) Execute(ctx context.Context, p Pipeline, input string) (*Result, error) {
	start := e.now()

	units, warnings, err := e.resolve(ctx, p)
	if err != nil {
		return nil, err
	}

	if !p.Enabled || len(units) == 0 {
		e.logger.Info("pipeline is a no-op, returning input unchanged",
			zap.String("pipeline", p.Name), zap.Bool("enabled", p.Enabled), zap.Int("units", len(units)))
		return &Result{Output: input, Warnings: warnings}, nil
	}

	var batches []Batch
	if e.optimize {
		batches = Plan(units)
	} else {
		batches = PlanSingletons(units)
	}

	e.logger.Info("executing pipeline",
		zap.String("pipeline", p.Name), zap.Int("units", len(units)), zap.Int("batches", len(batches)))

	current := input
	var entries []LogEntry
	for i, batch := range batches {
		var (
			batchEntries []LogEntry
			output       string
		)
		if batch.Optimizable {
			output, batchEntries, err = e.runChain(ctx, current, batch, i+1, len(batches))
		} else {
			output, batchEntries, err = e.runUnits(ctx, current, batch, i+1, len(batches))
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, batchEntries...)
		current = output
	}

	total := e.now().Sub(start)
	e.logger.Info("pipeline execution complete",
		zap.String("pipeline", p.Name), zap.Duration("elapsed", total))

	return &Result{
		Output:        current,
		Entries:       entries,
		Warnings:      warnings,
		TotalDuration: total,
	}, nil
}

// resolve walks the reference list in order and collects the enabled
// units that still exist. Dangling references are skipped with a
// warning; any other store failure aborts.
func (e *Executor) resolve(ctx context.Context, p Pipeline) ([]Unit, []string, error) {
	var (
		units    []Unit
		warnings []string
	)
	for _, ref := range p.Units {
		if !ref.Enabled {
			continue
		}
		unit, err := e.store.Unit(ctx, ref.UnitID)
		if errors.Is(err, ErrUnitNotFound) {
			warning := fmt.Sprintf("skipping dangling unit reference %s", ref.UnitID)
			e.logger.Warn("skipping dangling unit reference",
				zap.String("pipeline", p.Name), zap.String("unit_id", ref.UnitID.String()))
			warnings = append(warnings, warning)
			continue
		}
		if err != nil {
			return nil, nil, fmt.Errorf("resolve unit %s: %w", ref.UnitID, err)
		}
		units = append(units, unit)
	}
	return units, warnings, nil
}

// runChain executes an optimizable batch as one compiled completion call.
func (e *Executor) runChain(ctx context.Context, input string, batch Batch, batchNum, totalBatches int) (string, []LogEntry, error) {
	label := fmt.Sprintf("optimized chain (%d units)", len(batch.Units))
	e.logger.Info("merging consecutive prompt units into one call",
		zap.Int("batch", batchNum), zap.Int("total_batches", totalBatches),
		zap.Int("units", len(batch.Units)),
		zap.String("provider", batch.Provider), zap.String("model", batch.Model),
		zap.Int("calls_saved", len(batch.Units)-1))

	if err := validatePromptBatch(batch); err != nil {
		return "", nil, err
	}

	systemPrompt, userPrompt := CompileChain(input, batch)

	started := e.now()
	output, err := e.client.Complete(ctx, systemPrompt, userPrompt, batch.Model)
	if err != nil {
		return "", nil, &CallError{Step: label, Err: err}
	}

	entry := LogEntry{
		Timestamp: e.now(),
		Label:     label,
		Input:     input,
		Output:    output,
		Duration:  e.now().Sub(started),
		Optimized: true,
	}
	return output, []LogEntry{entry}, nil
}

// runUnits executes a non-optimizable batch one unit at a time.
func (e *Executor) runUnits(ctx context.Context, input string, batch Batch, batchNum, totalBatches int) (string, []LogEntry, error) {
	current := input
	var entries []LogEntry
	for _, unit := range batch.Units {
		e.logger.Info("executing unit",
			zap.Int("batch", batchNum), zap.Int("total_batches", totalBatches),
			zap.String("unit", unit.Name))

		started := e.now()
		output, err := e.runUnit(ctx, current, unit)
		if err != nil {
			return "", nil, err
		}

		entries = append(entries, LogEntry{
			Timestamp: e.now(),
			Label:     unit.Name,
			Input:     current,
			Output:    output,
			Duration:  e.now().Sub(started),
			Optimized: false,
		})
		current = output
	}
	return current, entries, nil
}

func (e *Executor) runUnit(ctx context.Context, input string, unit Unit) (string, error) {
	switch unit.Kind {
	case KindPrompt:
		if err := validatePrompt(unit); err != nil {
			return "", err
		}
		userPrompt := strings.ReplaceAll(unit.Prompt.UserPromptTemplate, InputPlaceholder, input)
		output, err := e.client.Complete(ctx, unit.Prompt.SystemPrompt, userPrompt, unit.Prompt.Model)
		if err != nil {
			return "", &CallError{Step: unit.Name, Err: err}
		}
		return output, nil
	case KindReplacement:
		return applyReplacement(input, unit)
	default:
		return "", &ConfigError{Unit: unit.Name, Reason: fmt.Sprintf("unknown unit kind %q", unit.Kind)}
	}
}

func validatePromptBatch(batch Batch) error {
	for _, unit := range batch.Units {
		if err := validatePrompt(unit); err != nil {
			return err
		}
	}
	return nil
}

func validatePrompt(unit Unit) error {
	if unit.Prompt == nil {
		return &ConfigError{Unit: unit.Name, Reason: "prompt unit has no prompt spec"}
	}
	if unit.Prompt.Provider == "" || unit.Prompt.Model == "" {
		return &ConfigError{Unit: unit.Name, Reason: "prompt unit is missing provider or model"}
	}
	return nil
}
