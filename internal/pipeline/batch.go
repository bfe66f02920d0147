package pipeline

// Batch is a run of adjacent units that executes as one step. An
// optimizable batch holds two or more prompt units on the same
// provider/model and collapses into a single completion call.
type Batch struct {
	Units       []Unit
	Optimizable bool
	Provider    string
	Model       string
}

// Plan groups an ordered unit list into batches with a single
// left-to-right scan. Consecutive prompt units stay in one batch while
// their provider and model match exactly; any mismatch flushes the open
// batch. Replacement units always flush and then form their own
// singleton batch. Concatenating the batches in order reproduces the
// input exactly.
func Plan(units []Unit) []Batch {
	var (
		batches []Batch
		open    []Unit
		openKey PromptSpec
	)

	flush := func() {
		if len(open) == 0 {
			return
		}
		batches = append(batches, Batch{
			Units:       open,
			Optimizable: len(open) >= 2,
			Provider:    openKey.Provider,
			Model:       openKey.Model,
		})
		open = nil
	}

	for _, unit := range units {
		if unit.Kind != KindPrompt || unit.Prompt == nil {
			flush()
			batches = append(batches, Batch{Units: []Unit{unit}})
			continue
		}

		if len(open) > 0 && (unit.Prompt.Provider != openKey.Provider || unit.Prompt.Model != openKey.Model) {
			flush()
		}
		if len(open) == 0 {
			openKey = PromptSpec{Provider: unit.Prompt.Provider, Model: unit.Prompt.Model}
		}
		open = append(open, unit)
	}
	flush()

	return batches
}

// PlanSingletons puts every unit in its own non-optimizable batch. Used
// when call merging is switched off so each unit keeps its own log entry.
func PlanSingletons(units []Unit) []Batch {
	batches := make([]Batch, 0, len(units))
	for _, unit := range units {
		batches = append(batches, Batch{Units: []Unit{unit}})
	}
	return batches
}
