package pipeline

import (
	"fmt"
	"strings"
)

// InputPlaceholder marks where a unit's user prompt template wants the
// running text inserted.
const InputPlaceholder = "{{input}}"

const (
	chainSystemPreamble = "You are executing a chained processing pipeline. " +
		"Process each step sequentially, using the output from each step as input to the next."
	chainUserPreamble = "Execute the following steps in order:"
	chainUserClosing  = "Provide ONLY the final output from the last step."
)

// CompileChain merges an optimizable batch into one system/user prompt
// pair for a single completion call. The first step receives the actual
// running text; later steps reference the previous step's output through
// a synthetic marker the model is instructed to thread internally.
func CompileChain(input string, batch Batch) (systemPrompt, userPrompt string) {
	systemParts := make([]string, 0, len(batch.Units))
	userParts := make([]string, 0, len(batch.Units))

	for idx, unit := range batch.Units {
		if unit.Prompt == nil {
			continue
		}
		step := idx + 1
		systemParts = append(systemParts,
			fmt.Sprintf("## Step %d: %s\n%s", step, unit.Name, unit.Prompt.SystemPrompt))

		stepInput := input
		if idx > 0 {
			stepInput = fmt.Sprintf("{STEP_%d_OUTPUT}", idx)
		}
		userParts = append(userParts,
			fmt.Sprintf("### Step %d: %s\n%s", step, unit.Name,
				strings.ReplaceAll(unit.Prompt.UserPromptTemplate, InputPlaceholder, stepInput)))
	}

	systemPrompt = chainSystemPreamble + "\n\n" + strings.Join(systemParts, "\n\n")
	userPrompt = chainUserPreamble + "\n\n" + strings.Join(userParts, "\n\n") + "\n\n" + chainUserClosing
	return systemPrompt, userPrompt
}
