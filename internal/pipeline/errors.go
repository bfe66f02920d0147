package pipeline

import "fmt"

// ConfigError signals a unit that cannot run as configured, such as a
// malformed replacement pattern or a missing variant payload. It aborts
// the run that hit it.
type ConfigError struct {
	Unit   string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("unit %q misconfigured: %s", e.Unit, e.Reason)
}

// CallError wraps a completion-service failure with the identity of the
// step that made the call. The run stops here; nothing is retried.
type CallError struct {
	Step string
	Err  error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("completion call for %q failed: %v", e.Step, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }
