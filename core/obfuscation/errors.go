package obfuscation

import "fmt"

// ConfigError reports an invalid transform configuration. It is raised at
// construction time and is never retried.
type ConfigError struct {
	Kind   Kind
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s configuration: %s", e.Kind, e.Reason)
}

// TransformError reports a runtime failure inside a transform. It aborts
// the scenario being run.
type TransformError struct {
	Kind Kind
	Err  error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("%s transform failed: %v", e.Kind, e.Err)
}

func (e *TransformError) Unwrap() error {
	return e.Err
}
