package timeline

import "fmt"

// ErrorKind classifies compilation failures.
type ErrorKind string

const (
	// DurationUnavailable means the duration estimator could not resolve a
	// line even after retries. Compilation aborts rather than guessing,
	// since every later offset depends on the failed duration.
	DurationUnavailable ErrorKind = "duration_unavailable"
)

// CompileError locates an unresolvable line.
type CompileError struct {
	Kind      ErrorKind
	SceneID   string
	LineIndex int
	Err       error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compile scene %q line %d: %s: %v", e.SceneID, e.LineIndex, e.Kind, e.Err)
}

func (e *CompileError) Unwrap() error {
	return e.Err
}
