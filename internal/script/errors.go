package script

import "fmt"

// ErrorKind classifies what made a script unparseable.
type ErrorKind string

const (
	MissingField     ErrorKind = "missing_field"
	InvalidType      ErrorKind = "invalid_type"
	DuplicateSceneID ErrorKind = "duplicate_scene_id"
)

// ParseError pinpoints the offending scene/line. SceneIndex and LineIndex are
// zero-based; LineIndex is -1 for scene-level problems.
type ParseError struct {
	Kind       ErrorKind
	SceneID    string
	SceneIndex int
	LineIndex  int
	Field      string
	Detail     string
}

func (e *ParseError) Error() string {
	loc := "script"
	if e.SceneIndex >= 0 {
		loc = fmt.Sprintf("scene %d", e.SceneIndex)
		if e.SceneID != "" {
			loc = fmt.Sprintf("scene %q", e.SceneID)
		}
		if e.LineIndex >= 0 {
			loc = fmt.Sprintf("%s line %d", loc, e.LineIndex)
		}
	}
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: field %q: %s", loc, e.Kind, e.Field, e.Detail)
	}
	return fmt.Sprintf("%s: %s: field %q", loc, e.Kind, e.Field)
}

func scriptError(kind ErrorKind, field, detail string) *ParseError {
	return &ParseError{Kind: kind, SceneIndex: -1, LineIndex: -1, Field: field, Detail: detail}
}

func sceneError(kind ErrorKind, sceneID string, sceneIndex int, field, detail string) *ParseError {
	return &ParseError{Kind: kind, SceneID: sceneID, SceneIndex: sceneIndex, LineIndex: -1, Field: field, Detail: detail}
}

func lineError(kind ErrorKind, sceneID string, sceneIndex, lineIndex int, field, detail string) *ParseError {
	return &ParseError{Kind: kind, SceneID: sceneID, SceneIndex: sceneIndex, LineIndex: lineIndex, Field: field, Detail: detail}
}
