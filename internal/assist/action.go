package assist

import (
	"fmt"
	"strings"
)

// ActionKind tags the two flavors of writing actions.
type ActionKind string

const (
	KindQuickFixes     ActionKind = "quickFixes"
	KindRewriteOptions ActionKind = "rewriteOptions"
)

// SettingPath returns the settings key holding this kind's action list.
func (k ActionKind) SettingPath() string {
	return "writing." + string(k)
}

// RawAction is an action definition before id assignment.
type RawAction struct {
	Title       string
	Description string
	Prompt      string
}

// WritingAction is an invocable action with a stable id.
type WritingAction struct {
	ID          string
	Title       string
	Description string
	Prompt      string
}

// ActionID derives the stable id for an action: its kind, the document
// kind it belongs to, and its position in that kind's list.
func ActionID(kind ActionKind, docKind string, ordinal int) string {
	return fmt.Sprintf("%s-%s-%d", kind, docKind, ordinal)
}

// rawFromAny converts a settings-tree action list ([]any of maps) into
// raw actions. The whole list is rejected on the first malformed entry.
func rawFromAny(value []any) ([]RawAction, error) {
	actions := make([]RawAction, 0, len(value))
	for i, item := range value {
		entry, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("action %d: expected an object", i)
		}

		var raw RawAction
		for field, dst := range map[string]*string{
			"title":       &raw.Title,
			"description": &raw.Description,
			"prompt":      &raw.Prompt,
		} {
			s, ok := entry[field].(string)
			if !ok || strings.TrimSpace(s) == "" {
				return nil, fmt.Errorf("action %d: missing or empty %s", i, field)
			}
			*dst = s
		}
		actions = append(actions, raw)
	}
	return actions, nil
}
