// Package override reads project-level configuration override files.
//
// A .quill directory may carry a systemPrompt.md and quickFixes.json /
// rewriteOptions.json. When present and well formed, these files take
// precedence over the corresponding settings. A malformed file is reported
// and ignored so the settings value stays in effect.
package override

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"
)

// Override file names inside the config directory.
const (
	SystemPromptFile   = "systemPrompt.md"
	QuickFixesFile     = "quickFixes.json"
	RewriteOptionsFile = "rewriteOptions.json"
)

// Kind identifies which override file a change or error concerns.
type Kind int

const (
	KindSystemPrompt Kind = iota
	KindQuickFixes
	KindRewriteOptions
)

// String returns the override file name for the kind.
func (k Kind) String() string {
	switch k {
	case KindSystemPrompt:
		return SystemPromptFile
	case KindQuickFixes:
		return QuickFixesFile
	case KindRewriteOptions:
		return RewriteOptionsFile
	default:
		return "unknown"
	}
}

// Entry is one action definition from an override file.
type Entry struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Prompt      string `json:"prompt"`
}

// ValidationError describes a malformed override file.
type ValidationError struct {
	Kind    Kind
	Path    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// Store reads override files from a configuration directory.
type Store struct {
	dir string
}

// NewStore creates a store rooted at the given directory.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the configuration directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the absolute path of an override file.
func (s *Store) Path(kind Kind) string {
	return filepath.Join(s.dir, kind.String())
}

// SystemPrompt returns the override prompt text. The second return is false
// when no override file exists. A file of only whitespace counts as absent.
func (s *Store) SystemPrompt() (string, bool, error) {
	data, err := os.ReadFile(s.Path(KindSystemPrompt))
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, err
	}

	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", false, nil
	}
	return text, true, nil
}

// QuickFixes returns the override quick-fix actions, if the file exists.
func (s *Store) QuickFixes() ([]Entry, bool, error) {
	return s.entries(KindQuickFixes)
}

// RewriteOptions returns the override rewrite actions, if the file exists.
func (s *Store) RewriteOptions() ([]Entry, bool, error) {
	return s.entries(KindRewriteOptions)
}

// entries reads and validates one of the JSON action files.
func (s *Store) entries(kind Kind) ([]Entry, bool, error) {
	path := s.Path(kind)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}

	entries, err := ParseEntries(data)
	if err != nil {
		return nil, true, &ValidationError{Kind: kind, Path: path, Message: err.Error()}
	}
	return entries, true, nil
}

// ParseEntries validates and decodes an action override document. The
// document must be a JSON array of objects with non-empty title,
// description, and prompt strings. One bad entry rejects the whole file.
func ParseEntries(data []byte) ([]Entry, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid JSON")
	}

	doc := gjson.ParseBytes(data)
	if !doc.IsArray() {
		return nil, fmt.Errorf("expected a JSON array of actions")
	}

	var entries []Entry
	var parseErr error
	doc.ForEach(func(_, item gjson.Result) bool {
		i := len(entries)
		if !item.IsObject() {
			parseErr = fmt.Errorf("action %d: expected an object", i)
			return false
		}

		for _, field := range []string{"title", "description", "prompt"} {
			v := item.Get(field)
			if v.Type != gjson.String || strings.TrimSpace(v.String()) == "" {
				parseErr = fmt.Errorf("action %d: missing or empty %s", i, field)
				return false
			}
		}

		entries = append(entries, Entry{
			Title:       item.Get("title").String(),
			Description: item.Get("description").String(),
			Prompt:      item.Get("prompt").String(),
		})
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}

	return entries, nil
}
