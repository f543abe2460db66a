package override

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/quillworks/quill/internal/config/registry"
)

// ErrExists is returned by Scaffold when a target file already exists and
// force was not set.
type ErrExists struct {
	Path string
}

func (e *ErrExists) Error() string {
	return fmt.Sprintf("%s already exists (use force to overwrite)", e.Path)
}

// Scaffold writes the built-in defaults for one override file so the user
// has a starting point to edit. Without force an existing file is left
// alone and ErrExists is returned.
func (s *Store) Scaffold(kind Kind, force bool) error {
	path := s.Path(kind)
	if !force {
		if _, err := os.Stat(path); err == nil {
			return &ErrExists{Path: path}
		}
	}

	var data []byte
	switch kind {
	case KindSystemPrompt:
		data = []byte(registry.DefaultSystemPrompt + "\n")
	case KindQuickFixes:
		var err error
		data, err = marshalActions(registry.DefaultQuickFixes)
		if err != nil {
			return err
		}
	case KindRewriteOptions:
		var err error
		data, err = marshalActions(registry.DefaultRewriteOptions)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown override kind %d", kind)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ScaffoldAll writes defaults for every override file. Existing files are
// skipped unless force is set.
func (s *Store) ScaffoldAll(force bool) error {
	for _, kind := range []Kind{KindSystemPrompt, KindQuickFixes, KindRewriteOptions} {
		if err := s.Scaffold(kind, force); err != nil {
			var exists *ErrExists
			if errors.As(err, &exists) {
				continue
			}
			return err
		}
	}
	return nil
}

func marshalActions(actions []map[string]any) ([]byte, error) {
	data, err := json.MarshalIndent(actions, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
