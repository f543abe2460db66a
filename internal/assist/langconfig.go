// Package assist resolves writing-assistance configuration and derives
// the invocable action catalog.
//
// Values merge three sources, highest precedence first: a project-local
// override file, the settings tree (optionally narrowed per document
// kind), and the built-in defaults. Resolution never fails for a missing
// value; a malformed override file degrades to the settings value with a
// surfaced diagnostic.
package assist

// DefaultKey is the fallback entry present in every LanguageConfig.
const DefaultKey = "default"

// LanguageConfig maps document kinds to a value, with a guaranteed
// "default" entry.
type LanguageConfig[T any] map[string]T

// NewLanguageConfig creates a config holding only the default entry.
func NewLanguageConfig[T any](def T) LanguageConfig[T] {
	return LanguageConfig[T]{DefaultKey: def}
}

// Resolve returns the entry for the document kind, or the default entry.
func (c LanguageConfig[T]) Resolve(kind string) T {
	if v, ok := c[kind]; ok {
		return v
	}
	return c[DefaultKey]
}

// Kinds returns the non-default document kinds present in the config.
func (c LanguageConfig[T]) Kinds() []string {
	var kinds []string
	for k := range c {
		if k != DefaultKey {
			kinds = append(kinds, k)
		}
	}
	return kinds
}
