// Package prompts supplies raw prompt template text and helper line pools,
// keyed by theme id and prompt key. Theme-scoped assets shadow the shared
// master assets; absent entries are reported as error-prefixed sentinel
// strings rather than error values.
package prompts

import (
	"embed"
	"strings"
)

//go:embed assets
var assetFS embed.FS

// ErrorPrefix marks sentinel strings returned for missing or invalid assets.
const ErrorPrefix = "ERROR:"

// IsError reports whether a lookup result is a sentinel rather than usable text.
func IsError(s string) bool {
	return strings.HasPrefix(s, ErrorPrefix)
}

// Store resolves templates and helper assets.
type Store struct{}

// NewStore returns a store over the embedded assets.
func NewStore() *Store {
	return &Store{}
}

// Template returns the raw template text for a theme and prompt key, falling
// back from the theme directory to master. A missing template yields a
// sentinel error string.
func (s *Store) Template(themeID, key string) string {
	for _, dir := range []string{themeID, "master"} {
		data, err := assetFS.ReadFile("assets/" + dir + "/" + key + ".txt")
		if err == nil && len(strings.TrimSpace(string(data))) > 0 {
			return string(data)
		}
	}
	return ErrorPrefix + " template not found: " + key
}

// HasTemplate reports whether a valid template exists for the key.
func (s *Store) HasTemplate(themeID, key string) bool {
	return !IsError(s.Template(themeID, key))
}

// HelperLines returns the non-empty lines of a helper asset, theme-scoped
// with master fallback. A missing asset yields nil.
func (s *Store) HelperLines(themeID, key string) []string {
	for _, dir := range []string{themeID, "master"} {
		data, err := assetFS.ReadFile("assets/" + dir + "/helpers/" + key + ".txt")
		if err != nil {
			continue
		}
		var lines []string
		for _, line := range strings.Split(string(data), "\n") {
			if trimmed := strings.TrimSpace(line); trimmed != "" {
				lines = append(lines, trimmed)
			}
		}
		if len(lines) > 0 {
			return lines
		}
	}
	return nil
}
