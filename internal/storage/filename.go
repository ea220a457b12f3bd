package storage

import (
	"path/filepath"
	"strings"
)

// SanitizeFilename strips path components and unsafe characters from an
// uploaded filename so it can be stored and echoed back safely. Returns ""
// when nothing usable remains.
func SanitizeFilename(name string) string {
	// Browsers may send Windows-style paths; normalize before Base.
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}

	cleaned := strings.Trim(b.String(), "._")
	if cleaned == "" {
		return ""
	}
	return cleaned
}
