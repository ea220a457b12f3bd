package storage

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain name", "vase.png", "vase.png"},
		{"spaces become underscores", "my vase.png", "my_vase.png"},
		{"unix path stripped", "/etc/passwd", "passwd"},
		{"relative path stripped", "../../secret.png", "secret.png"},
		{"windows path stripped", `C:\Users\me\photo.jpg`, "photo.jpg"},
		{"unsafe characters dropped", "va<se>?.png", "vase.png"},
		{"leading dots trimmed", "...hidden.png", "hidden.png"},
		{"only dots", "...", ""},
		{"empty", "", ""},
		{"unicode dropped", "café.png", "caf.png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeFilename(tt.input); got != tt.want {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// Property: sanitized names never contain path separators or characters
// outside the safe set, whatever the input.
func TestProperty_SanitizedNamesAreSafe(t *testing.T) {
	properties := gopter.NewProperties(nil)

	safe := func(r rune) bool {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return true
		case r == '.' || r == '-' || r == '_':
			return true
		}
		return false
	}

	properties.Property("output contains only safe characters", prop.ForAll(
		func(input string) bool {
			cleaned := SanitizeFilename(input)
			if strings.ContainsAny(cleaned, "/\\") {
				t.Logf("FAIL: path separator survived in %q", cleaned)
				return false
			}
			for _, r := range cleaned {
				if !safe(r) {
					t.Logf("FAIL: unsafe rune %q in %q", r, cleaned)
					return false
				}
			}
			return true
		},
		gen.AnyString(),
	))

	properties.Property("sanitization is idempotent", prop.ForAll(
		func(input string) bool {
			once := SanitizeFilename(input)
			return SanitizeFilename(once) == once
		},
		gen.AnyString(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
