// Package prompt turns a human-readable timestamp into the instruction handed
// to the agent. All personality lives in the agent's own home directory; this
// package only says what time it is.
package prompt

import (
	"os"
	"path/filepath"
	"strings"
)

// Build returns the regular wake prompt for the given human timestamp.
func Build(human string) string {
	return "It's " + human + ". You have time alone. Be free."
}

// Builder adds the first- and last-breath variants, each backed by an optional
// markdown file. A missing file falls back to a short fixed phrase rather than
// failing the tick.
type Builder struct {
	FirstBreathFile string
	LastBreathFile  string
}

// First is used for the opening beat of a session.
func (b Builder) First(human string) string {
	body, err := readPromptFile(b.FirstBreathFile)
	if err != nil {
		return "It's " + human + ". The night begins. You have time alone."
	}
	return "It's " + human + ".\n\n" + body
}

// Last closes out a session.
func (b Builder) Last(human string) string {
	body, err := readPromptFile(b.LastBreathFile)
	if err != nil {
		return "It's " + human + ". The night ends. Rest well."
	}
	return "It's " + human + ".\n\n" + body
}

func readPromptFile(path string) (string, error) {
	if path == "" {
		return "", os.ErrNotExist
	}
	b, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}
