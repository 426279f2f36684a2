// Package prompt loads the system prompts for the model roles from embedded
// templates, so deployments cannot drift from the reviewed wording.
package prompt

import (
	"embed"
	"fmt"
	"strings"

	contractx "github.com/vendra/salescore/agent/contract"
)

//go:embed template/*.txt
var templates embed.FS

// Role names map one-to-one to template files.
const (
	Interpreter = "interpreter"
	Validator   = "validator"
	Refiner     = "refiner"
	Narrator    = "narrator"
)

// Library holds the loaded prompts keyed by role.
type Library struct {
	prompts map[string]string
}

// Load reads every role template. A missing or empty template is a build
// defect, not a runtime condition.
func Load() (*Library, error) {
	lib := &Library{prompts: map[string]string{}}
	for _, role := range []string{Interpreter, Validator, Refiner, Narrator} {
		raw, err := templates.ReadFile(fmt.Sprintf("template/%s.txt", role))
		if err != nil {
			return nil, fmt.Errorf("%w: %s", contractx.ErrPromptMissing, role)
		}
		text := strings.TrimSpace(string(raw))
		if text == "" {
			return nil, fmt.Errorf("%w: %s is empty", contractx.ErrPromptMissing, role)
		}
		lib.prompts[role] = text
	}
	return lib, nil
}

// Get returns the system prompt for a role.
func (l *Library) Get(role string) (string, error) {
	text, ok := l.prompts[role]
	if !ok {
		return "", fmt.Errorf("%w: %s", contractx.ErrPromptMissing, role)
	}
	return text, nil
}
