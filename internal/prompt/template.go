// Package prompt loads and fills the decision prompt template.
package prompt

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
)

//go:embed default.md
var defaultTemplate string

// outputMarker splits the template so gameplay frames can sit between
// the context half and the output instructions.
const outputMarker = "**Output:**"

// Template is a decision prompt in two halves. Context carries the game
// description and history placeholders; Output carries the response
// format instructions.
type Template struct {
	Context string
	Output  string
}

// Default returns the built-in template.
func Default() *Template {
	return split(defaultTemplate)
}

// Load reads a template from path, or returns the default when path is
// empty.
func Load(path string) (*Template, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompt template: %w", err)
	}
	return split(string(data)), nil
}

func split(text string) *Template {
	before, after, found := strings.Cut(text, outputMarker)
	if !found {
		return &Template{Context: text}
	}
	return &Template{
		Context: strings.TrimSpace(before),
		Output:  strings.TrimSpace(outputMarker + after),
	}
}

// Fill carries the per-cycle values substituted into the template.
type Fill struct {
	GameDescription  string
	GameControls     string
	Scratchpad       string
	PreviousActions  string
	AvailableActions []string
}

// Render substitutes the placeholders in both halves.
func (t *Template) Render(f Fill) (contextText, outputText string) {
	scratchpad := f.Scratchpad
	if scratchpad == "" {
		scratchpad = "(empty, this is your first decision)"
	}
	previous := f.PreviousActions
	if previous == "" {
		previous = "(none yet)"
	}

	replacer := strings.NewReplacer(
		"{GAME_DESCRIPTION}", f.GameDescription,
		"{GAME_CONTROL}", f.GameControls,
		"{SCRATCHPAD}", scratchpad,
		"{PREVIOUS_ACTIONS_FRAMES}", previous,
		"{AVAILABLE_ACTIONS}", strings.Join(f.AvailableActions, ", "),
	)
	return replacer.Replace(t.Context), replacer.Replace(t.Output)
}
