package tui

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// minDetailWrap is the narrowest wrap width used for task descriptions.
const minDetailWrap = 24

// markdownRenderer renders task descriptions for the detail overlay.
// The glamour renderer is rebuilt only when the wrap width changes, and the
// last rendered description is cached since View runs on every message.
type markdownRenderer struct {
	width    int
	renderer *glamour.TermRenderer

	lastSource string
	lastOutput string
}

// render converts a markdown description into ANSI-styled text wrapped at width.
// Rendering failures fall back to the trimmed source.
func (r *markdownRenderer) render(source string, width int) string {
	source = strings.TrimSpace(source)
	if source == "" {
		return ""
	}
	width = max(width, minDetailWrap)
	if r.renderer != nil && r.width == width && r.lastSource == source {
		return r.lastOutput
	}

	if r.renderer == nil || r.width != width {
		renderer, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle("dark"),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			return source
		}
		r.renderer = renderer
		r.width = width
	}

	out, err := r.renderer.Render(source)
	if err != nil {
		return source
	}
	r.lastSource = source
	r.lastOutput = strings.Trim(out, "\n")
	return r.lastOutput
}
