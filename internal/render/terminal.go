package render

import (
	"fmt"

	"github.com/charmbracelet/glamour"
)

// Terminal styles rendered markdown for printing to a terminal.
func Terminal(markdown []byte, width int) (string, error) {
	if width <= 0 {
		width = 80
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create terminal renderer: %w", err)
	}

	out, err := renderer.RenderBytes(markdown)
	if err != nil {
		return "", fmt.Errorf("failed to render for terminal: %w", err)
	}
	return string(out), nil
}
