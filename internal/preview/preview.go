// Package preview renders prompts for the terminal.
package preview

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/ansi"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"
)

const (
	minWidth = 40
	maxWidth = 120
)

var methodColors = map[string]lipgloss.Color{
	"GET":    lipgloss.Color("#3B82F6"),
	"POST":   lipgloss.Color("#10B981"),
	"PUT":    lipgloss.Color("#F97316"),
	"DELETE": lipgloss.Color("#EF4444"),
	"PATCH":  lipgloss.Color("#EAB308"),
}

var badgeBase = lipgloss.NewStyle().Bold(true).Padding(0, 1).Foreground(lipgloss.Color("#111827"))

// Render formats a prompt as terminal markdown wrapped at width. Plain
// selects the style without colors, for pipes and tests.
func Render(text string, width int, plain bool) (string, error) {
	if width < minWidth {
		width = minWidth
	}
	if width > maxWidth {
		width = maxWidth
	}
	style := styles.DraculaStyleConfig
	if plain {
		style = styles.NoTTYStyleConfig
	} else {
		style.Code = ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{Color: strPtr("229"), BackgroundColor: strPtr("")},
		}
	}
	r, err := glamour.NewTermRenderer(glamour.WithStyles(style), glamour.WithWordWrap(width))
	if err != nil {
		return "", fmt.Errorf("preview: renderer: %w", err)
	}
	out, err := r.Render(text)
	if err != nil {
		return "", fmt.Errorf("preview: render: %w", err)
	}
	return out, nil
}

// MethodBadge returns the method label in its color. Unknown methods are
// shown in gray.
func MethodBadge(method string) string {
	method = strings.ToUpper(method)
	color, ok := methodColors[method]
	if !ok {
		color = lipgloss.Color("#9CA3AF")
	}
	return badgeBase.Background(color).Render(method)
}

// Line formats one endpoint row for listings.
func Line(method, path, title string) string {
	return fmt.Sprintf("%s %s  %s", MethodBadge(method), path, lipgloss.NewStyle().Faint(true).Render(title))
}

func strPtr(s string) *string { return &s }
