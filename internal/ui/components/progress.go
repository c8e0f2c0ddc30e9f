package components

import (
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/adaptest/internal/irt"
	"github.com/abhisek/adaptest/internal/ui/theme"
)

// AbilityBar draws a theta estimate on the [-3, 3] scale with its
// standard error band.
type AbilityBar struct {
	Theta         float64
	StandardError float64
	Width         int
}

// NewAbilityBar creates a bar of the given width.
func NewAbilityBar(theta, se float64, width int) AbilityBar {
	return AbilityBar{Theta: theta, StandardError: se, Width: width}
}

// cell maps theta to a column of a bar with n cells.
func cell(theta float64, n int) int {
	frac := (irt.ClampTheta(theta) - irt.MinTheta) / (irt.MaxTheta - irt.MinTheta)
	c := int(frac * float64(n-1))
	if c < 0 {
		return 0
	}
	if c > n-1 {
		return n - 1
	}
	return c
}

// View renders the bar.
func (b AbilityBar) View() string {
	n := b.Width
	if n < 8 {
		n = 8
	}
	lo := cell(b.Theta-b.StandardError, n)
	hi := cell(b.Theta+b.StandardError, n)
	at := cell(b.Theta, n)

	color := theme.Secondary
	if b.Theta < 0 {
		color = theme.Accent
	}

	var sb strings.Builder
	for i := 0; i < n; i++ {
		switch {
		case i == at:
			sb.WriteString(lipgloss.NewStyle().Foreground(color).Bold(true).Render("●"))
		case i >= lo && i <= hi:
			sb.WriteString(lipgloss.NewStyle().Foreground(color).Render("━"))
		default:
			sb.WriteString(lipgloss.NewStyle().Foreground(theme.Border).Render("─"))
		}
	}
	return sb.String()
}
