package render

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/joss/gamepilot/internal/domain"
)

var (
	userPanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("39")).
			Padding(0, 1)

	assistantPanelStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("205")).
				Padding(0, 1)

	panelTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Bold(true)
)

// maxPanelChars keeps long prompts from flooding the terminal.
const maxPanelChars = 2000

// Panels renders model traffic as bordered boxes when the output is a
// terminal, plain labelled text otherwise.
type Panels struct {
	out   io.Writer
	tty   bool
	width int
}

// NewPanels builds a renderer for stdout.
func NewPanels() *Panels {
	p := &Panels{out: os.Stdout}
	fd := int(os.Stdout.Fd())
	if term.IsTerminal(fd) {
		p.tty = true
		if w, _, err := term.GetSize(fd); err == nil && w > 20 {
			p.width = w - 4
		}
	}
	return p
}

// Exchange prints one side of a model conversation. Satisfies the
// episode controller's ExchangeFunc.
func (p *Panels) Exchange(role domain.Role, text string) {
	text = strings.TrimSpace(text)
	if len(text) > maxPanelChars {
		text = text[:maxPanelChars] + "\n...[truncated]"
	}

	if !p.tty {
		label := color.CyanString(">> %s", role)
		if role == domain.RoleAssistant {
			label = color.MagentaString("<< %s", role)
		}
		fmt.Fprintf(p.out, "%s\n%s\n\n", label, text)
		return
	}

	style := userPanelStyle
	title := "you"
	if role == domain.RoleAssistant {
		style = assistantPanelStyle
		title = "model"
	}
	if p.width > 0 {
		style = style.Width(p.width)
	}

	fmt.Fprintln(p.out, panelTitleStyle.Render(title))
	fmt.Fprintln(p.out, style.Render(text))
}
