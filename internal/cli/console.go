package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/term"
	"github.com/mattn/go-isatty"
)

// Console writes user facing output. Logging goes through logger.Logger;
// the console is for results and prompts.
type Console struct {
	out      io.Writer
	renderer *lipgloss.Renderer

	softWrap bool
	prompt   bool
	width    int
}

// NewConsole builds a console on out. With softWrap off, lines are hard
// wrapped at the terminal width when one can be determined.
func NewConsole(out io.Writer, softWrap, prompt bool) *Console {
	c := &Console{
		out:      out,
		renderer: lipgloss.NewRenderer(out),
		softWrap: softWrap,
		prompt:   prompt,
	}
	if f, ok := out.(*os.File); ok && !softWrap {
		if w, _, err := term.GetSize(f.Fd()); err == nil {
			c.width = w
		}
	}
	return c
}

// Interactive reports whether both stdin and stdout are terminals.
func Interactive() bool {
	return isTerminal(os.Stdin) && isTerminal(os.Stdout)
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Prompt reports whether the console may ask the user questions.
func (c *Console) Prompt() bool { return c.prompt }

// SoftWrap reports whether long lines are left to the terminal.
func (c *Console) SoftWrap() bool { return c.softWrap }

func (c *Console) Renderer() *lipgloss.Renderer { return c.renderer }

// Print writes s followed by a newline.
func (c *Console) Print(s string) {
	if !c.softWrap && c.width > 0 {
		s = c.renderer.NewStyle().Width(c.width).Render(s)
	}
	fmt.Fprintln(c.out, s)
}
