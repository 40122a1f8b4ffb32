package zerolog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

const (
	colorCyan     = 36
	colorBold     = 1
	colorDarkGray = 90
)

// colorize wraps s in ANSI code c unless disabled or NO_COLOR is set.
func colorize(s interface{}, c int, disabled bool) string {
	if disabled || c == 0 || os.Getenv("NO_COLOR") != "" {
		return fmt.Sprintf("%v", s)
	}
	return fmt.Sprintf("\x1b[%dm%v\x1b[0m", c, s)
}

func formatCaller(noColor bool) zerolog.Formatter {
	return func(i interface{}) string {
		c, _ := i.(string)
		if c != "" {
			if cwd, err := os.Getwd(); err == nil {
				if rel, err := filepath.Rel(cwd, c); err == nil {
					c = rel
				}
			}
			c = colorize(c, colorBold, noColor)
		}
		return fmt.Sprintf("%-36s", c) + colorize(" >", colorCyan, noColor)
	}
}

func formatTimestamp(noColor bool) zerolog.Formatter {
	return func(i interface{}) string {
		s, ok := i.(string)
		if !ok {
			return colorize("<nil>", colorDarkGray, noColor)
		}
		ts, err := time.Parse(zerolog.TimeFieldFormat, s)
		if err != nil {
			return colorize(s, colorDarkGray, noColor)
		}
		return colorize(ts.Local().Format(time.TimeOnly), colorDarkGray, noColor)
	}
}

// NewConsoleWriter returns a human readable writer on out (stdout when nil).
func NewConsoleWriter(out io.Writer, enableColor bool) zerolog.ConsoleWriter {
	if out == nil {
		out = os.Stdout
	}
	return zerolog.ConsoleWriter{
		Out:             out,
		NoColor:         !enableColor,
		FormatLevel:     func(i interface{}) string { return fmt.Sprintf("| %-6s|", i) },
		FormatCaller:    formatCaller(!enableColor),
		FormatTimestamp: formatTimestamp(!enableColor),
	}
}
