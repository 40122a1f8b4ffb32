package cli

import (
	"runtime"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	telemetry "github.com/ekristen/go-flowtel"
)

const (
	otelModule   = "go.opentelemetry.io/otel"
	notInstalled = "Not installed"
)

type reportEntry struct {
	Key   string
	Value string
}

func (a *App) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Get the current flowctl version",
		Args:  cobra.NoArgs,
		RunE: a.instrument(func(*cobra.Command, []string) error {
			a.console.Print(renderReport(a.console.Renderer(), a.versionReport()))
			return nil
		}),
	}
}

func (a *App) versionReport() []reportEntry {
	return []reportEntry{
		{Key: "Version", Value: a.Version},
		{Key: "Framework version", Value: telemetry.Version},
		{Key: "Go version", Value: runtime.Version()},
		{Key: "OS/Arch", Value: runtime.GOOS + "/" + runtime.GOARCH},
		{Key: "Profile", Value: a.profile.Name},
		{Key: "OpenTelemetry version", Value: a.moduleVersion(otelModule)},
	}
}

// moduleVersion looks path up in the binary's build info.
func (a *App) moduleVersion(path string) string {
	if a.BuildInfo == nil {
		return notInstalled
	}
	info, ok := a.BuildInfo()
	if !ok || info == nil {
		return notInstalled
	}
	for _, dep := range info.Deps {
		if dep.Path != path {
			continue
		}
		if dep.Replace != nil && dep.Replace.Version != "" {
			return dep.Replace.Version
		}
		return dep.Version
	}
	return notInstalled
}

// renderReport lines up the values of entries in one column.
func renderReport(r *lipgloss.Renderer, entries []reportEntry) string {
	width := 0
	for _, e := range entries {
		width = max(width, lipgloss.Width(e.Key)+1)
	}

	key := r.NewStyle().Bold(true).Width(width + 1)
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, key.Render(e.Key+":")+e.Value)
	}
	return strings.Join(lines, "\n")
}
