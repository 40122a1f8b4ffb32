package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	telemetry "github.com/ekristen/go-flowtel"
	"github.com/ekristen/go-flowtel/internal/profile"
	logruslogger "github.com/ekristen/go-flowtel/logger/logrus"
	zaplogger "github.com/ekristen/go-flowtel/logger/zap"
	zerologger "github.com/ekristen/go-flowtel/logger/zerolog"
	"github.com/ekristen/go-flowtel/telemetrytest"
)

const testProfiles = `
profiles:
  default: {}
  dev:
    logging_level: debug
    cli_prompt: false
  quiet:
    test_mode: true
    logging_level: debug
  broken:
    logging_backend: log4j
`

type testApp struct {
	*App
	out     *bytes.Buffer
	err     *bytes.Buffer
	harness *telemetrytest.Harness
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(key, profile.EnvPrefix) {
			t.Setenv(key, "")
			os.Unsetenv(key)
		}
	}
}

func newTestApp(t *testing.T, profiles string) *testApp {
	t.Helper()
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "profiles.yaml")
	if profiles != "" {
		require.NoError(t, os.WriteFile(path, []byte(profiles), 0o600))
	}

	h := telemetrytest.NewT(t)
	tc := h.Context()

	ta := &testApp{
		App:     New("1.2.3"),
		out:     &bytes.Buffer{},
		err:     &bytes.Buffer{},
		harness: h,
	}
	ta.Out = ta.out
	ta.Err = ta.err
	ta.ProfilesPath = path
	ta.Telemetry = &tc
	ta.Interactive = func() bool { return false }
	ta.BuildInfo = func() (*debug.BuildInfo, bool) {
		return &debug.BuildInfo{Deps: []*debug.Module{
			{Path: "github.com/spf13/cobra", Version: "v1.9.1"},
			{Path: otelModule, Version: "v1.39.0"},
		}}, true
	}
	return ta
}

func (ta *testApp) run(args ...string) int {
	return ta.Run(context.Background(), args)
}

func reportValue(t *testing.T, out, key string) string {
	t.Helper()
	for _, line := range strings.Split(out, "\n") {
		if rest, ok := strings.CutPrefix(line, key+":"); ok {
			return strings.TrimSpace(rest)
		}
	}
	t.Fatalf("no %q line in:\n%s", key, out)
	return ""
}

func TestRun_NoArgsPrintsHelp(t *testing.T) {
	app := newTestApp(t, "")

	assert.Equal(t, 0, app.run())
	assert.Contains(t, app.out.String(), "Usage:")
	assert.Contains(t, app.out.String(), "version")
	app.harness.AssertSpanCount(t, 0)
}

func TestRun_VersionFlag(t *testing.T) {
	for _, flag := range []string{"-v", "--version"} {
		t.Run(flag, func(t *testing.T) {
			// The flag is handled before profiles load, so an unknown profile
			// does not matter.
			app := newTestApp(t, "")

			assert.Equal(t, 0, app.run(flag, "--profile", "missing"))
			assert.Equal(t, telemetry.Version+"\n", app.out.String())
			assert.Empty(t, app.err.String())
			app.harness.AssertSpanCount(t, 0)
		})
	}
}

func TestRun_VersionCommand(t *testing.T) {
	app := newTestApp(t, "")

	require.Equal(t, 0, app.run("version"), app.err.String())

	out := app.out.String()
	assert.Equal(t, "1.2.3", reportValue(t, out, "Version"))
	assert.Equal(t, telemetry.Version, reportValue(t, out, "Framework version"))
	assert.Equal(t, runtime.Version(), reportValue(t, out, "Go version"))
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, reportValue(t, out, "OS/Arch"))
	assert.Equal(t, profile.DefaultName, reportValue(t, out, "Profile"))
	assert.Equal(t, "v1.39.0", reportValue(t, out, "OpenTelemetry version"))

	var keys []string
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		key, _, _ := strings.Cut(line, ":")
		keys = append(keys, key)
	}
	assert.Equal(t, []string{
		"Version", "Framework version", "Go version", "OS/Arch", "Profile", "OpenTelemetry version",
	}, keys)
}

func TestRun_VersionCommandTelemetry(t *testing.T) {
	app := newTestApp(t, testProfiles)

	require.Equal(t, 0, app.run("--profile", "dev", "version"), app.err.String())
	require.Equal(t, 0, app.run("version"), app.err.String())

	h := app.harness
	h.AssertSpanCount(t, 2)
	h.AssertSpanAttribute(t, "flowctl version", "flowctl.profile", "dev")

	spans := h.SpansNamed("flowctl version")
	require.Len(t, spans, 2)
	assert.Equal(t, "default", spans[1].Attributes["flowctl.profile"].AsString())
	assert.Equal(t, instrumentationName, spans[0].Scope)

	total, ok := h.Int64Sum(context.Background(), commandCounter)
	require.True(t, ok, "counter %s not collected", commandCounter)
	assert.Equal(t, int64(2), total)
}

func TestRun_ProfileSelection(t *testing.T) {
	tests := []struct {
		name string
		args []string
		env  string
		want string
	}{
		{name: "default", args: []string{"version"}, want: "default"},
		{name: "flag", args: []string{"-p", "dev", "version"}, want: "dev"},
		{name: "long flag after command", args: []string{"version", "--profile", "dev"}, want: "dev"},
		{name: "environment", args: []string{"version"}, env: "dev", want: "dev"},
		{name: "flag beats environment", args: []string{"-p", "default", "version"}, env: "dev", want: "default"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(t, testProfiles)
			if tt.env != "" {
				t.Setenv(profile.EnvProfile, tt.env)
			}

			require.Equal(t, 0, app.run(tt.args...), app.err.String())
			assert.Equal(t, tt.want, reportValue(t, app.out.String(), "Profile"))
		})
	}
}

func TestRun_UnknownProfile(t *testing.T) {
	app := newTestApp(t, testProfiles)

	assert.Equal(t, 1, app.run("--profile", "nope", "version"))
	assert.Equal(t, "Unknown profile \"nope\".\n", app.err.String())
	assert.Empty(t, app.out.String())
	app.harness.AssertSpanCount(t, 0)
}

func TestRun_InvalidSettings(t *testing.T) {
	app := newTestApp(t, testProfiles)

	assert.Equal(t, 1, app.run("-p", "broken", "version"))
	assert.Contains(t, app.err.String(), "Error: ")
	assert.Contains(t, app.err.String(), profile.ErrInvalidSetting.Error())
}

func TestRun_UnknownCommand(t *testing.T) {
	app := newTestApp(t, "")

	assert.Equal(t, 1, app.run("frobnicate"))
	assert.Contains(t, app.err.String(), "unknown command")
}

func TestRun_Prompt(t *testing.T) {
	tests := []struct {
		name        string
		profiles    string
		args        []string
		interactive bool
		want        bool
	}{
		{name: "terminal decides", interactive: true, want: true},
		{name: "no terminal", interactive: false, want: false},
		{name: "setting beats terminal", profiles: testProfiles, args: []string{"-p", "dev"}, interactive: true, want: false},
		{name: "flag beats setting", profiles: testProfiles, args: []string{"-p", "dev", "--prompt"}, want: true},
		{name: "no-prompt beats terminal", args: []string{"--no-prompt"}, interactive: true, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(t, tt.profiles)
			app.Interactive = func() bool { return tt.interactive }

			require.Equal(t, 0, app.run(append(tt.args, "version")...), app.err.String())
			require.NotNil(t, app.console)
			assert.Equal(t, tt.want, app.console.Prompt())
		})
	}
}

func TestRun_PromptFlagsExclusive(t *testing.T) {
	app := newTestApp(t, "")

	assert.Equal(t, 1, app.run("--prompt", "--no-prompt", "version"))
	assert.Contains(t, app.err.String(), "prompt")
}

func TestRun_WrapLines(t *testing.T) {
	app := newTestApp(t, "")
	t.Setenv("FLOWCTL_CLI_WRAP_LINES", "false")

	require.Equal(t, 0, app.run("version"), app.err.String())
	assert.False(t, app.console.SoftWrap())
}

func TestRun_Logging(t *testing.T) {
	t.Run("debug profile logs setup", func(t *testing.T) {
		app := newTestApp(t, testProfiles)

		require.Equal(t, 0, app.run("-p", "dev", "version"))
		assert.Contains(t, app.err.String(), "cli configured")
	})

	t.Run("test mode skips logging", func(t *testing.T) {
		app := newTestApp(t, testProfiles)

		require.Equal(t, 0, app.run("-p", "quiet", "version"))
		assert.Empty(t, app.err.String())
	})
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		backend string
		want    any
	}{
		{backend: "zerolog", want: &zerologger.Logger{}},
		{backend: "zap", want: &zaplogger.Logger{}},
		{backend: "logrus", want: &logruslogger.Logger{}},
	}

	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			settings := profile.DefaultSettings()
			settings.LoggingBackend = tt.backend
			settings.LoggingLevel = "warn"

			var buf bytes.Buffer
			l := newLogger(settings, &buf, Name, "1.2.3")
			assert.IsType(t, tt.want, l)

			l.Info().Msg("hidden")
			l.Warn().Msg("shown")
			assert.NotContains(t, buf.String(), "hidden")
			assert.Contains(t, buf.String(), "shown")
		})
	}
}

func TestModuleVersion(t *testing.T) {
	tests := []struct {
		name string
		info func() (*debug.BuildInfo, bool)
		want string
	}{
		{
			name: "listed",
			info: func() (*debug.BuildInfo, bool) {
				return &debug.BuildInfo{Deps: []*debug.Module{{Path: otelModule, Version: "v1.39.0"}}}, true
			},
			want: "v1.39.0",
		},
		{
			name: "replaced",
			info: func() (*debug.BuildInfo, bool) {
				return &debug.BuildInfo{Deps: []*debug.Module{{
					Path: otelModule, Version: "v1.39.0",
					Replace: &debug.Module{Path: "example.com/otel", Version: "v1.39.1"},
				}}}, true
			},
			want: "v1.39.1",
		},
		{
			name: "missing",
			info: func() (*debug.BuildInfo, bool) { return &debug.BuildInfo{}, true },
			want: notInstalled,
		},
		{
			name: "no build info",
			info: func() (*debug.BuildInfo, bool) { return nil, false },
			want: notInstalled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := &App{BuildInfo: tt.info}
			assert.Equal(t, tt.want, app.moduleVersion(otelModule))
		})
	}
}

func TestRenderReport(t *testing.T) {
	r := lipgloss.NewRenderer(&bytes.Buffer{})
	out := renderReport(r, []reportEntry{
		{Key: "A", Value: "one"},
		{Key: "Longer key", Value: "two"},
	})

	lines := strings.Split(out, "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "A:          one", lines[0])
	assert.Equal(t, "Longer key: two", lines[1])
}
