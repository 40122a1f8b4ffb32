// Package cli implements the flowctl command line: profile selection,
// console and logging setup, telemetry bootstrap and the commands
// themselves.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	telemetry "github.com/ekristen/go-flowtel"
	"github.com/ekristen/go-flowtel/internal/profile"
	"github.com/ekristen/go-flowtel/logger"
	zerologger "github.com/ekristen/go-flowtel/logger/zerolog"
)

const (
	Name = "flowctl"

	instrumentationName = "github.com/ekristen/go-flowtel/internal/cli"
	commandCounter      = "flowctl.commands"
	shutdownTimeout     = 5 * time.Second
)

// ExitError ends the process with Code after printing Message to stderr.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	return e.Message
}

// App holds the state of one flowctl invocation.
type App struct {
	// Version is the flowctl build version.
	Version string

	Out io.Writer
	Err io.Writer

	// ProfilesPath overrides profile.DefaultPath.
	ProfilesPath string

	// Telemetry replaces the telemetry.New bootstrap when set.
	Telemetry *telemetry.Context
	// Logger replaces the logger built from the profile settings when set.
	Logger logger.Logger

	Interactive func() bool
	BuildInfo   func() (*debug.BuildInfo, bool)

	profileFlag  string
	promptFlag   bool
	noPromptFlag bool

	profile *profile.Profile
	console *Console
	logger  logger.Logger
	tc      telemetry.Context
	tel     *telemetry.Telemetry
}

// New returns an App writing to the process stdout and stderr.
func New(version string) *App {
	return &App{
		Version:     version,
		Out:         os.Stdout,
		Err:         os.Stderr,
		Interactive: Interactive,
		BuildInfo:   debug.ReadBuildInfo,
	}
}

// Command builds the root command. Without a subcommand it prints help.
func (a *App) Command() *cobra.Command {
	root := &cobra.Command{
		Use:   Name,
		Short: "Drive flow runs from the command line",
		// -v/--version prints the framework version before anything else
		// runs, including profile loading.
		Version:           telemetry.Version,
		SilenceErrors:     true,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}
	root.SetOut(a.Out)
	root.SetErr(a.Err)
	root.SetVersionTemplate("{{.Version}}\n")

	root.Flags().BoolP("version", "v", false, "Display the current version.")

	pf := root.PersistentFlags()
	pf.StringVarP(&a.profileFlag, "profile", "p", "", "Select a profile for this CLI run.")
	pf.BoolVar(&a.promptFlag, "prompt", false, "Force prompts on for this CLI run.")
	pf.BoolVar(&a.noPromptFlag, "no-prompt", false, "Force prompts off for this CLI run.")
	root.MarkFlagsMutuallyExclusive("prompt", "no-prompt")

	root.AddCommand(a.versionCommand())
	return root
}

// Run executes args and returns the process exit code.
func (a *App) Run(ctx context.Context, args []string) int {
	cmd := a.Command()
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(ctx)
	a.shutdown(ctx)

	if err == nil {
		return 0
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Message != "" {
			fmt.Fprintln(a.Err, exitErr.Message)
		}
		return exitErr.Code
	}

	fmt.Fprintf(a.Err, "Error: %v\n", err)
	return 1
}

func (a *App) setup(cmd *cobra.Command, _ []string) error {
	path := a.ProfilesPath
	if path == "" {
		var err error
		if path, err = profile.DefaultPath(); err != nil {
			return err
		}
	}

	set, err := profile.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load profiles: %w", err)
	}

	p, err := set.Resolve(a.profileFlag)
	if err != nil {
		var unknown *profile.UnknownProfileError
		if errors.As(err, &unknown) {
			return &ExitError{Code: 1, Message: fmt.Sprintf("Unknown profile %q.", unknown.Name)}
		}
		return err
	}
	a.profile = p

	prompt := a.resolvePrompt(cmd)
	a.console = NewConsole(a.Out, p.Settings.CLIWrapLines, prompt)

	switch {
	case a.Logger != nil:
		a.logger = a.Logger
	case p.Settings.TestMode:
		// Tests configure their own logging and may run the CLI many times
		// per process.
		a.logger = zerologger.Nop()
	default:
		a.logger = newLogger(p.Settings, a.Err, Name, a.Version)
	}

	if err := a.setupTelemetry(cmd.Context()); err != nil {
		return err
	}

	a.logger.Debug().
		Str("profile", p.Name).
		Str("profiles_path", set.Path()).
		Bool("prompt", prompt).
		Bool("soft_wrap", a.console.SoftWrap()).
		Msg("cli configured")

	cmd.SetContext(telemetry.WithContext(cmd.Context(), a.tc))
	return nil
}

// resolvePrompt applies --prompt/--no-prompt, then the cli_prompt setting,
// then terminal detection.
func (a *App) resolvePrompt(cmd *cobra.Command) bool {
	flags := cmd.Flags()
	switch {
	case flags.Changed("no-prompt"):
		return !a.noPromptFlag
	case flags.Changed("prompt"):
		return a.promptFlag
	case a.profile.Settings.CLIPrompt != nil:
		return *a.profile.Settings.CLIPrompt
	case a.Interactive != nil:
		return a.Interactive()
	}
	return false
}

func (a *App) setupTelemetry(ctx context.Context) error {
	if a.Telemetry != nil {
		a.tc = *a.Telemetry
		return nil
	}

	opts := telemetry.DefaultOptions()
	opts.ServiceName = Name
	opts.ServiceVersion = a.Version
	opts.Logger = a.logger

	tel, err := telemetry.New(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	a.tel = tel
	a.tc = tel.Context()
	return nil
}

func (a *App) shutdown(ctx context.Context) {
	if a.tel == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := a.tel.Shutdown(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("telemetry shutdown failed")
	}
	a.tel = nil
}

// instrument wraps a command in a span named after the command path and
// counts the invocation.
func (a *App) instrument(run func(*cobra.Command, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, span := a.tc.Tracer(instrumentationName).Start(cmd.Context(), cmd.CommandPath(),
			trace.WithAttributes(attribute.String("flowctl.profile", a.profile.Name)))
		defer span.End()

		counter, err := a.tc.Meter(instrumentationName).Int64Counter(commandCounter,
			metric.WithDescription("Number of flowctl commands run"))
		if err != nil {
			otel.Handle(err)
		} else {
			counter.Add(ctx, 1, metric.WithAttributes(attribute.String("command", cmd.Name())))
		}

		cmd.SetContext(ctx)
		if err := run(cmd, args); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		return nil
	}
}
