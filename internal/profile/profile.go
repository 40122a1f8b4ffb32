// Package profile loads named settings profiles for flowctl.
//
// Profiles live in a YAML file:
//
//	active: dev
//	profiles:
//	  default: {}
//	  dev:
//	    logging_level: debug
//	    cli_prompt: false
//
// Settings resolve as defaults < profile < FLOWCTL_* environment. When a
// profile is picked explicitly (the --profile flag) the profile wins over the
// environment instead.
package profile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/ekristen/go-flowtel/logger"
)

const (
	// DefaultName is the profile used when nothing else selects one. It always
	// exists, even when the file does not define it.
	DefaultName = "default"

	EnvPrefix       = "FLOWCTL_"
	EnvProfile      = EnvPrefix + "PROFILE"
	EnvProfilesPath = EnvPrefix + "PROFILES_PATH"

	maxFileSize = 1024 * 1024
)

var (
	ErrUnknownProfile = errors.New("unknown profile")
	ErrInvalidSetting = errors.New("invalid setting")
)

// UnknownProfileError names a profile that is not in the file. It matches
// ErrUnknownProfile with errors.Is.
type UnknownProfileError struct {
	Name string
}

func (e *UnknownProfileError) Error() string {
	return fmt.Sprintf("%s %q", ErrUnknownProfile, e.Name)
}

func (e *UnknownProfileError) Is(target error) bool {
	return target == ErrUnknownProfile
}

// Backends accepted by logging_backend.
var Backends = []string{"zerolog", "zap", "logrus"}

// Settings are the values a profile can carry.
type Settings struct {
	// CLIPrompt forces interactive prompts on or off. Nil means decide from
	// the terminal.
	CLIPrompt      *bool  `koanf:"cli_prompt"`
	CLIWrapLines   bool   `koanf:"cli_wrap_lines"`
	TestMode       bool   `koanf:"test_mode"`
	LoggingLevel   string `koanf:"logging_level"`
	LoggingBackend string `koanf:"logging_backend"`
}

func DefaultSettings() Settings {
	return Settings{
		CLIWrapLines:   true,
		LoggingLevel:   "info",
		LoggingBackend: "zerolog",
	}
}

// Level parses LoggingLevel. Validate has already rejected bad names.
func (s Settings) Level() logger.Level {
	level, _ := logger.ParseLevel(s.LoggingLevel)
	return level
}

func (s Settings) Validate() error {
	if _, ok := logger.ParseLevel(s.LoggingLevel); !ok {
		return fmt.Errorf("%w: logging_level %q", ErrInvalidSetting, s.LoggingLevel)
	}
	if !slices.Contains(Backends, s.LoggingBackend) {
		return fmt.Errorf("%w: logging_backend %q (supported: %s)", ErrInvalidSetting, s.LoggingBackend, strings.Join(Backends, ", "))
	}
	return nil
}

// Profile is a resolved profile.
type Profile struct {
	Name     string
	Settings Settings
	// Explicit is set when the profile came from Resolve's explicit argument.
	Explicit bool
}

// Set is the parsed contents of a profiles file.
type Set struct {
	path   string
	active string
	k      *koanf.Koanf
}

// DefaultPath returns $FLOWCTL_PROFILES_PATH or ~/.flowctl/profiles.yaml.
func DefaultPath() (string, error) {
	if p := os.Getenv(EnvProfilesPath); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".flowctl", "profiles.yaml"), nil
}

// Load reads the profiles file at path. A missing file yields a set holding
// only the default profile.
func Load(path string) (*Set, error) {
	s := &Set{path: path, k: koanf.New(".")}

	content, err := readFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, err
	}

	if err := s.k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to parse profiles file %s: %w", path, err)
	}
	s.active = s.k.String("active")
	return s, nil
}

func readFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("profiles path %s is a directory", path)
	}
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("profiles file %s exceeds %d bytes", path, maxFileSize)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profiles file: %w", err)
	}
	return content, nil
}

// Path is where the set was loaded from.
func (s *Set) Path() string { return s.path }

// Active is the profile named by the file's active key, or "".
func (s *Set) Active() string { return s.active }

// Names lists the defined profiles, sorted, always including DefaultName.
func (s *Set) Names() []string {
	names := s.k.MapKeys("profiles")
	if !slices.Contains(names, DefaultName) {
		names = append(names, DefaultName)
	}
	slices.Sort(names)
	return names
}

func (s *Set) Has(name string) bool {
	return slices.Contains(s.Names(), name)
}

// Resolve picks the profile and computes its settings. The name comes from
// explicit, then $FLOWCTL_PROFILE, then the file's active key, then
// DefaultName.
func (s *Set) Resolve(explicit string) (*Profile, error) {
	name := explicit
	if name == "" {
		name = os.Getenv(EnvProfile)
	}
	if name == "" {
		name = s.active
	}
	if name == "" {
		name = DefaultName
	}

	if !s.Has(name) {
		return nil, &UnknownProfileError{Name: name}
	}

	fromEnv, err := envSettings()
	if err != nil {
		return nil, err
	}
	fromProfile := s.k.Cut("profiles." + name)

	layers := []*koanf.Koanf{fromProfile, fromEnv}
	if explicit != "" {
		layers = []*koanf.Koanf{fromEnv, fromProfile}
	}

	merged := koanf.New(".")
	for _, layer := range layers {
		if err := merged.Merge(layer); err != nil {
			return nil, fmt.Errorf("failed to merge settings: %w", err)
		}
	}

	settings := DefaultSettings()
	if err := merged.Unmarshal("", &settings); err != nil {
		return nil, fmt.Errorf("failed to decode settings for profile %q: %w", name, err)
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("profile %q: %w", name, err)
	}

	return &Profile{Name: name, Settings: settings, Explicit: explicit != ""}, nil
}

// envSettings reads FLOWCTL_<SETTING> variables, e.g. FLOWCTL_LOGGING_LEVEL
// becomes logging_level.
func envSettings() (*koanf.Koanf, error) {
	k := koanf.New(".")
	err := k.Load(env.Provider(EnvPrefix, ".", func(key string) string {
		key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
		switch key {
		case "profile", "profiles_path":
			return ""
		}
		return key
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}
	return k, nil
}
