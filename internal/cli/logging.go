package cli

import (
	"io"
	"os"

	"github.com/ekristen/go-flowtel/internal/profile"
	"github.com/ekristen/go-flowtel/logger"
	logruslogger "github.com/ekristen/go-flowtel/logger/logrus"
	zaplogger "github.com/ekristen/go-flowtel/logger/zap"
	zerologger "github.com/ekristen/go-flowtel/logger/zerolog"
)

// newLogger builds the logger selected by the logging_backend setting.
// Settings are validated on resolve, so unknown backends do not reach here.
func newLogger(s profile.Settings, out io.Writer, name, version string) logger.Logger {
	color := false
	if f, ok := out.(*os.File); ok {
		color = isTerminal(f)
	}

	switch s.LoggingBackend {
	case "zap":
		return zaplogger.New(zaplogger.Options{
			ServiceName:    name,
			ServiceVersion: version,
			Output:         out,
			Level:          s.Level(),
		})
	case "logrus":
		return logruslogger.New(logruslogger.Options{
			ServiceName:    name,
			ServiceVersion: version,
			Output:         out,
			Level:          s.Level(),
			EnableColor:    color,
		})
	default:
		return zerologger.New(zerologger.Options{
			ServiceName:    name,
			ServiceVersion: version,
			Output:         zerologger.NewConsoleWriter(out, color),
			Level:          s.Level(),
		})
	}
}
