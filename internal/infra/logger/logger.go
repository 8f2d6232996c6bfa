// internal/infra/logger/logger.go
package logger

import (
	"io"
	"os"

	"lowkey_bot/internal/infra/config"

	"github.com/sirupsen/logrus"
)

const appName = "lowkey"

// Log is the process-wide logger every component entry derives from.
var Log = logrus.New()

// structuredEnvironments log JSON for collectors; anything else gets text.
var structuredEnvironments = map[string]bool{
	"production": true,
	"staging":    true,
}

// Init points Log at stdout and applies cfg to it.
func Init(cfg *config.AppConfig) {
	Configure(Log, cfg, os.Stdout)
	Log.WithField("environment", cfg.Environment).Debugf("Log level set to %s", Log.GetLevel())
}

// Configure applies level and format from cfg to l and sends its output to w.
// An unknown level falls back to info. Debug logging also reports the caller.
func Configure(l *logrus.Logger, cfg *config.AppConfig, w io.Writer) {
	l.SetOutput(w)

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
		defer l.WithError(err).Warnf("Invalid log level %q, defaulting to info", cfg.LogLevel)
	}
	l.SetLevel(level)
	l.SetReportCaller(level >= logrus.DebugLevel)

	if structuredEnvironments[cfg.Environment] {
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat:   "2006-01-02T15:04:05.000Z07:00", // ISO8601
			DisableHTMLEscape: true,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyMsg:  "message",
				logrus.FieldKeyTime: "ts",
			},
		})
		return
	}
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
}

// Component returns an entry tagged with the application and component name.
func Component(name string) *logrus.Entry {
	return Log.WithFields(logrus.Fields{"app": appName, "component": name})
}

// Discard returns an entry that writes nowhere. Tests use it for quiet services.
func Discard() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}
