package utils

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

var (
	InfoLogger  *logrus.Logger
	ErrorLogger *logrus.Logger
)

func init() {
	// Packages log before main has a chance to configure anything.
	InitLogger("info")
}

// InitLogger (re)creates both loggers. level applies to InfoLogger; an
// unknown level falls back to info.
func InitLogger(level string) {
	InfoLogger = logrus.New()
	ErrorLogger = logrus.New()

	// Set output untuk InfoLogger ke stdout
	InfoLogger.SetOutput(os.Stdout)
	InfoLogger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	// Set output untuk ErrorLogger ke stderr
	ErrorLogger.SetOutput(os.Stderr)
	ErrorLogger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	InfoLogger.SetLevel(lvl)
	ErrorLogger.SetLevel(logrus.ErrorLevel)
}

// SilenceLoggers discards all log output. Used by tests.
func SilenceLoggers() {
	InfoLogger.SetOutput(io.Discard)
	ErrorLogger.SetOutput(io.Discard)
}
