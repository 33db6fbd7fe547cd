package logger

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var Logger *logrus.Logger

// InitLogger configures the process logger. An empty level falls back to
// LOG_LEVEL, then to debug in development and info otherwise.
func InitLogger(logLevel string, isDevelopment bool) *logrus.Logger {
	log := logrus.New()

	if logLevel == "" {
		logLevel = os.Getenv("LOG_LEVEL")
		if logLevel == "" {
			if isDevelopment {
				logLevel = "debug"
			} else {
				logLevel = "info"
			}
		}
	}

	if level, err := logrus.ParseLevel(strings.ToLower(logLevel)); err == nil {
		log.SetLevel(level)
	} else {
		log.SetLevel(logrus.InfoLevel)
		log.WithField("invalid_level", logLevel).Warn("Invalid LOG_LEVEL, using INFO")
	}

	if !isDevelopment || strings.ToLower(os.Getenv("LOG_FORMAT")) == "json" {
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	log.SetOutput(os.Stdout)

	// The standard logger is what packages without an injected entry use.
	logrus.SetLevel(log.GetLevel())
	logrus.SetFormatter(log.Formatter)

	Logger = log
	return log
}

// GetLogger returns the global logger, initializing it at info level if needed.
func GetLogger() *logrus.Logger {
	if Logger == nil {
		return InitLogger("info", false)
	}
	return Logger
}

func WithComponent(component string) *logrus.Entry {
	return GetLogger().WithField("component", component)
}

// WithRunID tags entries with a selection run.
func WithRunID(runID string) *logrus.Entry {
	return GetLogger().WithField("run_id", runID)
}

// WithForecastContext tags entries with the forecast snapshot being searched.
func WithForecastContext(runID, forecastDate, gender string) *logrus.Entry {
	fields := logrus.Fields{
		"forecast_date": forecastDate,
		"gender":        gender,
	}
	if runID != "" {
		fields["run_id"] = runID
	}
	return GetLogger().WithFields(fields)
}

func WithHTTPContext(method, path, userAgent string) *logrus.Entry {
	return GetLogger().WithFields(logrus.Fields{
		"http_method":     method,
		"http_path":       path,
		"http_user_agent": userAgent,
	})
}
