package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Init configures the global logrus logger. format is "json" or "text".
func Init(level string, format string) {
	InitTo(os.Stderr, level, format)
}

func InitTo(w io.Writer, level string, format string) {
	if strings.EqualFold(format, "json") {
		logrus.SetFormatter(&logrus.JSONFormatter{
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	logrus.SetOutput(w)
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)
}

// For returns an entry tagged with the component name.
func For(component string) *logrus.Entry {
	return logrus.WithField("component", component)
}

// OrDefault lets components accept a nil entry.
func OrDefault(log *logrus.Entry, component string) *logrus.Entry {
	if log != nil {
		return log
	}
	return For(component)
}
