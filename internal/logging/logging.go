// Package logging configures the process-wide logrus logger.
package logging

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
)

// textFormatter renders log lines as:
//
//	2026-07-29 10:03:21.451 [  xfer:2]  INFO: message key=val
//
// (timestamp, thread/component name, level, message).
type textFormatter struct{}

func (textFormatter) Format(e *logrus.Entry) ([]byte, error) {
	component, _ := e.Data["component"].(string)
	if component == "" {
		component = "main"
	}

	line := fmt.Sprintf("%s [%8s] %5s: %s",
		e.Time.Format("2006-01-02 15:04:05.000"),
		component,
		levelTag(e.Level),
		e.Message,
	)

	for k, v := range e.Data {
		if k == "component" {
			continue
		}
		line += fmt.Sprintf(" %s=%v", k, v)
	}

	return append([]byte(line), '\n'), nil
}

func levelTag(l logrus.Level) string {
	switch l {
	case logrus.TraceLevel:
		return "TRACE"
	case logrus.DebugLevel:
		return "DEBUG"
	case logrus.InfoLevel:
		return "INFO"
	case logrus.WarnLevel:
		return "WARN"
	case logrus.ErrorLevel:
		return "ERROR"
	default:
		return "?????"
	}
}

// Init installs the formatter and sets the level from a -v occurrence
// count: 0 => warn, 1 => info, 2 => debug, 3+ => trace. quiet, when true,
// disables all logging regardless of verbosity.
func Init(out io.Writer, verbosity int, quiet bool) {
	logrus.SetOutput(out)
	logrus.SetFormatter(textFormatter{})

	if quiet {
		logrus.SetLevel(logrus.PanicLevel)
		return
	}

	switch {
	case verbosity >= 3:
		logrus.SetLevel(logrus.TraceLevel)
	case verbosity == 2:
		logrus.SetLevel(logrus.DebugLevel)
	case verbosity == 1:
		logrus.SetLevel(logrus.InfoLevel)
	default:
		logrus.SetLevel(logrus.WarnLevel)
	}
}

// For component logs a standard field identifying which goroutine role is
// producing the message (lister, xfer:N, faststat:N, main, ...).
func For(component string) *logrus.Entry {
	return logrus.WithField("component", component)
}
