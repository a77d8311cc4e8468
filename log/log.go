package log

import (
	"strings"

	log "github.com/sirupsen/logrus"
)

// Setup configures the process-wide logger. Unknown levels fall back to info.
func Setup(level string, json bool) {
	lvl, err := log.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
	if json {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}

func Debug(format string, args ...any) {
	log.Debugf(format, args...)
}

func Info(format string, args ...any) {
	log.Infof(format, args...)
}

func Warn(format string, args ...any) {
	log.Warnf(format, args...)
}

func Error(format string, args ...any) {
	log.Errorf(format, args...)
}

func Fatal(format string, args ...any) {
	log.Fatalf(format, args...)
}

// WithJobRun scopes log lines to every record claimed in one dispatcher run.
func WithJobRun(runID string) *log.Entry {
	return log.WithField("jobRunId", runID)
}

// WithJob scopes log lines to a single queue record.
func WithJob(runID string, jobID string, kind string) *log.Entry {
	return log.WithFields(log.Fields{
		"jobRunId": runID,
		"jobId":    jobID,
		"kind":     kind,
	})
}

func WithMatch(matchID string) *log.Entry {
	return log.WithField("matchId", matchID)
}
