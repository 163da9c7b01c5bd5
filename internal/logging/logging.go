// Package logging configures the generator's logrus logger.
//
// Generators inherit their log setup from the service manager through
// SYSTEMD_LOG_LEVEL and SYSTEMD_LOG_TARGET (systemd.generator(7)). Levels
// are accepted by name (emerg..debug) or number (0..7).
package logging

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/coreos/go-systemd/v22/journal"
	"github.com/sirupsen/logrus"
)

// ErrInvalidLevel indicates an unknown systemd log level.
var ErrInvalidLevel = errors.New("invalid log level")

// systemd levels in syslog order; the index is the numeric level
var levelNames = []string{"emerg", "alert", "crit", "err", "warning", "notice", "info", "debug"}

// Options configures New.
type Options struct {
	// Level is a systemd log level; empty means "info"
	Level string

	// Target is a systemd log target; journal targets enable the journal hook
	Target string

	// Output receives formatted entries when the journal is not used
	Output io.Writer

	// JournalEnabled reports whether the journal socket is reachable.
	// Defaults to journal.Enabled.
	JournalEnabled func() bool
}

// ParseLevel maps a systemd log level to a logrus level.
func ParseLevel(s string) (logrus.Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return logrus.InfoLevel, nil
	}

	index := -1
	if n, err := strconv.Atoi(s); err == nil {
		index = n
	} else {
		for i, name := range levelNames {
			if name == s {
				index = i
				break
			}
		}
		// logrus and syslog spellings
		switch s {
		case "error":
			index = 3
		case "warn":
			index = 4
		}
	}

	switch index {
	case 0, 1:
		return logrus.PanicLevel, nil
	case 2:
		return logrus.FatalLevel, nil
	case 3:
		return logrus.ErrorLevel, nil
	case 4:
		return logrus.WarnLevel, nil
	case 5, 6:
		return logrus.InfoLevel, nil
	case 7:
		return logrus.DebugLevel, nil
	}
	return logrus.InfoLevel, fmt.Errorf("%w: %q", ErrInvalidLevel, s)
}

// New returns a logger for the generator. An invalid level falls back to
// info and is reported through the returned logger.
func New(opts Options) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: true,
		DisableQuote:     true,
	})

	if opts.Output != nil {
		logger.SetOutput(opts.Output)
	}

	level, levelErr := ParseLevel(opts.Level)
	logger.SetLevel(level)

	enabled := opts.JournalEnabled
	if enabled == nil {
		enabled = journal.Enabled
	}
	if wantsJournal(opts.Target) && enabled() {
		logger.AddHook(NewJournalHook(journal.Send))
		logger.SetOutput(io.Discard)
	}

	if levelErr != nil {
		logger.WithError(levelErr).Warn("ignoring SYSTEMD_LOG_LEVEL")
	}

	return logger
}

func wantsJournal(target string) bool {
	switch strings.ToLower(target) {
	case "journal", "journal-or-kmsg", "auto":
		return true
	}
	return false
}
