package logging

import (
	"fmt"
	"strings"

	"github.com/coreos/go-systemd/v22/journal"
	"github.com/sirupsen/logrus"
)

// SendFunc matches journal.Send.
type SendFunc func(message string, priority journal.Priority, vars map[string]string) error

// JournalHook forwards logrus entries to the systemd journal.
type JournalHook struct {
	send SendFunc
}

// NewJournalHook creates a hook that delivers entries through send.
func NewJournalHook(send SendFunc) *JournalHook {
	return &JournalHook{send: send}
}

// Levels implements logrus.Hook.
func (h *JournalHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire implements logrus.Hook.
func (h *JournalHook) Fire(entry *logrus.Entry) error {
	vars := map[string]string{
		"SYSLOG_IDENTIFIER": "fex-rootfs-generator",
	}
	for key, value := range entry.Data {
		vars[journalField(key)] = fmt.Sprint(value)
	}

	return h.send(entry.Message, priority(entry.Level), vars)
}

func priority(level logrus.Level) journal.Priority {
	switch level {
	case logrus.PanicLevel:
		return journal.PriEmerg
	case logrus.FatalLevel:
		return journal.PriCrit
	case logrus.ErrorLevel:
		return journal.PriErr
	case logrus.WarnLevel:
		return journal.PriWarning
	case logrus.InfoLevel:
		return journal.PriInfo
	default:
		return journal.PriDebug
	}
}

// journalField turns a logrus field key into a valid journal field name:
// upper case letters, digits and underscores, not starting with "_".
func journalField(key string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(key) {
		switch {
		case 'A' <= r && r <= 'Z', '0' <= r && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	field := strings.TrimLeft(b.String(), "_")
	if field == "" || ('0' <= field[0] && field[0] <= '9') {
		field = "FIELD_" + field
	}
	return field
}
