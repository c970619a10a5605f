package app

import (
	"log/slog"

	"github.com/gen2brain/beeep"
)

const notifyTitle = "speech2text"

// notified lists the status messages worth a desktop notification.
var notified = map[string]bool{
	MsgRecordingStarted: true,
	MsgRecordingStopped: true,
	MsgNoAudio:          true,
	MsgNoSpeech:         true,
}

// LogReporter writes status updates to the logger and, when enabled, shows
// desktop notifications for the main session transitions.
type LogReporter struct {
	logger *slog.Logger
	notify func(title, message string) error
}

// NewLogReporter creates a reporter. logger nil means slog.Default().
func NewLogReporter(logger *slog.Logger, notifications bool) *LogReporter {
	if logger == nil {
		logger = slog.Default()
	}
	r := &LogReporter{logger: logger}
	if notifications {
		r.notify = func(title, message string) error {
			return beeep.Notify(title, message, "")
		}
	}
	return r
}

func (r *LogReporter) Status(msg string, args ...any) {
	r.logger.Info(msg, args...)
	if notified[msg] {
		r.desktop(msg)
	}
}

func (r *LogReporter) Failure(msg string, err error, args ...any) {
	r.logger.Error(msg, append([]any{"error", err}, args...)...)
	r.desktop(msg + ": " + err.Error())
}

func (r *LogReporter) desktop(message string) {
	if r.notify == nil {
		return
	}
	if err := r.notify(notifyTitle, message); err != nil {
		r.logger.Debug("desktop notification", "error", err)
	}
}
