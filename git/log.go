package git

import "log/slog"

// slogLogger adapts *slog.Logger to the Logger collaborator interface.
type slogLogger struct {
	inner *slog.Logger
}

func newSlogLogger(l *slog.Logger) Logger {
	return &slogLogger{inner: l}
}

func (s *slogLogger) Warn(msg string, args ...any) {
	s.inner.Warn(msg, args...)
}

func (s *slogLogger) Debug(msg string, args ...any) {
	s.inner.Debug(msg, args...)
}
