package application

import "log/slog"

// Logger returns the provided logger or a no-op fallback so use cases can
// log without nil checks at every call site.
func Logger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}
