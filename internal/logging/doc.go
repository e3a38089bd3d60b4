// Package logging builds the slog loggers used across adforge and defines
// the standardized structured field vocabulary. Console output uses a
// compact handwritten handler; JSON output is the stock slog handler with
// normalized keys.
package logging
