// Package logger builds the process logger on top of log/slog.
//
//   - logger.go: Config, level parsing and the global level switch
//   - summarize.go: shortens bulky attribute values such as coordinate arrays
//   - context.go: carrying a logger through context.Context
//
// Callers receive a plain *slog.Logger; nothing outside this package
// depends on a logging interface.
package logger
