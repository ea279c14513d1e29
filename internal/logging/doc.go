// Package logging configures structured slog output for the pipeline.
// Logs are JSON lines written to a size-rotated file under ~/.paperrag/logs/,
// optionally teed to stderr for interactive commands.
package logging
