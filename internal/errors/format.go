package errors

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// FormatForCLI formats an error for terminal output.
// Document context from Details is printed so a single file can be re-run.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}

	pe, ok := as(err)
	if !ok {
		pe = Wrap(ErrCodeInternal, err)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Error: %s\n", pe.Message))

	if path := pe.Details["path"]; path != "" {
		sb.WriteString(fmt.Sprintf("  File: %s\n", path))
	}
	if pe.Suggestion != "" {
		sb.WriteString(fmt.Sprintf("  Hint: %s\n", pe.Suggestion))
	}
	sb.WriteString(fmt.Sprintf("  Code: %s\n", pe.Code))

	return sb.String()
}

// LogAttrs returns slog attributes describing err, in stable order.
func LogAttrs(err error) []any {
	if err == nil {
		return nil
	}

	pe, ok := as(err)
	if !ok {
		return []any{slog.String("error", err.Error())}
	}

	attrs := []any{
		slog.String("error_code", pe.Code),
		slog.String("error", pe.Message),
		slog.String("category", string(pe.Category)),
		slog.Bool("retryable", pe.Retryable),
	}
	if pe.Cause != nil {
		attrs = append(attrs, slog.String("cause", pe.Cause.Error()))
	}

	keys := make([]string, 0, len(pe.Details))
	for k := range pe.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, slog.String("detail_"+k, pe.Details[k]))
	}
	return attrs
}
