// Package logging builds the JSON slog loggers shared by the API, the
// indexing worker and the MCP server.
package logging

import (
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
)

const redacted = "[redacted]"

// URL credentials show up in NATS, Postgres and Redis connection errors.
var urlCredentials = regexp.MustCompile(`://[^/@\s:]+:[^/@\s]+@`)

func NewJSONLogger(service, level string) *slog.Logger {
	return New(os.Stdout, service, level)
}

// New builds a JSON logger tagged with the service name. Secrets never
// reach the output, whether passed under a sensitive key or embedded in a
// connection URL.
func New(w io.Writer, service, level string) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       parseLevel(level),
		ReplaceAttr: scrub,
	})
	return slog.New(handler).With("service", service)
}

func scrub(_ []string, a slog.Attr) slog.Attr {
	if sensitiveKey(a.Key) {
		return slog.String(a.Key, redacted)
	}
	switch a.Value.Kind() {
	case slog.KindString:
		if s := a.Value.String(); strings.Contains(s, "://") {
			return slog.String(a.Key, urlCredentials.ReplaceAllString(s, "://"+redacted+"@"))
		}
	case slog.KindAny:
		if err, ok := a.Value.Any().(error); ok && strings.Contains(err.Error(), "://") {
			return slog.String(a.Key, urlCredentials.ReplaceAllString(err.Error(), "://"+redacted+"@"))
		}
	}
	return a
}

func sensitiveKey(key string) bool {
	switch strings.ToLower(key) {
	case "password", "api_key", "apikey", "authorization", "token", "secret", "dsn":
		return true
	default:
		return false
	}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
