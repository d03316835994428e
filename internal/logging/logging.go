// Package logging builds the process slog handler. Every string attribute
// passes through a masking step so tokens and keys never reach the logs.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
)

const redacted = "[REDACTED]"

var (
	bearerPattern     = regexp.MustCompile(`(?i)(bearer\s+)[A-Za-z0-9._~+/=-]+`)
	assignmentPattern = regexp.MustCompile(`(?i)\b(token|key|secret|password)([=:]\s*)[^\s&,;"']+`)
	pemPattern        = regexp.MustCompile(`-----BEGIN [A-Z ]*PRIVATE KEY-----[\s\S]*?-----END [A-Z ]*PRIVATE KEY-----`)
	githubTokenPrefix = regexp.MustCompile(`\b(gh[pousr]_)[A-Za-z0-9]{8,}`)
)

// secretKeyParts mark attribute keys whose values are always redacted.
var secretKeyParts = []string{"secret", "password", "api_token", "private_key", "authorization"}

// ParseLevel maps a level name to a slog.Level. Unknown names yield info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
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

// NewHandler returns a JSON or text handler writing to w at level, with
// secret masking applied to every attribute.
func NewHandler(w io.Writer, level slog.Level, format string) slog.Handler {
	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: maskAttr,
	}
	if strings.EqualFold(format, "text") {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

func maskAttr(_ []string, a slog.Attr) slog.Attr {
	if isSecretKey(a.Key) {
		return slog.String(a.Key, redacted)
	}

	switch a.Value.Kind() {
	case slog.KindString:
		return slog.String(a.Key, Mask(a.Value.String()))
	case slog.KindAny:
		if err, ok := a.Value.Any().(error); ok {
			return slog.String(a.Key, Mask(err.Error()))
		}
		if s, ok := a.Value.Any().(fmt.Stringer); ok {
			return slog.String(a.Key, Mask(s.String()))
		}
	}
	return a
}

func isSecretKey(key string) bool {
	k := strings.ToLower(key)
	for _, part := range secretKeyParts {
		if strings.Contains(k, part) {
			return true
		}
	}
	return false
}

// Mask hides credentials embedded in free text.
func Mask(s string) string {
	s = pemPattern.ReplaceAllString(s, "[PRIVATE KEY REDACTED]")
	s = bearerPattern.ReplaceAllString(s, "${1}"+redacted)
	s = assignmentPattern.ReplaceAllString(s, "${1}${2}"+redacted)
	s = githubTokenPrefix.ReplaceAllString(s, "${1}"+redacted)
	return s
}
