// Package security screens text crossing the generation boundary: feed text
// before it reaches the model, and model output before it reaches any public
// channel.
package security

import (
	"log/slog"
	"regexp"
	"strings"
)

const (
	// RedactedIP replaces dotted-quad addresses.
	RedactedIP = "[REDACTED]"
	// RedactedURL replaces URLs carrying user:password credentials.
	RedactedURL = "[REDACTED_URL]"
)

// sensitiveMarkers never appear in publishable output. Matched lowercase.
var sensitiveMarkers = []string{
	// credentials
	"api_key",
	"api-key",
	"apikey",
	"bearer",
	"token",
	"password",
	"secret",
	// log levels
	"[error]",
	"[debug]",
	"[info]",
	"[warn]",
	// runtime failures
	"stack trace",
	"panicked at",
	"goroutine ",
	"panic:",
	"thread 'main'",
	"unwrap()",
	// code fragments
	"```",
	"fn ",
	"func ",
	"impl ",
	"struct ",
	"let ",
	"const ",
	"mut ",
	"package main",
	// environment variable names
	"moltbook_api",
	"discord_token",
	"ollama_endpoint",
	"openai_api",
}

// injectionPhrases are instruction-override attempts in untrusted input.
var injectionPhrases = []string{
	"ignore previous",
	"ignore above",
	"ignore all previous",
	"disregard",
	"forget your instructions",
	"new instructions",
	"system prompt",
	"you are now",
	"act as",
	"pretend to be",
}

var (
	ipv4Pattern          = regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`)
	credentialURLPattern = regexp.MustCompile(`[a-zA-Z][a-zA-Z0-9+.-]*://[^\s:/@]+:[^\s@]+@\S+`)
)

// Gate applies the input and output checks. The zero value is not usable;
// construct with NewGate.
type Gate struct {
	sensitive []string
	injection []string
	logger    *slog.Logger
}

// NewGate returns a gate with the built-in marker lists.
func NewGate(logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		sensitive: sensitiveMarkers,
		injection: injectionPhrases,
		logger:    logger,
	}
}

// ContainsSensitive reports whether text carries any leakage marker.
func (g *Gate) ContainsSensitive(text string) bool {
	return containsAny(text, g.sensitive)
}

// ContainsInjection reports whether text carries any injection phrase.
func (g *Gate) ContainsInjection(text string) bool {
	return containsAny(text, g.injection)
}

// ValidateInput returns false when text must not be forwarded to the model.
func (g *Gate) ValidateInput(text string) bool {
	if g.ContainsInjection(text) {
		g.logger.Warn("Security: blocked potential prompt injection")
		return false
	}
	return true
}

// SanitizeOutput returns the publishable form of text, or false when the
// text leaks something and must be discarded.
func (g *Gate) SanitizeOutput(text string) (string, bool) {
	if g.ContainsSensitive(text) {
		g.logger.Warn("Security: blocked output containing sensitive information")
		return "", false
	}
	out := ipv4Pattern.ReplaceAllLiteralString(text, RedactedIP)
	out = credentialURLPattern.ReplaceAllLiteralString(out, RedactedURL)
	return out, true
}

func containsAny(text string, markers []string) bool {
	lower := strings.ToLower(text)
	for _, m := range markers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}
