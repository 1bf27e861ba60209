// Package hostname validates hostnames before they are sent to the controller.
package hostname

import (
	"log/slog"
	"regexp"
	"strings"
)

// pattern requires an alphanumeric first and last character with letters,
// digits, hyphens and dots in between.
var pattern = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9\-.]*[A-Za-z0-9])?$`)

// IsValid reports whether s, once surrounding whitespace is trimmed, is an
// acceptable hostname. Empty labels ("a..b") are rejected.
func IsValid(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	if strings.Contains(s, "..") {
		return false
	}
	return pattern.MatchString(s)
}

// FilterValid trims every entry and returns those that pass IsValid, in
// input order. Each rejected entry is logged at warn level.
func FilterValid(log *slog.Logger, raw []string) []string {
	if log == nil {
		log = slog.Default()
	}
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if !IsValid(s) {
			log.Warn("skipping invalid hostname", "hostname", s)
			continue
		}
		out = append(out, strings.TrimSpace(s))
	}
	return out
}
