package storage

import (
	"fmt"
	"path"
	"strings"
	"time"
)

// NamingStrategy defines how exported reports are named.
type NamingStrategy int

const (
	// NameTimestamp uses timestamp + short session ID (default)
	NameTimestamp NamingStrategy = iota
	// NameSession groups every export of a session under its full ID
	NameSession
	// NameDescriptive uses timestamp + sanitized vehicle + short session ID
	NameDescriptive
)

// ParseNamingStrategy maps a config value to a strategy.
func ParseNamingStrategy(s string) NamingStrategy {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "session":
		return NameSession
	case "descriptive":
		return NameDescriptive
	default:
		return NameTimestamp
	}
}

// ReportPath returns the slash-separated object path for a report.
func ReportPath(sessionID, subject string, at time.Time, strategy NamingStrategy) string {
	timestamp := at.Format("2006-01-02_150405")
	shortID := sessionID
	if len(shortID) > 8 {
		shortID = shortID[:8]
	}

	switch strategy {
	case NameSession:
		// Format: reports/<uuid>/2025-07-16_153000.md
		return path.Join("reports", sessionID, timestamp+".md")

	case NameDescriptive:
		// Format: reports/2025-07-16_153000_2010-honda-civic_82f06b15.md
		return path.Join("reports", fmt.Sprintf("%s_%s_%s.md", timestamp, sanitizeForFilename(subject, 30), shortID))

	default:
		// Format: reports/2025-07-16_153000_82f06b15.md
		return path.Join("reports", fmt.Sprintf("%s_%s.md", timestamp, shortID))
	}
}

// sanitizeForFilename converts a string to a safe filename component
func sanitizeForFilename(s string, maxLen int) string {
	s = strings.ToLower(s)

	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_' || r == '.' || r == '/' || r == '\\' || r == ':':
			b.WriteRune('-')
		}
	}
	s = b.String()

	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}

	s = strings.Trim(s, "-")

	if len(s) > maxLen {
		s = s[:maxLen]
		s = strings.TrimRight(s, "-")
	}

	if s == "" {
		s = "report"
	}

	return s
}
