// Package logentry owns the structured string written into a slot column to
// record one delivery attempt.
package logentry

import (
	"fmt"
	"strings"
	"time"
)

// Delivery status tokens recorded in slot log entries.
const (
	StatusSent   = "SENT"
	StatusFailed = "FAILED"
)

// Separator joins log entry fields.
const Separator = " | "

// Entry is one delivery attempt's outcome. Subject and HTML are optional
// trailing segments and may be empty.
type Entry struct {
	Timestamp  time.Time
	MessageID  string
	TemplateID string
	Status     string
	Subject    string
	HTML       string
}

// Format renders the entry for persistence into a slot column.
func (e Entry) Format() string {
	parts := []string{
		e.Timestamp.UTC().Format(time.RFC3339),
		e.MessageID,
		e.TemplateID,
		e.Status,
	}
	if e.Subject != "" {
		parts = append(parts, "Subject: "+e.Subject)
	}
	if e.HTML != "" {
		parts = append(parts, "HTML: "+e.HTML)
	}
	return strings.Join(parts, Separator)
}

// Parse reads a persisted slot value back into an Entry. The two optional
// trailing segments may be absent; their fields stay empty in that case.
func Parse(s string) (Entry, error) {
	parts := strings.Split(s, Separator)
	if len(parts) < 4 {
		return Entry{}, fmt.Errorf("log entry has %d fields, want at least 4", len(parts))
	}
	ts, err := time.Parse(time.RFC3339, parts[0])
	if err != nil {
		return Entry{}, fmt.Errorf("parse log entry timestamp: %w", err)
	}
	entry := Entry{
		Timestamp:  ts,
		MessageID:  parts[1],
		TemplateID: parts[2],
		Status:     parts[3],
	}
	rest := parts[4:]
	for i := 0; i < len(rest); i++ {
		switch {
		case strings.HasPrefix(rest[i], "HTML: "):
			// The HTML body may itself contain the separator; everything from
			// here on belongs to it.
			entry.HTML = strings.TrimPrefix(strings.Join(rest[i:], Separator), "HTML: ")
			return entry, nil
		case strings.HasPrefix(rest[i], "Subject: "):
			entry.Subject = strings.TrimPrefix(rest[i], "Subject: ")
		}
	}
	return entry, nil
}
