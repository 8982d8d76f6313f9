package models

import (
	"strings"
)

// Fixed column names of the contact table. Beyond these, the table carries an
// open-ended family of slot columns (email_1, email_2, ...) created on demand.
const (
	ColName        = "name"
	ColNiche       = "niche"
	ColChannelLink = "channel_link"
	ColWebsite     = "website"
	ColEmail       = "email"
	ColSent        = "sent"
	ColSentBy      = "sent_by"
	ColPause       = "pause"
	ColInTalks     = "in_talks"
	ColNotes       = "notes"
)

// SlotPrefix names the outreach sequence columns: SlotPrefix + integer suffix.
const SlotPrefix = "email_"

// ChannelLinkNA is the literal sentinel routing research to the site variant.
const ChannelLinkNA = "N/A"

// ContactRow is one contact record. ID is the ordinal position within the
// table (1-based, header excluded) and is only stable for the lifetime of one
// load; it is not a durable primary key.
type ContactRow struct {
	ID     int               `json:"id"`
	Fields map[string]string `json:"fields"`
}

// Field returns the named column value, empty if absent.
func (r ContactRow) Field(name string) string {
	if r.Fields == nil {
		return ""
	}
	return r.Fields[name]
}

// Clone deep-copies the row so snapshots do not alias store caches.
func (r ContactRow) Clone() ContactRow {
	fields := make(map[string]string, len(r.Fields))
	for k, v := range r.Fields {
		fields[k] = v
	}
	return ContactRow{ID: r.ID, Fields: fields}
}

// Empty reports whether every cell is blank; such rows are skipped on load.
func (r ContactRow) Empty() bool {
	for _, v := range r.Fields {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Truthy interprets boolean-like cell values ("true", "TRUE", "1", "yes").
func Truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes":
		return true
	}
	return false
}
