// Package policy holds the pure decision logic for which contacts get which
// email next. No I/O.
package policy

import (
	"sort"
	"strconv"
	"strings"

	"creator-outreach/internal/models"
)

// Slot is one outreach sequence column found on a row.
type Slot struct {
	Name  string
	Index int
	Value string
}

// Eligible reports whether a row may be processed at all. Rows with the pause
// or in_talks flag set (any accepted casing) are skipped entirely.
func Eligible(row models.ContactRow) bool {
	if models.Truthy(row.Field(models.ColPause)) {
		return false
	}
	if models.Truthy(row.Field(models.ColInTalks)) {
		return false
	}
	return true
}

// Slots returns every sequence column present on the row, sorted by numeric
// suffix ascending. Column names that carry the prefix but no parseable
// suffix are ignored.
func Slots(row models.ContactRow) []Slot {
	var slots []Slot
	for name, value := range row.Fields {
		idx, ok := slotIndex(name)
		if !ok {
			continue
		}
		slots = append(slots, Slot{Name: name, Index: idx, Value: value})
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].Index < slots[j].Index })
	return slots
}

// NextSlot returns the name of the first empty (or whitespace-only) sequence
// column, or "" when every slot is filled or none exist. An empty result
// means no action is needed for this row right now; it is not an error.
func NextSlot(row models.ContactRow) string {
	for _, s := range Slots(row) {
		if strings.TrimSpace(s.Value) == "" {
			return s.Name
		}
	}
	return ""
}

// TemplateFor derives the content template identifier from a slot column
// name. A slot that does not parse to a numeric suffix falls back to the
// first template; valid data never hits that path.
func TemplateFor(slotName string) string {
	if _, ok := slotIndex(slotName); ok {
		return slotName
	}
	return models.SlotPrefix + "1"
}

func slotIndex(name string) (int, bool) {
	if !strings.HasPrefix(name, models.SlotPrefix) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(name, models.SlotPrefix))
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}
