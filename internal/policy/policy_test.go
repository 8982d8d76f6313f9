package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"creator-outreach/internal/models"
)

func row(fields map[string]string) models.ContactRow {
	return models.ContactRow{ID: 1, Fields: fields}
}

func TestEligible(t *testing.T) {
	cases := []struct {
		name   string
		fields map[string]string
		want   bool
	}{
		{"no flags", map[string]string{"name": "Alex"}, true},
		{"pause lowercase", map[string]string{"pause": "true"}, false},
		{"pause uppercase", map[string]string{"pause": "TRUE"}, false},
		{"in_talks mixed case", map[string]string{"in_talks": "True"}, false},
		{"both flags", map[string]string{"pause": "true", "in_talks": "true"}, false},
		{"flags false", map[string]string{"pause": "false", "in_talks": "FALSE"}, true},
		{"flag blank", map[string]string{"pause": "", "in_talks": "  "}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Eligible(row(tc.fields)))
		})
	}
}

func TestNextSlot(t *testing.T) {
	// Middle slot empty: the second slot wins regardless of map iteration
	// order.
	r := row(map[string]string{
		"email_3": "filled",
		"email_1": "filled",
		"email_2": "",
		"name":    "Alex",
	})
	for i := 0; i < 50; i++ {
		assert.Equal(t, "email_2", NextSlot(r))
	}

	assert.Equal(t, "email_1", NextSlot(row(map[string]string{
		"email_2": "x",
		"email_1": "   ",
	})), "whitespace-only counts as empty")

	assert.Equal(t, "", NextSlot(row(map[string]string{
		"email_1": "x",
		"email_2": "y",
	})), "all filled means no action, not an error")

	assert.Equal(t, "", NextSlot(row(map[string]string{"name": "Alex"})),
		"no sequence columns means no action")

	assert.Equal(t, "email_10", NextSlot(row(map[string]string{
		"email_2":  "x",
		"email_10": "",
	})), "suffixes sort numerically, not lexically")
}

func TestSlotsSorted(t *testing.T) {
	slots := Slots(row(map[string]string{
		"email_10":  "",
		"email_2":   "",
		"email_1":   "",
		"email_abc": "ignored",
		"notes":     "ignored",
	}))
	indices := make([]int, 0, len(slots))
	for _, s := range slots {
		indices = append(indices, s.Index)
	}
	assert.Equal(t, []int{1, 2, 10}, indices)
}

func TestTemplateFor(t *testing.T) {
	assert.Equal(t, "email_3", TemplateFor("email_3"))
	assert.Equal(t, "email_1", TemplateFor("email_x"), "unparseable slot falls back to template 1")
	assert.Equal(t, "email_1", TemplateFor("notes"))
}
