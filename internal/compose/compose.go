// Package compose renders outreach templates into a subject and HTML body.
// Two placeholder families exist: {{column}} substitutes a row field
// directly, {{ai: instruction}} resolves free-text instructions into prose
// through the text model, with the row and research as context. Everything
// outside placeholder spans is preserved byte for byte.
package compose

import (
	"context"
	"fmt"
	stdhtml "html"
	"regexp"
	"strings"

	"creator-outreach/internal/models"
	"creator-outreach/internal/research"
)

// TextModel generates prose from a prompt.
type TextModel interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Email is a rendered subject and HTML body ready for delivery.
type Email struct {
	Subject  string
	BodyHTML string
}

// Composer renders templates for contacts.
type Composer struct {
	registry *Registry
	model    TextModel
}

// NewComposer wires the registry and model. A nil model is allowed as long as
// no template uses {{ai:}} placeholders.
func NewComposer(registry *Registry, model TextModel) *Composer {
	return &Composer{registry: registry, model: model}
}

var placeholderRe = regexp.MustCompile(`\{\{([^{}]+)\}\}`)

// Render fills the identified template for one contact. A model failure
// propagates to the caller: content generation is pipeline-breaking and is
// retried by the job policy.
func (c *Composer) Render(ctx context.Context, templateID string, row models.ContactRow, res research.Result) (Email, error) {
	text, err := c.registry.Get(templateID)
	if err != nil {
		return Email{}, err
	}

	filled, err := c.substitute(ctx, text, row, res)
	if err != nil {
		return Email{}, fmt.Errorf("render template %s: %w", templateID, err)
	}

	subject, body := splitSubject(filled)
	return Email{Subject: subject, BodyHTML: toParagraphHTML(body)}, nil
}

// substitute resolves every placeholder, splicing results between the
// untouched surrounding spans. Templates without {{ai:}} placeholders never
// touch the model.
func (c *Composer) substitute(ctx context.Context, text string, row models.ContactRow, res research.Result) (string, error) {
	matches := placeholderRe.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text, nil
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		b.WriteString(text[last:m[0]])
		inner := strings.TrimSpace(text[m[2]:m[3]])

		if instruction, ok := strings.CutPrefix(inner, "ai:"); ok {
			if c.model == nil {
				return "", fmt.Errorf("template uses an ai placeholder but no model is configured")
			}
			prose, err := c.model.Generate(ctx, instructionPrompt(strings.TrimSpace(instruction), row, res))
			if err != nil {
				return "", fmt.Errorf("resolve instruction %q: %w", instruction, err)
			}
			b.WriteString(strings.TrimSpace(prose))
		} else {
			b.WriteString(row.Field(inner))
		}
		last = m[1]
	}
	b.WriteString(text[last:])
	return b.String(), nil
}

func instructionPrompt(instruction string, row models.ContactRow, res research.Result) string {
	var b strings.Builder
	b.WriteString("You write one short fragment of an outreach email to a content creator.\n")
	b.WriteString("Follow the instruction exactly, reply with the fragment only, no preamble.\n\n")
	fmt.Fprintf(&b, "Instruction: %s\n\n", instruction)
	fmt.Fprintf(&b, "Creator name: %s\n", row.Field(models.ColName))
	fmt.Fprintf(&b, "Niche: %s\n", row.Field(models.ColNiche))
	if res.DisplayName != "" {
		fmt.Fprintf(&b, "Display name: %s\n", res.DisplayName)
	}
	if res.Summary != "" {
		fmt.Fprintf(&b, "Research summary: %s\n", res.Summary)
	}
	if len(res.RecentTitles) > 0 {
		fmt.Fprintf(&b, "Recent content: %s\n", strings.Join(res.RecentTitles, "; "))
	}
	return b.String()
}

// splitSubject extracts a leading "Subject: ..." line and returns the rest as
// the body.
func splitSubject(text string) (subject, body string) {
	trimmed := strings.TrimLeft(text, "\n")
	if strings.HasPrefix(trimmed, "Subject:") {
		line, rest, _ := strings.Cut(trimmed, "\n")
		subject = strings.TrimSpace(strings.TrimPrefix(line, "Subject:"))
		body = strings.TrimLeft(rest, "\n")
		return subject, body
	}
	return "", trimmed
}

// toParagraphHTML converts plain text to minimal paragraph markup: one <p>
// per blank-line block, <br> for newlines inside a block.
func toParagraphHTML(text string) string {
	var b strings.Builder
	for _, block := range strings.Split(strings.TrimSpace(text), "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		lines := strings.Split(block, "\n")
		for i := range lines {
			lines[i] = stdhtml.EscapeString(strings.TrimRight(lines[i], " "))
		}
		b.WriteString("<p>")
		b.WriteString(strings.Join(lines, "<br>"))
		b.WriteString("</p>\n")
	}
	return strings.TrimSpace(b.String())
}
