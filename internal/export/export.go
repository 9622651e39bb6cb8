// Package export renders a variable's stored history as markdown or HTML
// for sharing outside the chat frontend.
package export

import (
	"bytes"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"github.com/hpungsan/varloom/internal/variable"
)

// Format selects the export output type.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

// ParseFormat maps a user-supplied format string, defaulting to markdown.
func ParseFormat(s string) (Format, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "md", "markdown":
		return FormatMarkdown, true
	case "html":
		return FormatHTML, true
	}
	return "", false
}

// Markdown renders the full value document for one variable: every visible
// entry for stack mode, or the current value plus history for replace mode.
func Markdown(def variable.Definition, val variable.Value) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", def.Name)
	fmt.Fprintf(&b, "Tag: `%s` · Mode: %s\n", def.Tag, def.Mode)

	switch def.Mode {
	case variable.ModeStack:
		for _, e := range val.Visible() {
			b.WriteString("\n---\n\n")
			fmt.Fprintf(&b, "**Entry %d**", e.ID)
			if e.FloorRange != "" {
				fmt.Fprintf(&b, " · floors %s", e.FloorRange)
			}
			if e.Timestamp != 0 {
				fmt.Fprintf(&b, " · %s", formatTime(e.Timestamp))
			}
			b.WriteString("\n\n")
			b.WriteString(e.Content)
			b.WriteString("\n")
		}
	case variable.ModeReplace:
		if val.HasCurrent {
			b.WriteString("\n## Current\n\n")
			b.WriteString(val.CurrentValue)
			b.WriteString("\n")
		}
		if len(val.History) > 0 {
			b.WriteString("\n## History\n")
			for _, e := range val.History {
				b.WriteString("\n---\n\n")
				fmt.Fprintf(&b, "**Version %d**", e.ID)
				if e.FloorRange != "" {
					fmt.Fprintf(&b, " · floors %s", e.FloorRange)
				}
				b.WriteString("\n\n")
				b.WriteString(e.Content)
				b.WriteString("\n")
			}
		}
	}
	return b.String()
}

// HTML renders the markdown export through goldmark. Conversion failure
// falls back to the escaped markdown source.
func HTML(def variable.Definition, val variable.Value) string {
	md := Markdown(def, val)
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return "<pre>" + html.EscapeString(md) + "</pre>"
	}
	return buf.String()
}

// Render exports in the requested format.
func Render(format Format, def variable.Definition, val variable.Value) string {
	if format == FormatHTML {
		return HTML(def, val)
	}
	return Markdown(def, val)
}

func formatTime(unix int64) string {
	return time.Unix(unix, 0).UTC().Format("2006-01-02 15:04")
}
