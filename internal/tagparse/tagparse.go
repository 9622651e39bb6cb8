// Package tagparse extracts bracket-tagged segments from model output.
// All functions are pure: no storage access, no side effects.
package tagparse

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/hpungsan/varloom/internal/variable"
)

// Result is the captured content for one tag.
type Result struct {
	// Tag is the bare tag name (brackets stripped).
	Tag string `json:"tag"`

	// Content is the merged text of every occurrence in the reply.
	Content string `json:"content"`
}

// Parse extracts tagged segments from a complete model reply.
//
// For each definition, closed pairs [tag]...[/tag] are matched first
// (case-insensitive, across newlines). A single reply may emit a stack-mode
// tag multiple times, so all occurrences are captured: the trimmed bodies
// are joined with a blank line into one result per tag.
//
// When a tag is opened but never closed, the fallback takes the text up to
// the next occurrence of any known tag token or end of string. A tag with
// zero matches under both strategies contributes no result; absence is not
// an error.
func Parse(responseText string, defs []variable.Definition) []Result {
	names := bareNames(defs)
	delim := delimiterPattern(names)

	results := make([]Result, 0, len(defs))
	seen := make(map[string]bool, len(defs))
	for _, d := range defs {
		bare := d.BareTag()
		if bare == "" || seen[bare] {
			continue
		}
		seen[bare] = true

		content, ok := extract(responseText, bare, delim)
		if !ok {
			continue
		}
		results = append(results, Result{Tag: bare, Content: content})
	}
	return results
}

// extract returns the merged content for one bare tag name.
func extract(text, bare string, delim *regexp.Regexp) (string, bool) {
	closed := regexp.MustCompile(`(?is)\[` + regexp.QuoteMeta(bare) + `\](.*?)\[/` + regexp.QuoteMeta(bare) + `\]`)

	if matches := closed.FindAllStringSubmatch(text, -1); len(matches) > 0 {
		parts := make([]string, 0, len(matches))
		for _, m := range matches {
			parts = append(parts, strings.TrimSpace(m[1]))
		}
		return strings.Join(parts, "\n\n"), true
	}

	// Fallback: open tag without a close. Content runs to the next known
	// tag token or end of string.
	open := regexp.MustCompile(`(?i)\[` + regexp.QuoteMeta(bare) + `\]`)
	openings := open.FindAllStringIndex(text, -1)
	if len(openings) == 0 {
		return "", false
	}

	parts := make([]string, 0, len(openings))
	for _, loc := range openings {
		rest := text[loc[1]:]
		end := len(rest)
		if delim != nil {
			if d := delim.FindStringIndex(rest); d != nil {
				end = d[0]
			}
		}
		parts = append(parts, strings.TrimSpace(rest[:end]))
	}
	return strings.Join(parts, "\n\n"), true
}

// bareNames collects the distinct bare tag names of defs, in order.
func bareNames(defs []variable.Definition) []string {
	names := make([]string, 0, len(defs))
	seen := make(map[string]bool, len(defs))
	for _, d := range defs {
		bare := d.BareTag()
		if bare != "" && !seen[bare] {
			seen[bare] = true
			names = append(names, bare)
		}
	}
	return names
}

// delimiterPattern matches any known open or close tag token.
func delimiterPattern(names []string) *regexp.Regexp {
	if len(names) == 0 {
		return nil
	}
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = regexp.QuoteMeta(n)
	}
	return regexp.MustCompile(`(?i)\[/?(?:` + strings.Join(quoted, "|") + `)\]`)
}

// DefaultInstructionHeader opens the tag-emission instruction block.
const DefaultInstructionHeader = "Wrap the requested content in the tags below. Text outside the tags is ignored."

// Instructions builds the "emit these tags" block appended to prompts,
// one line per definition, phrased per mode.
func Instructions(defs []variable.Definition) string {
	return InstructionsWithHeader(DefaultInstructionHeader, defs)
}

// InstructionsWithHeader is Instructions with a custom lead-in line. An
// empty header falls back to the default.
func InstructionsWithHeader(header string, defs []variable.Definition) string {
	if len(defs) == 0 {
		return ""
	}
	if header == "" {
		header = DefaultInstructionHeader
	}

	var sb strings.Builder
	sb.WriteString(header)
	sb.WriteByte('\n')
	for _, d := range defs {
		bare := d.BareTag()
		if bare == "" {
			continue
		}
		switch d.Mode {
		case variable.ModeReplace:
			fmt.Fprintf(&sb, "- [%s]...[/%s]: output the complete updated %s; it replaces the previous value.\n", bare, bare, d.Name)
		default:
			fmt.Fprintf(&sb, "- [%s]...[/%s]: output new %s entries; the tag may appear multiple times.\n", bare, bare, d.Name)
		}
	}
	return sb.String()
}

// allTagsPattern matches any bracket token, open or close.
var allTagsPattern = regexp.MustCompile(`\[(/?)([^\[\]\r\n]+)\]`)

// FindAllTags enumerates every bracket token present in text, for
// diagnostics. Close tokens are reported by their bare name; duplicates
// are dropped, first-seen order kept.
func FindAllTags(text string) []string {
	matches := allTagsPattern.FindAllStringSubmatch(text, -1)
	out := make([]string, 0, len(matches))
	seen := make(map[string]bool, len(matches))
	for _, m := range matches {
		name := m[2]
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

// CheckCompleteness reports which expected tags produced no result.
// Used for partial-output diagnostics, never a hard failure.
func CheckCompleteness(results []Result, defs []variable.Definition) []string {
	found := make(map[string]bool, len(results))
	for _, r := range results {
		found[r.Tag] = true
	}

	missing := make([]string, 0)
	for _, name := range bareNames(defs) {
		if !found[name] {
			missing = append(missing, name)
		}
	}
	return missing
}
