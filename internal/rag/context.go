package rag

import (
	"strings"
	"unicode/utf8"
)

const contextSeparator = "\n\n"

// AssembleContext joins the usable matches into one context block, in the
// order given. Matches without content are skipped; a match with a title is
// rendered as "title: content". The result is empty when nothing is usable.
func AssembleContext(matches []Match) string {
	return AssembleContextLimit(matches, 0)
}

// AssembleContextLimit is AssembleContext with a character budget. The first
// usable entry is always kept, cut to maxChars if it is longer. Later entries
// that would push the block past maxChars are skipped whole, and smaller
// entries ranked after them may still fit. A maxChars of 0 or less means no
// limit.
func AssembleContextLimit(matches []Match, maxChars int) string {
	var b strings.Builder

	for _, m := range matches {
		entry := formatEntry(m.Metadata)
		if entry == "" {
			continue
		}

		if b.Len() == 0 {
			b.WriteString(cutToBytes(entry, maxChars))
			continue
		}

		if maxChars > 0 && b.Len()+len(contextSeparator)+len(entry) > maxChars {
			continue
		}

		b.WriteString(contextSeparator)
		b.WriteString(entry)
	}

	return b.String()
}

// formatEntry renders one match, or "" when it has no usable content.
// Title and content are written as stored.
func formatEntry(meta Metadata) string {
	if strings.TrimSpace(meta.Content) == "" {
		return ""
	}
	if strings.TrimSpace(meta.Title) != "" {
		return meta.Title + ": " + meta.Content
	}
	return meta.Content
}

// cutToBytes shortens s to at most max bytes without splitting a rune.
func cutToBytes(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
