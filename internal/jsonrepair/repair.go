// Package jsonrepair recovers a parseable JSON document from the malformed
// replies chat backends produce when asked for structured output. It targets
// two specific failure modes, truncation and over-escaping, and is not a
// general recovery parser: interleaved garbage inside otherwise-valid
// structure is out of scope.
package jsonrepair

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"
)

// defaultOutlineJSON is the minimal valid outline skeleton returned whenever
// repair cannot produce parseable JSON, so downstream stages always have a
// valid tree to work with.
const defaultOutlineJSON = `{"body_paragraphs":[{"chapter_title":"项目验收要求","sections":[{"section_title":"验收阶段","sub_sections":[{"sub_section_title":"总体要求","content_summary":"项目验收需符合合同及行业规范要求"}]}]}]}`

// DefaultOutline returns the fallback outline skeleton as JSON text.
func DefaultOutline() string {
	return defaultOutlineJSON
}

var (
	leadingFence  = regexp.MustCompile("^```(?:json)?\\s*")
	trailingFence = regexp.MustCompile("\\s*```$")
	whitespaceRun = regexp.MustCompile(`\s+`)
	trailingComma = regexp.MustCompile(`,\s*([}\]])`)
)

// Repair cleans a raw backend reply into valid JSON text, falling back to
// the default outline skeleton when the input is beyond recovery. It never
// fails. The rules run in a fixed order; each assumes the previous ones
// already applied, and the whole pass is idempotent.
func Repair(raw string) string {
	return repair(raw, slog.Default().With("component", "jsonrepair"))
}

// RepairWith is Repair with a caller-supplied logger.
func RepairWith(raw string, logger *slog.Logger) string {
	if logger == nil {
		logger = slog.Default()
	}
	return repair(raw, logger)
}

func repair(raw string, logger *slog.Logger) string {
	cleaned := strings.TrimSpace(raw)

	// 1. Strip a fenced-code wrapper.
	cleaned = leadingFence.ReplaceAllString(cleaned, "")
	cleaned = trailingFence.ReplaceAllString(cleaned, "")

	// 2. Undo spurious quote escaping and drop embedded line breaks.
	cleaned = strings.ReplaceAll(cleaned, `\"`, `"`)
	cleaned = strings.ReplaceAll(cleaned, "\n", "")
	cleaned = strings.ReplaceAll(cleaned, "\r", "")

	// 3. Collapse whitespace runs.
	cleaned = whitespaceRun.ReplaceAllString(cleaned, " ")
	cleaned = strings.TrimSpace(cleaned)

	// 4. Keep only the JSON body: discard everything before the first
	// structural opener.
	start := openerIndex(cleaned)
	if start < 0 {
		logger.Warn("no JSON opener found in reply, using default skeleton",
			"reply_length", len(raw))
		return defaultOutlineJSON
	}
	cleaned = cleaned[start:]

	// 5. Drop trailing commas before closers.
	cleaned = trailingComma.ReplaceAllString(cleaned, "$1")

	// 6. Append missing closers to repair truncation, brackets before braces.
	cleaned += strings.Repeat("]", unclosed(cleaned, '[', ']'))
	cleaned += strings.Repeat("}", unclosed(cleaned, '{', '}'))

	// 7. Final strict check.
	if !json.Valid([]byte(cleaned)) {
		var synErr error
		var probe any
		synErr = json.Unmarshal([]byte(cleaned), &probe)
		logger.Warn("repaired reply still unparseable, using default skeleton",
			"error", synErr,
			"cleaned_prefix", prefix(cleaned, 200))
		return defaultOutlineJSON
	}

	return cleaned
}

func openerIndex(s string) int {
	brace := strings.IndexByte(s, '{')
	bracket := strings.IndexByte(s, '[')
	switch {
	case brace < 0:
		return bracket
	case bracket < 0:
		return brace
	case brace < bracket:
		return brace
	default:
		return bracket
	}
}

func unclosed(s string, opener, closer byte) int {
	diff := strings.Count(s, string(opener)) - strings.Count(s, string(closer))
	if diff < 0 {
		return 0
	}
	return diff
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
