// Package outline holds the typed chapter/section/subsection tree parsed
// from a repaired backend reply, plus its canonical serializations and the
// flattening used by the content scheduler.
package outline

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Outline is the three-level document structure. It is replaced wholesale
// on every regeneration; partial updates never happen.
type Outline struct {
	BodyParagraphs []Chapter `json:"body_paragraphs"`
}

type Chapter struct {
	ChapterTitle string    `json:"chapter_title"`
	Sections     []Section `json:"sections"`
}

type Section struct {
	SectionTitle string       `json:"section_title"`
	SubSections  []SubSection `json:"sub_sections"`
}

type SubSection struct {
	SubSectionTitle string `json:"sub_section_title"`
	ContentSummary  string `json:"content_summary"`
}

// WorkItem is one flattened leaf subsection, the unit of independent content
// generation. Index preserves declaration order end to end.
type WorkItem struct {
	Title          string
	ContentSummary string
	Chapter        string
	Index          int
}

// ValidationError names the first required field missing from a candidate
// outline structure.
type ValidationError struct {
	Field string
	Path  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid outline: missing %s at %s", e.Field, e.Path)
}

// raw* mirrors the wire structure with pointer fields so missing keys are
// distinguishable from empty values.
type rawOutline struct {
	BodyParagraphs *[]rawChapter `json:"body_paragraphs"`
}

type rawChapter struct {
	ChapterTitle *string       `json:"chapter_title"`
	Sections     *[]rawSection `json:"sections"`
}

type rawSection struct {
	SectionTitle *string          `json:"section_title"`
	SubSections  *[]rawSubSection `json:"sub_sections"`
}

type rawSubSection struct {
	SubSectionTitle *string `json:"sub_section_title"`
	ContentSummary  *string `json:"content_summary"`
}

// Parse decodes and validates an outline document. Validation walks the tree
// top to bottom and fails on the first missing required field; a partial
// tree is never returned.
func Parse(data []byte) (*Outline, error) {
	var raw rawOutline
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding outline: %w", err)
	}

	if raw.BodyParagraphs == nil {
		return nil, &ValidationError{Field: "body_paragraphs", Path: "$"}
	}
	if len(*raw.BodyParagraphs) == 0 {
		return nil, &ValidationError{Field: "body_paragraphs", Path: "$"}
	}

	out := &Outline{BodyParagraphs: make([]Chapter, 0, len(*raw.BodyParagraphs))}
	for i, ch := range *raw.BodyParagraphs {
		path := fmt.Sprintf("body_paragraphs[%d]", i)
		if ch.ChapterTitle == nil || *ch.ChapterTitle == "" {
			return nil, &ValidationError{Field: "chapter_title", Path: path}
		}
		if ch.Sections == nil || len(*ch.Sections) == 0 {
			return nil, &ValidationError{Field: "sections", Path: path}
		}

		chapter := Chapter{ChapterTitle: *ch.ChapterTitle}
		for j, sec := range *ch.Sections {
			secPath := fmt.Sprintf("%s.sections[%d]", path, j)
			if sec.SectionTitle == nil || *sec.SectionTitle == "" {
				return nil, &ValidationError{Field: "section_title", Path: secPath}
			}
			if sec.SubSections == nil || len(*sec.SubSections) == 0 {
				return nil, &ValidationError{Field: "sub_sections", Path: secPath}
			}

			section := Section{SectionTitle: *sec.SectionTitle}
			for k, sub := range *sec.SubSections {
				subPath := fmt.Sprintf("%s.sub_sections[%d]", secPath, k)
				if sub.SubSectionTitle == nil || *sub.SubSectionTitle == "" {
					return nil, &ValidationError{Field: "sub_section_title", Path: subPath}
				}
				if sub.ContentSummary == nil || *sub.ContentSummary == "" {
					return nil, &ValidationError{Field: "content_summary", Path: subPath}
				}
				section.SubSections = append(section.SubSections, SubSection{
					SubSectionTitle: *sub.SubSectionTitle,
					ContentSummary:  *sub.ContentSummary,
				})
			}
			chapter.Sections = append(chapter.Sections, section)
		}
		out.BodyParagraphs = append(out.BodyParagraphs, chapter)
	}

	return out, nil
}

// MarshalCanonical serializes the outline with a stable field order and
// stable indentation, for persistence and round-trip testing.
func (o *Outline) MarshalCanonical() ([]byte, error) {
	return json.MarshalIndent(o, "", "  ")
}

// Markdown flattens the tree to heading-marked plain text for human review.
// It is purely derived output and is never parsed back.
func (o *Outline) Markdown() string {
	var b strings.Builder
	for _, chapter := range o.BodyParagraphs {
		fmt.Fprintf(&b, "# %s\n", chapter.ChapterTitle)
		for _, section := range chapter.Sections {
			fmt.Fprintf(&b, "## %s\n", section.SectionTitle)
			for _, sub := range section.SubSections {
				fmt.Fprintf(&b, "### %s\n", sub.SubSectionTitle)
				fmt.Fprintf(&b, "\n%s\n\n", sub.ContentSummary)
			}
		}
	}
	return b.String()
}

// Flatten lists every leaf subsection in depth-first declaration order.
// Each leaf appears exactly once; Index is its position in this ordering.
func (o *Outline) Flatten() []WorkItem {
	var items []WorkItem
	for _, chapter := range o.BodyParagraphs {
		for _, section := range chapter.Sections {
			for _, sub := range section.SubSections {
				items = append(items, WorkItem{
					Title:          sub.SubSectionTitle,
					ContentSummary: sub.ContentSummary,
					Chapter:        chapter.ChapterTitle,
					Index:          len(items),
				})
			}
		}
	}
	return items
}

// LeafCount returns the number of content-generation work items in the tree.
func (o *Outline) LeafCount() int {
	count := 0
	for _, chapter := range o.BodyParagraphs {
		for _, section := range chapter.Sections {
			count += len(section.SubSections)
		}
	}
	return count
}
