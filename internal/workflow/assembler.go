package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/bidcraft/bidwriter/internal/storage"
)

// unknownTitle labels a section group whose fragment titles carry no usable
// numeric prefix line, so assembly never fails on malformed titles.
const unknownTitle = "未知标题"

// Assembler regroups completed fragments into one ordered document and
// persists it. Grouping runs over the fully collected, index-ordered result
// list; nothing is accumulated while generation is still in flight.
type Assembler struct {
	store  storage.Store
	logger *slog.Logger
}

func NewAssembler(store storage.Store, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{
		store:  store,
		logger: logger.With("component", "assembler"),
	}
}

type sectionGroup struct {
	title     string
	fragments []Fragment
}

// Assemble builds the final document from fragments already sorted by
// declaration order: one heading per chapter (first-seen order), one
// sub-heading per numeric-prefix group, one sub-sub-heading per fragment.
// The document is written to the artifact store; the returned flag is false
// only when that write fails.
//
// Prefix groups sort lexicographically, so "10.1" orders before "2.1".
// That matches the behavior this pipeline has always had; callers needing
// numeric ordering must zero-pad their outline numbering.
func (a *Assembler) Assemble(ctx context.Context, fragments []Fragment) (bool, string) {
	var chapterOrder []string
	byChapter := make(map[string][]Fragment)
	for _, fragment := range fragments {
		if _, seen := byChapter[fragment.Chapter]; !seen {
			chapterOrder = append(chapterOrder, fragment.Chapter)
		}
		byChapter[fragment.Chapter] = append(byChapter[fragment.Chapter], fragment)
	}

	var parts []string
	for _, chapter := range chapterOrder {
		parts = append(parts, fmt.Sprintf("# %s\n\n", chapter))

		var prefixOrder []string
		groups := make(map[string]*sectionGroup)
		for _, fragment := range byChapter[chapter] {
			prefix := sectionPrefix(fragment.Title)
			group, ok := groups[prefix]
			if !ok {
				group = &sectionGroup{title: groupTitle(fragment.Title, prefix)}
				groups[prefix] = group
				prefixOrder = append(prefixOrder, prefix)
			}
			group.fragments = append(group.fragments, fragment)
		}
		sort.Strings(prefixOrder)

		for _, prefix := range prefixOrder {
			group := groups[prefix]
			parts = append(parts, fmt.Sprintf("## %s\n\n", group.title))
			for _, fragment := range group.fragments {
				parts = append(parts, fmt.Sprintf("### %s\n\n%s\n\n", fragment.Title, fragment.Body))
			}
		}
	}

	document := strings.Join(parts, "\n")

	if err := a.store.Save(ctx, storage.KeyDocument, []byte(document)); err != nil {
		a.logger.Error("failed to persist assembled document",
			"key", storage.KeyDocument,
			"error", err)
		return false, document
	}

	a.logger.Info("document assembled",
		"chapters", len(chapterOrder),
		"fragments", len(fragments),
		"size", len(document))

	return true, document
}

// sectionPrefix extracts the leading dotted-number token of a title,
// truncated to two components: "2.1.3 安全方案" yields "2.1".
func sectionPrefix(title string) string {
	fields := strings.Fields(title)
	if len(fields) == 0 {
		return ""
	}
	components := strings.Split(fields[0], ".")
	if len(components) > 2 {
		components = components[:2]
	}
	return strings.Join(components, ".")
}

// groupTitle finds the title line that carries the prefix; titles without
// one get the literal unknown-title label so grouping cannot fail.
func groupTitle(title, prefix string) string {
	want := prefix + " "
	for _, line := range strings.Split(title, "\n") {
		if strings.HasPrefix(line, want) {
			return line
		}
	}
	return want + unknownTitle
}
