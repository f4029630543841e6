package workflow

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/bidcraft/bidwriter/internal/storage"
)

// failingStore rejects every write so assembly's persistence failure path
// can be exercised.
type failingStore struct {
	storage.Store
}

func (failingStore) Save(context.Context, string, []byte) error {
	return errors.New("disk full")
}

func TestAssembleGroupsAndPersists(t *testing.T) {
	store := storage.NewFileSystem(t.TempDir())
	a := NewAssembler(store, slog.Default())

	fragments := []Fragment{
		{Title: "1.1 总体设计", Chapter: "第一章 方案", Body: "总体设计正文", Index: 0},
		{Title: "1.1.2 架构细化", Chapter: "第一章 方案", Body: "架构正文", Index: 1},
		{Title: "1.2 网络设计", Chapter: "第一章 方案", Body: "网络正文", Index: 2},
		{Title: "2.1 实施计划", Chapter: "第二章 实施", Body: "计划正文", Index: 3},
	}

	ok, document := a.Assemble(context.Background(), fragments)
	if !ok {
		t.Fatal("expected assembly to persist successfully")
	}

	for _, want := range []string{
		"# 第一章 方案\n",
		"# 第二章 实施\n",
		"## 1.1 总体设计\n",
		"## 1.2 网络设计\n",
		"### 1.1 总体设计\n\n总体设计正文\n",
		"### 1.1.2 架构细化\n\n架构正文\n",
		"### 2.1 实施计划\n\n计划正文\n",
	} {
		if !strings.Contains(document, want) {
			t.Errorf("document missing %q:\n%s", want, document)
		}
	}

	// "1.1.2" shares the "1.1" prefix group, so it must sit under the
	// "1.1 总体设计" heading, before the "1.2" group starts.
	if strings.Index(document, "1.1.2 架构细化") > strings.Index(document, "## 1.2") {
		t.Error("prefix-group member placed outside its group")
	}

	// Chapters keep first-seen order.
	if strings.Index(document, "第一章") > strings.Index(document, "第二章") {
		t.Error("chapters out of order")
	}

	persisted, err := store.Load(context.Background(), storage.KeyDocument)
	if err != nil {
		t.Fatalf("loading persisted document: %v", err)
	}
	if string(persisted) != document {
		t.Error("persisted document differs from returned document")
	}
}

func TestAssembleSortsPrefixesLexicographically(t *testing.T) {
	store := storage.NewFileSystem(t.TempDir())
	a := NewAssembler(store, slog.Default())

	fragments := []Fragment{
		{Title: "2.1 第二组", Chapter: "第一章", Body: "b", Index: 0},
		{Title: "10.1 第十组", Chapter: "第一章", Body: "b", Index: 1},
	}

	_, document := a.Assemble(context.Background(), fragments)

	// String order puts "10.1" ahead of "2.1"; outlines wanting numeric
	// order must zero-pad.
	if strings.Index(document, "## 10.1") > strings.Index(document, "## 2.1") {
		t.Errorf("expected lexicographic prefix order:\n%s", document)
	}
}

func TestAssembleUnknownTitleFallback(t *testing.T) {
	store := storage.NewFileSystem(t.TempDir())
	a := NewAssembler(store, slog.Default())

	fragments := []Fragment{
		{Title: "1.1.1 无组标题", Chapter: "第一章", Body: "b", Index: 0},
	}

	_, document := a.Assemble(context.Background(), fragments)
	if !strings.Contains(document, "## 1.1 未知标题\n") {
		t.Errorf("expected unknown-title group heading:\n%s", document)
	}
}

func TestAssemblePersistFailure(t *testing.T) {
	a := NewAssembler(failingStore{}, slog.Default())

	fragments := []Fragment{
		{Title: "1.1 节", Chapter: "第一章", Body: "正文", Index: 0},
	}

	ok, document := a.Assemble(context.Background(), fragments)
	if ok {
		t.Error("expected failure flag when persistence fails")
	}
	if !strings.Contains(document, "正文") {
		t.Error("document must still be returned on persistence failure")
	}
}

func TestAssembleKeepsFailedFragmentPlaceholders(t *testing.T) {
	store := storage.NewFileSystem(t.TempDir())
	a := NewAssembler(store, slog.Default())

	fragments := []Fragment{
		{Title: "1.1 成功节", Chapter: "第一章", Body: "正文", Index: 0},
		{Title: "1.2 失败节", Chapter: "第一章", Body: "生成失败：backend unavailable", Index: 1, Failed: true},
	}

	ok, document := a.Assemble(context.Background(), fragments)
	if !ok {
		t.Fatal("assembly itself must succeed even with failed fragments")
	}
	if !strings.Contains(document, "### 1.2 失败节\n\n生成失败：backend unavailable\n") {
		t.Errorf("placeholder body missing:\n%s", document)
	}
}
