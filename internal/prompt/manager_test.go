package prompt

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestManager(t *testing.T) (*Manager, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prompts.json")
	m, err := NewManager(path, slog.Default())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m, path
}

func TestNewManagerCreatesDefaultsFile(t *testing.T) {
	_, path := newTestManager(t)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("prompts file not created: %v", err)
	}

	var file map[string]json.RawMessage
	if err := json.Unmarshal(data, &file); err != nil {
		t.Fatalf("prompts file not valid JSON: %v", err)
	}
	for _, key := range []string{
		KeyOutlineSystemRole, KeyOutlineTechUser, KeyOutlineScoreUser,
		KeyOutlineGenerateUser, KeyContentSystemRole, KeyContentSectionUser,
		customPromptsKey,
	} {
		if _, ok := file[key]; !ok {
			t.Errorf("prompts file missing key %q", key)
		}
	}
}

func TestGetAndRender(t *testing.T) {
	m, _ := newTestManager(t)

	system, err := m.Get(KeyContentSystemRole)
	if err != nil || system == "" {
		t.Fatalf("Get system role: %q, %v", system, err)
	}

	rendered, err := m.Render(KeyContentSectionUser, map[string]string{
		"Title":          "1.1 概述",
		"ContentSummary": "项目背景说明",
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(rendered, "1.1 概述") || !strings.Contains(rendered, "项目背景说明") {
		t.Errorf("rendered prompt missing substitutions: %q", rendered)
	}
	if strings.Contains(rendered, "{{") {
		t.Errorf("unexpanded template in rendered prompt: %q", rendered)
	}

	if _, err := m.Get("NO_SUCH_KEY"); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestSaveOverridesSystemPrompt(t *testing.T) {
	m, path := newTestManager(t)

	if err := m.Save(KeyContentSystemRole, "自定义系统角色"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := m.Get(KeyContentSystemRole)
	if err != nil || got != "自定义系统角色" {
		t.Errorf("Get after Save = %q, %v", got, err)
	}

	// Overrides survive a reload.
	reloaded, err := NewManager(path, slog.Default())
	if err != nil {
		t.Fatal(err)
	}
	got, err = reloaded.Get(KeyContentSystemRole)
	if err != nil || got != "自定义系统角色" {
		t.Errorf("Get after reload = %q, %v", got, err)
	}
}

func TestSaveCustomPrompt(t *testing.T) {
	m, path := newTestManager(t)

	if err := m.Save("MY_PROMPT", "自定义提示词"); err != nil {
		t.Fatal(err)
	}
	got, err := m.Get("MY_PROMPT")
	if err != nil || got != "自定义提示词" {
		t.Errorf("Get custom = %q, %v", got, err)
	}

	all := m.All()
	if _, ok := all["custom"]["MY_PROMPT"]; !ok {
		t.Error("custom prompt missing from All()")
	}
	if _, ok := all["system"]["MY_PROMPT"]; ok {
		t.Error("custom prompt leaked into system set")
	}

	reloaded, err := NewManager(path, slog.Default())
	if err != nil {
		t.Fatal(err)
	}
	if got, err := reloaded.Get("MY_PROMPT"); err != nil || got != "自定义提示词" {
		t.Errorf("custom prompt lost on reload: %q, %v", got, err)
	}
}

func TestDelete(t *testing.T) {
	m, _ := newTestManager(t)

	// System prompts are not deletable.
	deleted, err := m.Delete(KeyOutlineSystemRole)
	if err != nil {
		t.Fatal(err)
	}
	if deleted {
		t.Error("system prompt must not be deletable")
	}
	if _, err := m.Get(KeyOutlineSystemRole); err != nil {
		t.Errorf("system prompt gone after delete attempt: %v", err)
	}

	// Custom prompts are.
	if err := m.Save("TEMP", "x"); err != nil {
		t.Fatal(err)
	}
	deleted, err = m.Delete("TEMP")
	if err != nil || !deleted {
		t.Errorf("Delete custom = %v, %v", deleted, err)
	}
	if _, err := m.Get("TEMP"); err == nil {
		t.Error("custom prompt still resolvable after delete")
	}

	// Deleting a key that never existed reports false without error.
	deleted, err = m.Delete("NEVER_EXISTED")
	if err != nil || deleted {
		t.Errorf("Delete missing = %v, %v", deleted, err)
	}
}

func TestReset(t *testing.T) {
	m, _ := newTestManager(t)
	original, _ := m.Get(KeyOutlineSystemRole)

	if err := m.Save(KeyOutlineSystemRole, "覆盖"); err != nil {
		t.Fatal(err)
	}
	if err := m.Reset(KeyOutlineSystemRole); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	got, _ := m.Get(KeyOutlineSystemRole)
	if got != original {
		t.Errorf("Reset did not restore default: %q", got)
	}

	if err := m.Reset("NO_SUCH_KEY"); err == nil {
		t.Error("expected error resetting unknown key")
	}
}

func TestCorruptFileRebuilt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := NewManager(path, slog.Default())
	if err != nil {
		t.Fatalf("NewManager must rebuild a corrupt file: %v", err)
	}
	if _, err := m.Get(KeyOutlineSystemRole); err != nil {
		t.Errorf("defaults unavailable after rebuild: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !json.Valid(data) {
		t.Error("rebuilt prompts file still invalid")
	}
}
