// Package prompt supplies rendered prompt text by key. The built-in
// defaults can be overridden by the user; overrides and user-defined custom
// prompts persist in one JSON file.
package prompt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"text/template"
)

const customPromptsKey = "CUSTOM_PROMPTS"

// Manager resolves prompt keys against user overrides first, then the
// built-in defaults. A single Manager is constructed at startup and passed
// by reference; there is no ambient global instance.
type Manager struct {
	path     string
	defaults map[string]string

	mu     sync.RWMutex
	user   map[string]string // overrides of system prompts
	custom map[string]string // user-defined prompts
	logger *slog.Logger
}

// promptFile is the on-disk shape: system overrides flat at the top level,
// custom prompts nested under CUSTOM_PROMPTS.
type promptFile map[string]json.RawMessage

// NewManager loads the override file at path, creating it with the defaults
// on first run and rebuilding it when it is corrupt.
func NewManager(path string, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		path:     path,
		defaults: defaultPrompts(),
		user:     map[string]string{},
		custom:   map[string]string{},
		logger:   logger.With("component", "prompt_manager"),
	}
	if err := m.load(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) load() error {
	data, err := os.ReadFile(m.path)
	if os.IsNotExist(err) {
		return m.persistLocked()
	}
	if err != nil {
		return fmt.Errorf("reading prompt config: %w", err)
	}

	var file promptFile
	if err := json.Unmarshal(data, &file); err != nil {
		m.logger.Warn("prompt config corrupt, rebuilding defaults",
			"path", m.path, "error", err)
		m.user = map[string]string{}
		m.custom = map[string]string{}
		return m.persistLocked()
	}

	for key, raw := range file {
		if key == customPromptsKey {
			if err := json.Unmarshal(raw, &m.custom); err != nil {
				m.logger.Warn("ignoring malformed custom prompts", "error", err)
				m.custom = map[string]string{}
			}
			continue
		}
		var value string
		if err := json.Unmarshal(raw, &value); err != nil {
			continue
		}
		if _, ok := m.defaults[key]; ok && value != m.defaults[key] {
			m.user[key] = value
		}
	}
	return nil
}

func (m *Manager) persistLocked() error {
	merged := map[string]any{}
	for key, value := range m.defaults {
		merged[key] = value
	}
	for key, value := range m.user {
		merged[key] = value
	}
	merged[customPromptsKey] = m.custom

	data, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling prompt config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return fmt.Errorf("creating prompt config directory: %w", err)
	}
	if err := os.WriteFile(m.path, data, 0o644); err != nil {
		return fmt.Errorf("writing prompt config: %w", err)
	}
	return nil
}

// Get returns the raw prompt text for key; user overrides win over the
// built-in defaults, and custom keys resolve last.
func (m *Manager) Get(key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if value, ok := m.user[key]; ok {
		return value, nil
	}
	if value, ok := m.defaults[key]; ok {
		return value, nil
	}
	if value, ok := m.custom[key]; ok {
		return value, nil
	}
	return "", fmt.Errorf("unknown prompt key %q", key)
}

// Render resolves key and executes it as a text/template with data.
func (m *Manager) Render(key string, data any) (string, error) {
	text, err := m.Get(key)
	if err != nil {
		return "", err
	}

	tmpl, err := template.New(key).Parse(text)
	if err != nil {
		return "", fmt.Errorf("parsing prompt template %q: %w", key, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("executing prompt template %q: %w", key, err)
	}
	return buf.String(), nil
}

// Save stores content under key: system keys become overrides, anything
// else becomes a custom prompt.
func (m *Manager) Save(key, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.defaults[key]; ok {
		m.user[key] = content
	} else {
		m.custom[key] = content
	}
	return m.persistLocked()
}

// Delete removes a custom prompt. System prompts cannot be deleted; the
// boolean reports whether anything was removed.
func (m *Manager) Delete(key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.defaults[key]; ok {
		return false, nil
	}
	if _, ok := m.custom[key]; !ok {
		return false, nil
	}
	delete(m.custom, key)
	return true, m.persistLocked()
}

// Reset drops the user override for a system prompt, restoring the default.
func (m *Manager) Reset(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.defaults[key]; !ok {
		return fmt.Errorf("unknown prompt key %q", key)
	}
	delete(m.user, key)
	return m.persistLocked()
}

// All returns the effective system prompt set and the custom prompt set.
func (m *Manager) All() map[string]map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	system := make(map[string]string, len(m.defaults))
	for key, value := range m.defaults {
		system[key] = value
	}
	for key, value := range m.user {
		system[key] = value
	}
	custom := make(map[string]string, len(m.custom))
	for key, value := range m.custom {
		custom[key] = value
	}
	return map[string]map[string]string{
		"system": system,
		"custom": custom,
	}
}
