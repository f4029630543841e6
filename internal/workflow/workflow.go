// Package workflow drives the bid-document pipeline: outline generation
// from the two input documents, parallel expansion of every outline leaf,
// and assembly of the final document.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/bidcraft/bidwriter/internal/config"
	"github.com/bidcraft/bidwriter/internal/jsonrepair"
	"github.com/bidcraft/bidwriter/internal/llm"
	"github.com/bidcraft/bidwriter/internal/outline"
	"github.com/bidcraft/bidwriter/internal/prompt"
	"github.com/bidcraft/bidwriter/internal/storage"
)

var (
	// ErrInputMissing reports an input document that was never uploaded.
	ErrInputMissing = errors.New("input document missing")
	// ErrInputEmpty reports an uploaded input document with no content.
	ErrInputEmpty = errors.New("input document empty")
	// ErrNoOutline reports a content request before any outline exists.
	ErrNoOutline = errors.New("no outline generated yet")
)

// Workflow owns one pipeline's collaborators. A single instance serves the
// process; each run is tagged with a fresh run ID in the logs.
type Workflow struct {
	client    ChatClient
	prompts   *prompt.Manager
	store     storage.Store
	scheduler *Scheduler
	assembler *Assembler
	progress  *Progress
	logger    *slog.Logger
}

func New(cfg *config.Config, client ChatClient, prompts *prompt.Manager, store storage.Store, logger *slog.Logger) *Workflow {
	if logger == nil {
		logger = slog.Default()
	}
	progress := &Progress{}
	return &Workflow{
		client:  client,
		prompts: prompts,
		store:   store,
		scheduler: NewScheduler(client, prompts, progress,
			cfg.Generation.Concurrency, cfg.Generation.ItemPause, cfg.Generation.BatchPause, logger),
		assembler: NewAssembler(store, logger),
		progress:  progress,
		logger:    logger.With("component", "workflow"),
	}
}

// Progress returns a read-only snapshot of the current generation round.
func (w *Workflow) Progress() ProgressSnapshot {
	return w.progress.Snapshot()
}

// SaveInputs stores the technical requirements and scoring rubric blobs.
func (w *Workflow) SaveInputs(ctx context.Context, tech, score string) error {
	if err := w.store.Save(ctx, storage.KeyTechInput, []byte(tech)); err != nil {
		return fmt.Errorf("saving tech input: %w", err)
	}
	if err := w.store.Save(ctx, storage.KeyScoreInput, []byte(score)); err != nil {
		return fmt.Errorf("saving score input: %w", err)
	}
	return nil
}

func (w *Workflow) loadInput(ctx context.Context, key string) (string, error) {
	if !w.store.Exists(ctx, key) {
		return "", fmt.Errorf("%s: %w", key, ErrInputMissing)
	}
	data, err := w.store.Load(ctx, key)
	if err != nil {
		return "", err
	}
	content := string(data)
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("%s: %w", key, ErrInputEmpty)
	}
	return content, nil
}

// GenerateOutline runs the outline stage: inputs → prompts → backend →
// repair → validated tree → persisted canonical forms. Transport and
// validation failures surface to the caller; an unrecoverable reply resolves
// silently to the default skeleton inside the repair engine.
func (w *Workflow) GenerateOutline(ctx context.Context) (*outline.Outline, error) {
	runID := uuid.NewString()
	logger := w.logger.With("run_id", runID)
	logger.Info("starting outline generation")

	tech, err := w.loadInput(ctx, storage.KeyTechInput)
	if err != nil {
		return nil, err
	}
	score, err := w.loadInput(ctx, storage.KeyScoreInput)
	if err != nil {
		return nil, err
	}

	messages, err := w.outlineMessages(tech, score)
	if err != nil {
		return nil, err
	}

	raw, err := w.client.Chat(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("outline generation call: %w", err)
	}
	logger.Debug("outline reply received", "length", len(raw))

	repaired := jsonrepair.RepairWith(raw, logger)

	parsed, err := outline.Parse([]byte(repaired))
	if err != nil {
		return nil, err
	}

	if err := w.persistOutline(ctx, parsed); err != nil {
		return nil, err
	}

	logger.Info("outline generated",
		"chapters", len(parsed.BodyParagraphs),
		"leaves", parsed.LeafCount())
	return parsed, nil
}

func (w *Workflow) outlineMessages(tech, score string) ([]llm.Message, error) {
	systemRole, err := w.prompts.Get(prompt.KeyOutlineSystemRole)
	if err != nil {
		return nil, err
	}
	techMsg, err := w.prompts.Render(prompt.KeyOutlineTechUser, map[string]string{"TechContent": tech})
	if err != nil {
		return nil, err
	}
	scoreMsg, err := w.prompts.Render(prompt.KeyOutlineScoreUser, map[string]string{"ScoreContent": score})
	if err != nil {
		return nil, err
	}
	generateMsg, err := w.prompts.Get(prompt.KeyOutlineGenerateUser)
	if err != nil {
		return nil, err
	}

	return []llm.Message{
		{Role: "system", Content: systemRole},
		{Role: "user", Content: techMsg},
		{Role: "user", Content: scoreMsg},
		{Role: "user", Content: generateMsg},
	}, nil
}

func (w *Workflow) persistOutline(ctx context.Context, o *outline.Outline) error {
	canonical, err := o.MarshalCanonical()
	if err != nil {
		return fmt.Errorf("serializing outline: %w", err)
	}
	if err := w.store.Save(ctx, storage.KeyOutlineJSON, canonical); err != nil {
		return fmt.Errorf("saving outline json: %w", err)
	}
	if err := w.store.Save(ctx, storage.KeyOutlineMD, []byte(o.Markdown())); err != nil {
		return fmt.Errorf("saving outline markdown: %w", err)
	}
	return nil
}

// LoadOutline reads back the most recently persisted outline.
func (w *Workflow) LoadOutline(ctx context.Context) (*outline.Outline, error) {
	if !w.store.Exists(ctx, storage.KeyOutlineJSON) {
		return nil, ErrNoOutline
	}
	data, err := w.store.Load(ctx, storage.KeyOutlineJSON)
	if err != nil {
		return nil, err
	}
	return outline.Parse(data)
}

// ExpandAndAssemble generates content for every leaf of the outline and
// assembles the final document. Per-item failures degrade the success flag
// instead of aborting; the document is returned either way.
func (w *Workflow) ExpandAndAssemble(ctx context.Context, o *outline.Outline) (bool, string) {
	fragments, allSucceeded := w.scheduler.Expand(ctx, o)
	saved, document := w.assembler.Assemble(ctx, fragments)
	return allSucceeded && saved, document
}
