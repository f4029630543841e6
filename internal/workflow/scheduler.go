package workflow

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bidcraft/bidwriter/internal/llm"
	"github.com/bidcraft/bidwriter/internal/outline"
	"github.com/bidcraft/bidwriter/internal/prompt"
)

// ChatClient is the transport the scheduler and the outline stage call into.
type ChatClient interface {
	Chat(ctx context.Context, messages []llm.Message) (string, error)
}

// Fragment is the generated body text for one outline leaf. Index carries
// the leaf's declaration-order position so assembly never depends on
// completion order.
type Fragment struct {
	Title   string
	Chapter string
	Body    string
	Index   int
	Failed  bool
}

// failurePlaceholder prefixes the inline body of a leaf whose generation
// failed, so a reviewer can locate and fix it by hand.
const failurePlaceholder = "生成失败："

// Scheduler expands every outline leaf into prose under a fixed concurrency
// cap. Items run in batches of the cap size; a short pause between batches
// acts as backpressure against the backend.
type Scheduler struct {
	client      ChatClient
	prompts     *prompt.Manager
	progress    *Progress
	concurrency int
	itemPause   time.Duration
	batchPause  time.Duration
	logger      *slog.Logger
}

func NewScheduler(client ChatClient, prompts *prompt.Manager, progress *Progress, concurrency int, itemPause, batchPause time.Duration, logger *slog.Logger) *Scheduler {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		client:      client,
		prompts:     prompts,
		progress:    progress,
		concurrency: concurrency,
		itemPause:   itemPause,
		batchPause:  batchPause,
		logger:      logger.With("component", "scheduler"),
	}
}

// Expand flattens the outline and generates every leaf's body. One item's
// failure never cancels its siblings: the failed leaf gets a placeholder
// fragment and the run continues. The returned flag is true only when every
// fragment holds real content.
func (s *Scheduler) Expand(ctx context.Context, o *outline.Outline) ([]Fragment, bool) {
	items := o.Flatten()
	s.progress.Reset(len(items))

	s.logger.Info("starting content generation",
		"total_sections", len(items),
		"concurrency", s.concurrency)

	startTime := time.Now()
	results := make([]Fragment, len(items))
	allSucceeded := true

	for batchStart := 0; batchStart < len(items); batchStart += s.concurrency {
		batchEnd := batchStart + s.concurrency
		if batchEnd > len(items) {
			batchEnd = len(items)
		}
		batch := items[batchStart:batchEnd]

		// Batch-size semaphore caps in-flight transport calls even if the
		// batch is ever sized above the cap.
		sem := make(chan struct{}, s.concurrency)
		g, gctx := errgroup.WithContext(ctx)

		for _, item := range batch {
			item := item
			g.Go(func() error {
				select {
				case sem <- struct{}{}:
					defer func() { <-sem }()
				case <-gctx.Done():
					results[item.Index] = s.failedFragment(item, gctx.Err())
					return nil
				}

				s.progress.SetCurrent(item.Title)

				body, err := s.generateSection(gctx, item)
				if err != nil {
					s.logger.Error("section generation failed",
						"section", item.Title,
						"error", err)
					results[item.Index] = s.failedFragment(item, err)
					return nil
				}

				results[item.Index] = Fragment{
					Title:   item.Title,
					Chapter: item.Chapter,
					Body:    body,
					Index:   item.Index,
				}

				sleepCtx(gctx, s.itemPause)
				return nil
			})
		}

		// Goroutines always return nil; Wait is the batch join point.
		_ = g.Wait()

		s.progress.AddCompleted(len(batch))
		s.logger.Info("batch completed",
			"completed", batchEnd,
			"total", len(items))

		if batchEnd < len(items) {
			sleepCtx(ctx, s.batchPause)
		}
	}

	for _, fragment := range results {
		if fragment.Failed {
			allSucceeded = false
			break
		}
	}

	s.logger.Info("content generation finished",
		"total_sections", len(items),
		"all_succeeded", allSucceeded,
		"duration_ms", time.Since(startTime).Milliseconds())

	return results, allSucceeded
}

func (s *Scheduler) generateSection(ctx context.Context, item outline.WorkItem) (string, error) {
	systemRole, err := s.prompts.Get(prompt.KeyContentSystemRole)
	if err != nil {
		return "", err
	}
	userPrompt, err := s.prompts.Render(prompt.KeyContentSectionUser, map[string]string{
		"Title":          item.Title,
		"ContentSummary": item.ContentSummary,
	})
	if err != nil {
		return "", err
	}

	return s.client.Chat(ctx, []llm.Message{
		{Role: "system", Content: systemRole},
		{Role: "user", Content: userPrompt},
	})
}

func (s *Scheduler) failedFragment(item outline.WorkItem, cause error) Fragment {
	return Fragment{
		Title:   item.Title,
		Chapter: item.Chapter,
		Body:    failurePlaceholder + cause.Error(),
		Index:   item.Index,
		Failed:  true,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}
