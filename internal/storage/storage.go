// Package storage persists the pipeline's durable artifacts: the uploaded
// input documents, the canonical outline forms, and the assembled document.
package storage

import "context"

// Well-known artifact keys. Writers and readers always use the same key.
const (
	KeyTechInput   = "inputs/tech.md"
	KeyScoreInput  = "inputs/score.md"
	KeyOutlineJSON = "outline/outline.json"
	KeyOutlineMD   = "outline/outline.md"
	KeyDocument    = "content.md"
)

// Store is the durable artifact location the pipeline writes to and reads
// back from by key.
type Store interface {
	Save(ctx context.Context, key string, data []byte) error
	Load(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) bool
	Delete(ctx context.Context, key string) error
}
