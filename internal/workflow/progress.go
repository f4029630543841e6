package workflow

import "sync"

// Progress tracks one content-generation round. The scheduler is the only
// writer; readers get consistent snapshots for UI polling.
type Progress struct {
	mu        sync.Mutex
	total     int
	completed int
	current   string
}

// ProgressSnapshot is the read-only view exposed over the API.
type ProgressSnapshot struct {
	TotalSections     int    `json:"total_sections"`
	CompletedSections int    `json:"completed_sections"`
	CurrentSection    string `json:"current_section"`
}

func (p *Progress) Reset(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.total = total
	p.completed = 0
	p.current = ""
}

func (p *Progress) SetCurrent(section string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = section
}

func (p *Progress) AddCompleted(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completed += n
}

func (p *Progress) Snapshot() ProgressSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return ProgressSnapshot{
		TotalSections:     p.total,
		CompletedSections: p.completed,
		CurrentSection:    p.current,
	}
}
