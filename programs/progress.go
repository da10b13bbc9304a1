package programs

import "sync"

// Progress marks where a user is inside a program.
type Progress struct {
	ProgramID  string
	LastPostID int
}

// progressTable keeps per-user progress in memory; a restart loses it, which
// matches the non-durable continuation contract.
type progressTable struct {
	mu     sync.RWMutex
	byUser map[int64]Progress
}

func newProgressTable() *progressTable {
	return &progressTable{byUser: make(map[int64]Progress)}
}

func (t *progressTable) get(userID int64) (Progress, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.byUser[userID]
	return p, ok
}

func (t *progressTable) set(userID int64, p Progress) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byUser[userID] = p
}

func (t *progressTable) clear(userID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.byUser, userID)
}
