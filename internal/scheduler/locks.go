package scheduler

import (
	"path/filepath"
	"sync"
)

// WorkAreaLocks keeps two sessions from using the same toolchain work area
type WorkAreaLocks struct {
	mu   sync.Mutex
	held map[string]bool
}

// NewWorkAreaLocks creates an empty lock set
func NewWorkAreaLocks() *WorkAreaLocks {
	return &WorkAreaLocks{held: make(map[string]bool)}
}

// TryAcquire locks the work area at dir. ok is false when it is already held;
// otherwise release must be called once the session is done.
func (l *WorkAreaLocks) TryAcquire(dir string) (release func(), ok bool) {
	key := workAreaKey(dir)

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held[key] {
		return nil, false
	}
	l.held[key] = true

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, true
}

func workAreaKey(dir string) string {
	if dir == "" {
		dir = "."
	}
	if abs, err := filepath.Abs(dir); err == nil {
		return abs
	}
	return filepath.Clean(dir)
}
