package process

import (
	"fmt"
	"os/exec"
	"sync"

	"reel-server/internal/logging"
)

// Registry tracks running commands by key.
type Registry struct {
	mu    sync.Mutex
	procs map[string]*exec.Cmd
	seq   uint64
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{procs: make(map[string]*exec.Cmd)}
}

// Track records a started command and returns a func that forgets it.
// Keys need not be unique; a sequence number is appended.
func (r *Registry) Track(key string, cmd *exec.Cmd) func() {
	r.mu.Lock()
	r.seq++
	id := fmt.Sprintf("%s#%d", key, r.seq)
	r.procs[id] = cmd
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.procs, id)
		r.mu.Unlock()
	}
}

// Len returns the number of tracked commands.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.procs)
}

// KillAll kills every tracked command and returns how many were signalled.
func (r *Registry) KillAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	killed := 0
	for id, cmd := range r.procs {
		if cmd.Process == nil {
			continue
		}
		logging.Info("Killing process %s (pid %d)", id, cmd.Process.Pid)
		if err := cmd.Process.Kill(); err != nil {
			logging.Warn("failed to kill process %s: %v", id, err)
			continue
		}
		killed++
	}
	return killed
}
