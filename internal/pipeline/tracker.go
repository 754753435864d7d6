package pipeline

import (
	"path/filepath"
	"sort"
	"sync"
)

// tracker holds the jobs currently inside Run.
type tracker struct {
	mu   sync.Mutex
	jobs map[string]*Job
}

func newTracker() *tracker {
	return &tracker{jobs: make(map[string]*Job)}
}

func (t *tracker) add(j *Job) {
	t.mu.Lock()
	t.jobs[j.ID] = j
	t.mu.Unlock()
}

func (t *tracker) remove(j *Job) {
	t.mu.Lock()
	delete(t.jobs, j.ID)
	t.mu.Unlock()
}

func (t *tracker) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.jobs)
}

// holdsStaged reports whether a tracked job owns the staged file at path.
func (t *tracker) holdsStaged(path string) bool {
	path = filepath.Clean(path)

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, j := range t.jobs {
		if staged := j.StagedPath(); staged != "" && filepath.Clean(staged) == path {
			return true
		}
	}
	return false
}

// snapshots returns in-flight jobs, oldest first.
func (t *tracker) snapshots() []Snapshot {
	t.mu.Lock()
	jobs := make([]*Job, 0, len(t.jobs))
	for _, j := range t.jobs {
		jobs = append(jobs, j)
	}
	t.mu.Unlock()

	out := make([]Snapshot, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.Snapshot())
	}
	sort.Slice(out, func(i, k int) bool {
		return out[i].CreatedAt.Before(out[k].CreatedAt)
	})
	return out
}
