package artifacts

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"reel-server/internal/filesystem"
	"reel-server/internal/logging"
	"reel-server/internal/metrics"
)

// ErrNotFound is returned when a clip name is unknown, already claimed or
// expired.
var ErrNotFound = errors.New("file not found")

// DefaultMaxAge is how long an unclaimed clip is kept.
const DefaultMaxAge = time.Hour

const (
	namePrefix = "reel_"
	nameExt    = ".mp4"
	tokenLen   = 12
)

var namePattern = regexp.MustCompile(`^reel_\d+_[0-9a-f]{12}\.mp4$`)

// ValidName reports whether name looks like a clip name issued by Reserve.
func ValidName(name string) bool {
	return namePattern.MatchString(name)
}

// Reservation is an output slot handed to an encoder.
type Reservation struct {
	Name string
	Path string
}

// Artifact is a finished, downloadable clip.
type Artifact struct {
	Name      string    `json:"name"`
	Path      string    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
	Size      int64     `json:"size"`
}

// SweepResult summarizes one Sweep or Clear.
type SweepResult struct {
	Scanned    int   `json:"scanned"`
	Removed    int   `json:"removed"`
	FreedBytes int64 `json:"freedBytes"`
}

// Store tracks clips in a single output directory.
type Store struct {
	dir    string
	maxAge time.Duration
	retry  filesystem.RetryConfig
	now    func() time.Time

	mu        sync.Mutex
	artifacts map[string]*Artifact
	reserved  map[string]struct{}
}

// NewStore creates the output directory if needed and returns a Store
// keeping unclaimed clips for maxAge.
func NewStore(dir string, maxAge time.Duration) (*Store, error) {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	return &Store{
		dir:       dir,
		maxAge:    maxAge,
		retry:     filesystem.DefaultRetryConfig(),
		now:       time.Now,
		artifacts: make(map[string]*Artifact),
		reserved:  make(map[string]struct{}),
	}, nil
}

// Dir returns the output directory.
func (s *Store) Dir() string {
	return s.dir
}

// MaxAge returns the retention age of unclaimed clips.
func (s *Store) MaxAge() time.Duration {
	return s.maxAge
}

func (s *Store) newName() string {
	token := strings.ReplaceAll(uuid.NewString(), "-", "")[:tokenLen]
	return fmt.Sprintf("%s%d_%s%s", namePrefix, s.now().UnixMilli(), token, nameExt)
}

// Reserve allocates a unique output name. The file itself is created by
// the caller.
func (s *Store) Reserve() (*Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for attempt := 0; attempt < 5; attempt++ {
		name := s.newName()
		if _, ok := s.artifacts[name]; ok {
			continue
		}
		if _, ok := s.reserved[name]; ok {
			continue
		}
		path := filepath.Join(s.dir, name)
		if _, err := os.Lstat(path); err == nil {
			continue
		}
		s.reserved[name] = struct{}{}
		return &Reservation{Name: name, Path: path}, nil
	}
	return nil, errors.New("failed to allocate a unique output name")
}

// Register makes a reserved, fully written file downloadable.
func (s *Store) Register(res *Reservation) (*Artifact, error) {
	info, err := filesystem.StatWithRetry(res.Path, s.retry)
	if err != nil {
		s.release(res.Name)
		return nil, fmt.Errorf("output missing: %w", err)
	}
	if !info.Mode().IsRegular() || info.Size() == 0 {
		s.release(res.Name)
		return nil, fmt.Errorf("output %s is empty or not a regular file", res.Name)
	}

	a := &Artifact{
		Name:      res.Name,
		Path:      res.Path,
		CreatedAt: s.now(),
		Size:      info.Size(),
	}

	s.mu.Lock()
	delete(s.reserved, res.Name)
	s.artifacts[res.Name] = a
	s.mu.Unlock()

	metrics.ArtifactsCreatedTotal.Inc()
	logging.Debug("Registered artifact %s (%d bytes)", a.Name, a.Size)
	return a, nil
}

func (s *Store) release(name string) {
	s.mu.Lock()
	delete(s.reserved, name)
	s.mu.Unlock()
}

// Discard drops a reservation and removes any partial output. A missing
// file is not an error.
func (s *Store) Discard(res *Reservation) {
	if res == nil {
		return
	}
	s.release(res.Name)
	if _, err := filesystem.Remove(res.Path); err != nil {
		logging.Warn("failed to remove partial output %s: %v", res.Path, err)
	}
}

// Claim hands a clip to exactly one caller. Later claims, unknown names and
// names with path components return ErrNotFound.
func (s *Store) Claim(name string) (*Artifact, error) {
	if name == "" || name != filepath.Base(name) || strings.ContainsAny(name, `/\`) {
		return nil, ErrNotFound
	}

	s.mu.Lock()
	a, ok := s.artifacts[name]
	if ok {
		delete(s.artifacts, name)
	}
	s.mu.Unlock()

	if !ok {
		return nil, ErrNotFound
	}
	return a, nil
}

// Release finishes a claim. A delivered clip is deleted right away; an
// undelivered one stays on disk, unreachable, until the sweep removes it.
func (s *Store) Release(a *Artifact, delivered bool) {
	if a == nil {
		return
	}
	if !delivered {
		logging.Debug("Transfer of %s incomplete; leaving file for cleanup", a.Name)
		return
	}
	if _, err := filesystem.Remove(a.Path); err != nil {
		logging.Warn("failed to delete downloaded file %s: %v", a.Path, err)
	}
}

// Len returns the number of downloadable clips.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.artifacts)
}

// Usage returns the number and total size of downloadable clips.
func (s *Store) Usage() (count int, bytes int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.artifacts {
		bytes += a.Size
	}
	return len(s.artifacts), bytes
}

// List returns the downloadable clips, oldest first.
func (s *Store) List() []Artifact {
	s.mu.Lock()
	out := make([]Artifact, 0, len(s.artifacts))
	for _, a := range s.artifacts {
		out = append(out, *a)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Name < out[j].Name
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// forget drops bookkeeping for name if it refers to a registered clip.
func (s *Store) forget(name string) {
	s.mu.Lock()
	delete(s.artifacts, name)
	s.mu.Unlock()
}

func (s *Store) isReserved(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.reserved[name]
	return ok
}

// Sweep removes files in the output directory whose modification time is
// older than the retention age. Dot-files (including .gitkeep) and
// directories are skipped, as are outputs still being encoded.
func (s *Store) Sweep(now time.Time) (SweepResult, error) {
	cutoff := now.Add(-s.maxAge)
	return sweepDir(s.dir, s.retry, func(name string, modTime time.Time) bool {
		if s.isReserved(name) {
			return false
		}
		return modTime.Before(cutoff)
	}, s.forget)
}

// Clear removes every clip in the output directory regardless of age,
// except outputs still being encoded.
func (s *Store) Clear() (SweepResult, error) {
	res, err := sweepDir(s.dir, s.retry, func(name string, _ time.Time) bool {
		return !s.isReserved(name)
	}, s.forget)
	if err == nil {
		logging.Info("Cleared output directory: removed %d file(s), freed %d bytes", res.Removed, res.FreedBytes)
	}
	return res, err
}

// SweepDir removes regular, non-dot files in dir older than maxAge. It is
// used for directories the store does not track, such as staging.
func SweepDir(dir string, maxAge time.Duration, now time.Time) (SweepResult, error) {
	return sweepUntracked(dir, maxAge, now, nil)
}

// sweepUntracked is SweepDir that leaves alone any path inUse reports.
func sweepUntracked(dir string, maxAge time.Duration, now time.Time, inUse func(path string) bool) (SweepResult, error) {
	cutoff := now.Add(-maxAge)
	return sweepDir(dir, filesystem.DefaultRetryConfig(), func(name string, modTime time.Time) bool {
		if inUse != nil && inUse(filepath.Join(dir, name)) {
			return false
		}
		return modTime.Before(cutoff)
	}, nil)
}

func sweepDir(dir string, retry filesystem.RetryConfig, expired func(name string, modTime time.Time) bool, onRemove func(name string)) (SweepResult, error) {
	var result SweepResult

	entries, err := filesystem.ReadDirWithRetry(dir, retry)
	if err != nil {
		if os.IsNotExist(err) {
			return result, nil
		}
		return result, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") || entry.IsDir() {
			continue
		}
		result.Scanned++

		info, err := entry.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			if os.IsNotExist(err) {
				continue
			}
			logging.Warn("failed to stat %s: %v", filepath.Join(dir, name), err)
			continue
		}
		if !info.Mode().IsRegular() || !expired(name, info.ModTime()) {
			continue
		}

		removed, err := filesystem.Remove(filepath.Join(dir, name))
		if err != nil {
			logging.Warn("failed to remove expired file %s: %v", filepath.Join(dir, name), err)
			continue
		}
		if onRemove != nil {
			onRemove(name)
		}
		if removed {
			result.Removed++
			result.FreedBytes += info.Size()
			logging.Debug("Removed expired file %s", name)
		}
	}

	return result, nil
}
