package artifacts

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestReaperRunOnce(t *testing.T) {
	s := newTestStore(t)
	staging := t.TempDir()

	clip, _ := s.Register(produce(t, s, "clip"))
	age(t, clip.Path, 2*time.Hour)

	staged := filepath.Join(staging, "stage-123")
	if err := os.WriteFile(staged, []byte("source"), 0o644); err != nil {
		t.Fatal(err)
	}
	age(t, staged, 2*time.Hour)

	r := NewReaper(s, time.Hour, staging)
	res := r.RunOnce(time.Now())

	if res.Removed != 2 {
		t.Errorf("Removed = %d, want 2", res.Removed)
	}
	if res.FreedBytes != int64(len("clip")+len("source")) {
		t.Errorf("FreedBytes = %d", res.FreedBytes)
	}
	if _, err := os.Stat(staged); !os.IsNotExist(err) {
		t.Error("Expected orphaned staged file removed")
	}
}

func TestReaperSkipsStagedFilesInUse(t *testing.T) {
	s := newTestStore(t)
	staging := t.TempDir()

	held := filepath.Join(staging, "stage-held")
	orphan := filepath.Join(staging, "stage-orphan")
	for _, p := range []string{held, orphan} {
		if err := os.WriteFile(p, []byte("source"), 0o644); err != nil {
			t.Fatal(err)
		}
		age(t, p, 2*time.Hour)
	}

	r := NewReaper(s, time.Hour, staging).SkipInUse(func(path string) bool {
		return path == held
	})
	res := r.RunOnce(time.Now())

	if res.Removed != 1 {
		t.Errorf("Removed = %d, want 1", res.Removed)
	}
	if _, err := os.Stat(held); err != nil {
		t.Errorf("staged file in use was removed: %v", err)
	}
	if _, err := os.Stat(orphan); !os.IsNotExist(err) {
		t.Error("Expected orphaned staged file removed")
	}
}

func TestReaperLoop(t *testing.T) {
	s := newTestStore(t)
	clip, _ := s.Register(produce(t, s, "clip"))
	age(t, clip.Path, 2*time.Hour)

	r := NewReaper(s, 10*time.Millisecond)
	r.Start()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(clip.Path); os.IsNotExist(err) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	r.Stop()
	r.Stop()

	if _, err := os.Stat(clip.Path); !os.IsNotExist(err) {
		t.Error("Expected reaper loop to remove expired clip")
	}
}

func TestNewReaperDefaultsInterval(t *testing.T) {
	s := newTestStore(t)
	r := NewReaper(s, 0)
	if r.interval != s.MaxAge() {
		t.Errorf("interval = %v, want %v", r.interval, s.MaxAge())
	}
}
