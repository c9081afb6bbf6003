package session

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/Dmitryqr/defect-detection-website/internal/domain"
	"github.com/Dmitryqr/defect-detection-website/internal/repository"
)

// fakeClock is shared by the store under test so Sweep is deterministic.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeObjects is an in-memory S3Repository.
type fakeObjects struct {
	mu      sync.Mutex
	clock   *fakeClock
	objects map[string]fakeObject
}

type fakeObject struct {
	data     []byte
	modified time.Time
}

func newFakeObjects(clock *fakeClock) *fakeObjects {
	return &fakeObjects{clock: clock, objects: make(map[string]fakeObject)}
}

func (f *fakeObjects) UploadFile(_ context.Context, key string, body io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = fakeObject{data: data, modified: f.clock.Now()}
	return nil
}

func (f *fakeObjects) DownloadFile(_ context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[key]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

func (f *fakeObjects) ListFiles(_ context.Context, prefix string) ([]repository.ObjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repository.ObjectInfo
	for key, obj := range f.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, repository.ObjectInfo{Key: key, Size: int64(len(obj.data)), LastModified: obj.modified})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (f *fakeObjects) DeleteFile(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

type storeFactory func(t *testing.T, clock *fakeClock) Storage

func backends() map[string]storeFactory {
	return map[string]storeFactory{
		"memory": func(t *testing.T, clock *fakeClock) Storage {
			s := NewMemoryStore()
			s.now = clock.Now
			return s
		},
		"sqlite": func(t *testing.T, clock *fakeClock) Storage {
			s, err := OpenSQLite(filepath.Join(t.TempDir(), "nested", "sessions.db"))
			if err != nil {
				t.Fatalf("OpenSQLite() error = %v", err)
			}
			s.now = clock.Now
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
		"s3": func(t *testing.T, clock *fakeClock) Storage {
			return NewS3Store(newFakeObjects(clock))
		},
	}
}

func TestStorageContract(t *testing.T) {
	t.Parallel()

	for name, factory := range backends() {
		factory := factory
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
			s := factory(t, clock)

			if _, ok, err := s.GetItem(ctx, "s1", KeyFileName); err != nil || ok {
				t.Fatalf("GetItem on empty store = ok:%v err:%v", ok, err)
			}

			if err := s.SetItem(ctx, "s1", KeyFileName, "first.png"); err != nil {
				t.Fatalf("SetItem() error = %v", err)
			}
			if err := s.SetItem(ctx, "s1", KeyFileName, "second.png"); err != nil {
				t.Fatalf("SetItem() error = %v", err)
			}
			got, ok, err := s.GetItem(ctx, "s1", KeyFileName)
			if err != nil || !ok || got != "second.png" {
				t.Fatalf("GetItem() = %q ok:%v err:%v, want last write", got, ok, err)
			}

			// sessions are isolated
			if _, ok, _ := s.GetItem(ctx, "s2", KeyFileName); ok {
				t.Error("session s2 must not see s1 items")
			}

			clock.Advance(time.Hour)
			if err := s.SetItem(ctx, "s2", KeyAnalyzedImage, "data:image/png;base64,AA=="); err != nil {
				t.Fatalf("SetItem() error = %v", err)
			}

			n, err := s.Sweep(ctx, clock.Now().Add(-30*time.Minute))
			if err != nil {
				t.Fatalf("Sweep() error = %v", err)
			}
			if n != 1 {
				t.Errorf("Sweep() removed %d, want 1", n)
			}
			if _, ok, _ := s.GetItem(ctx, "s1", KeyFileName); ok {
				t.Error("expired item should be gone")
			}
			if _, ok, _ := s.GetItem(ctx, "s2", KeyAnalyzedImage); !ok {
				t.Error("fresh item should survive the sweep")
			}

			if err := s.Clear(ctx, "s2"); err != nil {
				t.Fatalf("Clear() error = %v", err)
			}
			if _, ok, _ := s.GetItem(ctx, "s2", KeyAnalyzedImage); ok {
				t.Error("cleared session should be empty")
			}
		})
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemoryStore()

	empty, err := ReadPayload(ctx, s, "nobody")
	if err != nil {
		t.Fatalf("ReadPayload() error = %v", err)
	}
	if empty != (domain.SessionPayload{}) {
		t.Errorf("empty payload = %+v", empty)
	}

	want := domain.SessionPayload{ImageData: "data:image/jpeg;base64,/9j/", FileName: "rust.jpg"}
	if err := WritePayload(ctx, s, "sid", want); err != nil {
		t.Fatalf("WritePayload() error = %v", err)
	}
	got, err := ReadPayload(ctx, s, "sid")
	if err != nil {
		t.Fatalf("ReadPayload() error = %v", err)
	}
	if got != want {
		t.Errorf("ReadPayload() = %+v, want %+v", got, want)
	}

	// fields fall back independently
	_ = s.SetItem(ctx, "partial", KeyFileName, "only-name.png")
	partial, _ := ReadPayload(ctx, s, "partial")
	if partial.FileName != "only-name.png" || partial.ImageData != "" {
		t.Errorf("partial payload = %+v", partial)
	}
}

func TestRunJanitor(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	s.now = func() time.Time { return time.Now().Add(-time.Hour) }
	_ = s.SetItem(context.Background(), "old", KeyFileName, "x")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- RunJanitor(ctx, s, time.Minute, 5*time.Millisecond, zaptest.NewLogger(t)) }()

	deadline := time.After(2 * time.Second)
	for {
		if _, ok, _ := s.GetItem(context.Background(), "old", KeyFileName); !ok {
			break
		}
		select {
		case <-deadline:
			t.Fatal("janitor did not sweep the expired item")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("RunJanitor() = %v", err)
	}
}
