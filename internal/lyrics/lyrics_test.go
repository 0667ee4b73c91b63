package lyrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
	"waylyrics/internal/cache"
	"waylyrics/pkg/lrclib"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// spySearcher 模拟远程歌词服务，记录调用
type spySearcher struct {
	mu      sync.Mutex
	calls   []string
	results map[string]string // artist -> lyrics
}

func (s *spySearcher) SyncedLyrics(_ context.Context, title, artist string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, title+"|"+artist)
	if text, ok := s.results[artist]; ok {
		return text, nil
	}
	return "", errors.New("not found")
}

func (s *spySearcher) GetProviderName() string { return "spy" }

func (s *spySearcher) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func newStore(t *testing.T) *cache.FileStore {
	t.Helper()
	store, err := cache.NewFileStore(afero.NewMemMapFs(), "/cache", zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestResolveServesSecondLookupFromCache(t *testing.T) {
	store := newStore(t)
	remote := &spySearcher{results: map[string]string{"Band": "[00:01.00]la la"}}
	r := NewResolver(store, remote, zerolog.Nop())

	first := r.Resolve(context.Background(), "Song", "Band")
	if first != "[00:01.00]la la" {
		t.Fatalf("unexpected lyrics %q", first)
	}
	store.Flush()

	second := r.Resolve(context.Background(), "Song", "Band")
	if second != first {
		t.Errorf("cached lyrics differ: %q", second)
	}
	if n := remote.callCount(); n != 1 {
		t.Errorf("expected exactly one remote call, got %d", n)
	}
}

func TestResolveFailureIsNotCached(t *testing.T) {
	store := newStore(t)
	remote := &spySearcher{results: map[string]string{}}
	r := NewResolver(store, remote, zerolog.Nop())

	if got := r.Resolve(context.Background(), "Song", "Band"); got != "" {
		t.Fatalf("expected empty result, got %q", got)
	}
	store.Flush()
	r.Resolve(context.Background(), "Song", "Band")
	if n := remote.callCount(); n != 2 {
		t.Errorf("failed lookups must be retried, got %d calls", n)
	}
}

func TestResolveEmptyQuery(t *testing.T) {
	remote := &spySearcher{}
	r := NewResolver(newStore(t), remote, zerolog.Nop())
	if got := r.Resolve(context.Background(), "  ", ""); got != "" {
		t.Errorf("expected empty, got %q", got)
	}
	if remote.callCount() != 0 {
		t.Error("empty query must not reach the remote service")
	}
}

func TestResolveWithFallback(t *testing.T) {
	remote := &spySearcher{results: map[string]string{"": "[00:02.00]found without artist"}}
	r := NewResolver(newStore(t), remote, zerolog.Nop())

	got := r.ResolveWithFallback(context.Background(), "Song", "Wrong Artist")
	if got != "[00:02.00]found without artist" {
		t.Fatalf("unexpected lyrics %q", got)
	}
	if remote.calls[0] != "Song|Wrong Artist" || remote.calls[1] != "Song|" {
		t.Errorf("unexpected call sequence %v", remote.calls)
	}
}

func TestResolveMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	r := NewResolver(newStore(t), lrclib.NewClient(server.URL, time.Second), zerolog.Nop())
	if got := r.Resolve(context.Background(), "Song", "Band"); got != "" {
		t.Errorf("malformed body must resolve to empty, got %q", got)
	}
}

func TestResolveAgainstHTTPRemote(t *testing.T) {
	var hits int
	var mu sync.Mutex
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
		w.Write([]byte(`[{"trackName":"Song","syncedLyrics":"[00:01.00]la la"}]`))
	}))
	defer server.Close()

	store := newStore(t)
	r := NewResolver(store, lrclib.NewClient(server.URL, time.Second), zerolog.Nop())
	if got := r.Resolve(context.Background(), "Song", "Band"); got != "[00:01.00]la la" {
		t.Fatalf("unexpected lyrics %q", got)
	}
	store.Flush()
	r.Resolve(context.Background(), "Song", "Band")

	mu.Lock()
	defer mu.Unlock()
	if hits != 1 {
		t.Errorf("expected one HTTP request, got %d", hits)
	}
}
