package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"waylyrics/internal/cache"
	"waylyrics/internal/config"
	"waylyrics/internal/lyrics"
	"waylyrics/internal/player"
	"waylyrics/internal/render"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

const song = "[00:01.00]la la\n[00:05.00]second"

// spySearcher 统计远程查询次数
type spySearcher struct {
	mu    sync.Mutex
	calls int
	text  string
}

func (s *spySearcher) SyncedLyrics(context.Context, string, string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.text == "" {
		return "", errors.New("not found")
	}
	return s.text, nil
}

func (s *spySearcher) GetProviderName() string { return "spy" }

func (s *spySearcher) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// fakeObserver 记录控制命令
type fakeObserver struct {
	mu      sync.Mutex
	players []string
	current string
	shuffle bool
	loops   []player.LoopStatus
	actions []string
	// watchErr 非空时 Watch 立即返回该错误
	watchErr error
}

func (f *fakeObserver) Watch(ctx context.Context, _ player.Callback) error {
	if f.watchErr != nil {
		return f.watchErr
	}
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeObserver) record(action string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, action)
	return nil
}

func (f *fakeObserver) Next() error                { return f.record("next") }
func (f *fakeObserver) Previous() error            { return f.record("previous") }
func (f *fakeObserver) TogglePlayPause() error     { return f.record("play-pause") }
func (f *fakeObserver) Shuffle() (bool, error)     { return f.shuffle, nil }
func (f *fakeObserver) SetShuffle(on bool) error   { f.shuffle = on; return nil }
func (f *fakeObserver) Players() ([]string, error) { return f.players, nil }
func (f *fakeObserver) CurrentPlayer() string      { return f.current }
func (f *fakeObserver) Close() error               { return nil }

func (f *fakeObserver) SetLoopStatus(status player.LoopStatus) error {
	f.loops = append(f.loops, status)
	return nil
}

func (f *fakeObserver) SetCurrentPlayer(name string) error {
	f.current = name
	return nil
}

func newTestApp(t *testing.T, remote *spySearcher) (*App, *fakeObserver) {
	t.Helper()
	store, err := cache.NewFileStore(afero.NewMemMapFs(), "/cache", zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	cfg := config.Default()
	observer := &fakeObserver{}
	resolver := lyrics.NewResolver(store, remote, zerolog.Nop())
	return newApp(cfg, zerolog.Nop(), observer, store, resolver), observer
}

func playing(title string) player.State {
	return player.State{
		PlayerName: "org.mpris.MediaPlayer2.firefox.instance123",
		Status:     player.Playing,
		Metadata:   player.Metadata{Title: title, Artist: "Band", Length: 200000},
	}
}

// waitFor 轮询直到 cond 成立或超时
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestLongTitleNeverResolves(t *testing.T) {
	remote := &spySearcher{text: song}
	a, _ := newTestApp(t, remote)

	a.onPlayerState(playing(strings.Repeat("x", 40)))
	time.Sleep(50 * time.Millisecond)

	if remote.count() != 0 {
		t.Errorf("expected no remote call, got %d", remote.count())
	}
}

func TestEligibility(t *testing.T) {
	a, _ := newTestApp(t, &spySearcher{})

	long := playing("Song")
	long.Metadata.Length = 301000
	paused := playing("Song")
	paused.Status = player.Paused
	resolved := playing("Song")
	resolved.Metadata.Lyrics = song

	tests := []struct {
		name string
		st   player.State
		want bool
	}{
		{"eligible", playing("Song"), true},
		{"empty title", playing(""), false},
		{"title at limit", playing(strings.Repeat("x", 30)), true},
		{"title over limit", playing(strings.Repeat("x", 31)), false},
		{"too long", long, false},
		{"not playing", paused, false},
		{"already resolved", resolved, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := a.eligible(tt.st); got != tt.want {
				t.Errorf("eligible() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResolvedLyricsAreAttachedAndCarriedOver(t *testing.T) {
	remote := &spySearcher{text: song}
	a, _ := newTestApp(t, remote)

	a.onPlayerState(playing("Song"))
	waitFor(t, func() bool { return a.state.Load().Metadata.Lyrics != "" })

	if got := a.state.Load().Position; got != previewOffset {
		t.Errorf("expected preview offset applied, got %d", got)
	}

	// 暂停和继续都是同一首歌，不应再次查询
	paused := playing("Song")
	paused.Status = player.Paused
	a.onPlayerState(paused)
	a.onPlayerState(playing("Song"))
	time.Sleep(50 * time.Millisecond)

	if a.state.Load().Metadata.Lyrics != song {
		t.Error("lyrics must carry over for the same track")
	}
	if remote.count() != 1 {
		t.Errorf("expected exactly one remote call, got %d", remote.count())
	}
}

func TestPreviewOffsetOnlyWithinLimits(t *testing.T) {
	a, _ := newTestApp(t, &spySearcher{})

	long := playing(strings.Repeat("x", 40))
	long.Position = 5000
	a.onPlayerState(long)
	if got := a.state.Load().Position; got != 5000 {
		t.Errorf("over-limit title must keep the reported position, got %d", got)
	}

	untitled := playing("")
	untitled.Position = 5000
	a.onPlayerState(untitled)
	if got := a.state.Load().Position; got != 5000 {
		t.Errorf("untitled track must keep the reported position, got %d", got)
	}

	// 暂停的歌曲不查询歌词，但仍在限制内，所以加提前量
	paused := playing("Song")
	paused.Status = player.Paused
	paused.Position = 5000
	a.onPlayerState(paused)
	if got := a.state.Load().Position; got != 5000+previewOffset {
		t.Errorf("expected preview offset, got %d", got)
	}
}

func TestWatchEndMarksStateStopped(t *testing.T) {
	a, obs := newTestApp(t, &spySearcher{})
	a.cfg.Player.CheckInterval = 10 * time.Millisecond
	obs.watchErr = errors.New("bus gone")
	a.state.Store(playing("Song"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	a.watch(ctx)

	if st := a.state.Load(); st.Status != player.Stopped || st.Metadata.Title != "Song" {
		t.Errorf("expected stopped snapshot of the last track, got %+v", st)
	}
}

func TestLyricsDroppedAfterTrackChange(t *testing.T) {
	a, _ := newTestApp(t, &spySearcher{})
	first := playing("First")
	a.state.Store(first)
	a.state.Store(playing("Second"))

	if a.state.AttachLyrics(first, song) {
		t.Error("lyrics must not attach to a different track")
	}
	if a.state.Load().Metadata.Lyrics != "" {
		t.Error("current track must stay without lyrics")
	}
}

func TestFailedLookupFallsBackWithoutArtist(t *testing.T) {
	remote := &spySearcher{}
	a, _ := newTestApp(t, remote)

	a.onPlayerState(playing("Song"))
	waitFor(t, func() bool { return remote.count() == 2 })

	if a.state.Load().Metadata.Lyrics != "" {
		t.Error("failed lookups leave lyrics empty")
	}
}

func TestFrame(t *testing.T) {
	a, _ := newTestApp(t, &spySearcher{})

	st := playing("Song")
	st.Position = 2000
	st.Metadata.Lyrics = song
	a.state.Store(st)
	if got := a.frame(); got.Text != "firefox/Song la la" || got.Class != "playing" {
		t.Errorf("playing frame: %+v", got)
	}

	st.Metadata.Lyrics = ""
	a.state.Store(st)
	if got := a.frame().Text; got != "firefox/Song no lyrics..." {
		t.Errorf("no lyrics frame: %q", got)
	}

	st.Status = player.Paused
	a.state.Store(st)
	if got := a.frame(); got.Text != "[ paused ]firefox/Song " || got.Class != "paused" {
		t.Errorf("paused frame: %+v", got)
	}

	st.Status = player.Stopped
	a.state.Store(st)
	if got := a.frame().Text; got != "[ stopped ]" {
		t.Errorf("stopped frame: %q", got)
	}
}

func TestFrameTruncatesAndTooltip(t *testing.T) {
	a, _ := newTestApp(t, &spySearcher{})
	a.cfg.Display.MaxLength = 10
	a.cfg.Display.Tooltip = true
	a.cfg.Display.TooltipFormat = "{title} {title}"

	a.state.Store(playing("A very long song title"))
	f := a.frame()
	if f.Text != "firefox/A…" {
		t.Errorf("truncated text: %q", f.Text)
	}
	if f.Tooltip != "A very long song title {title}" {
		t.Errorf("tooltip: %q", f.Tooltip)
	}
}

func TestAdvanceOnlyWhilePlaying(t *testing.T) {
	b := newStateBox()
	b.Store(playing("Song"))
	b.Advance(1000)
	b.Advance(1000)
	if got := b.Load().Position; got != 2000 {
		t.Errorf("expected 2000, got %d", got)
	}

	st := b.Load()
	st.Status = player.Paused
	b.Store(st)
	b.Advance(1000)
	if got := b.Load().Position; got != 2000 {
		t.Errorf("paused position must not move, got %d", got)
	}
}

func TestHandleCommand(t *testing.T) {
	a, obs := newTestApp(t, &spySearcher{})
	obs.players = []string{"org.mpris.MediaPlayer2.spotify", "org.mpris.MediaPlayer2.firefox", "mpd"}
	obs.current = "mpd"

	if got, _ := a.HandleCommand("next-player"); got != "org.mpris.MediaPlayer2.spotify" {
		t.Errorf("next-player should wrap to the first player, got %q", got)
	}
	if got, _ := a.HandleCommand("prev-player"); got != "mpd" {
		t.Errorf("prev-player should wrap to the last player, got %q", got)
	}

	for _, want := range []string{"Track", "Playlist", "None"} {
		if got, _ := a.HandleCommand("loop"); got != want {
			t.Errorf("loop: expected %s, got %s", want, got)
		}
	}

	if got, _ := a.HandleCommand("shuffle"); got != "true" || !obs.shuffle {
		t.Errorf("shuffle should flip to true, got %q", got)
	}

	a.HandleCommand("toggle")
	a.HandleCommand("next")
	a.HandleCommand("prev")
	if strings.Join(obs.actions, ",") != "play-pause,next,previous" {
		t.Errorf("unexpected actions %v", obs.actions)
	}

	if got, _ := a.HandleCommand("players"); got != strings.Join(obs.players, "\n") {
		t.Errorf("players: %q", got)
	}

	if _, err := a.HandleCommand("bogus"); err == nil {
		t.Error("expected error for unknown command")
	}
}

func TestShowHide(t *testing.T) {
	a, _ := newTestApp(t, &spySearcher{})
	if _, err := a.HandleCommand("show-hide"); !errors.Is(err, ErrNoTarget) {
		t.Errorf("show without a target: expected ErrNoTarget, got %v", err)
	}

	frames := make(chan render.Frame, 16)
	a.scheduler.Start(render.TargetFunc(func(f render.Frame) error {
		select {
		case frames <- f:
		default:
		}
		return nil
	}))
	defer a.scheduler.Stop()

	if got, _ := a.HandleCommand("show-hide"); got != "hidden" || a.scheduler.IsRunning() {
		t.Errorf("expected hidden, got %q", got)
	}
	if got, _ := a.HandleCommand("show-hide"); got != "shown" || !a.scheduler.IsRunning() {
		t.Errorf("expected shown, got %q", got)
	}
}
