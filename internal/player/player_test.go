package player

import (
	"errors"
	"testing"
)

func TestStatusString(t *testing.T) {
	cases := map[Status]string{
		Playing: "playing",
		Paused:  "paused",
		Stopped: "stopped",
	}
	for status, want := range cases {
		if got := status.String(); got != want {
			t.Errorf("Status(%d).String() = %q, want %q", status, got, want)
		}
	}
}

func TestParseStatus(t *testing.T) {
	cases := map[string]Status{
		"Playing":  Playing,
		"PLAYING":  Playing,
		"play":     Playing,
		"Paused":   Paused,
		"PAUSED":   Paused,
		"pause":    Paused,
		"Stopped":  Stopped,
		"":         Stopped,
		"whatever": Stopped,
	}
	for in, want := range cases {
		if got := ParseStatus(in); got != want {
			t.Errorf("ParseStatus(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestLoopStatusNext(t *testing.T) {
	l := LoopNone
	want := []LoopStatus{LoopTrack, LoopPlaylist, LoopNone}
	for _, w := range want {
		l = l.Next()
		if l != w {
			t.Fatalf("expected %s, got %s", w, l)
		}
	}
}

func TestSameTrack(t *testing.T) {
	a := State{PlayerName: "p", Metadata: Metadata{Title: "t", Artist: "a"}}
	b := a
	b.Position = 5000
	b.Status = Paused
	b.Metadata.Lyrics = "[00:01.00]x"
	if !a.SameTrack(b) {
		t.Error("position/status/lyrics must not affect track identity")
	}
	b.Metadata.Title = "other"
	if a.SameTrack(b) {
		t.Error("different title reported as same track")
	}
}

func TestReporterSendsStoppedOnceWhenPlayerVanishes(t *testing.T) {
	var got []State
	r := NewReporter(func(st State) { got = append(got, st) })
	lost := errors.New("player gone")

	// 还没有任何快照时，失败不产生回调
	if r.Report(State{}, lost) {
		t.Error("failure before any snapshot must not report")
	}

	playing := State{PlayerName: "p", Status: Playing, Position: 1000, Metadata: Metadata{Title: "t"}}
	r.Report(playing, nil)
	r.Report(State{}, lost)
	r.Report(State{}, lost)

	if len(got) != 2 {
		t.Fatalf("expected 2 callbacks, got %d: %+v", len(got), got)
	}
	if got[1].Status != Stopped || !got[1].SameTrack(playing) {
		t.Errorf("expected stopped snapshot of the same track, got %+v", got[1])
	}

	r.Report(playing, nil)
	if len(got) != 3 || got[2].Status != Playing {
		t.Errorf("player coming back must be reported, got %+v", got)
	}
}
