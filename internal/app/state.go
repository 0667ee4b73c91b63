package app

import (
	"sync/atomic"
	"waylyrics/internal/player"
)

// stateBox 保存当前播放器快照；快照不可变，整体替换
type stateBox struct {
	p atomic.Pointer[player.State]
}

func newStateBox() *stateBox {
	b := &stateBox{}
	b.p.Store(&player.State{})
	return b
}

func (b *stateBox) Load() player.State {
	return *b.p.Load()
}

func (b *stateBox) Store(st player.State) {
	b.p.Store(&st)
}

// Advance 播放中时把位置向前推 delta 毫秒；如果期间有新快照写入则放弃本次推进
func (b *stateBox) Advance(delta int64) {
	old := b.p.Load()
	if old.Status != player.Playing {
		return
	}
	next := *old
	next.Position += delta
	b.p.CompareAndSwap(old, &next)
}

// AttachLyrics 仅当当前快照仍是 track 那首歌时写入歌词
func (b *stateBox) AttachLyrics(track player.State, text string) bool {
	for {
		old := b.p.Load()
		if !old.SameTrack(track) {
			return false
		}
		next := *old
		next.Metadata.Lyrics = text
		if b.p.CompareAndSwap(old, &next) {
			return true
		}
	}
}
