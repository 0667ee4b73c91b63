package player

import (
	"context"
	"fmt"
	"strings"
)

// Status 播放状态
type Status int

const (
	Stopped Status = iota
	Playing
	Paused
)

func (s Status) String() string {
	switch s {
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return "stopped"
	}
}

// ParseStatus 解析 MPRIS 风格的状态字符串（Playing/Paused/Stopped，大小写不敏感）
func ParseStatus(s string) Status {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "playing", "play":
		return Playing
	case "paused", "pause":
		return Paused
	default:
		return Stopped
	}
}

// LoopStatus 循环模式
type LoopStatus int

const (
	LoopNone LoopStatus = iota
	LoopTrack
	LoopPlaylist
)

func (l LoopStatus) String() string {
	switch l {
	case LoopTrack:
		return "Track"
	case LoopPlaylist:
		return "Playlist"
	default:
		return "None"
	}
}

// Next 返回下一个循环模式：None→Track→Playlist→None
func (l LoopStatus) Next() LoopStatus {
	return (l + 1) % 3
}

// Metadata 歌曲元数据
type Metadata struct {
	Title  string
	Artist string
	Album  string
	Length int64 // 毫秒
	// Lyrics 已解析的同步歌词，为空表示尚未获取或获取失败
	Lyrics string
}

// State 播放器状态快照
type State struct {
	PlayerName string
	Status     Status
	Position   int64 // 毫秒
	Metadata   Metadata
}

// SameTrack 判断两个快照是否描述同一首歌
func (s State) SameTrack(o State) bool {
	return s.PlayerName == o.PlayerName &&
		s.Metadata.Title == o.Metadata.Title &&
		s.Metadata.Artist == o.Metadata.Artist &&
		s.Metadata.Album == o.Metadata.Album
}

func (s State) String() string {
	return fmt.Sprintf("%s [%s] %s - %s @%dms/%dms", s.PlayerName, s.Status, s.Metadata.Artist, s.Metadata.Title, s.Position, s.Metadata.Length)
}

// Vanished 播放器消失后的快照：保留歌曲信息，状态改为 Stopped
func (s State) Vanished() State {
	s.Status = Stopped
	return s
}

// Callback 状态变更回调
type Callback func(State)

// Reporter 把读取结果转发给回调；读取失败时只推送一次 Vanished 快照，
// 避免调度器继续按播放中推进位置
type Reporter struct {
	cb   Callback
	last *State
}

func NewReporter(cb Callback) *Reporter {
	return &Reporter{cb: cb}
}

// Report 返回是否调用了回调
func (r *Reporter) Report(st State, err error) bool {
	if err != nil {
		if r.last == nil || r.last.Status == Stopped {
			return false
		}
		st = r.last.Vanished()
	}
	r.cb(st)
	r.last = &st
	return true
}

// Observer 播放器监控接口：推送状态快照，并提供播放控制
type Observer interface {
	// Watch 阻塞监听播放器事件，每次状态变化调用 cb，直到 ctx 结束
	Watch(ctx context.Context, cb Callback) error

	Next() error
	Previous() error
	TogglePlayPause() error

	Shuffle() (bool, error)
	SetShuffle(on bool) error
	SetLoopStatus(status LoopStatus) error

	// Players 列出已知播放器标识
	Players() ([]string, error)
	CurrentPlayer() string
	SetCurrentPlayer(name string) error

	Close() error
}
