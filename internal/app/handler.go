package app

import (
	"context"
	"waylyrics/internal/cache"
	"waylyrics/internal/display"
	"waylyrics/internal/lyrics"
	"waylyrics/internal/player"
	"waylyrics/internal/render"
)

// previewOffset 新快照的位置提前量，让歌词略早于演唱出现
const previewOffset = 200 // ms

// onPlayerState 播放器回调：保存快照，满足条件时在后台查询歌词
func (a *App) onPlayerState(st player.State) {
	st = a.accept(st)
	if !a.eligible(st) {
		return
	}
	key := cache.Key(st.Metadata.Title, st.Metadata.Artist)
	if !a.beginResolve(key) {
		return
	}
	go func() {
		defer a.endResolve(key)
		a.resolve(st)
	}()
}

// accept 同一首歌沿用已查到的歌词，然后整体替换当前快照。
// 只有通过标题和时长限制的歌曲才加上预览提前量
func (a *App) accept(st player.State) player.State {
	prev := a.state.Load()
	if prev.SameTrack(st) && st.Metadata.Lyrics == "" {
		st.Metadata.Lyrics = prev.Metadata.Lyrics
	}
	if a.withinLimits(st) {
		st.Position += previewOffset
	}
	a.state.Store(st)

	a.logger.Debug().Str("state", st.String()).Msg("Player state changed")
	return st
}

// withinLimits 标题非空且标题长度、音频时长都在限制内
func (a *App) withinLimits(st player.State) bool {
	meta := st.Metadata
	switch {
	case meta.Title == "":
		return false
	case len(meta.Title) > a.cfg.Lyrics.TitleMaxLength:
		a.logger.Debug().Str("title", meta.Title).Msg("Title length exceeds limit, skipping lyrics query")
		return false
	case meta.Length > int64(a.cfg.Lyrics.MaxDuration)*1000:
		a.logger.Debug().Str("title", meta.Title).Int64("length_s", meta.Length/1000).Msg("Audio duration exceeds limit, skipping lyrics query")
		return false
	}
	return true
}

// eligible 判断是否需要查询歌词：在限制内、还没有歌词、正在播放
func (a *App) eligible(st player.State) bool {
	return a.withinLimits(st) && st.Metadata.Lyrics == "" && st.Status == player.Playing
}

func (a *App) beginResolve(key string) bool {
	a.resolvingMu.Lock()
	defer a.resolvingMu.Unlock()
	if _, busy := a.resolving[key]; busy {
		return false
	}
	a.resolving[key] = struct{}{}
	return true
}

func (a *App) endResolve(key string) {
	a.resolvingMu.Lock()
	delete(a.resolving, key)
	a.resolvingMu.Unlock()
}

func (a *App) resolve(st player.State) {
	// 带歌手和不带歌手各查一次，每次受 lyrics.timeout 约束
	ctx, cancel := context.WithTimeout(context.Background(), 2*a.cfg.Lyrics.Timeout)
	defer cancel()

	a.logger.Info().
		Str("title", st.Metadata.Title).
		Str("artist", st.Metadata.Artist).
		Msg("Fetching lyrics")

	text := a.resolver.ResolveWithFallback(ctx, st.Metadata.Title, st.Metadata.Artist)
	if text == "" {
		return
	}
	if !a.state.AttachLyrics(st, text) {
		a.logger.Debug().Str("title", st.Metadata.Title).Msg("Track changed before lyrics arrived")
	}
}

// currentLine {lyrics} 的取值：非播放状态为空，播放但没有歌词时为占位文本
func currentLine(st player.State) string {
	switch {
	case st.Status != player.Playing:
		return ""
	case st.Metadata.Lyrics == "":
		return display.NoLyrics
	default:
		return lyrics.LocateLine(st.Position, st.Metadata.Lyrics)
	}
}

// frame 用当前快照渲染一帧
func (a *App) frame() render.Frame {
	st := a.state.Load()
	line := currentLine(st)

	text := display.Format(a.cfg.Display.Format, st, line)
	text = display.Truncate(display.Decorate(st.Status, text), a.cfg.Display.MaxLength)

	f := render.Frame{
		Text:  text,
		Alt:   st.Status.String(),
		Class: st.Status.String(),
	}
	if a.cfg.Display.Tooltip && a.cfg.Display.TooltipFormat != "" {
		f.Tooltip = display.Format(a.cfg.Display.TooltipFormat, st, line)
	}
	return f
}
