// Package display turns a player snapshot into the text shown in the bar.
package display

import (
	"fmt"
	"strings"
	"waylyrics/internal/player"

	"github.com/mattn/go-runewidth"
)

const (
	mprisPrefix = "org.mpris.MediaPlayer2."
	// NoLyrics is shown for {lyrics} while playing a track without resolved lyrics.
	NoLyrics = "no lyrics..."
	ellipsis = "…"
)

// Format substitutes the placeholders of template. Each placeholder is
// replaced at its first occurrence only; later repeats are left verbatim.
func Format(template string, st player.State, line string) string {
	replacements := []struct {
		placeholder string
		value       string
	}{
		{"{title}", st.Metadata.Title},
		{"{artist}", st.Metadata.Artist},
		{"{album}", st.Metadata.Album},
		{"{status}", st.Status.String()},
		{"{elapsed}", Clock(st.Position)},
		{"{duration}", Clock(st.Metadata.Length)},
		{"{player}", PlayerLabel(st.PlayerName)},
		{"{lyrics}", line},
	}

	out := template
	for _, r := range replacements {
		out = strings.Replace(out, r.placeholder, r.value, 1)
	}
	return out
}

// Decorate applies the status marker: paused text gets a "[ paused ]"
// prefix, stopped text is replaced by "[ stopped ]".
func Decorate(status player.Status, content string) string {
	switch status {
	case player.Paused:
		return "[ " + status.String() + " ]" + content
	case player.Stopped:
		return "[ " + status.String() + " ]"
	default:
		return content
	}
}

// PlayerLabel reduces an MPRIS bus name to the application token, e.g.
// org.mpris.MediaPlayer2.firefox.instance123 -> firefox.
func PlayerLabel(name string) string {
	idx := strings.Index(name, mprisPrefix)
	if idx < 0 {
		return name
	}
	rest := name[idx+len(mprisPrefix):]
	if dot := strings.IndexByte(rest, '.'); dot >= 0 {
		rest = rest[:dot]
	}
	return rest
}

// Clock renders milliseconds as mm:ss.
func Clock(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	secs := ms / 1000
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}

// Truncate limits s to maxWidth terminal cells, ending with an ellipsis
// when cut. maxWidth <= 0 disables truncation.
func Truncate(s string, maxWidth int) string {
	if maxWidth <= 0 || runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	return runewidth.Truncate(s, maxWidth, ellipsis)
}
