package app

import (
	"fmt"
	"strconv"
	"strings"
	"waylyrics/internal/render"

	"github.com/samber/lo"
)

// Commands 可通过 IPC 调用的命令
var Commands = []string{"toggle", "next", "prev", "shuffle", "loop", "next-player", "prev-player", "show-hide", "players"}

// HandleCommand 执行一条 IPC 命令
func (a *App) HandleCommand(cmd string) (string, error) {
	switch cmd {
	case "toggle":
		return "", a.observer.TogglePlayPause()
	case "next":
		return "", a.observer.Next()
	case "prev":
		return "", a.observer.Previous()
	case "shuffle":
		return a.toggleShuffle()
	case "loop":
		return a.cycleLoop()
	case "next-player":
		return a.switchPlayer(1)
	case "prev-player":
		return a.switchPlayer(-1)
	case "show-hide":
		return a.showHide()
	case "players":
		players, err := a.observer.Players()
		if err != nil {
			return "", err
		}
		return strings.Join(players, "\n"), nil
	default:
		return "", fmt.Errorf("unknown command %q (expected one of %s)", cmd, strings.Join(Commands, ", "))
	}
}

func (a *App) toggleShuffle() (string, error) {
	on, err := a.observer.Shuffle()
	if err != nil {
		return "", err
	}
	if err := a.observer.SetShuffle(!on); err != nil {
		return "", err
	}
	return strconv.FormatBool(!on), nil
}

// cycleLoop None→Track→Playlist→None；播放器不提供读取接口，从上次设置的值继续
func (a *App) cycleLoop() (string, error) {
	a.loopMu.Lock()
	defer a.loopMu.Unlock()

	next := a.loop.Next()
	if err := a.observer.SetLoopStatus(next); err != nil {
		return "", err
	}
	a.loop = next
	return next.String(), nil
}

// switchPlayer 在已知播放器之间循环切换，step 为 1 或 -1
func (a *App) switchPlayer(step int) (string, error) {
	players, err := a.observer.Players()
	if err != nil {
		return "", err
	}
	if len(players) == 0 {
		return "", fmt.Errorf("no players available")
	}

	idx := lo.IndexOf(players, a.observer.CurrentPlayer())
	switch {
	case idx < 0 && step < 0:
		idx = len(players) - 1
	case idx < 0:
		idx = 0
	default:
		idx = (idx + step + len(players)) % len(players)
	}

	next := players[idx]
	if err := a.observer.SetCurrentPlayer(next); err != nil {
		return "", err
	}
	a.logger.Info().Str("player", next).Msg("Switched player")
	return next, nil
}

// showHide 切换调度器；隐藏时推送一帧空内容清掉显示
func (a *App) showHide() (string, error) {
	if a.scheduler.IsRunning() {
		a.scheduler.Stop()
		if a.dispatcher != nil {
			a.dispatcher.Push(render.Frame{Class: "stopped"})
		}
		return "hidden", nil
	}
	if err := a.scheduler.Toggle(); err != nil {
		return "", err
	}
	return "shown", nil
}
