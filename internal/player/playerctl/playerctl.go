// Package playerctl polls the playerctl CLI for players that are reachable
// through it but not directly over D-Bus (e.g. inside sandboxes).
package playerctl

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
	"waylyrics/internal/player"

	"github.com/rs/zerolog"
)

// metadataFormat 字段用制表符分隔，顺序与 parseMetadata 一致
const metadataFormat = "{{playerName}}\t{{status}}\t{{position}}\t{{mpris:length}}\t{{xesam:title}}\t{{xesam:artist}}\t{{xesam:album}}"

const metadataFields = 7

// seekTolerance 两次轮询之间位置偏差超过该值视为跳转
const seekTolerance = 3000 // ms

// runner 执行 playerctl，测试时替换
type runner func(ctx context.Context, args ...string) (string, error)

func execRunner(ctx context.Context, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, "playerctl", args...).Output()
	if err != nil {
		return "", err
	}
	// 只去掉换行：空字段（如没有专辑）会留下结尾的制表符
	return strings.TrimRight(string(out), "\r\n"), nil
}

// Observer 定时调用 playerctl 获取播放状态
type Observer struct {
	interval time.Duration
	logger   zerolog.Logger
	run      runner

	mu      sync.RWMutex
	current string
}

var _ player.Observer = (*Observer)(nil)

// New 创建轮询监控；dest 为空时交给 playerctl 自行选择播放器
func New(dest string, interval time.Duration, logger zerolog.Logger) *Observer {
	return &Observer{
		interval: interval,
		logger:   logger,
		run:      execRunner,
		current:  dest,
	}
}

func (o *Observer) args(args ...string) []string {
	if name := o.CurrentPlayer(); name != "" {
		return append([]string{"--player=" + strings.TrimPrefix(name, "org.mpris.MediaPlayer2.")}, args...)
	}
	return args
}

// Watch 每个 interval 查询一次，只有在歌曲、状态或进度跳转时才回调
func (o *Observer) Watch(ctx context.Context, cb player.Callback) error {
	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()

	var last *player.State
	var lastAt time.Time
	for {
		st, err := o.query(ctx)
		now := time.Now()
		if err != nil {
			o.logger.Debug().Err(err).Msg("playerctl query failed")
			// 播放器退出：推送一次 Stopped，之后重新出现时按状态变化再通知
			if last != nil && last.Status != player.Stopped {
				gone := last.Vanished()
				cb(gone)
				last, lastAt = &gone, now
			}
		} else {
			if changed(last, st, now.Sub(lastAt)) {
				cb(st)
			}
			last, lastAt = &st, now
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// changed 判断新快照是否值得通知：换歌、状态变化、或播放中进度偏离预期
func changed(last *player.State, st player.State, elapsed time.Duration) bool {
	if last == nil || !last.SameTrack(st) || last.Status != st.Status {
		return true
	}
	expected := last.Position
	if st.Status == player.Playing {
		expected += elapsed.Milliseconds()
	}
	diff := st.Position - expected
	return diff > seekTolerance || diff < -seekTolerance
}

func (o *Observer) query(ctx context.Context) (player.State, error) {
	out, err := o.run(ctx, o.args("metadata", "--format", metadataFormat)...)
	if err != nil {
		return player.State{}, err
	}
	return parseMetadata(out)
}

// parseMetadata 解析 metadataFormat 的输出；playerctl 的时间单位是微秒。
// 结尾缺失的空字段按空字符串处理
func parseMetadata(out string) (player.State, error) {
	fields := strings.SplitN(strings.TrimRight(out, "\r\n"), "\t", metadataFields)
	if len(fields) < 5 {
		return player.State{}, fmt.Errorf("unexpected playerctl output: %q", out)
	}
	for len(fields) < metadataFields {
		fields = append(fields, "")
	}
	position, _ := strconv.ParseInt(fields[2], 10, 64)
	length, _ := strconv.ParseInt(fields[3], 10, 64)
	return player.State{
		PlayerName: fields[0],
		Status:     player.ParseStatus(fields[1]),
		Position:   position / 1000,
		Metadata: player.Metadata{
			Length: length / 1000,
			Title:  fields[4],
			Artist: fields[5],
			Album:  fields[6],
		},
	}, nil
}

func (o *Observer) command(args ...string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := o.run(ctx, o.args(args...)...)
	return err
}

func (o *Observer) Next() error            { return o.command("next") }
func (o *Observer) Previous() error        { return o.command("previous") }
func (o *Observer) TogglePlayPause() error { return o.command("play-pause") }

func (o *Observer) Shuffle() (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	out, err := o.run(ctx, o.args("shuffle")...)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) == "On", nil
}

func (o *Observer) SetShuffle(on bool) error {
	if on {
		return o.command("shuffle", "On")
	}
	return o.command("shuffle", "Off")
}

func (o *Observer) SetLoopStatus(status player.LoopStatus) error {
	return o.command("loop", status.String())
}

func (o *Observer) Players() ([]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	out, err := o.run(ctx, "--list-all")
	if err != nil {
		return nil, err
	}
	var players []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			players = append(players, line)
		}
	}
	return players, nil
}

func (o *Observer) CurrentPlayer() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.current
}

func (o *Observer) SetCurrentPlayer(name string) error {
	o.mu.Lock()
	o.current = name
	o.mu.Unlock()
	return nil
}

func (o *Observer) Close() error { return nil }
