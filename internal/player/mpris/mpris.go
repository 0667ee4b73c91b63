// Package mpris observes media players over the D-Bus MPRIS interface.
package mpris

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"waylyrics/internal/player"

	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog"
)

const (
	BusPrefix      = "org.mpris.MediaPlayer2."
	objectPath     = dbus.ObjectPath("/org/mpris/MediaPlayer2")
	playerIface    = "org.mpris.MediaPlayer2.Player"
	propertiesIfce = "org.freedesktop.DBus.Properties"
)

// Observer 通过 MPRIS 监听当前播放器
type Observer struct {
	conn   *dbus.Conn
	logger zerolog.Logger

	mu      sync.RWMutex
	current string
	notify  chan struct{}
}

var _ player.Observer = (*Observer)(nil)

// New 连接 session bus；dest 为初始播放器（完整的 bus 名）
func New(dest string, logger zerolog.Logger) (*Observer, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	return &Observer{
		conn:    conn,
		logger:  logger,
		current: dest,
		notify:  make(chan struct{}, 1),
	}, nil
}

func (o *Observer) object() dbus.BusObject {
	return o.conn.Object(o.CurrentPlayer(), objectPath)
}

// matcher *dbus.Conn 的匹配规则接口
type matcher interface {
	AddMatchSignal(options ...dbus.MatchOption) error
	RemoveMatchSignal(options ...dbus.MatchOption) error
}

// watchMatches PropertiesChanged / Seeked 来自播放器，NameOwnerChanged 用于发现播放器退出
var watchMatches = [][]dbus.MatchOption{
	{
		dbus.WithMatchObjectPath(objectPath),
		dbus.WithMatchInterface(propertiesIfce),
		dbus.WithMatchMember("PropertiesChanged"),
	},
	{
		dbus.WithMatchObjectPath(objectPath),
		dbus.WithMatchInterface(playerIface),
		dbus.WithMatchMember("Seeked"),
	},
	{
		dbus.WithMatchInterface("org.freedesktop.DBus"),
		dbus.WithMatchMember("NameOwnerChanged"),
		dbus.WithMatchOption("arg0namespace", "org.mpris.MediaPlayer2"),
	},
}

// subscribe 添加全部规则，返回的函数移除已添加的规则；中途失败时回滚
func subscribe(m matcher, matches [][]dbus.MatchOption) (func(), error) {
	var added [][]dbus.MatchOption
	unsubscribe := func() {
		for _, opts := range added {
			m.RemoveMatchSignal(opts...)
		}
	}
	for _, opts := range matches {
		if err := m.AddMatchSignal(opts...); err != nil {
			unsubscribe()
			return nil, fmt.Errorf("failed to add match signal: %w", err)
		}
		added = append(added, opts)
	}
	return unsubscribe, nil
}

// Watch 订阅播放器信号，每次来自当前播放器的信号都会重新读取完整状态；
// 播放器退出时推送一次 Stopped
func (o *Observer) Watch(ctx context.Context, cb player.Callback) error {
	unsubscribe, err := subscribe(o.conn, watchMatches)
	if err != nil {
		return err
	}
	defer unsubscribe()

	signals := make(chan *dbus.Signal, 16)
	o.conn.Signal(signals)
	defer o.conn.RemoveSignal(signals)

	reporter := player.NewReporter(cb)
	o.emit(reporter)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-o.notify:
			o.emit(reporter)
		case sig, ok := <-signals:
			if !ok {
				return errors.New("dbus signal channel closed")
			}
			if isOwnerChange(sig, o.CurrentPlayer()) {
				o.emit(reporter)
				continue
			}
			if sig.Path != objectPath {
				continue
			}
			if owner := o.owner(); owner != "" && sig.Sender != owner {
				continue
			}
			o.emit(reporter)
		}
	}
}

// isOwnerChange 判断是否是 name 的 NameOwnerChanged 信号
func isOwnerChange(sig *dbus.Signal, name string) bool {
	if sig.Name != "org.freedesktop.DBus.NameOwnerChanged" || len(sig.Body) == 0 {
		return false
	}
	changed, _ := sig.Body[0].(string)
	return changed == name
}

func (o *Observer) emit(r *player.Reporter) {
	st, err := o.snapshot()
	if err != nil {
		o.logger.Debug().Err(err).Str("player", o.CurrentPlayer()).Msg("Failed to read player state")
	}
	r.Report(st, err)
}

// owner 返回当前播放器的唯一连接名（信号的 Sender 是唯一名而不是 well-known 名）
func (o *Observer) owner() string {
	var owner string
	err := o.conn.BusObject().Call("org.freedesktop.DBus.GetNameOwner", 0, o.CurrentPlayer()).Store(&owner)
	if err != nil {
		return ""
	}
	return owner
}

func (o *Observer) snapshot() (player.State, error) {
	obj := o.object()
	status, err := obj.GetProperty(playerIface + ".PlaybackStatus")
	if err != nil {
		return player.State{}, fmt.Errorf("failed to get playback status: %w", err)
	}
	metadata, err := obj.GetProperty(playerIface + ".Metadata")
	if err != nil {
		return player.State{}, fmt.Errorf("failed to get metadata: %w", err)
	}
	var position int64
	if pos, err := obj.GetProperty(playerIface + ".Position"); err == nil {
		position = toInt64(pos.Value())
	}

	meta, _ := metadata.Value().(map[string]dbus.Variant)
	statusStr, _ := status.Value().(string)
	return stateFromProperties(o.CurrentPlayer(), statusStr, meta, position), nil
}

// stateFromProperties 把 MPRIS 属性转换为状态快照，MPRIS 的时间单位是微秒
func stateFromProperties(name, status string, meta map[string]dbus.Variant, positionUs int64) player.State {
	return player.State{
		PlayerName: name,
		Status:     player.ParseStatus(status),
		Position:   positionUs / 1000,
		Metadata: player.Metadata{
			Title:  stringValue(meta, "xesam:title"),
			Artist: artistValue(meta, "xesam:artist"),
			Album:  stringValue(meta, "xesam:album"),
			Length: toInt64(variantValue(meta, "mpris:length")) / 1000,
		},
	}
}

func variantValue(meta map[string]dbus.Variant, key string) interface{} {
	if meta == nil {
		return nil
	}
	v, ok := meta[key]
	if !ok {
		return nil
	}
	return v.Value()
}

func stringValue(meta map[string]dbus.Variant, key string) string {
	s, _ := variantValue(meta, key).(string)
	return s
}

func artistValue(meta map[string]dbus.Variant, key string) string {
	switch v := variantValue(meta, key).(type) {
	case []string:
		return strings.Join(v, ", ")
	case string:
		return v
	case []interface{}:
		var names []string
		for _, item := range v {
			if s, ok := item.(string); ok {
				names = append(names, s)
			}
		}
		return strings.Join(names, ", ")
	}
	return ""
}

func toInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case uint64:
		return int64(n)
	case int32:
		return int64(n)
	case uint32:
		return int64(n)
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}

func (o *Observer) call(method string) error {
	return o.object().Call(playerIface+"."+method, 0).Err
}

func (o *Observer) Next() error            { return o.call("Next") }
func (o *Observer) Previous() error        { return o.call("Previous") }
func (o *Observer) TogglePlayPause() error { return o.call("PlayPause") }

func (o *Observer) Shuffle() (bool, error) {
	v, err := o.object().GetProperty(playerIface + ".Shuffle")
	if err != nil {
		return false, err
	}
	on, _ := v.Value().(bool)
	return on, nil
}

func (o *Observer) SetShuffle(on bool) error {
	return o.object().SetProperty(playerIface+".Shuffle", dbus.MakeVariant(on))
}

func (o *Observer) SetLoopStatus(status player.LoopStatus) error {
	return o.object().SetProperty(playerIface+".LoopStatus", dbus.MakeVariant(status.String()))
}

// Players 列出总线上所有 MPRIS 播放器
func (o *Observer) Players() ([]string, error) {
	var names []string
	if err := o.conn.BusObject().Call("org.freedesktop.DBus.ListNames", 0).Store(&names); err != nil {
		return nil, fmt.Errorf("failed to list bus names: %w", err)
	}
	var players []string
	for _, name := range names {
		if strings.HasPrefix(name, BusPrefix) {
			players = append(players, name)
		}
	}
	sort.Strings(players)
	return players, nil
}

func (o *Observer) CurrentPlayer() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.current
}

// SetCurrentPlayer 切换当前播放器并立即推送一次新状态
func (o *Observer) SetCurrentPlayer(name string) error {
	if !strings.HasPrefix(name, BusPrefix) {
		name = BusPrefix + name
	}
	o.mu.Lock()
	o.current = name
	o.mu.Unlock()
	o.logger.Info().Str("player", name).Msg("Switched player")

	select {
	case o.notify <- struct{}{}:
	default:
	}
	return nil
}

func (o *Observer) Close() error {
	return o.conn.Close()
}
