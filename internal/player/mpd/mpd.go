// Package mpd observes a Music Player Daemon through its idle protocol.
package mpd

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"
	"waylyrics/internal/player"

	"github.com/fhs/gompd/v2/mpd"
	"github.com/rs/zerolog"
)

// Name is the single player identifier this observer exposes.
const Name = "mpd"

// Observer wraps an MPD connection with reconnection logic.
type Observer struct {
	mu       sync.Mutex
	client   *mpd.Client
	addr     string
	password string
	logger   zerolog.Logger
}

var _ player.Observer = (*Observer)(nil)

func New(addr, password string, logger zerolog.Logger) *Observer {
	return &Observer{
		addr:     addr,
		password: password,
		logger:   logger,
	}
}

// withClient runs fn on a live connection, reconnecting once if the
// current one is gone.
func (o *Observer) withClient(fn func(c *mpd.Client) error) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.client != nil {
		if err := o.client.Ping(); err != nil {
			o.logger.Warn().Err(err).Msg("MPD connection lost, reconnecting...")
			o.client.Close()
			o.client = nil
		}
	}
	if o.client == nil {
		client, err := mpd.DialAuthenticated("tcp", o.addr, o.password)
		if err != nil {
			return fmt.Errorf("failed to connect to MPD at %s: %w", o.addr, err)
		}
		o.logger.Info().Str("addr", o.addr).Msg("Connected to MPD")
		o.client = client
	}
	return fn(o.client)
}

// Watch emits a snapshot now and after every player/options change. A lost
// connection is reported once as stopped.
func (o *Observer) Watch(ctx context.Context, cb player.Callback) error {
	watcher, err := mpd.NewWatcher("tcp", o.addr, o.password, "player", "options")
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	reporter := player.NewReporter(cb)
	o.emit(reporter)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case subsystem, ok := <-watcher.Event:
			if !ok {
				return fmt.Errorf("mpd watcher closed")
			}
			o.logger.Debug().Str("subsystem", subsystem).Msg("MPD event")
			o.emit(reporter)
		case err := <-watcher.Error:
			o.logger.Error().Err(err).Msg("MPD watcher error")
			o.emit(reporter)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
		}
	}
}

func (o *Observer) emit(r *player.Reporter) {
	var status, song mpd.Attrs
	err := o.withClient(func(c *mpd.Client) error {
		var err error
		if status, err = c.Status(); err != nil {
			return err
		}
		song, err = c.CurrentSong()
		return err
	})
	if err != nil {
		o.logger.Warn().Err(err).Msg("Failed to read MPD state")
		r.Report(player.State{}, err)
		return
	}
	r.Report(stateFromAttrs(status, song), nil)
}

// stateFromAttrs converts status/currentsong replies; MPD reports seconds.
func stateFromAttrs(status, song mpd.Attrs) player.State {
	st := player.State{
		PlayerName: Name,
		Status:     player.ParseStatus(status["state"]),
		Metadata: player.Metadata{
			Title:  song["Title"],
			Artist: song["Artist"],
			Album:  song["Album"],
		},
	}
	if elapsed, err := strconv.ParseFloat(status["elapsed"], 64); err == nil {
		st.Position = int64(elapsed * 1000)
	}
	if duration, err := strconv.ParseFloat(status["duration"], 64); err == nil {
		st.Metadata.Length = int64(duration * 1000)
	} else if secs, err := strconv.ParseFloat(song["Time"], 64); err == nil {
		st.Metadata.Length = int64(secs * 1000)
	}
	return st
}

func (o *Observer) Next() error {
	return o.withClient(func(c *mpd.Client) error { return c.Next() })
}

func (o *Observer) Previous() error {
	return o.withClient(func(c *mpd.Client) error { return c.Previous() })
}

func (o *Observer) TogglePlayPause() error {
	return o.withClient(func(c *mpd.Client) error {
		status, err := c.Status()
		if err != nil {
			return err
		}
		switch status["state"] {
		case "play":
			return c.Pause(true)
		case "pause":
			return c.Pause(false)
		default:
			return c.Play(-1)
		}
	})
}

func (o *Observer) Shuffle() (bool, error) {
	var on bool
	err := o.withClient(func(c *mpd.Client) error {
		status, err := c.Status()
		if err != nil {
			return err
		}
		on = status["random"] == "1"
		return nil
	})
	return on, err
}

func (o *Observer) SetShuffle(on bool) error {
	return o.withClient(func(c *mpd.Client) error { return c.Random(on) })
}

// SetLoopStatus maps Track to repeat+single and Playlist to repeat only.
func (o *Observer) SetLoopStatus(status player.LoopStatus) error {
	return o.withClient(func(c *mpd.Client) error {
		if err := c.Repeat(status != player.LoopNone); err != nil {
			return err
		}
		return c.Single(status == player.LoopTrack)
	})
}

func (o *Observer) Players() ([]string, error) { return []string{Name}, nil }
func (o *Observer) CurrentPlayer() string      { return Name }

func (o *Observer) SetCurrentPlayer(name string) error {
	if name != Name {
		return fmt.Errorf("unknown player %q", name)
	}
	return nil
}

func (o *Observer) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.client == nil {
		return nil
	}
	err := o.client.Close()
	o.client = nil
	return err
}
