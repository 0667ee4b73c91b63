package app

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"
	"waylyrics/internal/cache"
	"waylyrics/internal/config"
	"waylyrics/internal/i3block"
	"waylyrics/internal/ipc"
	"waylyrics/internal/lyrics"
	"waylyrics/internal/player"
	"waylyrics/internal/player/mpd"
	"waylyrics/internal/player/mpris"
	"waylyrics/internal/player/playerctl"
	"waylyrics/internal/render"
	"waylyrics/pkg/lrclib"
	"waylyrics/pkg/redis"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

type App struct {
	cfg       *config.Config
	logger    zerolog.Logger
	observer  player.Observer
	store     cache.Store
	resolver  *lyrics.Resolver
	state     *stateBox
	scheduler *Scheduler

	// 输出目标，Run 时组装
	targets    []render.Target
	dispatcher *render.Dispatcher
	ipcServer  *ipc.Server
	i3block    *i3block.Controller

	// 正在查询歌词的缓存键，避免同一首歌重复查询
	resolving   map[string]struct{}
	resolvingMu sync.Mutex

	loopMu sync.Mutex
	loop   player.LoopStatus
}

// OpenResolver 按配置创建缓存和 lrclib 客户端；缓存目录不可用时返回错误
func OpenResolver(cfg *config.Config, logger zerolog.Logger) (*lyrics.Resolver, cache.Store, error) {
	var store cache.Store
	cacheLogger := logger.With().Str("component", "cache").Logger()
	switch cfg.Cache.Backend {
	case "redis":
		client, err := redis.NewClient(cfg.Cache.Redis.Addr, cfg.Cache.Redis.Password, cfg.Cache.Redis.DB)
		if err != nil {
			return nil, nil, err
		}
		store = cache.NewRedisStore(client, cacheLogger)
	default:
		fileStore, err := cache.NewFileStore(afero.NewOsFs(), cfg.Cache.Dir, cacheLogger)
		if err != nil {
			return nil, nil, err
		}
		store = fileStore
	}

	remote := lrclib.NewClient(cfg.Lyrics.APIURL, cfg.Lyrics.Timeout)
	resolver := lyrics.NewResolver(store, remote, logger.With().Str("component", "lyrics").Logger())
	return resolver, store, nil
}

func newObserver(cfg config.PlayerConfig, logger zerolog.Logger) (player.Observer, error) {
	logger = logger.With().Str("component", "player").Str("source", cfg.Source).Logger()
	switch cfg.Source {
	case "mpd":
		return mpd.New(cfg.MPDAddr, cfg.MPDPassword, logger), nil
	case "playerctl":
		return playerctl.New(cfg.Dest, cfg.CheckInterval, logger), nil
	default:
		return mpris.New(cfg.Dest, logger)
	}
}

// New 创建应用：打开缓存、连接播放器。配置错误（如缓存目录不可写）直接返回
func New(cfg *config.Config, logger zerolog.Logger) (*App, error) {
	logger = logger.With().Str("instance", uuid.NewString()).Logger()

	resolver, store, err := OpenResolver(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open lyrics cache: %w", err)
	}
	observer, err := newObserver(cfg.Player, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to connect to player: %w", err)
	}

	a := newApp(cfg, logger, observer, store, resolver)

	switch cfg.Display.Output {
	case "json", "text":
		a.targets = append(a.targets, render.NewWriter(os.Stdout, cfg.Display.Output == "json"))
	}
	a.ipcServer = ipc.NewServer(cfg.App.SocketPath, a.HandleCommand, logger.With().Str("component", "ipc").Logger())
	a.targets = append(a.targets, a.ipcServer)
	if cfg.Display.I3BlocksSignal > 0 {
		a.i3block = i3block.NewController(afero.NewOsFs(), i3block.DefaultPath(), cfg.Display.I3BlocksSignal,
			logger.With().Str("component", "i3block").Logger())
		a.targets = append(a.targets, a.i3block)
	}
	return a, nil
}

func newApp(cfg *config.Config, logger zerolog.Logger, observer player.Observer, store cache.Store, resolver *lyrics.Resolver) *App {
	a := &App{
		cfg:       cfg,
		logger:    logger,
		observer:  observer,
		store:     store,
		resolver:  resolver,
		state:     newStateBox(),
		resolving: make(map[string]struct{}),
	}
	a.scheduler = NewScheduler(cfg.Display.Interval, a.frame, a.state.Advance,
		logger.With().Str("component", "scheduler").Logger())
	return a
}

// Run 启动输出目标、调度器和播放器监听，阻塞到 ctx 结束
func (a *App) Run(ctx context.Context) error {
	defer a.shutdown()

	if a.ipcServer != nil {
		if err := a.ipcServer.Start(); err != nil {
			return fmt.Errorf("failed to start IPC server: %w", err)
		}
		defer a.ipcServer.Close()
	}
	if a.i3block != nil {
		if err := a.i3block.Start(); err != nil {
			return err
		}
		defer a.i3block.Stop()
	}

	a.dispatcher = render.NewDispatcher(render.Multi(a.targets...), a.logger.With().Str("component", "render").Logger())
	defer a.dispatcher.Close()

	if err := a.scheduler.Start(a.dispatcher); err != nil {
		return err
	}
	defer a.scheduler.Stop()

	a.logger.Info().
		Str("source", a.cfg.Player.Source).
		Str("cache", a.cfg.Cache.Backend).
		Msg("Starting player watch loop...")
	a.watch(ctx)
	return nil
}

func (a *App) shutdown() {
	a.logger.Info().Msg("Shutting down")
	if err := a.observer.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to close player observer")
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to close lyrics cache")
	}
}

// watch 播放器连接断开后按 check_interval 重试
func (a *App) watch(ctx context.Context) {
	for {
		err := a.observer.Watch(ctx, a.onPlayerState)
		if ctx.Err() != nil {
			return
		}
		a.logger.Warn().Err(err).Dur("retry_in", a.cfg.Player.CheckInterval).Msg("Player watch ended, retrying")
		// 断开期间不再按播放中推进位置
		if st := a.state.Load(); st.Status != player.Stopped {
			a.state.Store(st.Vanished())
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(a.cfg.Player.CheckInterval):
		}
	}
}
