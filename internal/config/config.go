package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

const (
	DefaultSocketPath       = "/tmp/waylyrics.sock"
	DefaultLogLevel         = "info"
	DefaultFormat           = "{player}/{title} {lyrics}"
	DefaultUpdateInterval   = 1  // 秒
	DefaultMaxLength        = 30 // 字符
	DefaultTitleMaxLength   = 30 // 字符
	DefaultLyricsMaxSeconds = 300
	DefaultAPIURL           = "https://lrclib.net/api"
	DefaultLookupTimeout    = 10 * time.Second
	DefaultCacheDir         = "~/.cache/waylyrics"
	DefaultDestName         = "org.mpris.MediaPlayer2.musicfox"
	DefaultMPDAddr          = "localhost:6600"
	DefaultCheckInterval    = 2 * time.Second

	minUpdateInterval = 1
	minLimit          = 10
)

// TomlConfig TOML配置文件结构
type TomlConfig struct {
	App struct {
		SocketPath string `toml:"socket_path"`
		LogLevel   string `toml:"log_level"`
	} `toml:"app"`

	Display struct {
		Format         string `toml:"format"`
		TooltipFormat  string `toml:"tooltip_format"`
		Tooltip        bool   `toml:"tooltip"`
		Interval       int    `toml:"interval"`
		MaxLength      int    `toml:"max_length"`
		Output         string `toml:"output"`
		I3BlocksSignal int    `toml:"i3blocks_signal"`
	} `toml:"display"`

	Lyrics struct {
		TitleMaxLength int    `toml:"title_max_length"`
		MaxDuration    int    `toml:"max_duration"`
		APIURL         string `toml:"api_url"`
		Timeout        string `toml:"timeout"`
	} `toml:"lyrics"`

	Cache struct {
		Dir     string `toml:"dir"`
		Backend string `toml:"backend"`
		Redis   struct {
			Addr     string `toml:"addr"`
			Password string `toml:"password"`
			DB       int    `toml:"db"`
		} `toml:"redis"`
	} `toml:"cache"`

	Player struct {
		Source        string `toml:"source"`
		Dest          string `toml:"dest"`
		MPDAddr       string `toml:"mpd_addr"`
		MPDPassword   string `toml:"mpd_password"`
		CheckInterval string `toml:"check_interval"`
	} `toml:"player"`
}

// AppConfig 应用配置
type AppConfig struct {
	SocketPath string `validate:"required"`
	LogLevel   string `validate:"oneof=trace debug info warn error disabled"`
}

// DisplayConfig 显示配置
type DisplayConfig struct {
	Format         string
	TooltipFormat  string
	Tooltip        bool
	Interval       int    `validate:"min=1"` // 秒
	MaxLength      int    `validate:"min=10"`
	Output         string `validate:"oneof=json text none"`
	I3BlocksSignal int    `validate:"min=0,max=30"`
}

// LyricsConfig 歌词查询配置
type LyricsConfig struct {
	TitleMaxLength int           `validate:"min=10"`
	MaxDuration    int           `validate:"min=10"` // 秒
	APIURL         string        `validate:"required,url"`
	Timeout        time.Duration `validate:"gt=0"`
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// CacheConfig 缓存配置
type CacheConfig struct {
	Dir     string `validate:"required"`
	Backend string `validate:"oneof=file redis"`
	Redis   RedisConfig
}

// PlayerConfig 播放器监控配置
type PlayerConfig struct {
	Source        string `validate:"oneof=mpris mpd playerctl"`
	Dest          string
	MPDAddr       string
	MPDPassword   string
	CheckInterval time.Duration
}

// Config 主配置结构
type Config struct {
	App     AppConfig
	Display DisplayConfig
	Lyrics  LyricsConfig
	Cache   CacheConfig
	Player  PlayerConfig
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		App: AppConfig{
			SocketPath: DefaultSocketPath,
			LogLevel:   DefaultLogLevel,
		},
		Display: DisplayConfig{
			Format:    DefaultFormat,
			Interval:  DefaultUpdateInterval,
			MaxLength: DefaultMaxLength,
			Output:    "json",
		},
		Lyrics: LyricsConfig{
			TitleMaxLength: DefaultTitleMaxLength,
			MaxDuration:    DefaultLyricsMaxSeconds,
			APIURL:         DefaultAPIURL,
			Timeout:        DefaultLookupTimeout,
		},
		Cache: CacheConfig{
			Dir:     DefaultCacheDir,
			Backend: "file",
			Redis: RedisConfig{
				Addr: "localhost:6379",
			},
		},
		Player: PlayerConfig{
			Source:        "mpris",
			Dest:          DefaultDestName,
			MPDAddr:       DefaultMPDAddr,
			CheckInterval: DefaultCheckInterval,
		},
	}
}

// DefaultPath 获取配置文件路径
func DefaultPath() string {
	// 优先使用 XDG_CONFIG_HOME 环境变量
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, "waylyrics", "config.toml")
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Warn().Err(err).Msg("Cannot get user home directory")
		return "config.toml" // 回退到当前目录
	}

	return filepath.Join(homeDir, ".config", "waylyrics", "config.toml")
}

// loadTomlConfig 加载TOML配置文件，文件不存在时返回空配置
func loadTomlConfig(path string) (*TomlConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Info().Str("path", path).Msg("Config file not found, using defaults")
		return &TomlConfig{}, nil
	}

	var cfg TomlConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
	}

	log.Info().Str("path", path).Msg("Loaded config")
	return &cfg, nil
}

// Load 读取配置文件并与默认值合并；path 为空时使用 DefaultPath
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}
	tomlConfig, err := loadTomlConfig(path)
	if err != nil {
		return nil, err
	}

	config := Default()
	if err := config.merge(tomlConfig); err != nil {
		return nil, err
	}

	if err := validator.New().Struct(config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return config, nil
}

func (c *Config) merge(t *TomlConfig) error {
	// App
	if t.App.SocketPath != "" {
		c.App.SocketPath = t.App.SocketPath
	}
	if t.App.LogLevel != "" {
		c.App.LogLevel = strings.ToLower(t.App.LogLevel)
	}

	// Display：数值项低于下限时取下限（与 bar 配置里的 interval/max-length 行为一致）
	if t.Display.Format != "" {
		c.Display.Format = t.Display.Format
	}
	c.Display.TooltipFormat = t.Display.TooltipFormat
	c.Display.Tooltip = t.Display.Tooltip
	if t.Display.Interval != 0 {
		c.Display.Interval = max(minUpdateInterval, t.Display.Interval)
	}
	if t.Display.MaxLength != 0 {
		c.Display.MaxLength = max(minLimit, t.Display.MaxLength)
	}
	if t.Display.Output != "" {
		c.Display.Output = t.Display.Output
	}
	c.Display.I3BlocksSignal = t.Display.I3BlocksSignal

	// Lyrics
	if t.Lyrics.TitleMaxLength != 0 {
		c.Lyrics.TitleMaxLength = max(minLimit, t.Lyrics.TitleMaxLength)
	}
	if t.Lyrics.MaxDuration != 0 {
		c.Lyrics.MaxDuration = max(minLimit, t.Lyrics.MaxDuration)
	}
	if t.Lyrics.APIURL != "" {
		c.Lyrics.APIURL = t.Lyrics.APIURL
	}
	if t.Lyrics.Timeout != "" {
		if d, err := time.ParseDuration(t.Lyrics.Timeout); err == nil && d > 0 {
			c.Lyrics.Timeout = d
		} else {
			log.Warn().Str("timeout", t.Lyrics.Timeout).Msg("Invalid lyrics timeout format, using default")
		}
	}

	// Cache
	if t.Cache.Dir != "" {
		c.Cache.Dir = t.Cache.Dir
	}
	dir, err := ExpandDir(c.Cache.Dir)
	if err != nil {
		return err
	}
	c.Cache.Dir = dir
	if t.Cache.Backend != "" {
		c.Cache.Backend = t.Cache.Backend
	}
	if t.Cache.Redis.Addr != "" {
		c.Cache.Redis.Addr = t.Cache.Redis.Addr
	}
	if t.Cache.Redis.Password != "" {
		c.Cache.Redis.Password = t.Cache.Redis.Password
	}
	if t.Cache.Redis.DB != 0 {
		c.Cache.Redis.DB = t.Cache.Redis.DB
	}

	// Player
	if t.Player.Source != "" {
		c.Player.Source = t.Player.Source
	}
	if t.Player.Dest != "" {
		c.Player.Dest = t.Player.Dest
	}
	if t.Player.MPDAddr != "" {
		c.Player.MPDAddr = t.Player.MPDAddr
	}
	if t.Player.MPDPassword != "" {
		c.Player.MPDPassword = t.Player.MPDPassword
	}
	if t.Player.CheckInterval != "" {
		if d, err := time.ParseDuration(t.Player.CheckInterval); err == nil && d > 0 {
			c.Player.CheckInterval = d
		} else {
			log.Warn().Str("check_interval", t.Player.CheckInterval).Msg("Invalid check_interval format, using default")
		}
	}
	return nil
}

// ExpandDir 展开开头的 ~ 或 $HOME；其余相对路径视为配置错误
func ExpandDir(path string) (string, error) {
	var rest string
	switch {
	case path == "~" || strings.HasPrefix(path, "~/"):
		rest = strings.TrimPrefix(path, "~")
	case path == "$HOME" || strings.HasPrefix(path, "$HOME/"):
		rest = strings.TrimPrefix(path, "$HOME")
	case filepath.IsAbs(path):
		return filepath.Clean(path), nil
	default:
		return "", fmt.Errorf("invalid directory path: %q (must be absolute or start with ~ or $HOME)", path)
	}

	home := os.Getenv("HOME")
	if home == "" {
		return "", fmt.Errorf("HOME environment variable not set, cannot expand %q", path)
	}
	return filepath.Join(home, rest), nil
}
