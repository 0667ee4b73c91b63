package lyrics

import (
	"context"
	"strings"
	"waylyrics/internal/cache"

	"github.com/rs/zerolog"
)

// Searcher 远程同步歌词查询（pkg/lrclib.Client 实现）
type Searcher interface {
	SyncedLyrics(ctx context.Context, title, artist string) (string, error)
	GetProviderName() string
}

// Resolver 先查本地缓存，未命中再查远程，成功后异步写入缓存
type Resolver struct {
	store  cache.Store
	remote Searcher
	logger zerolog.Logger
}

func NewResolver(store cache.Store, remote Searcher, logger zerolog.Logger) *Resolver {
	return &Resolver{
		store:  store,
		remote: remote,
		logger: logger,
	}
}

// Resolve 返回同步歌词；空字符串表示没有找到或出错，错误只记录日志
func (r *Resolver) Resolve(ctx context.Context, title, artist string) string {
	if strings.TrimSpace(title+" "+artist) == "" {
		return ""
	}
	key := cache.Key(title, artist)

	if cached, ok := r.store.Get(key).Get(); ok {
		r.logger.Debug().Str("key", key).Msg("Lyrics served from cache")
		return cached
	}
	r.logger.Debug().
		Str("title", title).
		Str("artist", artist).
		Str("provider", r.remote.GetProviderName()).
		Msg("Cache MISS, fetching from remote")

	synced, err := r.remote.SyncedLyrics(ctx, title, artist)
	if err != nil {
		r.logger.Warn().Err(err).Str("title", title).Str("artist", artist).Msg("Failed to fetch lyrics")
		return ""
	}

	r.logger.Info().
		Str("title", title).
		Str("artist", artist).
		Int("lines", len(Parse(synced))).
		Msg("Fetched synced lyrics")
	r.store.Put(key, synced)
	return synced
}

// ResolveWithFallback 带歌手查询失败时，去掉歌手再查一次（处理本地元数据与曲库歌手名不一致）
func (r *Resolver) ResolveWithFallback(ctx context.Context, title, artist string) string {
	text := r.Resolve(ctx, title, artist)
	if text == "" && artist != "" {
		r.logger.Debug().Str("title", title).Msg("Retrying lyrics lookup without artist")
		text = r.Resolve(ctx, title, "")
	}
	return text
}
