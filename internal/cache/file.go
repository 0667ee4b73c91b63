package cache

import (
	"os"
	"path/filepath"
	"waylyrics/pkg/fileutil"

	"github.com/rs/zerolog"
	"github.com/samber/mo"
	"github.com/spf13/afero"
)

const fileExt = ".txt"

// FileStore 一个缓存键对应 cacheDir 下的一个文件，内容就是原始歌词文本
type FileStore struct {
	fs     afero.Fs
	dir    string
	logger zerolog.Logger
	writer *writer
}

var _ Store = (*FileStore)(nil)

// NewFileStore 创建文件缓存，目录不存在时自动创建；目录不可用或不可写时返回错误
func NewFileStore(fs afero.Fs, dir string, logger zerolog.Logger) (*FileStore, error) {
	if err := fileutil.EnsureWritableDir(fs, dir); err != nil {
		return nil, err
	}
	s := &FileStore{
		fs:     fs,
		dir:    dir,
		logger: logger,
	}
	s.writer = newWriter(s.write, logger)
	logger.Debug().Str("cache_dir", dir).Msg("File cache ready")
	return s, nil
}

// Path 返回缓存键对应的文件路径
func (s *FileStore) Path(key string) string {
	return filepath.Join(s.dir, key+fileExt)
}

func (s *FileStore) Get(key string) mo.Option[string] {
	if key == "" {
		return mo.None[string]()
	}
	path := s.Path(key)
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Error().Err(err).Str("path", path).Msg("Failed to read cache file")
		}
		return mo.None[string]()
	}
	s.logger.Debug().Str("path", path).Msg("Cache HIT")
	return mo.Some(string(data))
}

func (s *FileStore) Put(key, text string) {
	if key == "" || text == "" {
		return
	}
	s.writer.enqueue(key, text)
}

func (s *FileStore) write(key, text string) error {
	return fileutil.WriteFileOverwrite(s.fs, s.Path(key), []byte(text), 0644)
}

func (s *FileStore) Flush() {
	s.writer.flush()
}

func (s *FileStore) Close() error {
	s.writer.close()
	return nil
}
