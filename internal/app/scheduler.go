package app

import (
	"errors"
	"fmt"
	"sync"
	"time"
	"waylyrics/internal/render"

	"github.com/rs/zerolog"
)

// ErrNoTarget 启动调度器时没有可用的渲染目标
var ErrNoTarget = errors.New("no render target")

const (
	// advanceStep 每个等待步长推进的播放位置（毫秒）
	advanceStep = 1000
	// failureBackoff 单次循环出错后的等待时间
	failureBackoff = time.Second
)

// Scheduler 歌词刷新调度器：每个周期渲染一帧，然后按 1 秒步长等待 interval 秒，
// 每一步都检查停止信号并推进播放位置
type Scheduler struct {
	interval int
	step     time.Duration
	backoff  time.Duration
	frame    func() render.Frame
	advance  func(delta int64)
	logger   zerolog.Logger

	mu     sync.Mutex
	target render.Target
	stop   chan struct{}
	done   chan struct{}
}

func NewScheduler(interval int, frame func() render.Frame, advance func(delta int64), logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		interval: max(1, interval),
		step:     time.Second,
		backoff:  failureBackoff,
		frame:    frame,
		advance:  advance,
		logger:   logger,
	}
}

// Start 启动后台循环；已经在运行时什么也不做
func (s *Scheduler) Start(target render.Target) error {
	if target == nil {
		return ErrNoTarget
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.target = target
	if s.stop != nil {
		return nil
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.loop(target, s.stop, s.done)

	s.logger.Info().Int("interval", s.interval).Msg("Lyric scheduler started")
	return nil
}

// Stop 通知循环退出并等待它结束；未运行时什么也不做
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stop == nil {
		return
	}
	close(s.stop)
	<-s.done
	s.stop, s.done = nil, nil

	s.logger.Info().Msg("Lyric scheduler stopped")
}

// Toggle 运行中则停止，否则用上一次的渲染目标重新启动
func (s *Scheduler) Toggle() error {
	if s.IsRunning() {
		s.Stop()
		return nil
	}
	s.mu.Lock()
	target := s.target
	s.mu.Unlock()
	return s.Start(target)
}

func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stop != nil
}

func (s *Scheduler) loop(target render.Target, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		if err := s.cycle(target, stop); err != nil {
			if errors.Is(err, errStopped) {
				return
			}
			s.logger.Error().Err(err).Msg("Lyric scheduler cycle failed")
			if !s.wait(stop, s.backoff) {
				return
			}
		}
	}
}

var errStopped = errors.New("scheduler stopped")

// cycle 渲染一帧并等待下一个周期；panic 也按普通错误处理
func (s *Scheduler) cycle(target render.Target, stop <-chan struct{}) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	if err := target.Render(s.frame()); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	for i := 0; i < s.interval; i++ {
		if !s.wait(stop, s.step) {
			return errStopped
		}
		s.advance(advanceStep)
	}
	return nil
}

// wait 睡眠 d，期间收到停止信号返回 false
func (s *Scheduler) wait(stop <-chan struct{}, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-stop:
		return false
	case <-timer.C:
		return true
	}
}
