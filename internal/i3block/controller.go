package i3block

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"
	"waylyrics/internal/render"
	"waylyrics/pkg/fileutil"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

const (
	// sigRTMin glibc 下 SIGRTMIN 的值，i3blocks 的 signal=N 对应 SIGRTMIN+N
	sigRTMin        = 34
	refreshInterval = 10 * time.Second
)

// DefaultPath 帧文本写入的位置，i3blocks 的 command 读取该文件
func DefaultPath() string {
	dir := os.Getenv("XDG_RUNTIME_DIR")
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "waylyrics")
}

// Controller 把帧写入文件并通知 i3blocks 刷新
type Controller struct {
	fs     afero.Fs
	path   string
	signal int
	logger zerolog.Logger

	pid      int
	pidMutex sync.RWMutex
	findPID  func() (int, error)
	kill     func(pid int, sig syscall.Signal) error

	last     string
	lastLock sync.Mutex

	stopChan  chan struct{}
	isRunning bool
	runMutex  sync.Mutex
}

var _ render.Target = (*Controller)(nil)

func NewController(fs afero.Fs, path string, signal int, logger zerolog.Logger) *Controller {
	return &Controller{
		fs:      fs,
		path:    path,
		signal:  signal,
		logger:  logger,
		pid:     -1,
		findPID: findI3blocksPID,
		kill:    syscall.Kill,
	}
}

// Start 立即查找一次 i3blocks 进程，之后每 10 秒刷新
func (c *Controller) Start() error {
	c.runMutex.Lock()
	defer c.runMutex.Unlock()

	if c.isRunning {
		return fmt.Errorf("controller is already running")
	}
	if err := c.refreshPID(); err != nil {
		c.logger.Warn().Err(err).Msg("i3blocks not found yet")
	}

	c.stopChan = make(chan struct{})
	c.isRunning = true
	go c.monitorLoop(c.stopChan)

	c.logger.Info().Str("path", c.path).Int("signal", c.signal).Msg("i3block controller started")
	return nil
}

func (c *Controller) Stop() {
	c.runMutex.Lock()
	defer c.runMutex.Unlock()

	if !c.isRunning {
		return
	}
	close(c.stopChan)
	c.isRunning = false
	c.logger.Info().Msg("i3block controller stopped")
}

func (c *Controller) monitorLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := c.refreshPID(); err != nil {
				c.logger.Debug().Err(err).Msg("Failed to refresh i3blocks PID")
			}
		case <-stop:
			return
		}
	}
}

func (c *Controller) refreshPID() error {
	pid, err := c.findPID()
	c.pidMutex.Lock()
	oldPID := c.pid
	if err != nil {
		c.pid = -1
	} else {
		c.pid = pid
	}
	c.pidMutex.Unlock()

	if err != nil {
		return err
	}
	if oldPID != pid {
		c.logger.Info().Int("old_pid", oldPID).Int("pid", pid).Msg("i3blocks PID updated")
	}
	return nil
}

// findI3blocksPID 先用 pgrep，失败时退回解析 ps aux
func findI3blocksPID() (int, error) {
	if out, err := exec.Command("pgrep", "-x", "i3blocks").Output(); err == nil {
		if pid, err := parsePgrep(string(out)); err == nil {
			return pid, nil
		}
	}
	out, err := exec.Command("ps", "aux").Output()
	if err != nil {
		return -1, fmt.Errorf("failed to run ps command: %w", err)
	}
	return parsePs(string(out))
}

// parsePgrep 多个 PID 时取第一个
func parsePgrep(out string) (int, error) {
	fields := strings.Fields(out)
	if len(fields) == 0 {
		return -1, fmt.Errorf("i3blocks process not found")
	}
	return strconv.Atoi(fields[0])
}

func parsePs(out string) (int, error) {
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 11 || filepath.Base(fields[10]) != "i3blocks" {
			continue
		}
		if pid, err := strconv.Atoi(fields[1]); err == nil {
			return pid, nil
		}
	}
	return -1, fmt.Errorf("i3blocks process not found")
}

func (c *Controller) GetPID() int {
	c.pidMutex.RLock()
	defer c.pidMutex.RUnlock()
	return c.pid
}

// Render 文本有变化时写文件并发送 SIGRTMIN+signal；找不到 i3blocks 时只写文件
func (c *Controller) Render(f render.Frame) error {
	c.lastLock.Lock()
	defer c.lastLock.Unlock()
	if f.Text == c.last {
		return nil
	}

	if err := fileutil.WriteFileOverwrite(c.fs, c.path, []byte(f.Text+"\n"), 0644); err != nil {
		return err
	}
	c.last = f.Text

	pid := c.GetPID()
	if pid <= 0 {
		return nil
	}
	if err := c.kill(pid, syscall.Signal(sigRTMin+c.signal)); err != nil {
		return fmt.Errorf("failed to signal i3blocks (PID %d): %w", pid, err)
	}
	return nil
}

func (c *Controller) IsRunning() bool {
	c.runMutex.Lock()
	defer c.runMutex.Unlock()
	return c.isRunning
}
