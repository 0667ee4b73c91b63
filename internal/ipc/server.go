package ipc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"waylyrics/internal/render"

	"github.com/rs/zerolog"
)

// Handler 处理客户端发来的一行命令，返回文本回复
type Handler func(cmd string) (string, error)

// Reply 命令回复，Reply 与 Error 只有一个非空
type Reply struct {
	Reply string `json:"reply,omitempty"`
	Error string `json:"error,omitempty"`
}

type client struct {
	conn net.Conn
	mu   sync.Mutex
}

func (c *client) writeLine(line []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.conn.Write(append(line, '\n'))
	return err
}

// Server Unix socket 服务：向所有客户端推送帧，并接收控制命令
type Server struct {
	socketPath      string
	listener        net.Listener
	handler         Handler
	logger          zerolog.Logger
	clientConns     map[*client]struct{}
	clientConnsLock sync.Mutex
	frame           []byte
	frameLock       sync.Mutex
	lockFile        *os.File
	lockFilePath    string
	closing         chan struct{}
	closeOnce       sync.Once
}

var _ render.Target = (*Server)(nil)

func NewServer(socketPath string, handler Handler, logger zerolog.Logger) *Server {
	return &Server{
		socketPath:   socketPath,
		handler:      handler,
		logger:       logger,
		clientConns:  make(map[*client]struct{}),
		lockFilePath: socketPath + ".lock",
		closing:      make(chan struct{}),
	}
}

func (s *Server) checkAndCleanOldLock() {
	content, err := os.ReadFile(s.lockFilePath)
	if os.IsNotExist(err) {
		return
	}
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to read lock file, removing it")
		os.Remove(s.lockFilePath)
		return
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(content)))
	if err != nil {
		s.logger.Warn().Err(err).Msg("Invalid PID in lock file, removing it")
		os.Remove(s.lockFilePath)
		return
	}

	if !isProcessRunning(pid) {
		s.logger.Info().Int("old_pid", pid).Msg("Process in lock file is not running, removing lock file")
		os.Remove(s.lockFilePath)
		return
	}
	s.logger.Info().Int("existing_pid", pid).Msg("Another process is still running")
}

// isProcessRunning kill(pid, 0) 只检查进程是否存在，不发送信号
func isProcessRunning(pid int) bool {
	return syscall.Kill(pid, 0) == nil
}

func (s *Server) acquireLock() error {
	s.checkAndCleanOldLock()

	file, err := os.OpenFile(s.lockFilePath, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to create lock file: %w", err)
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		file.Close()
		if err == syscall.EWOULDBLOCK {
			return fmt.Errorf("another waylyrics instance is already running")
		}
		return fmt.Errorf("failed to acquire lock: %w", err)
	}

	// 拿到锁之后再截断，避免覆盖正在运行实例的 PID
	if err := file.Truncate(0); err == nil {
		_, err = file.WriteString(fmt.Sprintf("%d\n", os.Getpid()))
	}
	if err != nil {
		syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
		file.Close()
		return fmt.Errorf("failed to write PID to lock file: %w", err)
	}

	s.lockFile = file
	s.logger.Info().Str("lock_file", s.lockFilePath).Int("pid", os.Getpid()).Msg("Acquired process lock")
	return nil
}

func (s *Server) releaseLock() {
	if s.lockFile == nil {
		return
	}
	syscall.Flock(int(s.lockFile.Fd()), syscall.LOCK_UN)
	s.lockFile.Close()
	os.Remove(s.lockFilePath)
	s.logger.Info().Str("lock_file", s.lockFilePath).Msg("Released process lock")
	s.lockFile = nil
}

func (s *Server) Start() error {
	if err := s.acquireLock(); err != nil {
		return err
	}

	if err := os.RemoveAll(s.socketPath); err != nil {
		s.releaseLock()
		return err
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		s.releaseLock()
		return err
	}
	s.listener = listener

	s.logger.Info().Str("socket_path", s.socketPath).Msg("IPC server listening")

	go s.acceptConnections()
	return nil
}

func (s *Server) acceptConnections() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.closing:
				return
			default:
			}
			s.logger.Error().Err(err).Msg("Failed to accept IPC connection")
			continue
		}
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	c := &client{conn: conn}
	s.clientConnsLock.Lock()
	s.clientConns[c] = struct{}{}
	s.clientConnsLock.Unlock()

	s.logger.Debug().Msg("IPC client connected")

	s.frameLock.Lock()
	initial := s.frame
	s.frameLock.Unlock()
	if initial != nil {
		if err := c.writeLine(initial); err != nil {
			s.logger.Error().Err(err).Msg("Failed to send initial frame")
		}
	}

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		cmd := strings.TrimSpace(scanner.Text())
		if cmd == "" {
			continue
		}
		line, _ := json.Marshal(s.dispatch(cmd))
		if err := c.writeLine(line); err != nil {
			break
		}
	}

	s.clientConnsLock.Lock()
	delete(s.clientConns, c)
	s.clientConnsLock.Unlock()
	conn.Close()
	s.logger.Debug().Msg("IPC client disconnected")
}

func (s *Server) dispatch(cmd string) Reply {
	if s.handler == nil {
		return Reply{Error: "commands not supported"}
	}
	out, err := s.handler(cmd)
	if err != nil {
		s.logger.Warn().Err(err).Str("command", cmd).Msg("IPC command failed")
		return Reply{Error: err.Error()}
	}
	s.logger.Debug().Str("command", cmd).Msg("IPC command handled")
	if out == "" {
		out = "ok"
	}
	return Reply{Reply: out}
}

// Render 把帧以 JSON 行推送给所有客户端，并记住它用于新连接
func (s *Server) Render(f render.Frame) error {
	line, err := json.Marshal(f)
	if err != nil {
		return err
	}
	s.frameLock.Lock()
	s.frame = line
	s.frameLock.Unlock()

	s.clientConnsLock.Lock()
	defer s.clientConnsLock.Unlock()

	for c := range s.clientConns {
		if err := c.writeLine(line); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to write to client, removing")
			c.conn.Close()
			delete(s.clientConns, c)
		}
	}
	return nil
}

func (s *Server) Close() {
	s.closeOnce.Do(func() {
		close(s.closing)
		if s.listener != nil {
			s.listener.Close()
		}
		s.clientConnsLock.Lock()
		for c := range s.clientConns {
			c.conn.Close()
		}
		s.clientConnsLock.Unlock()
		s.releaseLock()
	})
}
