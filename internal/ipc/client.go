package ipc

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"
)

// SendCommand 连接正在运行的实例，发送一条命令并等待回复；推送的帧会被跳过
func SendCommand(socketPath, cmd string, timeout time.Duration) (string, error) {
	conn, err := net.DialTimeout("unix", socketPath, timeout)
	if err != nil {
		return "", fmt.Errorf("failed to connect to %s: %w", socketPath, err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return "", err
	}
	if _, err := fmt.Fprintf(conn, "%s\n", cmd); err != nil {
		return "", err
	}

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		var msg map[string]json.RawMessage
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			continue
		}
		_, isReply := msg["reply"]
		_, isError := msg["error"]
		if !isReply && !isError {
			continue
		}
		var r Reply
		if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
			return "", err
		}
		if r.Error != "" {
			return "", errors.New(r.Error)
		}
		return r.Reply, nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("connection closed before reply")
}
