package controller

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"time"

	"ess/common"

	"go.uber.org/zap"
)

const (
	cmdExit       = "exit"
	cmdDisconnect = "disconnect"

	// Time allowed to write one reply to the client.
	writeWait = 5 * time.Second

	maxLineSize = 1 << 20
)

type CommandRunner interface {
	HandleCommand(ctx context.Context, cmd common.Command, params map[string]any) error
}

// Server reads newline terminated JSON commands from one TCP client at a time and
// writes every reply back as one JSON line.
type Server struct {
	logger *zap.Logger

	mu   sync.Mutex
	conn net.Conn
	exit context.CancelFunc
}

func NewServer(logger *zap.Logger) *Server {
	return &Server{logger: logger.Named("Server")}
}

// Reply writes reply to the connected client. Without a client the reply is dropped.
func (s *Server) Reply(_ context.Context, reply any) error {
	b, err := json.Marshal(reply)
	if err != nil {
		return err
	}
	b = append(b, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_, err = s.conn.Write(b)
	return err
}

func (s *Server) ListenAndServe(ctx context.Context, addr string, runner CommandRunner) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.logger.Info("listening", zap.Stringer("addr", ln.Addr()))
	return s.Serve(ctx, ln, runner)
}

// Serve accepts clients on ln until ctx is done or a client sends exit. A client
// connecting while another one is served is rejected.
func (s *Server) Serve(ctx context.Context, ln net.Listener, runner CommandRunner) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.mu.Lock()
	s.exit = cancel
	s.mu.Unlock()
	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			cancel()
			return err
		}
		if !s.setClient(conn) {
			s.logger.Warn("rejecting client, another one is connected", zap.Stringer("remote", conn.RemoteAddr()))
			_ = conn.Close()
			continue
		}
		s.logger.Info("client connected", zap.Stringer("remote", conn.RemoteAddr()))
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.serveClient(ctx, conn, runner)
		}()
	}
}

func (s *Server) setClient(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return false
	}
	s.conn = conn
	return true
}

func (s *Server) closeClient(conn net.Conn) {
	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
	}
	s.mu.Unlock()
	_ = conn.Close()
	s.logger.Info("client disconnected", zap.Stringer("remote", conn.RemoteAddr()))
}

func (s *Server) serveClient(ctx context.Context, conn net.Conn, runner CommandRunner) {
	defer s.closeClient(conn)
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), maxLineSize)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		s.logger.Debug("read command line", zap.ByteString("line", line))
		var msg common.CommandMsg
		if err := json.Unmarshal(line, &msg); err != nil {
			s.logger.Error("malformed command line", zap.ByteString("line", line), zap.Error(err))
			continue
		}
		switch msg.Command {
		case cmdExit:
			s.logger.Info("closing server")
			s.mu.Lock()
			s.exit()
			s.mu.Unlock()
			return
		case cmdDisconnect:
			return
		}
		cmd, err := common.ParseCommand(msg.Command)
		if err != nil {
			s.logger.Error("ignoring command", zap.Error(err))
			continue
		}
		if err = runner.HandleCommand(ctx, cmd, msg.Parameters); err != nil {
			s.logger.Error("command aborted, disconnecting client", zap.Stringer("command", cmd), zap.Error(err))
			return
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
		s.logger.Error("read loop failed", zap.Error(err))
	}
}
