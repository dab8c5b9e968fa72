package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"imeswitchd/internal/coordinator"
	"imeswitchd/internal/source"
)

const (
	readTimeout  = 30 * time.Second
	writeTimeout = 10 * time.Second
)

// Server answers control requests against a coordinator and registry.
type Server struct {
	socketPath string
	coord      *coordinator.Coordinator
	reg        *source.Registry
	log        *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewServer creates a server listening on socketPath once started.
func NewServer(socketPath string, coord *coordinator.Coordinator, reg *source.Registry, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{socketPath: socketPath, coord: coord, reg: reg, log: log}
}

// Start binds the socket and begins accepting connections.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return errors.New("ipc server already started")
	}

	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0o700); err != nil {
		return fmt.Errorf("create socket directory: %w", err)
	}
	// A stale socket from a crashed previous run blocks the bind.
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stale socket: %w", err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listen on socket: %w", err)
	}
	if err := os.Chmod(s.socketPath, 0o600); err != nil {
		listener.Close()
		return fmt.Errorf("set socket permissions: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.listener = listener
	s.cancel = cancel

	s.wg.Add(1)
	go s.acceptLoop(ctx)

	s.log.Info("ipc server listening", "socket", s.socketPath)
	return nil
}

// Stop closes the listener, waits for in-flight connections and removes
// the socket file.
func (s *Server) Stop() error {
	s.mu.Lock()
	listener := s.listener
	cancel := s.cancel
	s.listener = nil
	s.mu.Unlock()

	if listener == nil {
		return nil
	}
	cancel()
	listener.Close()
	s.wg.Wait()
	os.Remove(s.socketPath)
	return nil
}

// SocketPath returns the socket path.
func (s *Server) SocketPath() string { return s.socketPath }

func (s *Server) acceptLoop(ctx context.Context) {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.log.Warn("accept failed", "error", err)
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(ctx, conn)
		}()
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	enc := json.NewEncoder(conn)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn.SetReadDeadline(time.Now().Add(readTimeout))
		if !scanner.Scan() {
			return
		}

		var req Request
		var resp Response
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			resp = errorResponse(fmt.Errorf("bad request: %w", err))
		} else {
			resp = s.dispatch(req)
		}

		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := enc.Encode(resp); err != nil {
			return
		}
	}
}

func (s *Server) dispatch(req Request) Response {
	switch req.Op {
	case OpStatus:
		st := s.coord.Status()
		raw, err := json.Marshal(st)
		if err != nil {
			return errorResponse(err)
		}
		return Response{OK: true, Status: raw}

	case OpList:
		var activeID string
		if cur, err := s.reg.Current(); err == nil {
			activeID = cur.ID
		}
		sources := s.reg.List()
		infos := make([]SourceInfo, 0, len(sources))
		for _, src := range sources {
			infos = append(infos, SourceInfo{
				ID:          src.ID,
				DisplayName: src.DisplayName,
				Languages:   src.Languages,
				CJKV:        src.CJKV(),
				Active:      src.ID == activeID,
			})
		}
		return Response{OK: true, Sources: infos}

	case OpRefresh:
		if err := s.coord.RefreshRegistry(); err != nil {
			return errorResponse(err)
		}
		return Response{OK: true}

	case OpSetLatin:
		if err := s.coord.SetLatinSource(req.ID); err != nil {
			return errorResponse(err)
		}
		return Response{OK: true}

	case OpSetLast:
		if err := s.coord.SetLastSource(req.ID); err != nil {
			return errorResponse(err)
		}
		return Response{OK: true}

	case OpTap:
		if req.Enabled == nil {
			return errorResponse(errors.New("tap requires enabled"))
		}
		if err := s.coord.SetTapEnabled(*req.Enabled); err != nil {
			return errorResponse(err)
		}
		return Response{OK: true}

	default:
		return errorResponse(fmt.Errorf("unknown op %q", req.Op))
	}
}
