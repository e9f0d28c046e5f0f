// Package server exposes a repository's commit graph and working-tree status
// over HTTP and pushes live updates to WebSocket clients as the repository
// changes on disk.
package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/AntonyCanut/gitlanes/internal/gitcore"
	"github.com/AntonyCanut/gitlanes/internal/graph"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// The server binds to localhost; cross-origin pages may still open
		// sockets to it, which is acceptable for a local read-only viewer.
		return true
	},
}

// MessageType labels a WebSocket update payload.
type MessageType string

const (
	MessageTypeRepository MessageType = "repository"
	MessageTypeGraph      MessageType = "graph"
	MessageTypeStatus     MessageType = "status"
)

// UpdateMessage is the envelope for every WebSocket push.
type UpdateMessage struct {
	Type MessageType `json:"type"`
	Data any         `json:"data"`
}

// Server serves cached repository state and broadcasts changes.
type Server struct {
	repo       *gitcore.Repository
	addr       string
	logger     *log.Logger
	graphOpts  graph.Options
	pollPeriod time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	cacheMu sync.RWMutex
	cached  struct {
		graph  *graph.Graph
		status *gitcore.Status
	}

	clientsMu sync.RWMutex
	clients   map[*websocket.Conn]bool
	broadcast chan UpdateMessage

	// kick wakes the poll loop ahead of its ticker, used by the watcher.
	kick chan struct{}

	httpServer *http.Server
}

// NewServer creates a server for the given repository. pollPeriod bounds how
// stale the cached state can get when filesystem events are missed.
func NewServer(repo *gitcore.Repository, addr string, logger *log.Logger, opts graph.Options, pollPeriod time.Duration) *Server {
	if pollPeriod <= 0 {
		pollPeriod = 5 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		repo:       repo,
		addr:       addr,
		logger:     logger,
		graphOpts:  opts,
		pollPeriod: pollPeriod,
		ctx:        ctx,
		cancel:     cancel,
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan UpdateMessage, 256),
		kick:       make(chan struct{}, 1),
	}
}

// Start computes the initial state, launches the background loops, and
// blocks serving HTTP until Stop is called or the listener fails.
func (s *Server) Start() error {
	s.refresh()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/repository", s.handleRepository)
	mux.HandleFunc("/api/graph", s.handleGraph)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/ws", s.handleWebSocket)

	s.wg.Add(2)
	go s.broadcastLoop()
	go s.pollLoop()

	if err := s.startWatcher(); err != nil {
		// Polling still keeps clients current, just slower.
		s.logger.Warn("filesystem watcher unavailable, falling back to polling", "err", err)
	}

	s.httpServer = &http.Server{Addr: s.addr, Handler: mux}
	s.logger.Info("serving", "addr", s.addr, "repo", s.repo.Name())

	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop shuts down the listener and waits for the background loops to exit.
func (s *Server) Stop() {
	s.cancel()
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(ctx)
	}
	s.wg.Wait()

	s.clientsMu.Lock()
	for client := range s.clients {
		client.Close()
		delete(s.clients, client)
	}
	s.clientsMu.Unlock()
}

// requestPoll nudges the poll loop without blocking; a pending nudge is enough.
func (s *Server) requestPoll() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// broadcastLoop fans queued messages out to every connected client.
func (s *Server) broadcastLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return

		case msg := <-s.broadcast:
			var stale []*websocket.Conn

			s.clientsMu.RLock()
			for client := range s.clients {
				if err := client.WriteJSON(msg); err != nil {
					s.logger.Debug("dropping client after write error", "err", err)
					stale = append(stale, client)
				}
			}
			s.clientsMu.RUnlock()

			if len(stale) > 0 {
				s.clientsMu.Lock()
				for _, client := range stale {
					client.Close()
					delete(s.clients, client)
				}
				s.clientsMu.Unlock()
			}
		}
	}
}

// broadcastUpdate queues an update without blocking the poll loop.
func (s *Server) broadcastUpdate(msgType MessageType, data any) {
	msg := UpdateMessage{Type: msgType, Data: data}

	select {
	case s.broadcast <- msg:
	default:
		s.logger.Warn("broadcast channel full, dropping message", "type", msgType)
	}
}
