package health

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// Logger is the logging surface the server needs.
type Logger interface {
	InfoObj(msg, key string, obj interface{})
	ErrorObj(msg, key string, obj interface{})
}

// State tracks loop liveness for the health endpoint.
type State struct {
	mu        sync.RWMutex
	startedAt time.Time
	lastCycle time.Time
	cycles    int
	failures  int
	lastError string
}

// NewState starts the uptime clock at startedAt.
func NewState(startedAt time.Time) *State {
	return &State{startedAt: startedAt}
}

// RecordCycle notes the end of one polling cycle. A nil err marks success.
func (s *State) RecordCycle(at time.Time, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastCycle = at
	s.cycles++
	if err != nil {
		s.failures++
		s.lastError = err.Error()
		return
	}
	s.lastError = ""
}

// Snapshot is the JSON view of State.
type Snapshot struct {
	Status    string     `json:"status"`
	StartedAt time.Time  `json:"started_at"`
	LastCycle *time.Time `json:"last_cycle,omitempty"`
	Cycles    int        `json:"cycles"`
	Failures  int        `json:"failures"`
	LastError string     `json:"last_error,omitempty"`
}

func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		Status:    "healthy",
		StartedAt: s.startedAt.UTC(),
		Cycles:    s.cycles,
		Failures:  s.failures,
		LastError: s.lastError,
	}
	if !s.lastCycle.IsZero() {
		last := s.lastCycle.UTC()
		snap.LastCycle = &last
	}
	return snap
}

// Options configures the router.
type Options struct {
	ServiceName string
	State       *State
	Metrics     http.Handler
}

// NewRouter serves a liveness page, a JSON health report and, when a
// metrics handler is given, /metrics.
func NewRouter(opts Options) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "%s is running", opts.ServiceName)
	})

	router.GET("/health", func(c *gin.Context) {
		if opts.State == nil {
			c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": opts.ServiceName})
			return
		}
		snap := opts.State.Snapshot()
		c.JSON(http.StatusOK, gin.H{"service": opts.ServiceName, "health": snap})
	})

	if opts.Metrics != nil {
		router.GET("/metrics", gin.WrapH(opts.Metrics))
	}
	return router
}

// Server runs the router until its context is cancelled.
type Server struct {
	srv *http.Server
	log Logger
}

// NewServer binds the handler to the given port.
func NewServer(port int, handler http.Handler, log Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		log: log,
	}
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if s.log != nil {
			s.log.InfoObj("health server listening", "addr", s.srv.Addr)
		}
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("health server shutdown: %w", err)
	}
	return <-errCh
}
