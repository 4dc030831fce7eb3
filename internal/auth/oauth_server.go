package auth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// CallbackServer is the local HTTP server that receives the authorization
// server's redirect during an interactive login. It captures the callback
// parameters verbatim; validation stays with ValidateCallback so the check
// order is identical for every transport.
type CallbackServer struct {
	// server is the underlying HTTP server instance
	server *http.Server
	// port is the port number on which the server listens
	port int
	// path is the callback route, derived from the registered callback URL
	path string
	// resultChan delivers the captured callback parameters
	resultChan chan *Callback
	// errorChan delivers server-level failures
	errorChan chan error
	// mu protects the server state
	mu sync.Mutex
	// running indicates whether the server is currently listening
	running bool
}

// NewCallbackServer creates a local callback server for the given port and
// callback path. An empty path defaults to "/callback".
func NewCallbackServer(port int, path string) *CallbackServer {
	if path == "" {
		path = "/callback"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return &CallbackServer{
		port:       port,
		path:       path,
		resultChan: make(chan *Callback, 1),
		errorChan:  make(chan error, 1),
	}
}

// Start begins listening for the redirect. It fails fast when the port is
// already taken so the caller can surface an actionable message before the
// browser opens.
func (s *CallbackServer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("callback server is already running")
	}

	if !s.isPortAvailable() {
		return NewFlowError(ErrPortInUse, fmt.Errorf("port %d is already in use", s.port))
	}

	mux := http.NewServeMux()
	mux.HandleFunc(s.path, s.handleCallback)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	s.running = true

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.errorChan <- NewFlowError(ErrServerStartFailed, err)
		}
	}()

	// Give the listener a moment to come up before the browser redirects.
	time.Sleep(100 * time.Millisecond)

	return nil
}

// Stop gracefully shuts the callback server down.
func (s *CallbackServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || s.server == nil {
		return nil
	}

	log.Debug("stopping local callback server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := s.server.Shutdown(shutdownCtx)
	s.running = false
	s.server = nil

	return err
}

// WaitForCallback blocks until the redirect arrives, a server failure occurs,
// or the timeout elapses.
func (s *CallbackServer) WaitForCallback(timeout time.Duration) (*Callback, error) {
	select {
	case result := <-s.resultChan:
		return result, nil
	case err := <-s.errorChan:
		return nil, err
	case <-time.After(timeout):
		return nil, ErrCallbackTimeout
	}
}

// handleCallback captures the redirect parameters and renders a terminal page
// for the browser. The captured values are forwarded untouched, so a denial
// or an incomplete redirect still reaches the waiting flow for validation.
func (s *CallbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	log.Debug("received authorization callback")

	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query()
	result := &Callback{
		Code:             query.Get("code"),
		State:            query.Get("state"),
		Error:            query.Get("error"),
		ErrorDescription: query.Get("error_description"),
	}
	s.sendResult(result)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	page := LoginSuccessHtml
	if result.Error != "" || result.Code == "" {
		reason := result.ErrorDescription
		if reason == "" {
			reason = result.Error
		}
		if reason == "" {
			reason = "The authorization response was incomplete."
		}
		page = strings.Replace(LoginFailedHtml, "{{REASON}}", reason, 1)
	}

	if _, err := w.Write([]byte(page)); err != nil {
		log.Errorf("failed to write callback page: %v", err)
	}
}

// sendResult forwards the callback without blocking the HTTP handler.
func (s *CallbackServer) sendResult(result *Callback) {
	select {
	case s.resultChan <- result:
		log.Debug("callback result sent to channel")
	default:
		log.Warn("callback result channel is full, result dropped")
	}
}

// isPortAvailable checks whether the configured port can be bound.
func (s *CallbackServer) isPortAvailable() bool {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return false
	}
	defer func() {
		_ = listener.Close()
	}()
	return true
}

// IsRunning reports whether the server is currently listening.
func (s *CallbackServer) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
