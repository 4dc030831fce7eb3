// Package webapp hosts the sample web application that walks a browser
// through the BeneLink authorization flow. It serves a small HTML front end,
// drives the redirect/callback exchange server-side, and exposes the
// authorized beneficiary's data through JSON endpoints. Each browser session
// gets its own PKCE material and its own refreshing credential.
package webapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/benelink/benelink-go/internal/config"
	"github.com/benelink/benelink-go/internal/logging"
	"github.com/benelink/benelink-go/sdk/benelink"
)

const sessionCookieName = "benelink_session"

// Server is the demo web application. It owns the HTTP listener, the session
// store, and the BeneLink client the handlers share. The client is swappable
// at runtime so configuration edits apply without a restart.
type Server struct {
	mu         sync.Mutex
	cfg        *config.Config
	client     *benelink.Client
	engine     *gin.Engine
	httpServer *http.Server
	sessions   *sessionStore
}

// New builds the web application from the given configuration.
func New(cfg *config.Config) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("webapp: config is required")
	}
	client, err := buildClient(cfg)
	if err != nil {
		return nil, err
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(logging.GinLogrusLogger(), logging.GinLogrusRecovery())
	engine.SetHTMLTemplate(pageTemplates)

	s := &Server{
		cfg:      cfg,
		client:   client,
		engine:   engine,
		sessions: newSessionStore(sessionTTL),
	}
	s.registerRoutes()

	s.httpServer = &http.Server{
		Addr:              cfg.WebAppAddr,
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s, nil
}

func (s *Server) registerRoutes() {
	s.engine.GET("/", s.handleHome)
	s.engine.GET("/login", s.handleLogin)
	s.engine.GET("/callback", s.handleCallback)
	s.engine.GET("/logout", s.handleLogout)

	api := s.engine.Group("/api")
	api.GET("/userinfo", s.handleUserinfo)
	api.GET("/patient", s.handleResource("Patient"))
	api.GET("/coverage", s.handleResource("Coverage"))
	api.GET("/eob", s.handleResource("ExplanationOfBenefit"))
	api.GET("/summary", s.handleSummary)
}

// Run serves the application until the context is cancelled or the listener
// fails. Shutdown drains in-flight requests for up to five seconds.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if errServe := s.httpServer.ListenAndServe(); errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			errCh <- errServe
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

// UpdateConfig applies an edited configuration to the running server. New
// logins pick up the new client settings; sessions that already hold a
// credential keep refreshing against the client they authorized with. A
// changed listen address requires a restart.
func (s *Server) UpdateConfig(cfg *config.Config) {
	if cfg == nil {
		return
	}
	client, err := buildClient(cfg)
	if err != nil {
		log.Errorf("webapp: configuration update rejected: %v", err)
		return
	}

	s.mu.Lock()
	previous := s.cfg
	s.cfg = cfg
	s.client = client
	s.mu.Unlock()

	if previous != nil && previous.WebAppAddr != cfg.WebAppAddr {
		log.Warnf("webapp: listen address changed to %s, restart to apply", cfg.WebAppAddr)
	}
	log.Info("webapp: configuration updated")
}

func (s *Server) currentClient() *benelink.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client
}

func (s *Server) currentConfig() *config.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// buildClient projects the file configuration into a BeneLink client.
func buildClient(cfg *config.Config) (*benelink.Client, error) {
	return benelink.NewClient(benelink.Config{
		BaseURL:      cfg.BaseURL,
		Version:      cfg.Version,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		CallbackURL:  cfg.CallbackURL,
		ProxyURL:     cfg.ProxyURL,
		RequestLog:   cfg.RequestLog,
		LogsDir:      cfg.LogsDir,
	})
}

// ensureSession returns the browser's session identifier, minting one and
// setting the cookie when the request carries none.
func (s *Server) ensureSession(c *gin.Context) string {
	if id, err := c.Cookie(sessionCookieName); err == nil && strings.TrimSpace(id) != "" {
		return id
	}
	id := uuid.NewString()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookieName, id, 0, "/", "", false, true)
	return id
}

func (s *Server) handleHome(c *gin.Context) {
	id := s.ensureSession(c)
	patient, connected := s.sessions.Patient(id)
	c.HTML(http.StatusOK, "home", gin.H{
		"Connected": connected,
		"Patient":   patient,
		"BaseURL":   s.currentConfig().BaseURL,
	})
}

// handleLogin generates fresh authorization data for the session and
// redirects the browser to the authorization server.
func (s *Server) handleLogin(c *gin.Context) {
	id := s.ensureSession(c)
	client := s.currentClient()

	data, err := client.GenerateAuthData()
	if err != nil {
		c.HTML(http.StatusInternalServerError, "error", gin.H{"Reason": "Could not start the authorization flow. Try again."})
		return
	}
	authorizeURL, err := client.AuthorizeURL(data)
	if err != nil {
		c.HTML(http.StatusInternalServerError, "error", gin.H{"Reason": "Could not start the authorization flow. Try again."})
		return
	}

	s.sessions.SetPending(id, data)
	log.Debugf("webapp: session %s redirected to authorization server", shortSession(id))
	c.Redirect(http.StatusFound, authorizeURL)
}

// handleCallback completes the flow for the redirect landing back from the
// authorization server: it validates the response against the session's
// pending data, exchanges the code, and binds the credential to the session.
func (s *Server) handleCallback(c *gin.Context) {
	id, _ := c.Cookie(sessionCookieName)
	pending := s.sessions.TakePending(id)
	if pending == nil {
		c.HTML(http.StatusBadRequest, "error", gin.H{"Reason": "No authorization is in progress for this browser. Start again from the home page."})
		return
	}

	client := s.currentClient()
	token, err := client.ExchangeCode(c.Request.Context(), pending, c.Query("code"), c.Query("state"), c.Query("error"))
	if err != nil {
		if benelink.IsFlowError(err) {
			c.HTML(http.StatusBadRequest, "error", gin.H{"Reason": benelink.UserFriendlyMessage(err)})
			return
		}
		log.Errorf("webapp: token exchange failed: %v", err)
		c.HTML(http.StatusBadGateway, "error", gin.H{"Reason": "The token exchange with the authorization server failed. Try again."})
		return
	}

	source := client.TokenSource(context.Background(), token, nil)
	s.sessions.SetSource(id, source, token.Patient)
	log.Infof("webapp: session %s authorized for patient %s", shortSession(id), token.Patient)
	c.Redirect(http.StatusFound, "/")
}

func (s *Server) handleLogout(c *gin.Context) {
	if id, err := c.Cookie(sessionCookieName); err == nil {
		s.sessions.Delete(id)
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookieName, "", -1, "/", "", false, true)
	c.Redirect(http.StatusFound, "/")
}

// sessionToken resolves the request's session to a usable credential,
// refreshing it when it is about to expire. It writes the error response
// itself and returns nil when the request cannot proceed.
func (s *Server) sessionToken(c *gin.Context) *benelink.AuthorizationToken {
	id, _ := c.Cookie(sessionCookieName)
	source, ok := s.sessions.Source(id)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "error": "not connected; visit /login first"})
		return nil
	}
	if _, err := source.Token(); err != nil {
		log.Warnf("webapp: token refresh failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"status": "error", "error": "token refresh failed"})
		return nil
	}
	return source.Current()
}

// parseResourceOptions reads the paging parameters shared by the resource
// endpoints. It writes the error response itself when a value is malformed.
func parseResourceOptions(c *gin.Context) (*benelink.ResourceOptions, bool) {
	opts := &benelink.ResourceOptions{}
	set := false
	for query, target := range map[string]*int{"_count": &opts.Count, "startIndex": &opts.StartIndex} {
		raw := strings.TrimSpace(c.Query(query))
		if raw == "" {
			continue
		}
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": fmt.Sprintf("invalid %s", query)})
			return nil, false
		}
		*target = value
		set = true
	}
	if !set {
		return nil, true
	}
	return opts, true
}

func (s *Server) handleUserinfo(c *gin.Context) {
	token := s.sessionToken(c)
	if token == nil {
		return
	}
	info, err := s.currentClient().Userinfo(c.Request.Context(), token)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"status": "error", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, info)
}

// handleResource returns the handler for one FHIR resource endpoint. The
// upstream bundle is passed through untouched so clients see exactly what the
// resource server returned.
func (s *Server) handleResource(resource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := s.sessionToken(c)
		if token == nil {
			return
		}
		opts, ok := parseResourceOptions(c)
		if !ok {
			return
		}

		client := s.currentClient()
		var bundle *benelink.Bundle
		var err error
		switch resource {
		case "Patient":
			bundle, err = client.Patient(c.Request.Context(), token, opts)
		case "Coverage":
			bundle, err = client.Coverage(c.Request.Context(), token, opts)
		case "ExplanationOfBenefit":
			bundle, err = client.ExplanationOfBenefit(c.Request.Context(), token, opts)
		}
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"status": "error", "error": err.Error()})
			return
		}
		c.Data(http.StatusOK, "application/json; charset=utf-8", bundle.Raw())
	}
}

// handleSummary fetches the beneficiary's profile and all three resource
// bundles concurrently and reduces them to one overview document.
func (s *Server) handleSummary(c *gin.Context) {
	token := s.sessionToken(c)
	if token == nil {
		return
	}
	client := s.currentClient()

	var (
		info     *benelink.Userinfo
		patient  *benelink.Bundle
		coverage *benelink.Bundle
		eob      *benelink.Bundle
	)
	g, gctx := errgroup.WithContext(c.Request.Context())
	g.Go(func() error {
		var errFetch error
		info, errFetch = client.Userinfo(gctx, token)
		return errFetch
	})
	g.Go(func() error {
		var errFetch error
		patient, errFetch = client.Patient(gctx, token, nil)
		return errFetch
	})
	g.Go(func() error {
		var errFetch error
		coverage, errFetch = client.Coverage(gctx, token, nil)
		return errFetch
	})
	g.Go(func() error {
		var errFetch error
		eob, errFetch = client.ExplanationOfBenefit(gctx, token, nil)
		return errFetch
	})
	if err := g.Wait(); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"status": "error", "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"userinfo": info,
		"patient":  gin.H{"total": patient.Total()},
		"coverage": gin.H{"total": coverage.Total()},
		"explanationOfBenefit": gin.H{
			"total": eob.Total(),
		},
	})
}

// shortSession truncates a session identifier for log lines.
func shortSession(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
