package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/benelink/benelink-go/internal/config"
	"github.com/benelink/benelink-go/internal/watcher"
	"github.com/benelink/benelink-go/internal/webapp"
)

// DoWebApp runs the demonstration web application until interrupted. When
// configPath is non-empty the file is watched and edits are applied to the
// running server without a restart.
func DoWebApp(cfg *config.Config, configPath string) {
	server, err := webapp.New(cfg)
	if err != nil {
		fmt.Printf("Web app setup failed: %v\n", err)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if configPath != "" {
		startConfigWatcher(ctx, cfg, configPath, server)
	}

	fmt.Printf("BeneLink web app listening on %s\n", cfg.WebAppAddr)
	fmt.Println("Press Ctrl+C to stop.")
	if errRun := server.Run(ctx); errRun != nil && !errors.Is(errRun, http.ErrServerClosed) {
		log.Errorf("web app exited with error: %v", errRun)
		return
	}
	fmt.Println("Web app stopped.")
}

// startConfigWatcher wires hot reload of the config file into the running
// server. Watcher failures only disable reload, they never stop the server.
func startConfigWatcher(ctx context.Context, cfg *config.Config, configPath string, server *webapp.Server) {
	configWatcher, errNew := watcher.NewWatcher(configPath, server.UpdateConfig)
	if errNew != nil {
		log.Warnf("config watcher unavailable, hot reload disabled: %v", errNew)
		return
	}
	configWatcher.SetConfig(cfg)
	if errStart := configWatcher.Start(ctx); errStart != nil {
		log.Warnf("failed to start config watcher, hot reload disabled: %v", errStart)
		return
	}
	log.Debugf("watching %s for configuration changes", configPath)
	go func() {
		<-ctx.Done()
		if errStop := configWatcher.Stop(); errStop != nil {
			log.Errorf("failed to stop config watcher: %v", errStop)
		}
	}()
}
