// Package cmd implements the benelink command-line actions: interactive
// login, token refresh, resource fetches, and the demo web application.
package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/benelink/benelink-go/internal/config"
	"github.com/benelink/benelink-go/internal/tokenstore"
	"github.com/benelink/benelink-go/sdk/benelink"
)

// LoginOptions contains options for the login process.
// It provides configuration for the authorization flow including browser
// behavior and interactive prompting capabilities.
type LoginOptions struct {
	// NoBrowser indicates whether to skip opening the browser automatically.
	NoBrowser bool

	// CallbackPort overrides the local OAuth callback port when set (>0).
	CallbackPort int

	// Prompt allows the caller to provide interactive input when needed.
	Prompt func(prompt string) (string, error)
}

// TokenOptions controls where tokens are read from and written to.
type TokenOptions struct {
	// File overrides the patient-derived token path when non-empty.
	File string

	// Encrypt seals saved token files. Requires Passphrase.
	Encrypt bool

	// Passphrase unlocks sealed token files and seals new ones.
	Passphrase string
}

// DoLogin runs the interactive authorization flow and persists the issued
// token to the configured token directory.
//
// Parameters:
//   - cfg: The application configuration
//   - options: Login options including browser behavior and prompts
//   - tokens: Token persistence options
func DoLogin(cfg *config.Config, options *LoginOptions, tokens *TokenOptions) {
	if options == nil {
		options = &LoginOptions{}
	}

	promptFn := options.Prompt
	if promptFn == nil {
		promptFn = defaultPrompt()
	}

	client, err := newClient(cfg)
	if err != nil {
		fmt.Printf("BeneLink client setup failed: %v\n", err)
		return
	}
	store, err := newTokenStore(cfg, tokens)
	if err != nil {
		fmt.Printf("Token store setup failed: %v\n", err)
		return
	}

	token, err := client.Login(context.Background(), &benelink.LoginOptions{
		NoBrowser:    options.NoBrowser,
		CallbackPort: options.CallbackPort,
		Prompt:       promptFn,
	})
	if err != nil {
		var flowErr *benelink.FlowError
		if errors.As(err, &flowErr) {
			log.Error(benelink.UserFriendlyMessage(flowErr))
			if flowErr.Type == benelink.ErrPortInUse.Type {
				os.Exit(flowErr.Code)
			}
			return
		}
		fmt.Printf("BeneLink authorization failed: %v\n", err)
		return
	}

	savedPath, err := saveToken(store, tokens, token)
	if err != nil {
		fmt.Printf("Failed to save token: %v\n", err)
		return
	}

	fmt.Printf("Token saved to %s\n", savedPath)
	if token.Patient != "" {
		fmt.Printf("Authorized for patient %s\n", token.Patient)
	}
	fmt.Println("BeneLink authorization successful!")
}

// newClient maps the file-driven configuration onto an SDK client.
func newClient(cfg *config.Config) (*benelink.Client, error) {
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

func newTokenStore(cfg *config.Config, tokens *TokenOptions) (*tokenstore.Store, error) {
	store, err := tokenstore.NewStore(cfg.TokenDir)
	if err != nil {
		return nil, err
	}
	if tokens != nil {
		if tokens.Encrypt && tokens.Passphrase == "" {
			return nil, fmt.Errorf("encryption requested but no passphrase is set (BENELINK_TOKEN_PASSPHRASE)")
		}
		if tokens.Passphrase != "" {
			store.SetPassphrase(tokens.Passphrase)
		}
	}
	return store, nil
}

// saveToken persists to the explicit file when one was given, otherwise to
// the patient-derived default path.
func saveToken(store *tokenstore.Store, tokens *TokenOptions, token *benelink.AuthorizationToken) (string, error) {
	if tokens != nil && tokens.File != "" {
		return store.SavePath(tokens.File, token)
	}
	return store.Save(token)
}

// loadToken reads the explicit file when one was given, otherwise the most
// recently saved token.
func loadToken(store *tokenstore.Store, tokens *TokenOptions) (*benelink.AuthorizationToken, error) {
	if tokens != nil && tokens.File != "" {
		return store.LoadPath(tokens.File)
	}
	path, err := store.LatestPath()
	if err != nil {
		return nil, fmt.Errorf("no stored token found; run with -login first: %w", err)
	}
	return store.LoadPath(path)
}

// defaultPrompt reads interactive input from stdin.
func defaultPrompt() func(string) (string, error) {
	reader := bufio.NewReader(os.Stdin)
	return func(prompt string) (string, error) {
		fmt.Print(prompt)
		value, err := reader.ReadString('\n')
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(value), nil
	}
}
