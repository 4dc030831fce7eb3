package benelink

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/atotto/clipboard"
	log "github.com/sirupsen/logrus"

	"github.com/benelink/benelink-go/internal/auth"
	"github.com/benelink/benelink-go/internal/browser"
	"github.com/benelink/benelink-go/internal/util"
)

const defaultLoginTimeout = 5 * time.Minute

// manualPromptDelay is how long the flow waits for the redirect before
// offering the paste-the-URL fallback.
var manualPromptDelay = 15 * time.Second

// LoginOptions contains options for the interactive login flow.
type LoginOptions struct {
	// NoBrowser indicates whether to skip opening the browser automatically.
	NoBrowser bool

	// CallbackPort overrides the local callback port when set (>0). The
	// default is derived from the registered callback URL.
	CallbackPort int

	// Timeout bounds the wait for the authorization redirect. Zero selects
	// five minutes.
	Timeout time.Duration

	// Prompt allows the caller to provide interactive input when needed.
	// When set, the flow offers a paste-the-callback-URL fallback for
	// sessions where the redirect cannot reach the local listener.
	Prompt func(prompt string) (string, error)
}

// Login runs the complete interactive authorization flow: it generates the
// attempt material, starts the local callback listener, sends the user's
// browser to the authorize URL, waits for the redirect, validates it, and
// exchanges the code.
//
// Parameters:
//   - ctx: The context for the token exchange
//   - opts: Login options including browser behavior and prompts; nil selects defaults
//
// Returns:
//   - *AuthorizationToken: The issued credential
//   - error: A flow error describing which step failed
func (c *Client) Login(ctx context.Context, opts *LoginOptions) (*AuthorizationToken, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts == nil {
		opts = &LoginOptions{}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultLoginTimeout
	}

	data, err := c.GenerateAuthData()
	if err != nil {
		return nil, err
	}
	authURL, err := c.AuthorizeURL(data)
	if err != nil {
		return nil, err
	}

	callbackPort, callbackPath, err := callbackAddr(c.cfg.CallbackURL)
	if err != nil {
		return nil, err
	}
	if opts.CallbackPort > 0 {
		callbackPort = opts.CallbackPort
	}

	server := auth.NewCallbackServer(callbackPort, callbackPath)
	if err = server.Start(); err != nil {
		return nil, err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if stopErr := server.Stop(stopCtx); stopErr != nil {
			log.Warnf("callback server stop error: %v", stopErr)
		}
	}()

	if !opts.NoBrowser {
		fmt.Println("Opening browser for BeneLink authorization")
		if !browser.IsAvailable() {
			log.Warn("No browser available; please open the URL manually")
			util.PrintSSHTunnelInstructions(callbackPort)
			printAuthorizeURL(authURL)
		} else if errOpen := browser.OpenURL(authURL); errOpen != nil {
			log.Warnf("Failed to open browser automatically: %v", errOpen)
			util.PrintSSHTunnelInstructions(callbackPort)
			printAuthorizeURL(authURL)
		}
	} else {
		util.PrintSSHTunnelInstructions(callbackPort)
		printAuthorizeURL(authURL)
	}

	fmt.Println("Waiting for authorization callback...")

	cb, err := waitForLoginCallback(server, timeout, opts.Prompt)
	if err != nil {
		return nil, err
	}

	log.Debug("authorization callback received; exchanging code for tokens")
	return c.ExchangeCode(ctx, data, cb.Code, cb.State, cb.Error)
}

// waitForLoginCallback waits for the redirect to land on the local listener.
// When a prompt is available it arms a manual fallback after a short delay,
// so remote sessions can paste the callback URL instead.
func waitForLoginCallback(server *auth.CallbackServer, timeout time.Duration, prompt func(string) (string, error)) (*auth.Callback, error) {
	callbackCh := make(chan *auth.Callback, 1)
	callbackErrCh := make(chan error, 1)

	go func() {
		result, errWait := server.WaitForCallback(timeout)
		if errWait != nil {
			callbackErrCh <- errWait
			return
		}
		callbackCh <- result
	}()

	var manualPromptC <-chan time.Time
	if prompt != nil {
		manualPromptTimer := time.NewTimer(manualPromptDelay)
		defer manualPromptTimer.Stop()
		manualPromptC = manualPromptTimer.C
	}

	for {
		select {
		case result := <-callbackCh:
			return result, nil
		case err := <-callbackErrCh:
			return nil, err
		case <-manualPromptC:
			manualPromptC = nil
			// The redirect may have landed while the prompt was arming.
			select {
			case result := <-callbackCh:
				return result, nil
			case err := <-callbackErrCh:
				return nil, err
			default:
			}
			input, errPrompt := prompt("Paste the callback URL (or press Enter to keep waiting): ")
			if errPrompt != nil {
				return nil, errPrompt
			}
			parsed, errParse := auth.ParseCallback(input)
			if errParse != nil {
				return nil, errParse
			}
			if parsed == nil {
				continue
			}
			return parsed, nil
		}
	}
}

// callbackAddr derives the local listener port and path from the registered
// callback URL.
func callbackAddr(callbackURL string) (int, string, error) {
	parsed, err := url.Parse(callbackURL)
	if err != nil {
		return 0, "", fmt.Errorf("invalid callback url: %w", err)
	}

	port := 0
	if portStr := parsed.Port(); portStr != "" {
		if port, err = strconv.Atoi(portStr); err != nil {
			return 0, "", fmt.Errorf("invalid callback port: %w", err)
		}
	} else if parsed.Scheme == "https" {
		port = 443
	} else {
		port = 80
	}

	return port, parsed.Path, nil
}

// printAuthorizeURL prints the authorize URL and best-effort copies it to
// the clipboard.
func printAuthorizeURL(authURL string) {
	fmt.Printf("Visit the following URL to continue authorization:\n%s\n", authURL)
	if err := clipboard.WriteAll(authURL); err == nil {
		fmt.Println("(the URL has been copied to the clipboard)")
	} else {
		log.Debugf("clipboard copy failed: %v", err)
	}
}
